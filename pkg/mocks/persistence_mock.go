package mocks

import (
	"context"
	"time"

	"github.com/dealflow/dealflow/pkg/models"
	"github.com/dealflow/dealflow/pkg/persistence"
	"github.com/stretchr/testify/mock"
)

// MockWorkflowRepository is a mock implementation of persistence.WorkflowRepository interface.
type MockWorkflowRepository struct {
	mock.Mock
}

func (m *MockWorkflowRepository) Save(ctx context.Context, workflow *models.Workflow) error {
	args := m.Called(ctx, workflow)

	return args.Error(0)
}

func (m *MockWorkflowRepository) GetByID(ctx context.Context, id string) (*models.Workflow, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Workflow), args.Error(1)
}

func (m *MockWorkflowRepository) GetAll(ctx context.Context) ([]*models.Workflow, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.Workflow), args.Error(1)
}

func (m *MockWorkflowRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)

	return args.Error(0)
}

// MockExecutionRepository is a mock implementation of persistence.ExecutionRepository interface.
type MockExecutionRepository struct {
	mock.Mock
}

func (m *MockExecutionRepository) Save(ctx context.Context, execution *models.WorkflowExecution) error {
	args := m.Called(ctx, execution)

	return args.Error(0)
}

func (m *MockExecutionRepository) GetByID(ctx context.Context, id string) (*models.WorkflowExecution, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.WorkflowExecution), args.Error(1)
}

func (m *MockExecutionRepository) ListByWorkflow(ctx context.Context, workflowID string, testMode bool) ([]*models.WorkflowExecution, error) {
	args := m.Called(ctx, workflowID, testMode)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.WorkflowExecution), args.Error(1)
}

func (m *MockExecutionRepository) Prune(ctx context.Context, workflowID string, testMode bool, keep int) (int, error) {
	args := m.Called(ctx, workflowID, testMode, keep)

	return args.Int(0), args.Error(1)
}

// MockHITLRepository is a mock implementation of persistence.HITLRepository interface.
type MockHITLRepository struct {
	mock.Mock
}

func (m *MockHITLRepository) Save(ctx context.Context, request *models.HITLRequest) error {
	args := m.Called(ctx, request)

	return args.Error(0)
}

func (m *MockHITLRepository) GetByID(ctx context.Context, id string) (*models.HITLRequest, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.HITLRequest), args.Error(1)
}

func (m *MockHITLRepository) PendingByExecution(ctx context.Context, executionID string) (*models.HITLRequest, error) {
	args := m.Called(ctx, executionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.HITLRequest), args.Error(1)
}

func (m *MockHITLRepository) Answer(ctx context.Context, id string, response any, responseCtx map[string]any) (*models.HITLRequest, error) {
	args := m.Called(ctx, id, response, responseCtx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.HITLRequest), args.Error(1)
}

func (m *MockHITLRepository) Expire(ctx context.Context, id string) error {
	args := m.Called(ctx, id)

	return args.Error(0)
}

func (m *MockHITLRepository) ListExpired(ctx context.Context, now time.Time) ([]*models.HITLRequest, error) {
	args := m.Called(ctx, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.HITLRequest), args.Error(1)
}

// MockVariableRepository is a mock implementation of persistence.VariableRepository interface.
type MockVariableRepository struct {
	mock.Mock
}

func (m *MockVariableRepository) SetGlobal(ctx context.Context, key string, value any) error {
	args := m.Called(ctx, key, value)

	return args.Error(0)
}

func (m *MockVariableRepository) Globals(ctx context.Context) (map[string]any, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(map[string]any), args.Error(1)
}

func (m *MockVariableRepository) SetWorkflowVariable(ctx context.Context, workflowID, key string, value any) error {
	args := m.Called(ctx, workflowID, key, value)

	return args.Error(0)
}

func (m *MockVariableRepository) WorkflowVariables(ctx context.Context, workflowID string) (map[string]any, error) {
	args := m.Called(ctx, workflowID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(map[string]any), args.Error(1)
}

// MockPersistence is a mock implementation of persistence.Persistence interface.
type MockPersistence struct {
	mock.Mock

	workflowRepo  *MockWorkflowRepository
	executionRepo *MockExecutionRepository
	hitlRepo      *MockHITLRepository
	variableRepo  *MockVariableRepository
}

// NewMockPersistence creates a new MockPersistence with all mock repositories.
func NewMockPersistence() *MockPersistence {
	return &MockPersistence{
		workflowRepo:  &MockWorkflowRepository{},
		executionRepo: &MockExecutionRepository{},
		hitlRepo:      &MockHITLRepository{},
		variableRepo:  &MockVariableRepository{},
	}
}

// GetMockWorkflowRepository returns the underlying mock workflow repository for setting up expectations.
func (m *MockPersistence) GetMockWorkflowRepository() *MockWorkflowRepository {
	return m.workflowRepo
}

// GetMockExecutionRepository returns the underlying mock execution repository for setting up expectations.
func (m *MockPersistence) GetMockExecutionRepository() *MockExecutionRepository {
	return m.executionRepo
}

// GetMockHITLRepository returns the underlying mock HITL repository for setting up expectations.
func (m *MockPersistence) GetMockHITLRepository() *MockHITLRepository {
	return m.hitlRepo
}

// GetMockVariableRepository returns the underlying mock variable repository for setting up expectations.
func (m *MockPersistence) GetMockVariableRepository() *MockVariableRepository {
	return m.variableRepo
}

func (m *MockPersistence) WorkflowRepository() persistence.WorkflowRepository {
	return m.workflowRepo
}

func (m *MockPersistence) ExecutionRepository() persistence.ExecutionRepository {
	return m.executionRepo
}

func (m *MockPersistence) HITLRepository() persistence.HITLRepository {
	return m.hitlRepo
}

func (m *MockPersistence) VariableRepository() persistence.VariableRepository {
	return m.variableRepo
}

func (m *MockPersistence) HealthCheck(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}

func (m *MockPersistence) Close(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}
