package web

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dealflow/dealflow/pkg/cmd"
	"github.com/dealflow/dealflow/pkg/engine"
	"github.com/dealflow/dealflow/pkg/models"
	"github.com/dealflow/dealflow/pkg/persistence"
	"github.com/dealflow/dealflow/pkg/persistence/file"
	"github.com/dealflow/dealflow/pkg/providers"
)

type apiFixture struct {
	app     *fiber.App
	persist persistence.Persistence
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	reg := cmd.NewRegistry(logger, cmd.Dependencies{
		Completion: providers.NewSimulationProvider("simulated"),
	})
	persist := file.NewPersistence(t.TempDir())
	eng := engine.NewEngine(logger, reg, persist)

	return &apiFixture{
		app:     NewApp(eng, persist, reg),
		persist: persist,
	}
}

func (f *apiFixture) request(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()

	var reader io.Reader

	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)

		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := f.app.Test(req)
	require.NoError(t, err)

	return resp
}

func decodeJSON(t *testing.T, resp *http.Response, out any) {
	t.Helper()

	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

func sampleWorkflow(id string) *models.Workflow {
	return &models.Workflow{
		ID:     id,
		Name:   "Lead follow-up",
		Status: models.WorkflowStatusPublished,
		Nodes: []*models.WorkflowNode{
			{ID: "start", Kind: models.NodeKindTrigger, Name: "start", Enabled: true},
			{
				ID:      "notify",
				Kind:    models.NodeKindAction,
				Name:    "notify",
				Enabled: true,
				Config: map[string]any{
					"action_type": "send-notification",
					"message":     "new lead",
					"recipient":   "owner",
				},
			},
		},
		Connections: []*models.Connection{
			{
				ID:         "start->notify",
				SourcePort: models.MakePortID("start", models.PortMain),
				TargetPort: models.MakePortID("notify", models.PortMain),
			},
		},
	}
}

func TestAPI_Root(t *testing.T) {
	f := newAPIFixture(t)

	resp := f.request(t, http.MethodGet, "/", nil)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "Dealflow Workflow Engine", string(body))
}

func TestAPI_SaveAndGetWorkflow(t *testing.T) {
	f := newAPIFixture(t)

	resp := f.request(t, http.MethodPost, "/workflows/", sampleWorkflow("wf-1"))
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp = f.request(t, http.MethodGet, "/workflows/wf-1", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var fetched models.Workflow

	decodeJSON(t, resp, &fetched)
	assert.Equal(t, "Lead follow-up", fetched.Name)
	assert.Len(t, fetched.Nodes, 2)
	assert.False(t, fetched.UpdatedAt.IsZero())
}

func TestAPI_SaveWorkflowRejectsInvalid(t *testing.T) {
	f := newAPIFixture(t)

	workflow := sampleWorkflow("wf-1")
	workflow.Name = "x"

	resp := f.request(t, http.MethodPost, "/workflows/", workflow)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPI_GetWorkflowNotFound(t *testing.T) {
	f := newAPIFixture(t)

	resp := f.request(t, http.MethodGet, "/workflows/missing", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	var problem struct {
		Type   string `json:"type"`
		Detail string `json:"detail"`
	}

	decodeJSON(t, resp, &problem)
	assert.Equal(t, "not_found", problem.Type)
	assert.Equal(t, "workflow not found", problem.Detail)
}

func TestAPI_ListWorkflows(t *testing.T) {
	f := newAPIFixture(t)

	for i := range 3 {
		resp := f.request(t, http.MethodPost, "/workflows/", sampleWorkflow(fmt.Sprintf("wf-%d", i)))
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		resp.Body.Close()
	}

	resp := f.request(t, http.MethodGet, "/workflows/", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var listing struct {
		Workflows  []*models.Workflow `json:"workflows"`
		TotalCount int                `json:"total_count"`
	}

	decodeJSON(t, resp, &listing)
	assert.Equal(t, 3, listing.TotalCount)
	assert.Len(t, listing.Workflows, 3)
}

func TestAPI_DeleteWorkflow(t *testing.T) {
	f := newAPIFixture(t)

	resp := f.request(t, http.MethodPost, "/workflows/", sampleWorkflow("wf-1"))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp = f.request(t, http.MethodDelete, "/workflows/wf-1", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp.Body.Close()

	resp = f.request(t, http.MethodGet, "/workflows/wf-1", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestAPI_RunExecution(t *testing.T) {
	f := newAPIFixture(t)

	resp := f.request(t, http.MethodPost, "/workflows/", sampleWorkflow("wf-1"))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp = f.request(t, http.MethodPost, "/workflows/wf-1/executions", map[string]any{
		"trigger_data": map[string]any{"lead": map[string]any{"name": "Acme"}},
		"triggered_by": "api-test",
	})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	var execution models.WorkflowExecution

	decodeJSON(t, resp, &execution)
	assert.Equal(t, models.ExecutionStatusCompleted, execution.Status)
	assert.Equal(t, "api-test", execution.TriggeredBy)
	assert.Len(t, execution.NodeExecutions, 2)

	// The run shows up in workflow history.
	resp = f.request(t, http.MethodGet, "/workflows/wf-1/executions", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var listing struct {
		Executions []*models.WorkflowExecution `json:"executions"`
		TotalCount int                         `json:"total_count"`
	}

	decodeJSON(t, resp, &listing)
	assert.Equal(t, 1, listing.TotalCount)
}

func TestAPI_RunExecutionUnknownWorkflow(t *testing.T) {
	f := newAPIFixture(t)

	resp := f.request(t, http.MethodPost, "/workflows/missing/executions", map[string]any{})
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPI_TestRunsListedSeparately(t *testing.T) {
	f := newAPIFixture(t)

	resp := f.request(t, http.MethodPost, "/workflows/", sampleWorkflow("wf-1"))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp = f.request(t, http.MethodPost, "/workflows/wf-1/executions", map[string]any{"test_mode": true})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	var listing struct {
		TotalCount int `json:"total_count"`
	}

	resp = f.request(t, http.MethodGet, "/workflows/wf-1/executions", nil)
	decodeJSON(t, resp, &listing)
	assert.Equal(t, 0, listing.TotalCount)

	resp = f.request(t, http.MethodGet, "/workflows/wf-1/executions?test_mode=true", nil)
	decodeJSON(t, resp, &listing)
	assert.Equal(t, 1, listing.TotalCount)
}

func TestAPI_GetExecution(t *testing.T) {
	f := newAPIFixture(t)

	resp := f.request(t, http.MethodPost, "/workflows/", sampleWorkflow("wf-1"))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp = f.request(t, http.MethodPost, "/workflows/wf-1/executions", map[string]any{})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created models.WorkflowExecution

	decodeJSON(t, resp, &created)

	resp = f.request(t, http.MethodGet, "/executions/"+created.ID, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var fetched models.WorkflowExecution

	decodeJSON(t, resp, &fetched)
	assert.Equal(t, created.ID, fetched.ID)
	assert.Equal(t, models.ExecutionStatusCompleted, fetched.Status)
}

func TestAPI_GetExecutionNotFound(t *testing.T) {
	f := newAPIFixture(t)

	resp := f.request(t, http.MethodGet, "/executions/missing", nil)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPI_CancelExecution(t *testing.T) {
	f := newAPIFixture(t)

	resp := f.request(t, http.MethodPost, "/workflows/", sampleWorkflow("wf-1"))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp = f.request(t, http.MethodPost, "/workflows/wf-1/executions", map[string]any{})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created models.WorkflowExecution

	decodeJSON(t, resp, &created)

	resp = f.request(t, http.MethodPost, "/executions/"+created.ID+"/cancel", map[string]any{})
	defer resp.Body.Close()

	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
}

func TestAPI_CancelUnknownExecution(t *testing.T) {
	f := newAPIFixture(t)

	resp := f.request(t, http.MethodPost, "/executions/missing/cancel", map[string]any{})
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPI_ResumeConflictsWhenNotWaiting(t *testing.T) {
	f := newAPIFixture(t)

	resp := f.request(t, http.MethodPost, "/workflows/", sampleWorkflow("wf-1"))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp = f.request(t, http.MethodPost, "/workflows/wf-1/executions", map[string]any{})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created models.WorkflowExecution

	decodeJSON(t, resp, &created)

	resp = f.request(t, http.MethodPost, "/executions/"+created.ID+"/resume",
		map[string]any{"response": "approve"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	var problem struct {
		Type string `json:"type"`
	}

	decodeJSON(t, resp, &problem)
	assert.Equal(t, "not_waiting", problem.Type)
}

func approvalGatedWorkflow(id string) *models.Workflow {
	workflow := sampleWorkflow(id)
	workflow.Nodes[1].HITL = &models.HITLConfig{
		Enabled: true,
		Mode:    models.HITLModeBefore,
		Prompt:  "Send it?",
	}

	return workflow
}

func TestAPI_ApprovalRoundTrip(t *testing.T) {
	f := newAPIFixture(t)

	resp := f.request(t, http.MethodPost, "/workflows/", approvalGatedWorkflow("wf-1"))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp = f.request(t, http.MethodPost, "/workflows/wf-1/executions", map[string]any{})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created models.WorkflowExecution

	decodeJSON(t, resp, &created)
	require.Equal(t, models.ExecutionStatusWaitingHITL, created.Status)

	// The pending approval is visible on the execution.
	resp = f.request(t, http.MethodGet, "/executions/"+created.ID+"/hitl", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var request models.HITLRequest

	decodeJSON(t, resp, &request)
	assert.Equal(t, "Send it?", request.Prompt)

	resp = f.request(t, http.MethodPost, "/executions/"+created.ID+"/resume",
		map[string]any{"response": "approve", "response_context": map[string]any{"approver": "dana"}})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var resumed models.WorkflowExecution

	decodeJSON(t, resp, &resumed)
	assert.Equal(t, models.ExecutionStatusCompleted, resumed.Status)

	// Nothing pending afterwards.
	resp = f.request(t, http.MethodGet, "/executions/"+created.ID+"/hitl", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestAPI_RespondByRequestID(t *testing.T) {
	f := newAPIFixture(t)

	resp := f.request(t, http.MethodPost, "/workflows/", approvalGatedWorkflow("wf-1"))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp = f.request(t, http.MethodPost, "/workflows/wf-1/executions", map[string]any{})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created models.WorkflowExecution

	decodeJSON(t, resp, &created)

	request, err := f.persist.HITLRepository().PendingByExecution(context.Background(), created.ID)
	require.NoError(t, err)

	resp = f.request(t, http.MethodPost, "/hitl/"+request.ID+"/respond",
		map[string]any{"response": "approve"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var resumed models.WorkflowExecution

	decodeJSON(t, resp, &resumed)
	assert.Equal(t, models.ExecutionStatusCompleted, resumed.Status)
}

func TestAPI_NodeKinds(t *testing.T) {
	f := newAPIFixture(t)

	resp := f.request(t, http.MethodGet, "/node-kinds", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var listing struct {
		NodeKinds []struct {
			Kind        string         `json:"kind"`
			Name        string         `json:"name"`
			Description string         `json:"description"`
			Schema      map[string]any `json:"schema"`
		} `json:"node_kinds"`
	}

	decodeJSON(t, resp, &listing)
	require.NotEmpty(t, listing.NodeKinds)

	kinds := make([]string, 0, len(listing.NodeKinds))
	for _, k := range listing.NodeKinds {
		kinds = append(kinds, k.Kind)
	}

	assert.Contains(t, kinds, models.NodeKindTrigger)
	assert.Contains(t, kinds, models.NodeKindCondition)
	assert.Contains(t, kinds, models.NodeKindAction)
	assert.Contains(t, kinds, models.NodeKindSplitter)
	assert.Contains(t, kinds, models.NodeKindJoin)
}

func TestAPI_Health(t *testing.T) {
	f := newAPIFixture(t)

	resp := f.request(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var health struct {
		Status string `json:"status"`
	}

	decodeJSON(t, resp, &health)
	assert.Equal(t, "healthy", health.Status)
}
