package providers

import (
	"context"
	"strconv"
	"sync"
)

// RecordStore is the opaque key-value view of the CRM data model (deals,
// contacts, companies). The engine never issues raw queries; action nodes
// read and write whole records through it.
type RecordStore interface {
	GetRecord(ctx context.Context, entity, id string) (map[string]any, error)
	SetRecordFields(ctx context.Context, entity, id string, fields map[string]any) error
	CreateRecord(ctx context.Context, entity string, fields map[string]any) (string, error)
}

// Notification is one outbound message dispatched by an action node.
type Notification struct {
	Channel   string         `json:"channel"` // email, in-app, sms
	Recipient string         `json:"recipient"`
	Subject   string         `json:"subject,omitempty"`
	Body      string         `json:"body"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Dispatcher sends notifications and emails. Invoked opaquely by action
// nodes; delivery semantics live outside the engine.
type Dispatcher interface {
	Dispatch(ctx context.Context, n Notification) error
}

// Identity supplies the acting user for a run. Read-only.
type Identity interface {
	CurrentUserID(ctx context.Context) (string, error)
}

// MemoryRecordStore is an in-process RecordStore for tests and simulation.
type MemoryRecordStore struct {
	mu      sync.RWMutex
	records map[string]map[string]any // "{entity}/{id}" -> fields
	nextID  int
}

func NewMemoryRecordStore() *MemoryRecordStore {
	return &MemoryRecordStore{records: make(map[string]map[string]any)}
}

func (s *MemoryRecordStore) key(entity, id string) string {
	return entity + "/" + id
}

func (s *MemoryRecordStore) GetRecord(_ context.Context, entity, id string) (map[string]any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.records[s.key(entity, id)]
	if !ok {
		return nil, nil
	}

	out := make(map[string]any, len(record))
	for k, v := range record {
		out[k] = v
	}

	return out, nil
}

func (s *MemoryRecordStore) SetRecordFields(_ context.Context, entity, id string, fields map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := s.key(entity, id)
	record, ok := s.records[key]
	if !ok {
		record = make(map[string]any)
		s.records[key] = record
	}

	for k, v := range fields {
		record[k] = v
	}

	return nil
}

func (s *MemoryRecordStore) CreateRecord(_ context.Context, entity string, fields map[string]any) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	id := entity + "-" + strconv.Itoa(s.nextID)

	record := make(map[string]any, len(fields))
	for k, v := range fields {
		record[k] = v
	}

	s.records[s.key(entity, id)] = record

	return id, nil
}

// MemoryDispatcher records notifications instead of sending them.
type MemoryDispatcher struct {
	mu   sync.Mutex
	sent []Notification
}

func NewMemoryDispatcher() *MemoryDispatcher {
	return &MemoryDispatcher{}
}

func (d *MemoryDispatcher) Dispatch(_ context.Context, n Notification) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.sent = append(d.sent, n)

	return nil
}

// Sent returns a copy of all dispatched notifications.
func (d *MemoryDispatcher) Sent() []Notification {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]Notification, len(d.sent))
	copy(out, d.sent)

	return out
}

// StaticIdentity returns a fixed acting user id.
type StaticIdentity struct {
	UserID string
}

func (s StaticIdentity) CurrentUserID(_ context.Context) (string, error) {
	return s.UserID, nil
}
