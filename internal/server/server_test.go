package server

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/gatherly/eventwire/internal/config"
	"github.com/gatherly/eventwire/internal/domain"
	"github.com/gatherly/eventwire/internal/notification"
	"github.com/gatherly/eventwire/internal/realtime"
)

// memStore is an in-memory NotificationStore for handler tests.
type memStore struct {
	records map[string]*domain.Notification
	order   []string
}

func newMemStore() *memStore {
	return &memStore{records: make(map[string]*domain.Notification)}
}

func (s *memStore) Create(_ context.Context, n *domain.Notification) (*domain.Notification, error) {
	record := *n
	record.ID = uuid.NewString()
	record.CreatedAt = time.Now().UTC()
	s.records[record.ID] = &record
	s.order = append(s.order, record.ID)
	return &record, nil
}

func (s *memStore) GetByID(_ context.Context, id string) (*domain.Notification, error) {
	record, ok := s.records[id]
	if !ok {
		return nil, domain.ErrNotificationNotFound
	}
	return record, nil
}

func (s *memStore) ListByRecipient(_ context.Context, recipientID string, filter domain.NotificationFilter) (*domain.NotificationPage, error) {
	page := &domain.NotificationPage{Items: []domain.Notification{}}
	for _, id := range s.order {
		record := s.records[id]
		if record.RecipientID != recipientID {
			continue
		}
		if filter.UnreadOnly && record.Read {
			continue
		}
		page.Items = append(page.Items, *record)
	}
	page.Total = len(page.Items)
	return page, nil
}

func (s *memStore) MarkRead(_ context.Context, id string) (*domain.Notification, error) {
	record, ok := s.records[id]
	if !ok {
		return nil, domain.ErrNotificationNotFound
	}
	record.Read = true
	return record, nil
}

// pingStub satisfies the health checker interfaces.
type pingStub struct {
	err error
}

func (p pingStub) Ping(context.Context) error {
	return p.err
}

type testServerOption func(*config.Config, *Deps)

func withMaxConnectionsPerIP(n int) testServerOption {
	return func(cfg *config.Config, _ *Deps) {
		cfg.MaxConnectionsPerIP = n
	}
}

func withHealthChecks(redis, postgres pingStub) testServerOption {
	return func(_ *config.Config, deps *Deps) {
		deps.RedisCheck = redis
		deps.PostgresCheck = postgres
	}
}

func withStoreBreaker(b storeBreakerState) testServerOption {
	return func(_ *config.Config, deps *Deps) {
		deps.StoreBreaker = b
	}
}

// newTestServer wires a server over real realtime components and an
// in-memory notification store.
func newTestServer(t *testing.T, opts ...testServerOption) (*Server, *memStore) {
	t.Helper()

	clock := clockwork.NewFakeClock()
	registry, err := realtime.NewConnectionRegistry(realtime.RegistryConfig{MaxConnections: 16}, clock)
	require.NoError(t, err)
	t.Cleanup(registry.Stop)

	router := realtime.NewBroadcastRouter(registry, clock)
	queue, err := realtime.NewMessageQueue(router, clock, realtime.QueueConfig{FlushInterval: time.Second})
	require.NoError(t, err)
	t.Cleanup(queue.Stop)

	store := newMemStore()

	cfg := &config.Config{
		Port:                 "0",
		MaxConnections:       16,
		HeartbeatInterval:    time.Second,
		QueueFlushInterval:   time.Second,
		MaxConnectionsPerIP:  8,
		ConnectionsPerSecond: 1000,
		ConnectionBurst:      1000,
	}
	deps := Deps{
		Registry: registry,
		Router:   router,
		Queue:    queue,
		Bridge:   notification.NewBridge(store, router),
		Stats:    realtime.NewStatsCollector(registry, queue),
	}
	for _, opt := range opts {
		opt(cfg, &deps)
	}

	return NewServer(cfg, deps), store
}
