package notification

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"

	"github.com/gatherly/eventwire/internal/domain"
	"github.com/gatherly/eventwire/internal/metrics"
)

// BreakerStore wraps a NotificationStore with a circuit breaker so a failing
// store degrades into fast errors instead of piling up blocked requests.
// A missing record is a normal outcome and never counts against the breaker.
type BreakerStore struct {
	inner domain.NotificationStore
	cb    *gobreaker.CircuitBreaker
}

var _ domain.NotificationStore = (*BreakerStore)(nil)

// NewBreakerStore wraps the given store. The breaker opens after 5 consecutive
// failures and probes again after 30 seconds.
func NewBreakerStore(inner domain.NotificationStore) *BreakerStore {
	settings := gobreaker.Settings{
		Name:        "notification-store",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, domain.ErrNotificationNotFound)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("Circuit breaker state changed",
				"component", name,
				"from", from.String(),
				"to", to.String(),
			)
			metrics.NotificationStoreBreakerState.Set(breakerStateToFloat(to))
		},
	}
	return &BreakerStore{inner: inner, cb: gobreaker.NewCircuitBreaker(settings)}
}

func breakerStateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

// State exposes the breaker state for readiness checks.
func (s *BreakerStore) State() gobreaker.State {
	return s.cb.State()
}

func (s *BreakerStore) Create(ctx context.Context, n *domain.Notification) (*domain.Notification, error) {
	return s.execute(func() (*domain.Notification, error) {
		return s.inner.Create(ctx, n)
	})
}

func (s *BreakerStore) GetByID(ctx context.Context, id string) (*domain.Notification, error) {
	return s.execute(func() (*domain.Notification, error) {
		return s.inner.GetByID(ctx, id)
	})
}

func (s *BreakerStore) ListByRecipient(ctx context.Context, recipientID string, filter domain.NotificationFilter) (*domain.NotificationPage, error) {
	result, err := s.cb.Execute(func() (any, error) {
		return s.inner.ListByRecipient(ctx, recipientID, filter)
	})
	if err != nil {
		return nil, err
	}
	return result.(*domain.NotificationPage), nil
}

func (s *BreakerStore) MarkRead(ctx context.Context, id string) (*domain.Notification, error) {
	return s.execute(func() (*domain.Notification, error) {
		return s.inner.MarkRead(ctx, id)
	})
}

func (s *BreakerStore) execute(fn func() (*domain.Notification, error)) (*domain.Notification, error) {
	result, err := s.cb.Execute(func() (any, error) {
		return fn()
	})
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, nil
	}
	return result.(*domain.Notification), nil
}
