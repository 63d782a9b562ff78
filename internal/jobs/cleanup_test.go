package jobs

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/vantran/selene/internal/domain"
)

type fakeOrderService struct {
	domain.OrderService

	cleanupCalls []time.Duration
	cleanupErr   error
}

func (f *fakeOrderService) CleanupOrders(ctx context.Context, olderThan time.Duration) (int64, error) {
	f.cleanupCalls = append(f.cleanupCalls, olderThan)
	if f.cleanupErr != nil {
		return 0, f.cleanupErr
	}
	return 3, nil
}

type fakeOrderStore struct {
	domain.OrderStore

	repairs int
}

func (f *fakeOrderStore) RepairTimestamps(ctx context.Context) (int64, error) {
	f.repairs++
	return 2, nil
}

func (f *fakeOrderStore) DeleteOrdersBefore(ctx context.Context, statuses []domain.OrderStatus, cutoff time.Time) (int64, error) {
	return 0, nil
}

func TestRunner_RunRetentionUsesConfiguredWindow(t *testing.T) {
	svc := &fakeOrderService{}
	store := &fakeOrderStore{}
	r := NewRunner(svc, store, 30*24*time.Hour, time.Hour, slog.New(slog.DiscardHandler))

	deleted, err := r.RunRetention(context.Background())
	if err != nil {
		t.Fatalf("RunRetention returned error: %v", err)
	}
	if deleted != 3 {
		t.Errorf("deleted = %d, want 3", deleted)
	}
	if len(svc.cleanupCalls) != 1 || svc.cleanupCalls[0] != 30*24*time.Hour {
		t.Errorf("cleanup calls = %v, want one call with 720h", svc.cleanupCalls)
	}
}

func TestRunner_SweepContinuesPastFailures(t *testing.T) {
	svc := &fakeOrderService{cleanupErr: errors.New("db down")}
	store := &fakeOrderStore{}
	r := NewRunner(svc, store, 24*time.Hour, time.Hour, slog.New(slog.DiscardHandler))

	// A failing retention sweep must not prevent the timestamp repair.
	r.sweep(context.Background())

	if store.repairs != 1 {
		t.Errorf("repairs = %d, want 1", store.repairs)
	}
	if len(svc.cleanupCalls) != 1 {
		t.Errorf("cleanup calls = %d, want 1", len(svc.cleanupCalls))
	}
}

func TestRunner_StartStopsOnCancel(t *testing.T) {
	svc := &fakeOrderService{}
	store := &fakeOrderStore{}
	r := NewRunner(svc, store, 24*time.Hour, 10*time.Millisecond, slog.New(slog.DiscardHandler))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Start(ctx)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("runner did not stop after context cancellation")
	}

	// Initial sweep plus at least one tick.
	if len(svc.cleanupCalls) < 2 {
		t.Errorf("cleanup calls = %d, want at least 2", len(svc.cleanupCalls))
	}
}
