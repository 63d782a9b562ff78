package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/vantran/selene/internal/domain"
	"github.com/vantran/selene/internal/middleware"
)

type mockOrderService struct {
	getOrderFunc     func(ctx context.Context, id uuid.UUID) (*domain.OrderDetail, error)
	listOrdersFunc   func(ctx context.Context, filter domain.OrderFilter) ([]domain.Order, error)
	cancelFunc       func(ctx context.Context, id uuid.UUID, ident domain.Identity) (*domain.Order, error)
	updateStatusFunc func(ctx context.Context, id uuid.UUID, next domain.OrderStatus) (*domain.Order, error)
	cleanupFunc      func(ctx context.Context, olderThan time.Duration) (int64, error)
}

func (m *mockOrderService) GetOrder(ctx context.Context, id uuid.UUID) (*domain.OrderDetail, error) {
	if m.getOrderFunc != nil {
		return m.getOrderFunc(ctx, id)
	}
	return nil, errors.New("not implemented")
}

func (m *mockOrderService) ListOrders(ctx context.Context, filter domain.OrderFilter) ([]domain.Order, error) {
	if m.listOrdersFunc != nil {
		return m.listOrdersFunc(ctx, filter)
	}
	return nil, errors.New("not implemented")
}

func (m *mockOrderService) ListOrdersForIdentity(ctx context.Context, ident domain.Identity) ([]domain.Order, error) {
	return nil, errors.New("not implemented")
}

func (m *mockOrderService) UpdateStatus(ctx context.Context, id uuid.UUID, next domain.OrderStatus) (*domain.Order, error) {
	if m.updateStatusFunc != nil {
		return m.updateStatusFunc(ctx, id, next)
	}
	return nil, errors.New("not implemented")
}

func (m *mockOrderService) Cancel(ctx context.Context, id uuid.UUID, ident domain.Identity) (*domain.Order, error) {
	if m.cancelFunc != nil {
		return m.cancelFunc(ctx, id, ident)
	}
	return nil, errors.New("not implemented")
}

func (m *mockOrderService) ConfirmPayment(ctx context.Context, outcome domain.PaymentOutcome) error {
	return errors.New("not implemented")
}

func (m *mockOrderService) ReconcileInventory(ctx context.Context, orderID uuid.UUID) (*domain.InventoryResult, error) {
	return nil, errors.New("not implemented")
}

func (m *mockOrderService) CleanupOrders(ctx context.Context, olderThan time.Duration) (int64, error) {
	if m.cleanupFunc != nil {
		return m.cleanupFunc(ctx, olderThan)
	}
	return 0, errors.New("not implemented")
}

func withIdentity(req *http.Request, ident *domain.Identity) *http.Request {
	ctx := context.WithValue(req.Context(), middleware.IdentityContextKey, ident)
	return req.WithContext(ctx)
}

func customerIdentity() *domain.Identity {
	return &domain.Identity{UserID: uuid.New(), Email: "jo@example.com", Role: domain.RoleCustomer}
}

func TestGetOrder_OwnerSeesOrder(t *testing.T) {
	ident := customerIdentity()
	orderID := uuid.New()

	svc := &mockOrderService{
		getOrderFunc: func(ctx context.Context, id uuid.UUID) (*domain.OrderDetail, error) {
			uid := ident.UserID
			return &domain.OrderDetail{Order: domain.Order{ID: orderID, UserID: &uid}}, nil
		},
	}
	h := NewOrderHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/orders/"+orderID.String(), nil)
	req.SetPathValue("id", orderID.String())
	rec := httptest.NewRecorder()
	h.GetOrder(rec, withIdentity(req, ident))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body: %s", rec.Code, rec.Body.String())
	}
}

func TestGetOrder_StrangerForbidden(t *testing.T) {
	orderID := uuid.New()
	owner := uuid.New()

	svc := &mockOrderService{
		getOrderFunc: func(ctx context.Context, id uuid.UUID) (*domain.OrderDetail, error) {
			return &domain.OrderDetail{Order: domain.Order{ID: orderID, UserID: &owner, Email: "owner@example.com"}}, nil
		},
	}
	h := NewOrderHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/orders/"+orderID.String(), nil)
	req.SetPathValue("id", orderID.String())
	rec := httptest.NewRecorder()
	h.GetOrder(rec, withIdentity(req, customerIdentity()))

	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
}

func TestGetOrder_AdminSeesAnyOrder(t *testing.T) {
	orderID := uuid.New()
	owner := uuid.New()

	svc := &mockOrderService{
		getOrderFunc: func(ctx context.Context, id uuid.UUID) (*domain.OrderDetail, error) {
			return &domain.OrderDetail{Order: domain.Order{ID: orderID, UserID: &owner}}, nil
		},
	}
	h := NewOrderHandler(svc)

	admin := &domain.Identity{UserID: uuid.New(), Email: "ops@example.com", Role: domain.RoleAdmin}
	req := httptest.NewRequest(http.MethodGet, "/api/orders/"+orderID.String(), nil)
	req.SetPathValue("id", orderID.String())
	rec := httptest.NewRecorder()
	h.GetOrder(rec, withIdentity(req, admin))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestGetOrder_InvalidID(t *testing.T) {
	h := NewOrderHandler(&mockOrderService{})

	req := httptest.NewRequest(http.MethodGet, "/api/orders/not-a-uuid", nil)
	req.SetPathValue("id", "not-a-uuid")
	rec := httptest.NewRecorder()
	h.GetOrder(rec, withIdentity(req, customerIdentity()))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestCancel_ErrorsMapToStatusCodes(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"not owner", domain.ErrNotOrderOwner, http.StatusForbidden},
		{"not found", domain.ErrOrderNotFound, http.StatusNotFound},
		{"illegal transition", domain.Invalid("order.transition", "cannot change order status from DELIVERED to CANCELLED"), http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			orderID := uuid.New()
			svc := &mockOrderService{
				cancelFunc: func(ctx context.Context, id uuid.UUID, ident domain.Identity) (*domain.Order, error) {
					return nil, tt.err
				},
			}
			h := NewOrderHandler(svc)

			req := httptest.NewRequest(http.MethodPost, "/api/orders/"+orderID.String()+"/cancel", nil)
			req.SetPathValue("id", orderID.String())
			rec := httptest.NewRecorder()
			h.Cancel(rec, withIdentity(req, customerIdentity()))

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}

func TestCancel_Success(t *testing.T) {
	orderID := uuid.New()
	svc := &mockOrderService{
		cancelFunc: func(ctx context.Context, id uuid.UUID, ident domain.Identity) (*domain.Order, error) {
			return &domain.Order{ID: orderID, Status: domain.OrderStatusCancelled}, nil
		},
	}
	h := NewOrderHandler(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/orders/"+orderID.String()+"/cancel", nil)
	req.SetPathValue("id", orderID.String())
	rec := httptest.NewRecorder()
	h.Cancel(rec, withIdentity(req, customerIdentity()))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp orderResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !resp.Success || resp.Order == nil || resp.Order.Status != domain.OrderStatusCancelled {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestUpdateStatus_RejectsUnknownStatus(t *testing.T) {
	orderID := uuid.New()
	h := NewOrderHandler(&mockOrderService{})

	req := httptest.NewRequest(http.MethodPatch, "/api/admin/orders/"+orderID.String()+"/status",
		strings.NewReader(`{"status":"TELEPORTED"}`))
	req.SetPathValue("id", orderID.String())
	rec := httptest.NewRecorder()
	h.UpdateStatus(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestUpdateStatus_Success(t *testing.T) {
	orderID := uuid.New()
	var gotStatus domain.OrderStatus
	svc := &mockOrderService{
		updateStatusFunc: func(ctx context.Context, id uuid.UUID, next domain.OrderStatus) (*domain.Order, error) {
			gotStatus = next
			return &domain.Order{ID: orderID, Status: next}, nil
		},
	}
	h := NewOrderHandler(svc)

	req := httptest.NewRequest(http.MethodPatch, "/api/admin/orders/"+orderID.String()+"/status",
		strings.NewReader(`{"status":"SHIPPED"}`))
	req.SetPathValue("id", orderID.String())
	rec := httptest.NewRecorder()
	h.UpdateStatus(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body: %s", rec.Code, rec.Body.String())
	}
	if gotStatus != domain.OrderStatusShipped {
		t.Errorf("status passed to service = %s, want SHIPPED", gotStatus)
	}
}

func TestListAdminOrders_ParsesFilters(t *testing.T) {
	var got domain.OrderFilter
	svc := &mockOrderService{
		listOrdersFunc: func(ctx context.Context, filter domain.OrderFilter) ([]domain.Order, error) {
			got = filter
			return []domain.Order{}, nil
		},
	}
	h := NewOrderHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/admin/orders?status=PENDING&paid=false&limit=10&offset=20", nil)
	rec := httptest.NewRecorder()
	h.ListAdminOrders(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got.Status == nil || *got.Status != domain.OrderStatusPending {
		t.Errorf("filter status = %v, want PENDING", got.Status)
	}
	if got.IsPaid == nil || *got.IsPaid != false {
		t.Errorf("filter paid = %v, want false", got.IsPaid)
	}
	if got.Limit != 10 || got.Offset != 20 {
		t.Errorf("filter limit/offset = %d/%d, want 10/20", got.Limit, got.Offset)
	}
}

func TestCleanup_UsesDaysParam(t *testing.T) {
	var got time.Duration
	svc := &mockOrderService{
		cleanupFunc: func(ctx context.Context, olderThan time.Duration) (int64, error) {
			got = olderThan
			return 7, nil
		},
	}
	h := NewOrderHandler(svc)

	req := httptest.NewRequest(http.MethodDelete, "/api/admin/orders/cleanup?days=14", nil)
	rec := httptest.NewRecorder()
	h.Cleanup(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got != 14*24*time.Hour {
		t.Errorf("olderThan = %s, want 336h", got)
	}

	var resp struct {
		Success bool  `json:"success"`
		Deleted int64 `json:"deleted"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Deleted != 7 {
		t.Errorf("deleted = %d, want 7", resp.Deleted)
	}
}

func TestCleanup_RejectsInvalidDays(t *testing.T) {
	h := NewOrderHandler(&mockOrderService{})

	req := httptest.NewRequest(http.MethodDelete, "/api/admin/orders/cleanup?days=0", nil)
	rec := httptest.NewRecorder()
	h.Cleanup(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}
