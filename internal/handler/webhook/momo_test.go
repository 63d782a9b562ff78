package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/vantran/selene/internal/domain"
	"github.com/vantran/selene/internal/payment"
)

// mockOrderService implements domain.OrderService for testing
type mockOrderService struct {
	confirmPaymentFunc func(ctx context.Context, outcome domain.PaymentOutcome) error
}

func (m *mockOrderService) ConfirmPayment(ctx context.Context, outcome domain.PaymentOutcome) error {
	if m.confirmPaymentFunc != nil {
		return m.confirmPaymentFunc(ctx, outcome)
	}
	return errors.New("not implemented")
}

func (m *mockOrderService) GetOrder(ctx context.Context, id uuid.UUID) (*domain.OrderDetail, error) {
	return nil, errors.New("not implemented")
}

func (m *mockOrderService) ListOrders(ctx context.Context, filter domain.OrderFilter) ([]domain.Order, error) {
	return nil, errors.New("not implemented")
}

func (m *mockOrderService) ListOrdersForIdentity(ctx context.Context, ident domain.Identity) ([]domain.Order, error) {
	return nil, errors.New("not implemented")
}

func (m *mockOrderService) UpdateStatus(ctx context.Context, id uuid.UUID, next domain.OrderStatus) (*domain.Order, error) {
	return nil, errors.New("not implemented")
}

func (m *mockOrderService) Cancel(ctx context.Context, id uuid.UUID, ident domain.Identity) (*domain.Order, error) {
	return nil, errors.New("not implemented")
}

func (m *mockOrderService) ReconcileInventory(ctx context.Context, orderID uuid.UUID) (*domain.InventoryResult, error) {
	return nil, errors.New("not implemented")
}

func (m *mockOrderService) CleanupOrders(ctx context.Context, olderThan time.Duration) (int64, error) {
	return 0, errors.New("not implemented")
}

const (
	testPartnerCode = "PARTNER_TEST"
	testAccessKey   = "access-key"
	testSecretKey   = "super-secret"
)

func newTestMoMoProvider(t *testing.T) *payment.MoMoProvider {
	t.Helper()
	p, err := payment.NewMoMoProvider(payment.MoMoConfig{
		PartnerCode: testPartnerCode,
		AccessKey:   testAccessKey,
		SecretKey:   testSecretKey,
	})
	if err != nil {
		t.Fatalf("failed to build provider: %v", err)
	}
	return p
}

// signTestIPN computes the signature the gateway would attach, using the
// documented raw string key order.
func signTestIPN(ipn *payment.MoMoIPN) {
	raw := "accessKey=" + testAccessKey +
		"&amount=" + strconv.FormatInt(ipn.Amount, 10) +
		"&extraData=" + ipn.ExtraData +
		"&message=" + ipn.Message +
		"&orderId=" + ipn.OrderID +
		"&orderInfo=" + ipn.OrderInfo +
		"&orderType=" + ipn.OrderType +
		"&partnerCode=" + ipn.PartnerCode +
		"&payType=" + ipn.PayType +
		"&requestId=" + ipn.RequestID +
		"&responseTime=" + strconv.FormatInt(ipn.ResponseTime, 10) +
		"&resultCode=" + strconv.Itoa(ipn.ResultCode) +
		"&transId=" + strconv.FormatInt(ipn.TransID, 10)
	mac := hmac.New(sha256.New, []byte(testSecretKey))
	mac.Write([]byte(raw))
	ipn.Signature = hex.EncodeToString(mac.Sum(nil))
}

func newTestIPN(orderID uuid.UUID, resultCode int) *payment.MoMoIPN {
	ipn := &payment.MoMoIPN{
		PartnerCode:  testPartnerCode,
		OrderID:      orderID.String(),
		RequestID:    uuid.New().String(),
		Amount:       150000,
		OrderInfo:    "Order payment",
		OrderType:    "momo_wallet",
		TransID:      4088878653,
		ResultCode:   resultCode,
		Message:      "Successful.",
		PayType:      "qr",
		ResponseTime: time.Now().UnixMilli(),
	}
	signTestIPN(ipn)
	return ipn
}

func postIPN(t *testing.T, h *MoMoHandler, ipn *payment.MoMoIPN) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(ipn)
	if err != nil {
		t.Fatalf("failed to marshal IPN: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/webhooks/momo", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.HandleIPN(rec, req)
	return rec
}

func TestMoMoHandler_SuccessfulPayment(t *testing.T) {
	orderID := uuid.New()

	var got *domain.PaymentOutcome
	svc := &mockOrderService{
		confirmPaymentFunc: func(ctx context.Context, outcome domain.PaymentOutcome) error {
			got = &outcome
			return nil
		},
	}
	h := NewMoMoHandler(newTestMoMoProvider(t), svc)

	rec := postIPN(t, h, newTestIPN(orderID, payment.MoMoResultSuccess))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got == nil {
		t.Fatal("ConfirmPayment was not called")
	}
	if got.OrderID != orderID {
		t.Errorf("outcome order id = %s, want %s", got.OrderID, orderID)
	}
	if !got.Succeeded {
		t.Error("outcome should report success")
	}
	if got.Provider != "momo" {
		t.Errorf("outcome provider = %q, want %q", got.Provider, "momo")
	}
}

func TestMoMoHandler_FailedPaymentStillAcknowledged(t *testing.T) {
	called := false
	svc := &mockOrderService{
		confirmPaymentFunc: func(ctx context.Context, outcome domain.PaymentOutcome) error {
			called = true
			if outcome.Succeeded {
				t.Error("outcome should report failure")
			}
			return nil
		},
	}
	h := NewMoMoHandler(newTestMoMoProvider(t), svc)

	rec := postIPN(t, h, newTestIPN(uuid.New(), payment.MoMoResultUserCancelled))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !called {
		t.Fatal("ConfirmPayment was not called")
	}
}

func TestMoMoHandler_TamperedSignatureDropped(t *testing.T) {
	svc := &mockOrderService{
		confirmPaymentFunc: func(ctx context.Context, outcome domain.PaymentOutcome) error {
			t.Fatal("ConfirmPayment must not be called for a forged notification")
			return nil
		},
	}
	h := NewMoMoHandler(newTestMoMoProvider(t), svc)

	ipn := newTestIPN(uuid.New(), payment.MoMoResultSuccess)
	ipn.Amount += 1 // invalidates the signature

	rec := postIPN(t, h, ipn)

	// Still acknowledged so the gateway stops retrying.
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestMoMoHandler_UnknownOrderAcknowledged(t *testing.T) {
	svc := &mockOrderService{
		confirmPaymentFunc: func(ctx context.Context, outcome domain.PaymentOutcome) error {
			return domain.ErrOrderNotFound
		},
	}
	h := NewMoMoHandler(newTestMoMoProvider(t), svc)

	rec := postIPN(t, h, newTestIPN(uuid.New(), payment.MoMoResultSuccess))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestMoMoHandler_ServiceErrorStillAcknowledged(t *testing.T) {
	svc := &mockOrderService{
		confirmPaymentFunc: func(ctx context.Context, outcome domain.PaymentOutcome) error {
			return errors.New("database unavailable")
		},
	}
	h := NewMoMoHandler(newTestMoMoProvider(t), svc)

	rec := postIPN(t, h, newTestIPN(uuid.New(), payment.MoMoResultSuccess))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestMoMoHandler_MalformedBodyAcknowledged(t *testing.T) {
	svc := &mockOrderService{
		confirmPaymentFunc: func(ctx context.Context, outcome domain.PaymentOutcome) error {
			t.Fatal("ConfirmPayment must not be called for a malformed body")
			return nil
		},
	}
	h := NewMoMoHandler(newTestMoMoProvider(t), svc)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/momo", bytes.NewReader([]byte("not json")))
	rec := httptest.NewRecorder()
	h.HandleIPN(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestMoMoHandler_Health(t *testing.T) {
	h := NewMoMoHandler(newTestMoMoProvider(t), &mockOrderService{})

	req := httptest.NewRequest(http.MethodGet, "/webhooks/momo", nil)
	rec := httptest.NewRecorder()
	h.HandleHealth(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}
