package payment

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/vantran/selene/internal/domain"
)

// MoMo IPN result codes. Zero means the customer completed payment;
// anything else is a failure or cancellation.
const (
	MoMoResultSuccess       = 0
	MoMoResultUserCancelled = 1006
)

const momoCreateEndpoint = "https://payment.momo.vn/v2/gateway/api/create"

// MoMoConfig contains credentials issued by the MoMo merchant portal.
type MoMoConfig struct {
	PartnerCode string
	AccessKey   string

	// SecretKey is the shared secret used for HMAC-SHA256 request and IPN
	// signatures.
	SecretKey string

	// Endpoint overrides the production create-payment endpoint (tests).
	Endpoint string
}

// MoMoProvider implements Provider for the MoMo e-wallet gateway.
type MoMoProvider struct {
	config MoMoConfig
	client *http.Client
}

// NewMoMoProvider creates a MoMo gateway provider.
func NewMoMoProvider(config MoMoConfig) (*MoMoProvider, error) {
	if config.PartnerCode == "" || config.AccessKey == "" || config.SecretKey == "" {
		return nil, fmt.Errorf("momo: partner code, access key and secret key are required")
	}
	if config.Endpoint == "" {
		config.Endpoint = momoCreateEndpoint
	}
	return &MoMoProvider{
		config: config,
		client: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// Name implements Provider.
func (p *MoMoProvider) Name() string { return "momo" }

// momoCreateRequest is the create-payment request body.
type momoCreateRequest struct {
	PartnerCode string `json:"partnerCode"`
	AccessKey   string `json:"accessKey"`
	RequestID   string `json:"requestId"`
	Amount      int64  `json:"amount"`
	OrderID     string `json:"orderId"`
	OrderInfo   string `json:"orderInfo"`
	RedirectURL string `json:"redirectUrl"`
	IPNURL      string `json:"ipnUrl"`
	RequestType string `json:"requestType"`
	ExtraData   string `json:"extraData"`
	Lang        string `json:"lang"`
	Signature   string `json:"signature"`
}

// momoCreateResponse is the create-payment response body.
type momoCreateResponse struct {
	ResultCode int    `json:"resultCode"`
	Message    string `json:"message"`
	PayURL     string `json:"payUrl"`
	RequestID  string `json:"requestId"`
}

// CreatePayment implements Provider. It signs and posts a create-payment
// request and returns the hosted payment page URL.
func (p *MoMoProvider) CreatePayment(ctx context.Context, params CreatePaymentParams) (*PaymentRequest, error) {
	requestID := uuid.New().String()
	req := momoCreateRequest{
		PartnerCode: p.config.PartnerCode,
		AccessKey:   p.config.AccessKey,
		RequestID:   requestID,
		Amount:      params.AmountCents,
		OrderID:     params.OrderID.String(),
		OrderInfo:   params.OrderInfo,
		RedirectURL: params.RedirectURL,
		IPNURL:      params.NotifyURL,
		RequestType: "captureWallet",
		ExtraData:   "",
		Lang:        "vi",
	}
	req.Signature = p.signCreateRequest(req)

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("momo: marshal create request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("momo: build create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("momo: create payment: %w", err)
	}
	defer resp.Body.Close()

	var created momoCreateResponse
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return nil, fmt.Errorf("momo: decode create response: %w", err)
	}
	if created.ResultCode != MoMoResultSuccess {
		return nil, fmt.Errorf("momo: create payment rejected: %d %s", created.ResultCode, created.Message)
	}

	return &PaymentRequest{PayURL: created.PayURL, RequestID: requestID}, nil
}

// MoMoIPN is the instant payment notification MoMo posts to the webhook
// endpoint after the customer completes or abandons payment.
type MoMoIPN struct {
	PartnerCode  string `json:"partnerCode"`
	OrderID      string `json:"orderId"`
	RequestID    string `json:"requestId"`
	Amount       int64  `json:"amount"`
	OrderInfo    string `json:"orderInfo"`
	OrderType    string `json:"orderType"`
	TransID      int64  `json:"transId"`
	ResultCode   int    `json:"resultCode"`
	Message      string `json:"message"`
	PayType      string `json:"payType"`
	ResponseTime int64  `json:"responseTime"`
	ExtraData    string `json:"extraData"`
	Signature    string `json:"signature"`
}

// Succeeded reports whether the notification confirms a completed payment.
func (n *MoMoIPN) Succeeded() bool {
	return n.ResultCode == MoMoResultSuccess
}

// VerifyIPN recomputes the expected signature over the notification and
// compares it in constant time. A mismatch means the notification was not
// produced with our shared secret and must be ignored.
func (p *MoMoProvider) VerifyIPN(n *MoMoIPN) error {
	expected := p.signIPN(n)
	if !hmac.Equal([]byte(expected), []byte(n.Signature)) {
		return domain.ErrSignatureMismatch
	}
	return nil
}

// signIPN builds the raw signature string in MoMo's documented key order
// and returns its hex HMAC-SHA256.
func (p *MoMoProvider) signIPN(n *MoMoIPN) string {
	raw := "accessKey=" + p.config.AccessKey +
		"&amount=" + strconv.FormatInt(n.Amount, 10) +
		"&extraData=" + n.ExtraData +
		"&message=" + n.Message +
		"&orderId=" + n.OrderID +
		"&orderInfo=" + n.OrderInfo +
		"&orderType=" + n.OrderType +
		"&partnerCode=" + n.PartnerCode +
		"&payType=" + n.PayType +
		"&requestId=" + n.RequestID +
		"&responseTime=" + strconv.FormatInt(n.ResponseTime, 10) +
		"&resultCode=" + strconv.Itoa(n.ResultCode) +
		"&transId=" + strconv.FormatInt(n.TransID, 10)
	return p.hmacHex(raw)
}

// signCreateRequest signs an outbound create-payment request.
func (p *MoMoProvider) signCreateRequest(r momoCreateRequest) string {
	raw := "accessKey=" + p.config.AccessKey +
		"&amount=" + strconv.FormatInt(r.Amount, 10) +
		"&extraData=" + r.ExtraData +
		"&ipnUrl=" + r.IPNURL +
		"&orderId=" + r.OrderID +
		"&orderInfo=" + r.OrderInfo +
		"&partnerCode=" + r.PartnerCode +
		"&redirectUrl=" + r.RedirectURL +
		"&requestId=" + r.RequestID +
		"&requestType=" + r.RequestType
	return p.hmacHex(raw)
}

func (p *MoMoProvider) hmacHex(raw string) string {
	mac := hmac.New(sha256.New, []byte(p.config.SecretKey))
	mac.Write([]byte(raw))
	return hex.EncodeToString(mac.Sum(nil))
}

// Outcome normalizes a verified IPN into a domain payment outcome.
// Returns an error if the order id is not a valid UUID.
func (n *MoMoIPN) Outcome() (domain.PaymentOutcome, error) {
	orderID, err := uuid.Parse(n.OrderID)
	if err != nil {
		return domain.PaymentOutcome{}, fmt.Errorf("momo: invalid order id %q: %w", n.OrderID, err)
	}
	return domain.PaymentOutcome{
		OrderID:       orderID,
		Succeeded:     n.Succeeded(),
		TransactionID: strconv.FormatInt(n.TransID, 10),
		Provider:      "momo",
		Message:       n.Message,
	}, nil
}
