package webhooks

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	gatewaywebhook "github.com/freshmarket/grocery-backend/internal/webhooks/gateway"
	"github.com/freshmarket/grocery-backend/pkg/security"
)

const testSecret = "whsec_test"

type stubWebhookService struct {
	events []*gatewaywebhook.Event
	err    error
}

func (s *stubWebhookService) HandleEvent(ctx context.Context, event *gatewaywebhook.Event) error {
	s.events = append(s.events, event)
	return s.err
}

type stubGuard struct {
	seen     map[string]bool
	deleted  []string
	checkErr error
}

func newStubGuard() *stubGuard {
	return &stubGuard{seen: map[string]bool{}}
}

func (g *stubGuard) CheckAndMark(ctx context.Context, id string) (bool, error) {
	if g.checkErr != nil {
		return false, g.checkErr
	}
	if g.seen[id] {
		return true, nil
	}
	g.seen[id] = true
	return false, nil
}

func (g *stubGuard) Delete(ctx context.Context, id string) error {
	g.deleted = append(g.deleted, id)
	delete(g.seen, id)
	return nil
}

const capturedBody = `{"event":"payment.captured","payload":{"payment":{"entity":{"id":"pay_1","order_id":"order_1","status":"captured"}}}}`

func signedRequest(body, eventID string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/payment", strings.NewReader(body))
	req.Header.Set(SignatureHeader, security.SignHMAC(testSecret, []byte(body)))
	if eventID != "" {
		req.Header.Set(EventIDHeader, eventID)
	}
	return req
}

func TestPaymentWebhookProcessesCapturedEvent(t *testing.T) {
	svc := &stubWebhookService{}
	resp := httptest.NewRecorder()

	PaymentWebhook(svc, testSecret, newStubGuard(), nil).ServeHTTP(resp, signedRequest(capturedBody, "evt_1"))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	if !strings.Contains(resp.Body.String(), `"ok":true`) {
		t.Fatalf("expected ack body, got %s", resp.Body.String())
	}
	if len(svc.events) != 1 || svc.events[0].Payload.Payment.Entity.OrderID != "order_1" {
		t.Fatalf("unexpected events %+v", svc.events)
	}
}

func TestPaymentWebhookRejectsBadSignature(t *testing.T) {
	svc := &stubWebhookService{}
	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/payment", strings.NewReader(capturedBody))
	req.Header.Set(SignatureHeader, security.SignHMAC("other-secret", []byte(capturedBody)))
	resp := httptest.NewRecorder()

	PaymentWebhook(svc, testSecret, newStubGuard(), nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
	if len(svc.events) != 0 {
		t.Fatal("unsigned payload must not be processed")
	}
}

func TestPaymentWebhookRequiresSignatureAndSecret(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/payment", strings.NewReader(capturedBody))
	resp := httptest.NewRecorder()
	PaymentWebhook(&stubWebhookService{}, testSecret, newStubGuard(), nil).ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("missing signature: expected 400 got %d", resp.Code)
	}

	resp = httptest.NewRecorder()
	PaymentWebhook(&stubWebhookService{}, "", newStubGuard(), nil).ServeHTTP(resp, signedRequest(capturedBody, ""))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("missing secret: expected 400 got %d", resp.Code)
	}
}

func TestPaymentWebhookDeduplicatesDeliveries(t *testing.T) {
	svc := &stubWebhookService{}
	guard := newStubGuard()
	handler := PaymentWebhook(svc, testSecret, guard, nil)

	for i := 0; i < 2; i++ {
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, signedRequest(capturedBody, "evt_dup"))
		if resp.Code != http.StatusOK {
			t.Fatalf("delivery %d: expected 200 got %d", i, resp.Code)
		}
	}
	if len(svc.events) != 1 {
		t.Fatalf("expected one processed event, got %d", len(svc.events))
	}
}

func TestPaymentWebhookFallsBackToBodyDigest(t *testing.T) {
	svc := &stubWebhookService{}
	guard := newStubGuard()
	handler := PaymentWebhook(svc, testSecret, guard, nil)

	handler.ServeHTTP(httptest.NewRecorder(), signedRequest(capturedBody, ""))
	handler.ServeHTTP(httptest.NewRecorder(), signedRequest(capturedBody, ""))

	if len(svc.events) != 1 {
		t.Fatalf("expected body digest dedupe, got %d events", len(svc.events))
	}
	if !guard.seen[gatewaywebhook.DeliveryID("", []byte(capturedBody))] {
		t.Fatal("expected digest delivery id to be marked")
	}
}

func TestPaymentWebhookUnmarksOnFailure(t *testing.T) {
	svc := &stubWebhookService{err: errors.New("db down")}
	guard := newStubGuard()
	resp := httptest.NewRecorder()

	PaymentWebhook(svc, testSecret, guard, nil).ServeHTTP(resp, signedRequest(capturedBody, "evt_retry"))

	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 got %d", resp.Code)
	}
	if len(guard.deleted) != 1 || guard.deleted[0] != "evt_retry" {
		t.Fatalf("expected mark to be deleted, got %v", guard.deleted)
	}
	if guard.seen["evt_retry"] {
		t.Fatal("retry must be processable again")
	}
}

func TestPaymentWebhookAcksUnparseableSignedPayload(t *testing.T) {
	svc := &stubWebhookService{}
	resp := httptest.NewRecorder()

	PaymentWebhook(svc, testSecret, newStubGuard(), nil).ServeHTTP(resp, signedRequest("not json", "evt_bad"))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if len(svc.events) != 0 {
		t.Fatal("unparseable payload must not reach the service")
	}
}

func TestPaymentWebhookGuardFailureIsDependencyError(t *testing.T) {
	guard := newStubGuard()
	guard.checkErr = errors.New("redis down")
	resp := httptest.NewRecorder()

	PaymentWebhook(&stubWebhookService{}, testSecret, guard, nil).ServeHTTP(resp, signedRequest(capturedBody, "evt_x"))

	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 got %d", resp.Code)
	}
}
