package notify

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/clinicore/consulta-engine/pkg/config"
)

func sign(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func postWebhook(t *testing.T, handler http.Handler, body []byte, signature string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/summary-ready", bytes.NewReader(body))
	if signature != "" {
		req.Header.Set(SignatureHeader, signature)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestWebhookPublishesSignedDelivery(t *testing.T) {
	secret := "webhook-secret"
	hub := NewHub()
	source := NewWebhookSource(&config.NotifyConfig{WebhookSecret: secret}, hub, nil)

	encounterID := uuid.New()
	ch, cancel := hub.Subscribe(encounterID)
	defer cancel()

	body := []byte(`{"consultation_id":"` + encounterID.String() + `"}`)
	resp := postWebhook(t, source.echo, body, sign(secret, body))
	if resp.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", resp.Code, resp.Body.String())
	}

	select {
	case sig := <-ch:
		if sig.EncounterID != encounterID || sig.Source != SourceWebhook {
			t.Fatalf("unexpected signal %+v", sig)
		}
	default:
		t.Fatal("signal not published")
	}
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	hub := NewHub()
	source := NewWebhookSource(&config.NotifyConfig{WebhookSecret: "right"}, hub, nil)

	encounterID := uuid.New()
	ch, cancel := hub.Subscribe(encounterID)
	defer cancel()

	body := []byte(`{"consultation_id":"` + encounterID.String() + `"}`)

	if resp := postWebhook(t, source.echo, body, sign("wrong", body)); resp.Code != http.StatusUnauthorized {
		t.Fatalf("forged signature accepted: %d", resp.Code)
	}
	if resp := postWebhook(t, source.echo, body, ""); resp.Code != http.StatusUnauthorized {
		t.Fatalf("missing signature accepted: %d", resp.Code)
	}

	select {
	case sig := <-ch:
		t.Fatalf("signal published for rejected delivery: %+v", sig)
	default:
	}
}

func TestWebhookRejectsMalformedPayload(t *testing.T) {
	secret := "webhook-secret"
	source := NewWebhookSource(&config.NotifyConfig{WebhookSecret: secret}, NewHub(), nil)

	body := []byte(`{"consultation_id":"not-a-uuid"}`)
	if resp := postWebhook(t, source.echo, body, sign(secret, body)); resp.Code != http.StatusBadRequest {
		t.Fatalf("malformed id accepted: %d", resp.Code)
	}
}
