package notify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/clinicore/consulta-engine/pkg/config"
)

// SignatureHeader carries the HMAC-SHA256 hex signature of the webhook body
const SignatureHeader = "X-Consulta-Signature"

// webhookPayload is the body of a summary-ready delivery. It carries
// only the identifier; the summary itself is refetched.
type webhookPayload struct {
	EncounterID string `json:"consultation_id"`
}

// WebhookSource receives summary-ready notifications as signed HTTP
// POSTs for deployments where the summarization service pushes over
// HTTP instead of Redis.
type WebhookSource struct {
	hub    Broker
	secret string
	logger *zap.Logger
	echo   *echo.Echo
}

// NewWebhookSource creates the webhook receiver.
func NewWebhookSource(cfg *config.NotifyConfig, hub Broker, logger *zap.Logger) *WebhookSource {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())

	s := &WebhookSource{
		hub:    hub,
		secret: cfg.WebhookSecret,
		logger: logger,
		echo:   e,
	}
	e.POST("/webhooks/summary-ready", s.handleSummaryReady)
	return s
}

// Start serves the webhook listener until Shutdown.
func (s *WebhookSource) Start(addr string) error {
	if err := s.echo.Start(addr); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops the webhook listener.
func (s *WebhookSource) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// handleSummaryReady verifies the signature and publishes the signal.
func (s *WebhookSource) handleSummaryReady(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "unreadable body"})
	}

	signature := c.Request().Header.Get(SignatureHeader)
	if !VerifyHMAC(s.secret, body, signature) {
		if s.logger != nil {
			s.logger.Warn("rejected webhook with invalid signature")
		}
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid signature"})
	}

	var payload webhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid payload"})
	}
	encounterID, err := uuid.Parse(payload.EncounterID)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid consultation_id"})
	}

	s.hub.Publish(Signal{EncounterID: encounterID, Source: SourceWebhook})
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
