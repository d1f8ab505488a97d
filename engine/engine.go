// Package engine assembles the consultation engine: the queue
// coordinator, session manager, recording pipeline, summary notifier,
// attachment store and telemedicine bridge, wired to one backend client
// and one notification hub. The engine is embedded by a host
// application; it has no entry point of its own.
package engine

import (
	"context"

	"go.uber.org/zap"

	"github.com/clinicore/consulta-engine/internal/adapter/restapi"
	"github.com/clinicore/consulta-engine/internal/infrastructure/capture"
	"github.com/clinicore/consulta-engine/internal/infrastructure/draftstore"
	"github.com/clinicore/consulta-engine/internal/infrastructure/notify"
	"github.com/clinicore/consulta-engine/internal/usecase/attachment"
	"github.com/clinicore/consulta-engine/internal/usecase/queue"
	"github.com/clinicore/consulta-engine/internal/usecase/recording"
	"github.com/clinicore/consulta-engine/internal/usecase/session"
	"github.com/clinicore/consulta-engine/internal/usecase/summary"
	"github.com/clinicore/consulta-engine/internal/usecase/telemed"
	"github.com/clinicore/consulta-engine/pkg/authtoken"
	"github.com/clinicore/consulta-engine/pkg/config"
)

// Engine is the assembled consultation engine.
type Engine struct {
	cfg    *config.Config
	logger *zap.Logger

	api     *restapi.Client
	hub     *notify.Hub
	redis   *notify.RedisSource
	webhook *notify.WebhookSource
	drafts  *draftstore.Store

	Queue       *queue.Coordinator
	Sessions    *session.Manager
	Recordings  *recording.Pipeline
	Summaries   *summary.Notifier
	Attachments *attachment.Store
	Telemed     *telemed.Bridge
}

// New assembles an engine from configuration. The capture device comes
// from the host; passing nil disables recording. The draft journal and
// the push/webhook notification sources are enabled by their config
// being present.
func New(cfg *config.Config, device capture.Device, logger *zap.Logger) (*Engine, error) {
	tokens := authtoken.NewStaticSource(cfg.API.BearerToken)
	api := restapi.NewClient(&cfg.API, tokens, logger)
	hub := notify.NewHub()

	var drafts *draftstore.Store
	if cfg.Draft.Path != "" {
		var err error
		drafts, err = draftstore.Open(cfg.Draft.Path)
		if err != nil {
			return nil, err
		}
	}

	e := &Engine{
		cfg:    cfg,
		logger: logger,
		api:    api,
		hub:    hub,
		drafts: drafts,
	}

	if cfg.Notify.RedisAddr != "" {
		e.redis = notify.NewRedisSource(&cfg.Notify, hub, logger)
	}
	if cfg.Notify.WebhookAddr != "" {
		e.webhook = notify.NewWebhookSource(&cfg.Notify, hub, logger)
	}

	e.Queue = queue.NewCoordinator(api, cfg.Queue, logger)
	e.Sessions = session.NewManager(api, e.Queue, drafts, cfg.Session, logger)
	if device != nil {
		e.Recordings = recording.NewPipeline(api, device, logger)
	}
	e.Summaries = summary.NewNotifier(api, hub, logger)
	e.Attachments = attachment.NewStore(api, logger)
	e.Telemed = telemed.NewBridge(api, cfg.Telemed, logger)

	return e, nil
}

// Hub exposes the notification broker so hosts can publish manual
// refresh signals.
func (e *Engine) Hub() notify.Broker {
	return e.hub
}

// Start launches the queue poller and the configured notification
// sources. It returns immediately; the goroutines run until ctx is
// cancelled.
func (e *Engine) Start(ctx context.Context) {
	e.Queue.StartPolling(ctx)

	if e.redis != nil {
		go func() {
			if err := e.redis.Run(ctx); err != nil && ctx.Err() == nil && e.logger != nil {
				e.logger.Error("redis notification source stopped", zap.Error(err))
			}
		}()
	}
	if e.webhook != nil {
		go func() {
			if err := e.webhook.Start(e.cfg.Notify.WebhookAddr); err != nil && e.logger != nil {
				e.logger.Error("webhook notification source stopped", zap.Error(err))
			}
		}()
	}

	if e.logger != nil {
		e.logger.Info("consultation engine started",
			zap.String("backend", e.cfg.API.BaseURL),
			zap.Bool("redis_notifications", e.redis != nil),
			zap.Bool("webhook_notifications", e.webhook != nil),
		)
	}
}

// Shutdown closes the open session without finalizing it, aborts any
// active recording with the device released, and stops the notification
// sources.
func (e *Engine) Shutdown(ctx context.Context) error {
	if s := e.Sessions.Current(); s != nil {
		s.Close()
	}
	if e.Recordings != nil {
		e.Recordings.Abort()
	}

	var firstErr error
	if e.webhook != nil {
		if err := e.webhook.Shutdown(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if e.redis != nil {
		if err := e.redis.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if e.drafts != nil {
		if err := e.drafts.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
