package summary

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/clinicore/consulta-engine/errors"
	"github.com/clinicore/consulta-engine/internal/adapter/restapi"
	"github.com/clinicore/consulta-engine/internal/domain/entities"
	"github.com/clinicore/consulta-engine/internal/infrastructure/notify"
	"github.com/clinicore/consulta-engine/pkg/validator"
)

// UpdateHandler is invoked with the refetched summary list after each
// reconcile, so the host can re-render.
type UpdateHandler func(encounterID uuid.UUID, summaries []*entities.AISummary)

// Notifier listens for summary-ready signals and runs the accept/reject
// workflow. Signals carry no payload; every one triggers a refetch and
// the refetched state replaces the local view wholesale.
type Notifier struct {
	api      *restapi.Client
	broker   notify.Broker
	logger   *zap.Logger
	validate *validator.CustomValidator

	mu        sync.Mutex
	summaries map[uuid.UUID][]*entities.AISummary
	accepted  map[uuid.UUID]*entities.AISummary
}

// NewNotifier creates a summary notifier.
func NewNotifier(api *restapi.Client, broker notify.Broker, logger *zap.Logger) *Notifier {
	return &Notifier{
		api:       api,
		broker:    broker,
		logger:    logger,
		validate:  validator.New(),
		summaries: make(map[uuid.UUID][]*entities.AISummary),
		accepted:  make(map[uuid.UUID]*entities.AISummary),
	}
}

// Watch subscribes to the encounter's signals and reconciles on each
// one until the returned cancel function runs. An immediate reconcile
// catches summaries that became ready before the subscription existed.
func (n *Notifier) Watch(ctx context.Context, encounter *entities.Encounter, onUpdate UpdateHandler) func() {
	signals, unsubscribe := n.broker.Subscribe(encounter.ID)
	watchCtx, cancel := context.WithCancel(ctx)

	go func() {
		if err := n.Reconcile(watchCtx, encounter, onUpdate); err != nil && n.logger != nil {
			n.logger.Warn("initial summary reconcile failed",
				zap.String("encounter_id", encounter.ID.String()),
				zap.Error(err),
			)
		}
		for {
			select {
			case <-watchCtx.Done():
				return
			case sig, ok := <-signals:
				if !ok {
					return
				}
				if err := n.Reconcile(watchCtx, encounter, onUpdate); err != nil && n.logger != nil {
					n.logger.Warn("summary reconcile failed",
						zap.String("encounter_id", encounter.ID.String()),
						zap.String("source", sig.Source),
						zap.Error(err),
					)
				}
			}
		}
	}()

	return func() {
		cancel()
		unsubscribe()
	}
}

// Reconcile refetches the encounter's summaries and replaces the local
// view. A ready summary moves the encounter's awaiting recording to
// done; a failed one moves it to error.
func (n *Notifier) Reconcile(ctx context.Context, encounter *entities.Encounter, onUpdate UpdateHandler) error {
	summaries, err := n.api.ListSummaries(ctx, encounter.ID)
	if err != nil {
		return err
	}

	n.mu.Lock()
	// Local acceptance state survives the refetch: the server list does
	// not know about client-side accepted/rejected flags.
	for _, s := range summaries {
		if prev := n.accepted[s.ID]; prev != nil {
			s.Accepted = prev.Accepted
			s.AcceptedPayload = prev.AcceptedPayload
			s.Rejected = prev.Rejected
		}
	}
	n.summaries[encounter.ID] = summaries
	n.mu.Unlock()

	n.settleRecording(encounter, summaries)

	if onUpdate != nil {
		onUpdate(encounter.ID, summaries)
	}
	return nil
}

// settleRecording completes the recording lifecycle from the summary
// outcome the server reported. It runs on the Watch goroutine, so every
// read and write of the recording goes through the entity's own lock.
func (n *Notifier) settleRecording(encounter *entities.Encounter, summaries []*entities.AISummary) {
	rec := encounter.Recording
	if rec == nil || rec.CurrentState() != entities.RecordingStateAwaitingProcessing {
		return
	}
	for _, s := range summaries {
		if s.RecordingID != rec.ID {
			continue
		}
		switch s.Status {
		case entities.SummaryStatusDone:
			if err := rec.Transition(entities.RecordingStateDone); err == nil && n.logger != nil {
				n.logger.Info("summary ready",
					zap.String("recording_id", rec.ID.String()),
					zap.String("summary_id", s.ID.String()),
				)
			}
		case entities.SummaryStatusError:
			rec.MarkError("summarization failed")
		}
		return
	}
}

// Summaries returns the cached summary view for an encounter.
func (n *Notifier) Summaries(encounterID uuid.UUID) []*entities.AISummary {
	n.mu.Lock()
	defer n.mu.Unlock()
	cached := n.summaries[encounterID]
	out := make([]*entities.AISummary, len(cached))
	copy(out, cached)
	return out
}

// Accept commits the (possibly edited) payload to the server and merges
// it into the encounter notes. Accepting the same payload twice is a
// no-op; accepting a different payload after acceptance is rejected,
// the summary is immutable once accepted.
func (n *Notifier) Accept(ctx context.Context, encounter *entities.Encounter, s *entities.AISummary, payload entities.SummaryPayload) error {
	n.mu.Lock()
	if s.Accepted {
		already := s.AcceptedPayload != nil && s.AcceptedPayload.Equal(payload)
		n.mu.Unlock()
		if already {
			return nil
		}
		return errors.ErrSummaryImmutable(s.ID.String())
	}
	if !s.IsReady() {
		n.mu.Unlock()
		return errors.ErrConflict("Summary is not ready for acceptance").
			WithDetail("status", string(s.Status))
	}
	n.mu.Unlock()

	// The clinician may have edited the payload; check it before it
	// reaches the chart.
	if err := n.validate.Validate(&payload); err != nil {
		return errors.ErrValidation("Summary payload failed validation").
			WithDetail("cause", err.Error())
	}

	if err := n.api.AcceptSummary(ctx, s.ID, payload); err != nil {
		return err
	}

	n.mu.Lock()
	s.MarkAccepted(payload)
	n.accepted[s.ID] = s
	n.mu.Unlock()

	encounter.ApplySummary(s, payload)

	if n.logger != nil {
		n.logger.Info("summary accepted",
			zap.String("summary_id", s.ID.String()),
			zap.String("encounter_id", encounter.ID.String()),
		)
	}
	return nil
}

// Reject discards the summary client-side without a server call. The
// encounter's recording settles to done so a new one may start.
func (n *Notifier) Reject(encounter *entities.Encounter, s *entities.AISummary) error {
	n.mu.Lock()
	if s.Accepted {
		n.mu.Unlock()
		return errors.ErrSummaryImmutable(s.ID.String())
	}
	s.MarkRejected()
	n.accepted[s.ID] = s
	n.mu.Unlock()

	rec := encounter.Recording
	if rec != nil && rec.CurrentState() == entities.RecordingStateAwaitingProcessing {
		_ = rec.Transition(entities.RecordingStateDone)
	}

	if n.logger != nil {
		n.logger.Info("summary rejected",
			zap.String("summary_id", s.ID.String()))
	}
	return nil
}
