package queue

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/clinicore/consulta-engine/errors"
	"github.com/clinicore/consulta-engine/internal/adapter/restapi"
	"github.com/clinicore/consulta-engine/internal/domain/entities"
	"github.com/clinicore/consulta-engine/pkg/config"
)

// AdvanceHandler is invoked when auto-advance calls the next waiting
// patient, so the host can open a session for the returned encounter.
type AdvanceHandler func(entry *entities.QueueEntry, encounter *entities.Encounter)

// Coordinator owns the ordered waiting list and its call/return/
// finalize transitions. The backend is the source of truth: the local
// view is only ever replaced wholesale by a refetch, never patched
// optimistically.
type Coordinator struct {
	api    *restapi.Client
	cfg    config.QueueConfig
	logger *zap.Logger

	mu        sync.Mutex
	entries   []*entities.QueueEntry
	inflight  map[uuid.UUID]string
	lifecycle context.Context

	onAdvance AdvanceHandler
}

// NewCoordinator creates a queue coordinator.
func NewCoordinator(api *restapi.Client, cfg config.QueueConfig, logger *zap.Logger) *Coordinator {
	return &Coordinator{
		api:       api,
		cfg:       cfg,
		logger:    logger,
		inflight:  make(map[uuid.UUID]string),
		lifecycle: context.Background(),
	}
}

// SetAdvanceHandler registers the auto-advance callback.
func (c *Coordinator) SetAdvanceHandler(h AdvanceHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onAdvance = h
}

// StartPolling refreshes the active view on the poll interval until ctx
// is cancelled. The same ctx bounds the coordinator's background work,
// such as auto-advance.
func (c *Coordinator) StartPolling(ctx context.Context) {
	c.mu.Lock()
	c.lifecycle = ctx
	c.mu.Unlock()

	go func() {
		ticker := time.NewTicker(c.cfg.PollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := c.Refresh(ctx); err != nil {
					if c.logger != nil {
						c.logger.Warn("queue poll failed", zap.Error(err))
					}
				}
			}
		}
	}()
}

// Refresh re-reads the queue from the backend and replaces the local
// view. On failure the previous view is kept untouched.
func (c *Coordinator) Refresh(ctx context.Context) ([]*entities.QueueEntry, error) {
	entries, err := c.api.ListQueue(ctx)
	if err != nil {
		return nil, err
	}

	active := make([]*entities.QueueEntry, 0, len(entries))
	for _, e := range entries {
		if e.IsActive() {
			active = append(active, e)
		}
	}
	sortByCallOrder(active)

	c.mu.Lock()
	c.entries = active
	c.mu.Unlock()
	return c.ListActive(), nil
}

// ListActive returns the cached active entries, priority first and
// earliest scheduled time within a priority.
func (c *Coordinator) ListActive() []*entities.QueueEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*entities.QueueEntry, len(c.entries))
	copy(out, c.entries)
	return out
}

// sortByCallOrder orders by priority desc, then scheduled time asc.
func sortByCallOrder(entries []*entities.QueueEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Priority != entries[j].Priority {
			return entries[i].Priority > entries[j].Priority
		}
		return entries[i].ScheduledTime.Before(entries[j].ScheduledTime)
	})
}

// Call marks the entry called and resolves its encounter. Calling an
// entry already in progress resumes it. On failure the local view is
// untouched; the next poll observes the true server state.
func (c *Coordinator) Call(ctx context.Context, entry *entities.QueueEntry) (*entities.Encounter, error) {
	if entry.Status != entities.QueueStatusInProgress &&
		!entry.Status.CanTransitionTo(entities.QueueStatusCalled) {
		return nil, errors.ErrIllegalTransition("queue entry", string(entry.Status), string(entities.QueueStatusCalled))
	}

	if err := c.begin(entry.ID, "Call"); err != nil {
		return nil, err
	}
	defer c.end(entry.ID)

	encounter, err := c.api.CallPatient(ctx, entry.PatientID)
	if err != nil {
		return nil, err
	}

	if _, err := c.Refresh(ctx); err != nil && c.logger != nil {
		c.logger.Warn("queue refresh after call failed", zap.Error(err))
	}

	if c.logger != nil {
		c.logger.Info("patient called",
			zap.String("entry_id", entry.ID.String()),
			zap.String("encounter_id", encounter.ID.String()),
		)
	}
	return encounter, nil
}

// Return reverts the encounter's entry to waiting without discarding
// the encounter's saved data.
func (c *Coordinator) Return(ctx context.Context, encounterID uuid.UUID) error {
	if err := c.begin(encounterID, "Return"); err != nil {
		return err
	}
	defer c.end(encounterID)

	if err := c.api.ReturnEncounter(ctx, encounterID); err != nil {
		return err
	}
	if _, err := c.Refresh(ctx); err != nil && c.logger != nil {
		c.logger.Warn("queue refresh after return failed", zap.Error(err))
	}
	return nil
}

// Finalize transitions the encounter's entry to completed and, if
// auto-advance is enabled, calls the next waiting entry after a short
// settle delay.
func (c *Coordinator) Finalize(ctx context.Context, encounterID uuid.UUID) error {
	if err := c.begin(encounterID, "Finalize"); err != nil {
		return err
	}
	defer c.end(encounterID)

	if err := c.api.FinalizeEncounter(ctx, encounterID); err != nil {
		return err
	}
	if _, err := c.Refresh(ctx); err != nil && c.logger != nil {
		c.logger.Warn("queue refresh after finalize failed", zap.Error(err))
	}

	if c.cfg.AutoAdvance {
		// Advance outlives the finalize request: it runs on the
		// coordinator's lifecycle context, not the caller's.
		c.mu.Lock()
		lifecycle := c.lifecycle
		c.mu.Unlock()
		go c.advance(lifecycle)
	}
	return nil
}

// advance waits out the settle delay and calls the next waiting entry.
func (c *Coordinator) advance(ctx context.Context) {
	select {
	case <-ctx.Done():
		return
	case <-time.After(c.cfg.SettleDelay):
	}

	entries, err := c.Refresh(ctx)
	if err != nil {
		if c.logger != nil {
			c.logger.Warn("auto-advance refresh failed", zap.Error(err))
		}
		return
	}

	var next *entities.QueueEntry
	for _, e := range entries {
		if e.Status == entities.QueueStatusWaiting {
			next = e
			break
		}
	}
	if next == nil {
		return
	}

	encounter, err := c.Call(ctx, next)
	if err != nil {
		if c.logger != nil {
			c.logger.Warn("auto-advance call failed",
				zap.String("entry_id", next.ID.String()),
				zap.Error(err),
			)
		}
		return
	}

	c.mu.Lock()
	handler := c.onAdvance
	c.mu.Unlock()
	if handler != nil {
		handler(next, encounter)
	}
}

// begin takes the per-aggregate in-flight guard. A second call or
// finalize while one is running is rejected instead of queued, the
// engine-side equivalent of disabling the triggering control.
func (c *Coordinator) begin(key uuid.UUID, operation string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if op, busy := c.inflight[key]; busy {
		return errors.ErrOperationInFlight(op, key.String())
	}
	c.inflight[key] = operation
	return nil
}

func (c *Coordinator) end(key uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.inflight, key)
}
