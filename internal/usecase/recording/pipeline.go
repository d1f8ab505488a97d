package recording

import (
	"bytes"
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/clinicore/consulta-engine/errors"
	"github.com/clinicore/consulta-engine/internal/adapter/restapi"
	"github.com/clinicore/consulta-engine/internal/domain/entities"
	"github.com/clinicore/consulta-engine/internal/infrastructure/capture"
)

// Pipeline drives one encounter's recording through
// consent → capture → stop → two-phase upload → awaiting_processing.
// The capture device is exclusive and is released on every exit from
// the recording state, error paths included.
type Pipeline struct {
	api    *restapi.Client
	device capture.Device
	logger *zap.Logger

	mu        sync.Mutex
	rec       *entities.Recording
	track     capture.Track
	stopWatch chan struct{}
}

// NewPipeline creates a recording pipeline.
func NewPipeline(api *restapi.Client, device capture.Device, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		api:    api,
		device: device,
		logger: logger,
	}
}

// Recording returns the pipeline's current recording, or nil.
func (p *Pipeline) Recording() *entities.Recording {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rec
}

// State returns the current recording state, or idle when no recording
// was ever started.
func (p *Pipeline) State() entities.RecordingState {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.rec == nil {
		return entities.RecordingStateIdle
	}
	return p.rec.CurrentState()
}

// Start begins a new recording for the encounter, entering
// consent_pending. Starting while another recording is non-terminal is
// rejected before any device or network access.
func (p *Pipeline) Start(encounter *entities.Encounter) (*entities.Recording, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.rec != nil && p.rec.IsActive() {
		return nil, errors.ErrRecordingInProgress(encounter.ID.String())
	}
	if encounter.HasActiveRecording() {
		return nil, errors.ErrRecordingInProgress(encounter.ID.String())
	}

	rec := entities.NewRecording(encounter.ID)
	if err := rec.Transition(entities.RecordingStateConsentPending); err != nil {
		return nil, err
	}
	p.rec = rec
	encounter.Recording = rec
	return rec, nil
}

// RefuseConsent aborts a pending consent back to idle.
func (p *Pipeline) RefuseConsent() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.rec == nil || p.rec.CurrentState() != entities.RecordingStateConsentPending {
		return errors.ErrConflict("No consent pending")
	}
	return p.rec.Transition(entities.RecordingStateIdle)
}

// GrantConsent records consent and acquires the capture device. Device
// failure aborts back to idle with nothing held.
func (p *Pipeline) GrantConsent(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	rec := p.rec
	if rec == nil || rec.CurrentState() != entities.RecordingStateConsentPending {
		return errors.ErrConsentNotGranted()
	}
	rec.ConsentGiven = true

	track, err := p.device.Acquire(ctx)
	if err != nil {
		// DeviceError aborts to idle; the device was never held.
		if terr := rec.Transition(entities.RecordingStateIdle); terr != nil && p.logger != nil {
			p.logger.Warn("recording state reset failed", zap.Error(terr))
		}
		return errors.ErrDevice(err)
	}

	if err := rec.Transition(entities.RecordingStateRecording); err != nil {
		_ = track.Close()
		return err
	}
	rec.MarkStarted()
	p.track = track
	p.stopWatch = make(chan struct{})
	go p.watchDevice(track, p.stopWatch)

	if p.logger != nil {
		p.logger.Info("recording started",
			zap.String("recording_id", rec.ID.String()),
			zap.String("encounter_id", rec.EncounterID.String()),
		)
	}
	return nil
}

// watchDevice observes mid-capture device failure (permission revoked,
// hardware gone) and fails the recording with the track released.
func (p *Pipeline) watchDevice(track capture.Track, stop <-chan struct{}) {
	select {
	case <-stop:
		return
	case <-track.Done():
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.track != track {
		return
	}
	p.track = nil
	_ = track.Close()

	reason := "capture device failed"
	if err := track.Err(); err != nil {
		reason = err.Error()
	}
	p.rec.MarkError(reason)

	if p.logger != nil {
		p.logger.Error("capture device failed mid-recording",
			zap.String("recording_id", p.rec.ID.String()),
			zap.String("reason", reason),
		)
	}
}

// Stop ends the capture, then runs the two-phase upload: request a
// presigned target, transfer the blob, and notify completion, leaving
// the recording awaiting server-side processing.
func (p *Pipeline) Stop(ctx context.Context) error {
	p.mu.Lock()
	rec := p.rec
	track := p.track
	if rec == nil || rec.CurrentState() != entities.RecordingStateRecording || track == nil {
		p.mu.Unlock()
		return errors.ErrConflict("No active recording to stop")
	}
	close(p.stopWatch)
	p.stopWatch = nil
	p.track = nil

	blob, err := track.Stop()
	if err != nil {
		_ = track.Close()
		rec.MarkError(err.Error())
		p.mu.Unlock()
		return errors.ErrDevice(err)
	}
	if terr := rec.Transition(entities.RecordingStateStopped); terr != nil {
		p.mu.Unlock()
		return terr
	}
	rec.MarkStopped(int64(len(blob)), p.device.MimeType())
	if terr := rec.Transition(entities.RecordingStateUploading); terr != nil {
		p.mu.Unlock()
		return terr
	}
	p.mu.Unlock()

	if p.logger != nil {
		p.logger.Info("recording stopped, uploading",
			zap.String("recording_id", rec.ID.String()),
			zap.Int("size_bytes", len(blob)),
		)
	}
	return p.upload(ctx, rec, blob)
}

// upload performs the two-phase transfer and completion hand-off.
func (p *Pipeline) upload(ctx context.Context, rec *entities.Recording, blob []byte) error {
	target, err := p.api.StartRecordingUpload(ctx, restapi.StartUploadRequest{
		EncounterID: rec.EncounterID,
		RecordingID: rec.ID,
		MimeType:    rec.MimeType,
		SizeBytes:   rec.SizeBytes,
	})
	if err != nil {
		return p.failUpload(rec, err)
	}

	if err := p.api.PutBlob(ctx, target.PresignedUploadURL, bytes.NewReader(blob), rec.SizeBytes, rec.MimeType); err != nil {
		return p.failUpload(rec, err)
	}

	if err := p.api.CompleteRecording(ctx, rec.ID); err != nil {
		return p.failUpload(rec, err)
	}

	p.mu.Lock()
	err = rec.Transition(entities.RecordingStateAwaitingProcessing)
	p.mu.Unlock()
	if err != nil {
		return err
	}

	if p.logger != nil {
		p.logger.Info("recording handed off for processing",
			zap.String("recording_id", rec.ID.String()))
	}
	return nil
}

func (p *Pipeline) failUpload(rec *entities.Recording, cause error) error {
	p.mu.Lock()
	rec.MarkError(cause.Error())
	p.mu.Unlock()
	return errors.ErrUploadFailed(rec.ID.String(), cause)
}

// Reset returns a finished or failed recording to idle so a fresh one
// can start.
func (p *Pipeline) Reset() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.rec == nil {
		return nil
	}
	if !p.rec.CurrentState().IsTerminal() {
		return errors.ErrConflict("Recording is still active")
	}
	return p.rec.Transition(entities.RecordingStateIdle)
}

// Abort tears the pipeline down with the device released. Safe from any
// state; used when the owning session closes.
func (p *Pipeline) Abort() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopWatch != nil {
		close(p.stopWatch)
		p.stopWatch = nil
	}
	if p.track != nil {
		_ = p.track.Close()
		p.track = nil
	}
	if p.rec != nil && p.rec.IsActive() {
		p.rec.MarkError("recording aborted")
	}
}
