package recording

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/clinicore/consulta-engine/errors"
	"github.com/clinicore/consulta-engine/internal/adapter/restapi"
	"github.com/clinicore/consulta-engine/internal/domain/entities"
	"github.com/clinicore/consulta-engine/internal/infrastructure/capture"
	"github.com/clinicore/consulta-engine/pkg/authtoken"
	"github.com/clinicore/consulta-engine/pkg/config"
)

type fakeTrack struct {
	mu      sync.Mutex
	blob    []byte
	stopErr error
	failure error
	done    chan struct{}
	closed  bool
}

func newFakeTrack(blob []byte) *fakeTrack {
	return &fakeTrack{blob: blob, done: make(chan struct{})}
}

func (t *fakeTrack) Stop() ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	return t.blob, t.stopErr
}

func (t *fakeTrack) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	return nil
}

func (t *fakeTrack) Done() <-chan struct{} { return t.done }

func (t *fakeTrack) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.failure
}

func (t *fakeTrack) fail(err error) {
	t.mu.Lock()
	t.failure = err
	t.mu.Unlock()
	close(t.done)
}

func (t *fakeTrack) isClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

type fakeDevice struct {
	track      *fakeTrack
	acquireErr error
	acquired   int
}

func (d *fakeDevice) Acquire(ctx context.Context) (capture.Track, error) {
	d.acquired++
	if d.acquireErr != nil {
		return nil, d.acquireErr
	}
	return d.track, nil
}

func (d *fakeDevice) MimeType() string { return "audio/webm" }

func testAPI(baseURL string) *restapi.Client {
	return restapi.NewClient(&config.APIConfig{
		BaseURL:        baseURL,
		RequestTimeout: 5 * time.Second,
	}, authtoken.NewStaticSource("test-token"), nil)
}

func TestStopWithoutRecordingIsRejected(t *testing.T) {
	p := NewPipeline(testAPI("http://unreachable.invalid"), &fakeDevice{}, nil)
	if err := p.Stop(context.Background()); !errors.IsConflict(err) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestGrantConsentWithoutPendingConsent(t *testing.T) {
	p := NewPipeline(testAPI("http://unreachable.invalid"), &fakeDevice{}, nil)
	if err := p.GrantConsent(context.Background()); !errors.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestRefuseConsentReturnsToIdle(t *testing.T) {
	p := NewPipeline(testAPI("http://unreachable.invalid"), &fakeDevice{}, nil)
	encounter := entities.NewEncounter(uuid.New(), uuid.New(), nil)

	rec, err := p.Start(encounter)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := p.RefuseConsent(); err != nil {
		t.Fatalf("refuse consent: %v", err)
	}
	if rec.CurrentState() != entities.RecordingStateIdle {
		t.Fatalf("state = %s", rec.CurrentState())
	}
	// A fresh recording may start after refusal.
	if _, err := p.Start(encounter); err != nil {
		t.Fatalf("restart after refusal: %v", err)
	}
}

func TestDeviceAcquireFailureAbortsToIdle(t *testing.T) {
	device := &fakeDevice{acquireErr: stderrors.New("permission denied")}
	p := NewPipeline(testAPI("http://unreachable.invalid"), device, nil)
	encounter := entities.NewEncounter(uuid.New(), uuid.New(), nil)

	rec, err := p.Start(encounter)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	err = p.GrantConsent(context.Background())
	if !errors.IsDevice(err) {
		t.Fatalf("expected device error, got %v", err)
	}
	if rec.CurrentState() != entities.RecordingStateIdle {
		t.Fatalf("state = %s, want idle", rec.CurrentState())
	}
}

func TestSecondStartWhileActiveIsRejected(t *testing.T) {
	p := NewPipeline(testAPI("http://unreachable.invalid"), &fakeDevice{}, nil)
	encounter := entities.NewEncounter(uuid.New(), uuid.New(), nil)

	if _, err := p.Start(encounter); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := p.Start(encounter); !errors.IsConflict(err) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestStopUploadHappyPath(t *testing.T) {
	blob := []byte("captured-audio")
	var uploaded []byte
	var uploadContentType string
	completed := 0

	var ts *httptest.Server
	ts = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/record/start":
			var req restapi.StartUploadRequest
			json.NewDecoder(r.Body).Decode(&req)
			if req.SizeBytes != int64(len(blob)) {
				t.Errorf("size_bytes = %d", req.SizeBytes)
			}
			json.NewEncoder(w).Encode(restapi.StartUploadResponse{
				PresignedUploadURL: ts.URL + "/blobstore/" + req.RecordingID.String(),
			})
		case r.Method == http.MethodPut:
			uploaded, _ = io.ReadAll(r.Body)
			uploadContentType = r.Header.Get("Content-Type")
			w.WriteHeader(http.StatusOK)
		case r.Method == http.MethodPost:
			completed++
			w.WriteHeader(http.StatusOK)
		default:
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
	}))
	defer ts.Close()

	device := &fakeDevice{track: newFakeTrack(blob)}
	p := NewPipeline(testAPI(ts.URL), device, nil)
	encounter := entities.NewEncounter(uuid.New(), uuid.New(), nil)

	rec, err := p.Start(encounter)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := p.GrantConsent(context.Background()); err != nil {
		t.Fatalf("grant consent: %v", err)
	}
	if rec.CurrentState() != entities.RecordingStateRecording {
		t.Fatalf("state = %s", rec.CurrentState())
	}

	if err := p.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if rec.CurrentState() != entities.RecordingStateAwaitingProcessing {
		t.Fatalf("state = %s, want awaiting_processing", rec.CurrentState())
	}
	if string(uploaded) != string(blob) {
		t.Fatalf("uploaded %q", uploaded)
	}
	if uploadContentType != "audio/webm" {
		t.Fatalf("content type %q", uploadContentType)
	}
	if completed != 1 {
		t.Fatalf("complete called %d times", completed)
	}
	if !device.track.isClosed() {
		t.Fatal("device not released after stop")
	}
}

func TestUploadFailureMarksError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	device := &fakeDevice{track: newFakeTrack([]byte("audio"))}
	p := NewPipeline(testAPI(ts.URL), device, nil)
	encounter := entities.NewEncounter(uuid.New(), uuid.New(), nil)

	rec, _ := p.Start(encounter)
	if err := p.GrantConsent(context.Background()); err != nil {
		t.Fatalf("grant consent: %v", err)
	}
	if err := p.Stop(context.Background()); err == nil {
		t.Fatal("expected upload failure")
	}
	if rec.CurrentState() != entities.RecordingStateError {
		t.Fatalf("state = %s, want error", rec.CurrentState())
	}
	if !device.track.isClosed() {
		t.Fatal("device not released on upload failure")
	}

	// error -> idle: the clinician may restart.
	if err := p.Reset(); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if _, err := p.Start(encounter); err != nil {
		t.Fatalf("restart after error: %v", err)
	}
}

func TestDeviceRevokedMidCapture(t *testing.T) {
	track := newFakeTrack([]byte("audio"))
	device := &fakeDevice{track: track}
	p := NewPipeline(testAPI("http://unreachable.invalid"), device, nil)
	encounter := entities.NewEncounter(uuid.New(), uuid.New(), nil)

	rec, _ := p.Start(encounter)
	if err := p.GrantConsent(context.Background()); err != nil {
		t.Fatalf("grant consent: %v", err)
	}

	track.fail(stderrors.New("permission revoked"))

	deadline := time.After(2 * time.Second)
	for p.State() != entities.RecordingStateError {
		select {
		case <-deadline:
			t.Fatalf("recording never failed, state = %s", p.State())
		case <-time.After(5 * time.Millisecond):
		}
	}
	if !track.isClosed() {
		t.Fatal("device not released after revocation")
	}
	if rec.ErrorReason() != "permission revoked" {
		t.Fatalf("reason = %q", rec.ErrorReason())
	}

	if err := p.Reset(); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if _, err := p.Start(encounter); err != nil {
		t.Fatalf("restart after revocation: %v", err)
	}
}

func TestAbortReleasesDevice(t *testing.T) {
	track := newFakeTrack([]byte("audio"))
	device := &fakeDevice{track: track}
	p := NewPipeline(testAPI("http://unreachable.invalid"), device, nil)
	encounter := entities.NewEncounter(uuid.New(), uuid.New(), nil)

	rec, _ := p.Start(encounter)
	if err := p.GrantConsent(context.Background()); err != nil {
		t.Fatalf("grant consent: %v", err)
	}

	p.Abort()
	if !track.isClosed() {
		t.Fatal("device not released on abort")
	}
	if rec.CurrentState() != entities.RecordingStateError {
		t.Fatalf("state = %s, want error", rec.CurrentState())
	}
}
