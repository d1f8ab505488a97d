package engine

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/clinicore/consulta-engine/pkg/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := &config.Config{}
	cfg.API.BaseURL = "http://localhost:8080/api"
	cfg.API.BearerToken = "test-token"
	cfg.API.RequestTimeout = 5 * time.Second
	cfg.Queue.PollInterval = time.Hour
	cfg.Session.AutosaveInterval = time.Hour
	cfg.Telemed.DefaultDuration = 30 * time.Minute
	cfg.Draft.Path = filepath.Join(t.TempDir(), "drafts.db")
	return cfg
}

func TestNewAssemblesSubsystems(t *testing.T) {
	e, err := New(testConfig(t), nil, nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer e.Shutdown(context.Background())

	if e.Queue == nil || e.Sessions == nil || e.Summaries == nil || e.Attachments == nil || e.Telemed == nil {
		t.Fatal("subsystem missing")
	}
	if e.Recordings != nil {
		t.Fatal("recording pipeline should be disabled without a capture device")
	}
	if e.Hub() == nil {
		t.Fatal("hub missing")
	}
	// Neither notification source is configured.
	if e.redis != nil || e.webhook != nil {
		t.Fatal("unconfigured notification sources were created")
	}
}

func TestStartAndShutdown(t *testing.T) {
	e, err := New(testConfig(t), nil, nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	e.Start(ctx)
	cancel()

	if err := e.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}
