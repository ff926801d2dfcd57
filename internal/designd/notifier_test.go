package designd

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/towerworks/foundation-core/internal/store"
	"github.com/towerworks/foundation-core/pkg/utils"
)

func TestValidateCallbackURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr error
	}{
		{"external https", "https://example.com/hooks/{run_id}", nil},
		{"localhost", "http://localhost:8000/callback", nil},
		{"loopback ip", "http://127.0.0.1:9000/cb", nil},
		{"bad scheme", "ftp://example.com/callback", ErrInvalidCallbackURL},
		{"missing host", "http:///callback", ErrInvalidCallbackURL},
		{"metadata ip", "http://169.254.169.254/latest/meta-data", ErrMetadataEndpoint},
		{"metadata host", "http://metadata.google.internal/computeMetadata", ErrMetadataEndpoint},
		{"link local", "http://169.254.10.1/", ErrMetadataEndpoint},
		{"wildcard", "http://0.0.0.0:8000/callback", ErrInvalidCallbackURL},
		{"unparseable", "http://[::1", ErrInvalidCallbackURL},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCallbackURL(tt.url)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

// callbackRecorder is a callback endpoint that fails the first failures
// deliveries.
type callbackRecorder struct {
	failures int32

	mu       sync.Mutex
	calls    int32
	received []Notification
	paths    []string
	secrets  []string
}

func (c *callbackRecorder) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	n := atomic.AddInt32(&c.calls, 1)
	if n <= c.failures {
		http.Error(w, "try later", http.StatusServiceUnavailable)
		return
	}
	var msg Notification
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	c.mu.Lock()
	c.received = append(c.received, msg)
	c.paths = append(c.paths, r.URL.Path)
	c.secrets = append(c.secrets, r.Header.Get(CallbackSecretHeader))
	c.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func fastNotifier() *Notifier {
	n := NewNotifier(quietLogger())
	n.SetRetryDelay(time.Millisecond)
	return n
}

func TestNotifierRetriesUntilDelivered(t *testing.T) {
	rec := &callbackRecorder{failures: 2}
	srv := httptest.NewServer(rec)
	defer srv.Close()

	n := fastNotifier()
	defer n.Close()
	run := store.Run{ID: "run-7", Mode: store.ModeGroup, Status: store.StatusCompleted, Site: "north"}
	n.Notify(Callback{URL: srv.URL + "/runs/{run_id}/done", Secret: "s3cret"}, run)
	n.Wait()

	if got := atomic.LoadInt32(&rec.calls); got != 3 {
		t.Fatalf("expected 3 attempts, got %d", got)
	}
	if len(rec.received) != 1 {
		t.Fatalf("expected one delivered notification, got %d", len(rec.received))
	}
	msg := rec.received[0]
	if msg.RunID != "run-7" || msg.Status != store.StatusCompleted || msg.Site != "north" || msg.Timestamp == 0 {
		t.Fatalf("unexpected notification %+v", msg)
	}
	if rec.paths[0] != "/runs/run-7/done" || rec.secrets[0] != "s3cret" {
		t.Fatalf("unexpected delivery path %q secret %q", rec.paths[0], rec.secrets[0])
	}
}

func TestNotifierGivesUp(t *testing.T) {
	rec := &callbackRecorder{failures: 100}
	srv := httptest.NewServer(rec)
	defer srv.Close()

	n := fastNotifier()
	defer n.Close()
	n.Notify(Callback{URL: srv.URL}, store.Run{ID: "run-8", Status: store.StatusFailed})
	n.Wait()

	if got := atomic.LoadInt32(&rec.calls); got != int32(n.maxRetries+1) {
		t.Fatalf("expected %d attempts, got %d", n.maxRetries+1, got)
	}
}

func TestNotifierCloseAbandonsRetries(t *testing.T) {
	rec := &callbackRecorder{failures: 100}
	srv := httptest.NewServer(rec)
	defer srv.Close()

	n := NewNotifier(quietLogger())
	n.SetRetryDelay(time.Hour)
	n.Notify(Callback{URL: srv.URL}, store.Run{ID: "run-9", Status: store.StatusFailed})

	deadline := time.Now().Add(5 * time.Second)
	for atomic.LoadInt32(&rec.calls) == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	done := make(chan struct{})
	go func() {
		n.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Close did not abandon the pending retry")
	}
}

func TestExecutorNotifiesCallback(t *testing.T) {
	rec := &callbackRecorder{}
	srv := httptest.NewServer(rec)
	defer srv.Close()

	st := store.NewMemoryStore()
	e := NewExecutor(st, quietLogger())
	e.SetCallbackRetryDelay(time.Millisecond)
	defer e.Shutdown()

	req := optimizeRequest(t, "run-cb")
	req.CallbackURL = srv.URL + "/{run_id}"
	if _, err := e.Submit(context.Background(), req); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	e.Wait()

	if len(rec.received) != 1 {
		t.Fatalf("expected one notification, got %d", len(rec.received))
	}
	msg := rec.received[0]
	if msg.Status != store.StatusCompleted || msg.Summary == nil || msg.Summary.Towers != 5 {
		t.Fatalf("unexpected notification %+v", msg)
	}
	if rec.paths[0] != "/run-cb" {
		t.Fatalf("unexpected callback path %q", rec.paths[0])
	}

	bad := optimizeRequest(t, "run-meta")
	bad.CallbackURL = "http://169.254.169.254/"
	if _, err := e.Submit(context.Background(), bad); !errors.Is(err, ErrInvalidRequest) || !errors.Is(err, ErrMetadataEndpoint) {
		t.Fatalf("expected metadata endpoint rejection, got %v", err)
	}
}

func TestNotifierRetryDelay(t *testing.T) {
	n := NewNotifier(quietLogger())
	defer n.Close()

	n.SetRetryDelay(250 * time.Millisecond)
	if _, ok := n.backoff.(*utils.ConstantBackoff); !ok {
		t.Fatalf("expected constant backoff, got %T", n.backoff)
	}
	if got := n.backoff.NextDelay(2); got != 250*time.Millisecond {
		t.Fatalf("expected 250ms, got %v", got)
	}

	n.SetRetryDelay(0)
	if _, ok := n.backoff.(*utils.ExponentialBackoff); !ok {
		t.Fatalf("expected exponential backoff after reset, got %T", n.backoff)
	}
}
