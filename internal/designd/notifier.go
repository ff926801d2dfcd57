package designd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/towerworks/foundation-core/internal/optimizer"
	"github.com/towerworks/foundation-core/internal/store"
	"github.com/towerworks/foundation-core/pkg/logger"
	"github.com/towerworks/foundation-core/pkg/models"
	"github.com/towerworks/foundation-core/pkg/utils"
)

var (
	ErrInvalidCallbackURL = errors.New("invalid callback URL")
	ErrMetadataEndpoint   = errors.New("callback URL targets a cloud metadata endpoint")
)

// CallbackSecretHeader carries the caller's shared secret on notifications.
const CallbackSecretHeader = "X-Foundations-Callback-Secret"

var metadataHosts = map[string]bool{
	"metadata":                 true,
	"metadata.google.internal": true,
	"169.254.169.254":          true,
	"fd00:ec2::254":            true,
}

// Callback is where a finished run is reported. A "{run_id}" placeholder
// in URL is replaced by the run's ID.
type Callback struct {
	URL    string
	Secret string
}

// ValidateCallbackURL rejects URLs a notification must never be sent to.
func ValidateCallbackURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidCallbackURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: scheme must be http or https, got %q", ErrInvalidCallbackURL, u.Scheme)
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return fmt.Errorf("%w: missing host", ErrInvalidCallbackURL)
	}
	if metadataHosts[host] {
		return ErrMetadataEndpoint
	}
	if ip := net.ParseIP(host); ip != nil {
		if ip.IsUnspecified() {
			return fmt.Errorf("%w: unspecified address %s", ErrInvalidCallbackURL, host)
		}
		if ip.IsLinkLocalUnicast() {
			return ErrMetadataEndpoint
		}
	}
	return nil
}

// Notification is the JSON document posted to a callback URL.
type Notification struct {
	RunID           string             `json:"run_id"`
	Mode            store.Mode         `json:"mode"`
	Kind            models.Kind        `json:"kind,omitempty"`
	Status          store.Status       `json:"status"`
	Site            string             `json:"site,omitempty"`
	CreatedAtUnixMs int64              `json:"created_at_unix_ms"`
	StartedAtUnixMs int64              `json:"started_at_unix_ms,omitempty"`
	EndedAtUnixMs   int64              `json:"ended_at_unix_ms,omitempty"`
	Error           string             `json:"error,omitempty"`
	Summary         *optimizer.Summary `json:"summary,omitempty"`
	Uncovered       []string           `json:"uncovered,omitempty"`
	Timestamp       int64              `json:"timestamp"`
}

// Notifier posts run notifications in the background, retrying failed
// deliveries.
type Notifier struct {
	client     *http.Client
	maxRetries int
	backoff    utils.BackoffStrategy
	log        *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewNotifier(log *slog.Logger) *Notifier {
	if log == nil {
		log = logger.Default
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Notifier{
		client: &http.Client{
			Timeout:   10 * time.Second,
			Transport: http.DefaultTransport.(*http.Transport).Clone(),
		},
		maxRetries: 3,
		backoff:    defaultBackoff(),
		log:        log,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// SetRetryDelay makes every retry wait delay. A non-positive delay
// restores the default exponential backoff.
func (n *Notifier) SetRetryDelay(delay time.Duration) {
	if delay <= 0 {
		n.backoff = defaultBackoff()
		return
	}
	n.backoff = utils.NewConstantBackoff(delay)
}

func defaultBackoff() utils.BackoffStrategy {
	return utils.NewExponentialBackoff(time.Second, 30*time.Second, 2, true)
}

// Notify reports run to cb asynchronously.
func (n *Notifier) Notify(cb Callback, run store.Run) {
	if cb.URL == "" {
		return
	}
	payload := Notification{
		RunID:           run.ID,
		Mode:            run.Mode,
		Kind:            run.Kind,
		Status:          run.Status,
		Site:            run.Site,
		CreatedAtUnixMs: run.CreatedAtUnixMs,
		StartedAtUnixMs: run.StartedAtUnixMs,
		EndedAtUnixMs:   run.EndedAtUnixMs,
		Error:           run.Error,
		Summary:         run.Summary,
		Uncovered:       run.Uncovered,
		Timestamp:       time.Now().UTC().UnixMilli(),
	}
	target := strings.ReplaceAll(cb.URL, "{run_id}", url.PathEscape(run.ID))

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		n.send(target, cb.Secret, payload)
	}()
}

func (n *Notifier) send(target, secret string, payload Notification) {
	log := n.log.With("run_id", payload.RunID, "callback_url", target)
	body, err := json.Marshal(payload)
	if err != nil {
		log.Error("failed to marshal notification", "error", err)
		return
	}

	var lastErr error
	for attempt := 0; attempt <= n.maxRetries; attempt++ {
		if attempt > 0 {
			delay := n.backoff.NextDelay(attempt - 1)
			log.Debug("retrying notification", "attempt", attempt, "delay", delay)
			select {
			case <-time.After(delay):
			case <-n.ctx.Done():
				log.Warn("notification abandoned", "status", payload.Status, "last_error", lastErr)
				return
			}
		}

		if lastErr = n.post(target, secret, body); lastErr == nil {
			log.Info("notification sent", "status", payload.Status)
			return
		}
		log.Warn("notification attempt failed", "attempt", attempt+1, "error", lastErr)
	}
	log.Error("failed to send notification after retries",
		"status", payload.Status,
		"max_retries", n.maxRetries,
		"last_error", lastErr)
}

func (n *Notifier) post(target, secret string, body []byte) error {
	req, err := http.NewRequestWithContext(n.ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "foundation-core/1.0")
	if secret != "" {
		req.Header.Set(CallbackSecretHeader, secret)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 200))
	return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, snippet)
}

// Wait blocks until every pending notification is delivered or given up.
func (n *Notifier) Wait() {
	n.wg.Wait()
}

// Close abandons pending retries and releases idle connections.
func (n *Notifier) Close() {
	n.cancel()
	n.wg.Wait()
	n.client.CloseIdleConnections()
}
