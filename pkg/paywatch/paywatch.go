// Package paywatch polls the takeout payment status endpoint until the payment settles.
package paywatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type Status string

const (
	StatusCreated   Status = "CREATED"
	StatusPending   Status = "PENDING"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
	StatusExpired   Status = "EXPIRED"
)

// IsTerminal reports whether polling can stop.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusExpired
}

var (
	// ErrTimeout is returned when no terminal status was seen within MaxDuration.
	ErrTimeout = errors.New("payment status polling timed out")
	// ErrUnavailable is returned after MaxServerErrors consecutive failed polls.
	ErrUnavailable = errors.New("payment status endpoint unavailable")
	// ErrRejected is returned when the endpoint answers with a 4xx.
	ErrRejected = errors.New("payment status request rejected")
)

type Config struct {
	// BaseURL of the takeout API, e.g. http://localhost:8080.
	BaseURL         string
	Interval        time.Duration
	MaxDuration     time.Duration
	MaxServerErrors int
	RequestTimeout  time.Duration
}

type Watcher struct {
	cfg        Config
	httpClient *http.Client
	log        zerolog.Logger
}

type statusResponse struct {
	Status Status `json:"status"`
	Error  string `json:"error"`
}

func New(cfg Config, log zerolog.Logger) *Watcher {
	if cfg.Interval <= 0 {
		cfg.Interval = 2 * time.Second
	}
	if cfg.MaxDuration <= 0 {
		cfg.MaxDuration = 5 * time.Minute
	}
	if cfg.MaxServerErrors <= 0 {
		cfg.MaxServerErrors = 3
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 10 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	return &Watcher{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout:   cfg.RequestTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		log: log,
	}
}

// Wait polls until a terminal status is reported and returns it. The last status seen is
// returned together with ErrTimeout or ErrUnavailable when polling gives up.
func (w *Watcher) Wait(ctx context.Context, merchantPaymentID string) (Status, error) {
	if merchantPaymentID == "" {
		return "", fmt.Errorf("%w: empty merchant payment id", ErrRejected)
	}
	ctx, cancel := context.WithTimeout(ctx, w.cfg.MaxDuration)
	defer cancel()

	logger := w.log.With().Str("merchant_payment_id", merchantPaymentID).Logger()
	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	last := StatusPending
	failures := 0
	for {
		status, err := w.fetch(ctx, merchantPaymentID)
		switch {
		case err == nil:
			failures = 0
			last = status
			logger.Debug().Str("status", string(status)).Msg("payment status polled")
			if status.IsTerminal() {
				return status, nil
			}
		case errors.Is(err, ErrRejected):
			return last, err
		case ctx.Err() != nil:
			// Deadline hit mid-request, handled below.
		default:
			failures++
			logger.Warn().Err(err).Int("consecutive_failures", failures).Msg("payment status poll failed")
			if failures >= w.cfg.MaxServerErrors {
				return last, fmt.Errorf("%w: %d consecutive failures: %v", ErrUnavailable, failures, err)
			}
		}

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return last, ErrTimeout
			}
			return last, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (w *Watcher) fetch(ctx context.Context, merchantPaymentID string) (Status, error) {
	endpoint := fmt.Sprintf("%s/api/v1/payments/%s/status", w.cfg.BaseURL, url.PathEscape(merchantPaymentID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrRejected, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var body statusResponse
	decodeErr := json.NewDecoder(resp.Body).Decode(&body)

	switch {
	case resp.StatusCode >= http.StatusInternalServerError:
		return "", fmt.Errorf("status endpoint returned %d: %s", resp.StatusCode, body.Error)
	case resp.StatusCode != http.StatusOK:
		return "", fmt.Errorf("%w: status %d: %s", ErrRejected, resp.StatusCode, body.Error)
	case decodeErr != nil:
		return "", fmt.Errorf("decode status response: %w", decodeErr)
	}

	// Anything not recognised is still in flight.
	switch body.Status {
	case StatusCreated, StatusPending, StatusCompleted, StatusFailed, StatusExpired:
		return body.Status, nil
	default:
		return StatusPending, nil
	}
}
