package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
)

type Config struct {
	BaseURL    string
	APIKey     string
	APISecret  string
	MerchantID string
	Timeout    time.Duration
}

// Client talks to the payment gateway. It is constructed explicitly and shared by the
// operations that need it.
type Client struct {
	baseURL    string
	merchantID string
	signer     signer
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[*response]
	log        zerolog.Logger
	now        func() time.Time
}

type response struct {
	statusCode int
	body       []byte
}

var errServerStatus = errors.New("gateway server error")

func NewClient(cfg Config, log zerolog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	settings := gobreaker.Settings{
		Name:        "payment-gateway",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state changed")
		},
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		merchantID: cfg.MerchantID,
		signer:     signer{apiKey: cfg.APIKey, secret: []byte(cfg.APISecret)},
		httpClient: &http.Client{Timeout: cfg.Timeout},
		breaker:    gobreaker.NewCircuitBreaker[*response](settings),
		log:        log,
		now:        time.Now,
	}
}

// do sends one signed request. 5xx responses are returned together with errServerStatus
// so they count against the breaker while the body stays available.
func (c *Client) do(ctx context.Context, method, path string, payload any) (*response, error) {
	var body []byte
	if payload != nil {
		var err error
		body, err = json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal gateway request: %w", err)
		}
	}

	resp, err := c.breaker.Execute(func() (*response, error) {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
		if err != nil {
			return nil, err
		}

		nonce := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
		req.Header.Set("Authorization", c.signer.authorization(method, path, body, nonce, c.now().Unix()))
		if body != nil {
			req.Header.Set("Content-Type", contentTypeJSON)
		}
		if c.merchantID != "" {
			req.Header.Set("X-ASSUME-MERCHANT", c.merchantID)
		}

		httpResp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer httpResp.Body.Close()

		data, err := io.ReadAll(httpResp.Body)
		if err != nil {
			return nil, err
		}

		out := &response{statusCode: httpResp.StatusCode, body: data}
		if httpResp.StatusCode >= http.StatusInternalServerError {
			return out, errServerStatus
		}
		return out, nil
	})

	if errors.Is(err, errServerStatus) {
		return resp, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %v", ErrUnavailable, method, path, err)
	}
	return resp, nil
}
