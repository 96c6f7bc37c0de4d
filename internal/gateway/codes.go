package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/fjod/go_takeout/internal/domain"
	"github.com/google/uuid"
)

const (
	codeTypeOrderQR     = "ORDER_QR"
	redirectTypeWebLink = "WEB_LINK"

	resultSuccess       = "SUCCESS"
	resultRateLimit     = "RATE_LIMIT"
	resultInternalError = "INTERNAL_SERVER_ERROR"
	resultUnavailable   = "SERVICE_UNAVAILABLE"
)

type money struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

type orderItem struct {
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
	ProductID string `json:"productId,omitempty"`
	UnitPrice money  `json:"unitPrice"`
}

type createCodeRequest struct {
	MerchantPaymentID string      `json:"merchantPaymentId"`
	CodeType          string      `json:"codeType"`
	OrderItems        []orderItem `json:"orderItems"`
	Amount            money       `json:"amount"`
	RedirectURL       string      `json:"redirectUrl"`
	RedirectType      string      `json:"redirectType"`
	RequestedAt       int64       `json:"requestedAt"`
}

type resultInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	CodeID  string `json:"codeId"`
}

type codeData struct {
	CodeID            string `json:"codeId"`
	URL               string `json:"url"`
	Deeplink          string `json:"deeplink"`
	ExpiryDate        int64  `json:"expiryDate"`
	MerchantPaymentID string `json:"merchantPaymentId"`
}

type paymentData struct {
	MerchantPaymentID string `json:"merchantPaymentId"`
	Status            string `json:"status"`
	PaymentID         string `json:"paymentId"`
}

type envelope[T any] struct {
	ResultInfo resultInfo `json:"resultInfo"`
	Data       *T         `json:"data"`
}

// NewMerchantPaymentID returns a fresh globally unique merchant payment id.
func NewMerchantPaymentID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// CreatePaymentRequest registers a QR code payment for the snapshot and returns the
// request with the gateway display artifact filled in.
func (c *Client) CreatePaymentRequest(ctx context.Context, snapshot *domain.CartSnapshot, currency, redirectURL string) (*domain.PaymentRequest, error) {
	if snapshot.IsEmpty() {
		return nil, fmt.Errorf("%w: empty snapshot", ErrRejected)
	}

	req := createCodeRequest{
		MerchantPaymentID: NewMerchantPaymentID(),
		CodeType:          codeTypeOrderQR,
		OrderItems:        toOrderItems(snapshot.Items, currency),
		Amount:            money{Amount: snapshot.TotalPrice, Currency: currency},
		RedirectURL:       redirectURL,
		RedirectType:      redirectTypeWebLink,
		RequestedAt:       c.now().Unix(),
	}

	resp, err := c.do(ctx, http.MethodPost, "/v2/codes", req)
	if err != nil {
		return nil, err
	}

	var env envelope[codeData]
	if err := json.Unmarshal(resp.body, &env); err != nil {
		if resp.statusCode >= http.StatusInternalServerError {
			return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.statusCode)
		}
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	if env.ResultInfo.Code != resultSuccess {
		return nil, classifyFailure(resp.statusCode, env.ResultInfo)
	}
	if env.Data == nil || env.Data.URL == "" {
		c.log.Error().
			Str("merchant_payment_id", req.MerchantPaymentID).
			Str("body", string(resp.body)).
			Msg("code created but url is missing")
		return nil, fmt.Errorf("%w: missing url", ErrMalformedResponse)
	}

	out := &domain.PaymentRequest{
		MerchantPaymentID: req.MerchantPaymentID,
		Amount:            snapshot.TotalPrice,
		Currency:          currency,
		Items:             snapshot.Items,
		RedirectURL:       redirectURL,
		CodeID:            env.Data.CodeID,
		URL:               env.Data.URL,
		Deeplink:          env.Data.Deeplink,
	}
	if env.Data.ExpiryDate > 0 {
		out.ExpiresAt = time.Unix(env.Data.ExpiryDate, 0)
	}

	c.log.Info().
		Str("merchant_payment_id", out.MerchantPaymentID).
		Str("code_id", out.CodeID).
		Int64("amount", out.Amount).
		Msg("payment code created")
	return out, nil
}

// FetchStatus asks the gateway once for the payment status and returns its external
// classification. Only ErrUnavailable is returned as an error.
func (c *Client) FetchStatus(ctx context.Context, merchantPaymentID string) (domain.PaymentStatus, error) {
	raw := c.fetchRaw(ctx, merchantPaymentID)
	if raw == statusFetchError {
		return "", fmt.Errorf("%w: fetch status of %s", ErrUnavailable, merchantPaymentID)
	}
	return externalStatus(raw), nil
}

func (c *Client) fetchRaw(ctx context.Context, merchantPaymentID string) string {
	path := "/v2/codes/payments/" + url.PathEscape(merchantPaymentID)
	logger := c.log.With().Str("merchant_payment_id", merchantPaymentID).Logger()

	resp, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		logger.Error().Err(err).Msg("fetch payment details failed")
		return statusFetchError
	}

	var env envelope[paymentData]
	if err := json.Unmarshal(resp.body, &env); err != nil {
		logger.Error().Err(err).Int("status", resp.statusCode).Msg("undecodable payment details")
		return statusFetchError
	}

	raw := classifyStatus(env.ResultInfo, env.Data)
	switch raw {
	case statusRateLimited:
		logger.Warn().Msg("payment details rate limited, reporting pending")
	case statusNoData:
		logger.Warn().
			Str("code", env.ResultInfo.Code).
			Str("message", env.ResultInfo.Message).
			Msg("payment details without data, reporting pending")
	}
	return raw
}

// CancelCode deletes a QR code so it can no longer be paid. A code that is already gone
// is not an error.
func (c *Client) CancelCode(ctx context.Context, codeID string) error {
	if codeID == "" {
		return nil
	}

	resp, err := c.do(ctx, http.MethodDelete, "/v2/codes/"+url.PathEscape(codeID), nil)
	if err != nil {
		return err
	}

	var env envelope[json.RawMessage]
	if err := json.Unmarshal(resp.body, &env); err != nil {
		if resp.statusCode >= http.StatusInternalServerError {
			return fmt.Errorf("%w: status %d", ErrUnavailable, resp.statusCode)
		}
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if env.ResultInfo.Code == resultSuccess || resp.statusCode == http.StatusNotFound {
		return nil
	}
	return classifyFailure(resp.statusCode, env.ResultInfo)
}

func classifyFailure(statusCode int, info resultInfo) error {
	switch {
	case info.Code == resultRateLimit,
		info.Code == resultInternalError,
		info.Code == resultUnavailable,
		statusCode >= http.StatusInternalServerError:
		return fmt.Errorf("%w: %s %s", ErrUnavailable, info.Code, info.Message)
	}
	return &RejectedError{Code: info.Code, Message: info.Message}
}

func toOrderItems(items []domain.LineItem, currency string) []orderItem {
	out := make([]orderItem, 0, len(items))
	for _, item := range items {
		out = append(out, orderItem{
			Name:      item.Name,
			Quantity:  item.Quantity,
			ProductID: fmt.Sprintf("%d", item.ItemID),
			UnitPrice: money{Amount: item.UnitPrice, Currency: currency},
		})
	}
	return out
}
