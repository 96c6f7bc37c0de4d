package gateway

import "github.com/fjod/go_takeout/internal/domain"

// Internal classifications. They never leave this package.
const (
	statusFetchError  = "FETCH_ERROR"
	statusRateLimited = "RATE_LIMITED"
	statusNoData      = "NO_DATA"
)

// classifyStatus maps one decoded status response to a raw classification. Rate limiting
// wins over a missing payload, and a missing payload wins over any error code.
func classifyStatus(info resultInfo, data *paymentData) string {
	if info.Code == resultRateLimit {
		return statusRateLimited
	}
	if data == nil {
		return statusNoData
	}
	return data.Status
}

// externalStatus collapses raw classifications into the externally visible set.
func externalStatus(raw string) domain.PaymentStatus {
	switch raw {
	case "CREATED":
		return domain.PaymentStatusCreated
	case "COMPLETED":
		return domain.PaymentStatusCompleted
	case "FAILED", "CANCELED":
		return domain.PaymentStatusFailed
	case "EXPIRED":
		return domain.PaymentStatusExpired
	}
	// PENDING, RATE_LIMITED, NO_DATA, AUTHORIZED, REAUTHORIZING and anything unknown
	return domain.PaymentStatusPending
}
