package provider

import (
	"net/http"
	"strings"

	"github.com/hiveagent/hive/pkg/models"
)

// ClassifyError maps a raw provider error to one of the Kind values
// ProviderAuth, ProviderRequest, ProviderTransient, or Timeout, by
// inspecting an accompanying HTTP status if present and otherwise
// pattern-matching the error text.
func ClassifyError(err error, status int) *models.Error {
	if err == nil {
		return nil
	}
	if status != 0 {
		if k := classifyStatus(status); k != "" {
			return models.Wrap(k, err)
		}
	}

	text := strings.ToLower(err.Error())
	switch {
	case strings.Contains(text, "timeout") ||
		strings.Contains(text, "deadline exceeded") ||
		strings.Contains(text, "context deadline"):
		return models.Wrap(models.KindTimeout, err)
	case strings.Contains(text, "connection reset") ||
		strings.Contains(text, "econnreset") ||
		strings.Contains(text, "dns") ||
		strings.Contains(text, "no such host") ||
		strings.Contains(text, "429") ||
		strings.Contains(text, "too many requests") ||
		strings.Contains(text, "rate limit") ||
		strings.Contains(text, "503") || strings.Contains(text, "502") || strings.Contains(text, "500"):
		return models.Wrap(models.KindProviderTransient, err)
	case strings.Contains(text, "401") || strings.Contains(text, "403") ||
		strings.Contains(text, "unauthorized") || strings.Contains(text, "invalid api key"):
		return models.Wrap(models.KindProviderAuth, err)
	default:
		return models.Wrap(models.KindProviderRequest, err)
	}
}

func classifyStatus(status int) models.Kind {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return models.KindProviderAuth
	case status == http.StatusTooManyRequests:
		return models.KindProviderTransient
	case status >= 500:
		return models.KindProviderTransient
	case status >= 400:
		return models.KindProviderRequest
	}
	return ""
}

// IsTransient reports whether err is transient per spec §4.C: 5xx, 429,
// connection-reset, DNS timeout, or generic socket timeout; auth and
// other 4xx are not transient. Errors already classified via
// ClassifyError are checked by Kind directly; raw errors are classified
// on the fly from their text.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if models.IsKind(err, models.KindProviderTransient) || models.IsKind(err, models.KindTimeout) {
		return true
	}
	if models.IsKind(err, models.KindProviderAuth) || models.IsKind(err, models.KindProviderRequest) ||
		models.IsKind(err, models.KindInvalidInput) || models.IsKind(err, models.KindCancelled) {
		return false
	}
	classified := ClassifyError(err, 0)
	return classified.Kind == models.KindProviderTransient || classified.Kind == models.KindTimeout
}
