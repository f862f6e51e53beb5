package gmail

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/sony/gobreaker"
	"google.golang.org/api/googleapi"

	"github.com/nhle/mailsync/internal/model"
	"github.com/nhle/mailsync/internal/source"
)

// wrapError classifies a Gmail API error into the source error taxonomy.
func wrapError(err error, op string) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == http.StatusUnauthorized:
			return &source.AuthError{Provider: model.ProviderGmail, Message: fmt.Sprintf("%s: token expired or revoked", op)}
		case apiErr.Code == http.StatusForbidden && strings.Contains(strings.ToLower(apiErr.Message), "rate limit"):
			return fmt.Errorf("%s: %w: %v", op, source.ErrTransient, err)
		case apiErr.Code == http.StatusForbidden:
			return &source.AuthError{Provider: model.ProviderGmail, Message: fmt.Sprintf("%s: access denied", op)}
		case apiErr.Code == http.StatusNotFound:
			return fmt.Errorf("%s: %w", op, source.ErrNotFound)
		case apiErr.Code == http.StatusTooManyRequests || apiErr.Code >= 500:
			return fmt.Errorf("%s: %w: %v", op, source.ErrTransient, err)
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %v", op, source.ErrTransient, err)
}

// breakerError maps an open breaker to ErrTransient and passes other
// errors through.
func breakerError(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("gmail api unavailable: %w: %v", source.ErrTransient, err)
	}
	return err
}
