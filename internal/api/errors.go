package api

import (
	"errors"
	"net/http"

	"salon/internal/domain"

	"github.com/rs/zerolog"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func httpStatus(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrDenied):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrNoAvailability),
		errors.Is(err, domain.ErrBookingConflict),
		errors.Is(err, domain.ErrDuplicateClient),
		errors.Is(err, domain.ErrAlreadyRedeemed),
		errors.Is(err, domain.ErrConcurrentModification),
		errors.Is(err, domain.ErrPreconditionFailed),
		errors.Is(err, domain.ErrInsufficientStock):
		return http.StatusConflict
	case errors.Is(err, domain.ErrPersistenceUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func grpcCode(err error) codes.Code {
	switch httpStatus(err) {
	case http.StatusBadRequest:
		return codes.InvalidArgument
	case http.StatusNotFound:
		return codes.NotFound
	case http.StatusUnauthorized:
		return codes.Unauthenticated
	case http.StatusForbidden:
		return codes.PermissionDenied
	case http.StatusConflict:
		if errors.Is(err, domain.ErrNoAvailability) || errors.Is(err, domain.ErrInsufficientStock) {
			return codes.FailedPrecondition
		}
		return codes.AlreadyExists
	case http.StatusServiceUnavailable:
		return codes.Unavailable
	default:
		return codes.Internal
	}
}

// writeDomainError sends the user-facing message for err. Unexpected errors
// are logged with their cause; the client only sees the generic text.
func writeDomainError(w http.ResponseWriter, logger *zerolog.Logger, err error) {
	code := httpStatus(err)
	if code >= http.StatusInternalServerError && logger != nil {
		logger.Error().Err(err).Int("status", code).Msg("request failed")
	}
	writeError(w, code, domain.UserMessage(err))
}

func grpcError(logger *zerolog.Logger, err error) error {
	code := grpcCode(err)
	if (code == codes.Internal || code == codes.Unavailable) && logger != nil {
		logger.Error().Err(err).Str("code", code.String()).Msg("rpc failed")
	}
	return status.Error(code, domain.UserMessage(err))
}
