package domain

import "errors"

var (
	ErrNotFound               = errors.New("not found")
	ErrInvalidInput           = errors.New("invalid input")
	ErrNoAvailability         = errors.New("no availability today")
	ErrBookingConflict        = errors.New("booking conflict")
	ErrDuplicateClient        = errors.New("duplicate client")
	ErrAlreadyRedeemed        = errors.New("reward already redeemed")
	ErrPersistenceUnavailable = errors.New("persistence unavailable")
	ErrConcurrentModification = errors.New("concurrent modification")
	ErrPreconditionFailed     = errors.New("precondition failed")
	ErrInsufficientStock      = errors.New("insufficient stock")
	ErrDenied                 = errors.New("access denied")
	ErrForbidden              = errors.New("forbidden")
)

// Messages shown to clients and staff. Unknown errors get msgGeneric.
const (
	msgGeneric           = "Ocurrió un error, intenta nuevamente más tarde"
	msgNoAvailability    = "No hay horarios disponibles hoy"
	msgBookingConflict   = "El horario ya fue tomado, intenta nuevamente"
	msgDuplicateClient   = "El cliente ya está registrado"
	msgAlreadyRedeemed   = "El beneficio ya fue utilizado"
	msgNotFound          = "No encontrado"
	msgInvalidInput      = "Datos inválidos"
	msgConcurrent        = "Los datos cambiaron, recarga e intenta nuevamente"
	msgInsufficientStock = "Stock insuficiente"
	msgDenied            = "Credenciales inválidas"
	msgForbidden         = "No tienes permiso para esta acción"
	msgUnavailable       = "Servicio no disponible, intenta más tarde"
)

// UserMessage maps an error onto the Spanish text shown at the UI boundary.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNoAvailability):
		return msgNoAvailability
	case errors.Is(err, ErrBookingConflict):
		return msgBookingConflict
	case errors.Is(err, ErrDuplicateClient):
		return msgDuplicateClient
	case errors.Is(err, ErrAlreadyRedeemed):
		return msgAlreadyRedeemed
	case errors.Is(err, ErrNotFound):
		return msgNotFound
	case errors.Is(err, ErrInvalidInput):
		return msgInvalidInput
	case errors.Is(err, ErrConcurrentModification), errors.Is(err, ErrPreconditionFailed):
		return msgConcurrent
	case errors.Is(err, ErrInsufficientStock):
		return msgInsufficientStock
	case errors.Is(err, ErrDenied):
		return msgDenied
	case errors.Is(err, ErrForbidden):
		return msgForbidden
	case errors.Is(err, ErrPersistenceUnavailable):
		return msgUnavailable
	default:
		return msgGeneric
	}
}

// IsKnown reports whether err belongs to the domain taxonomy.
func IsKnown(err error) bool {
	for _, target := range []error{
		ErrNotFound, ErrInvalidInput, ErrNoAvailability, ErrBookingConflict,
		ErrDuplicateClient, ErrAlreadyRedeemed, ErrPersistenceUnavailable,
		ErrConcurrentModification, ErrPreconditionFailed, ErrInsufficientStock,
		ErrDenied, ErrForbidden,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
