package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUserMessage(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{ErrNoAvailability, "No hay horarios disponibles hoy"},
		{fmt.Errorf("allocate: %w", ErrNoAvailability), "No hay horarios disponibles hoy"},
		{fmt.Errorf("redeem: %w", ErrAlreadyRedeemed), "El beneficio ya fue utilizado"},
		{ErrDuplicateClient, "El cliente ya está registrado"},
		{ErrPreconditionFailed, "Los datos cambiaron, recarga e intenta nuevamente"},
		{errors.New("disk on fire"), "Ocurrió un error, intenta nuevamente más tarde"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, UserMessage(tt.err))
	}
}

func TestIsKnown(t *testing.T) {
	assert.True(t, IsKnown(fmt.Errorf("x: %w", ErrBookingConflict)))
	assert.False(t, IsKnown(errors.New("boom")))
}
