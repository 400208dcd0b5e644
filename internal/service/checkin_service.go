package service

import (
	"context"
	"fmt"

	"salon/internal/domain"
	"salon/internal/models"

	"github.com/rs/zerolog"
)

// CheckInService is the walk-in pipeline: book the next slot, then count
// the visit for a known client.
type CheckInService struct {
	bookings domain.BookingService
	loyalty  domain.LoyaltyService
	logger   *zerolog.Logger
}

var _ domain.CheckInService = (*CheckInService)(nil)

func NewCheckInService(bookings domain.BookingService, loyalty domain.LoyaltyService, logger *zerolog.Logger) *CheckInService {
	return &CheckInService{bookings: bookings, loyalty: loyalty, logger: logger}
}

// WalkIn never registers a visit without a booking. When the booking
// succeeds but the visit does not, the booking is returned with the error.
func (s *CheckInService) WalkIn(ctx context.Context, req models.WalkInRequest) (*models.WalkInResult, error) {
	booking, err := s.bookings.BookNextSlot(ctx, req)
	if err != nil {
		return nil, err
	}

	result := &models.WalkInResult{Booking: booking}
	if req.ClientID == nil {
		return result, nil
	}

	card, err := s.loyalty.RegisterVisit(ctx, *req.ClientID)
	if err != nil {
		s.logger.Error().Err(err).Int64("client_id", *req.ClientID).Int64("booking_id", booking.ID).Msg("visit not registered after walk-in booking")
		return result, fmt.Errorf("register visit: %w", err)
	}
	result.Card = card
	return result, nil
}
