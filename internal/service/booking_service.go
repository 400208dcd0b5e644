package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"salon/internal/domain"
	"salon/internal/events"
	"salon/internal/metrics"
	"salon/internal/models"
	"salon/internal/scheduling"

	"github.com/rs/zerolog"
)

// BookingService owns the salon agenda: same-day allocation for walk-ins
// and explicit bookings and blocks entered by the administrator.
type BookingService struct {
	repo     domain.BookingRepository
	eventBus domain.EventPublisher
	hours    scheduling.Hours
	loc      *time.Location
	now      func() time.Time
	logger   *zerolog.Logger
}

var _ domain.BookingService = (*BookingService)(nil)

func NewBookingService(repo domain.BookingRepository, eventBus domain.EventPublisher, hours scheduling.Hours, loc *time.Location, logger *zerolog.Logger) *BookingService {
	if loc == nil {
		loc = time.Local
	}
	return &BookingService{
		repo:     repo,
		eventBus: eventBus,
		hours:    hours,
		loc:      loc,
		now:      time.Now,
		logger:   logger,
	}
}

// today returns the salon-local date and minutes since midnight.
func (s *BookingService) today() (string, int) {
	now := s.now().In(s.loc)
	return now.Format(models.DateLayout), scheduling.MinutesOf(now)
}

func (s *BookingService) allocate(ctx context.Context, date string, nowMinutes, duration int) (int, error) {
	bookings, err := s.repo.ListBookings(ctx, date)
	if err != nil {
		return 0, err
	}
	busy, err := scheduling.Occupied(bookings)
	if err != nil {
		return 0, err
	}
	return scheduling.NextSlot(nowMinutes, duration, busy, s.hours)
}

// NextAvailableSlot returns the earliest free start today as "HH:MM".
func (s *BookingService) NextAvailableSlot(ctx context.Context, durationMinutes int) (string, error) {
	if durationMinutes <= 0 {
		return "", fmt.Errorf("%w: duration must be positive", domain.ErrInvalidInput)
	}
	date, nowMinutes := s.today()
	slot, err := s.allocate(ctx, date, nowMinutes, durationMinutes)
	if err != nil {
		if errors.Is(err, domain.ErrNoAvailability) {
			metrics.IncSlotAllocation("no_availability")
		}
		return "", err
	}
	return scheduling.FormatClock(slot), nil
}

// BookNextSlot allocates today's next slot and books it. A booking that
// loses the slot to a concurrent writer triggers one fresh allocation.
func (s *BookingService) BookNextSlot(ctx context.Context, req models.WalkInRequest) (*models.Booking, error) {
	if req.DurationMinutes <= 0 {
		return nil, fmt.Errorf("%w: duration must be positive", domain.ErrInvalidInput)
	}
	name := strings.TrimSpace(req.ClientName)
	if name == "" {
		return nil, fmt.Errorf("%w: client name is required", domain.ErrInvalidInput)
	}

	date, nowMinutes := s.today()

	var lastErr error
	for attempt := 1; attempt <= 2; attempt++ {
		slot, err := s.allocate(ctx, date, nowMinutes, req.DurationMinutes)
		if err != nil {
			if errors.Is(err, domain.ErrNoAvailability) {
				metrics.IncSlotAllocation("no_availability")
			}
			return nil, err
		}

		booking := &models.Booking{
			Date:            date,
			Time:            scheduling.FormatClock(slot),
			DurationMinutes: req.DurationMinutes,
			ServiceName:     req.ServiceName,
			ClientID:        req.ClientID,
			ClientName:      name,
			ClientPhone:     req.ClientPhone,
			HomeService:     req.HomeService,
			Source:          models.SourceWalkIn,
		}
		err = s.repo.CreateBooking(ctx, booking)
		if err == nil {
			metrics.IncSlotAllocation("booked")
			s.publish(events.EventBookingCreated, booking)
			return booking, nil
		}
		if !errors.Is(err, domain.ErrBookingConflict) {
			return nil, err
		}

		metrics.IncSlotAllocation("conflict")
		s.logger.Warn().Str("date", date).Str("time", booking.Time).Int("attempt", attempt).Msg("slot taken concurrently")
		lastErr = err
	}
	return nil, lastErr
}

// FreeSlots lists the grid starts that fit durationMinutes on date. Past
// dates have none; today starts at the next full hour.
func (s *BookingService) FreeSlots(ctx context.Context, date string, durationMinutes int) ([]string, error) {
	if durationMinutes <= 0 {
		return nil, fmt.Errorf("%w: duration must be positive", domain.ErrInvalidInput)
	}
	if err := validateDate(date); err != nil {
		return nil, err
	}

	today, nowMinutes := s.today()
	from := s.hours.Open
	switch {
	case date < today:
		return []string{}, nil
	case date == today:
		from = scheduling.FirstCandidate(nowMinutes, s.hours)
	}

	bookings, err := s.repo.ListBookings(ctx, date)
	if err != nil {
		return nil, err
	}
	busy, err := scheduling.Occupied(bookings)
	if err != nil {
		return nil, err
	}

	starts := scheduling.FreeSlots(from, durationMinutes, busy, s.hours)
	out := make([]string, 0, len(starts))
	for _, m := range starts {
		out = append(out, scheduling.FormatClock(m))
	}
	return out, nil
}

// CreateManualBooking stores an administrator booking at an explicit time.
func (s *BookingService) CreateManualBooking(ctx context.Context, booking *models.Booking) error {
	booking.ClientName = strings.TrimSpace(booking.ClientName)
	if booking.ClientName == "" {
		return fmt.Errorf("%w: client name is required", domain.ErrInvalidInput)
	}
	if booking.ClientName == models.BlockedName {
		return fmt.Errorf("%w: use BlockSlot for closures", domain.ErrInvalidInput)
	}
	if err := s.validateWindow(booking.Date, booking.Time, booking.DurationMinutes); err != nil {
		return err
	}
	booking.Source = models.SourceManual

	if err := s.repo.CreateBooking(ctx, booking); err != nil {
		return err
	}
	s.publish(events.EventBookingCreated, booking)
	return nil
}

// BlockSlot closes [start, start+duration) on date. Blocks conflict exactly
// like bookings.
func (s *BookingService) BlockSlot(ctx context.Context, date, start string, durationMinutes int) (*models.Booking, error) {
	if err := s.validateWindow(date, start, durationMinutes); err != nil {
		return nil, err
	}
	block := &models.Booking{
		Date:            date,
		Time:            start,
		DurationMinutes: durationMinutes,
		ClientName:      models.BlockedName,
		Source:          models.SourceBlock,
	}
	if err := s.repo.CreateBooking(ctx, block); err != nil {
		return nil, err
	}
	s.publish(events.EventBookingCreated, block)
	return block, nil
}

// CancelBooking deletes a booking or a block.
func (s *BookingService) CancelBooking(ctx context.Context, id int64) error {
	booking, err := s.repo.GetBooking(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteBooking(ctx, id); err != nil {
		return err
	}
	s.publish(events.EventBookingDeleted, booking)
	return nil
}

func (s *BookingService) ListDay(ctx context.Context, date string) ([]*models.Booking, error) {
	if err := validateDate(date); err != nil {
		return nil, err
	}
	return s.repo.ListBookings(ctx, date)
}

func (s *BookingService) validateWindow(date, start string, duration int) error {
	if err := validateDate(date); err != nil {
		return err
	}
	if duration <= 0 {
		return fmt.Errorf("%w: duration must be positive", domain.ErrInvalidInput)
	}
	m, err := scheduling.ParseClock(start)
	if err != nil {
		return err
	}
	if m < s.hours.Open || m+duration > s.hours.Close {
		return fmt.Errorf("%w: %s+%dmin is outside opening hours", domain.ErrInvalidInput, start, duration)
	}
	return nil
}

func validateDate(date string) error {
	if _, err := time.Parse(models.DateLayout, date); err != nil {
		return fmt.Errorf("%w: bad date %q", domain.ErrInvalidInput, date)
	}
	return nil
}

func (s *BookingService) publish(eventType string, booking *models.Booking) {
	if s.eventBus == nil {
		return
	}
	if err := s.eventBus.PublishJSON(eventType, events.BookingEventPayload{Booking: booking}); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Int64("booking_id", booking.ID).Msg("publish event error")
	}
}
