package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"salon/internal/domain"
	"salon/internal/events"
	"salon/internal/loyalty"
	"salon/internal/metrics"
	"salon/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const defaultHairService = "Servicio de cabello"

// LoyaltyStore is what the loyalty engine needs from persistence.
type LoyaltyStore interface {
	domain.ClientRepository
	CreateTransaction(ctx context.Context, tx *models.Transaction) error
}

// LoyaltyService applies the loyalty rules to stored clients. Every counter
// or flag write is a compare-and-set on the value that was read.
type LoyaltyService struct {
	repo     LoyaltyStore
	eventBus domain.EventPublisher
	region   string
	now      func() time.Time
	newToken func() string
	logger   *zerolog.Logger
}

var _ domain.LoyaltyService = (*LoyaltyService)(nil)

func NewLoyaltyService(repo LoyaltyStore, eventBus domain.EventPublisher, phoneRegion string, logger *zerolog.Logger) *LoyaltyService {
	if phoneRegion == "" {
		phoneRegion = "CL"
	}
	return &LoyaltyService{
		repo:     repo,
		eventBus: eventBus,
		region:   phoneRegion,
		now:      time.Now,
		newToken: uuid.NewString,
		logger:   logger,
	}
}

// RegisterClient validates and stores a new member with zeroed counters.
func (s *LoyaltyService) RegisterClient(ctx context.Context, req models.RegisterClientRequest) (*models.ClientCard, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", domain.ErrInvalidInput)
	}
	if !req.TermsAccepted {
		return nil, fmt.Errorf("%w: terms must be accepted", domain.ErrInvalidInput)
	}
	phone, err := loyalty.NormalizePhone(req.Phone, s.region)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}

	var rut string
	if strings.TrimSpace(req.RUT) != "" {
		if rut = loyalty.NormalizeRUT(req.RUT); rut == "" {
			return nil, fmt.Errorf("%w: bad rut %q", domain.ErrInvalidInput, req.RUT)
		}
	}

	email := strings.TrimSpace(req.Email)
	if email != "" {
		addr, err := mail.ParseAddress(email)
		if err != nil {
			return nil, fmt.Errorf("%w: bad email %q", domain.ErrInvalidInput, req.Email)
		}
		email = addr.Address
	}

	now := s.now()
	client := &models.Client{
		Name:            name,
		Phone:           phone,
		Email:           email,
		RUT:             rut,
		Token:           s.newToken(),
		TermsAcceptedAt: now,
	}
	if err := s.repo.CreateClient(ctx, client); err != nil {
		return nil, err
	}

	s.logger.Info().Int64("client_id", client.ID).Msg("client registered")
	s.publish(events.EventClientRegistered, client, now, "", "")
	return models.NewClientCard(client), nil
}

// Card finds a client by phone or membership token.
func (s *LoyaltyService) Card(ctx context.Context, lookup models.CardLookup) (*models.ClientCard, error) {
	var (
		client *models.Client
		err    error
	)
	switch {
	case strings.TrimSpace(lookup.Token) != "":
		client, err = s.repo.GetClientByToken(ctx, strings.TrimSpace(lookup.Token))
	case strings.TrimSpace(lookup.Phone) != "":
		phone, perr := loyalty.NormalizePhone(lookup.Phone, s.region)
		if perr != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, perr)
		}
		client, err = s.repo.GetClientByPhone(ctx, phone)
	default:
		return nil, fmt.Errorf("%w: phone or token is required", domain.ErrInvalidInput)
	}
	if err != nil {
		return nil, err
	}
	return models.NewClientCard(client), nil
}

func (s *LoyaltyService) GetCard(ctx context.Context, clientID int64) (*models.ClientCard, error) {
	client, err := s.repo.GetClient(ctx, clientID)
	if err != nil {
		return nil, err
	}
	return models.NewClientCard(client), nil
}

// RegisterVisit counts one visit and stamps last_visit.
func (s *LoyaltyService) RegisterVisit(ctx context.Context, clientID int64) (*models.ClientCard, error) {
	client, err := s.repo.GetClient(ctx, clientID)
	if err != nil {
		return nil, err
	}

	next := client.Account().WithVisit()
	now := s.now()
	err = s.repo.UpdateClientIf(ctx, clientID,
		models.ClientPatch{Visits: models.Int(client.Visits)},
		models.ClientPatch{Visits: models.Int(next.Visits), LastVisit: models.Time(now)})
	if err != nil {
		return nil, lostRace(err)
	}

	client.Visits = next.Visits
	client.LastVisit = &now

	metrics.IncLoyaltyEvent(models.VisitKindVisit)
	s.publish(events.EventVisitRegistered, client, now, "", "")
	return models.NewClientCard(client), nil
}

// RegisterHairService counts one hair service, raises any reward it unlocks
// and records the service as a sale. The sale is best effort: the loyalty
// update stands when it fails.
func (s *LoyaltyService) RegisterHairService(ctx context.Context, clientID int64, req models.HairServiceRequest) (*models.HairServiceResult, error) {
	if req.Price < 0 {
		return nil, fmt.Errorf("%w: price must not be negative", domain.ErrInvalidInput)
	}
	if req.PaymentMethod == "" {
		req.PaymentMethod = models.PaymentCash
	}
	if !models.ValidPaymentMethod(req.PaymentMethod) {
		return nil, fmt.Errorf("%w: unknown payment method %q", domain.ErrInvalidInput, req.PaymentMethod)
	}
	serviceName := strings.TrimSpace(req.ServiceName)
	if serviceName == "" {
		serviceName = defaultHairService
	}

	client, err := s.repo.GetClient(ctx, clientID)
	if err != nil {
		return nil, err
	}

	next, unlocks := client.Account().WithHairService()
	fields := models.ClientPatch{HairServiceCount: models.Int(next.HairServiceCount)}
	// Only raise flags. Writing false here could undo a redemption that
	// raced with this update.
	if unlocks.Discount {
		fields.DiscountAvailable = models.Bool(true)
	}
	if unlocks.FreeCut {
		fields.FreeCutAvailable = models.Bool(true)
	}

	err = s.repo.UpdateClientIf(ctx, clientID,
		models.ClientPatch{HairServiceCount: models.Int(client.HairServiceCount)}, fields)
	if err != nil {
		return nil, lostRace(err)
	}

	client.HairServiceCount = next.HairServiceCount
	client.DiscountAvailable = client.DiscountAvailable || unlocks.Discount
	client.FreeCutAvailable = client.FreeCutAvailable || unlocks.FreeCut
	now := s.now()

	if req.Price > 0 {
		tx := &models.Transaction{
			ClientID:      &client.ID,
			Kind:          models.KindService,
			Description:   serviceName,
			Category:      models.CategoryHair,
			Quantity:      1,
			UnitPrice:     req.Price,
			Total:         req.Price,
			PaymentMethod: req.PaymentMethod,
		}
		if err := s.repo.CreateTransaction(ctx, tx); err != nil {
			s.logger.Error().Err(err).Int64("client_id", clientID).Msg("hair service sale not recorded")
		}
	}

	metrics.IncLoyaltyEvent(models.VisitKindHairService)
	s.publish(events.EventHairServiceRegistered, client, now, "", serviceName)
	if unlocks.Discount {
		metrics.IncReward(loyalty.RewardDiscount, "unlocked")
		s.publish(events.EventRewardUnlocked, client, now, loyalty.RewardDiscount, serviceName)
	}
	if unlocks.FreeCut {
		metrics.IncReward(loyalty.RewardFreeCut, "unlocked")
		s.publish(events.EventRewardUnlocked, client, now, loyalty.RewardFreeCut, serviceName)
	}

	return &models.HairServiceResult{Card: models.NewClientCard(client), Unlocks: unlocks}, nil
}

func (s *LoyaltyService) RedeemDiscount(ctx context.Context, clientID int64) (*models.ClientCard, error) {
	return s.redeem(ctx, clientID, loyalty.RewardDiscount)
}

func (s *LoyaltyService) RedeemFreeCut(ctx context.Context, clientID int64) (*models.ClientCard, error) {
	return s.redeem(ctx, clientID, loyalty.RewardFreeCut)
}

// redeem clears a reward flag exactly once. Counters are left alone.
func (s *LoyaltyService) redeem(ctx context.Context, clientID int64, reward string) (*models.ClientCard, error) {
	client, err := s.repo.GetClient(ctx, clientID)
	if err != nil {
		return nil, err
	}

	var (
		next  loyalty.Account
		ok    bool
		guard models.ClientPatch
		patch models.ClientPatch
	)
	switch reward {
	case loyalty.RewardDiscount:
		next, ok = client.Account().RedeemDiscount()
		guard.DiscountAvailable, patch.DiscountAvailable = models.Bool(true), models.Bool(false)
	case loyalty.RewardFreeCut:
		next, ok = client.Account().RedeemFreeCut()
		guard.FreeCutAvailable, patch.FreeCutAvailable = models.Bool(true), models.Bool(false)
	default:
		return nil, fmt.Errorf("%w: unknown reward %q", domain.ErrInvalidInput, reward)
	}
	if !ok {
		return nil, fmt.Errorf("%s: %w", reward, domain.ErrAlreadyRedeemed)
	}

	if err := s.repo.UpdateClientIf(ctx, clientID, guard, patch); err != nil {
		if errors.Is(err, domain.ErrPreconditionFailed) {
			return nil, fmt.Errorf("%s: %w", reward, domain.ErrAlreadyRedeemed)
		}
		return nil, err
	}

	client.DiscountAvailable = next.DiscountAvailable
	client.FreeCutAvailable = next.FreeCutAvailable

	metrics.IncReward(reward, "redeemed")
	s.publish(events.EventRewardRedeemed, client, s.now(), reward, "")
	return models.NewClientCard(client), nil
}

func (s *LoyaltyService) ListClients(ctx context.Context, search string, limit int) ([]*models.ClientCard, error) {
	clients, err := s.repo.ListClients(ctx, search, limit)
	if err != nil {
		return nil, err
	}
	cards := make([]*models.ClientCard, 0, len(clients))
	for _, c := range clients {
		cards = append(cards, models.NewClientCard(c))
	}
	return cards, nil
}

func (s *LoyaltyService) DeleteClient(ctx context.Context, clientID int64) error {
	if err := s.repo.DeleteClient(ctx, clientID); err != nil {
		return err
	}
	s.logger.Warn().Int64("client_id", clientID).Msg("client deleted")
	return nil
}

// lostRace turns a failed increment guard into ErrConcurrentModification.
func lostRace(err error) error {
	if errors.Is(err, domain.ErrPreconditionFailed) {
		return fmt.Errorf("%w: %v", domain.ErrConcurrentModification, err)
	}
	return err
}

func (s *LoyaltyService) publish(eventType string, client *models.Client, at time.Time, reward, serviceName string) {
	if s.eventBus == nil {
		return
	}
	payload := events.NewClientEventPayload(client, at)
	payload.Reward = reward
	payload.ServiceName = serviceName
	if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Int64("client_id", client.ID).Msg("publish event error")
	}
}
