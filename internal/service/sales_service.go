package service

import (
	"context"
	"fmt"
	"strings"

	"salon/internal/domain"
	"salon/internal/events"
	"salon/internal/models"

	"github.com/rs/zerolog"
)

// SalesStore is the persistence used by the point of sale.
type SalesStore interface {
	GetClient(ctx context.Context, id int64) (*models.Client, error)
	GetProduct(ctx context.Context, id int64) (*models.Product, error)
	CreateSale(ctx context.Context, lines []*models.Transaction, staff string) error
	DeleteTransaction(ctx context.Context, id int64) error
}

type SalesService struct {
	repo     SalesStore
	eventBus domain.EventPublisher
	logger   *zerolog.Logger
}

var _ domain.SalesService = (*SalesService)(nil)

func NewSalesService(repo SalesStore, eventBus domain.EventPublisher, logger *zerolog.Logger) *SalesService {
	return &SalesService{repo: repo, eventBus: eventBus, logger: logger}
}

// Checkout turns a cart into transactions. Product lines take name, category
// and cost from the catalog and draw down stock; all lines are stored
// together or not at all.
func (s *SalesService) Checkout(ctx context.Context, req models.CheckoutRequest) ([]*models.Transaction, error) {
	if !models.ValidPaymentMethod(req.PaymentMethod) {
		return nil, fmt.Errorf("%w: unknown payment method %q", domain.ErrInvalidInput, req.PaymentMethod)
	}
	if len(req.Lines) == 0 {
		return nil, fmt.Errorf("%w: cart is empty", domain.ErrInvalidInput)
	}
	if req.ClientID != nil {
		if _, err := s.repo.GetClient(ctx, *req.ClientID); err != nil {
			return nil, err
		}
	}

	lines := make([]*models.Transaction, 0, len(req.Lines))
	var total int64
	for i, l := range req.Lines {
		tx, err := s.buildLine(ctx, l)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", i+1, err)
		}
		tx.ClientID = req.ClientID
		tx.PaymentMethod = req.PaymentMethod
		total += tx.Total
		lines = append(lines, tx)
	}

	if err := s.repo.CreateSale(ctx, lines, req.Staff); err != nil {
		return nil, err
	}

	s.logger.Info().Int("lines", len(lines)).Int64("total", total).Str("staff", req.Staff).Msg("sale completed")
	if s.eventBus != nil {
		payload := events.SaleEventPayload{
			ClientID:      req.ClientID,
			PaymentMethod: req.PaymentMethod,
			Total:         total,
			Staff:         req.Staff,
			Lines:         lines,
		}
		if err := s.eventBus.PublishJSON(events.EventSaleCompleted, payload); err != nil {
			s.logger.Error().Err(err).Msg("publish sale event error")
		}
	}
	return lines, nil
}

func (s *SalesService) buildLine(ctx context.Context, l models.CheckoutLine) (*models.Transaction, error) {
	if l.Quantity <= 0 {
		return nil, fmt.Errorf("%w: quantity must be positive", domain.ErrInvalidInput)
	}
	if l.UnitPrice < 0 {
		return nil, fmt.Errorf("%w: price must not be negative", domain.ErrInvalidInput)
	}

	if l.ProductID != nil {
		p, err := s.repo.GetProduct(ctx, *l.ProductID)
		if err != nil {
			return nil, err
		}
		if !p.Active {
			return nil, fmt.Errorf("%w: product %s is not for sale", domain.ErrInvalidInput, p.SKU)
		}
		price := p.Price
		if l.UnitPrice > 0 {
			price = l.UnitPrice
		}
		return &models.Transaction{
			ProductID:   &p.ID,
			Kind:        models.KindProduct,
			Description: p.Name,
			Category:    p.Category,
			Quantity:    l.Quantity,
			UnitPrice:   price,
			UnitCost:    p.Cost,
			Total:       price * int64(l.Quantity),
		}, nil
	}

	desc := strings.TrimSpace(l.Description)
	if desc == "" {
		return nil, fmt.Errorf("%w: service line needs a description", domain.ErrInvalidInput)
	}
	category := l.Category
	if category == "" {
		category = models.CategoryOther
	}
	if !models.ValidCategory(category) {
		return nil, fmt.Errorf("%w: unknown category %q", domain.ErrInvalidInput, category)
	}
	return &models.Transaction{
		Kind:        models.KindService,
		Description: desc,
		Category:    category,
		Quantity:    l.Quantity,
		UnitPrice:   l.UnitPrice,
		Total:       l.UnitPrice * int64(l.Quantity),
	}, nil
}

// DeleteTransaction is an admin override. Stock is not put back; a return
// is recorded as a positive stock adjustment.
func (s *SalesService) DeleteTransaction(ctx context.Context, id int64) error {
	if err := s.repo.DeleteTransaction(ctx, id); err != nil {
		return err
	}
	s.logger.Warn().Int64("transaction_id", id).Msg("transaction deleted")
	return nil
}
