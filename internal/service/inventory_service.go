package service

import (
	"context"
	"fmt"
	"strings"

	"salon/internal/domain"
	"salon/internal/models"

	"github.com/rs/zerolog"
)

type InventoryService struct {
	repo   domain.ProductRepository
	logger *zerolog.Logger
}

var _ domain.InventoryService = (*InventoryService)(nil)

func NewInventoryService(repo domain.ProductRepository, logger *zerolog.Logger) *InventoryService {
	return &InventoryService{repo: repo, logger: logger}
}

func (s *InventoryService) CreateProduct(ctx context.Context, p *models.Product) error {
	p.SKU = strings.ToUpper(strings.TrimSpace(p.SKU))
	p.Name = strings.TrimSpace(p.Name)
	switch {
	case p.SKU == "" || p.Name == "":
		return fmt.Errorf("%w: sku and name are required", domain.ErrInvalidInput)
	case !models.ValidCategory(p.Category):
		return fmt.Errorf("%w: unknown category %q", domain.ErrInvalidInput, p.Category)
	case p.Quantity < 0 || p.Price < 0 || p.Cost < 0 || p.LowStockThreshold < 0:
		return fmt.Errorf("%w: quantities and amounts must not be negative", domain.ErrInvalidInput)
	}
	if err := s.repo.CreateProduct(ctx, p); err != nil {
		return err
	}
	s.logger.Info().Str("sku", p.SKU).Int64("product_id", p.ID).Msg("product created")
	return nil
}

func (s *InventoryService) ListProducts(ctx context.Context, activeOnly bool) ([]*models.Product, error) {
	return s.repo.ListProducts(ctx, activeOnly)
}

// AdjustStock records a manual stock change. reason is mandatory.
func (s *InventoryService) AdjustStock(ctx context.Context, productID int64, delta int, reason, staff string) (*models.Product, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, fmt.Errorf("%w: reason is required", domain.ErrInvalidInput)
	}
	p, err := s.repo.AdjustStock(ctx, productID, delta, reason, staff)
	if err != nil {
		return nil, err
	}
	if p.IsLowStock() {
		s.logger.Warn().Str("sku", p.SKU).Int("quantity", p.Quantity).Msg("low stock")
	}
	return p, nil
}

// LowStock lists active products at or under their alert threshold.
func (s *InventoryService) LowStock(ctx context.Context) ([]*models.Product, error) {
	products, err := s.repo.ListProducts(ctx, true)
	if err != nil {
		return nil, err
	}
	low := make([]*models.Product, 0)
	for _, p := range products {
		if p.IsLowStock() {
			low = append(low, p)
		}
	}
	return low, nil
}
