package service

import (
	"context"
	"testing"

	"salon/internal/domain"
	"salon/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInventoryService(t *testing.T) {
	ctx := context.Background()
	db := newTestStore(t)
	s := NewInventoryService(db, nopLogger())

	p := &models.Product{SKU: " dec-10 ", Name: "Decant 10ml", Category: models.CategoryDecant, Quantity: 4, Price: 9000, Cost: 3000, LowStockThreshold: 2, Active: true}
	require.NoError(t, s.CreateProduct(ctx, p))
	assert.Equal(t, "DEC-10", p.SKU)

	t.Run("Invalid", func(t *testing.T) {
		assert.ErrorIs(t, s.CreateProduct(ctx, &models.Product{Name: "x", Category: models.CategoryGift}), domain.ErrInvalidInput)
		assert.ErrorIs(t, s.CreateProduct(ctx, &models.Product{SKU: "A", Name: "x", Category: "shoes"}), domain.ErrInvalidInput)
		assert.ErrorIs(t, s.CreateProduct(ctx, &models.Product{SKU: "A", Name: "x", Category: models.CategoryGift, Price: -1}), domain.ErrInvalidInput)
		assert.ErrorIs(t, s.CreateProduct(ctx, &models.Product{SKU: "dec-10", Name: "dup", Category: models.CategoryDecant}), domain.ErrInvalidInput)
	})

	low, err := s.LowStock(ctx)
	require.NoError(t, err)
	assert.Empty(t, low)

	updated, err := s.AdjustStock(ctx, p.ID, -2, "merma", "ana@salon.cl")
	require.NoError(t, err)
	assert.Equal(t, 2, updated.Quantity)

	low, err = s.LowStock(ctx)
	require.NoError(t, err)
	require.Len(t, low, 1)
	assert.Equal(t, p.ID, low[0].ID)

	_, err = s.AdjustStock(ctx, p.ID, -5, "merma", "")
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)

	_, err = s.AdjustStock(ctx, p.ID, 3, "  ", "")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	moves, err := db.ListStockMovements(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, moves, 1)
	assert.Equal(t, "merma", moves[0].Reason)

	all, err := s.ListProducts(ctx, false)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}
