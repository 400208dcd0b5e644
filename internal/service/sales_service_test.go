package service

import (
	"context"
	"testing"
	"time"

	"salon/internal/domain"
	"salon/internal/events"
	"salon/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedProduct(t *testing.T, store domain.ProductRepository, sku string, qty int, price, cost int64) *models.Product {
	t.Helper()
	p := &models.Product{
		SKU: sku, Name: "Perfume " + sku, Category: models.CategoryPerfume,
		Quantity: qty, Price: price, Cost: cost, LowStockThreshold: 1, Active: true,
	}
	require.NoError(t, store.CreateProduct(context.Background(), p))
	return p
}

func TestSalesService_Checkout(t *testing.T) {
	ctx := context.Background()
	db := newTestStore(t)
	bus := &recordingBus{}
	s := NewSalesService(db, bus, nopLogger())

	client := seedClient(t, db, "Ana", "+56981234567")
	p := seedProduct(t, db, "P-001", 5, 30000, 18000)

	lines, err := s.Checkout(ctx, models.CheckoutRequest{
		ClientID:      &client.ID,
		PaymentMethod: models.PaymentDebit,
		Staff:         "ana@salon.cl",
		Lines: []models.CheckoutLine{
			{ProductID: &p.ID, Quantity: 2},
			{Description: "Peinado", Category: models.CategoryHair, Quantity: 1, UnitPrice: 8000},
		},
	})
	require.NoError(t, err)
	require.Len(t, lines, 2)

	assert.Equal(t, models.KindProduct, lines[0].Kind)
	assert.Equal(t, p.Name, lines[0].Description)
	assert.Equal(t, int64(60000), lines[0].Total)
	assert.Equal(t, int64(18000), lines[0].UnitCost)
	assert.Equal(t, models.KindService, lines[1].Kind)
	assert.Equal(t, int64(8000), lines[1].Total)
	assert.Equal(t, models.PaymentDebit, lines[1].PaymentMethod)
	assert.NotZero(t, lines[1].ID)

	stock, err := db.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, stock.Quantity)
	assert.Equal(t, 1, bus.Count(events.EventSaleCompleted))

	t.Run("PriceOverride", func(t *testing.T) {
		lines, err := s.Checkout(ctx, models.CheckoutRequest{
			PaymentMethod: models.PaymentCash,
			Lines:         []models.CheckoutLine{{ProductID: &p.ID, Quantity: 1, UnitPrice: 25000}},
		})
		require.NoError(t, err)
		assert.Equal(t, int64(25000), lines[0].Total)
	})

	t.Run("InsufficientStockWritesNothing", func(t *testing.T) {
		_, err := s.Checkout(ctx, models.CheckoutRequest{
			PaymentMethod: models.PaymentCash,
			Lines: []models.CheckoutLine{
				{Description: "Lavado", Quantity: 1, UnitPrice: 5000},
				{ProductID: &p.ID, Quantity: 10},
			},
		})
		assert.ErrorIs(t, err, domain.ErrInsufficientStock)

		txs, err := db.ListTransactions(ctx, time.Now().Add(-time.Hour), time.Now().Add(time.Hour))
		require.NoError(t, err)
		assert.Len(t, txs, 3)
	})

	t.Run("Validation", func(t *testing.T) {
		missing := int64(404)
		tests := []struct {
			name    string
			req     models.CheckoutRequest
			wantErr error
		}{
			{"payment", models.CheckoutRequest{PaymentMethod: "bitcoin", Lines: []models.CheckoutLine{{Description: "x", Quantity: 1}}}, domain.ErrInvalidInput},
			{"empty cart", models.CheckoutRequest{PaymentMethod: models.PaymentCash}, domain.ErrInvalidInput},
			{"zero quantity", models.CheckoutRequest{PaymentMethod: models.PaymentCash, Lines: []models.CheckoutLine{{Description: "x"}}}, domain.ErrInvalidInput},
			{"no description", models.CheckoutRequest{PaymentMethod: models.PaymentCash, Lines: []models.CheckoutLine{{Quantity: 1, UnitPrice: 100}}}, domain.ErrInvalidInput},
			{"bad category", models.CheckoutRequest{PaymentMethod: models.PaymentCash, Lines: []models.CheckoutLine{{Description: "x", Category: "shoes", Quantity: 1}}}, domain.ErrInvalidInput},
			{"unknown product", models.CheckoutRequest{PaymentMethod: models.PaymentCash, Lines: []models.CheckoutLine{{ProductID: &missing, Quantity: 1}}}, domain.ErrNotFound},
			{"unknown client", models.CheckoutRequest{ClientID: &missing, PaymentMethod: models.PaymentCash, Lines: []models.CheckoutLine{{Description: "x", Quantity: 1}}}, domain.ErrNotFound},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := s.Checkout(ctx, tt.req)
				assert.ErrorIs(t, err, tt.wantErr)
			})
		}
	})

	t.Run("InactiveProduct", func(t *testing.T) {
		retired := &models.Product{SKU: "OLD-1", Name: "Retirado", Category: models.CategoryGift, Quantity: 3, Active: false}
		require.NoError(t, db.CreateProduct(ctx, retired))
		_, err := s.Checkout(ctx, models.CheckoutRequest{
			PaymentMethod: models.PaymentCash,
			Lines:         []models.CheckoutLine{{ProductID: &retired.ID, Quantity: 1}},
		})
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})
}

func TestSalesService_DeleteTransaction(t *testing.T) {
	ctx := context.Background()
	db := newTestStore(t)
	s := NewSalesService(db, nil, nopLogger())
	p := seedProduct(t, db, "P-002", 2, 10000, 5000)

	lines, err := s.Checkout(ctx, models.CheckoutRequest{
		PaymentMethod: models.PaymentCash,
		Lines:         []models.CheckoutLine{{ProductID: &p.ID, Quantity: 1}},
	})
	require.NoError(t, err)

	require.NoError(t, s.DeleteTransaction(ctx, lines[0].ID))
	assert.ErrorIs(t, s.DeleteTransaction(ctx, lines[0].ID), domain.ErrNotFound)

	stock, err := db.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stock.Quantity)
}
