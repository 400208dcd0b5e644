package database

import (
	"context"
	"testing"
	"time"

	"salon/internal/domain"
	"salon/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestProduct(t *testing.T, db *DB, sku string, qty int) *models.Product {
	t.Helper()
	p := &models.Product{SKU: sku, Name: "Perfume " + sku, Category: models.CategoryPerfume, Quantity: qty, Cost: 20000, Price: 35000, LowStockThreshold: 2, Active: true}
	require.NoError(t, db.CreateProduct(context.Background(), p))
	return p
}

func TestProductCRUD(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	p := newTestProduct(t, db, "PF-001", 5)
	assert.NotZero(t, p.ID)

	got, err := db.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "PF-001", got.SKU)
	assert.True(t, got.Active)

	err = db.CreateProduct(ctx, &models.Product{SKU: "PF-001", Name: "dup", Category: models.CategoryPerfume})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	require.NoError(t, db.CreateProduct(ctx, &models.Product{SKU: "OLD-1", Name: "Retirado", Category: models.CategoryGift}))

	all, err := db.ListProducts(ctx, false)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	active, err := db.ListProducts(ctx, true)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "PF-001", active[0].SKU)

	_, err = db.GetProduct(ctx, 999)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestUpsertProductBySKU(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	p := &models.Product{SKU: "DC-10", Name: "Decant 10ml", Category: models.CategoryDecant, Quantity: 8, Price: 9000, Active: true}
	require.NoError(t, db.UpsertProductBySKU(ctx, p))
	assert.NotZero(t, p.ID)
	firstID := p.ID

	again := &models.Product{SKU: "DC-10", Name: "Decant 10 ml", Category: models.CategoryDecant, Quantity: 100, Price: 9500, Active: true}
	require.NoError(t, db.UpsertProductBySKU(ctx, again))
	assert.Equal(t, firstID, again.ID)
	assert.Equal(t, "Decant 10 ml", again.Name)
	assert.Equal(t, int64(9500), again.Price)
	assert.Equal(t, 8, again.Quantity, "stock is only seeded on insert")
}

func TestAdjustStock(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	p := newTestProduct(t, db, "PF-002", 3)

	updated, err := db.AdjustStock(ctx, p.ID, 4, "reposición", "ana@salon.cl")
	require.NoError(t, err)
	assert.Equal(t, 7, updated.Quantity)

	updated, err = db.AdjustStock(ctx, p.ID, -7, "merma", "ana@salon.cl")
	require.NoError(t, err)
	assert.Equal(t, 0, updated.Quantity)
	assert.True(t, updated.IsLowStock())

	_, err = db.AdjustStock(ctx, p.ID, -1, "merma", "")
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)

	_, err = db.AdjustStock(ctx, 999, 1, "x", "")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = db.AdjustStock(ctx, p.ID, 0, "x", "")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	moves, err := db.ListStockMovements(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, moves, 2)
	assert.Equal(t, 4, moves[0].Delta)
	assert.Equal(t, -7, moves[1].Delta)
	assert.Equal(t, "ana@salon.cl", moves[0].Staff)
}

func TestCreateSale(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	p := newTestProduct(t, db, "PF-003", 2)
	c := newTestClient(t, db, "Ana", "+56911111111")

	lines := []*models.Transaction{
		{ClientID: &c.ID, ProductID: &p.ID, Kind: models.KindProduct, Description: p.Name, Category: p.Category, Quantity: 2, UnitPrice: p.Price, UnitCost: p.Cost, PaymentMethod: models.PaymentDebit},
		{ClientID: &c.ID, Kind: models.KindService, Description: "Peinado", Category: models.CategoryHair, Quantity: 1, UnitPrice: 15000, PaymentMethod: models.PaymentDebit},
	}
	require.NoError(t, db.CreateSale(ctx, lines, "ana@salon.cl"))
	assert.NotZero(t, lines[0].ID)
	assert.Equal(t, int64(70000), lines[0].Total)

	stock, err := db.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, stock.Quantity)

	txs, err := db.ListTransactions(ctx, time.Now().Add(-time.Hour), time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Len(t, txs, 2)

	t.Run("InsufficientStockRollsBack", func(t *testing.T) {
		err := db.CreateSale(ctx, []*models.Transaction{
			{Kind: models.KindService, Description: "Corte", Category: models.CategoryHair, Quantity: 1, UnitPrice: 12000, PaymentMethod: models.PaymentCash},
			{ProductID: &p.ID, Kind: models.KindProduct, Description: p.Name, Category: p.Category, Quantity: 1, UnitPrice: p.Price, PaymentMethod: models.PaymentCash},
		}, "")
		assert.ErrorIs(t, err, domain.ErrInsufficientStock)

		txs, err := db.ListTransactions(ctx, time.Now().Add(-time.Hour), time.Now().Add(time.Hour))
		require.NoError(t, err)
		assert.Len(t, txs, 2)
	})

	t.Run("DeleteDoesNotRestock", func(t *testing.T) {
		require.NoError(t, db.DeleteTransaction(ctx, lines[0].ID))
		assert.ErrorIs(t, db.DeleteTransaction(ctx, lines[0].ID), domain.ErrNotFound)

		stock, err := db.GetProduct(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, 0, stock.Quantity)
	})

	t.Run("Empty", func(t *testing.T) {
		assert.ErrorIs(t, db.CreateSale(ctx, nil, ""), domain.ErrInvalidInput)
	})
}

func TestCountNewClients(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	newTestClient(t, db, "Ana", "+56911111111")
	newTestClient(t, db, "Eva", "+56922222222")

	n, err := db.CountNewClients(ctx, time.Now().Add(-time.Hour), time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = db.CountNewClients(ctx, time.Now().Add(-48*time.Hour), time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Zero(t, n)
}
