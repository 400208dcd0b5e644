package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"salon/internal/auth"
	"salon/internal/config"
	"salon/internal/database"
	"salon/internal/domain"
	"salon/internal/events"
	"salon/internal/models"
	"salon/internal/scheduling"
	"salon/internal/service"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"golang.org/x/crypto/bcrypt"
)

const futureDay = "2030-03-11"

type testAPI struct {
	server *HTTPServer
	deps   Deps
	db     *database.DB
	admin  string
	staff  string
}

// stubCheckIn lets walk-in tests choose the outcome without a wall clock.
type stubCheckIn struct {
	res *models.WalkInResult
	err error
	got *models.WalkInRequest
}

func (s stubCheckIn) WalkIn(_ context.Context, req models.WalkInRequest) (*models.WalkInResult, error) {
	if s.got != nil {
		*s.got = req
	}
	return s.res, s.err
}

func newTestDeps(t *testing.T) (Deps, *database.DB) {
	t.Helper()
	logger := zerolog.New(io.Discard)
	db, err := database.NewDB(":memory:", &logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	hashed := func(pw string) string {
		h, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.MinCost)
		require.NoError(t, err)
		return string(h)
	}
	authorizer, err := auth.NewAuthorizer()
	require.NoError(t, err)

	bus := events.NewEventBus(&logger)
	loyaltySvc := service.NewLoyaltyService(db, bus, "CL", &logger)
	bookings := service.NewBookingService(db, bus, scheduling.DefaultHours(), time.UTC, &logger)

	deps := Deps{
		Loyalty:   loyaltySvc,
		Bookings:  bookings,
		CheckIn:   service.NewCheckInService(bookings, loyaltySvc, &logger),
		Sales:     service.NewSalesService(db, bus, &logger),
		Inventory: service.NewInventoryService(db, &logger),
		Reports:   service.NewReportService(db, time.UTC, &logger),
		Verifier: auth.NewStaffVerifier([]config.StaffAccount{
			{Email: "admin@salon.cl", PasswordHash: hashed("secreto"), Role: "admin"},
			{Email: "recepcion@salon.cl", PasswordHash: hashed("hola123"), Role: "staff"},
		}),
		Tokens:     auth.NewTokenIssuer("0123456789abcdef0123", "salon", time.Hour),
		Authorizer: authorizer,
		Location:   time.UTC,
	}
	return deps, db
}

func newTestAPI(t *testing.T, mutate func(cfg *config.APIConfig, deps *Deps)) *testAPI {
	t.Helper()
	deps, db := newTestDeps(t)
	cfg := config.APIConfig{Enabled: true, HTTP: config.APIHTTPConfig{Enabled: true, Port: 0}}
	if mutate != nil {
		mutate(&cfg, &deps)
	}
	api := &testAPI{server: NewHTTPServer(cfg, deps, nil), deps: deps, db: db}
	api.admin = api.login(t, "admin@salon.cl", "secreto")
	api.staff = api.login(t, "recepcion@salon.cl", "hola123")
	return api
}

func (a *testAPI) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.server.Handler().ServeHTTP(rec, req)
	return rec
}

func (a *testAPI) login(t *testing.T, email, password string) string {
	t.Helper()
	rec := a.do(t, http.MethodPost, "/api/v1/auth/login", "", auth.Credentials{Email: email, Password: password})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var out struct {
		Token string `json:"token"`
	}
	decode(t, rec, &out)
	require.NotEmpty(t, out.Token)
	return out.Token
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func errorOf(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var out struct {
		Error string `json:"error"`
	}
	decode(t, rec, &out)
	return out.Error
}

func TestHealthAndReadiness(t *testing.T) {
	down := errors.New("disk gone")
	api := newTestAPI(t, func(_ *config.APIConfig, deps *Deps) {
		deps.Ready = func(context.Context) error { return down }
	})

	rec := api.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(requestIDHeader))

	rec = api.do(t, http.MethodGet, "/readyz", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRequestIDIsEchoed(t *testing.T) {
	api := newTestAPI(t, nil)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(requestIDHeader, "abc-123")
	rec := httptest.NewRecorder()
	api.server.Handler().ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", rec.Header().Get(requestIDHeader))
}

func TestLogin(t *testing.T) {
	api := newTestAPI(t, nil)

	rec := api.do(t, http.MethodPost, "/api/v1/auth/login", "", auth.Credentials{Email: "admin@salon.cl", Password: "nope"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = api.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{"user": "x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	claims, err := api.deps.Tokens.Parse(api.admin)
	require.NoError(t, err)
	assert.Equal(t, auth.RoleAdmin, claims.Role)
	assert.Equal(t, "admin@salon.cl", claims.Subject)
}

func TestRouteProtection(t *testing.T) {
	api := newTestAPI(t, nil)

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		want   int
	}{
		{"no token", http.MethodGet, "/api/v1/clients", "", http.StatusUnauthorized},
		{"garbage token", http.MethodGet, "/api/v1/clients", "not-a-jwt", http.StatusUnauthorized},
		{"staff on admin route", http.MethodGet, "/api/v1/clients", api.staff, http.StatusForbidden},
		{"admin on admin route", http.MethodGet, "/api/v1/clients", api.admin, http.StatusOK},
		{"staff reads products", http.MethodGet, "/api/v1/products", api.staff, http.StatusOK},
		{"staff cannot delete bookings", http.MethodDelete, "/api/v1/bookings/1", api.staff, http.StatusForbidden},
		{"public card lookup needs a key", http.MethodGet, "/api/v1/clients/card", "", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := api.do(t, tt.method, tt.path, tt.token, nil)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}
}

func TestClientLoyaltyFlow(t *testing.T) {
	api := newTestAPI(t, nil)

	rec := api.do(t, http.MethodPost, "/api/v1/clients", "", models.RegisterClientRequest{
		Name: "Camila", Phone: "9 8123 4567", TermsAccepted: true,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var card models.ClientCard
	decode(t, rec, &card)
	assert.Equal(t, "+56981234567", card.Client.Phone)
	id := card.Client.ID

	rec = api.do(t, http.MethodPost, "/api/v1/clients", "", models.RegisterClientRequest{
		Name: "Otra", Phone: "+56981234567", TermsAccepted: true,
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = api.do(t, http.MethodPost, "/api/v1/clients", "", models.RegisterClientRequest{Name: "Sin", Phone: "+56911112222"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(t, http.MethodGet, "/api/v1/clients/card?token="+card.Client.Token, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = api.do(t, http.MethodGet, "/api/v1/clients/card?phone=%2B56900000000", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	visits := "/api/v1/clients/" + itoa(id) + "/visits"
	for i := 0; i < 5; i++ {
		rec = api.do(t, http.MethodPost, visits, api.staff, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}
	decode(t, rec, &card)
	assert.Equal(t, 5, card.Client.Visits)
	assert.Equal(t, "Plata", string(card.Tier))

	rec = api.do(t, http.MethodPost, "/api/v1/clients/"+itoa(id)+"/redeem/discount", api.staff, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	hair := "/api/v1/clients/" + itoa(id) + "/hair-services"
	for i := 0; i < 5; i++ {
		rec = api.do(t, http.MethodPost, hair, api.staff, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}
	var res models.HairServiceResult
	decode(t, rec, &res)
	assert.True(t, res.Card.Client.DiscountAvailable)

	rec = api.do(t, http.MethodPost, "/api/v1/clients/"+itoa(id)+"/redeem/discount", api.staff, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &card)
	assert.False(t, card.Client.DiscountAvailable)

	rec = api.do(t, http.MethodPost, "/api/v1/clients/"+itoa(id)+"/redeem/discount", api.staff, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.NotEmpty(t, errorOf(t, rec))

	rec = api.do(t, http.MethodPost, "/api/v1/clients/"+itoa(id)+"/redeem/massage", api.staff, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = api.do(t, http.MethodPost, "/api/v1/clients/abc/visits", api.staff, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(t, http.MethodDelete, "/api/v1/clients/"+itoa(id), api.admin, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = api.do(t, http.MethodPost, visits, api.staff, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBookingRoutes(t *testing.T) {
	api := newTestAPI(t, nil)

	rec := api.do(t, http.MethodPost, "/api/v1/bookings/block", api.admin, blockRequest{Date: futureDay, Time: "12:00", DurationMinutes: 60})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var block models.Booking
	decode(t, rec, &block)
	assert.Equal(t, models.BlockedName, block.ClientName)

	rec = api.do(t, http.MethodGet, "/api/v1/slots?date="+futureDay+"&duration=60", api.staff, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var slots struct {
		Slots []string `json:"slots"`
	}
	decode(t, rec, &slots)
	require.NotEmpty(t, slots.Slots)
	assert.Equal(t, "10:00", slots.Slots[0])
	assert.Contains(t, slots.Slots, "11:00")
	assert.NotContains(t, slots.Slots, "11:30")
	assert.NotContains(t, slots.Slots, "12:00")
	assert.Contains(t, slots.Slots, "13:00")
	assert.Equal(t, "20:00", slots.Slots[len(slots.Slots)-1])

	rec = api.do(t, http.MethodGet, "/api/v1/slots?date="+futureDay+"&duration=x", api.staff, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	manual := models.Booking{Date: futureDay, Time: "12:30", DurationMinutes: 30, ClientName: "Pedro", ServiceName: "Corte"}
	rec = api.do(t, http.MethodPost, "/api/v1/bookings", api.staff, manual)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = api.do(t, http.MethodPost, "/api/v1/bookings", api.admin, manual)
	assert.Equal(t, http.StatusConflict, rec.Code)

	manual.Time = "15:00"
	rec = api.do(t, http.MethodPost, "/api/v1/bookings", api.admin, manual)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = api.do(t, http.MethodGet, "/api/v1/bookings?date="+futureDay, api.staff, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var day struct {
		Bookings []*models.Booking `json:"bookings"`
	}
	decode(t, rec, &day)
	assert.Len(t, day.Bookings, 2)

	rec = api.do(t, http.MethodDelete, "/api/v1/bookings/"+itoa(block.ID), api.admin, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = api.do(t, http.MethodDelete, "/api/v1/bookings/"+itoa(block.ID), api.admin, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestWalkInResponses(t *testing.T) {
	booking := &models.Booking{ID: 7, Date: futureDay, Time: "12:00", DurationMinutes: 30, ClientName: "Ana"}

	t.Run("booked and counted", func(t *testing.T) {
		api := newTestAPI(t, func(_ *config.APIConfig, deps *Deps) {
			deps.CheckIn = stubCheckIn{res: &models.WalkInResult{Booking: booking}}
		})
		rec := api.do(t, http.MethodPost, "/api/v1/walk-ins", api.staff, models.WalkInRequest{ClientName: "Ana", DurationMinutes: 30})
		require.Equal(t, http.StatusCreated, rec.Code)
		var out walkInResponse
		decode(t, rec, &out)
		assert.Equal(t, "12:00", out.Booking.Time)
		assert.Empty(t, out.Warning)
	})

	t.Run("booked but visit failed", func(t *testing.T) {
		api := newTestAPI(t, func(_ *config.APIConfig, deps *Deps) {
			deps.CheckIn = stubCheckIn{res: &models.WalkInResult{Booking: booking}, err: domain.ErrNotFound}
		})
		rec := api.do(t, http.MethodPost, "/api/v1/walk-ins", api.staff, models.WalkInRequest{ClientName: "Ana", DurationMinutes: 30})
		require.Equal(t, http.StatusCreated, rec.Code)
		var out walkInResponse
		decode(t, rec, &out)
		assert.Equal(t, int64(7), out.Booking.ID)
		assert.NotEmpty(t, out.Warning)
	})

	t.Run("no slot left", func(t *testing.T) {
		api := newTestAPI(t, func(_ *config.APIConfig, deps *Deps) {
			deps.CheckIn = stubCheckIn{err: domain.ErrNoAvailability}
		})
		rec := api.do(t, http.MethodPost, "/api/v1/walk-ins", api.staff, models.WalkInRequest{ClientName: "Ana", DurationMinutes: 30})
		assert.Equal(t, http.StatusConflict, rec.Code)
	})
}

func TestSalesInventoryAndReports(t *testing.T) {
	api := newTestAPI(t, nil)

	product := models.Product{SKU: "per-001", Name: "Perfume Rosa", Category: models.CategoryPerfume, Quantity: 5, Cost: 10000, Price: 25000, LowStockThreshold: 2, Active: true}
	rec := api.do(t, http.MethodPost, "/api/v1/products", api.staff, product)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = api.do(t, http.MethodPost, "/api/v1/products", api.admin, product)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	decode(t, rec, &product)
	assert.Equal(t, "PER-001", product.SKU)

	checkout := models.CheckoutRequest{
		PaymentMethod: models.PaymentCash,
		Lines:         []models.CheckoutLine{{ProductID: &product.ID, Quantity: 2}},
	}
	rec = api.do(t, http.MethodPost, "/api/v1/sales/checkout", api.staff, checkout)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var sale struct {
		Transactions []*models.Transaction `json:"transactions"`
		Total        int64                 `json:"total"`
	}
	decode(t, rec, &sale)
	require.Len(t, sale.Transactions, 1)
	assert.Equal(t, int64(50000), sale.Total)

	checkout.Lines[0].Quantity = 10
	rec = api.do(t, http.MethodPost, "/api/v1/sales/checkout", api.staff, checkout)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = api.do(t, http.MethodGet, "/api/v1/products/low-stock", api.staff, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var low struct {
		Products []*models.Product `json:"products"`
	}
	decode(t, rec, &low)
	assert.Empty(t, low.Products)

	stockPath := "/api/v1/products/" + itoa(product.ID) + "/stock"
	rec = api.do(t, http.MethodPost, stockPath, api.admin, stockRequest{Delta: -1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = api.do(t, http.MethodPost, stockPath, api.admin, stockRequest{Delta: -1, Reason: "merma"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = api.do(t, http.MethodGet, "/api/v1/products/low-stock", api.staff, nil)
	decode(t, rec, &low)
	require.Len(t, low.Products, 1)
	assert.Equal(t, 2, low.Products[0].Quantity)

	rec = api.do(t, http.MethodGet, "/api/v1/reports/summary", api.admin, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var sum models.SalesSummary
	decode(t, rec, &sum)
	assert.Equal(t, int64(50000), sum.Revenue)
	assert.Equal(t, int64(20000), sum.Cost)
	assert.Equal(t, 1, sum.Transactions)

	rec = api.do(t, http.MethodGet, "/api/v1/reports/summary?from=2025-13-01", api.admin, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(t, http.MethodGet, "/api/v1/reports/summary", api.staff, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = api.do(t, http.MethodGet, "/api/v1/reports/export", api.admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, xlsxContentType, rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "ventas_")
	f, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{"Resumen", "Ventas"}, f.GetSheetList())

	rec = api.do(t, http.MethodDelete, "/api/v1/transactions/"+itoa(sale.Transactions[0].ID), api.admin, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestRateLimit(t *testing.T) {
	api := newTestAPI(t, func(cfg *config.APIConfig, _ *Deps) {
		cfg.RateLimit = config.APIRateLimitConfig{RPS: 0.001, Burst: 2}
	})
	// the two logins in newTestAPI already drained the bucket
	rec := api.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestDomainErrorMapping(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{domain.ErrInvalidInput, http.StatusBadRequest},
		{domain.ErrNotFound, http.StatusNotFound},
		{domain.ErrDenied, http.StatusUnauthorized},
		{domain.ErrForbidden, http.StatusForbidden},
		{domain.ErrNoAvailability, http.StatusConflict},
		{domain.ErrAlreadyRedeemed, http.StatusConflict},
		{domain.ErrInsufficientStock, http.StatusConflict},
		{domain.ErrPersistenceUnavailable, http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, httpStatus(tt.err), tt.err.Error())
	}
}

func TestServiceCatalog(t *testing.T) {
	var got models.WalkInRequest
	api := newTestAPI(t, func(_ *config.APIConfig, deps *Deps) {
		deps.Services = config.ServiceCatalog{
			{Name: "Corte", DurationMinutes: 60, Price: 12000, Hair: true},
			{Name: "Manicure", DurationMinutes: 45, Price: 10000},
		}
		deps.CheckIn = stubCheckIn{
			res: &models.WalkInResult{Booking: &models.Booking{ID: 3, Date: futureDay, Time: "15:00", DurationMinutes: 60}},
			got: &got,
		}
	})

	rec := api.do(t, http.MethodGet, "/api/v1/services", api.staff, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var services []config.ServiceConfig
	decode(t, rec, &services)
	require.Len(t, services, 2)
	assert.Equal(t, "Corte", services[0].Name)

	rec = api.do(t, http.MethodPost, "/api/v1/walk-ins", api.staff, models.WalkInRequest{ServiceName: "corte", ClientName: "Ana"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, 60, got.DurationMinutes)

	rec = api.do(t, http.MethodPost, "/api/v1/walk-ins", api.staff, models.WalkInRequest{ServiceName: "Corte", ClientName: "Ana", DurationMinutes: 30})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, 30, got.DurationMinutes)

	rec = api.do(t, http.MethodPost, "/api/v1/clients", "", models.RegisterClientRequest{
		Name: "Valentina", Phone: "+56977776666", TermsAccepted: true,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var card models.ClientCard
	decode(t, rec, &card)
	hair := "/api/v1/clients/" + itoa(card.Client.ID) + "/hair-services"

	rec = api.do(t, http.MethodPost, hair, api.staff, models.HairServiceRequest{ServiceName: "Manicure"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(t, http.MethodPost, hair, api.staff, models.HairServiceRequest{ServiceName: "Corte", PaymentMethod: models.PaymentCash})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	txs, err := api.db.ListTransactions(context.Background(), time.Now().Add(-time.Hour), time.Now().Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, int64(12000), txs[0].Total)
}
