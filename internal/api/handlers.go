package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"salon/internal/auth"
	"salon/internal/config"
	"salon/internal/domain"
	"salon/internal/models"
)

const maxBodyBytes = 1 << 20

// decodeJSON reads a single JSON object. An empty body leaves v untouched
// when allowEmpty is set.
func decodeJSON(r *http.Request, v any, allowEmpty bool) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if allowEmpty && errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("%w: invalid JSON body", domain.ErrInvalidInput)
	}
	return nil
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: bad id %q", domain.ErrInvalidInput, r.PathValue("id"))
	}
	return id, nil
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be a number", domain.ErrInvalidInput, key)
	}
	return n, nil
}

func (s *HTTPServer) today() string {
	return time.Now().In(s.deps.Location).Format(models.DateLayout)
}

func (s *HTTPServer) fail(w http.ResponseWriter, r *http.Request, err error) {
	writeDomainError(w, loggerFrom(r.Context(), s.logger), err)
}

func (s *HTTPServer) handleLogin(w http.ResponseWriter, r *http.Request) {
	var creds auth.Credentials
	if err := decodeJSON(r, &creds, false); err != nil {
		s.fail(w, r, err)
		return
	}
	role, err := s.deps.Verifier.Verify(r.Context(), creds)
	if err != nil {
		loggerFrom(r.Context(), s.logger).Warn().Str("email", creds.Email).Msg("login denied")
		s.fail(w, r, err)
		return
	}
	token, exp, err := s.deps.Tokens.Issue(strings.ToLower(strings.TrimSpace(creds.Email)), role)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"token": token, "expires_at": exp, "role": role})
}

func (s *HTTPServer) handleRegisterClient(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterClientRequest
	if err := decodeJSON(r, &req, false); err != nil {
		s.fail(w, r, err)
		return
	}
	card, err := s.deps.Loyalty.RegisterClient(r.Context(), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, card)
}

func (s *HTTPServer) handleCard(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	card, err := s.deps.Loyalty.Card(r.Context(), models.CardLookup{Phone: q.Get("phone"), Token: q.Get("token")})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, card)
}

func (s *HTTPServer) handleListClients(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	cards, err := s.deps.Loyalty.ListClients(r.Context(), r.URL.Query().Get("search"), limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"clients": cards})
}

func (s *HTTPServer) handleDeleteClient(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err == nil {
		err = s.deps.Loyalty.DeleteClient(r.Context(), id)
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *HTTPServer) handleRegisterVisit(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	card, err := s.deps.Loyalty.RegisterVisit(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, card)
}

func (s *HTTPServer) handleHairService(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var req models.HairServiceRequest
	if err := decodeJSON(r, &req, true); err != nil {
		s.fail(w, r, err)
		return
	}
	if svc, ok := s.deps.Services.Find(req.ServiceName); ok {
		if !svc.Hair {
			s.fail(w, r, fmt.Errorf("%w: %s is not a hair service", domain.ErrInvalidInput, svc.Name))
			return
		}
		if req.Price == 0 {
			req.Price = svc.Price
		}
	}
	res, err := s.deps.Loyalty.RegisterHairService(r.Context(), id, req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *HTTPServer) handleRedeem(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var card *models.ClientCard
	switch r.PathValue("reward") {
	case "discount":
		card, err = s.deps.Loyalty.RedeemDiscount(r.Context(), id)
	case "free-cut":
		card, err = s.deps.Loyalty.RedeemFreeCut(r.Context(), id)
	default:
		err = fmt.Errorf("%w: unknown reward %q", domain.ErrNotFound, r.PathValue("reward"))
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, card)
}

func (s *HTTPServer) handleNextSlot(w http.ResponseWriter, r *http.Request) {
	duration, err := queryInt(r, "duration", 0)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	slot, err := s.deps.Bookings.NextAvailableSlot(r.Context(), duration)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"date": s.today(), "time": slot})
}

func (s *HTTPServer) handleFreeSlots(w http.ResponseWriter, r *http.Request) {
	duration, err := queryInt(r, "duration", 0)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	date := r.URL.Query().Get("date")
	if date == "" {
		date = s.today()
	}
	slots, err := s.deps.Bookings.FreeSlots(r.Context(), date, duration)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"date": date, "slots": slots})
}

func (s *HTTPServer) handleListBookings(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	if date == "" {
		date = s.today()
	}
	bookings, err := s.deps.Bookings.ListDay(r.Context(), date)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"date": date, "bookings": bookings})
}

func (s *HTTPServer) handleCreateBooking(w http.ResponseWriter, r *http.Request) {
	var b models.Booking
	if err := decodeJSON(r, &b, false); err != nil {
		s.fail(w, r, err)
		return
	}
	b.ID = 0
	if err := s.deps.Bookings.CreateManualBooking(r.Context(), &b); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

type blockRequest struct {
	Date            string `json:"date"`
	Time            string `json:"time"`
	DurationMinutes int    `json:"duration_minutes"`
}

func (s *HTTPServer) handleBlockSlot(w http.ResponseWriter, r *http.Request) {
	var req blockRequest
	if err := decodeJSON(r, &req, false); err != nil {
		s.fail(w, r, err)
		return
	}
	block, err := s.deps.Bookings.BlockSlot(r.Context(), req.Date, req.Time, req.DurationMinutes)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, block)
}

func (s *HTTPServer) handleCancelBooking(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err == nil {
		err = s.deps.Bookings.CancelBooking(r.Context(), id)
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type walkInResponse struct {
	*models.WalkInResult
	Warning string `json:"warning,omitempty"`
}

// handleWalkIn answers 201 whenever a booking was made. A visit that could
// not be counted is reported as a warning next to the booking.
func (s *HTTPServer) handleWalkIn(w http.ResponseWriter, r *http.Request) {
	var req models.WalkInRequest
	if err := decodeJSON(r, &req, false); err != nil {
		s.fail(w, r, err)
		return
	}
	if svc, ok := s.deps.Services.Find(req.ServiceName); ok && req.DurationMinutes == 0 {
		req.DurationMinutes = svc.DurationMinutes
	}
	res, err := s.deps.CheckIn.WalkIn(r.Context(), req)
	if res == nil {
		s.fail(w, r, err)
		return
	}
	out := walkInResponse{WalkInResult: res}
	if err != nil {
		loggerFrom(r.Context(), s.logger).Error().Err(err).Int64("booking_id", res.Booking.ID).Msg("walk-in visit not counted")
		out.Warning = domain.UserMessage(err)
	}
	writeJSON(w, http.StatusCreated, out)
}

func (s *HTTPServer) handleListServices(w http.ResponseWriter, _ *http.Request) {
	services := s.deps.Services
	if services == nil {
		services = config.ServiceCatalog{}
	}
	writeJSON(w, http.StatusOK, services)
}
