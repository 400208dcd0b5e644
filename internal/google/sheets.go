package google

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"salon/internal/domain"
	"salon/internal/models"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

const (
	bookingsSheet     = "Reservas"
	transactionsSheet = "Ventas"
	timestampLayout   = "2006-01-02 15:04:05"
)

var (
	bookingHeaders = []interface{}{
		"Acción", "ID", "Fecha", "Hora", "Duración (min)", "Servicio", "Cliente", "Teléfono", "A domicilio", "Origen", "Registrado",
	}
	transactionHeaders = []interface{}{
		"ID", "Fecha", "Cliente", "Tipo", "Descripción", "Categoría", "Cantidad", "Precio unitario", "Costo unitario", "Total", "Medio de pago",
	}
)

// SheetsService appends audit rows to a spreadsheet. Rows are never
// rewritten: a cancelled booking gets a second row with action "deleted".
type SheetsService struct {
	service       *sheets.Service
	spreadsheetID string
	loc           *time.Location
}

var _ domain.SheetsWriter = (*SheetsService)(nil)

func NewSheetsService(ctx context.Context, credentialsFile, spreadsheetID string, loc *time.Location) (*SheetsService, error) {
	credentialsJSON, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read credentials file: %w", err)
	}

	config, err := google.JWTConfigFromJSON(credentialsJSON, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse credentials: %w", err)
	}

	srv, err := sheets.NewService(ctx, option.WithHTTPClient(config.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("unable to create Sheets service: %w", err)
	}
	return newWithService(srv, spreadsheetID, loc), nil
}

func newWithService(srv *sheets.Service, spreadsheetID string, loc *time.Location) *SheetsService {
	if loc == nil {
		loc = time.Local
	}
	return &SheetsService{service: srv, spreadsheetID: spreadsheetID, loc: loc}
}

// TestConnection reads the first header cell of the bookings sheet.
func (s *SheetsService) TestConnection(ctx context.Context) error {
	_, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, bookingsSheet+"!A1").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("connection test failed: %w", err)
	}
	return nil
}

// EnsureHeaders writes the header row of each sheet whose A1 is empty.
func (s *SheetsService) EnsureHeaders(ctx context.Context) error {
	for sheet, headers := range map[string][]interface{}{
		bookingsSheet:     bookingHeaders,
		transactionsSheet: transactionHeaders,
	} {
		resp, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, sheet+"!A1").Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("read %s header: %w", sheet, err)
		}
		if len(resp.Values) > 0 && len(resp.Values[0]) > 0 {
			continue
		}
		_, err = s.service.Spreadsheets.Values.Update(s.spreadsheetID, sheet+"!A1", &sheets.ValueRange{
			Values: [][]interface{}{headers},
		}).ValueInputOption("RAW").Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("write %s header: %w", sheet, err)
		}
	}
	return nil
}

// GetServiceAccountEmail returns the address the spreadsheet must be shared with.
func GetServiceAccountEmail(credentialsFile string) (string, error) {
	file, err := os.ReadFile(credentialsFile)
	if err != nil {
		return "", err
	}

	var creds struct {
		ClientEmail string `json:"client_email"`
	}
	if err := json.Unmarshal(file, &creds); err != nil {
		return "", err
	}
	return creds.ClientEmail, nil
}

func (s *SheetsService) AppendBooking(ctx context.Context, action string, booking *models.Booking) error {
	if booking == nil {
		return fmt.Errorf("%w: nil booking", domain.ErrInvalidInput)
	}
	return s.append(ctx, bookingsSheet, bookingRowValues(action, booking, s.loc))
}

func (s *SheetsService) AppendTransaction(ctx context.Context, tx *models.Transaction) error {
	if tx == nil {
		return fmt.Errorf("%w: nil transaction", domain.ErrInvalidInput)
	}
	return s.append(ctx, transactionsSheet, transactionRowValues(tx, s.loc))
}

func (s *SheetsService) append(ctx context.Context, sheet string, row []interface{}) error {
	_, err := s.service.Spreadsheets.Values.Append(s.spreadsheetID, sheet+"!A:A", &sheets.ValueRange{
		Values: [][]interface{}{row},
	}).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("append to %s: %w", sheet, err)
	}
	return nil
}

func bookingRowValues(action string, b *models.Booking, loc *time.Location) []interface{} {
	home := "no"
	if b.HomeService {
		home = "sí"
	}
	return []interface{}{
		action,
		b.ID,
		b.Date,
		b.Time,
		b.DurationMinutes,
		b.ServiceName,
		b.ClientName,
		b.ClientPhone,
		home,
		b.Source,
		formatTimestamp(b.CreatedAt, loc),
	}
}

func transactionRowValues(tx *models.Transaction, loc *time.Location) []interface{} {
	var client interface{} = ""
	if tx.ClientID != nil {
		client = *tx.ClientID
	}
	return []interface{}{
		tx.ID,
		formatTimestamp(tx.CreatedAt, loc),
		client,
		tx.Kind,
		tx.Description,
		tx.Category,
		tx.Quantity,
		tx.UnitPrice,
		tx.UnitCost,
		tx.Total,
		tx.PaymentMethod,
	}
}

func formatTimestamp(t time.Time, loc *time.Location) string {
	if t.IsZero() {
		return ""
	}
	return t.In(loc).Format(timestampLayout)
}
