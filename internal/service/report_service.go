package service

import (
	"context"
	"fmt"
	"io"
	"time"

	"salon/internal/domain"
	"salon/internal/models"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"
)

const (
	summarySheet = "Resumen"
	salesSheet   = "Ventas"
)

type ReportService struct {
	repo   domain.ReportRepository
	loc    *time.Location
	logger *zerolog.Logger
}

var _ domain.ReportService = (*ReportService)(nil)

func NewReportService(repo domain.ReportRepository, loc *time.Location, logger *zerolog.Logger) *ReportService {
	if loc == nil {
		loc = time.Local
	}
	return &ReportService{repo: repo, loc: loc, logger: logger}
}

// Summary aggregates [from, to).
func (s *ReportService) Summary(ctx context.Context, from, to time.Time) (*models.SalesSummary, error) {
	summary, _, err := s.collect(ctx, from, to)
	return summary, err
}

func (s *ReportService) collect(ctx context.Context, from, to time.Time) (*models.SalesSummary, []*models.Transaction, error) {
	if !to.After(from) {
		return nil, nil, fmt.Errorf("%w: report period is empty", domain.ErrInvalidInput)
	}

	txs, err := s.repo.ListTransactions(ctx, from, to)
	if err != nil {
		return nil, nil, err
	}

	summary := &models.SalesSummary{
		From:            from,
		To:              to,
		Transactions:    len(txs),
		ByCategory:      make(map[string]int64),
		ByPaymentMethod: make(map[string]int64),
	}
	for _, t := range txs {
		summary.Revenue += t.Total
		summary.Cost += t.UnitCost * int64(t.Quantity)
		summary.ByCategory[t.Category] += t.Total
		summary.ByPaymentMethod[t.PaymentMethod] += t.Total
	}
	summary.GrossProfit = summary.Revenue - summary.Cost

	// booking dates are salon-local; to is exclusive
	fromDate := from.In(s.loc).Format(models.DateLayout)
	toDate := to.Add(-time.Nanosecond).In(s.loc).Format(models.DateLayout)
	if summary.Bookings, err = s.repo.CountBookings(ctx, fromDate, toDate); err != nil {
		return nil, nil, err
	}
	if summary.NewClients, err = s.repo.CountNewClients(ctx, from, to); err != nil {
		return nil, nil, err
	}
	return summary, txs, nil
}

// Export writes the period as an XLSX workbook with a summary sheet and one
// row per transaction.
func (s *ReportService) Export(ctx context.Context, from, to time.Time, w io.Writer) error {
	summary, txs, err := s.collect(ctx, from, to)
	if err != nil {
		return err
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(salesSheet); err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}

	header, err := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#F4CCCC"}, Pattern: 1},
		Font: &excelize.Font{Bold: true},
	})
	if err != nil {
		return fmt.Errorf("create style: %w", err)
	}

	s.writeSummary(f, summary, header)
	s.writeSales(f, txs, header)

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	s.logger.Info().Time("from", from).Time("to", to).Int("rows", len(txs)).Msg("report exported")
	return nil
}

func (s *ReportService) writeSummary(f *excelize.File, sum *models.SalesSummary, header int) {
	rows := [][]interface{}{
		{"Indicador", "Valor"},
		{"Desde", sum.From.In(s.loc).Format(models.DateLayout)},
		{"Hasta", sum.To.In(s.loc).Format(models.DateLayout)},
		{"Ingresos", sum.Revenue},
		{"Costo", sum.Cost},
		{"Margen bruto", sum.GrossProfit},
		{"Transacciones", sum.Transactions},
		{"Reservas", sum.Bookings},
		{"Clientes nuevos", sum.NewClients},
	}
	for _, c := range []string{models.CategoryHair, models.CategoryPerfume, models.CategoryDecant, models.CategoryGift, models.CategoryOther} {
		rows = append(rows, []interface{}{"Categoría " + c, sum.ByCategory[c]})
	}
	for _, m := range []string{models.PaymentCash, models.PaymentDebit, models.PaymentCredit, models.PaymentTransfer} {
		rows = append(rows, []interface{}{"Pago " + m, sum.ByPaymentMethod[m]})
	}

	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		_ = f.SetSheetRow(summarySheet, cell, &row)
	}
	_ = f.SetCellStyle(summarySheet, "A1", "B1", header)
	_ = f.SetColWidth(summarySheet, "A", "A", 24)
	_ = f.SetColWidth(summarySheet, "B", "B", 16)
}

func (s *ReportService) writeSales(f *excelize.File, txs []*models.Transaction, header int) {
	_ = f.SetSheetRow(salesSheet, "A1", &[]interface{}{
		"Fecha", "Descripción", "Categoría", "Tipo", "Cantidad", "Precio unitario", "Costo unitario", "Total", "Medio de pago",
	})
	_ = f.SetCellStyle(salesSheet, "A1", "I1", header)
	_ = f.SetColWidth(salesSheet, "A", "A", 18)
	_ = f.SetColWidth(salesSheet, "B", "B", 30)
	_ = f.SetColWidth(salesSheet, "C", "I", 14)

	for i, t := range txs {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		_ = f.SetSheetRow(salesSheet, cell, &[]interface{}{
			t.CreatedAt.In(s.loc).Format("2006-01-02 15:04"),
			t.Description,
			t.Category,
			t.Kind,
			t.Quantity,
			t.UnitPrice,
			t.UnitCost,
			t.Total,
			t.PaymentMethod,
		})
	}
}
