// Package export renders occupancy and booking reports as Excel workbooks.
package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"villasole/internal/domain"
	"villasole/internal/models"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"
)

const (
	occupancySheet = "Occupancy"
	bookingsSheet  = "Bookings"

	fillFree    = "#C6EFCE"
	fillBooked  = "#FFC7CE"
	fillPending = "#FFEB9C"
	fillBlocked = "#DDEBF7"
)

type Exporter struct {
	store  domain.Store
	path   string
	logger *zerolog.Logger
}

func NewExporter(store domain.Store, path string, logger *zerolog.Logger) *Exporter {
	return &Exporter{store: store, path: path, logger: logger}
}

// ExportOccupancy writes a day-by-day occupancy report plus a booking list
// for the period and returns the file path.
func (e *Exporter) ExportOccupancy(ctx context.Context, start, end time.Time) (string, error) {
	if !start.Before(end) {
		return "", models.NewValidationError("range", "start date must be before end date")
	}
	if err := os.MkdirAll(e.path, 0o755); err != nil {
		return "", fmt.Errorf("create export directory: %w", err)
	}

	bookings, err := e.store.GetBookingsByDateRange(ctx, start, end)
	if err != nil {
		return "", fmt.Errorf("load bookings: %w", err)
	}
	blocked, err := e.store.GetOverlappingBlockedRanges(ctx, models.DateRange{Start: start, End: end})
	if err != nil {
		return "", fmt.Errorf("load blocked ranges: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := e.writeOccupancySheet(f, start, end, bookings, blocked); err != nil {
		return "", err
	}
	if err := e.writeBookingsSheet(f, bookings); err != nil {
		return "", err
	}
	_ = f.DeleteSheet("Sheet1")

	fileName := fmt.Sprintf("occupancy_%s_to_%s.xlsx",
		start.Format(models.DateFormat), end.Format(models.DateFormat))
	filePath := filepath.Join(e.path, fileName)

	if err := f.SaveAs(filePath); err != nil {
		return "", fmt.Errorf("save report: %w", err)
	}

	e.logger.Info().Str("file_path", filePath).Msg("occupancy report created")
	return filePath, nil
}

func (e *Exporter) writeOccupancySheet(
	f *excelize.File,
	start, end time.Time,
	bookings []*models.Booking,
	blocked []*models.BlockedDateRange,
) error {
	index, err := f.NewSheet(occupancySheet)
	if err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(index)

	_ = f.SetCellValue(occupancySheet, "A1", fmt.Sprintf("Occupancy %s - %s",
		start.Format(models.DateFormat), end.Format(models.DateFormat)))
	titleStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 14},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	_ = f.MergeCell(occupancySheet, "A1", "C1")
	_ = f.SetCellStyle(occupancySheet, "A1", "A1", titleStyle)

	headerStyle, _ := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	for i, header := range []string{"Date", "Status", "Details"} {
		cell, _ := excelize.CoordinatesToCellName(i+1, 2)
		_ = f.SetCellValue(occupancySheet, cell, header)
		_ = f.SetCellStyle(occupancySheet, cell, cell, headerStyle)
	}

	row := 3
	for day := start; day.Before(end); day = day.AddDate(0, 0, 1) {
		status, details, fill := dayStatus(day, bookings, blocked)

		dateCell, _ := excelize.CoordinatesToCellName(1, row)
		statusCell, _ := excelize.CoordinatesToCellName(2, row)
		detailsCell, _ := excelize.CoordinatesToCellName(3, row)
		_ = f.SetCellValue(occupancySheet, dateCell, day.Format(models.DateFormat))
		_ = f.SetCellValue(occupancySheet, statusCell, status)
		_ = f.SetCellValue(occupancySheet, detailsCell, details)

		style, err := f.NewStyle(&excelize.Style{
			Fill: excelize.Fill{Type: "pattern", Color: []string{fill}, Pattern: 1},
		})
		if err == nil {
			_ = f.SetCellStyle(occupancySheet, dateCell, detailsCell, style)
		}
		row++
	}

	_ = f.SetColWidth(occupancySheet, "A", "A", 14)
	_ = f.SetColWidth(occupancySheet, "B", "B", 14)
	_ = f.SetColWidth(occupancySheet, "C", "C", 50)
	return nil
}

// dayStatus classifies one calendar day. A blocking booking wins over a
// blocked range when both cover the day.
func dayStatus(day time.Time, bookings []*models.Booking, blocked []*models.BlockedDateRange) (string, string, string) {
	dayRange := models.DateRange{Start: day, End: day.AddDate(0, 0, 1)}

	for _, booking := range bookings {
		if !booking.Blocking() || !booking.Range().Overlaps(dayRange) {
			continue
		}
		details := fmt.Sprintf("%s (%s)", booking.GuestName, booking.Reference)
		if booking.Status == models.StatusPending {
			return "pending", details, fillPending
		}
		return "booked", details, fillBooked
	}

	for _, r := range blocked {
		occupied := models.DateRange{Start: r.StartDate, End: r.EndDate}
		if occupied.Overlaps(dayRange) {
			return "blocked", fmt.Sprintf("%s (%s)", r.Reason, r.CreatedBy), fillBlocked
		}
	}

	return "free", "", fillFree
}

func (e *Exporter) writeBookingsSheet(f *excelize.File, bookings []*models.Booking) error {
	if _, err := f.NewSheet(bookingsSheet); err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}

	headers := []string{
		"Reference", "Guest", "Email", "Phone", "Check-in", "Check-out",
		"Nights", "Adults", "Children", "Status", "Total", "Deposit", "Paid",
	}
	headerStyle, _ := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(bookingsSheet, cell, header)
		_ = f.SetCellStyle(bookingsSheet, cell, cell, headerStyle)
	}

	for i, booking := range bookings {
		row := i + 2
		_ = f.SetCellValue(bookingsSheet, fmt.Sprintf("A%d", row), booking.Reference)
		_ = f.SetCellValue(bookingsSheet, fmt.Sprintf("B%d", row), booking.GuestName)
		_ = f.SetCellValue(bookingsSheet, fmt.Sprintf("C%d", row), booking.GuestEmail)
		_ = f.SetCellValue(bookingsSheet, fmt.Sprintf("D%d", row), booking.GuestPhone)
		_ = f.SetCellValue(bookingsSheet, fmt.Sprintf("E%d", row), booking.CheckIn.Format(models.DateFormat))
		_ = f.SetCellValue(bookingsSheet, fmt.Sprintf("F%d", row), booking.CheckOut.Format(models.DateFormat))
		_ = f.SetCellValue(bookingsSheet, fmt.Sprintf("G%d", row), booking.Nights)
		_ = f.SetCellValue(bookingsSheet, fmt.Sprintf("H%d", row), booking.Adults)
		_ = f.SetCellValue(bookingsSheet, fmt.Sprintf("I%d", row), len(booking.ChildrenAges))
		_ = f.SetCellValue(bookingsSheet, fmt.Sprintf("J%d", row), booking.Status)
		_ = f.SetCellValue(bookingsSheet, fmt.Sprintf("K%d", row), booking.TotalAmount)
		_ = f.SetCellValue(bookingsSheet, fmt.Sprintf("L%d", row), booking.DepositAmount)
		_ = f.SetCellValue(bookingsSheet, fmt.Sprintf("M%d", row), booking.PaymentAmount)
	}

	_ = f.SetColWidth(bookingsSheet, "A", "A", 38)
	_ = f.SetColWidth(bookingsSheet, "B", "D", 22)
	_ = f.SetColWidth(bookingsSheet, "E", "F", 12)
	return nil
}
