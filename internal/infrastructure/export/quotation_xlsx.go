package export

import (
	"fmt"
	"io"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/garyjia/sitequote/internal/domain/entity"
)

// ContentType is the MIME type of exported workbooks
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

const (
	sheetName   = "Quotation"
	itemsHeader = 9
	dateLayout  = "2006-01-02"

	// built-in number format "0.00"
	moneyNumFmt = 2
)

// XLSXExporter renders a quotation as a spreadsheet
type XLSXExporter struct {
	companyName string
	logger      *zap.Logger
}

// NewXLSXExporter creates a new exporter
func NewXLSXExporter(companyName string, logger *zap.Logger) *XLSXExporter {
	return &XLSXExporter{
		companyName: companyName,
		logger:      logger,
	}
}

// FileName returns the download name for q
func (e *XLSXExporter) FileName(q *entity.Quotation) string {
	return fmt.Sprintf("quotation-%s.xlsx", q.ID)
}

// ContentType returns the MIME type of the workbook
func (e *XLSXExporter) ContentType() string {
	return ContentType
}

// Write renders q and writes the workbook to w
func (e *XLSXExporter) Write(w io.Writer, q *entity.Quotation) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), sheetName); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create style: %w", err)
	}
	money, err := f.NewStyle(&excelize.Style{NumFmt: moneyNumFmt})
	if err != nil {
		return fmt.Errorf("failed to create style: %w", err)
	}
	boldMoney, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}, NumFmt: moneyNumFmt})
	if err != nil {
		return fmt.Errorf("failed to create style: %w", err)
	}

	// Header block
	e.setCell(f, "A1", e.companyName)
	e.setCell(f, "A2", "Quotation")
	e.setCell(f, "B2", q.Title)
	e.setCell(f, "A3", "Quotation ID")
	e.setCell(f, "B3", q.ID)
	e.setCell(f, "A4", "Project")
	e.setCell(f, "B4", q.ProjectID)
	e.setCell(f, "A5", "Client")
	e.setCell(f, "B5", q.ClientID)
	e.setCell(f, "A6", "Status")
	e.setCell(f, "B6", q.Status.String())
	e.setCell(f, "A7", "Valid until")
	e.setCell(f, "B7", q.ValidUntil.Format(dateLayout))

	headers := []string{"Item", "Quantity", "Unit price", "Line total"}
	for i, h := range headers {
		e.setCell(f, cellName(i+1, itemsHeader), h)
	}
	if err := f.SetCellStyle(sheetName, "A9", "D9", bold); err != nil {
		return fmt.Errorf("failed to style header: %w", err)
	}

	// Amounts are numeric cells so the sheet can sum them; cents are a display format
	row := itemsHeader + 1
	for _, item := range q.Items {
		e.setCell(f, cellName(1, row), item.Name)
		e.setNumber(f, cellName(2, row), item.Quantity, 0)
		e.setNumber(f, cellName(3, row), item.UnitPrice, money)
		e.setNumber(f, cellName(4, row), item.LineTotal, money)
		row++
	}

	row++
	e.setCell(f, cellName(3, row), "Subtotal")
	e.setNumber(f, cellName(4, row), q.Subtotal, money)
	e.setCell(f, cellName(3, row+1), fmt.Sprintf("Tax (%s%%)", q.TaxRate.Shift(2).String()))
	e.setNumber(f, cellName(4, row+1), q.TaxTotal, money)
	e.setCell(f, cellName(3, row+2), "Grand total")
	e.setNumber(f, cellName(4, row+2), q.GrandTotal, boldMoney)
	if err := f.SetCellStyle(sheetName, cellName(3, row+2), cellName(3, row+2), bold); err != nil {
		return fmt.Errorf("failed to style totals: %w", err)
	}

	if q.Notes != "" {
		e.setCell(f, cellName(1, row+4), q.Notes)
	}

	if err := f.SetColWidth(sheetName, "A", "A", 40); err != nil {
		return fmt.Errorf("failed to set column width: %w", err)
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}

	e.logger.Info("Quotation exported",
		zap.String("quotation_id", q.ID),
		zap.Int("items", len(q.Items)))
	return nil
}

func cellName(col, row int) string {
	cell, _ := excelize.CoordinatesToCellName(col, row)
	return cell
}

// setNumber writes value as a numeric cell; style 0 keeps the default format
func (e *XLSXExporter) setNumber(f *excelize.File, cell string, value decimal.Decimal, style int) {
	if err := f.SetCellFloat(sheetName, cell, value.InexactFloat64(), -1, 64); err != nil {
		e.logger.Warn("Failed to set cell value",
			zap.String("cell", cell),
			zap.Error(err))
		return
	}
	if style == 0 {
		return
	}
	if err := f.SetCellStyle(sheetName, cell, cell, style); err != nil {
		e.logger.Warn("Failed to style cell",
			zap.String("cell", cell),
			zap.Error(err))
	}
}

// setCell sets a cell value, logging instead of failing on bad input
func (e *XLSXExporter) setCell(f *excelize.File, cell, value string) {
	if err := f.SetCellValue(sheetName, cell, value); err != nil {
		e.logger.Warn("Failed to set cell value",
			zap.String("cell", cell),
			zap.Error(err))
	}
}
