package report

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/quotawatch/quotawatch/pkg/model"
)

// SheetName is the single worksheet the report is written to.
const SheetName = "Usage"

var headers = []string{
	"Store", "Number", "Balance",
	"Main Quota (GB)", "Remaining (GB)", "Used (GB)",
	"Add-ons", "Add-ons Cost", "Renewal Cost", "Total Cost",
	"Renewal Date",
}

// remainingCol is the column the threshold fills apply to.
const remainingCol = "E"

// Hints tell the writer how to render and color the workbook.
type Hints struct {
	Currency string
	// YellowGB fills the remaining cell yellow below it.
	YellowGB float64
	// RedGB fills the remaining cell red below it. Red outranks yellow
	// where both match.
	RedGB float64
}

// DefaultHints mirrors the report's historical thresholds.
func DefaultHints() Hints {
	return Hints{Currency: "EGP", YellowGB: 80, RedGB: 20}
}

// Writer renders runs into styled xlsx workbooks.
type Writer struct {
	hints Hints
}

// NewWriter creates a writer with the given display hints.
func NewWriter(hints Hints) *Writer {
	return &Writer{hints: hints}
}

// Write renders one row per record, in order, into an xlsx file at path.
// Failed accounts are kept in the sheet with the error marker in the
// balance column rather than dropped.
func (w *Writer) Write(records []model.Usage, path string) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("name sheet: %w", err)
	}

	for col, h := range headers {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return fmt.Errorf("header cell: %w", err)
		}
		if err := f.SetCellValue(SheetName, cell, h); err != nil {
			return fmt.Errorf("write header %q: %w", h, err)
		}
	}

	for i, rec := range records {
		if err := w.writeRow(f, i+2, rec); err != nil {
			return fmt.Errorf("write row for %s: %w", rec.Account.DisplayName(), err)
		}
	}

	if err := w.style(f, len(records)); err != nil {
		return err
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save report %s: %w", path, err)
	}
	return nil
}

func (w *Writer) writeRow(f *excelize.File, row int, rec model.Usage) error {
	date := ""
	if rec.RenewalDate != nil {
		date = rec.RenewalDate.Format("02-01-2006")
	}

	values := []any{
		rec.Account.DisplayName(),
		rec.Account.Number,
		w.money(rec.Balance, rec),
		rec.MainQuota,
		rec.Remaining,
		rec.Used,
		rec.AddonNames,
		w.money(rec.AddonsPrice, rec),
		w.money(rec.RenewalCost, rec),
		w.money(rec.TotalCost, rec),
		date,
	}

	for col, v := range values {
		cell, err := excelize.CoordinatesToCellName(col+1, row)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(SheetName, cell, v); err != nil {
			return err
		}
	}
	return nil
}

// money renders a currency cell. Failed accounts show the error marker
// instead of a misleading zero amount.
func (w *Writer) money(amount float64, rec model.Usage) string {
	if !rec.Success {
		return model.TextError
	}
	return fmt.Sprintf("%.0f %s", amount, w.hints.Currency)
}

func (w *Writer) style(f *excelize.File, rows int) error {
	lastCol := string(rune('A' + len(headers) - 1))
	lastRow := rows + 1

	center, err := f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return fmt.Errorf("center style: %w", err)
	}
	if err := f.SetCellStyle(SheetName, "A1", fmt.Sprintf("%s%d", lastCol, lastRow), center); err != nil {
		return fmt.Errorf("apply center style: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
		Font:      &excelize.Font{Bold: true},
	})
	if err != nil {
		return fmt.Errorf("header style: %w", err)
	}
	if err := f.SetCellStyle(SheetName, "A1", lastCol+"1", bold); err != nil {
		return fmt.Errorf("apply header style: %w", err)
	}

	widths := map[string]float64{
		"A": 20, "B": 15, "C": 13, "D": 15, "E": 15, "F": 12,
		"G": 32, "H": 13, "I": 13, "J": 12, "K": 14,
	}
	for col, width := range widths {
		if err := f.SetColWidth(SheetName, col, col, width); err != nil {
			return fmt.Errorf("column width %s: %w", col, err)
		}
	}

	if rows == 0 {
		return nil
	}
	return w.thresholdFills(f, lastRow)
}

// thresholdFills colors the remaining column: red strictly below the
// red floor, yellow strictly below the yellow floor. The red rule comes
// first so it wins where both match.
func (w *Writer) thresholdFills(f *excelize.File, lastRow int) error {
	redStyle, err := f.NewConditionalStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"FF0000"}, Pattern: 1},
	})
	if err != nil {
		return fmt.Errorf("red fill style: %w", err)
	}
	yellowStyle, err := f.NewConditionalStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"FFFF00"}, Pattern: 1},
	})
	if err != nil {
		return fmt.Errorf("yellow fill style: %w", err)
	}

	area := fmt.Sprintf("%s2:%s%d", remainingCol, remainingCol, lastRow)
	rules := []excelize.ConditionalFormatOptions{
		{Type: "cell", Criteria: "<", Value: fmt.Sprintf("%g", w.hints.RedGB), Format: redStyle},
		{Type: "cell", Criteria: "<", Value: fmt.Sprintf("%g", w.hints.YellowGB), Format: yellowStyle},
	}
	if err := f.SetConditionalFormat(SheetName, area, rules); err != nil {
		return fmt.Errorf("threshold fills: %w", err)
	}
	return nil
}
