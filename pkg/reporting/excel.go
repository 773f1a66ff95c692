package reporting

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"
)

// ExcelReporter writes a risk evaluation history to an Excel workbook
type ExcelReporter struct{}

// NewExcelReporter creates a new Excel reporter
func NewExcelReporter() *ExcelReporter {
	return &ExcelReporter{}
}

type excelStyles struct {
	Header   int
	Currency int
	Percent  int
}

// WriteHistoryXLSX writes the decision history and breaker events to an
// Excel file with one sheet per record type.
func (r *ExcelReporter) WriteHistoryXLSX(history *History, path string) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	fx := excelize.NewFile()
	defer fx.Close()

	const decisionsSheet = "Decisions"
	const breakerSheet = "Breaker Events"

	fx.SetSheetName(fx.GetSheetName(0), decisionsSheet)
	fx.NewSheet(breakerSheet)

	styles, err := r.createStyles(fx)
	if err != nil {
		return err
	}

	if err := r.writeDecisionsSheet(fx, decisionsSheet, history, styles); err != nil {
		return err
	}

	if err := r.writeBreakerSheet(fx, breakerSheet, history, styles); err != nil {
		return err
	}

	return fx.SaveAs(path)
}

func (r *ExcelReporter) createStyles(fx *excelize.File) (excelStyles, error) {
	var styles excelStyles
	var err error

	styles.Header, err = fx.NewStyle(&excelize.Style{
		Font: &excelize.Font{
			Bold:   true,
			Size:   11,
			Color:  "FFFFFF",
			Family: "Calibri",
		},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"2F4F4F"},
			Pattern: 1,
		},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})
	if err != nil {
		return styles, err
	}

	styles.Currency, err = fx.NewStyle(&excelize.Style{
		NumFmt: 7,
		Alignment: &excelize.Alignment{
			Horizontal: "right",
		},
	})
	if err != nil {
		return styles, err
	}

	styles.Percent, err = fx.NewStyle(&excelize.Style{
		NumFmt: 10,
		Alignment: &excelize.Alignment{
			Horizontal: "right",
		},
	})
	return styles, err
}

func (r *ExcelReporter) writeDecisionsSheet(fx *excelize.File, sheet string, history *History, styles excelStyles) error {
	headers := []string{
		"Time", "Symbol", "Side", "Verdict", "Risk Score", "Risk Level",
		"Failed Checks", "Quantity", "Risk Amount", "Kelly %", "Confidence",
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := fx.SetCellValue(sheet, cell, h); err != nil {
			return err
		}
	}
	if err := fx.SetRowStyle(sheet, 1, 1, styles.Header); err != nil {
		return err
	}

	for i, rec := range history.Decisions {
		row := i + 2
		verdict := "REJECTED"
		if rec.Validation.Valid {
			verdict = "APPROVED"
		}

		quantity, riskAmount, kelly := 0.0, 0.0, 0.0
		if rec.Sizing != nil {
			quantity = rec.Sizing.Quantity
			riskAmount = rec.Sizing.RiskAmount
			kelly = rec.Sizing.KellyOptimalPct
		}

		values := []interface{}{
			rec.Timestamp.Format("2006-01-02 15:04:05"),
			rec.Symbol,
			string(rec.Side),
			verdict,
			rec.Validation.RiskScore,
			rec.Validation.Level.String(),
			fmt.Sprintf("%v", rec.Validation.FailedChecks()),
			quantity,
			riskAmount,
			kelly,
			rec.Validation.Confidence,
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			if err := fx.SetCellValue(sheet, cell, v); err != nil {
				return err
			}
		}

		riskCell, _ := excelize.CoordinatesToCellName(9, row)
		fx.SetCellStyle(sheet, riskCell, riskCell, styles.Currency)
		kellyCell, _ := excelize.CoordinatesToCellName(10, row)
		fx.SetCellStyle(sheet, kellyCell, kellyCell, styles.Percent)
	}

	return fx.SetColWidth(sheet, "A", "K", 16)
}

func (r *ExcelReporter) writeBreakerSheet(fx *excelize.File, sheet string, history *History, styles excelStyles) error {
	headers := []string{"Time", "State", "Severity", "Trigger", "Value", "Threshold", "Description", "Reset Time"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := fx.SetCellValue(sheet, cell, h); err != nil {
			return err
		}
	}
	if err := fx.SetRowStyle(sheet, 1, 1, styles.Header); err != nil {
		return err
	}

	row := 2
	for _, event := range history.BreakerEvents {
		for _, trig := range event.Triggers {
			values := []interface{}{
				event.EvaluatedAt.Format("2006-01-02 15:04:05"),
				event.State.String(),
				trig.Severity.String(),
				trig.Name,
				trig.TriggerValue,
				trig.ThresholdValue,
				trig.Description,
				event.ResetTime.Format("2006-01-02 15:04:05"),
			}
			for col, v := range values {
				cell, _ := excelize.CoordinatesToCellName(col+1, row)
				if err := fx.SetCellValue(sheet, cell, v); err != nil {
					return err
				}
			}
			row++
		}
	}

	return fx.SetColWidth(sheet, "A", "H", 20)
}
