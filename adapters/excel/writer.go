// Package excel serializes allocation plans and model decompositions to
// xlsx workbooks for the reporting layer.
package excel

import (
	"fmt"

	"gomix/domain/allocation"
	"gomix/domain/model"
	"gomix/ports"

	"github.com/xuri/excelize/v2"
)

// PlanWriter exports allocation plans as Excel workbooks
type PlanWriter struct{}

// NewPlanWriter creates a plan exporter
func NewPlanWriter() ports.PlanExporter {
	return &PlanWriter{}
}

// Export builds a workbook with an Allocation sheet and, when the model
// carries a decomposition, a Decomposition sheet.
func (w *PlanWriter) Export(m *model.FittedModel, p *allocation.AllocationPlan) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	const allocSheet = "Allocation"
	if err := f.SetSheetName("Sheet1", allocSheet); err != nil {
		return nil, fmt.Errorf("failed to create allocation sheet: %w", err)
	}

	header := []interface{}{"Channel", "Proposed Spend", "Predicted Contribution", "Fitted Weight"}
	if err := f.SetSheetRow(allocSheet, "A1", &header); err != nil {
		return nil, fmt.Errorf("failed to write header: %w", err)
	}
	row := 2
	for _, key := range p.Channels() {
		cells := []interface{}{
			key.String(),
			p.Spend[key],
			p.PredictedContribution[key],
			m.ChannelWeight(key),
		}
		cell := fmt.Sprintf("A%d", row)
		if err := f.SetSheetRow(allocSheet, cell, &cells); err != nil {
			return nil, fmt.Errorf("failed to write channel row: %w", err)
		}
		row++
	}

	summary := [][]interface{}{
		{"Total Spend", p.TotalSpend()},
		{"Objective", p.Objective},
		{"Horizon (months)", p.Horizon},
		{"Converged", p.Converged},
		{"Model", p.ModelID.String()},
	}
	row++ // blank separator row
	for _, cells := range summary {
		cell := fmt.Sprintf("A%d", row)
		if err := f.SetSheetRow(allocSheet, cell, &cells); err != nil {
			return nil, fmt.Errorf("failed to write summary row: %w", err)
		}
		row++
	}

	if err := w.writeDecomposition(f, m); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func (w *PlanWriter) writeDecomposition(f *excelize.File, m *model.FittedModel) error {
	decomp := m.Decomposition
	if decomp.Baseline.Len() == 0 {
		return nil
	}

	const sheet = "Decomposition"
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("failed to create decomposition sheet: %w", err)
	}

	keys := m.ChannelKeys()
	header := []interface{}{"Month", "Baseline"}
	for _, key := range keys {
		header = append(header, key.String())
	}
	header = append(header, "Residual")
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("failed to write decomposition header: %w", err)
	}

	for t := 0; t < decomp.Baseline.Len(); t++ {
		cells := []interface{}{decomp.Baseline.Period(t).String(), decomp.Baseline.At(t)}
		for _, key := range keys {
			cells = append(cells, decomp.Contributions[key].At(t))
		}
		cells = append(cells, decomp.Residual.At(t))
		cell := fmt.Sprintf("A%d", t+2)
		if err := f.SetSheetRow(sheet, cell, &cells); err != nil {
			return fmt.Errorf("failed to write decomposition row: %w", err)
		}
	}
	return nil
}
