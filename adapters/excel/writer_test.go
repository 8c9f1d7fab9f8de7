package excel

import (
	"bytes"
	"testing"
	"time"

	"gomix/domain/allocation"
	"gomix/domain/core"
	"gomix/domain/model"
	"gomix/domain/series"

	"github.com/xuri/excelize/v2"
)

func samplePlan() (*model.FittedModel, *allocation.AllocationPlan) {
	start := core.NewMonth(2021, time.January)
	m := &model.FittedModel{
		ID: "model-1",
		Channels: []model.Coefficient{
			{Name: "display_hcp", Weight: 320},
			{Name: "paid_search", Weight: 260},
		},
		Decomposition: model.Decomposition{
			Baseline: series.MustNew(start, []float64{1200, 1210, 1220}),
			Contributions: map[core.ChannelKey]series.TimeSeries{
				"display_hcp": series.MustNew(start, []float64{200, 210, 190}),
				"paid_search": series.MustNew(start, []float64{150, 140, 160}),
			},
			Residual: series.MustNew(start, []float64{3, -4, 1}),
		},
	}
	p := &allocation.AllocationPlan{
		ID:      "plan-1",
		ModelID: "model-1",
		Horizon: 3,
		Spend: map[core.ChannelKey]float64{
			"display_hcp": 24000,
			"paid_search": 13500,
		},
		PredictedContribution: map[core.ChannelKey]float64{
			"display_hcp": 610,
			"paid_search": 450,
		},
		Objective: 1060,
		Converged: true,
	}
	return m, p
}

func TestExportWorkbook(t *testing.T) {
	m, p := samplePlan()

	data, err := NewPlanWriter().Export(m, p)
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("Expected non-empty workbook")
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Workbook does not open: %v", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) != 2 || sheets[0] != "Allocation" || sheets[1] != "Decomposition" {
		t.Fatalf("Expected Allocation and Decomposition sheets, got %v", sheets)
	}

	// Channel rows follow sorted key order.
	name, err := f.GetCellValue("Allocation", "A2")
	if err != nil {
		t.Fatalf("GetCellValue failed: %v", err)
	}
	if name != "display_hcp" {
		t.Errorf("Expected first channel display_hcp, got %s", name)
	}
	spend, err := f.GetCellValue("Allocation", "B2")
	if err != nil {
		t.Fatalf("GetCellValue failed: %v", err)
	}
	if spend != "24000" {
		t.Errorf("Expected spend 24000, got %s", spend)
	}

	// Decomposition carries one row per period.
	month, err := f.GetCellValue("Decomposition", "A2")
	if err != nil {
		t.Fatalf("GetCellValue failed: %v", err)
	}
	if month != "202101" {
		t.Errorf("Expected first period 202101, got %s", month)
	}
}

func TestExportWithoutDecomposition(t *testing.T) {
	m, p := samplePlan()
	m.Decomposition = model.Decomposition{}

	data, err := NewPlanWriter().Export(m, p)
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Workbook does not open: %v", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) != 1 || sheets[0] != "Allocation" {
		t.Errorf("Expected only the Allocation sheet, got %v", sheets)
	}
}
