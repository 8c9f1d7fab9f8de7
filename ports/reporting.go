package ports

import (
	"gomix/domain/allocation"
	"gomix/domain/model"
)

// ModelReporter renders a fitted model for the reporting layer. The
// core never formats text or draws plots itself.
type ModelReporter interface {
	RenderMarkdown(m *model.FittedModel) []byte
	RenderHTML(m *model.FittedModel) []byte
}

// PlanExporter serializes an allocation plan with its model context.
type PlanExporter interface {
	Export(m *model.FittedModel, p *allocation.AllocationPlan) ([]byte, error)
}
