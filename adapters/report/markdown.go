// Package report renders fitted models as markdown and HTML summaries
// for the reporting layer.
package report

import (
	"fmt"
	"strings"

	"gomix/domain/model"
	"gomix/ports"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
)

// Renderer builds model summaries
type Renderer struct{}

// NewRenderer creates a model reporter
func NewRenderer() ports.ModelReporter {
	return &Renderer{}
}

// RenderMarkdown produces the markdown summary of a fitted model.
func (r *Renderer) RenderMarkdown(m *model.FittedModel) []byte {
	var b strings.Builder

	fmt.Fprintf(&b, "# Model %s\n\n", m.ID)
	if m.Region != "" {
		fmt.Fprintf(&b, "Region: **%s**  \n", m.Region)
	}
	fmt.Fprintf(&b, "Strategy: **%s**  \n", m.Strategy)
	fmt.Fprintf(&b, "Periods: %d  \n", m.Periods)
	fmt.Fprintf(&b, "Residual variance: %.6g  \n", m.ResidualVariance)
	fmt.Fprintf(&b, "Condition number: %.4g  \n", m.ConditionNumber)
	if !m.Converged {
		fmt.Fprintf(&b, "\n**Not converged** after %d iterations.\n", m.Iterations)
	}

	fmt.Fprintf(&b, "\n## Coefficients\n\n")
	fmt.Fprintf(&b, "| Term | Weight | Std Err | 95%% Interval |\n")
	fmt.Fprintf(&b, "|---|---|---|---|\n")
	fmt.Fprintf(&b, "| intercept | %.6g | | |\n", m.Intercept)
	for _, c := range m.Channels {
		fmt.Fprintf(&b, "| %s | %.6g | %.4g | [%.4g, %.4g] |\n", c.Name, c.Weight, c.StdErr, c.Lower, c.Upper)
	}
	for _, c := range m.BasisTerms {
		fmt.Fprintf(&b, "| %s | %.6g | %.4g | [%.4g, %.4g] |\n", c.Name, c.Weight, c.StdErr, c.Lower, c.Upper)
	}

	if len(m.Warnings) > 0 {
		fmt.Fprintf(&b, "\n## Warnings\n\n")
		for _, w := range m.Warnings {
			fmt.Fprintf(&b, "- **%s**: %s\n", w.Code, w.Detail)
		}
	}

	return []byte(b.String())
}

// RenderHTML converts the markdown summary to HTML.
func (r *Renderer) RenderHTML(m *model.FittedModel) []byte {
	md := r.RenderMarkdown(m)
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.Tables)
	renderer := html.NewRenderer(html.RendererOptions{Flags: html.CommonFlags})
	return markdown.ToHTML(md, p, renderer)
}
