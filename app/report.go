package app

import (
	"bytes"
	"fmt"
	"math"
	"strings"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"

	"gospc/domain/core"
	"gospc/domain/spc"
)

// RenderMarkdown writes a segment and outlier summary of each analysis
func RenderMarkdown(title string, analyses []*spc.Analysis) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "# %s\n\n", title)

	if len(analyses) == 0 {
		b.WriteString("No analyses.\n")
		return b.Bytes()
	}

	for _, a := range analyses {
		if a == nil || a.Result == nil {
			continue
		}
		name := a.Metric.String()
		if name == "" {
			name = "series"
		}
		fmt.Fprintf(&b, "## %s\n\n", name)
		if a.Dataset != "" {
			fmt.Fprintf(&b, "- Dataset: `%s`\n", a.Dataset)
		}
		fmt.Fprintf(&b, "- Analysis: `%s`\n", a.ID)
		fmt.Fprintf(&b, "- Time frame: %s, sample size %d\n", a.TimeFrame, a.SampleSize)
		fmt.Fprintf(&b, "- Observations: %d raw, %d rows, %d segment(s), %d out-of-control point(s)\n\n",
			a.RawRows, len(a.Result.Rows), len(a.Result.Segments), len(a.Result.Outliers()))

		b.WriteString("| Segment | Start | End | Points | Intercept | Slope | Residual std | Outliers |\n")
		b.WriteString("|---:|---|---|---:|---:|---:|---:|---:|\n")
		for _, s := range a.Result.Segments {
			fmt.Fprintf(&b, "| %d | %s | %s | %d | %s | %s | %s | %d |\n",
				s.ID, core.FormatDate(s.Start), core.FormatDate(s.End), s.Points,
				formatFloat(s.Intercept), formatFloat(s.Slope), formatFloat(s.ResidualStd), s.Outliers)
		}
		b.WriteString("\n")

		outliers := a.Result.Outliers()
		if len(outliers) == 0 {
			b.WriteString("No out-of-control points.\n\n")
			continue
		}
		b.WriteString("| Date | Value | Fitted | z |\n")
		b.WriteString("|---|---:|---:|---:|\n")
		for _, row := range outliers {
			fmt.Fprintf(&b, "| %s | %s | %s | %s |\n",
				core.FormatDate(row.Date), formatFloat(row.Value), formatFloat(row.Fitted), formatFloat(row.ZScore))
		}
		b.WriteString("\n")
	}
	return b.Bytes()
}

// RenderHTML renders the markdown summary as a standalone page
func RenderHTML(title string, analyses []*spc.Analysis) []byte {
	md := RenderMarkdown(title, analyses)

	p := parser.NewWithExtensions(parser.CommonExtensions | parser.AutoHeadingIDs)
	renderer := html.NewRenderer(html.RendererOptions{
		Title: title,
		Flags: html.CommonFlags | html.CompletePage,
	})
	return markdown.ToHTML(md, p, renderer)
}

func formatFloat(v float64) string {
	switch {
	case math.IsInf(v, 1):
		return "+Inf"
	case math.IsInf(v, -1):
		return "-Inf"
	case math.IsNaN(v):
		return "n/a"
	}
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.4f", v), "0"), ".")
}
