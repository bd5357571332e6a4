package report

import (
	"fmt"
	"html/template"
	"os"
	"strings"
	"time"

	"github.com/pkg/browser"

	"invsim/internal/simulation"
)

var htmlReport = template.Must(template.New("report").Funcs(template.FuncMap{
	"money": func(v float64) string { return fmt.Sprintf("%.2f", v) },
	"num":   func(v float64) string { return fmt.Sprintf("%.1f", v) },
}).Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<script type="module">
import mermaid from "https://cdn.jsdelivr.net/npm/mermaid@11/dist/mermaid.esm.min.mjs";
mermaid.initialize({ startOnLoad: true });
</script>
<style>
body { font-family: sans-serif; margin: 2em; }
table { border-collapse: collapse; margin-bottom: 2em; }
td, th { border: 1px solid #ccc; padding: 4px 8px; text-align: right; }
th { background: #f4f4f4; }
</style>
</head>
<body>
<h1>{{.Title}}</h1>
<p>Generated {{.Generated}} &middot; {{.Report.Summary.Runs}} runs &middot; weeks {{.Report.Horizon.Start}} to {{.Report.Horizon.End}} &middot; {{.Report.Model}} demand &middot; seed {{.Report.Seed}}</p>

<h2>Summary</h2>
<table>
<tr><th>Revenue</th><th>Theoretical revenue</th><th>Sold</th><th>Demanded</th><th>Service level</th><th>Relevance level</th><th>Holding cost</th><th>Discard cost</th><th>Orders</th></tr>
{{with .Report.Summary}}<tr><td>{{money .Revenue}}</td><td>{{money .TheoreticalRevenue}}</td><td>{{num .Sold}}</td><td>{{num .Demanded}}</td><td>{{.ServiceLevel}}</td><td>{{.RelevanceLevel}}</td><td>{{money .HoldingCost}}</td><td>{{money .DiscardCost}}</td><td>{{num .Orders}}</td></tr>{{end}}
</table>

<h2>Spread across runs</h2>
<table>
<tr><th></th><th>P50</th><th>P85</th><th>P95</th></tr>
{{with .Report.Summary.RevenuePercentiles}}<tr><th>Revenue</th><td>{{money .P50}}</td><td>{{money .P85}}</td><td>{{money .P95}}</td></tr>{{end}}
{{with .Report.Summary.ServicePercentiles}}<tr><th>Service level</th><td>{{printf "%.4f" .P50}}</td><td>{{printf "%.4f" .P85}}</td><td>{{printf "%.4f" .P95}}</td></tr>{{end}}
</table>

{{if .ServiceChart}}<h2>Weekly service level</h2>
<pre class="mermaid">{{.ServiceChart}}</pre>{{end}}
{{if .RevenueChart}}<h2>Weekly revenue</h2>
<pre class="mermaid">{{.RevenueChart}}</pre>{{end}}

<h2>Weeks</h2>
<table>
<tr><th>Week</th><th>Revenue</th><th>Sold</th><th>Demanded</th><th>Service level</th><th>Capacity</th><th>Relevance</th></tr>
{{range .Report.Summary.Weeks}}<tr><td>{{.Week}}</td><td>{{money .Revenue}}</td><td>{{num .Sold}}</td><td>{{num .Demanded}}</td><td>{{.ServiceLevel}}</td><td>{{num .Capacity}}</td><td>{{num .Relevance}}</td></tr>
{{end}}</table>

{{if .Report.Excluded}}<h2>Excluded products</h2>
<ul>{{range .Report.Excluded}}<li>{{.}}</li>{{end}}</ul>{{end}}
</body>
</html>
`))

// stripFence removes the markdown fence so the chart body can sit in a mermaid block.
func stripFence(chart string) string {
	chart = strings.TrimPrefix(chart, "```mermaid\n")
	return strings.TrimSuffix(chart, "```")
}

// WriteHTML renders a self-contained report page.
func WriteHTML(path, title string, r *simulation.Report) error {
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create report %s: %w", path, err)
	}
	defer out.Close()

	data := struct {
		Title        string
		Generated    string
		Report       *simulation.Report
		ServiceChart string
		RevenueChart string
	}{
		Title:        title,
		Generated:    time.Now().Format(time.RFC1123),
		Report:       r,
		ServiceChart: stripFence(ServiceLevelChart(r.Summary)),
		RevenueChart: stripFence(RevenueChart(r.Summary)),
	}
	if err := htmlReport.Execute(out, data); err != nil {
		return fmt.Errorf("failed to render report %s: %w", path, err)
	}
	return out.Close()
}

// Open shows a written report in the default browser.
func Open(path string) error {
	return browser.OpenFile(path)
}
