package report

import (
	"fmt"
	"math"
	"strings"

	"invsim/internal/demand"
	"invsim/internal/simulation"
	"invsim/internal/stats"
)

// ServiceLevelChart creates a Mermaid xychart-beta of the average weekly service level. Weeks
// without demand are left out.
func ServiceLevelChart(s simulation.Summary) string {
	var labels []string
	var values []string
	for _, w := range s.Weeks {
		if !w.ServiceLevel.Valid {
			continue
		}
		labels = append(labels, fmt.Sprintf("\"%d\"", w.Week))
		values = append(values, fmt.Sprintf("%.3f", w.ServiceLevel.Value))
	}
	if len(values) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("```mermaid\n")
	sb.WriteString("xychart-beta\n")
	sb.WriteString("    title \"Weekly Service Level (mean of runs)\"\n")
	sb.WriteString(fmt.Sprintf("    x-axis [%s]\n", strings.Join(labels, ", ")))
	sb.WriteString("    y-axis \"Sold / Demanded\" 0 --> 1\n")
	sb.WriteString(fmt.Sprintf("    line [%s]\n", strings.Join(values, ", ")))
	sb.WriteString("```")
	return sb.String()
}

// RevenueChart creates a Mermaid bar chart of the average weekly revenue.
func RevenueChart(s simulation.Summary) string {
	if len(s.Weeks) == 0 {
		return ""
	}

	var labels []string
	var values []string
	maxVal := 0.0
	for _, w := range s.Weeks {
		labels = append(labels, fmt.Sprintf("\"%d\"", w.Week))
		values = append(values, fmt.Sprintf("%.0f", w.Revenue))
		maxVal = math.Max(maxVal, w.Revenue)
	}

	var sb strings.Builder
	sb.WriteString("```mermaid\n")
	sb.WriteString("xychart-beta\n")
	sb.WriteString("    title \"Weekly Revenue (mean of runs)\"\n")
	sb.WriteString(fmt.Sprintf("    x-axis [%s]\n", strings.Join(labels, ", ")))
	sb.WriteString(fmt.Sprintf("    y-axis \"Revenue\" 0 --> %d\n", int(math.Ceil(math.Max(maxVal*1.1, 1)))))
	sb.WriteString(fmt.Sprintf("    bar [%s]\n", strings.Join(values, ", ")))
	sb.WriteString("```")
	return sb.String()
}

// ForecastChart plots the point forecast of one product over the first weeks after its history.
func ForecastChart(title string, d *stats.Decomposition, weeks int) string {
	if d == nil || weeks <= 0 {
		return ""
	}

	labels := make([]string, weeks)
	values := make([]string, weeks)
	maxVal := 0
	for k := 0; k < weeks; k++ {
		f := demand.Forecast(d, k)
		labels[k] = fmt.Sprintf("\"%d\"", k)
		values[k] = fmt.Sprintf("%d", f)
		maxVal = max(maxVal, f)
	}

	var sb strings.Builder
	sb.WriteString("```mermaid\n")
	sb.WriteString("xychart-beta\n")
	sb.WriteString(fmt.Sprintf("    title \"Demand Forecast: %s\"\n", strings.ReplaceAll(title, "\"", "'")))
	sb.WriteString(fmt.Sprintf("    x-axis [%s]\n", strings.Join(labels, ", ")))
	sb.WriteString(fmt.Sprintf("    y-axis \"Units\" 0 --> %d\n", maxVal+int(math.Max(1, float64(maxVal)*0.2))))
	sb.WriteString(fmt.Sprintf("    line [%s]\n", strings.Join(values, ", ")))
	sb.WriteString("```")
	return sb.String()
}
