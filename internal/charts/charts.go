// Package charts renders dashboard charts as SVG.
package charts

import (
	"bytes"
	"fmt"
	"html"
	"sort"
	"strings"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"financeangle/internal/core"
)

const (
	DefaultWidth  = 1200
	DefaultHeight = 500
	DefaultDPI    = 144

	minDimension = 320
	maxDimension = 2400
	minDPI       = 72
	maxDPI       = 300
)

const (
	MsgNoSpending  = "No spending data yet"
	MsgNoSnapshots = "No balance snapshots yet"
	MsgNotEnough   = "Not enough data to plot"
)

// Options sizes a rendered chart.
type Options struct {
	Width  int
	Height int
	DPI    int
}

// ClampOptions applies defaults to unset (zero) values and keeps the rest in
// range.
func ClampOptions(width, height, dpi int) Options {
	o := Options{Width: DefaultWidth, Height: DefaultHeight, DPI: DefaultDPI}
	if width != 0 {
		o.Width = clamp(width, minDimension, maxDimension)
	}
	if height != 0 {
		o.Height = clamp(height, minDimension, maxDimension)
	}
	if dpi != 0 {
		o.DPI = clamp(dpi, minDPI, maxDPI)
	}
	return o
}

func (o Options) key() string {
	return fmt.Sprintf("%dx%d@%d", o.Width, o.Height, o.DPI)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Spending draws monthly spending per category, as stacked bars or as one
// bar per month and category. Amounts are plotted by magnitude.
func Spending(points []core.SpendingPoint, stacked bool, o Options) []byte {
	if len(points) == 0 {
		return Placeholder(MsgNoSpending, o)
	}

	var buf bytes.Buffer
	var err error
	if stacked {
		err = stackedSpending(points, o).Render(chart.SVG, &buf)
	} else {
		err = groupedSpending(points, o).Render(chart.SVG, &buf)
	}
	if err != nil {
		return Placeholder(MsgNotEnough, o)
	}
	return buf.Bytes()
}

func stackedSpending(points []core.SpendingPoint, o Options) chart.StackedBarChart {
	colors := categoryColors(points)
	var bars []chart.StackedBar
	index := make(map[core.Month]int)
	for _, p := range points {
		i, ok := index[p.Month]
		if !ok {
			i = len(bars)
			index[p.Month] = i
			bars = append(bars, chart.StackedBar{Name: p.Month.String()})
		}
		v, _ := p.Total.Abs().Float64()
		bars[i].Values = append(bars[i].Values, chart.Value{
			Label: p.Category,
			Value: v,
			Style: chart.Style{FillColor: colors[p.Category], StrokeColor: colors[p.Category]},
		})
	}
	return chart.StackedBarChart{
		Title:      "Monthly spending by category",
		Width:      o.Width,
		Height:     o.Height,
		DPI:        float64(o.DPI),
		Background: chart.Style{Padding: chart.Box{Top: 50, Left: 20, Right: 20, Bottom: 20}},
		Bars:       bars,
	}
}

func groupedSpending(points []core.SpendingPoint, o Options) chart.BarChart {
	colors := categoryColors(points)
	bars := make([]chart.Value, 0, len(points))
	for _, p := range points {
		v, _ := p.Total.Abs().Float64()
		bars = append(bars, chart.Value{
			Label: p.Month.String() + " " + p.Category,
			Value: v,
			Style: chart.Style{FillColor: colors[p.Category], StrokeColor: colors[p.Category]},
		})
	}
	return chart.BarChart{
		Title:      "Monthly spending by category",
		Width:      o.Width,
		Height:     o.Height,
		DPI:        float64(o.DPI),
		Background: chart.Style{Padding: chart.Box{Top: 50}},
		BarWidth:   barWidth(len(bars), o.Width),
		Bars:       bars,
	}
}

func barWidth(n, width int) int {
	if n == 0 {
		return 40
	}
	return clamp(width/(2*n), 8, 60)
}

func categoryColors(points []core.SpendingPoint) map[string]drawing.Color {
	var names []string
	seen := make(map[string]bool)
	for _, p := range points {
		if !seen[p.Category] {
			seen[p.Category] = true
			names = append(names, p.Category)
		}
	}
	sort.Strings(names)
	colors := make(map[string]drawing.Color, len(names))
	for i, n := range names {
		colors[n] = chart.GetDefaultColor(i)
	}
	return colors
}

// NetPosition draws, per snapshot date, the sum of signed balances.
func NetPosition(snapshots []core.BalanceSnapshot, o Options) []byte {
	if len(snapshots) == 0 {
		return Placeholder(MsgNoSnapshots, o)
	}

	totals := make(map[time.Time]float64)
	for _, s := range snapshots {
		v, _ := s.SignedAmount().Float64()
		totals[s.Date.Time] += v
	}
	dates := make([]time.Time, 0, len(totals))
	for d := range totals {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	values := make([]float64, len(dates))
	for i, d := range dates {
		values[i] = totals[d]
	}

	return renderLines("Net position over time", []chart.Series{
		chart.TimeSeries{Name: "Net position", XValues: dates, YValues: values},
	}, o)
}

// BalanceByAccount draws one signed balance line per "account (type)".
func BalanceByAccount(snapshots []core.BalanceSnapshot, o Options) []byte {
	if len(snapshots) == 0 {
		return Placeholder(MsgNoSnapshots, o)
	}

	ordered := append([]core.BalanceSnapshot(nil), snapshots...)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Date.Before(ordered[j].Date.Time) })

	series := make(map[string]*chart.TimeSeries)
	var names []string
	for _, s := range ordered {
		name := seriesName(s)
		ts, ok := series[name]
		if !ok {
			ts = &chart.TimeSeries{Name: name}
			series[name] = ts
			names = append(names, name)
		}
		v, _ := s.SignedAmount().Float64()
		ts.XValues = append(ts.XValues, s.Date.Time)
		ts.YValues = append(ts.YValues, v)
	}
	sort.Strings(names)

	out := make([]chart.Series, 0, len(names))
	for i, n := range names {
		ts := *series[n]
		ts.Style = chart.Style{StrokeColor: chart.GetDefaultColor(i), StrokeWidth: 2}
		out = append(out, ts)
	}
	return renderLines("Balance by account and type", out, o)
}

func seriesName(s core.BalanceSnapshot) string {
	account := "Unassigned"
	if s.Account != nil {
		account = *s.Account
	}
	return fmt.Sprintf("%s (%s)", account, strings.ToLower(string(s.Type)))
}

func renderLines(title string, series []chart.Series, o Options) []byte {
	graph := chart.Chart{
		Title:      title,
		Width:      o.Width,
		Height:     o.Height,
		DPI:        float64(o.DPI),
		Background: chart.Style{Padding: chart.Box{Top: 50, Left: 20, Right: 20, Bottom: 20}},
		XAxis:      chart.XAxis{ValueFormatter: chart.TimeValueFormatterWithFormat(time.DateOnly)},
		Series:     series,
	}
	graph.Elements = []chart.Renderable{chart.LegendLeft(&graph)}

	var buf bytes.Buffer
	if err := graph.Render(chart.SVG, &buf); err != nil {
		return Placeholder(MsgNotEnough, o)
	}
	return buf.Bytes()
}

// Placeholder is a plain SVG carrying message, used when there is nothing to
// draw.
func Placeholder(message string, o Options) []byte {
	return []byte(fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" width="%[1]d" height="%[2]d" viewBox="0 0 %[1]d %[2]d">
  <rect width="%[1]d" height="%[2]d" fill="#f8fafc" />
  <text x="50%%" y="50%%" dominant-baseline="middle" text-anchor="middle" font-family="Arial" font-size="18" fill="#334155">%[3]s</text>
</svg>`, o.Width, o.Height, html.EscapeString(message)))
}
