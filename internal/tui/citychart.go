package tui

import (
	"fmt"
	"strings"

	"github.com/NimbleMarkets/ntcharts/barchart"
	"github.com/charmbracelet/lipgloss"
	"github.com/tinytelemetry/onuwatch/internal/model"
)

var cityPalette = []lipgloss.Color{"39", "208", "42", "201", "226", "45", "196", "141"}

// renderCityChart draws one bar per city with a legend of counts below.
func renderCityChart(cities []model.LabelCount, width, height int) string {
	style := sectionStyle.Width(width - 2).Height(height - 2)
	title := chartTitleStyle.Render("Clientes por cidade")
	if len(cities) == 0 {
		return style.Render(lipgloss.JoinVertical(lipgloss.Left, title, helpStyle.Render("Sem dados")))
	}

	n := len(cities)
	if n > len(cityPalette) {
		n = len(cityPalette)
	}
	inner := width - 6
	chartHeight := height - 4 - n - 1
	if chartHeight < 3 {
		chartHeight = 3
	}
	barWidth := (inner - (n - 1)) / n
	if barWidth < 1 {
		barWidth = 1
	}

	bc := barchart.New(inner, chartHeight,
		barchart.WithBarGap(1),
		barchart.WithBarWidth(barWidth),
		barchart.WithNoAxis(),
	)

	legend := make([]string, 0, n)
	for i := 0; i < n; i++ {
		c := cities[i]
		color := cityPalette[i]
		bc.Push(barchart.BarData{
			Label: c.Label,
			Values: []barchart.BarValue{{
				Name:  c.Label,
				Value: float64(c.Total),
				Style: lipgloss.NewStyle().Foreground(color).Background(color),
			}},
		})
		swatch := lipgloss.NewStyle().Foreground(color).Render("■")
		legend = append(legend, fmt.Sprintf("%s %s %d", swatch, pad(truncate(c.Label, inner-10), inner-10), c.Total))
	}
	bc.Draw()

	return style.Render(lipgloss.JoinVertical(lipgloss.Left, title, bc.View(), strings.Join(legend, "\n")))
}
