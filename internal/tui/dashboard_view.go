package tui

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/tinytelemetry/onuwatch/internal/model"
)

const (
	minWidth  = 80
	minHeight = 24
	chartPane = 34
)

// tableColumn is one records table column; render pulls the cell text.
type tableColumn struct {
	title  string
	width  int
	sort   string
	render func(model.Record) string
}

var recordColumns = []tableColumn{
	{"Cliente", 18, model.SortClientName, func(r model.Record) string { return r.ClientName }},
	{"Serial ONU", 13, model.SortSerial, func(r model.Record) string { return r.Serial }},
	{"OLT/Região", 20, model.SortRegion, func(r model.Record) string { return r.Region }},
	{"Cidade", 10, "", func(r model.Record) string { return r.City }},
	{"Horas", 7, model.SortHoursOffline, func(r model.Record) string { return strconv.Itoa(r.HoursOffline) }},
	{"Desconexão", 16, model.SortDisconnectedAt, func(r model.Record) string { return r.DisconnectedAt.UTC().Format("02/01/2006 15:04") }},
}

func (d *DashboardPage) View(width, height int) string {
	if width <= 0 || height <= 0 {
		return "Initializing dashboard..."
	}
	if width < minWidth || height < minHeight {
		return fmt.Sprintf("Terminal too small. Resize to at least %dx%d.", minWidth, minHeight)
	}
	if d.showHelp {
		return renderModal("Ajuda", d.help.FullHelpView(d.keys.FullHelp()), "esc: fechar", width, height)
	}
	if d.detail != nil {
		d.detail.Width = width - 12
		d.detail.Height = height - 10
		return renderModal("Detalhes do cliente", d.detail.View(), "↑/↓: rolar | esc: fechar", width, height)
	}

	title := chartTitleStyle.Render("onuwatch · clientes offline") + "  " +
		helpStyle.Render(d.refreshLabel())
	kpis := d.renderKPIs(width)

	footer := []string{d.renderPrompt(), d.renderStatus(), d.help.ShortHelpView(d.keys.ShortHelp())}
	usedHeight := lipgloss.Height(title) + lipgloss.Height(kpis) + len(footer)
	bodyHeight := height - usedHeight
	if bodyHeight < 6 {
		bodyHeight = 6
	}

	tableWidth := width - chartPane
	table := d.renderTable(tableWidth, bodyHeight)
	chart := renderCityChart(d.cities, chartPane, bodyHeight)
	body := lipgloss.JoinHorizontal(lipgloss.Top, table, chart)

	return lipgloss.JoinVertical(lipgloss.Left, append([]string{title, kpis, body}, footer...)...)
}

func (d *DashboardPage) refreshLabel() string {
	if d.lastRefresh.IsZero() {
		return "carregando..."
	}
	return "atualizado às " + d.lastRefresh.Format("15:04:05")
}

func (d *DashboardPage) renderKPIs(width int) string {
	cards := []struct{ label, value string }{
		{"Clientes offline", strconv.FormatInt(d.kpis.Total, 10)},
		{"Novos críticos (24h)", strconv.FormatInt(d.kpis.NewCriticalCases24h, 10)},
		{"OLT mais crítica", orDash(d.kpis.MostCriticalOLT)},
		{"Caso mais antigo", fmt.Sprintf("%d dia(s)", d.kpis.OldestCaseDays)},
	}
	cardWidth := width/len(cards) - 2
	rendered := make([]string, len(cards))
	for i, c := range cards {
		body := lipgloss.JoinVertical(lipgloss.Left,
			kpiLabelStyle.Render(c.label),
			kpiValueStyle.Render(truncate(c.value, cardWidth-2)),
		)
		rendered[i] = sectionStyle.Width(cardWidth).Render(body)
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, rendered...)
}

func (d *DashboardPage) renderTable(width, height int) string {
	style := activeSectionStyle.Width(width - 2).Height(height - 2)

	var filters []string
	if d.query.Search != "" {
		filters = append(filters, "busca: "+d.query.Search)
	}
	if d.query.Region != "" {
		filters = append(filters, "região: "+d.query.Region)
	}
	if d.query.MinHours > 0 {
		filters = append(filters, fmt.Sprintf(">= %dh", d.query.MinHours))
	}
	header := chartTitleStyle.Render(fmt.Sprintf("Clientes (%d)", d.records.TotalCount))
	if len(filters) > 0 {
		header += "  " + helpStyle.Render(strings.Join(filters, " | "))
	}

	if d.lastRefresh.IsZero() && d.refreshInFlight {
		return style.Render(lipgloss.JoinVertical(lipgloss.Left, header, renderLoadingPlaceholder(width-4, height-4)))
	}

	lines := []string{header, d.renderHeaderRow()}
	if len(d.records.Records) == 0 {
		lines = append(lines, helpStyle.Render("Nenhum cliente encontrado"))
	}
	for i, r := range d.records.Records {
		row := d.renderRow(r)
		if i == d.cursor {
			row = cursorRowStyle.Render(row)
		}
		lines = append(lines, row)
	}
	lines = append(lines, helpStyle.Render(fmt.Sprintf("página %d de %d · %d selecionado(s)",
		d.query.Page, d.pageCount(), len(d.selected))))

	return style.Render(strings.Join(lines, "\n"))
}

func (d *DashboardPage) renderHeaderRow() string {
	cells := []string{"  "}
	for _, col := range recordColumns {
		title := col.title
		if col.sort != "" && col.sort == d.query.SortKey {
			if d.query.SortDesc {
				title += " ↓"
			} else {
				title += " ↑"
			}
		}
		cells = append(cells, pad(title, col.width))
	}
	cells = append(cells, "Status")
	return headerRowStyle.Render(strings.Join(cells, " "))
}

func (d *DashboardPage) renderRow(r model.Record) string {
	mark := "  "
	if d.selected[r.ID] {
		mark = "✓ "
	}
	cells := []string{mark}
	for _, col := range recordColumns {
		cells = append(cells, pad(truncate(col.render(r), col.width), col.width))
	}
	cells = append(cells, severityBadge(r.HoursOffline))
	return strings.Join(cells, " ")
}

func (d *DashboardPage) renderPrompt() string {
	switch {
	case d.input == inputSearch:
		return d.searchInput.View()
	case d.input == inputUpload:
		return d.uploadInput.View()
	case d.confirm == confirmDeleteAll:
		return statusWarnStyle.Render("Apagar TODOS os clientes? (y para confirmar)")
	case d.confirm == confirmDeleteSelected:
		return statusWarnStyle.Render(fmt.Sprintf("Apagar %d cliente(s) selecionado(s)? (y para confirmar)", len(d.selected)))
	}
	return ""
}

func (d *DashboardPage) renderStatus() string {
	text := d.status
	if d.Polling() && text == "" {
		text = "Processando relatório..."
	}
	switch d.statusLevel {
	case levelError:
		return statusErrorStyle.Render(text)
	case levelWarn:
		return statusWarnStyle.Render(text)
	default:
		return statusInfoStyle.Render(text)
	}
}

func renderRecordDetail(r model.Record) string {
	rows := [][2]string{
		{"Cliente", r.ClientName},
		{"Serial ONU", r.Serial},
		{"OLT/Região", r.Region},
		{"Cidade", r.City},
		{"CTO", r.CTO},
		{"Slot/PON/ONU", r.SlotPonOnu},
		{"Modelo ONU", r.Model},
		{"Motivo", r.Reason},
		{"Horas offline", strconv.Itoa(r.HoursOffline)},
		{"Severidade", severityBadge(r.HoursOffline)},
		{"Desconexão", r.DisconnectedAt.UTC().Format(time.RFC3339)},
		{"RX ONU (dBm)", optFloat(r.RxONU)},
		{"RX OLT (dBm)", optFloat(r.RxOLT)},
		{"Distância (m)", optInt(r.DistanceM)},
		{"Relatório", r.JobID},
		{"Atualizado", r.UpdatedAt.UTC().Format(time.RFC3339)},
	}
	var b strings.Builder
	for _, row := range rows {
		b.WriteString(kpiLabelStyle.Render(pad(row[0], 16)))
		b.WriteString(orDash(row[1]))
		b.WriteByte('\n')
	}
	return b.String()
}

// renderModal draws content in a centered bordered box.
func renderModal(title, content, status string, width, height int) string {
	modalWidth := width - 8
	modalHeight := height - 4

	header := lipgloss.NewStyle().Foreground(ColorBlue).Bold(true).Render(title)
	statusBar := lipgloss.NewStyle().Foreground(ColorGray).Render(status)
	inner := lipgloss.JoinVertical(lipgloss.Left, header, "", content, "", statusBar)

	box := lipgloss.NewStyle().
		Width(modalWidth).
		Height(modalHeight).
		Padding(1, 2).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorBlue).
		Render(inner)

	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, box)
}

func optFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', 2, 64)
}

func optInt(v *int64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatInt(*v, 10)
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

// truncate shortens s to width runes, marking the cut with an ellipsis.
func truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	if width == 1 {
		return "…"
	}
	return string(r[:width-1]) + "…"
}

func pad(s string, width int) string {
	n := lipgloss.Width(s)
	if n >= width {
		return s
	}
	return s + strings.Repeat(" ", width-n)
}
