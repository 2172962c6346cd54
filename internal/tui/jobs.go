package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/tinytelemetry/onuwatch/internal/model"
)

const jobListLimit = 50

type jobsTickMsg time.Time

type jobsLoadedMsg struct {
	jobs []model.Job
	err  error
}

// JobsPage lists recent ingestion jobs with their counters.
type JobsPage struct {
	ctx      context.Context
	api      API
	keys     KeyMap
	interval time.Duration

	jobs     []model.Job
	cursor   int
	inFlight bool
	lastErr  string
}

// NewJobsPage creates the jobs page.
func NewJobsPage(ctx context.Context, api API, opts Options) *JobsPage {
	opts = opts.withDefaults()
	return &JobsPage{ctx: ctx, api: api, keys: DefaultKeyMap(), interval: opts.RefreshInterval}
}

func (p *JobsPage) ID() string { return pageJobs }

func (p *JobsPage) Init() tea.Cmd {
	p.inFlight = true
	return tea.Batch(p.fetchCmd(), p.schedule())
}

func (p *JobsPage) schedule() tea.Cmd {
	return tea.Tick(p.interval, func(t time.Time) tea.Msg { return jobsTickMsg(t) })
}

func (p *JobsPage) fetchCmd() tea.Cmd {
	api, parent := p.api, p.ctx
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(parent, requestTimeout)
		defer cancel()
		jobs, err := api.Jobs(ctx, jobListLimit)
		return jobsLoadedMsg{jobs: jobs, err: err}
	}
}

func (p *JobsPage) Update(msg tea.Msg) (tea.Cmd, *PageNav) {
	switch msg := msg.(type) {
	case jobsTickMsg:
		if p.inFlight {
			return p.schedule(), nil
		}
		p.inFlight = true
		return tea.Batch(p.fetchCmd(), p.schedule()), nil

	case jobsLoadedMsg:
		p.inFlight = false
		if msg.err != nil {
			p.lastErr = msg.err.Error()
			return nil, nil
		}
		p.lastErr = ""
		p.jobs = msg.jobs
		if p.cursor >= len(p.jobs) {
			p.cursor = max(0, len(p.jobs)-1)
		}

	case pollEventMsg:
		// A finished upload shows up here on the next fetch.
		if !p.inFlight {
			p.inFlight = true
			return p.fetchCmd(), nil
		}

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, p.keys.ForceQuit, p.keys.Quit):
			return tea.Quit, nil
		case key.Matches(msg, p.keys.NextPage, p.keys.Escape):
			return nil, &PageNav{PageID: pageDashboard}
		case key.Matches(msg, p.keys.Refresh):
			if !p.inFlight {
				p.inFlight = true
				return p.fetchCmd(), nil
			}
		case key.Matches(msg, p.keys.Up):
			if p.cursor > 0 {
				p.cursor--
			}
		case key.Matches(msg, p.keys.Down):
			if p.cursor < len(p.jobs)-1 {
				p.cursor++
			}
		}
	}
	return nil, nil
}

func (p *JobsPage) View(width, height int) string {
	if width <= 0 || height <= 0 {
		return "Initializing..."
	}

	lines := []string{
		chartTitleStyle.Render(fmt.Sprintf("Relatórios recentes (%d)", len(p.jobs))),
		headerRowStyle.Render(fmt.Sprintf("%-17s %-10s %-28s %7s %7s %7s  %s",
			"Enviado", "Status", "Arquivo", "Linhas", "Gravad.", "Ignor.", "Detalhes")),
	}
	if len(p.jobs) == 0 {
		lines = append(lines, helpStyle.Render("Nenhum relatório enviado"))
	}
	for i, j := range p.jobs {
		status := lipgloss.NewStyle().Foreground(jobStatusColor(j.Status)).Render(pad(string(j.Status), 10))
		row := fmt.Sprintf("%-17s %s %-28s %7d %7d %7d  %s",
			j.CreatedAt.Local().Format("02/01/2006 15:04"),
			status,
			truncate(j.FileName, 28),
			j.TotalRows, j.Written, j.Skipped,
			truncate(j.ErrorDetail, max(10, width-90)),
		)
		if i == p.cursor {
			row = cursorRowStyle.Render(row)
		}
		lines = append(lines, row)
	}

	footer := helpStyle.Render("tab/esc: dashboard | r: atualizar | q: sair")
	if p.lastErr != "" {
		footer = statusErrorStyle.Render("Erro: "+p.lastErr) + "\n" + footer
	}

	body := activeSectionStyle.Width(width - 2).Height(height - 4).Render(strings.Join(lines, "\n"))
	return lipgloss.JoinVertical(lipgloss.Left, body, footer)
}
