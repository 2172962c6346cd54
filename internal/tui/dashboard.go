package tui

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/tinytelemetry/onuwatch/internal/model"
	"github.com/tinytelemetry/onuwatch/internal/poller"
)

// API is the subset of the HTTP client used by the dashboard.
type API interface {
	Clients(ctx context.Context, q model.RecordQuery) (model.RecordPage, error)
	KPIs(ctx context.Context) (model.KPISummary, error)
	ClientsByCity(ctx context.Context, limit int) ([]model.LabelCount, error)
	Regions(ctx context.Context) ([]string, error)
	Jobs(ctx context.Context, limit int) ([]model.Job, error)
	Upload(ctx context.Context, path string) (string, error)
	JobStatus(ctx context.Context, id string) (model.Job, error)
	DeleteAll(ctx context.Context) (int64, error)
	DeleteIDs(ctx context.Context, ids []int64) (int64, error)
}

// Options configures the dashboard.
type Options struct {
	RefreshInterval time.Duration
	PollInterval    time.Duration
	PollTimeout     time.Duration
	PageSize        int
	MinHours        int
	PollClock       poller.Clock // nil uses the wall clock
}

func (o Options) withDefaults() Options {
	if o.RefreshInterval <= 0 {
		o.RefreshInterval = model.DefaultRefreshInterval
	}
	if o.PollInterval <= 0 {
		o.PollInterval = model.DefaultPollInterval
	}
	if o.PollTimeout <= 0 {
		o.PollTimeout = model.DefaultPollTimeout
	}
	if o.PageSize <= 0 {
		o.PageSize = model.DefaultPageSize
	}
	if o.MinHours < 0 {
		o.MinHours = 0
	}
	return o
}

const (
	pageDashboard = "dashboard"
	pageJobs      = "jobs"

	cityChartLimit = 8
	requestTimeout = 20 * time.Second
)

type statusLevel int

const (
	levelInfo statusLevel = iota
	levelWarn
	levelError
)

// inputMode is the inline text input that currently owns the keyboard.
type inputMode int

const (
	inputNone inputMode = iota
	inputSearch
	inputUpload
)

type confirmAction int

const (
	confirmNone confirmAction = iota
	confirmDeleteSelected
	confirmDeleteAll
)

// DashboardPage shows KPIs, the paginated records table and the city chart,
// and drives report uploads.
type DashboardPage struct {
	ctx  context.Context
	api  API
	opts Options
	keys KeyMap
	help help.Model

	width  int
	height int

	query    model.RecordQuery
	regions  []string
	records  model.RecordPage
	kpis     model.KPISummary
	cities   []model.LabelCount
	cursor   int
	selected map[int64]bool

	input       inputMode
	searchInput textinput.Model
	uploadInput textinput.Model
	confirm     confirmAction
	detail      *viewport.Model
	showHelp    bool

	refreshInFlight bool
	fetchGen        int
	lastRefresh     time.Time

	tracker   poller.Tracker
	events    chan tea.Msg
	pollingID string

	status      string
	statusLevel statusLevel
}

// NewDashboardPage creates the dashboard. ctx bounds every request and poll.
func NewDashboardPage(ctx context.Context, api API, opts Options) *DashboardPage {
	opts = opts.withDefaults()

	search := textinput.New()
	search.Placeholder = "nome ou serial"
	search.Prompt = "/ "
	search.CharLimit = 120

	upload := textinput.New()
	upload.Placeholder = "caminho do relatório (.csv, .xls, .xlsx)"
	upload.Prompt = "arquivo: "
	upload.CharLimit = 1024

	return &DashboardPage{
		ctx:         ctx,
		api:         api,
		opts:        opts,
		keys:        DefaultKeyMap(),
		help:        help.New(),
		query:       model.RecordQuery{MinHours: opts.MinHours, PageSize: opts.PageSize}.Normalize(),
		selected:    make(map[int64]bool),
		searchInput: search,
		uploadInput: upload,
		events:      make(chan tea.Msg, 8),
	}
}

func (d *DashboardPage) ID() string { return pageDashboard }

func (d *DashboardPage) Init() tea.Cmd {
	d.refreshInFlight = true
	return tea.Batch(
		d.fetchCmd(),
		d.scheduleRefresh(),
		waitForEvent(d.ctx, d.events),
	)
}

type refreshTickMsg time.Time

func (d *DashboardPage) scheduleRefresh() tea.Cmd {
	return tea.Tick(d.opts.RefreshInterval, func(t time.Time) tea.Msg {
		return refreshTickMsg(t)
	})
}

// refresh starts a data fetch unless one is already running.
func (d *DashboardPage) refresh() tea.Cmd {
	if d.refreshInFlight {
		return nil
	}
	d.refreshInFlight = true
	return d.fetchCmd()
}

func (d *DashboardPage) Update(msg tea.Msg) (tea.Cmd, *PageNav) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		d.width = msg.Width
		d.height = msg.Height
		d.help.Width = msg.Width
		return nil, nil

	case tea.KeyMsg:
		return d.handleKey(msg)

	case refreshTickMsg:
		return tea.Batch(d.refresh(), d.scheduleRefresh()), nil

	case dashboardDataMsg:
		if msg.gen != d.fetchGen {
			return nil, nil
		}
		d.refreshInFlight = false
		d.applyData(msg)
		return nil, nil

	case uploadStartedMsg:
		return d.handleUploadStarted(msg), nil

	case pollEventMsg:
		return tea.Batch(d.handlePollEvent(msg), waitForEvent(d.ctx, d.events)), nil

	case deleteDoneMsg:
		if msg.err != nil {
			d.setStatus(levelError, "Erro ao apagar clientes: "+msg.err.Error())
			return nil, nil
		}
		d.selected = make(map[int64]bool)
		d.setStatus(levelInfo, fmt.Sprintf("%d cliente(s) apagado(s).", msg.deleted))
		return d.refreshNow(), nil
	}
	return nil, nil
}

// refreshNow fetches even when a tick fetch is running, so views reflect a
// mutation as soon as possible.
func (d *DashboardPage) refreshNow() tea.Cmd {
	d.refreshInFlight = true
	return d.fetchCmd()
}

func (d *DashboardPage) setStatus(level statusLevel, text string) {
	d.status = text
	d.statusLevel = level
}

func (d *DashboardPage) handleKey(msg tea.KeyMsg) (tea.Cmd, *PageNav) {
	if key.Matches(msg, d.keys.ForceQuit) {
		d.tracker.Cancel()
		return tea.Quit, nil
	}
	if d.input != inputNone {
		return d.handleInputKey(msg), nil
	}
	if d.confirm != confirmNone {
		return d.handleConfirmKey(msg), nil
	}
	if d.detail != nil {
		if key.Matches(msg, d.keys.Escape, d.keys.Enter, d.keys.Quit) {
			d.detail = nil
			return nil, nil
		}
		vp, cmd := d.detail.Update(msg)
		d.detail = &vp
		return cmd, nil
	}
	if d.showHelp {
		if key.Matches(msg, d.keys.Escape, d.keys.Help, d.keys.Quit) {
			d.showHelp = false
		}
		return nil, nil
	}

	switch {
	case key.Matches(msg, d.keys.Quit):
		d.tracker.Cancel()
		return tea.Quit, nil
	case key.Matches(msg, d.keys.Help):
		d.showHelp = true
	case key.Matches(msg, d.keys.NextPage):
		return nil, &PageNav{PageID: pageJobs}
	case key.Matches(msg, d.keys.Refresh):
		return d.refreshNow(), nil
	case key.Matches(msg, d.keys.Escape):
		d.status = ""
		if d.query.Search != "" {
			d.query.Search = ""
			d.searchInput.SetValue("")
			return d.requery(), nil
		}

	case key.Matches(msg, d.keys.Up):
		if d.cursor > 0 {
			d.cursor--
		}
	case key.Matches(msg, d.keys.Down):
		if d.cursor < len(d.records.Records)-1 {
			d.cursor++
		}
	case key.Matches(msg, d.keys.PrevPage):
		if d.query.Page > 1 {
			d.query.Page--
			return d.refreshNow(), nil
		}
	case key.Matches(msg, d.keys.NextPg):
		if d.query.Page < d.pageCount() {
			d.query.Page++
			return d.refreshNow(), nil
		}
	case key.Matches(msg, d.keys.Enter):
		if r, ok := d.currentRecord(); ok {
			vp := viewport.New(d.width-8, d.height-8)
			vp.SetContent(renderRecordDetail(r))
			d.detail = &vp
		}

	case key.Matches(msg, d.keys.Search):
		d.input = inputSearch
		d.searchInput.SetValue(d.query.Search)
		return d.searchInput.Focus(), nil
	case key.Matches(msg, d.keys.Sort):
		d.query.SortKey = nextSortKey(d.query.SortKey)
		d.query.SortDesc = d.query.SortKey == model.SortHoursOffline || d.query.SortKey == model.SortDisconnectedAt
		return d.requery(), nil
	case key.Matches(msg, d.keys.Reverse):
		d.query.SortDesc = !d.query.SortDesc
		return d.requery(), nil
	case key.Matches(msg, d.keys.Region):
		d.query.Region = nextRegion(d.regions, d.query.Region)
		return d.requery(), nil
	case key.Matches(msg, d.keys.MinHours):
		if d.query.MinHours > 0 {
			d.query.MinHours = 0
		} else {
			d.query.MinHours = model.DefaultMinHours
		}
		return d.requery(), nil

	case key.Matches(msg, d.keys.Select):
		if r, ok := d.currentRecord(); ok {
			if d.selected[r.ID] {
				delete(d.selected, r.ID)
			} else {
				d.selected[r.ID] = true
			}
		}
	case key.Matches(msg, d.keys.DeleteSelected):
		if len(d.selected) > 0 {
			d.confirm = confirmDeleteSelected
		} else {
			d.setStatus(levelWarn, "Nenhum cliente selecionado (espaço seleciona).")
		}
	case key.Matches(msg, d.keys.DeleteAll):
		d.confirm = confirmDeleteAll
	case key.Matches(msg, d.keys.Upload):
		d.input = inputUpload
		d.uploadInput.SetValue("")
		return d.uploadInput.Focus(), nil
	}
	return nil, nil
}

// requery returns to the first page and fetches with the current filters.
func (d *DashboardPage) requery() tea.Cmd {
	d.query.Page = 1
	d.cursor = 0
	return d.refreshNow()
}

func (d *DashboardPage) handleInputKey(msg tea.KeyMsg) tea.Cmd {
	field := &d.searchInput
	if d.input == inputUpload {
		field = &d.uploadInput
	}

	switch {
	case key.Matches(msg, d.keys.Escape):
		field.Blur()
		d.input = inputNone
		return nil
	case msg.Type == tea.KeyEnter:
		field.Blur()
		mode := d.input
		d.input = inputNone
		value := field.Value()
		if mode == inputSearch {
			d.query.Search = value
			return d.requery()
		}
		return d.startUpload(value)
	}

	updated, cmd := field.Update(msg)
	*field = updated
	return cmd
}

func (d *DashboardPage) handleConfirmKey(msg tea.KeyMsg) tea.Cmd {
	action := d.confirm
	d.confirm = confirmNone
	if !key.Matches(msg, d.keys.Confirm) {
		return nil
	}
	switch action {
	case confirmDeleteAll:
		return d.deleteCmd(nil)
	case confirmDeleteSelected:
		ids := make([]int64, 0, len(d.selected))
		for id := range d.selected {
			ids = append(ids, id)
		}
		return d.deleteCmd(ids)
	}
	return nil
}

func (d *DashboardPage) applyData(msg dashboardDataMsg) {
	d.lastRefresh = msg.at
	if msg.err != nil {
		d.setStatus(levelError, "Erro ao carregar dados: "+msg.err.Error())
		return
	}
	d.records = msg.records
	d.kpis = msg.kpis
	d.cities = msg.cities
	d.regions = msg.regions
	if d.cursor >= len(d.records.Records) {
		d.cursor = max(0, len(d.records.Records)-1)
	}
	if d.statusLevel == levelError {
		d.status = ""
	}
}

func (d *DashboardPage) currentRecord() (model.Record, bool) {
	if d.cursor < 0 || d.cursor >= len(d.records.Records) {
		return model.Record{}, false
	}
	return d.records.Records[d.cursor], true
}

func (d *DashboardPage) pageCount() int {
	size := int64(d.query.PageSize)
	if size <= 0 || d.records.TotalCount == 0 {
		return 1
	}
	return int((d.records.TotalCount + size - 1) / size)
}

func nextSortKey(current string) string {
	for i, k := range model.SortKeys {
		if k == current {
			return model.SortKeys[(i+1)%len(model.SortKeys)]
		}
	}
	return model.SortKeys[0]
}

// nextRegion cycles "" → regions[0] → ... → last → "".
func nextRegion(regions []string, current string) string {
	if current == "" {
		if len(regions) == 0 {
			return ""
		}
		return regions[0]
	}
	for i, r := range regions {
		if r == current && i+1 < len(regions) {
			return regions[i+1]
		}
	}
	return ""
}
