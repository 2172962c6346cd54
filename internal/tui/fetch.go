package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/tinytelemetry/onuwatch/internal/model"
	"golang.org/x/sync/errgroup"
)

type dashboardDataMsg struct {
	gen     int
	at      time.Time
	records model.RecordPage
	kpis    model.KPISummary
	cities  []model.LabelCount
	regions []string
	err     error
}

type deleteDoneMsg struct {
	deleted int64
	err     error
}

// fetchCmd loads every dashboard view concurrently. The first error wins
// and the whole result is discarded.
func (d *DashboardPage) fetchCmd() tea.Cmd {
	d.fetchGen++
	gen := d.fetchGen
	q := d.query
	api := d.api
	parent := d.ctx

	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(parent, requestTimeout)
		defer cancel()

		msg := dashboardDataMsg{gen: gen}
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			msg.records, err = api.Clients(gctx, q)
			return err
		})
		g.Go(func() error {
			var err error
			msg.kpis, err = api.KPIs(gctx)
			return err
		})
		g.Go(func() error {
			var err error
			msg.cities, err = api.ClientsByCity(gctx, cityChartLimit)
			return err
		})
		g.Go(func() error {
			var err error
			msg.regions, err = api.Regions(gctx)
			return err
		})
		msg.err = g.Wait()
		msg.at = time.Now()
		return msg
	}
}

// deleteCmd deletes the given records, or every record when ids is nil.
func (d *DashboardPage) deleteCmd(ids []int64) tea.Cmd {
	api := d.api
	parent := d.ctx
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(parent, requestTimeout)
		defer cancel()
		var (
			n   int64
			err error
		)
		if ids == nil {
			n, err = api.DeleteAll(ctx)
		} else {
			n, err = api.DeleteIDs(ctx, ids)
		}
		return deleteDoneMsg{deleted: n, err: err}
	}
}

// waitForEvent delivers the next message pushed by a background goroutine.
func waitForEvent(ctx context.Context, events <-chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		select {
		case msg := <-events:
			return msg
		case <-ctx.Done():
			return nil
		}
	}
}
