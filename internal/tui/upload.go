package tui

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/tinytelemetry/onuwatch/internal/model"
	"github.com/tinytelemetry/onuwatch/internal/poller"
)

type uploadStartedMsg struct {
	path  string
	jobID string
	err   error
}

type pollEventKind int

const (
	pollCompleted pollEventKind = iota
	pollFailed
	pollError
	pollTimedOut
)

type pollEventMsg struct {
	kind   pollEventKind
	jobID  string
	job    model.Job
	detail string
	err    error
}

// startUpload sends the file at path. Polling starts once the job id is known.
func (d *DashboardPage) startUpload(path string) tea.Cmd {
	path = expandHome(strings.TrimSpace(path))
	if path == "" {
		d.setStatus(levelWarn, "Nenhum arquivo informado.")
		return nil
	}
	d.setStatus(levelInfo, "Enviando "+filepath.Base(path)+"...")

	api := d.api
	parent := d.ctx
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(parent, requestTimeout)
		defer cancel()
		id, err := api.Upload(ctx, path)
		return uploadStartedMsg{path: path, jobID: id, err: err}
	}
}

func (d *DashboardPage) handleUploadStarted(msg uploadStartedMsg) tea.Cmd {
	if msg.err != nil {
		d.setStatus(levelError, "Falha no envio: "+msg.err.Error())
		return nil
	}
	d.setStatus(levelInfo, "Arquivo recebido, processando "+filepath.Base(msg.path)+"...")
	d.pollingID = msg.jobID
	d.startPoll(msg.jobID)
	return nil
}

// startPoll replaces any running poll. Callbacks run on the poll goroutine
// and are forwarded to Update through the events channel.
func (d *DashboardPage) startPoll(jobID string) {
	send := func(msg pollEventMsg) {
		msg.jobID = jobID
		select {
		case d.events <- msg:
		case <-d.ctx.Done():
		}
	}

	opts := []poller.Option{
		poller.WithInterval(d.opts.PollInterval),
		poller.WithTimeout(d.opts.PollTimeout),
	}
	if d.opts.PollClock != nil {
		opts = append(opts, poller.WithClock(d.opts.PollClock))
	}

	d.tracker.Start(d.ctx, d.api.JobStatus, jobID, poller.Callbacks{
		OnComplete: func(job model.Job) { send(pollEventMsg{kind: pollCompleted, job: job}) },
		OnFail:     func(detail string) { send(pollEventMsg{kind: pollFailed, detail: detail}) },
		OnError:    func(err error) { send(pollEventMsg{kind: pollError, err: err}) },
		OnTimeout:  func() { send(pollEventMsg{kind: pollTimedOut}) },
	}, opts...)
}

func (d *DashboardPage) handlePollEvent(msg pollEventMsg) tea.Cmd {
	if msg.jobID != d.pollingID {
		return nil
	}
	d.pollingID = ""

	switch msg.kind {
	case pollCompleted:
		d.setStatus(levelInfo, fmt.Sprintf("Relatório processado: %d linha(s) gravada(s), %d ignorada(s).",
			msg.job.Written, msg.job.Skipped))
		return d.refreshNow()
	case pollFailed:
		detail := msg.detail
		if detail == "" {
			detail = "erro desconhecido"
		}
		d.setStatus(levelError, "Falha no processamento: "+detail)
	case pollError:
		d.setStatus(levelError, "Erro ao consultar o status: "+msg.err.Error())
	case pollTimedOut:
		d.setStatus(levelWarn, "Tempo esgotado aguardando o processamento. Atualize mais tarde.")
	}
	return nil
}

// Polling reports whether an upload is being watched.
func (d *DashboardPage) Polling() bool { return d.pollingID != "" }

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}
