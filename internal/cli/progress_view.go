package cli

import (
	"context"
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"sheetbatch/internal/batch"
	"sheetbatch/internal/model"
)

var (
	progressTitleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	progressMutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	progressErrorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Bold(true)
	progressOKStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
)

type batchProgressMsg struct {
	current  int
	total    int
	label    string
	complete bool
}

type batchDoneMsg struct {
	success bool
	message string
}

type progressModel struct {
	title   string
	bar     progress.Model
	spin    spinner.Model
	cancel  context.CancelFunc
	now     func() time.Time
	started time.Time

	total      int
	done       int
	current    string
	cancelling bool
	finished   bool
	success    bool
	message    string
}

func newProgressModel(title string, cancel context.CancelFunc, now func() time.Time) progressModel {
	if now == nil {
		now = time.Now
	}
	spin := spinner.New()
	spin.Spinner = spinner.Dot
	spin.Style = progressMutedStyle
	return progressModel{
		title:   title,
		bar:     progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
		spin:    spin,
		cancel:  cancel,
		now:     now,
		started: now(),
	}
}

func (m progressModel) Init() tea.Cmd {
	return m.spin.Tick
}

func (m progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.bar.Width = clampInt(msg.Width-30, 10, 60)
		return m, nil
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			// The batch stops between sheets; the view stays up until it reports done.
			if !m.cancelling && m.cancel != nil {
				m.cancel()
			}
			m.cancelling = true
		}
		return m, nil
	case batchProgressMsg:
		m.total = msg.total
		if msg.complete {
			m.done = msg.current
			m.current = ""
		} else {
			m.current = msg.label
		}
		return m, nil
	case batchDoneMsg:
		m.finished = true
		m.success = msg.success
		m.message = msg.message
		return m, tea.Quit
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m progressModel) View() string {
	if m.finished {
		style := progressOKStyle
		if !m.success {
			style = progressErrorStyle
		}
		return style.Render(m.message) + "\n"
	}

	pct := 0.0
	if m.total > 0 {
		pct = float64(m.done) / float64(m.total)
	}
	lines := []string{
		progressTitleStyle.Render(m.title),
		fmt.Sprintf("%s %d/%d", m.bar.ViewAs(pct), m.done, m.total),
	}
	status := m.spin.View() + " "
	switch {
	case m.cancelling:
		status += progressErrorStyle.Render("cancelling after the current sheet...")
	case m.current != "":
		status += m.current
	default:
		status += progressMutedStyle.Render("preparing")
	}
	if eta := m.eta(); eta != "" {
		status += progressMutedStyle.Render("  eta " + eta)
	}
	lines = append(lines, status)
	lines = append(lines, progressMutedStyle.Render("ctrl+c: stop after current sheet"))
	return strings.Join(lines, "\n") + "\n"
}

func (m progressModel) eta() string {
	if m.done <= 0 || m.total <= m.done {
		return ""
	}
	elapsed := m.now().Sub(m.started).Seconds()
	if elapsed <= 0 {
		return ""
	}
	perItem := elapsed / float64(m.done)
	return formatETASeconds(perItem * float64(m.total-m.done))
}

func formatETASeconds(seconds float64) string {
	if seconds <= 0 {
		return ""
	}
	secs := int64(math.Round(seconds))
	if secs < 60 {
		return "<1m"
	}
	minutes := secs / 60
	if minutes < 60 {
		return fmt.Sprintf("%dm", minutes)
	}
	hours := minutes / 60
	remMinutes := minutes % 60
	if remMinutes == 0 {
		return fmt.Sprintf("%dh", hours)
	}
	return fmt.Sprintf("%dh %dm", hours, remMinutes)
}

// runWithProgressView drives the batch on a goroutine and renders it with
// bubbletea until the batch reports completion.
func runWithProgressView(
	ctx context.Context,
	out io.Writer,
	orch *batch.Orchestrator,
	sheets []model.Sheet,
	formats model.FormatSet,
	settings model.ExportSettings,
) (model.ExportResult, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	title := fmt.Sprintf("sheetbatch: %s (%d sheets)", settings.Name, len(sheets))
	p := tea.NewProgram(newProgressModel(title, cancel, nil), tea.WithOutput(out), tea.WithoutSignalHandler())

	var result model.ExportResult
	var runErr error
	done := make(chan struct{})
	go func() {
		defer close(done)
		result, runErr = orch.RunBatch(ctx, sheets, formats, settings,
			func(current, total int, label string, complete bool) {
				p.Send(batchProgressMsg{current: current, total: total, label: label, complete: complete})
			},
			func(success bool, message string) {
				p.Send(batchDoneMsg{success: success, message: message})
			},
		)
	}()

	if _, err := p.Run(); err != nil {
		cancel()
		<-done
		return result, err
	}
	<-done
	return result, runErr
}
