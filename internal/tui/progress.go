package tui

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"

	"voxrag/internal/ingest"
)

// Reporter renders ingestion progress for one run.
type Reporter interface {
	Start(collection string)
	Progress(ev ingest.Event)
	// Finish reports the final counts. It must be called once, after Run returns.
	Finish(report *ingest.Report, err error)
}

// NewReporter returns an animated reporter when out is a terminal and a
// line-per-document reporter otherwise.
func NewReporter(out io.Writer) Reporter {
	if f, ok := out.(*os.File); ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())) {
		return NewProgressReporter(out)
	}
	return NewPlainReporter(out)
}

// DocumentLine is the console line for one document outcome.
func DocumentLine(o ingest.Outcome) string {
	switch o.Status {
	case ingest.StatusIndexed:
		return "Document processed: " + o.Document.Path
	case ingest.StatusNoContent:
		return "No valid content found in document: " + o.Document.Path
	case ingest.StatusCancelled:
		return "Document skipped: " + o.Document.Path
	default:
		return fmt.Sprintf("Error processing document %s: %v", o.Document.Path, o.Err)
	}
}

// Summary is the closing line of a run.
func Summary(r *ingest.Report) string {
	if r.Total == 0 {
		return "No documents found to index."
	}
	return fmt.Sprintf("Indexed %d of %d documents into %q (%d units): %d without content, %d failed, %d cancelled in %s.",
		r.Indexed, r.Total, r.Collection, r.Units, r.NoContent, r.Failed, r.Cancelled, r.Duration.Round(time.Millisecond))
}

// PlainReporter writes one line per document.
type PlainReporter struct {
	out io.Writer
}

func NewPlainReporter(out io.Writer) *PlainReporter { return &PlainReporter{out: out} }

func (p *PlainReporter) Start(collection string) {
	fmt.Fprintf(p.out, "Indexing context %q...\n", collection)
}

func (p *PlainReporter) Progress(ev ingest.Event) {
	fmt.Fprintf(p.out, "[%d/%d] %s\n", ev.Completed, ev.Total, DocumentLine(ev.Outcome))
}

func (p *PlainReporter) Finish(r *ingest.Report, err error) {
	if err != nil {
		fmt.Fprintf(p.out, "Indexing failed: %v\n", err)
		return
	}
	fmt.Fprintln(p.out, Summary(r))
}

type (
	eventMsg   ingest.Event
	printedMsg struct{}
	finishMsg  struct{}
)

var (
	okStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	warnStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	errStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	helpStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// progressModel is the bubbletea model behind ProgressReporter.
type progressModel struct {
	collection string
	spinner    spinner.Model
	bar        progress.Model
	completed  int
	total      int
	last       string
	pending    int
	finishing  bool
	quitting   bool
}

func newProgressModel(collection string) progressModel {
	return progressModel{
		collection: collection,
		spinner:    spinner.New(spinner.WithSpinner(spinner.Globe)),
		bar:        progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
	}
}

func (m progressModel) Init() tea.Cmd { return m.spinner.Tick }

func (m progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.bar.Width = max(10, min(60, msg.Width-30))
		return m, nil
	case eventMsg:
		m.completed, m.total = msg.Completed, msg.Total
		m.last = msg.Outcome.Document.Path
		m.pending++
		line := styleOutcome(msg.Outcome).Render(DocumentLine(msg.Outcome))
		return m, tea.Sequence(tea.Println(line), func() tea.Msg { return printedMsg{} })
	case printedMsg:
		m.pending--
		if m.finishing && m.pending == 0 {
			m.quitting = true
			return m, tea.Quit
		}
		return m, nil
	case finishMsg:
		m.finishing = true
		if m.pending == 0 {
			m.quitting = true
			return m, tea.Quit
		}
		return m, nil
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m progressModel) View() string {
	if m.quitting {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s Indexing %s  %d/%d\n", m.spinner.View(), m.collection, m.completed, m.total)
	b.WriteString(m.bar.ViewAs(m.percent()))
	if m.last != "" {
		b.WriteString("\n" + helpStyle.Render(m.last))
	}
	return b.String() + "\n"
}

func (m progressModel) percent() float64 {
	if m.total == 0 {
		return 0
	}
	return float64(m.completed) / float64(m.total)
}

func styleOutcome(o ingest.Outcome) lipgloss.Style {
	switch o.Status {
	case ingest.StatusIndexed:
		return okStyle
	case ingest.StatusNoContent, ingest.StatusCancelled:
		return warnStyle
	default:
		return errStyle
	}
}

// ProgressReporter shows a spinner and progress bar while documents complete
// and prints one line above the bar for every document.
type ProgressReporter struct {
	out     io.Writer
	program *tea.Program
	done    chan struct{}
}

func NewProgressReporter(out io.Writer) *ProgressReporter {
	return &ProgressReporter{out: out}
}

func (p *ProgressReporter) Start(collection string) {
	p.program = tea.NewProgram(newProgressModel(collection),
		tea.WithOutput(p.out),
		tea.WithInput(nil),
		tea.WithoutSignalHandler(),
	)
	p.done = make(chan struct{})
	go func() {
		defer close(p.done)
		_, _ = p.program.Run()
	}()
}

func (p *ProgressReporter) Progress(ev ingest.Event) {
	if p.program != nil {
		p.program.Send(eventMsg(ev))
	}
}

func (p *ProgressReporter) Finish(r *ingest.Report, err error) {
	if p.program != nil {
		p.program.Send(finishMsg{})
		<-p.done
	}
	if err != nil {
		fmt.Fprintln(p.out, errStyle.Render("Indexing failed: "+err.Error()))
		return
	}
	fmt.Fprintln(p.out, Summary(r))
}
