package console

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/cuemby/etlconsole/pkg/job"
)

// ErrorColor marks a failed progress indicator
const ErrorColor = "#e74c3c"

// BarWidth is the number of cells in the progress bar
const BarWidth = 30

// LinkResolver turns backend-relative links into absolute URLs
type LinkResolver interface {
	Resolve(ref string) (string, error)
}

type styles struct {
	title lipgloss.Style
	muted lipgloss.Style
	err   lipgloss.Style
	ok    lipgloss.Style
	warn  lipgloss.Style
	user  lipgloss.Style
	panel lipgloss.Style
	bar   lipgloss.Style
	label lipgloss.Style
}

func newStyles(r *lipgloss.Renderer) styles {
	return styles{
		title: r.NewStyle().Bold(true).Foreground(lipgloss.Color("212")),
		muted: r.NewStyle().Foreground(lipgloss.Color("245")),
		err:   r.NewStyle().Foreground(lipgloss.Color(ErrorColor)).Bold(true),
		ok:    r.NewStyle().Foreground(lipgloss.Color("42")).Bold(true),
		warn:  r.NewStyle().Foreground(lipgloss.Color("214")).Bold(true),
		user:  r.NewStyle().Bold(true),
		panel: r.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1),
		bar:   r.NewStyle().Foreground(lipgloss.Color("42")),
		label: r.NewStyle().Bold(true).Underline(true),
	}
}

// Console renders the job overlay and the chat transcript as terminal
// output. It implements job.View and chat.View. All methods are safe for
// concurrent use.
type Console struct {
	out      io.Writer
	resolver LinkResolver
	st       styles

	mu              sync.Mutex
	controlsEnabled bool
	overlay         bool
	percent         int
	failed          bool
	lines           []string
}

var _ job.View = (*Console)(nil)

// New creates a console writing to out. resolver may be nil, in which case
// links are printed as received.
func New(out io.Writer, resolver LinkResolver) *Console {
	return &Console{
		out:             out,
		resolver:        resolver,
		st:              newStyles(lipgloss.NewRenderer(out)),
		controlsEnabled: true,
	}
}

func (c *Console) println(s string) {
	fmt.Fprintln(c.out, s)
}

// ControlsEnabled reports whether new jobs may be launched
func (c *Console) ControlsEnabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.controlsEnabled
}

// OverlayVisible reports whether the progress overlay is shown
func (c *Console) OverlayVisible() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.overlay
}

// Progress returns the displayed percent and whether it carries the error
// treatment
func (c *Console) Progress() (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.percent, c.failed
}

// Lines returns the log lines appended since the last ClearLog
func (c *Console) Lines() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.lines...)
}

func (c *Console) SetControlsEnabled(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.controlsEnabled = enabled
}

func (c *Console) ShowOverlay(visible bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if visible && !c.overlay {
		c.println(c.st.title.Render("ETL progress"))
	}
	c.overlay = visible
}

func (c *Console) ClearLog() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lines = nil
}

func (c *Console) AppendLog(line string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lines = append(c.lines, line)
	c.println("  " + line)
}

func (c *Console) ResetProgress() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.percent = 0
	c.failed = false
}

func (c *Console) SetProgress(percent int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.percent = percent
	c.println(c.renderBar())
}

func (c *Console) MarkProgressError() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failed = true
	c.println(c.renderBar())
}

func (c *Console) Alert(msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.println(c.st.err.Render("! " + msg))
}

// renderBar draws the progress bar. Callers hold c.mu.
func (c *Console) renderBar() string {
	pct := c.percent
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	filled := pct * BarWidth / 100
	bar := strings.Repeat("█", filled) + strings.Repeat("░", BarWidth-filled)

	style := c.st.bar
	if c.failed {
		style = c.st.err
	}
	return fmt.Sprintf("  %s %3d%%", style.Render(bar), pct)
}
