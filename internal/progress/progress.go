// Package progress renders import progress on a terminal.
package progress

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/agentmitra/portalctl/internal/dataimport"
)

// MaxListedErrors caps the row errors printed in a summary.
const MaxListedErrors = 10

// Indicator tracks the wizard's progress snapshots and draws them
type Indicator struct {
	writer      io.Writer
	current     *dataimport.Progress
	startTime   time.Time
	stageStart  time.Time
	mu          sync.Mutex
	showSpinner bool
	spinnerIdx  int
	stopChan    chan struct{}
	stopOnce    sync.Once
	isCI        bool
	now         func() time.Time
}

// Config holds configuration for progress indicator
type Config struct {
	Writer      io.Writer
	ShowSpinner bool
	IsCI        bool // plain line-per-update output, no carriage returns
}

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// NewIndicator creates a new progress indicator
func NewIndicator(cfg Config) *Indicator {
	if cfg.Writer == nil {
		cfg.Writer = os.Stderr
	}

	if !cfg.IsCI {
		cfg.IsCI = os.Getenv("CI") == "true" || os.Getenv("GITHUB_ACTIONS") == "true"
	}

	now := time.Now()
	return &Indicator{
		writer:      cfg.Writer,
		startTime:   now,
		stageStart:  now,
		showSpinner: cfg.ShowSpinner && !cfg.IsCI,
		stopChan:    make(chan struct{}),
		isCI:        cfg.IsCI,
		now:         time.Now,
	}
}

// Start begins the spinner animation, if enabled.
func (p *Indicator) Start() {
	if p.showSpinner {
		go p.spinnerLoop()
	}
}

// Stop ends the animation and clears the status line. Safe to call twice.
func (p *Indicator) Stop() {
	p.stopOnce.Do(func() {
		if p.showSpinner {
			close(p.stopChan)
			p.mu.Lock()
			fmt.Fprintf(p.writer, "\r%s\r", strings.Repeat(" ", 80))
			p.mu.Unlock()
		}
	})
}

func (p *Indicator) spinnerLoop() {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopChan:
			return
		case <-ticker.C:
			p.mu.Lock()
			if p.current != nil {
				fmt.Fprint(p.writer, "\r"+p.statusLine())
			}
			p.spinnerIdx = (p.spinnerIdx + 1) % len(spinnerFrames)
			p.mu.Unlock()
		}
	}
}

// Update records a snapshot. It has the signature of the wizard's progress
// observer. In CI mode every stage change and completion is printed on its
// own line.
func (p *Indicator) Update(snap dataimport.Progress) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.current == nil || p.current.Stage != snap.Stage {
		p.stageStart = p.now()
	}
	prev := p.current
	p.current = &snap

	switch {
	case p.isCI:
		if prev == nil || prev.Stage != snap.Stage || snap.Percent == 100 {
			fmt.Fprintln(p.writer, p.plainLine())
		}
	case !p.showSpinner:
		fmt.Fprint(p.writer, "\r"+p.statusLine())
		if snap.Percent == 100 {
			fmt.Fprintln(p.writer)
		}
	}
}

// Current returns the last snapshot, if any.
func (p *Indicator) Current() (dataimport.Progress, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return dataimport.Progress{}, false
	}
	return *p.current, true
}

func (p *Indicator) statusLine() string {
	snap := p.current
	barWidth := 30
	filled := barWidth * clamp(snap.Percent) / 100
	bar := strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled)

	prefix := ""
	if p.showSpinner {
		prefix = spinnerFrames[p.spinnerIdx] + " "
	}
	line := fmt.Sprintf("%s[%s] %3d%% %-10s | %s", prefix, bar, clamp(snap.Percent), snap.Stage,
		formatDuration(p.now().Sub(p.stageStart)))
	if snap.Message != "" {
		line += " | " + snap.Message
	}
	return line
}

func (p *Indicator) plainLine() string {
	snap := p.current
	symbol := "▶"
	if snap.Percent >= 100 {
		symbol = "✓"
	}
	line := fmt.Sprintf("%s %s [%d%%]", symbol, snap.Stage, clamp(snap.Percent))
	if snap.Message != "" {
		line += " - " + snap.Message
	}
	return line
}

// PrintSummary prints the outcome of a validation or import run.
func (p *Indicator) PrintSummary(res *dataimport.ImportResult) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if res == nil {
		return
	}

	fmt.Fprintln(p.writer, "═══════════════════════════════════════════════════════════")
	fmt.Fprintln(p.writer, "Import Summary")
	fmt.Fprintln(p.writer, "═══════════════════════════════════════════════════════════")
	fmt.Fprintf(p.writer, "Status:          %s\n", res.Status)
	fmt.Fprintf(p.writer, "Total Rows:      %d\n", res.TotalRows)
	fmt.Fprintf(p.writer, "Valid Rows:      %d ✓\n", res.ValidRows)
	fmt.Fprintf(p.writer, "Invalid Rows:    %d ✗\n", res.InvalidRows)
	if res.ImportedRows > 0 || res.Status == dataimport.StatusCompleted {
		fmt.Fprintf(p.writer, "Imported Rows:   %d\n", res.ImportedRows)
	}
	if res.Duration > 0 {
		fmt.Fprintf(p.writer, "Duration:        %s\n", formatDuration(time.Duration(res.Duration)*time.Millisecond))
	}
	fmt.Fprintln(p.writer, "═══════════════════════════════════════════════════════════")

	if len(res.Errors) == 0 {
		return
	}
	fmt.Fprintln(p.writer)
	fmt.Fprintln(p.writer, "Errors:")
	for i, e := range res.Errors {
		if i == MaxListedErrors {
			fmt.Fprintf(p.writer, "  ... and %d more\n", len(res.Errors)-MaxListedErrors)
			break
		}
		fmt.Fprintf(p.writer, "  ✗ row %d", e.Row)
		if e.Column != "" {
			fmt.Fprintf(p.writer, " [%s]", e.Column)
		}
		fmt.Fprintf(p.writer, " - %s\n", e.Error)
	}
}

func clamp(pct int) int {
	return max(0, min(100, pct))
}

// formatDuration formats a duration for display
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh%dm%ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm%ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
