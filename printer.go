package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"voicekey/trigger"
)

var (
	beginStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	finishStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	cancelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	titleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("246")).Bold(true)
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("239"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
)

// printer renders actions for the console. Styling is dropped when the
// output is not a terminal so piped output stays greppable.
type printer struct {
	w      io.Writer
	styled bool
	begun  map[string]time.Time
}

func newPrinter(f *os.File) *printer {
	return &printer{
		w:      f,
		styled: term.IsTerminal(int(f.Fd())),
		begun:  make(map[string]time.Time),
	}
}

func (p *printer) render(s lipgloss.Style, text string) string {
	if !p.styled {
		return text
	}
	return s.Render(text)
}

func (p *printer) banner(backend string, tasks []*trigger.Task) {
	fmt.Fprintln(p.w, p.render(titleStyle, fmt.Sprintf("voicekey %s [%s]", version, backend)))
	for _, t := range tasks {
		fmt.Fprintln(p.w, p.render(dimStyle, "  "+t.Definition().String()))
	}
}

func (p *printer) warn(format string, args ...any) {
	fmt.Fprintln(p.w, p.render(warnStyle, fmt.Sprintf(format, args...)))
}

// action prints one begin or finish. A begin whose capture is later
// cancelled is reported when the cancellation is seen.
func (p *printer) action(a trigger.Action) {
	clock := a.Time.Format("15:04:05.000")
	switch a.Type {
	case trigger.Begin:
		p.begun[a.Key] = a.Time
		fmt.Fprintf(p.w, "%s %s\n", clock, p.render(beginStyle, "● "+a.Key+" recording"))
	case trigger.Finish:
		held := ""
		if at, ok := p.begun[a.Key]; ok {
			held = fmt.Sprintf(" (%.2fs)", a.Time.Sub(at).Seconds())
			delete(p.begun, a.Key)
		}
		fmt.Fprintf(p.w, "%s %s\n", clock, p.render(finishStyle, "■ "+a.Key+" done"+held))
	}
}

func (p *printer) cancelled(key string) {
	delete(p.begun, key)
	fmt.Fprintf(p.w, "%s %s\n", time.Now().Format("15:04:05.000"), p.render(cancelStyle, "○ "+key+" too short, dropped"))
}
