package reporting

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/acarl005/stripansi"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"
)

// Style identifies the role of a piece of reporter output
type Style int

const (
	StyleNone Style = iota
	StylePass
	StyleUpdated
	StyleFail
	StyleCommand
	StyleLabel
)

// Printer decides how reporter output is decorated
type Printer interface {
	Sprint(style Style, s string) string
	Diff(diff string) string
	Colored() bool
}

// ColorMode selects between the colored and plain printers
type ColorMode string

const (
	ColorAuto   ColorMode = "auto"
	ColorAlways ColorMode = "always"
	ColorNever  ColorMode = "never"
)

// ParseColorMode validates a --color value
func ParseColorMode(s string) (ColorMode, error) {
	switch m := ColorMode(strings.ToLower(s)); m {
	case ColorAuto, ColorAlways, ColorNever:
		return m, nil
	case "":
		return ColorAuto, nil
	default:
		return "", fmt.Errorf("invalid color mode %q: must be one of auto, always, never", s)
	}
}

// NewPrinter picks a printer for the given mode. In auto mode colors are used
// only when out is a terminal and NO_COLOR is unset.
func NewPrinter(mode ColorMode, out io.Writer) Printer {
	switch mode {
	case ColorAlways:
		text.EnableColors()
		return NewColorPrinter()
	case ColorNever:
		return NewPlainPrinter()
	}
	if _, noColor := os.LookupEnv("NO_COLOR"); noColor || !isTerminal(out) {
		return NewPlainPrinter()
	}
	return NewColorPrinter()
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok || f == nil {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// ColorPrinter decorates output with ANSI colors via go-pretty
type ColorPrinter struct {
	styles map[Style]text.Colors
}

func NewColorPrinter() *ColorPrinter {
	return &ColorPrinter{
		styles: map[Style]text.Colors{
			StylePass:    {text.FgGreen},
			StyleUpdated: {text.FgYellow},
			StyleFail:    {text.FgRed},
			StyleCommand: {text.FgCyan},
			StyleLabel:   {text.Bold},
		},
	}
}

func (p *ColorPrinter) Sprint(style Style, s string) string {
	if colors, ok := p.styles[style]; ok {
		return colors.Sprint(s)
	}
	return s
}

// Diff colors removed lines red, added lines green and hunk headers cyan
func (p *ColorPrinter) Diff(diff string) string {
	if diff == "" {
		return ""
	}
	lines := strings.SplitAfter(diff, "\n")
	var b strings.Builder
	for _, line := range lines {
		if line == "" {
			continue
		}
		body := strings.TrimSuffix(line, "\n")
		nl := line[len(body):]
		switch {
		case strings.HasPrefix(body, "+++"), strings.HasPrefix(body, "---"):
			b.WriteString(text.Bold.Sprint(body))
		case strings.HasPrefix(body, "@@"):
			b.WriteString(text.FgCyan.Sprint(body))
		case strings.HasPrefix(body, "+"):
			b.WriteString(text.FgGreen.Sprint(body))
		case strings.HasPrefix(body, "-"):
			b.WriteString(text.FgRed.Sprint(body))
		default:
			b.WriteString(body)
		}
		b.WriteString(nl)
	}
	return b.String()
}

func (p *ColorPrinter) Colored() bool {
	return true
}

// PlainPrinter emits undecorated text. Harness labels lose any escape codes,
// but captured tool output (StyleNone) and diffs pass through verbatim since
// escape codes may be what a snapshot differs by.
type PlainPrinter struct{}

func NewPlainPrinter() *PlainPrinter {
	return &PlainPrinter{}
}

func (p *PlainPrinter) Sprint(style Style, s string) string {
	if style == StyleNone {
		return s
	}
	return stripansi.Strip(s)
}

func (p *PlainPrinter) Diff(diff string) string {
	return diff
}

func (p *PlainPrinter) Colored() bool {
	return false
}
