package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/muesli/termenv"
)

// EnvStyle selects the console style: "pretty" or "plain".
const EnvStyle = "MDPIPE_LOG_STYLE"

type Style string

const (
	StylePretty Style = "pretty"
	StylePlain  Style = "plain"
)

type Options struct {
	// Level is one of debug, info, warn, error, fatal. Anything else means info.
	Level string
	// Style is used when EnvStyle is unset or unrecognised.
	Style Style
	// ForceStyle makes a recognised Style win over EnvStyle.
	ForceStyle bool
	Prefix     string
	// Output defaults to os.Stderr.
	Output io.Writer
	// Color forces true-color output on pretty loggers.
	Color bool
}

// New builds a logger. Pretty loggers use the text formatter with
// timestamps; plain loggers emit logfmt.
func New(opts Options) *log.Logger {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	style := ResolveStyle(opts.Style)
	if s, ok := parseStyle(string(opts.Style)); ok && opts.ForceStyle {
		style = s
	}

	l := log.NewWithOptions(out, log.Options{
		Level:           ParseLevel(opts.Level),
		Prefix:          opts.Prefix,
		ReportTimestamp: true,
		TimeFormat:      "15:04:05",
	})
	if style == StylePlain {
		l.SetFormatter(log.LogfmtFormatter)
		l.SetTimeFormat("2006-01-02T15:04:05Z07:00")
		return l
	}
	if opts.Color {
		l.SetColorProfile(termenv.TrueColor)
	}
	l.SetStyles(styles())
	return l
}

func styles() *log.Styles {
	s := log.DefaultStyles()
	s.Levels[log.DebugLevel] = s.Levels[log.DebugLevel].Foreground(lipgloss.Color("69")).Bold(true)
	s.Levels[log.InfoLevel] = s.Levels[log.InfoLevel].Foreground(lipgloss.Color("86")).Bold(true)
	s.Levels[log.WarnLevel] = s.Levels[log.WarnLevel].Foreground(lipgloss.Color("220")).Bold(true)
	s.Levels[log.ErrorLevel] = s.Levels[log.ErrorLevel].Foreground(lipgloss.Color("196")).Bold(true)
	s.Prefix = s.Prefix.Foreground(lipgloss.Color("245")).Bold(true)
	s.Key = s.Key.Foreground(lipgloss.Color("244"))
	return s
}

// ResolveStyle applies EnvStyle over def. An empty def means pretty.
func ResolveStyle(def Style) Style {
	if s, ok := parseStyle(os.Getenv(EnvStyle)); ok {
		return s
	}
	if s, _ := parseStyle(string(def)); s == StylePlain {
		return StylePlain
	}
	return StylePretty
}

func parseStyle(s string) (Style, bool) {
	switch Style(strings.ToLower(strings.TrimSpace(s))) {
	case StylePretty:
		return StylePretty, true
	case StylePlain:
		return StylePlain, true
	}
	return "", false
}

func ParseLevel(s string) log.Level {
	lvl, err := log.ParseLevel(strings.ToLower(strings.TrimSpace(s)))
	if err != nil {
		return log.InfoLevel
	}
	return lvl
}

// WithFile builds a logger like New that also appends plain records to
// path. Parent directories are created. The returned closer releases the
// file.
func WithFile(opts Options, path string) (*log.Logger, io.Closer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, nil, fmt.Errorf("log file: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("log file: %w", err)
	}
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	opts.Output = io.MultiWriter(out, f)
	opts.Color = false
	return New(opts), f, nil
}

// Discard returns a logger that drops everything.
func Discard() *log.Logger {
	return log.New(io.Discard)
}

// OrDiscard returns l, or a discarding logger when l is nil.
func OrDiscard(l *log.Logger) *log.Logger {
	if l == nil {
		return Discard()
	}
	return l
}
