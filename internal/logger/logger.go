// Package logger provides structured logging for the postsmith service and CLI.
//
// Development output is a colored one-line format; production and the
// rotating log file get JSON. Anything that looks like an Anthropic API key is
// masked before it reaches either.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	formatJSON   = "json"
	formatPretty = "pretty"

	keyPrefix = "sk-ant-"
	redacted  = "[redacted]"
)

// secretKeys are attribute keys whose values are never logged.
var secretKeys = []string{"api_key", "apikey", "x-api-key", "authorization", "credential"}

// Logger is a slog.Logger that may own a rotating file.
type Logger struct {
	*slog.Logger
	closer io.Closer
}

// FileConfig enables a rotating log file next to the console output.
type FileConfig struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// Config holds logger configuration.
type Config struct {
	Writer      io.Writer
	Format      string
	Environment string
	Level       slog.Level
	AddSource   bool
	File        FileConfig
}

// New builds a logger. Format defaults to JSON in production and pretty elsewhere.
func New(cfg Config) *Logger {
	w := cfg.Writer
	if w == nil {
		w = os.Stdout
	}
	format := cfg.Format
	if format == "" {
		format = formatPretty
		if cfg.Environment == "production" {
			format = formatJSON
		}
	}

	opts := &slog.HandlerOptions{
		Level:       cfg.Level,
		AddSource:   cfg.AddSource,
		ReplaceAttr: replaceAttr,
	}

	var console slog.Handler = slog.NewJSONHandler(w, opts)
	if format == formatPretty {
		console = NewPrettyHandler(w, opts)
	}

	if cfg.File.Path == "" {
		return &Logger{Logger: slog.New(console)}
	}

	rotator := &lumberjack.Logger{
		Filename:   cfg.File.Path,
		MaxSize:    orDefault(cfg.File.MaxSizeMB, 50),
		MaxBackups: orDefault(cfg.File.MaxBackups, 5),
		MaxAge:     orDefault(cfg.File.MaxAgeDays, 28),
		Compress:   true,
	}
	return &Logger{
		Logger: slog.New(fanout{console, slog.NewJSONHandler(rotator, opts)}),
		closer: rotator,
	}
}

// Close releases the rotating file, if any.
func (l *Logger) Close() error {
	if l.closer == nil {
		return nil
	}
	return l.closer.Close()
}

// ParseLevel converts a level name to slog.Level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

func replaceAttr(_ []string, a slog.Attr) slog.Attr {
	switch {
	case a.Key == slog.SourceKey:
		if src, ok := a.Value.Any().(*slog.Source); ok {
			src.File = filepath.Base(src.File)
		}
	case slices.Contains(secretKeys, strings.ToLower(a.Key)):
		a.Value = slog.StringValue(redacted)
	case a.Value.Kind() == slog.KindString:
		a.Value = slog.StringValue(maskKeys(a.Value.String()))
	}
	return a
}

// maskKeys keeps only the last four characters of any API key found in s.
func maskKeys(s string) string {
	i := strings.Index(s, keyPrefix)
	if i < 0 {
		return s
	}
	end := i + len(keyPrefix)
	for end < len(s) && !strings.ContainsRune(" \t\n\"',;", rune(s[end])) {
		end++
	}
	secret := s[i:end]
	tail := ""
	if len(secret) > len(keyPrefix)+4 {
		tail = secret[len(secret)-4:]
	}
	return s[:i] + keyPrefix + "…" + tail + maskKeys(s[end:])
}

// fanout sends each record to every handler that accepts it.
type fanout []slog.Handler

func (f fanout) Enabled(ctx context.Context, level slog.Level) bool {
	return slices.ContainsFunc(f, func(h slog.Handler) bool { return h.Enabled(ctx, level) })
}

func (f fanout) Handle(ctx context.Context, r slog.Record) error {
	var first error
	for _, h := range f {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (f fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (f fanout) WithGroup(name string) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithGroup(name)
	}
	return out
}

type prettyStyles struct {
	time, source, msg, attrs lipgloss.Style
	levels                   map[slog.Level]lipgloss.Style
	other                    lipgloss.Style
}

func newPrettyStyles(r *lipgloss.Renderer) prettyStyles {
	fg := func(c string) lipgloss.Style { return r.NewStyle().Foreground(lipgloss.Color(c)) }
	return prettyStyles{
		time:   r.NewStyle().Faint(true),
		source: r.NewStyle().Faint(true),
		msg:    r.NewStyle().Bold(true),
		attrs:  fg("6"),
		levels: map[slog.Level]lipgloss.Style{
			slog.LevelDebug: fg("5"),
			slog.LevelInfo:  fg("2"),
			slog.LevelWarn:  fg("3"),
			slog.LevelError: fg("1"),
		},
		other: fg("7"),
	}
}

func (s prettyStyles) level(l slog.Level) lipgloss.Style {
	if st, ok := s.levels[l]; ok {
		return st
	}
	return s.other
}

// PrettyHandler writes one colored line per record:
//
//	15:04:05 INF [file.go:12] message key=value ...
//
// Colors are dropped when the writer is not a terminal.
type PrettyHandler struct {
	opts   *slog.HandlerOptions
	mu     *sync.Mutex
	w      io.Writer
	styles prettyStyles
	attrs  []slog.Attr
	prefix string
}

// NewPrettyHandler creates a PrettyHandler writing to w.
func NewPrettyHandler(w io.Writer, opts *slog.HandlerOptions) *PrettyHandler {
	if opts == nil {
		opts = &slog.HandlerOptions{}
	}
	return &PrettyHandler{
		opts:   opts,
		mu:     &sync.Mutex{},
		w:      w,
		styles: newPrettyStyles(lipgloss.NewRenderer(w)),
	}
}

func (h *PrettyHandler) Enabled(_ context.Context, level slog.Level) bool {
	threshold := slog.LevelInfo
	if h.opts.Level != nil {
		threshold = h.opts.Level.Level()
	}
	return level >= threshold
}

func (h *PrettyHandler) Handle(_ context.Context, r slog.Record) error {
	var b strings.Builder
	b.WriteString(h.styles.time.Render(r.Time.Format("15:04:05")))
	b.WriteByte(' ')
	b.WriteString(h.styles.level(r.Level).Render(levelLabel(r.Level)))

	if h.opts.AddSource && r.PC != 0 {
		f, _ := runtime.CallersFrames([]uintptr{r.PC}).Next()
		b.WriteByte(' ')
		b.WriteString(h.styles.source.Render(fmt.Sprintf("%s:%d", filepath.Base(f.File), f.Line)))
	}

	b.WriteByte(' ')
	b.WriteString(h.styles.msg.Render(r.Message))

	pairs := make([]string, 0, len(h.attrs)+r.NumAttrs())
	for _, a := range h.attrs {
		pairs = h.appendAttr(pairs, "", a)
	}
	r.Attrs(func(a slog.Attr) bool {
		pairs = h.appendAttr(pairs, h.prefix, a)
		return true
	})
	if len(pairs) > 0 {
		b.WriteByte(' ')
		b.WriteString(h.styles.attrs.Render(strings.Join(pairs, " ")))
	}
	b.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, b.String())
	return err
}

// appendAttr flattens groups into dotted keys.
func (h *PrettyHandler) appendAttr(pairs []string, prefix string, a slog.Attr) []string {
	a.Value = a.Value.Resolve()
	if a.Value.Kind() == slog.KindGroup {
		inner := prefix
		if a.Key != "" {
			inner += a.Key + "."
		}
		for _, ga := range a.Value.Group() {
			pairs = h.appendAttr(pairs, inner, ga)
		}
		return pairs
	}
	if h.opts.ReplaceAttr != nil {
		a = h.opts.ReplaceAttr(nil, a)
	}
	if a.Equal(slog.Attr{}) {
		return pairs
	}
	return append(pairs, prefix+a.Key+"="+formatValue(a.Value))
}

func (h *PrettyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	c := *h
	c.attrs = slices.Clip(h.attrs)
	for _, a := range attrs {
		if h.prefix != "" {
			a = slog.Group(strings.TrimSuffix(h.prefix, "."), a)
		}
		c.attrs = append(c.attrs, a)
	}
	return &c
}

func (h *PrettyHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	c := *h
	c.prefix = h.prefix + name + "."
	return &c
}

func levelLabel(level slog.Level) string {
	switch level {
	case slog.LevelDebug:
		return "DBG"
	case slog.LevelInfo:
		return "INF"
	case slog.LevelWarn:
		return "WRN"
	case slog.LevelError:
		return "ERR"
	default:
		return level.String()
	}
}

func formatValue(v slog.Value) string {
	switch v.Kind() {
	case slog.KindTime:
		return v.Time().Format(time.RFC3339)
	case slog.KindDuration:
		return v.Duration().String()
	default:
		return v.String()
	}
}
