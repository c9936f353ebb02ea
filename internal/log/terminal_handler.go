package log

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"
)

// palette holds the escape sequences used when rendering a record. The plain
// palette is all empty strings.
type palette struct {
	reset, dim, bold string
	debug, info      string
	warn, err        string
}

var (
	colorPalette = palette{
		reset: "\033[0m",
		dim:   "\033[2m",
		bold:  "\033[1m",
		debug: "\033[36m",
		info:  "\033[32m",
		warn:  "\033[33m",
		err:   "\033[31m",
	}
	plainPalette = palette{}
)

// vectorPreview is how many leading components of a float slice are printed.
const vectorPreview = 4

// TerminalHandler formats log records for a human reading a terminal.
//
// Output format:
//
//	15:04:05.000 INF index built entries=17321 dim=512
type TerminalHandler struct {
	writer io.Writer
	level  slog.Leveler
	colors palette
	attrs  []slog.Attr
	groups []string
	mu     *sync.Mutex
}

func newTerminalHandler(w io.Writer, opts *slog.HandlerOptions, color bool) *TerminalHandler {
	var level slog.Leveler = slog.LevelInfo
	if opts != nil && opts.Level != nil {
		level = opts.Level
	}
	colors := plainPalette
	if color {
		colors = colorPalette
	}
	return &TerminalHandler{
		writer: w,
		level:  level,
		colors: colors,
		mu:     &sync.Mutex{},
	}
}

// Enabled reports whether the handler handles records at the given level.
func (h *TerminalHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

// Handle renders a record as a single line and writes it.
func (h *TerminalHandler) Handle(_ context.Context, r slog.Record) error {
	var buf bytes.Buffer
	buf.Grow(256)
	p := h.colors

	ts := r.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	buf.WriteString(p.dim + ts.Format("15:04:05.000") + p.reset + " ")

	color, label := p.level(r.Level)
	buf.WriteString(color + label + p.reset + " ")
	buf.WriteString(p.bold + r.Message + p.reset)

	for _, a := range h.attrs {
		h.appendAttr(&buf, a, h.groups)
	}
	r.Attrs(func(a slog.Attr) bool {
		h.appendAttr(&buf, a, h.groups)
		return true
	})
	buf.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.writer.Write(buf.Bytes())
	return err
}

// WithAttrs returns a handler that also renders attrs on every record.
func (h *TerminalHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)
	return &clone
}

// WithGroup returns a handler that prefixes subsequent keys with name.
func (h *TerminalHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.groups = append(append([]string{}, h.groups...), name)
	return &clone
}

func (p palette) level(level slog.Level) (string, string) {
	switch {
	case level < slog.LevelInfo:
		return p.debug, "DBG"
	case level < slog.LevelWarn:
		return p.info, "INF"
	case level < slog.LevelError:
		return p.warn, "WRN"
	default:
		return p.err, "ERR"
	}
}

func (h *TerminalHandler) appendAttr(buf *bytes.Buffer, a slog.Attr, groups []string) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}

	if a.Value.Kind() == slog.KindGroup {
		prefix := groups
		if a.Key != "" {
			prefix = append(append([]string{}, groups...), a.Key)
		}
		for _, ga := range a.Value.Group() {
			h.appendAttr(buf, ga, prefix)
		}
		return
	}

	buf.WriteByte(' ')
	buf.WriteString(h.colors.dim)
	for _, g := range groups {
		buf.WriteString(g)
		buf.WriteByte('.')
	}
	buf.WriteString(a.Key)
	buf.WriteByte('=')
	buf.WriteString(h.colors.reset)
	buf.WriteString(formatAttrValue(a.Value))
}

func formatAttrValue(v slog.Value) string {
	switch v.Kind() {
	case slog.KindString:
		s := v.String()
		if s == "" || strings.ContainsAny(s, " \t\n\"\\") {
			return strconv.Quote(s)
		}
		return s
	case slog.KindAny:
		switch vec := v.Any().(type) {
		case []float32:
			return formatVector(vec)
		case []float64:
			converted := make([]float32, len(vec))
			for i, x := range vec {
				converted[i] = float32(x)
			}
			return formatVector(converted)
		}
	}
	return v.String()
}

// formatVector prints the first few components and the dimension so an
// embedding does not flood a log line.
func formatVector(vec []float32) string {
	n := min(len(vec), vectorPreview)
	parts := make([]string, 0, n+1)
	for _, x := range vec[:n] {
		parts = append(parts, strconv.FormatFloat(float64(x), 'f', 4, 32))
	}
	if len(vec) > n {
		parts = append(parts, "...")
	}
	return fmt.Sprintf("[%s](dim=%d)", strings.Join(parts, " "), len(vec))
}
