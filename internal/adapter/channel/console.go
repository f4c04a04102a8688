package channel

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/V4T54L/loanapp/internal/domain"
	"github.com/charmbracelet/lipgloss"
)

const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

var levelColors = map[domain.Level]string{
	domain.LevelError: "#dc2626",
	domain.LevelWarn:  "#d97706",
	domain.LevelInfo:  "#2563eb",
	domain.LevelDebug: "#7c3aed",
}

var levelEmoji = map[domain.Level]string{
	domain.LevelError: "🚨",
	domain.LevelWarn:  "⚠️",
	domain.LevelInfo:  "ℹ️",
	domain.LevelDebug: "🐛",
}

// Console writes grouped, colour-coded error reports for developers. Each
// report is written with a single Write call.
type Console struct {
	mu       sync.Mutex
	w        io.Writer
	renderer *lipgloss.Renderer
}

// NewConsole creates a console channel. Colours are dropped automatically
// when w is not a terminal.
func NewConsole(w io.Writer) *Console {
	return &Console{w: w, renderer: lipgloss.NewRenderer(w)}
}

// Write renders one record.
func (c *Console) Write(record domain.ErrorRecord) error {
	var b strings.Builder

	fmt.Fprintf(&b, "%s %s - %s\n", emojiFor(record.Level), strings.ToUpper(string(record.Level)), record.Timestamp.UTC().Format(timestampLayout))

	msgStyle := c.renderer.NewStyle().Bold(true).Foreground(lipgloss.Color(colorFor(record.Level)))
	fmt.Fprintf(&b, "  %s\n", msgStyle.Render(record.Message))

	if record.Stack != nil {
		fmt.Fprintf(&b, "  Stack Trace: %s\n", indent(*record.Stack))
	}
	if record.Context.Component != domain.UnknownValue {
		fmt.Fprintf(&b, "  Component: %s\n", record.Context.Component)
	}
	if record.Context.Action != domain.UnknownValue {
		fmt.Fprintf(&b, "  Action: %s\n", record.Context.Action)
	}

	ctxJSON, err := json.Marshal(record.Context)
	if err != nil {
		return fmt.Errorf("failed to marshal record context: %w", err)
	}
	fmt.Fprintf(&b, "  Context: %s\n", ctxJSON)

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := io.WriteString(c.w, b.String()); err != nil {
		return fmt.Errorf("failed to write console report: %w", err)
	}
	return nil
}

func colorFor(level domain.Level) string {
	if c, ok := levelColors[level]; ok {
		return c
	}
	return "#374151"
}

func emojiFor(level domain.Level) string {
	if e, ok := levelEmoji[level]; ok {
		return e
	}
	return "📝"
}

func indent(s string) string {
	return strings.ReplaceAll(s, "\n", "\n    ")
}
