// Package printer provides colored terminal output for the caseboard CLI,
// including per-priority rendering of bus transcript lines.
package printer

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/fatih/color"

	"github.com/chandana-solix/healthcare-ai-multiagent-system/pkg/blackboard"
)

func init() {
	// Force color output even when not connected to TTY
	// Users can disable with NO_COLOR environment variable
	if os.Getenv("NO_COLOR") == "" {
		color.NoColor = false
	}
}

var (
	// Color definitions
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow)
	red    = color.New(color.FgRed, color.Bold)
	cyan   = color.New(color.FgCyan)
	dim    = color.New(color.Faint)
)

// Success prints a success message in green with a checkmark prefix
func Success(format string, a ...any) {
	msg := fmt.Sprintf(format, a...)
	if !strings.HasPrefix(msg, "✓") {
		green.Printf("✓ %s", msg)
	} else {
		green.Print(msg)
	}
}

// Info prints an informational message in the default color
func Info(format string, a ...any) {
	fmt.Printf(format, a...)
}

// Warning prints a warning message in yellow with a warning emoji prefix
func Warning(format string, a ...any) {
	msg := fmt.Sprintf(format, a...)
	if !strings.HasPrefix(msg, "⚠️") {
		yellow.Printf("⚠️  %s", msg)
	} else {
		yellow.Print(msg)
	}
}

// Error creates a formatted error message with title, explanation, and suggestions
// Prints the formatted error to stderr with colors and returns a simple error for Cobra
func Error(title string, explanation string, suggestions []string) error {
	// Print title in red to stderr
	red.Fprintf(os.Stderr, "%s\n\n", title)

	// Print explanation
	fmt.Fprintf(os.Stderr, "%s\n", explanation)

	// Print suggestions
	if len(suggestions) > 0 {
		fmt.Fprintf(os.Stderr, "\n")
		if len(suggestions) == 1 {
			fmt.Fprintf(os.Stderr, "%s\n", suggestions[0])
		} else {
			fmt.Fprintf(os.Stderr, "Either:\n")
			for i, suggestion := range suggestions {
				fmt.Fprintf(os.Stderr, "  %d. %s\n", i+1, suggestion)
			}
		}
	}

	// Return simple error for Cobra (won't be printed due to SilenceErrors)
	return fmt.Errorf("%s", title)
}

// TranscriptLine renders one bus message as a single colored transcript
// line: sequence, sender, type, topic, then a compact payload summary.
// Critical messages are marked with the alarm prefix the clinical teams
// are used to.
func TranscriptLine(m *blackboard.Message) string {
	line := fmt.Sprintf("#%03d %-18s %-9s %-32s %s",
		m.Sequence, m.Sender, m.Type, m.Topic, payloadSummary(m.Payload))

	switch m.Priority {
	case blackboard.PriorityCritical:
		return red.Sprintf("🚨 %s", line)
	case blackboard.PriorityHigh:
		return yellow.Sprint(line)
	case blackboard.PriorityLow:
		return dim.Sprint(line)
	default:
		return line
	}
}

// Consensus prints a resolved consensus banner in cyan.
func Consensus(topic, stance string, supporting []string) {
	cyan.Printf("🤝 CONSENSUS on %s: %s (supported by %s)\n",
		topic, stance, strings.Join(supporting, ", "))
}

// payloadSummary flattens a payload into "k=v" pairs, truncated so one
// message stays on one line.
func payloadSummary(payload map[string]any) string {
	if len(payload) == 0 {
		return ""
	}

	keys := make([]string, 0, len(payload))
	for k := range payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, payload[k]))
	}

	const maxLen = 80
	s := strings.Join(parts, " ")
	if len(s) > maxLen {
		s = s[:maxLen-3] + "..."
	}
	return s
}
