package transcript

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/chandana-solix/healthcare-ai-multiagent-system/pkg/blackboard"
)

// FormatTable writes log entries as a formatted table to the provided writer.
// The table includes columns: SEQ, TYPE, SENDER, TOPIC, PRI, AGE, and PAYLOAD
// (truncated). Returns the number of entries formatted.
func FormatTable(w io.Writer, entries []*blackboard.Message, sessionName string) int {
	if len(entries) == 0 {
		fmt.Fprintf(w, "No messages found for session '%s'\n", sessionName)
		return 0
	}

	fmt.Fprintf(w, "Transcript for session '%s':\n\n", sessionName)

	fmt.Fprintf(w, "%-5s %-10s %-18s %-28s %-8s %-8s %s\n",
		"SEQ", "TYPE", "SENDER", "TOPIC", "PRI", "AGE", "PAYLOAD")
	fmt.Fprintf(w, "%-5s %-10s %-18s %-28s %-8s %-8s %s\n",
		"-----", "----------", "------------------", "----------------------------", "--------", "--------", "----------------------------------------")

	for _, m := range entries {
		fmt.Fprintf(w, "%-5d %-10s %-18s %-28s %-8s %-8s %s\n",
			m.Sequence,
			m.Type,
			formatSender(m.Sender),
			formatTopic(m.Topic),
			m.Priority,
			formatTimestamp(m.Timestamp),
			formatPayload(m.Payload),
		)
	}

	countMsg := "message"
	if len(entries) != 1 {
		countMsg = "messages"
	}
	fmt.Fprintf(w, "\n%d %s found\n", len(entries), countMsg)

	return len(entries)
}

// FormatJSONL writes log entries as line-delimited JSON (JSONL) to the provided
// writer. Each message is written as a single JSON object on its own line.
// This format is ideal for streaming and processing with tools like jq.
func FormatJSONL(w io.Writer, entries []*blackboard.Message) error {
	for _, m := range entries {
		data, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("failed to marshal message to JSON: %w", err)
		}

		_, err = fmt.Fprintf(w, "%s\n", string(data))
		if err != nil {
			return fmt.Errorf("failed to write JSONL output: %w", err)
		}
	}

	return nil
}

// formatSender truncates sender names for compact display.
func formatSender(sender string) string {
	if sender == "" {
		return "-"
	}
	if len(sender) > 18 {
		return sender[:15] + "..."
	}
	return sender
}

// formatTopic truncates long topics for table display. Empty topics return "-".
func formatTopic(topic string) string {
	if topic == "" {
		return "-"
	}
	if len(topic) > 28 {
		return topic[:25] + "..."
	}
	return topic
}

// formatPayload renders payload keys as "k=v" pairs, sorted by key, truncated
// to 40 characters for table display. Empty payloads return "-".
func formatPayload(payload map[string]any) string {
	if len(payload) == 0 {
		return "-"
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
	line := strings.Join(parts, " ")

	if len(line) > 40 {
		return line[:37] + "..."
	}
	return line
}

// formatTimestamp formats a message timestamp as relative time like
// "2m ago", "1h ago", etc.
func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return "-"
	}

	diff := time.Since(t)

	if diff < time.Minute {
		return fmt.Sprintf("%ds ago", int(diff.Seconds()))
	} else if diff < time.Hour {
		return fmt.Sprintf("%dm ago", int(diff.Minutes()))
	} else if diff < 24*time.Hour {
		return fmt.Sprintf("%dh ago", int(diff.Hours()))
	}
	return fmt.Sprintf("%dd ago", int(diff.Hours()/24))
}
