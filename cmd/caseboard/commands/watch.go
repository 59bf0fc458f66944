package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/chandana-solix/healthcare-ai-multiagent-system/internal/printer"
	"github.com/chandana-solix/healthcare-ai-multiagent-system/internal/transcript"
)

var (
	watchSessionName  string
	watchRedisAddr    string
	watchOutputFormat string
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow a session's transcript live",
	Long: `Follow a running session's transcript over Redis.

Connects to the session's transcript channel and renders each message as
it is published. Run 'caseboard run --redis <addr>' in another terminal
to produce the stream.

Redis Pub/Sub is at-most-once: watch shows messages published after it
attaches. The complete transcript is always available from the run
itself.

Output Formats:
  default - Human-readable output with priority coloring
  json    - Line-delimited JSON for programmatic processing

Examples:
  # Watch the default session
  caseboard watch

  # Watch a named session as JSON
  caseboard watch --session case-042 --output=json`,
	RunE: runWatchCmd,
}

func init() {
	watchCmd.Flags().StringVarP(&watchSessionName, "session", "n", "case-001", "Session name to watch")
	watchCmd.Flags().StringVar(&watchRedisAddr, "redis", "localhost:6379", "Redis address")
	watchCmd.Flags().StringVarP(&watchOutputFormat, "output", "o", "default", "Output format (default or json)")
	rootCmd.AddCommand(watchCmd)
}

func runWatchCmd(cmd *cobra.Command, args []string) error {
	if watchOutputFormat != "default" && watchOutputFormat != "json" {
		return printer.Error(
			"invalid output format",
			fmt.Sprintf("Unknown format: %s", watchOutputFormat),
			[]string{"Valid formats: default, json"},
		)
	}

	// Stop on Ctrl+C
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rdb := redis.NewClient(&redis.Options{Addr: watchRedisAddr})
	defer rdb.Close()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return printer.Error(
			"cannot reach Redis",
			fmt.Sprintf("Error: %v", err),
			[]string{fmt.Sprintf("Check that Redis is running at %s", watchRedisAddr)},
		)
	}

	sub, err := transcript.Tail(ctx, rdb, watchSessionName)
	if err != nil {
		return fmt.Errorf("failed to tail session: %w", err)
	}
	defer sub.Close()

	if watchOutputFormat == "default" {
		printer.Info("Watching session '%s' (Ctrl+C to stop)...", watchSessionName)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-sub.Errors():
			if !ok {
				return nil
			}
			printer.Warning("Skipped malformed event: %v", err)
		case m, ok := <-sub.Events():
			if !ok {
				return nil
			}
			if watchOutputFormat == "json" {
				data, err := json.Marshal(m)
				if err != nil {
					printer.Warning("Skipped event seq=%d: %v", m.Sequence, err)
					continue
				}
				fmt.Println(string(data))
			} else {
				fmt.Println(printer.TranscriptLine(m))
			}
		}
	}
}
