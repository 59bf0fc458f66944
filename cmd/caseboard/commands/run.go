package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/chandana-solix/healthcare-ai-multiagent-system/internal/config"
	"github.com/chandana-solix/healthcare-ai-multiagent-system/internal/printer"
	"github.com/chandana-solix/healthcare-ai-multiagent-system/internal/scenario"
	"github.com/chandana-solix/healthcare-ai-multiagent-system/internal/transcript"
	"github.com/chandana-solix/healthcare-ai-multiagent-system/pkg/blackboard"
)

var (
	runConfigPath   string
	runSessionName  string
	runRedisAddr    string
	runOutputFormat string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the scripted analysis session",
	Long: `Run the scripted multi-agent analysis of a canned patient case.

Loads the session configuration, opens a blackboard session, and drives
the scripted agents through findings, questions, opinions and alerts.
The full conversation transcript is printed when the run completes.

With --redis, every message is also forwarded to the session's Redis
transcript channel so 'caseboard watch' can follow the run live from
another terminal.

Output Formats:
  default - Human-readable transcript with priority coloring
  table   - Plain aligned table, one row per message
  json    - Line-delimited JSON for programmatic processing

Examples:
  # Run with the default config
  caseboard run

  # Run a named session and forward to Redis
  caseboard run --session case-042 --redis localhost:6379

  # Export the transcript as JSONL
  caseboard run --output=json > transcript.jsonl`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVarP(&runConfigPath, "config", "c", "caseboard.yml", "Path to session configuration file")
	runCmd.Flags().StringVarP(&runSessionName, "session", "n", "case-001", "Session name")
	runCmd.Flags().StringVar(&runRedisAddr, "redis", "", "Redis address for live transcript forwarding (optional)")
	runCmd.Flags().StringVarP(&runOutputFormat, "output", "o", "default", "Output format (default, table or json)")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	switch runOutputFormat {
	case "default", "table", "json":
	default:
		return printer.Error(
			"invalid output format",
			fmt.Sprintf("Unknown format: %s", runOutputFormat),
			[]string{"Valid formats: default, table, json"},
		)
	}

	// Phase 1: load configuration
	cfg, err := config.Load(runConfigPath)
	if err != nil {
		return printer.Error(
			"failed to load configuration",
			fmt.Sprintf("Error: %v", err),
			[]string{fmt.Sprintf("Check that '%s' exists and is valid YAML", runConfigPath)},
		)
	}

	sessionCfg, err := cfg.SessionConfig(runSessionName)
	if err != nil {
		return fmt.Errorf("invalid session configuration: %w", err)
	}

	// Phase 2: open the session
	session, err := blackboard.NewSession(sessionCfg)
	if err != nil {
		return fmt.Errorf("failed to open session: %w", err)
	}
	defer session.Close()

	// Phase 3: optional Redis forwarding
	var forwarder *transcript.Forwarder
	if runRedisAddr != "" {
		forwarder, err = transcript.NewForwarder(session, &redis.Options{Addr: runRedisAddr})
		if err != nil {
			return fmt.Errorf("failed to attach transcript forwarder: %w", err)
		}
		defer forwarder.Close()

		if err := forwarder.Ping(ctx); err != nil {
			return printer.Error(
				"cannot reach Redis",
				fmt.Sprintf("Error: %v", err),
				[]string{fmt.Sprintf("Check that Redis is running at %s", runRedisAddr)},
			)
		}

		forwarder.Start(ctx)
	}

	// Phase 4: drive the scripted case
	printer.Info("Running session '%s'...", runSessionName)
	result, err := scenario.Run(session)
	if err != nil {
		return fmt.Errorf("session run failed: %w", err)
	}

	if forwarder != nil {
		if err := forwarder.Flush(ctx); err != nil {
			printer.Warning("Some transcript events were not forwarded: %v", err)
		}
	}

	// Phase 5: render the transcript
	entries := session.Log().Snapshot()
	switch runOutputFormat {
	case "json":
		return transcript.FormatJSONL(os.Stdout, entries)
	case "table":
		transcript.FormatTable(os.Stdout, entries, runSessionName)
		return nil
	}

	fmt.Println()
	for _, m := range entries {
		fmt.Println(printer.TranscriptLine(m))
	}
	fmt.Println()

	printer.Consensus(scenario.TopicDiagnosis, result.Diagnosis.Stance, result.Diagnosis.Supporting)
	printer.Consensus(scenario.TopicDisposition, result.Disposition.Stance, result.Disposition.Supporting)

	printer.Success("Session '%s' complete: %d messages, %d critical alerts",
		runSessionName, session.Log().Len(), len(session.Log().CriticalAlerts()))
	return nil
}
