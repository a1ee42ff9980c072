package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"chatdump/internal/cache"
	"chatdump/internal/chatwoot"
	"chatdump/internal/extract"
	"chatdump/internal/sink"
	"chatdump/internal/store"
)

var (
	extractSince           string
	extractUntil           string
	extractWorkers         int
	extractOut             string
	extractFormat          string
	extractRefreshChannels bool
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract the full conversation history of the account",
	Long: `Extract every conversation and message of the configured account,
flatten them into one record per message and write the result to a file
or a local SQLite database.

Credential and conversation-list failures abort the run; a failure on a
single conversation's messages only drops that conversation and is
reported at the end.

Date filters:
  --since 2024-01-01     Only conversations on or after this date
  --until 2024-12-31     Only conversations before this date

Examples:
  chatdump extract
  chatdump extract --since 2024-01-01 --out q1.json
  chatdump extract --format csv --out history.csv
  chatdump extract --format sqlite`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate(); err != nil {
			return err
		}

		workers := cfg.Extract.MaxWorkers
		if extractWorkers > 0 {
			workers = extractWorkers
		}
		outPath := cfg.Output.Path
		if extractOut != "" {
			outPath = extractOut
		}
		format := cfg.Output.Format
		if extractFormat != "" {
			format = extractFormat
		}

		client := newClient()
		channels := extract.NewChannelCache(
			client,
			cache.NewFileStore[extract.ChannelMap](cfg.Cache.Dir),
			cfg.API.AccountID,
			cfg.CacheTTL(),
			logger,
		)

		pipeline := extract.NewPipeline(client, channels, extract.Options{
			Workers:         workers,
			Since:           extractSince,
			Until:           extractUntil,
			RefreshChannels: extractRefreshChannels,
		}, logger).WithProgress(newCLIProgress())

		start := time.Now()
		records, summary, err := pipeline.Run(cmd.Context())
		if err != nil {
			return err
		}

		if format == "sqlite" {
			if err := writeSQLite(records, summary); err != nil {
				return err
			}
			outPath = cfg.DatabasePath()
		} else {
			out, err := sink.ForPath(format, outPath)
			if err != nil {
				return err
			}
			if err := out.Write(records); err != nil {
				return fmt.Errorf("write output: %w", err)
			}
		}

		fmt.Printf("\nExtraction finished in %s\n", time.Since(start).Round(time.Millisecond))
		fmt.Printf("  Conversations: %d (%d failed)\n", summary.Conversations, summary.FailedConversations)
		fmt.Printf("  Messages:      %d (%d duplicates removed)\n", summary.MessagesFetched, summary.Duplicates)
		fmt.Printf("  Records:       %d\n", summary.Records)
		fmt.Printf("  Output:        %s\n", outPath)
		return nil
	},
}

// writeSQLite stores the records in the local SQLite database.
func writeSQLite(records []extract.Record, summary *extract.Summary) error {
	s, err := store.Open(cfg.DatabasePath())
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer s.Close()

	if err := s.InitSchema(); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}

	runID, err := s.StartRun(cfg.API.AccountID, extractSince, extractUntil)
	if err != nil {
		return err
	}
	if err := s.InsertRecords(runID, records); err != nil {
		return err
	}
	return s.CompleteRun(runID, summary)
}

// newClient builds the rate-limited API client from the loaded config.
func newClient() *chatwoot.Client {
	delay, minDelay, maxDelay := cfg.RateLimitDelays()
	pacer := chatwoot.NewPacer(delay, minDelay, maxDelay, cfg.Extract.AdaptiveRateLimit)
	return chatwoot.NewClient(cfg.Credentials(),
		chatwoot.WithPacer(pacer),
		chatwoot.WithRetry(cfg.Extract.MaxAttempts, cfg.BaseBackoff()),
		chatwoot.WithLogger(logger),
	)
}

func init() {
	extractCmd.Flags().StringVar(&extractSince, "since", "", "only conversations on or after this ISO date")
	extractCmd.Flags().StringVar(&extractUntil, "until", "", "only conversations before this ISO date")
	extractCmd.Flags().IntVar(&extractWorkers, "workers", 0, "message fetch pool size (default from config)")
	extractCmd.Flags().StringVar(&extractOut, "out", "", "output file path (default from config)")
	extractCmd.Flags().StringVar(&extractFormat, "format", "", "output format: json, jsonl, csv or sqlite")
	extractCmd.Flags().BoolVar(&extractRefreshChannels, "refresh-channels", false, "bypass the channel map cache")

	rootCmd.AddCommand(extractCmd)
}
