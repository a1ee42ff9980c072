package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"chatdump/internal/cache"
	"chatdump/internal/extract"
)

var channelsRefresh bool

var channelsCmd = &cobra.Command{
	Use:   "channels",
	Short: "List the account's inboxes (channels)",
	Long: `List the account's inboxes and their ids, using the same TTL cache
the extraction run uses. Pass --refresh to rebuild the map from the API.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate(); err != nil {
			return err
		}

		channels := extract.NewChannelCache(
			newClient(),
			cache.NewFileStore[extract.ChannelMap](cfg.Cache.Dir),
			cfg.API.AccountID,
			cfg.CacheTTL(),
			logger,
		)

		m, err := channels.Get(cmd.Context(), channelsRefresh)
		if err != nil {
			return fmt.Errorf("load channel map: %w", err)
		}

		ids := make([]int64, 0, len(m))
		for id := range m {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

		fmt.Printf("%d channel(s):\n", len(m))
		for _, id := range ids {
			fmt.Printf("  %6d  %s\n", id, m[id])
		}
		return nil
	},
}

func init() {
	channelsCmd.Flags().BoolVar(&channelsRefresh, "refresh", false, "rebuild the channel map from the API")
	rootCmd.AddCommand(channelsCmd)
}
