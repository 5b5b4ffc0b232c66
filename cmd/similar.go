package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/sells-group/property-map/internal/mapview"
)

var (
	similarLimit  int
	similarOutput string
)

var similarCmd = &cobra.Command{
	Use:   "similar <listing-id>",
	Short: "Show listings similar to a listing",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("client"); err != nil {
			return err
		}
		limit := similarLimit
		if limit <= 0 {
			limit = cfg.Similar.Limit
		}

		client := newListingClient(cfg.Client, cfg.Query.ClientTimeout())
		res := mapview.NewSimilarPanel(client, limit).Load(cmd.Context(), args[0])
		if res.Notice != "" {
			fmt.Fprintln(cmd.ErrOrStderr(), res.Notice)
		}
		return writeListings(cmd.OutOrStdout(), similarOutput, res.Listings, time.Now())
	},
}

func init() {
	similarCmd.Flags().IntVar(&similarLimit, "limit", 0, "max listings (default from config)")
	similarCmd.Flags().StringVarP(&similarOutput, "output", "o", "table", "output format: table, json or yaml")
	rootCmd.AddCommand(similarCmd)
}
