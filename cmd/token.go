package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/sells-group/property-map/internal/api"
)

var (
	tokenSubject string
	tokenTTL     time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint a bearer token for the similar-properties endpoint",
	RunE: func(cmd *cobra.Command, args []string) error {
		auth := api.NewAuthenticator(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
		tok, err := auth.Issue(tokenSubject, tokenTTL)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), tok)
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenSubject, "subject", "propmap-cli", "token subject")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "token lifetime")
	rootCmd.AddCommand(tokenCmd)
}
