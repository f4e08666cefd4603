// Perch - post composer for Mastodon-compatible servers
//
// Composes, uploads and submits posts from the terminal using the same
// engine the app embeds.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version     = "dev"
	serverURL   string
	accessToken string
)

var rootCmd = &cobra.Command{
	Use:   "perch",
	Short: "Perch - post composer",
	Long: `Perch composes and submits posts to a Mastodon-compatible server.

  perch post "hello world" --media photo.jpg --alt "a photo"
  perch post "poll time" --poll-option yes --poll-option no
  perch drafts list`,
	Version: version,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", envOr("PERCH_SERVER", ""), "Server base URL")
	rootCmd.PersistentFlags().StringVar(&accessToken, "token", envOr("PERCH_TOKEN", ""), "API access token")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
