package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"Perch/internal/core/drafts"
)

var draftsCmd = &cobra.Command{
	Use:   "drafts",
	Short: "Manage saved drafts",
}

var draftsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved drafts",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openDrafts()
		if err != nil {
			return err
		}
		defer store.Close()

		list, err := store.List()
		if err != nil {
			return err
		}
		if len(list) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "no drafts")
			return nil
		}
		for _, d := range list {
			preview := d.Text
			if len(preview) > 60 {
				preview = preview[:60] + "..."
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s  %s  %s\n", d.ID, d.CreatedAt.Format("2006-01-02 15:04"), preview)
		}
		return nil
	},
}

var draftsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a draft",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openDrafts()
		if err != nil {
			return err
		}
		defer store.Close()
		return store.Delete(args[0])
	},
}

func openDrafts() (*drafts.Store, error) {
	path, err := draftsPath()
	if err != nil {
		return nil, fmt.Errorf("locating drafts database: %w", err)
	}
	return drafts.New(path)
}

func init() {
	draftsCmd.AddCommand(draftsListCmd, draftsDeleteCmd)
	rootCmd.AddCommand(draftsCmd)
}
