package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"Perch/internal/client"
	"Perch/internal/core/drafts"
	"Perch/internal/core/editor"
	"Perch/internal/core/media"
	"Perch/internal/core/posting"
)

var (
	postMedia       []string
	postAltTexts    []string
	postVisibility  string
	postSpoiler     string
	postLanguage    string
	postReplyTo     string
	postPollOptions []string
	postPollExpiry  time.Duration
	postPollMulti   bool
	postFollowUps   []string
)

var postCmd = &cobra.Command{
	Use:   "post [text]",
	Short: "Compose and submit a post",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runPost,
}

func init() {
	postCmd.Flags().StringArrayVar(&postMedia, "media", nil, "Media file to attach (repeatable)")
	postCmd.Flags().StringArrayVar(&postAltTexts, "alt", nil, "Alt text for media, in order (repeatable)")
	postCmd.Flags().StringVar(&postVisibility, "visibility", "public", "Post visibility (public, unlisted, private, direct)")
	postCmd.Flags().StringVar(&postSpoiler, "spoiler", "", "Content warning text")
	postCmd.Flags().StringVar(&postLanguage, "language", "", "Language tag")
	postCmd.Flags().StringVar(&postReplyTo, "reply-to", "", "Status id to reply to")
	postCmd.Flags().StringArrayVar(&postPollOptions, "poll-option", nil, "Poll option (repeatable, at least 2)")
	postCmd.Flags().DurationVar(&postPollExpiry, "poll-expiry", 24*time.Hour, "Poll duration")
	postCmd.Flags().BoolVar(&postPollMulti, "poll-multiple", false, "Allow multiple poll choices")
	postCmd.Flags().StringArrayVar(&postFollowUps, "follow-up", nil, "Thread follow-up text (repeatable)")
	rootCmd.AddCommand(postCmd)
}

func runPost(cmd *cobra.Command, args []string) error {
	if serverURL == "" || accessToken == "" {
		return fmt.Errorf("--server and --token (or PERCH_SERVER / PERCH_TOKEN) are required")
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	httpClient := client.NewHTTPClient(serverURL, accessToken)
	clock := client.SystemClock{}

	var draftStore *drafts.Store
	if path, err := draftsPath(); err == nil {
		if store, openErr := drafts.New(path); openErr == nil {
			draftStore = store
			defer draftStore.Close()
		}
	}

	mode := editor.NewMode(client.Visibility(postVisibility))
	if postReplyTo != "" {
		mode = editor.ReplyToMode(&client.Status{ID: postReplyTo, Visibility: client.Visibility(postVisibility)})
	}

	store := editor.NewStore(editor.Deps{
		Media:      httpClient,
		Uploader:   media.NewUploadService(httpClient, clock),
		Refresher:  media.NewRefresher(httpClient, clock),
		Ingestion:  media.NewIngestionService(""),
		Posting:    posting.NewService(httpClient, posting.DefaultConfig()),
		Drafts:     draftStore,
		Policy:     media.PolicyFromEnv(),
		RefreshCfg: media.DefaultRefreshConfig(),
	}, mode)

	if len(args) > 0 {
		store.SetText(ctx, args[0])
	}
	if postSpoiler != "" {
		store.SetSpoiler(postSpoiler)
	}
	if postLanguage != "" {
		store.SetLanguage(postLanguage)
	}
	if len(postPollOptions) > 0 {
		store.SetPoll(&posting.PollSpec{
			Options:   postPollOptions,
			ExpiresIn: postPollExpiry,
			Multiple:  postPollMulti,
		})
	}

	if len(postMedia) > 0 {
		items := make([]media.InputItem, 0, len(postMedia))
		for _, path := range postMedia {
			items = append(items, media.InputItem{Name: filepath.Base(path), FilePath: path})
		}
		if err := store.AddMedia(ctx, items); err != nil {
			return fmt.Errorf("ingesting media: %w", err)
		}
		containers := store.Containers()
		for i, alt := range postAltTexts {
			if i >= len(containers) {
				break
			}
			if err := store.SetAltText(ctx, containers[i].ID(), alt); err != nil {
				return fmt.Errorf("setting alt text: %w", err)
			}
		}

		fmt.Fprintf(cmd.OutOrStdout(), "uploading %d attachment(s)...\n", len(containers))
		store.WaitForUploads()
		for _, c := range store.Containers() {
			if c.Phase() == media.PhaseFailed {
				return fmt.Errorf("upload failed for %s: %v", c.ID(), c.Err())
			}
		}
	}

	for _, followText := range postFollowUps {
		follow := store.AddFollowUp()
		follow.SetText(ctx, followText)
	}

	posted, err := store.SubmitAll(ctx)
	if err != nil {
		return err
	}
	for _, status := range posted {
		fmt.Fprintf(cmd.OutOrStdout(), "posted %s\n", status.URI)
	}
	return nil
}

func draftsPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	perchDir := filepath.Join(dir, "perch")
	if err := os.MkdirAll(perchDir, 0o755); err != nil {
		return "", err
	}
	return filepath.Join(perchDir, "drafts.db"), nil
}
