package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/RobertvdLeeuw/spotdl-lean/internal/progress"
)

var downloadCmd = &cobra.Command{
	Use:   "download <query>...",
	Short: "Download songs for search terms, Spotify URLs or URIs",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runDownload,
}

var searchCmd = &cobra.Command{
	Use:   "search <query>...",
	Short: "Resolve queries and list the songs that would be downloaded",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSearch,
}

var urlsCmd = &cobra.Command{
	Use:   "urls <query>...",
	Short: "Print the download URL found for every song",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runURLs,
}

func runDownload(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	observer := func(t *progress.Tracker, label string) {
		if !t.State().Terminal() {
			return
		}
		o := t.Overall()
		fmt.Fprintf(out, "[%d/%d] %s: %s\n", o.OverallCompleted, o.SongCount, t.Song().DisplayName(), label)
	}

	ctx, s, err := newSession(cmd, observer)
	if err != nil {
		return err
	}
	defer s.close()

	songs, err := s.spotdl.Search(ctx, args)
	if err != nil {
		return err
	}
	if len(songs) == 0 {
		return fmt.Errorf("no songs found for %d queries", len(args))
	}
	s.logger.Info("Downloading songs", "count", len(songs), "output", s.spotdl.OutputDir())

	results, err := s.spotdl.DownloadSongs(ctx, songs)
	if err != nil {
		return err
	}
	var failed int
	for _, res := range results {
		if !res.OK() {
			failed++
		}
	}
	fmt.Fprintf(out, "Downloaded %d of %d songs\n", len(results)-failed, len(results))
	if failed > 0 {
		return fmt.Errorf("%d songs failed", failed)
	}
	return nil
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx, s, err := newSession(cmd, nil)
	if err != nil {
		return err
	}
	defer s.close()

	songs, err := s.spotdl.Search(ctx, args)
	if err != nil {
		return err
	}
	for _, song := range songs {
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", song.DisplayName(), song.URL)
	}
	return nil
}

func runURLs(cmd *cobra.Command, args []string) error {
	ctx, s, err := newSession(cmd, nil)
	if err != nil {
		return err
	}
	defer s.close()

	songs, err := s.spotdl.Search(ctx, args)
	if err != nil {
		return err
	}
	urls, err := s.spotdl.GetDownloadURLs(ctx, songs)
	if err != nil {
		return err
	}
	for i, song := range songs {
		u := "-"
		if urls[i] != nil {
			u = *urls[i]
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", song.DisplayName(), u)
	}
	return nil
}
