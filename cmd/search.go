package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/user/arthub/internal/db"
	"github.com/user/arthub/internal/search"
	"github.com/user/arthub/internal/tui"
)

func newSearchCmd() *cobra.Command {
	var (
		jsonOutput      bool
		plaintextOutput bool
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search every museum catalog",
		Long: `Query all enabled catalogs concurrently and print the merged results.
Exact title matches come first, then title matches, then artist matches.
Catalogs that fail are reported on stderr and skipped.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")

			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.coord.Search(cmd.Context(), query)
			if err != nil {
				if errors.Is(err, search.ErrAllSourcesFailed) {
					return fmt.Errorf("search failed: every catalog is unavailable (%s)", strings.Join(res.Failed, ", "))
				}
				return fmt.Errorf("search failed: %w", err)
			}
			if len(res.Failed) > 0 {
				fmt.Fprintf(os.Stderr, "Unavailable: %s\n", strings.Join(res.Failed, ", "))
			}

			out := cmd.OutOrStdout()
			if jsonOutput {
				return outputJSON(out, res.Records)
			}
			if plaintextOutput {
				return outputPlaintext(out, res.Records)
			}
			return outputDefault(out, res.Records)
		},
	}

	cmd.Flags().BoolVarP(&jsonOutput, "json", "j", false, "Output as JSON")
	cmd.Flags().BoolVarP(&plaintextOutput, "plaintext", "p", false, "Output as plaintext")

	return cmd
}

func outputJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(w, string(data))
	return nil
}

func outputPlaintext(w io.Writer, results []db.Artwork) error {
	for _, r := range results {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.Key(), r.Title, r.Artist, r.SourceURL)
	}
	return nil
}

func outputDefault(w io.Writer, results []db.Artwork) error {
	if len(results) == 0 {
		fmt.Fprintln(w, "No results found.")
		return nil
	}
	for i, r := range results {
		fmt.Fprintf(w, "%d. %s %s\n", i+1, tui.SourceTag(r.Source), r.Title)
		if r.Artist != "" {
			fmt.Fprintf(w, "   %s\n", r.Artist)
		}
		fmt.Fprintf(w, "   %s\n   key: %s\n\n", r.SourceURL, r.Key())
	}
	return nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
