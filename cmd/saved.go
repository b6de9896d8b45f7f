package cmd

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/user/arthub/internal/collection"
	"github.com/user/arthub/internal/db"
	"github.com/user/arthub/internal/tui"
)

func newSaveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "save [file|-]",
		Short: "Save artworks from JSON",
		Long: `Save one artwork object or an array of them, as printed by
"arthub search --json". Reads stdin when no file is given.`,
		Example: `  arthub search -j water lilies | jq '.[0]' | arthub save`,
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var in io.Reader = cmd.InOrStdin()
			if len(args) == 1 && args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}
			arts, err := readArtworks(in)
			if err != nil {
				return err
			}

			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			for _, art := range arts {
				if err := a.syncer.Save(cmd.Context(), art); err != nil {
					return fmt.Errorf("failed to save %q: %w", art.Title, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Saved: %s\n", art.Key())
			}
			return nil
		},
	}
}

// readArtworks accepts a single JSON object or an array of objects.
func readArtworks(r io.Reader) ([]db.Artwork, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, errors.New("no artwork JSON on input")
	}
	if raw[0] == '[' {
		var arts []db.Artwork
		if err := json.Unmarshal(raw, &arts); err != nil {
			return nil, fmt.Errorf("invalid artwork JSON: %w", err)
		}
		return arts, nil
	}
	var art db.Artwork
	if err := json.Unmarshal(raw, &art); err != nil {
		return nil, fmt.Errorf("invalid artwork JSON: %w", err)
	}
	return []db.Artwork{art}, nil
}

func newUnsaveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unsave <key>",
		Short: "Remove a saved artwork and its folder memberships",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			err = a.syncer.Unsave(cmd.Context(), args[0])
			var cerr *collection.CascadeError
			if errors.As(err, &cerr) {
				fmt.Fprintf(cmd.OutOrStdout(), "Removed: %s\n", args[0])
				fmt.Fprintf(os.Stderr, "Warning: %d folder(s) still reference it; run \"arthub reconcile\"\n", len(cerr.Folders))
				return nil
			}
			if err != nil {
				return fmt.Errorf("failed to unsave: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed: %s\n", args[0])
			return nil
		},
	}
}

func newSavedCmd() *cobra.Command {
	var (
		limit      int
		recent     bool
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "saved",
		Short: "List saved artworks, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			n := limit
			if recent {
				n = a.cfg.RecentLimit
			}
			items, err := a.syncer.Recent(cmd.Context(), n)
			if err != nil {
				return fmt.Errorf("failed to list saved: %w", err)
			}

			out := cmd.OutOrStdout()
			if jsonOutput {
				return outputJSON(out, items)
			}
			if len(items) == 0 {
				fmt.Fprintln(out, "Nothing saved yet.")
				return nil
			}
			for _, it := range items {
				fmt.Fprintf(out, "%s %s  %s\n   %s\n", tui.SourceTag(it.Source), truncate(it.Title, 70),
					it.SavedAt.Local().Format("2006-01-02 15:04"), it.Key)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "l", -1, "Show at most this many items (-1 for all)")
	cmd.Flags().BoolVarP(&recent, "recent", "r", false, "Show the configured number of recent items")
	cmd.Flags().BoolVarP(&jsonOutput, "json", "j", false, "Output as JSON")

	return cmd
}
