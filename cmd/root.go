package cmd

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/user/arthub/internal/tui"
)

func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "arthub",
		Short: "Federated museum artwork search with saved collections",
		Long: `Search the open-access catalogs of several museums at once, save
artworks you like and organize them into folders.

Running arthub without a subcommand starts the terminal UI.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			view, err := a.syncer.Watch(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to open collection: %w", err)
			}
			defer view.Close()

			return tui.Run(a.coord, a.syncer, view, a.cfg.RecentLimit)
		},
	}

	cmd.PersistentFlags().String("data-dir", "", "Data directory (default: ~/.arthub)")
	cmd.PersistentFlags().String("user", "", "User id owning saved items and folders")
	_ = viper.BindPFlag("data_dir", cmd.PersistentFlags().Lookup("data-dir"))
	_ = viper.BindPFlag("user", cmd.PersistentFlags().Lookup("user"))

	cmd.AddCommand(
		newSearchCmd(),
		newSaveCmd(),
		newUnsaveCmd(),
		newSavedCmd(),
		newFolderCmd(),
		newReconcileCmd(),
		newServeCmd(),
	)

	return cmd
}
