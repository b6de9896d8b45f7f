package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/user/arthub/internal/collection"
	"github.com/user/arthub/internal/tui"
)

func newFolderCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "folder",
		Short: "Manage folders of saved artworks",
	}
	cmd.AddCommand(
		newFolderListCmd(),
		newFolderCreateCmd(),
		newFolderRenameCmd(),
		newFolderDeleteCmd(),
		newFolderShowCmd(),
		newFolderToggleCmd(),
	)
	return cmd
}

func newFolderListCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List folders",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			folders, err := a.syncer.Folders(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to list folders: %w", err)
			}
			out := cmd.OutOrStdout()
			if jsonOutput {
				return outputJSON(out, folders)
			}
			if len(folders) == 0 {
				fmt.Fprintln(out, "No folders yet.")
				return nil
			}
			for _, f := range folders {
				fmt.Fprintf(out, "%s\t%s\t%s\n", f.ID, f.Name, collection.CountLabel(len(f.Images)))
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&jsonOutput, "json", "j", false, "Output as JSON")
	return cmd
}

func newFolderCreateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create <name>",
		Short: "Create an empty folder",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			f, err := a.syncer.CreateFolder(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return fmt.Errorf("failed to create folder: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created: %s (%s)\n", f.Name, f.ID)
			return nil
		},
	}
}

func newFolderRenameCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rename <folder-id> <name>",
		Short: "Rename a folder",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			name := strings.Join(args[1:], " ")
			if err := a.syncer.RenameFolder(cmd.Context(), args[0], name); err != nil {
				return fmt.Errorf("failed to rename folder: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Renamed: %s\n", strings.TrimSpace(name))
			return nil
		},
	}
}

func newFolderDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <folder-id>",
		Short: "Delete a folder (saved artworks are kept)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.syncer.DeleteFolder(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("failed to delete folder: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted: %s\n", args[0])
			return nil
		},
	}
}

func newFolderShowCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show <folder-id>",
		Short: "List the artworks in a folder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			folder, items, err := a.syncer.FolderContents(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("failed to show folder: %w", err)
			}
			out := cmd.OutOrStdout()
			if jsonOutput {
				return outputJSON(out, items)
			}
			fmt.Fprintf(out, "%s (%s)\n\n", folder.Name, collection.CountLabel(len(folder.Images)))
			for _, it := range items {
				fmt.Fprintf(out, "%s %s\n   %s\n", tui.SourceTag(it.Source), truncate(it.Title, 70), it.Key)
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&jsonOutput, "json", "j", false, "Output as JSON")
	return cmd
}

func newFolderToggleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "toggle <folder-id> <key>",
		Short: "Add a saved artwork to a folder, or remove it if present",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			member, err := a.syncer.ToggleFolder(cmd.Context(), args[1], args[0])
			if err != nil {
				return fmt.Errorf("failed to toggle folder: %w", err)
			}
			if member {
				fmt.Fprintf(cmd.OutOrStdout(), "Added: %s\n", args[1])
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "Removed: %s\n", args[1])
			}
			return nil
		},
	}
}
