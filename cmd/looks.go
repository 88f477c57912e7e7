// File: cmd/looks.go
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fitforge/fitroom-cli/internal/lookbook"
	"github.com/fitforge/fitroom-cli/internal/observability"
	"github.com/fitforge/fitroom-cli/internal/storage"
)

// newLooksCmd manages the saved lookbook without starting a studio session.
func newLooksCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "looks",
		Short: "Manage the saved lookbook",
	}
	cmd.AddCommand(newLooksListCmd(), newLooksDeleteCmd())
	return cmd
}

func newLooksListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every saved look, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			looks, closeStore, err := openLookbook()
			if err != nil {
				return err
			}
			defer closeStore()

			all := looks.All()
			if len(all) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "The lookbook is empty. Save a look from the studio first.")
				return nil
			}
			for _, look := range all {
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %s  %d layers  pose: %s\n",
					look.ID, look.CreatedAt.Local().Format("2006-01-02 15:04"), len(look.Layers), look.PoseInstruction)
			}
			return nil
		},
	}
}

func newLooksDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <look-id>",
		Short: "Delete a saved look",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			looks, closeStore, err := openLookbook()
			if err != nil {
				return err
			}
			defer closeStore()

			if err := looks.Delete(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted look %s\n", args[0])
			return nil
		},
	}
}

// openLookbook opens the configured lookbook database; the returned func
// releases the file handle.
func openLookbook() (*lookbook.Store, func(), error) {
	logger := observability.GetLogger()

	blobs, err := storage.NewBoltStore(appConfig.Storage.LookbookPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open lookbook database: %w", err)
	}
	looks, err := lookbook.New(blobs, logger)
	if err != nil {
		blobs.Close()
		return nil, nil, err
	}
	closeStore := func() {
		if err := blobs.Close(); err != nil {
			logger.Warn("Error closing lookbook database", zap.Error(err))
		}
	}
	return looks, closeStore, nil
}
