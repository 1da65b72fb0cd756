package cmd

import (
	"fmt"
	"os"

	"github.com/maltedev/nykaa-review-scraper/internal/checkpoint"
	"github.com/maltedev/nykaa-review-scraper/internal/output"
	"github.com/spf13/cobra"
)

func init() {
	checkpointsCmd.AddCommand(checkpointsClearCmd)
	rootCmd.AddCommand(checkpointsCmd)
}

func openStore(cmd *cobra.Command) (*checkpoint.Store, error) {
	env, err := loadEnv(cmd, nil)
	if err != nil {
		return nil, err
	}
	return checkpoint.NewStore(checkpoint.Options{
		Dir:             env.Config.Checkpoint.Dir,
		MinSaveInterval: env.Config.Checkpoint.MinSaveInterval,
	}, env.Logger)
}

var checkpointsCmd = &cobra.Command{
	Use:   "checkpoints",
	Short: "Lists stored checkpoints and their resume state.",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore(cmd)
		if err != nil {
			return err
		}

		list, err := store.List()
		if err != nil {
			return err
		}
		if len(list) == 0 {
			fmt.Println("No checkpoints found.")
			return nil
		}

		output.RenderCheckpoints(os.Stdout, list)
		return nil
	},
}

var checkpointsClearCmd = &cobra.Command{
	Use:   "clear <keyword>...",
	Short: "Deletes the checkpoints of the given keywords.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore(cmd)
		if err != nil {
			return err
		}

		for _, kw := range args {
			if err := store.Clear(kw); err != nil {
				return err
			}
			fmt.Printf("Cleared checkpoint for %q\n", kw)
		}
		return nil
	},
}
