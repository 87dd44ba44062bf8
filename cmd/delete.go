package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var deleteCmd = &cobra.Command{
	Use:   "delete <model-id> <version>",
	Short: "Remove a registered version",
	Args:  cobra.ExactArgs(2),
	RunE:  runDelete,
}

func init() {
	rootCmd.AddCommand(deleteCmd)
}

func runDelete(cmd *cobra.Command, args []string) error {
	mgr, cleanup, err := openManager()
	if err != nil {
		return err
	}
	defer cleanup()

	removed, err := mgr.DeleteVersion(cmd.Context(), args[0], args[1])
	if err != nil {
		return err
	}
	if !removed {
		return fmt.Errorf("model %s has no version %s", args[0], args[1])
	}

	cmd.Printf("deleted %s %s\n", args[0], args[1])
	return nil
}
