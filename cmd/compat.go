package cmd

import (
	"github.com/spf13/cobra"
)

var compatCmd = &cobra.Command{
	Use:   "compat <src-model> <src-version> <dst-model> <dst-version>",
	Short: "Check whether one registered version is compatible with another",
	Long: `Reports compatibility from the source version to the destination.
Within a model, an explicit compatible_with declaration wins; otherwise
versions sharing a major version are compatible. Across models the
answer is no unless the embedding application installs its own policy.`,
	Args: cobra.ExactArgs(4),
	RunE: runCompat,
}

func init() {
	rootCmd.AddCommand(compatCmd)
}

func runCompat(cmd *cobra.Command, args []string) error {
	mgr, cleanup, err := openManager()
	if err != nil {
		return err
	}
	defer cleanup()

	if mgr.CheckCompatibility(args[0], args[1], args[2], args[3]) {
		cmd.Printf("%s %s is compatible with %s %s\n", args[0], args[1], args[2], args[3])
	} else {
		cmd.Printf("%s %s is NOT compatible with %s %s\n", args[0], args[1], args[2], args[3])
	}
	return nil
}
