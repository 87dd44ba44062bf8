package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zjrosen/modelver/internal/hashing"
)

var hashCmd = &cobra.Command{
	Use:   "hash <path>",
	Short: "Compute the content hash of an artifact file or directory",
	Long: `Computes the same content hash the registry records at registration
time, for manually verifying whether an artifact has drifted.`,
	Args: cobra.ExactArgs(1),
	RunE: runHash,
}

func init() {
	rootCmd.AddCommand(hashCmd)
}

func runHash(cmd *cobra.Command, args []string) error {
	hash := hashing.HashPath(args[0])
	if hash == "" {
		return fmt.Errorf("cannot hash %s: path missing or unreadable", args[0])
	}
	cmd.Println(hash)
	return nil
}
