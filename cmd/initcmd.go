package cmd

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/zjrosen/modelver/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a commented default config file",
	Args:  cobra.NoArgs,
	RunE:  runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	path := cfgFile
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			path = ".modelver/config.yaml"
		} else {
			path = filepath.Join(home, ".config", "modelver", "config.yaml")
		}
	}

	if _, err := os.Stat(path); err == nil {
		cmd.Printf("config already exists at %s\n", path)
		return nil
	}

	if err := config.WriteDefaultConfig(path); err != nil {
		return err
	}
	cmd.Printf("wrote %s\n", path)
	return nil
}
