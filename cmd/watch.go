package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/zjrosen/modelver/internal/watcher"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the registry document for external modification",
	Long: `Blocks and prints a line whenever another process modifies the
registry document. The registry assumes a single owning process; this
surfaces writes that assumption does not cover.`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	debounce := time.Duration(cfg.Watch.DebounceMs) * time.Millisecond
	if debounce <= 0 {
		debounce = time.Second
	}

	w, err := watcher.New(watcher.Config{
		RegistryPath: cfg.RegistryPath(),
		DebounceDur:  debounce,
	})
	if err != nil {
		return err
	}
	defer func() { _ = w.Stop() }()

	onChange, err := w.Start()
	if err != nil {
		return err
	}

	cmd.Printf("watching %s\n", cfg.RegistryPath())
	for {
		select {
		case <-onChange:
			cmd.Printf("%s registry modified\n", time.Now().Format("2006-01-02 15:04:05"))
		case <-cmd.Context().Done():
			return nil
		}
	}
}
