package cmd

import (
	"github.com/spf13/cobra"
)

var (
	historyLimit int
	historyRuns  bool
)

var historyCmd = &cobra.Command{
	Use:   "history [model-id]",
	Short: "Show the audit history of registry mutations",
	Long: `Lists recorded register and delete events, newest first. With --runs,
lists migration runs instead. Without a model id, shows all models.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "maximum entries to show")
	historyCmd.Flags().BoolVar(&historyRuns, "runs", false, "show migration runs instead of mutation events")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	store, err := openHistory()
	if err != nil {
		return err
	}
	defer store.Close()

	modelID := ""
	if len(args) > 0 {
		modelID = args[0]
	}

	if historyRuns {
		runs, err := store.MigrationRuns(cmd.Context(), modelID, historyLimit)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			cmd.Println("no migration runs recorded")
			return nil
		}
		for _, r := range runs {
			line := r.OccurredAt.Format("2006-01-02 15:04:05") + "\t" + r.ModelID + "\t" + r.FromVersion + " -> " + r.ToVersion + "\t" + r.Outcome
			if r.Error != "" {
				line += "\t" + r.Error
			}
			cmd.Println(line)
		}
		return nil
	}

	events, err := store.Events(cmd.Context(), modelID, historyLimit)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		cmd.Println("no events recorded")
		return nil
	}
	for _, e := range events {
		line := e.OccurredAt.Format("2006-01-02 15:04:05") + "\t" + e.EventType + "\t" + e.ModelID + "\t" + e.Version
		if e.ContentHash != "" {
			line += "\t" + e.ContentHash[:12]
		}
		cmd.Println(line)
	}
	return nil
}
