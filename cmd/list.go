package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list [model-id]",
	Short: "List registered models, or all versions of one model",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runList,
}

func init() {
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	mgr, cleanup, err := openManager()
	if err != nil {
		return err
	}
	defer cleanup()
	reg := mgr.Registry()

	if len(args) == 0 {
		models := reg.Models()
		if len(models) == 0 {
			cmd.Println("no models registered")
			return nil
		}
		for _, id := range models {
			latest, _ := reg.Latest(id)
			cmd.Printf("%s\t(latest %s, %d versions)\n", id, latest.String(), len(reg.All(id)))
		}
		return nil
	}

	modelID := args[0]
	versions := reg.All(modelID)
	if len(versions) == 0 {
		return fmt.Errorf("no versions registered for model %s", modelID)
	}
	for _, v := range versions {
		line := v.String()
		if features := v.Features(); len(features) > 0 {
			line += "\tfeatures: " + strings.Join(features, ", ")
		}
		if compat := v.CompatibleWith(); len(compat) > 0 {
			line += "\tcompatible_with: " + strings.Join(compat, ", ")
		}
		if hash := v.ContentHash(); hash != "" {
			line += "\thash: " + hash[:12]
		}
		cmd.Println(line)
	}
	return nil
}
