package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"parley/internal/mode"
)

var modesCmd = &cobra.Command{
	Use:   "modes",
	Short: "List available deliberation modes",
	RunE: func(cmd *cobra.Command, args []string) error {
		registry, err := mode.LoadDir(cfg.ModesDir)
		if err != nil {
			return err
		}
		for _, p := range registry.List() {
			fmt.Printf("%s %s: %s\n", p.Icon, p.ID, p.Description)
			for _, ph := range p.OrderedPhases() {
				fmt.Printf("    %d. %s (max %d messages)\n", ph.Order+1, ph.Name, ph.MaxMessages)
			}
		}
		return nil
	},
}
