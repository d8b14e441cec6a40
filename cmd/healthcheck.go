package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/iksnae/cursor-journal/internal"
	"github.com/iksnae/cursor-journal/internal/ai"
)

var healthcheckCmd = &cobra.Command{
	Use:   "healthcheck",
	Short: "Probe storage paths, stores, and the AI endpoint",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := internal.LoadConfig(configPath)
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		roots, err := internal.CandidateRoots(cfg)
		if err != nil {
			var unsupported *internal.ErrUnsupportedPlatform
			if errors.As(err, &unsupported) {
				fmt.Printf("✗ platform: %v\n", err)
				return nil
			}
			return err
		}
		fmt.Printf("✓ platform: %d candidate root(s)\n", len(roots))

		validator := internal.NewValidator(cfg.ValidityTTL, nil)
		validator.QueryTimeout = cfg.QueryTimeout
		usable := 0
		for _, root := range roots {
			for _, ws := range internal.ListWorkspaces(root) {
				if validator.Validate(ctx, ws.Dir, true) {
					usable++
				}
			}
		}
		if usable > 0 {
			fmt.Printf("✓ storage: %d workspace(s) with a usable store\n", usable)
		} else {
			fmt.Println("✗ storage: no workspace with a usable store")
		}

		client := ai.NewClient(cfg.AI.BaseURL, cfg.AI.Model)
		if client.IsRunning(ctx) {
			fmt.Printf("✓ ai: %s reachable\n", cfg.AI.BaseURL)
		} else {
			fmt.Printf("✗ ai: %s unreachable (boundary filter will fall back to %s policy)\n",
				cfg.AI.BaseURL, cfg.FilterPolicy)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(healthcheckCmd)
}
