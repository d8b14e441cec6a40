package cmd

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/iksnae/cursor-journal/internal"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	hashStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	validStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	staleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

var workspacesCmd = &cobra.Command{
	Use:   "workspaces",
	Short: "List discovered Cursor workspaces and their store chunks",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := internal.LoadConfig(configPath)
		if err != nil {
			return err
		}

		roots, err := internal.CandidateRoots(cfg)
		if err != nil {
			return err
		}

		validator := internal.NewValidator(cfg.ValidityTTL, nil)
		validator.QueryTimeout = cfg.QueryTimeout
		found := 0
		for _, root := range roots {
			workspaces := internal.ListWorkspaces(root)
			if len(workspaces) == 0 {
				continue
			}
			fmt.Println(headerStyle.Render(root))
			for _, ws := range workspaces {
				found++
				chunks := internal.DiscoverAll(ws.Dir)
				recent := internal.FilterRecent(chunks, cfg.RecencyWindow, nil)

				status := staleStyle.Render("no store")
				if validator.Validate(cmd.Context(), ws.Dir, false) {
					status = validStyle.Render(fmt.Sprintf("%d chunks (%d recent)", len(chunks), len(recent)))
				}

				name := ws.Name
				if name == "" {
					name = "(unknown folder)"
				}
				fmt.Printf("  %s  %s  %s\n", hashStyle.Render(ws.Hash[:min(12, len(ws.Hash))]), name, status)
			}
		}

		if found == 0 {
			fmt.Println("No workspaces found. Has Cursor been run on this machine?")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(workspacesCmd)
}
