// ABOUTME: tools: list registered tool declarations or dump them as an editable manifest
// ABOUTME: The listing is a lipgloss table; the dump is YAML accepted by --tools

package main

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/bigduu/copilot-client-app-sub002/internal/config"
	"github.com/bigduu/copilot-client-app-sub002/internal/tools"
)

func newToolsCmd(opts *rootOptions, st streams) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tools",
		Short: "List available tools",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd, opts, st)
			if err != nil {
				return err
			}
			defer a.close()
			_, err = a.io.out.Write([]byte(toolTable(a.registry.All()) + "\n"))
			return err
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "manifest",
		Short: "Print the current tool declarations as a YAML manifest",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd, opts, st)
			if err != nil {
				return err
			}
			defer a.close()
			all := a.registry.All()
			specs := make([]tools.Spec, len(all))
			for i, t := range all {
				specs[i] = t.Spec
			}
			return config.WriteManifest(a.io.out, specs)
		},
	})
	return cmd
}

func toolTable(all []*tools.Tool) string {
	rows := make([][]string, 0, len(all))
	for _, t := range all {
		var flags []string
		if t.ReadOnly {
			flags = append(flags, "read-only")
		}
		if t.RequiresApproval {
			flags = append(flags, "approval")
		}
		if t.Narrative {
			flags = append(flags, "narrative")
		}
		rows = append(rows, []string{
			t.Name,
			strings.Join(t.ParamNames(), " "),
			string(t.Strategy),
			strings.Join(flags, ","),
			t.Description,
		})
	}
	return table.New().
		Border(lipgloss.NormalBorder()).
		Headers("TOOL", "PARAMS", "STRATEGY", "FLAGS", "DESCRIPTION").
		Rows(rows...).
		String()
}
