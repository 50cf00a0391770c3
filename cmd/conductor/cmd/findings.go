package cmd

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/scscodes/conductor/internal/core"
)

var (
	findingsScope    string
	findingsProject  string
	findingsCategory string
	findingsSeverity string
	findingsStatus   string
	findingsTag      string
	findingsLimit    int
	findingsJSON     bool
)

var findingsCmd = &cobra.Command{
	Use:   "findings",
	Short: "Browse accumulated findings",
}

var findingsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List findings matching the filters",
	RunE: func(cmd *cobra.Command, _ []string) error {
		rt, err := buildRuntime(runtimeOptions{})
		if err != nil {
			return err
		}
		defer rt.Close()

		filter, err := findingsFilter()
		if err != nil {
			return err
		}
		findings, err := rt.Findings.QueryFindings(cmd.Context(), filter)
		if err != nil {
			return err
		}
		return printFindings(cmd, findings)
	},
}

var findingsSearchCmd = &cobra.Command{
	Use:   "search <text>",
	Short: "Search finding titles and content",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := buildRuntime(runtimeOptions{})
		if err != nil {
			return err
		}
		defer rt.Close()

		filter, err := findingsFilter()
		if err != nil {
			return err
		}
		findings, err := rt.Findings.SearchFindings(cmd.Context(), args[0], filter)
		if err != nil {
			return err
		}
		return printFindings(cmd, findings)
	},
}

func findingsFilter() (core.FindingFilter, error) {
	filter := core.FindingFilter{
		ProjectID: findingsProject,
		Category:  findingsCategory,
		Tag:       findingsTag,
		Limit:     findingsLimit,
	}
	if findingsScope != "" {
		scope := core.FindingScope(findingsScope)
		if !core.ValidScope(scope) {
			return filter, core.ErrValidation("INVALID_SCOPE", "unknown scope: "+findingsScope)
		}
		filter.Scope = scope
	}
	if findingsSeverity != "" {
		severity := core.FindingSeverity(findingsSeverity)
		if !core.ValidSeverity(severity) {
			return filter, core.ErrValidation("INVALID_SEVERITY", "unknown severity: "+findingsSeverity)
		}
		filter.Severity = severity
	}
	if findingsStatus != "" {
		status := core.FindingStatus(findingsStatus)
		if !core.ValidFindingStatus(status) {
			return filter, core.ErrValidation("INVALID_STATUS", "unknown status: "+findingsStatus)
		}
		filter.Status = status
	}
	return filter, nil
}

func printFindings(cmd *cobra.Command, findings []*core.Finding) error {
	if findingsJSON {
		return json.NewEncoder(cmd.OutOrStdout()).Encode(findings)
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSEVERITY\tSTATUS\tCATEGORY\tTITLE")
	for _, f := range findings {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			f.ID, f.Severity, f.Status, f.Category, truncate(f.Title, 60))
	}
	return w.Flush()
}

func init() {
	rootCmd.AddCommand(findingsCmd)
	findingsCmd.AddCommand(findingsListCmd)
	findingsCmd.AddCommand(findingsSearchCmd)

	for _, c := range []*cobra.Command{findingsListCmd, findingsSearchCmd} {
		c.Flags().StringVar(&findingsScope, "scope", "", "filter by scope (global, project)")
		c.Flags().StringVar(&findingsProject, "project", "", "filter by project ID")
		c.Flags().StringVar(&findingsCategory, "category", "", "filter by category")
		c.Flags().StringVar(&findingsSeverity, "severity", "", "filter by severity")
		c.Flags().StringVar(&findingsStatus, "status", "", "filter by status")
		c.Flags().StringVar(&findingsTag, "tag", "", "filter by tag")
		c.Flags().IntVar(&findingsLimit, "limit", 50, "maximum rows")
		c.Flags().BoolVar(&findingsJSON, "json", false, "print as JSON")
	}
}
