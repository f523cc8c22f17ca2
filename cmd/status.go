// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of iac-rules

package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/chez-shanpu/iac-rules/internal/localcache"
)

type StatusOpts struct {
	output string
}

var statusOpts StatusOpts

func init() {
	rootCmd.AddCommand(statusCmd)

	flag := statusCmd.Flags()
	flag.StringVarP(&statusOpts.output, OutputFlag, OutputShortFlag, "table", "Output format (table, json, yaml)")
}

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the custom rules bundle held by the local cache",
	Long: `Status shows whether a custom rules bundle was pulled into the local cache,
with its size, modification time and the number of extracted rule files.

Output formats:
  - table: Human-readable table format (default)
  - json:  JSON format
  - yaml:  YAML format

Examples:
  # Show the cache status
  iac-rules status

  # Show the cache status in JSON format
  iac-rules status -o json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStatus()
	},
}

func runStatus() error {
	s, err := localcache.ReadStatus(cfg.CacheDir)
	if err != nil {
		return err
	}

	switch statusOpts.output {
	case "table":
		return printTable(s)
	case "json":
		return printJSON(s)
	case "yaml":
		return printYAML(s)
	default:
		return fmt.Errorf("unsupported output format: %s (supported: table, json, yaml)", statusOpts.output)
	}
}

func printTable(s *localcache.Status) error {
	if !s.Present {
		fmt.Printf("No custom rules bundle found in %s\n", s.Dir)
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "BUNDLE\tSIZE\tMODIFIED\tRULE FILES")
	fmt.Fprintf(w, "%s\t%s\t%s\t%d\n", s.BundlePath, s.Size, s.Modified.Format("2006-01-02 15:04:05"), s.RuleFiles)
	return w.Flush()
}

func printJSON(s *localcache.Status) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(s)
}

func printYAML(s *localcache.Status) error {
	encoder := yaml.NewEncoder(os.Stdout)
	defer encoder.Close()
	return encoder.Encode(s)
}
