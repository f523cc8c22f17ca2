// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of iac-rules

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/chez-shanpu/iac-rules/internal/localcache"
)

const (
	pathRulesFlag = "rules"
)

type PathOpts struct {
	rules bool
}

var pathOpts PathOpts

func init() {
	rootCmd.AddCommand(pathCmd)

	flag := pathCmd.Flags()
	flag.BoolVar(&pathOpts.rules, pathRulesFlag, false, "Print the directory holding the extracted rules instead of the bundle")
}

// pathCmd represents the path command
var pathCmd = &cobra.Command{
	Use:   "path",
	Short: "Get the file system path to the pulled rules bundle",
	Long: `Path prints the absolute path of the custom rules bundle in the local cache.

The bundle must have been pulled using the 'pull' command.

Examples:
  # Get the path to the bundle
  iac-rules path

  # Get the directory of the extracted rules
  iac-rules path --rules`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPath()
	},
}

func runPath() error {
	s, err := localcache.ReadStatus(cfg.CacheDir)
	if err != nil {
		return err
	}
	if !s.Present {
		return fmt.Errorf("no custom rules bundle found at %s: run 'iac-rules pull' first", s.BundlePath)
	}

	if pathOpts.rules {
		fmt.Println(s.RulesDir)
		return nil
	}
	fmt.Println(s.BundlePath)
	return nil
}
