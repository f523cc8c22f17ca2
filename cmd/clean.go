// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of iac-rules

package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/chez-shanpu/iac-rules/internal/localcache"
)

type CleanOpts struct {
	force bool
}

var cleanOpts CleanOpts

func init() {
	rootCmd.AddCommand(cleanCmd)

	flag := cleanCmd.Flags()
	flag.BoolVarP(&cleanOpts.force, ForceFlag, ForceShortFlag, false, "Skip confirmation prompt")
}

// cleanCmd represents the clean command
var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove the pulled rules bundle from the local cache",
	Long: `Clean removes the custom rules bundle and the rules extracted from it.

By default, a confirmation prompt is shown before deletion. Use the --force flag to skip confirmation.

Examples:
  # Clean with confirmation
  iac-rules clean

  # Clean without confirmation
  iac-rules clean --force`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runClean()
	},
}

func runClean() error {
	if !cleanOpts.force {
		if !confirmClean(cfg.CacheDir) {
			fmt.Println("Clean cancelled")
			return nil
		}
	}

	removed, err := localcache.Clean(cfg.CacheDir)
	if err != nil {
		return err
	}
	if !removed {
		fmt.Fprintf(os.Stderr, "warning: no custom rules bundle found in %s\n", cfg.CacheDir)
		return nil
	}

	fmt.Printf("Removed custom rules from %s\n", cfg.CacheDir)
	return nil
}

// confirmClean shows a confirmation prompt and returns true if user confirms
func confirmClean(dir string) bool {
	fmt.Printf("Remove custom rules from %s? (y/N): ", dir)

	reader := bufio.NewReader(os.Stdin)
	response, err := reader.ReadString('\n')
	if err != nil {
		return false
	}

	response = strings.TrimSpace(strings.ToLower(response))
	return response == "y" || response == "yes"
}
