// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of iac-rules

package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/chez-shanpu/iac-rules/internal/config"
	"github.com/chez-shanpu/iac-rules/internal/localcache"
	"github.com/chez-shanpu/iac-rules/internal/oci"
	"github.com/chez-shanpu/iac-rules/internal/rules"
)

var (
	// Version information. These are set via ldflags during build.
	version = "dev"
	commit  = "none"
)

const (
	OutputFlag      = "output"
	OutputShortFlag = "o"

	ForceFlag      = "force"
	ForceShortFlag = "f"

	DebugFlag = "debug"
)

var (
	cfg    *config.Config
	logger = logrus.New()
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:           "iac-rules",
	Short:         "Pull custom IaC rules bundles from OCI registries",
	SilenceUsage:  true,
	SilenceErrors: true,
	Version:       version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "help" || cmd.Name() == "completion" {
			return nil
		}
		debug, err := cmd.Flags().GetBool(DebugFlag)
		if err != nil {
			return err
		}
		configureLogger(debug)

		c, err := config.Load()
		if err != nil {
			return err
		}
		cfg = c
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().Bool(DebugFlag, false, "Print debug logs to stderr")

	// Customize version output template
	rootCmd.SetVersionTemplate(fmt.Sprintf("iac-rules version %s (commit: %s)\n", version, commit))
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		printError(os.Stderr, err)
		os.Exit(1)
	}
}

func configureLogger(debug bool) {
	logger.SetOutput(os.Stderr)
	logger.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	if debug {
		logger.SetLevel(logrus.DebugLevel)
	} else {
		logger.SetLevel(logrus.WarnLevel)
	}
}

// printError prints the user facing message of pull errors and the raw error otherwise.
func printError(w io.Writer, err error) {
	var rerr *rules.Error
	if errors.As(err, &rerr) {
		logger.WithFields(logrus.Fields{
			"code":    rerr.Code,
			"strCode": rerr.StrCode,
		}).Debug(rerr.Error())
		fmt.Fprintf(w, "Error: %s (%s)\n", rerr.UserMessage, rerr.StrCode)
		return
	}
	fmt.Fprintf(w, "Error: %v\n", err)
}

func newPuller() *rules.Puller {
	opts := []rules.Option{rules.WithLogger(logger)}
	if cfg.Entitlements != nil {
		opts = append(opts, rules.WithEntitlementChecker(cfg.Entitlements))
	}
	return rules.NewPuller(
		oci.NewFetcher(),
		localcache.NewInitializer(cfg.CacheDir, logger),
		cfg.CacheDir,
		opts...,
	)
}
