// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of iac-rules

package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/chez-shanpu/iac-rules/internal/oci"
	"github.com/chez-shanpu/iac-rules/internal/rules"
)

const (
	pushFileFlag      = "file"
	pushFileShortFlag = "f"
)

func init() {
	rootCmd.AddCommand(pushCmd)

	flag := pushCmd.Flags()
	flag.StringP(pushFileFlag, pushFileShortFlag, "", "Path to the custom rules bundle (.tar.gz)")
	flag.StringP(pullUsernameFlag, pullUsernameShortFlag, "", "Registry username (default: docker credential store)")
	flag.StringP(pullPasswordFlag, pullPasswordShortFlag, "", "Registry password")
	flag.Bool(pullPlainHTTPFlag, false, "Use plain HTTP instead of HTTPS")

	_ = pushCmd.MarkFlagRequired(pushFileFlag)
}

type pushOpts struct {
	pullOpts
	file string
}

func (p *pushOpts) parse(f *pflag.FlagSet, args []string) error {
	p.url = args[0]
	p.file = f.Lookup(pushFileFlag).Value.String()
	p.username = f.Lookup(pullUsernameFlag).Value.String()
	p.password = f.Lookup(pullPasswordFlag).Value.String()

	var err error
	if p.plainHTTP, err = f.GetBool(pullPlainHTTPFlag); err != nil {
		return err
	}
	return nil
}

// pushCmd represents the push command
var pushCmd = &cobra.Command{
	Use:   "push URL",
	Short: "Publish a custom rules bundle to an OCI registry",
	Long: `Push uploads a gzipped tar bundle of custom rules as a single layer OCI artifact,
so that it can be retrieved with 'iac-rules pull'.

Examples:
  # Publish a bundle
  iac-rules push registry.example.com/org/rules:v1 -f rules.tar.gz

  # Publish to a localhost registry
  iac-rules push localhost:5000/rules:dev -f rules.tar.gz`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opt := &pushOpts{}
		if err := opt.parse(cmd.Flags(), args); err != nil {
			return err
		}
		return runPush(cmd.Context(), opt)
	},
}

func runPush(ctx context.Context, opt *pushOpts) error {
	ref, err := rules.ParseReference(opt.url)
	if err != nil {
		return err
	}

	desc, err := oci.NewPublisher().Publish(ctx, ref, opt.file, &rules.PullOptions{
		Username: firstNonEmpty(opt.username, cfg.Username),
		Password: firstNonEmpty(opt.password, cfg.Password),
		Request: rules.RequestOptions{
			PlainHTTP: opt.plainHTTP || cfg.PlainHTTP,
			UserAgent: "iac-rules/" + version,
		},
	})
	if err != nil {
		return err
	}

	fmt.Printf("Pushed %s (%s)\n", ref, desc.Digest)
	return nil
}
