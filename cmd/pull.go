// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of iac-rules

package cmd

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/chez-shanpu/iac-rules/internal/rules"
)

const (
	pullUsernameFlag      = "username"
	pullUsernameShortFlag = "u"
	pullPasswordFlag      = "password"
	pullPasswordShortFlag = "p"
	pullPlainHTTPFlag     = "plain-http"
	pullHeaderFlag        = "header"
	pullHeaderShortFlag   = "H"
)

func init() {
	rootCmd.AddCommand(pullCmd)

	flag := pullCmd.Flags()
	flag.StringP(pullUsernameFlag, pullUsernameShortFlag, "", "Registry username (default: docker credential store)")
	flag.StringP(pullPasswordFlag, pullPasswordShortFlag, "", "Registry password")
	flag.Bool(pullPlainHTTPFlag, false, "Use plain HTTP instead of HTTPS")
	flag.StringArrayP(pullHeaderFlag, pullHeaderShortFlag, nil, "Extra request header in 'Key: Value' form (repeatable)")
}

type pullOpts struct {
	url       string
	username  string
	password  string
	plainHTTP bool
	headers   []string
}

func (p *pullOpts) parse(f *pflag.FlagSet, args []string) error {
	if len(args) > 0 {
		p.url = args[0]
	}
	p.username = f.Lookup(pullUsernameFlag).Value.String()
	p.password = f.Lookup(pullPasswordFlag).Value.String()

	var err error
	if p.plainHTTP, err = f.GetBool(pullPlainHTTPFlag); err != nil {
		return err
	}
	if p.headers, err = f.GetStringArray(pullHeaderFlag); err != nil {
		return err
	}
	return nil
}

// pullCmd represents the pull command
var pullCmd = &cobra.Command{
	Use:   "pull [URL]",
	Short: "Pull a custom rules bundle from an OCI registry",
	Long: `Pull downloads a custom rules bundle stored as a single layer OCI artifact
and installs it into the local cache used by the scanning engine.

The URL has the form [scheme://]<registry>/<repository>[:tag]; the tag defaults
to "latest". When no URL is given, registryURL from the configuration file or
IAC_RULES_REGISTRY_URL is used.

Authentication uses --username/--password (or IAC_RULES_REGISTRY_USERNAME and
IAC_RULES_REGISTRY_PASSWORD) when set, and the Docker credential store otherwise.

Examples:
  # Pull a tagged bundle
  iac-rules pull registry.example.com/org/rules:v1

  # Pull with explicit credentials
  iac-rules pull https://registry.example.com/org/rules -u user -p secret

  # Pull from a localhost registry
  iac-rules pull localhost:5000/rules:dev`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opt := &pullOpts{}
		if err := opt.parse(cmd.Flags(), args); err != nil {
			return err
		}
		return runPull(cmd.Context(), opt)
	},
}

func runPull(ctx context.Context, opt *pullOpts) error {
	rawURL := firstNonEmpty(opt.url, cfg.RegistryURL)
	if rawURL == "" {
		return fmt.Errorf("no registry URL given: pass it as an argument or set registryURL in the configuration")
	}

	header, err := parseHeaders(opt.headers)
	if err != nil {
		return err
	}

	pullOptions := &rules.PullOptions{
		Username: firstNonEmpty(opt.username, cfg.Username),
		Password: firstNonEmpty(opt.password, cfg.Password),
		Request: rules.RequestOptions{
			PlainHTTP: opt.plainHTTP || cfg.PlainHTTP,
			Header:    header,
			UserAgent: "iac-rules/" + version,
		},
	}

	handle, err := newPuller().PullURL(ctx, rawURL, pullOptions)
	if err != nil {
		return err
	}

	fmt.Printf("Pulled %s (%d rule files)\n", handle.RulesBundlePath, handle.Files)
	return nil
}

// parseHeaders converts "Key: Value" pairs into a header.
func parseHeaders(values []string) (http.Header, error) {
	if len(values) == 0 {
		return nil, nil
	}
	h := http.Header{}
	for _, v := range values {
		key, val, ok := strings.Cut(v, ":")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid header %q: expected 'Key: Value'", v)
		}
		h.Add(key, strings.TrimSpace(val))
	}
	return h, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
