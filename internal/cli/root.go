// Package cli implements the gohttp command line tool
package cli

import (
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/jzx17/gohttp/internal/config"
	"github.com/jzx17/gohttp/pkg/httpclient"
	"github.com/jzx17/gohttp/pkg/response"
	"github.com/jzx17/gohttp/pkg/types"
)

// Methods that get a subcommand each
var methods = []types.Method{
	types.MethodGet,
	types.MethodHead,
	types.MethodPost,
	types.MethodPut,
	types.MethodPatch,
	types.MethodDelete,
	types.MethodOptions,
	types.MethodTrace,
}

// globalOptions are shared by every subcommand
type globalOptions struct {
	configPath string
	verbose    bool
	timeout    time.Duration
	retries    int
	insecure   bool
}

// requestOptions are the flags of one request subcommand
type requestOptions struct {
	headers []string
	data    string
	form    []string
	retry   string
	include bool
	fail    bool
}

// NewRootCommand creates the root command
func NewRootCommand() *cobra.Command {
	g := &globalOptions{}

	cmd := &cobra.Command{
		Use:   "gohttp",
		Short: "gohttp - HTTP requests with retries",
		Long: `gohttp sends HTTP requests with exponential backoff retries,
Retry-After handling and best-effort JSON decoding.

Retries are off unless enabled in the config file or with --retries.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	addGlobalFlags(cmd.PersistentFlags(), g)

	for _, method := range methods {
		cmd.AddCommand(newMethodCommand(method, g))
	}

	return cmd
}

func addGlobalFlags(fs *pflag.FlagSet, g *globalOptions) {
	fs.StringVarP(&g.configPath, "config", "c", "", "Path to a YAML config file")
	fs.BoolVarP(&g.verbose, "verbose", "v", false, "Log every attempt")
	fs.DurationVarP(&g.timeout, "timeout", "t", 0, "Per-attempt timeout (overrides config)")
	fs.IntVarP(&g.retries, "retries", "r", 0, "Enable retries with this maximum (overrides config)")
	fs.BoolVarP(&g.insecure, "insecure", "k", false, "Skip TLS certificate verification")
}

func addRequestFlags(fs *pflag.FlagSet, o *requestOptions) {
	fs.StringArrayVarP(&o.headers, "header", "H", nil, "Request header as 'Name: value' (repeatable)")
	fs.StringVarP(&o.data, "data", "d", "", "Raw request body")
	fs.StringArrayVarP(&o.form, "form", "F", nil, "Form field as key=value (repeatable); sent as the query string for GET")
	fs.StringVar(&o.retry, "retry", "global", "Retry override: global, enable or disable")
	fs.BoolVarP(&o.include, "include", "i", false, "Print the status line and response headers")
	fs.BoolVarP(&o.fail, "fail", "f", false, "Exit with an error on non-2xx responses")
}

func newMethodCommand(method types.Method, g *globalOptions) *cobra.Command {
	o := &requestOptions{}

	cmd := &cobra.Command{
		Use:   strings.ToLower(method) + " URL",
		Short: fmt.Sprintf("Send a %s request", method),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, method, args[0], g, o)
		},
	}

	addRequestFlags(cmd.Flags(), o)
	return cmd
}

func run(cmd *cobra.Command, method types.Method, rawURL string, g *globalOptions, o *requestOptions) error {
	f, err := config.Load(g.configPath)
	if err != nil {
		return err
	}

	option, ok := types.ParseRetryOption(o.retry)
	if !ok {
		return fmt.Errorf("invalid --retry value %q", o.retry)
	}

	headers, err := parseHeaders(o.headers)
	if err != nil {
		return err
	}

	body, err := requestBody(o)
	if err != nil {
		return err
	}

	logger := newLogger(cmd.ErrOrStderr(), f.Log, g.verbose)
	opts := append(f.Options(), httpclient.WithLogger(logger))
	if cmd.Flags().Changed("timeout") {
		opts = append(opts, httpclient.WithTimeout(g.timeout))
	}
	if cmd.Flags().Changed("retries") {
		opts = append(opts, httpclient.WithRetries(g.retries > 0), httpclient.WithMaxRetries(g.retries))
	}
	if g.insecure {
		opts = append(opts, httpclient.WithVerifyPeer(false), httpclient.WithVerifyHost(false))
	}

	client, err := httpclient.New(opts...)
	if err != nil {
		return err
	}
	defer client.Close()

	resp, err := client.Do(cmd.Context(), method, rawURL, headers, body, option)
	if err != nil {
		return err
	}

	logger.Debug().
		Int("status", resp.StatusCode).
		Int("attempts", resp.Stats.Attempts).
		Dur("total_wait", resp.Stats.TotalWait).
		Dur("elapsed", resp.Stats.Elapsed).
		Msg("Request finished")

	if err := printResponse(cmd.OutOrStdout(), resp, o.include); err != nil {
		return err
	}

	if o.fail && !resp.IsSuccess() {
		return fmt.Errorf("server responded with status %d", resp.StatusCode)
	}
	return nil
}

// parseHeaders converts "Name: value" flags into a header map
func parseHeaders(lines []string) (map[string]string, error) {
	headers := make(map[string]string, len(lines))
	for _, line := range lines {
		name, value, found := strings.Cut(line, ":")
		name = strings.TrimSpace(name)
		if !found || name == "" {
			return nil, fmt.Errorf("invalid header %q, expected 'Name: value'", line)
		}
		headers[name] = strings.TrimSpace(value)
	}
	return headers, nil
}

// requestBody returns the raw body, or the form fields as url.Values
func requestBody(o *requestOptions) (any, error) {
	if o.data != "" && len(o.form) > 0 {
		return nil, fmt.Errorf("--data and --form cannot be combined")
	}
	if o.data != "" {
		return o.data, nil
	}
	if len(o.form) == 0 {
		return nil, nil
	}

	values := url.Values{}
	for _, field := range o.form {
		key, value, found := strings.Cut(field, "=")
		if !found || key == "" {
			return nil, fmt.Errorf("invalid form field %q, expected key=value", field)
		}
		values.Add(key, value)
	}
	return values, nil
}

func printResponse(w io.Writer, resp *response.Response, include bool) error {
	if include {
		if _, err := fmt.Fprintf(w, "%d\n", resp.StatusCode); err != nil {
			return err
		}
		for _, name := range resp.Headers.Names() {
			for _, value := range resp.Headers[name] {
				if _, err := fmt.Fprintf(w, "%s: %s\n", name, value); err != nil {
					return err
				}
			}
		}
		if _, err := io.WriteString(w, "\n"); err != nil {
			return err
		}
	}

	if len(resp.RawBody) == 0 {
		return nil
	}
	if _, err := w.Write(resp.RawBody); err != nil {
		return err
	}
	if resp.RawBody[len(resp.RawBody)-1] != '\n' {
		_, err := io.WriteString(w, "\n")
		return err
	}
	return nil
}

func newLogger(w io.Writer, cfg config.Log, verbose bool) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	if verbose && level > zerolog.DebugLevel {
		level = zerolog.DebugLevel
	}

	return zerolog.New(zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: time.RFC3339,
		NoColor:    !cfg.Pretty,
	}).With().Timestamp().Logger().Level(level)
}
