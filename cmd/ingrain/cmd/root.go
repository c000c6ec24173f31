package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/stevemurr/ingrain"
	"github.com/stevemurr/ingrain/internal/config"
)

type rootOptions struct {
	modelServer     string
	inferenceServer string
	retries         uint
	retryDelay      time.Duration
	timeout         time.Duration
	envFile         string
	logLevel        string
	logFormat       string

	cfg *config.Config
}

// NewRootCmd builds the ingrain command tree.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:          "ingrain",
		Short:        "Command line client for the Ingrain model and inference servers.",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.load(cmd)
		},
	}
	cmd.DisableAutoGenTag = true

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.modelServer, "model-server", "", "model server base URL, overrides INGRAIN_MODEL_SERVER_URL")
	flags.StringVar(&opts.inferenceServer, "inference-server", "", "inference server base URL, overrides INGRAIN_INFERENCE_SERVER_URL")
	flags.UintVar(&opts.retries, "retries", 0, "retries for inference calls on network errors and 5xx responses")
	flags.DurationVar(&opts.retryDelay, "retry-delay", 0, "delay between retries")
	flags.DurationVar(&opts.timeout, "timeout", 0, "per-request timeout, 0 for none")
	flags.StringVar(&opts.envFile, "env-file", "", "load environment variables from this file instead of .env")
	flags.StringVarP(&opts.logLevel, "log-level", "l", "", "set log level to debug, info, warn or error (case-insensitive)")
	flags.StringVarP(&opts.logFormat, "log-format", "f", "", "set log format to json or text")

	cmd.AddCommand(
		newHealthCmd(opts),
		newModelsCmd(opts),
		newLoadCmd(opts),
		newUnloadCmd(opts),
		newDeleteCmd(opts),
		newEmbedCmd(opts),
		newEmbedTextCmd(opts),
		newEmbedImageCmd(opts),
		newClassifyCmd(opts),
		newLabelsCmd(opts),
		newDimsCmd(opts),
		newMetricsCmd(opts),
		newDiscoverCmd(opts),
	)
	return cmd
}

// load reads the environment configuration and applies flags set on the
// command line on top of it.
func (o *rootOptions) load(cmd *cobra.Command) error {
	var envFiles []string
	if o.envFile != "" {
		envFiles = append(envFiles, o.envFile)
	}
	cfg, err := config.LoadConfig(cmd.Context(), envFiles...)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	changed := func(name string) bool {
		f := cmd.Flag(name)
		return f != nil && f.Changed
	}
	if changed("model-server") {
		cfg.ModelServerURL = o.modelServer
	}
	if changed("inference-server") {
		cfg.InferenceServerURL = o.inferenceServer
	}
	if changed("retries") {
		cfg.Client.Retries = o.retries
	}
	if changed("retry-delay") {
		cfg.Client.RetryDelay = o.retryDelay
	}
	if changed("timeout") {
		cfg.Client.Timeout = o.timeout
	}
	if changed("log-level") {
		cfg.Log.Level = o.logLevel
	}
	if changed("log-format") {
		cfg.Log.Format = o.logFormat
	}

	setupLog(cmd.ErrOrStderr(), cfg.Log.Level, cfg.Log.Format)
	o.cfg = cfg
	return nil
}

func (o *rootOptions) client() (*ingrain.Client, error) {
	return ingrain.New(o.cfg.ModelServerURL, o.cfg.InferenceServerURL,
		ingrain.WithLogger(slog.Default()),
		ingrain.WithTimeout(o.cfg.Client.Timeout),
		ingrain.WithRetries(o.cfg.Client.Retries, o.cfg.Client.RetryDelay),
	)
}

// setupLog installs the default logger. Results go to stdout, so logs go
// to w.
func setupLog(w io.Writer, lvl, format string) {
	logLevel := slog.LevelInfo.Level()
	if len(lvl) > 0 {
		// logLevel not change if unmarshall failed
		if err := logLevel.UnmarshalText([]byte(lvl)); err != nil {
			fmt.Fprintln(w, "input invalid log level, use default log level INFO")
		}
	}
	opt := &slog.HandlerOptions{AddSource: false, Level: logLevel}
	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(w, opt)
	default:
		handler = slog.NewTextHandler(w, opt)
	}
	slog.SetDefault(slog.New(handler))
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
