// Command parley serves a single-turn chat API backed by a hosted model.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/teilomillet/parley/config"
	"github.com/teilomillet/parley/server/processing"
	"github.com/teilomillet/parley/server/provider"
	"go.uber.org/zap"
)

// Version is the release string printed by the version command.
const Version = "v0.1.0"

const (
	exitOK    = 0
	exitError = 1
)

func main() {
	os.Exit(realMain())
}

func realMain() int {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitError
	}
	return exitOK
}

type rootOptions struct {
	configPath string
	envFiles   []string
}

// load resolves the configuration: defaults, then the optional file, then
// the environment (after .env files have been loaded into it).
func (o *rootOptions) load(ctx context.Context) (*config.Config, error) {
	if err := config.LoadDotEnv(o.envFiles...); err != nil {
		return nil, err
	}
	return config.Resolve(ctx, o.configPath)
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "parley",
		Short:         "Single-turn chat API in front of a hosted language model.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "path to a YAML config file")
	cmd.PersistentFlags().StringSliceVar(&opts.envFiles, "env-file", []string{".env"}, ".env files to load; missing files are skipped")

	cmd.AddCommand(
		newServeCmd(opts),
		newAskCmd(opts),
		newValidateCmd(opts),
		newVersionCmd(),
	)
	return cmd
}

func newServeCmd(opts *rootOptions) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load(cmd.Context())
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
				if err := cfg.Validate(); err != nil {
					return err
				}
			}

			logger, err := newLogger(cfg.Logging)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			if err := runServer(cmd.Context(), cfg, logger); err != nil {
				logger.Error("parley failed", zap.Error(err))
				return err
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&port, "port", "p", 0, "listen port, overriding config and PARLEY_PORT")
	return cmd
}

func newAskCmd(opts *rootOptions) *cobra.Command {
	var language string

	cmd := &cobra.Command{
		Use:   "ask [text]",
		Short: "Send one prompt to the configured model and print the reply",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load(cmd.Context())
			if err != nil {
				return err
			}
			logger, err := newLogger(cfg.Logging)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			p, err := provider.New(cmd.Context(), cfg.Inference, logger)
			if err != nil {
				return err
			}
			return ask(cmd.Context(), cmd.OutOrStdout(), p, logger, processing.ChatRequest{
				Language:     language,
				FreeformText: strings.Join(args, " "),
			})
		},
	}
	cmd.Flags().StringVarP(&language, "language", "l", "english", "language the reply should be written in")
	return cmd
}

// ask runs one chat request through the same pipeline as POST /chat.
func ask(ctx context.Context, out io.Writer, p provider.Provider, logger *zap.Logger, req processing.ChatRequest) error {
	proc, err := processing.NewProcessor(p, logger)
	if err != nil {
		return err
	}
	resp, err := proc.Chat(ctx, req)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, resp.Response)
	return err
}

func newValidateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Configuration is valid")
			fmt.Fprintf(out, "provider=%s model=%s port=%d\n", cfg.Inference.Provider, cfg.Inference.ModelID, cfg.Server.Port)
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version and exit",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "parley %s\n", Version)
		},
	}
}
