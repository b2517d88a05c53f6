package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/John-Robertt/domainrouter-go/internal/config"
	"github.com/John-Robertt/domainrouter-go/internal/httpapi"
	"github.com/John-Robertt/domainrouter-go/internal/logging"
)

// globalOptions holds the persistent flags and what PersistentPreRunE
// derives from them.
type globalOptions struct {
	configPath string
	verbosity  int
	logFormat  string
	logFile    string

	cfg       *config.Config
	logCloser io.Closer
}

func newRootCmd() *cobra.Command {
	g := &globalOptions{}
	cmd := &cobra.Command{
		Use:   "domainrouter",
		Short: "Normalize, reduce and publish domain/IP routing rule lists",
		Long: `domainrouter reads rule lists in Clash, Surge or plain text form,
normalizes and deduplicates them, and publishes the result as Clash
rule providers, Surge lists, dnsmasq files and a rulesets.toml index.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return g.setup(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if g.logCloser != nil {
				_ = g.logCloser.Close()
			}
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&g.configPath, "config", "c", "", "config file (default ./domainrouter.yaml or $XDG_CONFIG_HOME/domainrouter/config.yaml)")
	flags.CountVarP(&g.verbosity, "verbose", "v", "Increase verbosity (-v INFO, -vv DEBUG, -vvv TRACE)")
	flags.StringVar(&g.logFormat, "log-format", "", "log format: console or json (default: console on a terminal)")
	flags.StringVar(&g.logFile, "log-file", "", "also append logs to this file")

	cmd.AddCommand(
		newBuildCmd(g),
		newReduceCmd(g),
		newServeCmd(g),
		newHealthcheckCmd(g),
		newAuditCmd(g),
		newVersionCmd(),
	)
	return cmd
}

// setup loads the config, then configures logging from the flags with the
// config's log section as fallback.
func (g *globalOptions) setup(cmd *cobra.Command) error {
	cfg, path, cfgErr := config.Load(g.configPath)

	opt := logging.Options{
		Verbosity: g.verbosity,
		Format:    g.logFormat,
		File:      g.logFile,
		Out:       cmd.ErrOrStderr(),
	}
	if cfg != nil {
		if opt.Verbosity == 0 {
			opt.Verbosity = cfg.Log.Verbosity
		}
		if opt.Format == "" {
			opt.Format = cfg.Log.Format
		}
		if opt.File == "" {
			opt.File = cfg.Log.File
		}
	}
	closer, err := logging.Setup(opt)
	if err != nil {
		log.Warn().Err(err).Str("file", opt.File).Msg("file logging disabled, logging to console only")
	}
	g.logCloser = closer

	if cfgErr != nil {
		return cfgErr
	}
	g.cfg = cfg
	log.Debug().Str("command", cmd.Name()).Str("config", path).Msg("command started")
	return nil
}

// formatError renders err for the terminal. Typed pipeline errors print
// their code and location; anything else prints as is.
func formatError(err error) string {
	app, _, ok := httpapi.AppErrorOf(err)
	if !ok {
		return "Error: " + err.Error()
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", app.Code, app.Message)

	var where []string
	if app.Stage != "" {
		where = append(where, "stage="+app.Stage)
	}
	if app.URL != "" {
		where = append(where, "url="+app.URL)
	}
	if app.Line > 0 {
		where = append(where, fmt.Sprintf("line=%d", app.Line))
	}
	if len(where) > 0 {
		fmt.Fprintf(&b, " (%s)", strings.Join(where, ", "))
	}
	if app.Snippet != "" {
		fmt.Fprintf(&b, "\n  > %s", app.Snippet)
	}
	if app.Hint != "" {
		fmt.Fprintf(&b, "\n  hint: %s", app.Hint)
	}
	return b.String()
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "domainrouter version %s\n", version)
			fmt.Fprintf(out, "  commit: %s\n", commit)
			fmt.Fprintf(out, "  built:  %s\n", date)
		},
	}
}
