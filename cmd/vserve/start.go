package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vango-dev/vserve/internal/config"
	"github.com/vango-dev/vserve/internal/launch"
	"github.com/vango-dev/vserve/internal/logging"
)

func startCmd() *cobra.Command {
	var cfgFile string
	d := config.Default()

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Serve the last built application",
		Long: `Serve the last built application.

Settings come from flags, then the environment (HOST, HOSTNAME, PORT, GZIP
and VSERVE_*), then vserve.yaml or the file given with --config. A .env file
in the working directory is loaded first.`,
		Example: `  vserve start
  vserve start --port 8081
  vserve start --gz=false --reporter json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			v := config.NewViper()
			if err := config.BindFlags(v, cmd.Flags()); err != nil {
				return err
			}
			cfg, err := config.Load(v, configFile(cfgFile))
			if err != nil {
				return err
			}

			logger, err := logging.New(logging.Options{
				Level:  cfg.LogLevel,
				Format: cfg.LogFormat,
				Writer: cmd.ErrOrStderr(),
			})
			if err != nil {
				return err
			}
			if f := cfg.File(); f != "" {
				logger.Debug("using config file", "path", f)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			srv := launch.New(launch.Options{
				Config: cfg,
				Stdout: cmd.OutOrStdout(),
				Stderr: cmd.ErrOrStderr(),
				Logger: logger,
			})
			return srv.Run(ctx)
		},
	}

	flags := cmd.Flags()
	flags.SetNormalizeFunc(gzAlias)
	flags.StringP("host", "H", d.Host, "The host to bind to")
	flags.IntP("port", "p", d.Port, "The port to bind to")
	flags.Bool("gzip", d.Gzip, "Enable or disable gzip compression (alias --gz)")
	flags.String("reporter", d.Reporter, "Step reporter: spec, json or silent")
	flags.String("public-dir", d.PublicDir, "Directory holding the build manifest and public files")
	flags.String("metrics-addr", "", "Serve Prometheus metrics on this address")
	flags.String("log-level", d.LogLevel, "Log level: debug, info, warn or error")
	flags.String("log-format", d.LogFormat, "Log format: text or json")
	flags.Duration("shutdown-timeout", d.ShutdownTimeout, "How long to wait for requests to finish on shutdown")
	flags.StringVar(&cfgFile, "config", "", "Config file (default vserve.yaml; also VSERVE_CONFIG_FILE)")

	return cmd
}
