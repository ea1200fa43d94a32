// Command vserve serves a production build and forwards test runs.
package main

import (
	"context"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/vango-dev/vserve/internal/config"
	"github.com/vango-dev/vserve/internal/errors"
	"github.com/vango-dev/vserve/internal/launch"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	errors.AutoColor(os.Stderr)
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

// run executes the CLI and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	root := rootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if err != nil && !childReported(err) {
		errors.Fprint(stderr, err)
	}
	return launch.ExitCode(err)
}

// childReported reports whether err is a test runner exit whose output the
// child process already wrote.
func childReported(err error) bool {
	var ce *errors.CodedError
	return errors.As(err, &ce) && ce.Code == "E150" && ce.ExitCode() > 0
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "vserve",
		Short: "Serve production builds",
		Long: `vserve serves the last production build of an application.

It reads the build manifest from the public directory, loads the server
bundle it names, and serves:

  • /build/*  hashed build output, cached for a year
  • /*        other public files, revalidated with ETags
  • anything else, rendered by the server bundle`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return config.LoadDotEnv(config.DotEnvFile)
		},
	}

	root.AddCommand(
		startCmd(),
		testCmd(),
		versionCmd(),
	)
	return root
}

// gzAlias accepts --gz as another spelling of --gzip.
func gzAlias(_ *pflag.FlagSet, name string) pflag.NormalizedName {
	if name == "gz" {
		name = "gzip"
	}
	return pflag.NormalizedName(name)
}

// configFile returns the --config value, falling back to VSERVE_CONFIG_FILE.
func configFile(flag string) string {
	if flag != "" {
		return flag
	}
	return os.Getenv(config.EnvPrefix + "_CONFIG_FILE")
}
