package main

import (
	"github.com/spf13/cobra"

	"github.com/vango-dev/vserve/internal/config"
	"github.com/vango-dev/vserve/internal/testrunner"
)

func testCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "test [args...]",
		Short: "Run tests",
		Long: `Run the project's tests.

Every argument is passed through to the test runner (go test by default),
followed by the runner's config flag when one is configured. The absolute
path of the test configuration is exported as VSERVE_TEST_CONFIG.

The runner is configured under "test" in vserve.yaml or with
VSERVE_TEST_PROGRAM, VSERVE_TEST_BASE_ARGS, VSERVE_TEST_CONFIG_PATH and
VSERVE_TEST_CONFIG_FLAG.

Examples:
  vserve test
  vserve test ./... -run TestHome
  vserve test -race -count=1 ./internal/...`,
		DisableFlagParsing: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(config.NewViper(), configFile(""))
			if err != nil {
				return err
			}

			r := testrunner.New(cfg.Test)
			r.Stdin = cmd.InOrStdin()
			r.Stdout = cmd.OutOrStdout()
			r.Stderr = cmd.ErrOrStderr()
			return r.Run(cmd.Context(), args)
		},
	}
	return cmd
}
