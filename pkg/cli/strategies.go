package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/m-mizutani/buildgate/pkg/cli/config"
	"github.com/m-mizutani/buildgate/pkg/strategy"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func cmdStrategies() *cli.Command {
	var strategyCfg config.Strategy

	return &cli.Command{
		Name:  "strategies",
		Usage: "Print the configured build strategies as TOML and list available ones",
		Flags: strategyCfg.Flags(),
		Action: func(ctx context.Context, c *cli.Command) error {
			return printStrategies(os.Stdout, &strategyCfg)
		},
	}
}

func printStrategies(w io.Writer, cfg *config.Strategy) error {
	strategies, err := cfg.Configure()
	if err != nil {
		return err
	}

	data, err := strategy.MarshalTOML(strategies)
	if err != nil {
		return goerr.Wrap(err, "failed to encode strategies")
	}

	if _, err := fmt.Fprintf(w, "%s\n# Available strategies\n", data); err != nil {
		return goerr.Wrap(err, "failed to write strategies")
	}
	for _, d := range strategy.Descriptors() {
		if _, err := fmt.Fprintf(w, "# [%s] %s: %s\n", d.Symbol, d.DisplayName, strings.Join(d.Params, ", ")); err != nil {
			return goerr.Wrap(err, "failed to write strategies")
		}
	}
	return nil
}
