package config

import (
	"os"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/m-mizutani/buildgate/pkg/domain/interfaces"
	"github.com/m-mizutani/buildgate/pkg/domain/model"
	"github.com/m-mizutani/buildgate/pkg/strategy"
)

// Strategy holds build strategy configuration
type Strategy struct {
	File                    string
	IgnoreTargetOnlyChanges bool
	IgnoreUntrustedChanges  bool
	Checkout                string
}

// Flags returns CLI flags for build strategy configuration
func (c *Strategy) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "strategy-file",
			Usage:       "TOML file describing build strategies; overrides the ignore-* flags",
			Destination: &c.File,
			Sources:     cli.EnvVars("BUILDGATE_STRATEGY_FILE"),
		},
		&cli.BoolFlag{
			Name:        "ignore-target-only-changes",
			Usage:       "Skip pull request builds when only the target branch moved",
			Destination: &c.IgnoreTargetOnlyChanges,
			Sources:     cli.EnvVars("BUILDGATE_IGNORE_TARGET_ONLY_CHANGES"),
		},
		&cli.BoolFlag{
			Name:        "ignore-untrusted-changes",
			Usage:       "Skip pull request builds whose revision is not trusted",
			Destination: &c.IgnoreUntrustedChanges,
			Sources:     cli.EnvVars("BUILDGATE_IGNORE_UNTRUSTED_CHANGES"),
		},
		&cli.StringFlag{
			Name:        "checkout",
			Usage:       "Pull request checkout strategy (merge, head)",
			Value:       string(model.CheckoutMerge),
			Destination: &c.Checkout,
			Sources:     cli.EnvVars("BUILDGATE_CHECKOUT"),
		},
	}
}

// Configure returns the configured build strategies
func (c *Strategy) Configure() ([]interfaces.BuildStrategy, error) {
	if c.File == "" {
		return []interfaces.BuildStrategy{
			strategy.NewChangeRequest(c.IgnoreTargetOnlyChanges, c.IgnoreUntrustedChanges),
		}, nil
	}

	data, err := os.ReadFile(c.File)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read strategy file", goerr.V("path", c.File))
	}

	strategies, err := strategy.LoadTOML(data)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to load strategy file", goerr.V("path", c.File))
	}
	return strategies, nil
}

// CheckoutStrategy returns the validated checkout strategy
func (c *Strategy) CheckoutStrategy() (model.CheckoutStrategy, error) {
	switch s := model.CheckoutStrategy(c.Checkout); s {
	case model.CheckoutMerge, model.CheckoutHead:
		return s, nil
	case "":
		return model.CheckoutMerge, nil
	default:
		return "", goerr.New("invalid checkout strategy", goerr.V("checkout", c.Checkout))
	}
}
