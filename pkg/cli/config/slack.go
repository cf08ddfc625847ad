package config

import (
	"github.com/urfave/cli/v3"

	"github.com/m-mizutani/buildgate/pkg/domain/interfaces"
	"github.com/m-mizutani/buildgate/pkg/infra/slack"
)

// Slack holds Slack notification configuration
type Slack struct {
	Token   string `masq:"secret"`
	Channel string
}

// Flags returns CLI flags for Slack configuration
func (c *Slack) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "slack-token",
			Usage:       "Slack bot token for build notifications",
			Destination: &c.Token,
			Sources:     cli.EnvVars("BUILDGATE_SLACK_TOKEN"),
		},
		&cli.StringFlag{
			Name:        "slack-channel",
			Usage:       "Slack channel ID for build notifications",
			Destination: &c.Channel,
			Sources:     cli.EnvVars("BUILDGATE_SLACK_CHANNEL"),
		},
	}
}

// Configure returns a notifier, or nil when Slack is not configured
func (c *Slack) Configure() interfaces.Notifier {
	if c.Token == "" || c.Channel == "" {
		return nil
	}
	return slack.New(c.Token, c.Channel)
}
