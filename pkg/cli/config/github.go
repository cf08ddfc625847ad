package config

import (
	"os"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/m-mizutani/buildgate/pkg/domain/interfaces"
	"github.com/m-mizutani/buildgate/pkg/infra/github"
	"github.com/m-mizutani/buildgate/pkg/usecase"
)

// GitHub holds GitHub App configuration
type GitHub struct {
	AppID          int64
	InstallationID int64
	PrivateKey     string `masq:"secret"`
	PrivateKeyFile string
	WebhookSecret  string `masq:"secret"`

	DispatchEventType  string
	TrustedPermissions []string
}

// Flags returns CLI flags for GitHub configuration
func (c *GitHub) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "github-webhook-secret",
			Usage:       "GitHub webhook secret",
			Required:    true,
			Destination: &c.WebhookSecret,
			Sources:     cli.EnvVars("BUILDGATE_GITHUB_WEBHOOK_SECRET"),
		},
		&cli.Int64Flag{
			Name:        "github-app-id",
			Usage:       "GitHub App ID",
			Destination: &c.AppID,
			Sources:     cli.EnvVars("BUILDGATE_GITHUB_APP_ID"),
		},
		&cli.Int64Flag{
			Name:        "github-installation-id",
			Usage:       "GitHub App installation ID",
			Destination: &c.InstallationID,
			Sources:     cli.EnvVars("BUILDGATE_GITHUB_INSTALLATION_ID"),
		},
		&cli.StringFlag{
			Name:        "github-private-key",
			Usage:       "GitHub App private key (PEM)",
			Destination: &c.PrivateKey,
			Sources:     cli.EnvVars("BUILDGATE_GITHUB_PRIVATE_KEY"),
		},
		&cli.StringFlag{
			Name:        "github-private-key-file",
			Usage:       "Path to GitHub App private key file",
			Destination: &c.PrivateKeyFile,
			Sources:     cli.EnvVars("BUILDGATE_GITHUB_PRIVATE_KEY_FILE"),
		},
		&cli.StringFlag{
			Name:        "dispatch-event-type",
			Usage:       "repository_dispatch event type sent for automatic builds",
			Value:       usecase.DefaultDispatchEventType,
			Destination: &c.DispatchEventType,
			Sources:     cli.EnvVars("BUILDGATE_DISPATCH_EVENT_TYPE"),
		},
		&cli.StringSliceFlag{
			Name:        "trusted-permission",
			Usage:       "Repository permission that makes a fork author trusted (repeatable)",
			Value:       github.DefaultTrustedPermissions,
			Destination: &c.TrustedPermissions,
			Sources:     cli.EnvVars("BUILDGATE_TRUSTED_PERMISSIONS"),
		},
	}
}

// Enabled reports whether GitHub App credentials are configured
func (c *GitHub) Enabled() bool {
	return c.AppID != 0 || c.InstallationID != 0 || c.PrivateKey != "" || c.PrivateKeyFile != ""
}

// Configure creates a GitHub App client. It returns nil when no App
// credentials are configured.
func (c *GitHub) Configure() (interfaces.GitHubClient, error) {
	if !c.Enabled() {
		return nil, nil
	}

	if c.AppID == 0 || c.InstallationID == 0 {
		return nil, goerr.New("both github-app-id and github-installation-id are required",
			goerr.V("app_id", c.AppID),
			goerr.V("installation_id", c.InstallationID))
	}

	key := []byte(c.PrivateKey)
	if c.PrivateKeyFile != "" {
		data, err := os.ReadFile(c.PrivateKeyFile)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to read GitHub App private key", goerr.V("path", c.PrivateKeyFile))
		}
		key = data
	}
	if len(key) == 0 {
		return nil, goerr.New("github-private-key or github-private-key-file is required")
	}

	return github.NewClient(c.AppID, c.InstallationID, key)
}
