package github

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/bradleyfalzon/ghinstallation/v2"
	"github.com/google/go-github/v75/github"
	"github.com/m-mizutani/goerr/v2"

	"github.com/m-mizutani/buildgate/pkg/domain/interfaces"
)

type client struct {
	githubClient *github.Client
}

// NewClient creates a new GitHub client with App authentication
func NewClient(appID, installationID int64, privateKey []byte) (interfaces.GitHubClient, error) {
	// Create GitHub App transport
	itr, err := ghinstallation.New(http.DefaultTransport, appID, installationID, privateKey)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create GitHub App transport",
			goerr.V("app_id", appID),
			goerr.V("installation_id", installationID),
		)
	}

	return NewClientWithGitHub(github.NewClient(&http.Client{Transport: itr})), nil
}

// NewClientFromConfig is NewClient with the private key given as PEM text
func NewClientFromConfig(appID, installationID int64, privateKey string) (interfaces.GitHubClient, error) {
	return NewClient(appID, installationID, []byte(privateKey))
}

// NewClientWithGitHub wraps an already configured go-github client
func NewClientWithGitHub(githubClient *github.Client) interfaces.GitHubClient {
	return &client{
		githubClient: githubClient,
	}
}

// GetPermissionLevel returns the permission of user on owner/repo
func (c *client) GetPermissionLevel(ctx context.Context, owner, repo, user string) (string, error) {
	level, _, err := c.githubClient.Repositories.GetPermissionLevel(ctx, owner, repo, user)
	if err != nil {
		return "", goerr.Wrap(err, "failed to get permission level",
			goerr.V("owner", owner),
			goerr.V("repo", repo),
			goerr.V("user", user),
		)
	}

	return level.GetPermission(), nil
}

// ListOpenPullRequests lists every open pull request targeting base
func (c *client) ListOpenPullRequests(ctx context.Context, owner, repo, base string) ([]*github.PullRequest, error) {
	opts := &github.PullRequestListOptions{
		State: "open",
		Base:  base,
		ListOptions: github.ListOptions{
			PerPage: 100,
		},
	}

	var result []*github.PullRequest
	for {
		prs, resp, err := c.githubClient.PullRequests.List(ctx, owner, repo, opts)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to list pull requests",
				goerr.V("owner", owner),
				goerr.V("repo", repo),
				goerr.V("base", base),
				goerr.V("page", opts.Page),
			)
		}
		result = append(result, prs...)

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return result, nil
}

// Dispatch sends a repository_dispatch event carrying payload as client_payload
func (c *client) Dispatch(ctx context.Context, owner, repo, eventType string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return goerr.Wrap(err, "failed to encode dispatch payload")
	}
	msg := json.RawMessage(raw)

	if _, _, err := c.githubClient.Repositories.Dispatch(ctx, owner, repo, github.DispatchRequestOptions{
		EventType:     eventType,
		ClientPayload: &msg,
	}); err != nil {
		return goerr.Wrap(err, "failed to dispatch repository event",
			goerr.V("owner", owner),
			goerr.V("repo", repo),
			goerr.V("event_type", eventType),
		)
	}

	return nil
}
