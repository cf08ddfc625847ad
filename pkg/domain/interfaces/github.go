package interfaces

import (
	"context"

	"github.com/google/go-github/v75/github"
)

// GitHubClient defines operations for interacting with GitHub API
type GitHubClient interface {
	// GetPermissionLevel returns the permission (admin, maintain, write, triage, read, none) of user on a repository
	GetPermissionLevel(ctx context.Context, owner, repo, user string) (string, error)

	// ListOpenPullRequests lists open pull requests whose base is the given branch
	ListOpenPullRequests(ctx context.Context, owner, repo, base string) ([]*github.PullRequest, error)

	// Dispatch sends a repository_dispatch event with the given payload
	Dispatch(ctx context.Context, owner, repo, eventType string, payload any) error
}
