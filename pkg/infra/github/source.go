package github

import (
	"context"
	"time"

	"github.com/koding/cache"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"

	"github.com/m-mizutani/buildgate/pkg/domain/interfaces"
	"github.com/m-mizutani/buildgate/pkg/domain/model"
)

// DefaultTrustedPermissions are the repository permissions whose holders may
// open trusted pull requests from forks
var DefaultTrustedPermissions = []string{"admin", "maintain", "write"}

// SourceFactory creates trust sources sharing one permission cache
type SourceFactory struct {
	client  interfaces.GitHubClient
	trusted map[string]struct{}
	ttl     time.Duration
	cache   *cache.MemoryTTL
}

// SourceOption configures a SourceFactory
type SourceOption func(*SourceFactory)

// WithTrustedPermissions replaces DefaultTrustedPermissions
func WithTrustedPermissions(perms ...string) SourceOption {
	return func(f *SourceFactory) {
		f.trusted = make(map[string]struct{}, len(perms))
		for _, p := range perms {
			f.trusted[p] = struct{}{}
		}
	}
}

// WithPermissionCacheTTL sets how long permission lookups are remembered
func WithPermissionCacheTTL(ttl time.Duration) SourceOption {
	return func(f *SourceFactory) {
		if ttl > 0 {
			f.ttl = ttl
		}
	}
}

// NewSourceFactory creates a SourceFactory. Permission lookups are cached for
// 5 minutes by default. Expired entries are collected in the background until
// Close is called.
func NewSourceFactory(client interfaces.GitHubClient, opts ...SourceOption) *SourceFactory {
	f := &SourceFactory{
		client: client,
		ttl:    5 * time.Minute,
	}
	WithTrustedPermissions(DefaultTrustedPermissions...)(f)

	for _, opt := range opts {
		opt(f)
	}

	f.cache = cache.NewMemoryWithTTL(f.ttl)
	f.cache.StartGC(f.ttl)
	return f
}

// Close stops collecting expired permission entries
func (f *SourceFactory) Close() {
	f.cache.StopGC()
}

// Source returns the trust source of repo
func (f *SourceFactory) Source(repo model.Repository) interfaces.Source {
	return &Source{factory: f, repo: repo}
}

// Source computes trusted revisions of one GitHub repository
type Source struct {
	factory *SourceFactory
	repo    model.Repository
}

// TrustedRevision returns rev when it is trusted. A pull request from a fork
// whose author lacks a trusted permission is replaced by its target revision.
func (s *Source) TrustedRevision(ctx context.Context, rev model.Revision) (model.Revision, error) {
	cr, ok := rev.(*model.ChangeRequestRevision)
	if !ok || cr.ChangeRequest().Origin() != model.OriginFork {
		return rev, nil
	}

	author := cr.ChangeRequest().Author()
	if author == "" {
		return targetOf(cr), nil
	}

	perm, err := s.permission(ctx, author)
	if err != nil {
		return nil, err
	}

	if _, ok := s.factory.trusted[perm]; ok {
		return rev, nil
	}

	ctxlog.From(ctx).Info("Pull request author is not trusted",
		"repository", s.repo.FullName(),
		"head", cr.ChangeRequest().Name(),
		"author", author,
		"permission", perm,
	)
	return targetOf(cr), nil
}

// targetOf returns the target revision of cr, or an untyped nil when the
// target is unknown
func targetOf(cr *model.ChangeRequestRevision) model.Revision {
	if cr.Target() == nil {
		return nil
	}
	return cr.Target()
}

func (s *Source) permission(ctx context.Context, user string) (string, error) {
	key := "perm:" + s.repo.FullName() + ":" + user
	if v, err := s.factory.cache.Get(key); err == nil {
		return v.(string), nil
	}

	if err := ctx.Err(); err != nil {
		return "", goerr.Wrap(err, "trust lookup interrupted", goerr.V("user", user))
	}

	if s.factory.client == nil {
		return "", goerr.New("no GitHub client configured", goerr.V("user", user))
	}

	perm, err := s.factory.client.GetPermissionLevel(ctx, s.repo.Owner, s.repo.Name, user)
	if err != nil {
		return "", goerr.Wrap(err, "failed to look up author permission",
			goerr.V("repository", s.repo.FullName()),
			goerr.V("user", user),
		)
	}

	if err := s.factory.cache.Set(key, perm); err != nil {
		ctxlog.From(ctx).Warn("Failed to cache permission", "error", err)
	}
	return perm, nil
}
