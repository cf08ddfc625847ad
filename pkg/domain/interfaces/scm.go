package interfaces

import (
	"context"

	"github.com/m-mizutani/buildgate/pkg/domain/model"
)

// Source computes trust for revisions of one repository. Implementations may
// perform network I/O and must honor ctx cancellation.
type Source interface {
	// TrustedRevision returns the nearest revision trusted to build with
	// privileged credentials. It equals rev when rev itself is trusted.
	TrustedRevision(ctx context.Context, rev model.Revision) (model.Revision, error)
}

// SourceFactory returns the Source for a repository
type SourceFactory interface {
	Source(repo model.Repository) Source
}

// BuildStrategy decides whether a head revision is built automatically
type BuildStrategy interface {
	IsApplicable(head model.Head) bool
	IsAutomaticBuild(ctx context.Context, source Source, head model.Head, current, previous model.Revision) bool
	Equal(other BuildStrategy) bool
	String() string
}

// RevisionStore keeps the last built revision of each head
type RevisionStore interface {
	// GetLastBuilt returns nil without error when the head was never built
	GetLastBuilt(ctx context.Context, key model.HeadKey) (model.Revision, error)
	PutLastBuilt(ctx context.Context, key model.HeadKey, rev model.Revision) error
}

// Notifier announces build decisions
type Notifier interface {
	NotifyDecision(ctx context.Context, decision *model.BuildDecision) error
}

// BuildArchive keeps a durable copy of every build request
type BuildArchive interface {
	PutBuildRequest(ctx context.Context, req *model.BuildRequest) error
}
