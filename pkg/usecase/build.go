package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"

	"github.com/m-mizutani/buildgate/pkg/domain/interfaces"
	"github.com/m-mizutani/buildgate/pkg/domain/model"
	"github.com/m-mizutani/buildgate/pkg/strategy"
	"github.com/m-mizutani/buildgate/pkg/utils/async"
)

// DefaultDispatchEventType is the repository_dispatch event type of build requests
const DefaultDispatchEventType = "buildgate-build"

type buildUseCase struct {
	store      interfaces.RevisionStore
	sources    interfaces.SourceFactory
	client     interfaces.GitHubClient
	notifier   interfaces.Notifier
	archive    interfaces.BuildArchive
	strategies []interfaces.BuildStrategy
	eventType  string
	dispatch   async.Dispatcher
	now        func() time.Time
}

// BuildOption configures the build use case
type BuildOption func(*buildUseCase)

// WithStrategies sets the build strategies. Without strategies every non-tag head is built.
func WithStrategies(strategies ...interfaces.BuildStrategy) BuildOption {
	return func(uc *buildUseCase) {
		uc.strategies = strategies
	}
}

// WithNotifier announces every decision through notifier
func WithNotifier(notifier interfaces.Notifier) BuildOption {
	return func(uc *buildUseCase) {
		uc.notifier = notifier
	}
}

// WithArchive stores every build request in archive
func WithArchive(archive interfaces.BuildArchive) BuildOption {
	return func(uc *buildUseCase) {
		uc.archive = archive
	}
}

// WithDispatchEventType overrides DefaultDispatchEventType
func WithDispatchEventType(eventType string) BuildOption {
	return func(uc *buildUseCase) {
		uc.eventType = eventType
	}
}

// WithDispatcher replaces async.Dispatch for outbound calls
func WithDispatcher(dispatcher async.Dispatcher) BuildOption {
	return func(uc *buildUseCase) {
		uc.dispatch = dispatcher
	}
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) BuildOption {
	return func(uc *buildUseCase) {
		uc.now = now
	}
}

// NewBuild creates a new instance of BuildUseCase
func NewBuild(store interfaces.RevisionStore, sources interfaces.SourceFactory, client interfaces.GitHubClient, opts ...BuildOption) interfaces.BuildUseCase {
	uc := &buildUseCase{
		store:     store,
		sources:   sources,
		client:    client,
		eventType: DefaultDispatchEventType,
		dispatch:  async.Dispatch,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

// Evaluate decides whether the observed revision is built. A revision equal
// to the last built one is never rebuilt and is not announced. An automatic
// build records the revision as last built and dispatches a build request.
func (uc *buildUseCase) Evaluate(ctx context.Context, obs *model.Observation) (*model.BuildDecision, error) {
	logger := ctxlog.From(ctx)
	key := obs.Key()

	previous, err := uc.store.GetLastBuilt(ctx, key)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to load last built revision", goerr.V("key", key.String()))
	}

	// Strategies only judge revisions that differ from the last build
	if previous != nil && previous.Equal(obs.Revision) {
		logger.Info("Revision already built",
			"key", key.String(),
			"revision", obs.Revision.String(),
			"delivery_id", obs.DeliveryID,
		)
		return &model.BuildDecision{
			Key:      key,
			Current:  obs.Revision,
			Previous: previous,
		}, nil
	}

	source := uc.sources.Source(obs.Repository)
	automatic := strategy.Evaluate(ctx, uc.strategies, source, obs.Head(), obs.Revision, previous)

	decision := &model.BuildDecision{
		Key:       key,
		Current:   obs.Revision,
		Previous:  previous,
		Automatic: automatic,
	}

	attrs := []any{
		"key", key.String(),
		"head_kind", obs.Head().Kind(),
		"revision", obs.Revision.String(),
		"automatic", automatic,
		"delivery_id", obs.DeliveryID,
	}
	if previous != nil {
		attrs = append(attrs, "previous", previous.String())
	}
	logger.Info("Build decision", attrs...)

	if automatic {
		if err := uc.store.PutLastBuilt(ctx, key, obs.Revision); err != nil {
			return nil, goerr.Wrap(err, "failed to record last built revision", goerr.V("key", key.String()))
		}

		req := &model.BuildRequest{
			ID:          uuid.NewString(),
			DeliveryID:  obs.DeliveryID,
			Repository:  obs.Repository.FullName(),
			Head:        obs.Head().Name(),
			HeadKind:    obs.Head().Kind(),
			Revision:    obs.Revision.String(),
			RequestedAt: uc.now(),
		}
		decision.Request = req

		if uc.client != nil {
			repo := obs.Repository
			uc.dispatch(ctx, func(ctx context.Context) error {
				if err := uc.client.Dispatch(ctx, repo.Owner, repo.Name, uc.eventType, req); err != nil {
					return goerr.Wrap(err, "failed to request build", goerr.V("request_id", req.ID))
				}
				ctxlog.From(ctx).Info("Build requested",
					"request_id", req.ID,
					"repository", req.Repository,
					"head", req.Head,
				)
				return nil
			})
		}

		if uc.archive != nil {
			uc.dispatch(ctx, func(ctx context.Context) error {
				return uc.archive.PutBuildRequest(ctx, req)
			})
		}
	}

	if uc.notifier != nil {
		uc.dispatch(ctx, func(ctx context.Context) error {
			return uc.notifier.NotifyDecision(ctx, decision)
		})
	}

	return decision, nil
}
