package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-github/v75/github"
	"github.com/m-mizutani/gt"

	"github.com/m-mizutani/buildgate/pkg/domain/interfaces"
	"github.com/m-mizutani/buildgate/pkg/domain/model"
	"github.com/m-mizutani/buildgate/pkg/infra/memory"
	"github.com/m-mizutani/buildgate/pkg/strategy"
	"github.com/m-mizutani/buildgate/pkg/usecase"
	"github.com/m-mizutani/buildgate/pkg/utils/async"
)

// MockGitHubClient is a mock implementation of GitHubClient
type MockGitHubClient struct {
	dispatchFunc  func(ctx context.Context, owner, repo, eventType string, payload any) error
	dispatchCalls []MockDispatchCall
}

type MockDispatchCall struct {
	Owner     string
	Repo      string
	EventType string
	Payload   any
}

func (m *MockGitHubClient) GetPermissionLevel(ctx context.Context, owner, repo, user string) (string, error) {
	return "", errors.New("mock not configured")
}

func (m *MockGitHubClient) ListOpenPullRequests(ctx context.Context, owner, repo, base string) ([]*github.PullRequest, error) {
	return nil, errors.New("mock not configured")
}

func (m *MockGitHubClient) Dispatch(ctx context.Context, owner, repo, eventType string, payload any) error {
	m.dispatchCalls = append(m.dispatchCalls, MockDispatchCall{Owner: owner, Repo: repo, EventType: eventType, Payload: payload})
	if m.dispatchFunc != nil {
		return m.dispatchFunc(ctx, owner, repo, eventType, payload)
	}
	return nil
}

// MockSourceFactory hands out one fixed source
type MockSourceFactory struct {
	trustedRevisionFunc func(ctx context.Context, rev model.Revision) (model.Revision, error)
}

func (m *MockSourceFactory) Source(repo model.Repository) interfaces.Source {
	return m
}

func (m *MockSourceFactory) TrustedRevision(ctx context.Context, rev model.Revision) (model.Revision, error) {
	if m.trustedRevisionFunc != nil {
		return m.trustedRevisionFunc(ctx, rev)
	}
	return rev, nil
}

// MockNotifier records notified decisions
type MockNotifier struct {
	decisions []*model.BuildDecision
}

func (m *MockNotifier) NotifyDecision(ctx context.Context, decision *model.BuildDecision) error {
	m.decisions = append(m.decisions, decision)
	return nil
}

// MockArchive records archived build requests
type MockArchive struct {
	requests []*model.BuildRequest
}

func (m *MockArchive) PutBuildRequest(ctx context.Context, req *model.BuildRequest) error {
	m.requests = append(m.requests, req)
	return nil
}

// recordingStore counts writes to an in-memory store
type recordingStore struct {
	*memory.RevisionStore
	putCalls int
}

func (s *recordingStore) PutLastBuilt(ctx context.Context, key model.HeadKey, rev model.Revision) error {
	s.putCalls++
	return s.RevisionStore.PutLastBuilt(ctx, key, rev)
}

// failingStore fails every operation
type failingStore struct{}

func (failingStore) GetLastBuilt(ctx context.Context, key model.HeadKey) (model.Revision, error) {
	return nil, errors.New("store unavailable")
}

func (failingStore) PutLastBuilt(ctx context.Context, key model.HeadKey, rev model.Revision) error {
	return errors.New("store unavailable")
}

var repo = model.Repository{Owner: "octo", Name: "app"}

func prObservation(target, hash string) *model.Observation {
	head := model.NewChangeRequestHead(1, "main", model.CheckoutMerge, model.OriginDefault, "alice")
	return &model.Observation{
		DeliveryID: "delivery-1",
		Repository: repo,
		Revision:   model.NewChangeRequestRevision(head, model.NewCommitRevision(head.Target(), target), hash),
	}
}

func TestBuildUseCase_Evaluate_TargetOnlyChanges(t *testing.T) {
	ctx := context.Background()
	store := memory.NewRevisionStore()
	client := &MockGitHubClient{}
	notifier := &MockNotifier{}
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	uc := usecase.NewBuild(store, &MockSourceFactory{}, client,
		usecase.WithStrategies(strategy.NewChangeRequest(true, false)),
		usecase.WithNotifier(notifier),
		usecase.WithDispatcher(async.Inline),
		usecase.WithClock(func() time.Time { return now }),
	)

	// first build
	decision, err := uc.Evaluate(ctx, prObservation("t1", "h1"))
	gt.NoError(t, err)
	gt.True(t, decision.Automatic)
	gt.Value(t, decision.Previous).Nil()
	gt.Value(t, decision.Request).NotNil()
	gt.Value(t, decision.Request.Head).Equal("PR-1")
	gt.Value(t, decision.Request.RequestedAt).Equal(now)
	gt.Number(t, len(client.dispatchCalls)).Equal(1)
	gt.Value(t, client.dispatchCalls[0].EventType).Equal(usecase.DefaultDispatchEventType)
	gt.Value(t, client.dispatchCalls[0].Owner).Equal("octo")

	// target moved only
	decision, err = uc.Evaluate(ctx, prObservation("t2", "h1"))
	gt.NoError(t, err)
	gt.False(t, decision.Automatic)
	gt.Value(t, decision.Request).Nil()
	gt.Number(t, len(client.dispatchCalls)).Equal(1)

	// last built revision is still the first one
	last, err := store.GetLastBuilt(ctx, model.HeadKey{Owner: "octo", Repo: "app", Kind: model.HeadKindChangeRequest, Head: "PR-1"})
	gt.NoError(t, err)
	gt.True(t, prObservation("t1", "h1").Revision.Equal(last))

	// change request moved
	decision, err = uc.Evaluate(ctx, prObservation("t2", "h2"))
	gt.NoError(t, err)
	gt.True(t, decision.Automatic)
	gt.Number(t, len(client.dispatchCalls)).Equal(2)

	gt.Number(t, len(notifier.decisions)).Equal(3)
}

func TestBuildUseCase_Evaluate_Untrusted(t *testing.T) {
	ctx := context.Background()
	client := &MockGitHubClient{}
	sources := &MockSourceFactory{
		trustedRevisionFunc: func(ctx context.Context, rev model.Revision) (model.Revision, error) {
			return nil, context.DeadlineExceeded
		},
	}

	uc := usecase.NewBuild(memory.NewRevisionStore(), sources, client,
		usecase.WithStrategies(strategy.NewChangeRequest(false, true)),
		usecase.WithDispatcher(async.Inline),
	)

	decision, err := uc.Evaluate(ctx, prObservation("t1", "h1"))
	gt.NoError(t, err)
	gt.False(t, decision.Automatic)
	gt.Number(t, len(client.dispatchCalls)).Equal(0)
}

func TestBuildUseCase_Evaluate_Tags(t *testing.T) {
	ctx := context.Background()
	client := &MockGitHubClient{}
	uc := usecase.NewBuild(memory.NewRevisionStore(), &MockSourceFactory{}, client,
		usecase.WithDispatcher(async.Inline),
		usecase.WithDispatchEventType("ci"),
	)

	tag := &model.Observation{
		Repository: repo,
		Revision:   model.NewCommitRevision(model.NewTagHead("v1.0.0", time.Now()), "abc"),
	}
	decision, err := uc.Evaluate(ctx, tag)
	gt.NoError(t, err)
	gt.False(t, decision.Automatic)

	branch := &model.Observation{
		Repository: repo,
		Revision:   model.NewCommitRevision(model.NewBranchHead("main"), "abc"),
	}
	decision, err = uc.Evaluate(ctx, branch)
	gt.NoError(t, err)
	gt.True(t, decision.Automatic)
	gt.Number(t, len(client.dispatchCalls)).Equal(1)
	gt.Value(t, client.dispatchCalls[0].EventType).Equal("ci")
}

func TestBuildUseCase_Evaluate_StoreError(t *testing.T) {
	uc := usecase.NewBuild(failingStore{}, &MockSourceFactory{}, nil,
		usecase.WithDispatcher(async.Inline),
	)

	_, err := uc.Evaluate(context.Background(), prObservation("t1", "h1"))
	gt.Error(t, err)
	gt.String(t, err.Error()).Contains("store unavailable")
}

func TestBuildUseCase_Evaluate_DispatchErrorIsNotReturned(t *testing.T) {
	client := &MockGitHubClient{
		dispatchFunc: func(ctx context.Context, owner, repo, eventType string, payload any) error {
			return errors.New("dispatch failed")
		},
	}
	uc := usecase.NewBuild(memory.NewRevisionStore(), &MockSourceFactory{}, client,
		usecase.WithDispatcher(async.Inline),
	)

	decision, err := uc.Evaluate(context.Background(), prObservation("t1", "h1"))
	gt.NoError(t, err)
	gt.True(t, decision.Automatic)
	gt.Number(t, len(client.dispatchCalls)).Equal(1)
}

func TestBuildUseCase_Evaluate_Archive(t *testing.T) {
	archive := &MockArchive{}
	uc := usecase.NewBuild(memory.NewRevisionStore(), &MockSourceFactory{}, nil,
		usecase.WithStrategies(strategy.NewChangeRequest(true, false)),
		usecase.WithArchive(archive),
		usecase.WithDispatcher(async.Inline),
	)

	decision, err := uc.Evaluate(context.Background(), prObservation("t1", "h1"))
	gt.NoError(t, err)
	gt.True(t, decision.Automatic)
	gt.Number(t, len(archive.requests)).Equal(1)
	gt.Value(t, archive.requests[0].ID).Equal(decision.Request.ID)
	gt.Value(t, archive.requests[0].Revision).Equal("h1+t1")

	// Target-only change: no new request
	decision, err = uc.Evaluate(context.Background(), prObservation("t2", "h1"))
	gt.NoError(t, err)
	gt.False(t, decision.Automatic)
	gt.Number(t, len(archive.requests)).Equal(1)
}

func TestBuildUseCase_Evaluate_SameRevision(t *testing.T) {
	ctx := context.Background()
	store := &recordingStore{RevisionStore: memory.NewRevisionStore()}
	client := &MockGitHubClient{}
	notifier := &MockNotifier{}
	sources := &MockSourceFactory{}

	uc := usecase.NewBuild(store, sources, client,
		usecase.WithStrategies(strategy.NewChangeRequest(false, false)),
		usecase.WithNotifier(notifier),
		usecase.WithDispatcher(async.Inline),
	)

	decision, err := uc.Evaluate(ctx, prObservation("t1", "h1"))
	gt.NoError(t, err)
	gt.True(t, decision.Automatic)

	// redelivery of the same revision
	decision, err = uc.Evaluate(ctx, prObservation("t1", "h1"))
	gt.NoError(t, err)
	gt.False(t, decision.Automatic)
	gt.Value(t, decision.Request).Nil()
	gt.True(t, decision.Previous.Equal(decision.Current))

	gt.Number(t, len(client.dispatchCalls)).Equal(1)
	gt.Number(t, store.putCalls).Equal(1)
	gt.Number(t, len(notifier.decisions)).Equal(1)
}

func TestBuildUseCase_Evaluate_HeadCheckoutIgnoresTarget(t *testing.T) {
	ctx := context.Background()
	client := &MockGitHubClient{}

	uc := usecase.NewBuild(memory.NewRevisionStore(), &MockSourceFactory{}, client,
		usecase.WithStrategies(strategy.NewChangeRequest(true, false)),
		usecase.WithDispatcher(async.Inline),
	)

	observe := func(target, hash string) *model.Observation {
		head := model.NewChangeRequestHead(1, "main", model.CheckoutHead, model.OriginDefault, "alice")
		return &model.Observation{
			Repository: repo,
			Revision:   model.NewChangeRequestRevision(head, model.NewCommitRevision(head.Target(), target), hash),
		}
	}

	decision, err := uc.Evaluate(ctx, observe("t1", "h1"))
	gt.NoError(t, err)
	gt.True(t, decision.Automatic)

	// target branch moved; the head checkout is unchanged
	decision, err = uc.Evaluate(ctx, observe("t2", "h1"))
	gt.NoError(t, err)
	gt.False(t, decision.Automatic)
	gt.Number(t, len(client.dispatchCalls)).Equal(1)

	decision, err = uc.Evaluate(ctx, observe("t2", "h2"))
	gt.NoError(t, err)
	gt.True(t, decision.Automatic)
	gt.Number(t, len(client.dispatchCalls)).Equal(2)
}

func TestBuildUseCase_Evaluate_HeadKindsAreSeparate(t *testing.T) {
	ctx := context.Background()
	client := &MockGitHubClient{}
	uc := usecase.NewBuild(memory.NewRevisionStore(), &MockSourceFactory{}, client,
		usecase.WithDispatcher(async.Inline),
	)

	// branch named like pull request #1, same hash
	branch := &model.Observation{
		Repository: repo,
		Revision:   model.NewCommitRevision(model.NewBranchHead("PR-1"), "h1"),
	}
	decision, err := uc.Evaluate(ctx, branch)
	gt.NoError(t, err)
	gt.True(t, decision.Automatic)

	decision, err = uc.Evaluate(ctx, prObservation("t1", "h1"))
	gt.NoError(t, err)
	gt.True(t, decision.Automatic)
	gt.Value(t, decision.Previous).Nil()
	gt.Number(t, len(client.dispatchCalls)).Equal(2)
}
