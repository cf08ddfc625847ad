package github

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/go-github/v75/github"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"

	"github.com/m-mizutani/buildgate/pkg/domain/interfaces"
	"github.com/m-mizutani/buildgate/pkg/domain/model"
)

// EventProcessor turns GitHub webhook events into observations and evaluates them
type EventProcessor struct {
	buildUC  interfaces.BuildUseCase
	client   interfaces.GitHubClient
	strategy model.CheckoutStrategy
}

// ProcessorOption configures an EventProcessor
type ProcessorOption func(*EventProcessor)

// WithCheckoutStrategy sets how pull requests are checked out. Default is merge.
func WithCheckoutStrategy(strategy model.CheckoutStrategy) ProcessorOption {
	return func(p *EventProcessor) {
		p.strategy = strategy
	}
}

// NewEventProcessor creates a new GitHub event processor. client is used to
// find pull requests affected by a push to their target branch.
func NewEventProcessor(buildUC interfaces.BuildUseCase, client interfaces.GitHubClient, opts ...ProcessorOption) *EventProcessor {
	p := &EventProcessor{
		buildUC:  buildUC,
		client:   client,
		strategy: model.CheckoutMerge,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ProcessEvent processes a GitHub webhook event
func (p *EventProcessor) ProcessEvent(ctx context.Context, event *model.WebhookEvent) error {
	logger := ctxlog.From(ctx)

	switch payload := event.Payload.(type) {
	case *github.PullRequestEvent:
		return p.processPullRequestEvent(ctx, event.ID, payload)
	case *github.PushEvent:
		return p.processPushEvent(ctx, event.ID, payload)
	default:
		logger.Info("Ignoring unsupported event type", "event_type", event.Type)
		return nil
	}
}

// processPullRequestEvent evaluates the pull request head against its current base
func (p *EventProcessor) processPullRequestEvent(ctx context.Context, deliveryID string, event *github.PullRequestEvent) error {
	logger := ctxlog.From(ctx)

	switch event.GetAction() {
	case "opened", "reopened", "synchronize", "edited":
	default:
		logger.Info("Ignoring pull request event", "action", event.GetAction())
		return nil
	}

	repo, err := repositoryOf(event.GetRepo().GetOwner().GetLogin(), event.GetRepo().GetName())
	if err != nil {
		return err
	}

	pr := event.GetPullRequest()
	rev, err := p.changeRequestRevision(pr, pr.GetBase().GetSHA())
	if err != nil {
		return err
	}

	logger.Info("Processing pull request event",
		"repository", repo.FullName(),
		"number", pr.GetNumber(),
		"action", event.GetAction(),
	)

	_, err = p.buildUC.Evaluate(ctx, &model.Observation{
		DeliveryID: deliveryID,
		Repository: repo,
		Revision:   rev,
	})
	return err
}

// processPushEvent evaluates the pushed branch or tag, then every open pull
// request targeting the pushed branch with the new target revision
func (p *EventProcessor) processPushEvent(ctx context.Context, deliveryID string, event *github.PushEvent) error {
	logger := ctxlog.From(ctx)

	if event.GetDeleted() {
		logger.Info("Ignoring deleted ref", "ref", event.GetRef())
		return nil
	}

	owner := event.GetRepo().GetOwner().GetLogin()
	if owner == "" {
		owner = event.GetRepo().GetOwner().GetName()
	}
	repo, err := repositoryOf(owner, event.GetRepo().GetName())
	if err != nil {
		return err
	}

	ref := event.GetRef()
	after := event.GetAfter()
	if after == "" {
		return goerr.New("missing after commit in push event", goerr.V("ref", ref))
	}

	switch {
	case strings.HasPrefix(ref, "refs/tags/"):
		timestamp := event.GetHeadCommit().GetTimestamp().Time
		if timestamp.IsZero() {
			timestamp = time.Now()
		}
		tag := model.NewTagHead(strings.TrimPrefix(ref, "refs/tags/"), timestamp)
		_, err := p.buildUC.Evaluate(ctx, &model.Observation{
			DeliveryID: deliveryID,
			Repository: repo,
			Revision:   model.NewCommitRevision(tag, after),
		})
		return err

	case strings.HasPrefix(ref, "refs/heads/"):
		branch := strings.TrimPrefix(ref, "refs/heads/")
		if _, err := p.buildUC.Evaluate(ctx, &model.Observation{
			DeliveryID: deliveryID,
			Repository: repo,
			Revision:   model.NewCommitRevision(model.NewBranchHead(branch), after),
		}); err != nil {
			return err
		}
		return p.processTargetMove(ctx, deliveryID, repo, branch, after)

	default:
		logger.Info("Ignoring push to unknown ref type", "ref", ref)
		return nil
	}
}

func (p *EventProcessor) processTargetMove(ctx context.Context, deliveryID string, repo model.Repository, branch, targetHash string) error {
	logger := ctxlog.From(ctx)

	if p.client == nil {
		return nil
	}

	prs, err := p.client.ListOpenPullRequests(ctx, repo.Owner, repo.Name, branch)
	if err != nil {
		return goerr.Wrap(err, "failed to list pull requests for target branch",
			goerr.V("repository", repo.FullName()),
			goerr.V("branch", branch),
		)
	}

	logger.Info("Target branch moved",
		"repository", repo.FullName(),
		"branch", branch,
		"pull_requests", len(prs),
	)

	var errs []error
	for _, pr := range prs {
		rev, err := p.changeRequestRevision(pr, targetHash)
		if err == nil {
			_, err = p.buildUC.Evaluate(ctx, &model.Observation{
				DeliveryID: deliveryID,
				Repository: repo,
				Revision:   rev,
			})
		}
		if err != nil {
			logger.Error("Failed to evaluate pull request", "error", err, "number", pr.GetNumber())
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// changeRequestRevision builds the revision of pr merged with the target at targetHash
func (p *EventProcessor) changeRequestRevision(pr *github.PullRequest, targetHash string) (*model.ChangeRequestRevision, error) {
	if pr == nil {
		return nil, goerr.New("missing pull request information")
	}

	number := pr.GetNumber()
	base := pr.GetBase().GetRef()
	headSHA := pr.GetHead().GetSHA()
	if number == 0 || base == "" || headSHA == "" || targetHash == "" {
		return nil, goerr.New("missing required pull request fields",
			goerr.V("number", number),
			goerr.V("base", base),
			goerr.V("head_sha", headSHA),
			goerr.V("target_sha", targetHash),
		)
	}

	origin := model.OriginDefault
	headRepo := pr.GetHead().GetRepo().GetFullName()
	if headRepo == "" || headRepo != pr.GetBase().GetRepo().GetFullName() {
		origin = model.OriginFork
	}

	head := model.NewChangeRequestHead(number, base, p.strategy, origin, pr.GetUser().GetLogin())
	return model.NewChangeRequestRevision(head, model.NewCommitRevision(head.Target(), targetHash), headSHA), nil
}

func repositoryOf(owner, name string) (model.Repository, error) {
	if owner == "" || name == "" {
		return model.Repository{}, goerr.New("missing repository information",
			goerr.V("owner", owner),
			goerr.V("name", name),
		)
	}
	return model.Repository{Owner: owner, Name: name}, nil
}
