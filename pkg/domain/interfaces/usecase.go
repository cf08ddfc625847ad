package interfaces

import (
	"context"

	"github.com/m-mizutani/buildgate/pkg/domain/model"
)

// EventProcessor turns a parsed webhook event into build decisions
type EventProcessor interface {
	ProcessEvent(ctx context.Context, event *model.WebhookEvent) error
}

// BuildUseCase evaluates observed revisions and requests builds
type BuildUseCase interface {
	// Evaluate decides whether the observed revision is built automatically
	Evaluate(ctx context.Context, obs *model.Observation) (*model.BuildDecision, error)
}
