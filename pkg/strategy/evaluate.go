package strategy

import (
	"context"

	"github.com/m-mizutani/buildgate/pkg/domain/interfaces"
	"github.com/m-mizutani/buildgate/pkg/domain/model"
)

// Evaluate applies a set of strategies to a head revision. Without strategies
// every head except tags is built. Otherwise the revision is built when at
// least one applicable strategy considers it automatic.
func Evaluate(ctx context.Context, strategies []interfaces.BuildStrategy, source interfaces.Source, head model.Head, current, previous model.Revision) bool {
	if len(strategies) == 0 {
		return head.Kind() != model.HeadKindTag
	}

	for _, s := range strategies {
		if s.IsApplicable(head) && s.IsAutomaticBuild(ctx, source, head, current, previous) {
			return true
		}
	}
	return false
}
