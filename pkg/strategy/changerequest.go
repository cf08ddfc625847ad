package strategy

import (
	"context"
	"fmt"

	"github.com/m-mizutani/ctxlog"

	"github.com/m-mizutani/buildgate/pkg/domain/interfaces"
	"github.com/m-mizutani/buildgate/pkg/domain/model"
)

// ChangeRequestSymbol is the configuration symbol of the ChangeRequest strategy
const ChangeRequestSymbol = "buildChangeRequests"

// ChangeRequest builds change requests, optionally skipping revisions where
// only the target branch moved and revisions that are not trusted.
type ChangeRequest struct {
	ignoreTargetOnlyChanges bool
	ignoreUntrustedChanges  bool
}

var _ interfaces.BuildStrategy = (*ChangeRequest)(nil)

// NewChangeRequest creates a ChangeRequest strategy.
//
// ignoreTargetOnlyChanges skips merge revisions whose only difference from the
// previous build is the target branch revision. ignoreUntrustedChanges skips
// revisions that differ from the trusted revision of the source, which skips
// change requests from untrusted origins.
func NewChangeRequest(ignoreTargetOnlyChanges, ignoreUntrustedChanges bool) *ChangeRequest {
	return &ChangeRequest{
		ignoreTargetOnlyChanges: ignoreTargetOnlyChanges,
		ignoreUntrustedChanges:  ignoreUntrustedChanges,
	}
}

// NewChangeRequestIgnoringTargetOnly creates a strategy that never checks trust.
//
// Deprecated: use NewChangeRequest.
func NewChangeRequestIgnoringTargetOnly(ignoreTargetOnlyChanges bool) *ChangeRequest {
	return NewChangeRequest(ignoreTargetOnlyChanges, false)
}

func (x *ChangeRequest) IgnoreTargetOnlyChanges() bool { return x.ignoreTargetOnlyChanges }
func (x *ChangeRequest) IgnoreUntrustedChanges() bool  { return x.ignoreUntrustedChanges }

// IsApplicable is true for change request heads only
func (x *ChangeRequest) IsApplicable(head model.Head) bool {
	return head != nil && head.Kind() == model.HeadKindChangeRequest
}

// IsAutomaticBuild reports whether current should be built. previous is nil
// on the first observation of the head.
//
// A failed trust lookup (I/O error or ctx cancellation) counts as untrusted:
// the failure is logged once as a warning and the build is skipped. No error
// reaches the caller.
func (x *ChangeRequest) IsAutomaticBuild(ctx context.Context, source interfaces.Source, head model.Head, current, previous model.Revision) bool {
	if x.ignoreTargetOnlyChanges {
		curr, currOK := current.(model.MergeRevision)
		prev, prevOK := previous.(model.MergeRevision)
		if currOK && prevOK && curr.IsMerge() && curr.Equivalent(prev) {
			return false
		}
	}

	if x.ignoreUntrustedChanges {
		trusted, err := source.TrustedRevision(ctx, current)
		if err != nil {
			ctxlog.From(ctx).Warn("Could not determine trust status, assuming untrusted",
				"error", err,
				"head", head.Name(),
				"revision", current.String(),
			)
			return false
		}
		if trusted == nil || !current.Equal(trusted) {
			return false
		}
	}

	return true
}

// Equal compares ignoreTargetOnlyChanges only. Two strategies differing in
// ignoreUntrustedChanges are equal; persisted configurations depend on it.
func (x *ChangeRequest) Equal(other interfaces.BuildStrategy) bool {
	o, ok := other.(*ChangeRequest)
	if !ok || o == nil {
		return false
	}
	return x.ignoreTargetOnlyChanges == o.ignoreTargetOnlyChanges
}

func (x *ChangeRequest) String() string {
	return fmt.Sprintf("ChangeRequest{ignoreTargetOnlyChanges=%t, ignoreUntrustedChanges=%t}",
		x.ignoreTargetOnlyChanges, x.ignoreUntrustedChanges)
}

// Params returns the configuration-as-code parameters of the strategy
func (x *ChangeRequest) Params() map[string]bool {
	return map[string]bool{
		"ignoreTargetOnlyChanges": x.ignoreTargetOnlyChanges,
		"ignoreUntrustedChanges":  x.ignoreUntrustedChanges,
	}
}

// Symbol returns ChangeRequestSymbol
func (x *ChangeRequest) Symbol() string { return ChangeRequestSymbol }
