package model_test

import (
	"testing"

	"github.com/m-mizutani/gt"

	"github.com/m-mizutani/buildgate/pkg/domain/model"
)

func TestWebhookEvent_IsSupportedEvent(t *testing.T) {
	tests := []struct {
		name      string
		eventType model.WebhookEventType
		action    string
		expected  bool
	}{
		{"pull request opened", model.EventTypePullRequest, "opened", true},
		{"pull request reopened", model.EventTypePullRequest, "reopened", true},
		{"pull request synchronize", model.EventTypePullRequest, "synchronize", true},
		{"pull request edited may retarget", model.EventTypePullRequest, "edited", true},
		{"pull request closed", model.EventTypePullRequest, "closed", false},
		{"pull request labeled", model.EventTypePullRequest, "labeled", false},
		{"push has no action", model.EventTypePush, "", true},
		{"unknown event type", model.EventTypeUnknown, "opened", false},
		{"release", model.WebhookEventType("release"), "released", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event := &model.WebhookEvent{Type: tt.eventType, Action: tt.action}
			gt.Value(t, event.IsSupportedEvent()).Equal(tt.expected)
		})
	}
}
