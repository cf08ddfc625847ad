package slack

import (
	"context"
	"fmt"

	"github.com/m-mizutani/goerr/v2"
	"github.com/slack-go/slack"

	"github.com/m-mizutani/buildgate/pkg/domain/interfaces"
	"github.com/m-mizutani/buildgate/pkg/domain/model"
)

// Notifier posts build decisions to a Slack channel
type Notifier struct {
	client  *slack.Client
	channel string
}

var _ interfaces.Notifier = (*Notifier)(nil)

// New creates a Notifier. opts are passed to the Slack client.
func New(token, channel string, opts ...slack.Option) *Notifier {
	return &Notifier{
		client:  slack.New(token, opts...),
		channel: channel,
	}
}

// NotifyDecision posts a one-line summary of decision
func (n *Notifier) NotifyDecision(ctx context.Context, decision *model.BuildDecision) error {
	if _, _, err := n.client.PostMessageContext(ctx, n.channel,
		slack.MsgOptionText(formatDecision(decision), false),
	); err != nil {
		return goerr.Wrap(err, "failed to post build decision to slack",
			goerr.V("channel", n.channel),
			goerr.V("key", decision.Key.String()),
		)
	}
	return nil
}

func formatDecision(decision *model.BuildDecision) string {
	if decision.Automatic {
		msg := fmt.Sprintf(":rocket: Build requested for `%s` at `%s`", decision.Key.String(), decision.Current.String())
		if decision.Request != nil {
			msg += fmt.Sprintf(" (request %s)", decision.Request.ID)
		}
		return msg
	}
	return fmt.Sprintf(":zzz: Build skipped for `%s` at `%s`", decision.Key.String(), decision.Current.String())
}
