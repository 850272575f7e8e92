// Package notify posts assignment run summaries to Slack. Outbound
// only; the desk never reacts to Slack traffic.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/slack-go/slack"

	"github.com/videodesk-io/videodesk/pkg/triage"
)

// Config holds Slack notifier configuration.
type Config struct {
	BotToken string // xoxb-... Bot User OAuth Token
	Channel  string // channel ID or name to post summaries to
}

// Slack posts run summaries to a single channel.
type Slack struct {
	api     *slack.Client
	channel string
	logger  *slog.Logger
}

// New creates a Slack notifier.
func New(cfg Config, logger *slog.Logger) (*Slack, error) {
	if cfg.BotToken == "" {
		return nil, fmt.Errorf("slack: bot_token is required")
	}
	if cfg.Channel == "" {
		return nil, fmt.Errorf("slack: channel is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Slack{
		api:     slack.New(cfg.BotToken),
		channel: cfg.Channel,
		logger:  logger,
	}, nil
}

// RunCompleted posts a summary of a finished assignment run.
func (s *Slack) RunCompleted(ctx context.Context, res *triage.RunResult) error {
	text := FormatRunSummary(res)
	_, _, err := s.api.PostMessageContext(ctx, s.channel, slack.MsgOptionText(text, false))
	if err != nil {
		return fmt.Errorf("slack: post run summary: %w", err)
	}
	s.logger.Info("run summary posted", "run_id", res.RunID, "channel", s.channel)
	return nil
}

// FormatRunSummary renders a run result as Slack mrkdwn.
func FormatRunSummary(res *triage.RunResult) string {
	var b strings.Builder

	if res.Total == 0 {
		fmt.Fprintf(&b, "*Assignment run* `%s`: view %d is empty, nothing to assign.", res.RunID, res.ViewID)
		return b.String()
	}

	fmt.Fprintf(&b, "*Assignment run* `%s`: %d tickets across %d agents.\n",
		res.RunID, res.Total, len(res.Distribution))
	for _, d := range res.Distribution {
		fmt.Fprintf(&b, "• agent %d: %d tickets\n", d.AgentID, d.Count)
	}

	if failed := res.FailedJobs(); failed > 0 {
		fmt.Fprintf(&b, ":warning: %d of %d update jobs failed.", failed, len(res.Jobs))
	} else {
		fmt.Fprintf(&b, "All %d update jobs accepted.", len(res.Jobs))
	}
	return b.String()
}
