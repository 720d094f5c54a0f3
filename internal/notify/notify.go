// Package notify delivers the digest of newly stored jobs after a run.
package notify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"jobscout/internal/config"
	"jobscout/internal/logging"
	"jobscout/internal/logging/types"
	"jobscout/pkg/models"
)

// Channel is one delivery target
type Channel interface {
	Name() string
	Notify(ctx context.Context, digest models.Digest) error
}

// Multi sends a digest to every channel. A failing channel does not stop the others.
type Multi struct {
	channels []Channel
	logger   types.Logger
}

// NewMulti combines channels
func NewMulti(logger types.Logger, channels ...Channel) *Multi {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &Multi{channels: channels, logger: logger.WithField("component", "notify")}
}

// Channels returns the names of the configured channels
func (m *Multi) Channels() []string {
	names := make([]string, 0, len(m.channels))
	for _, c := range m.channels {
		names = append(names, c.Name())
	}
	return names
}

// Notify implements the pipeline notifier
func (m *Multi) Notify(ctx context.Context, digest models.Digest) error {
	var errs []error
	for _, c := range m.channels {
		if err := c.Notify(ctx, digest); err != nil {
			m.logger.Error("Notification channel failed", map[string]interface{}{
				"channel": c.Name(),
				"run_id":  digest.RunID,
				"error":   err.Error(),
			})
			errs = append(errs, fmt.Errorf("%s: %w", c.Name(), err))
			continue
		}
		m.logger.Debug("Notification sent", map[string]interface{}{
			"channel": c.Name(),
			"jobs":    len(digest.Jobs),
		})
	}
	return errors.Join(errs...)
}

// NewFromConfig builds the channels enabled in cfg
func NewFromConfig(cfg *config.Config, logger types.Logger) (*Multi, error) {
	var channels []Channel
	if cfg.Notifications.Console {
		channels = append(channels, NewConsole(os.Stdout))
	}
	if cfg.Notifications.Telegram.Enabled {
		tg, err := NewTelegram(cfg.Notifications.Telegram.BotToken, cfg.Notifications.Telegram.ChatID)
		if err != nil {
			return nil, err
		}
		channels = append(channels, tg)
	}
	return NewMulti(logger, channels...), nil
}

// Console prints the digest as plain text
type Console struct {
	w io.Writer
}

// NewConsole writes digests to w
func NewConsole(w io.Writer) *Console {
	return &Console{w: w}
}

func (c *Console) Name() string { return "console" }

func (c *Console) Notify(_ context.Context, digest models.Digest) error {
	_, err := io.WriteString(c.w, FormatText(digest))
	return err
}

const rule = "================================================================================"

// FormatText renders the console digest followed by the run report
func FormatText(d models.Digest) string {
	var b strings.Builder

	if len(d.Jobs) == 0 {
		b.WriteString("No new jobs to notify about\n")
	} else {
		fmt.Fprintf(&b, "\n%s\n  NEW JOB MATCHES - %s\n%s\n\n", rule, d.FinishedAt.Format("2006-01-02 15:04"), rule)
		for i, j := range d.Jobs {
			fmt.Fprintf(&b, "%d. [%d/100] %s\n", i+1, j.Score, j.Title)
			fmt.Fprintf(&b, "   Company: %s\n", orDefault(j.CompanyName, "Unknown Company"))
			fmt.Fprintf(&b, "   Location: %s\n", orDefault(j.Location, "Not specified"))
			fmt.Fprintf(&b, "   URL: %s\n", j.URL)
			if j.Recommendation != models.RecommendationNone {
				fmt.Fprintf(&b, "   Recommendation: %s\n", j.Recommendation)
			}
			if j.Reasoning != "" {
				fmt.Fprintf(&b, "   Reason: %s\n", j.Reasoning)
			}
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%s\nTotal: %d new job(s)\n%s\n", rule, len(d.Jobs), rule)
	}

	if d.Report != "" {
		b.WriteString("\n")
		b.WriteString(d.Report)
	}
	return b.String()
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
