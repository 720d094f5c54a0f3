package notify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobscout/internal/logging"
	"jobscout/pkg/models"
)

func digest(n int) models.Digest {
	d := models.Digest{
		RunID:      "run_abc",
		FinishedAt: time.Date(2025, 4, 2, 7, 30, 0, 0, time.UTC),
		Report:     "Run run_abc completed in 12.00s\n",
	}
	for i := 0; i < n; i++ {
		d.Jobs = append(d.Jobs, models.Job{
			Title:          fmt.Sprintf("Product Manager <Hardware> %d", i),
			CompanyName:    "Acme & Co",
			URL:            fmt.Sprintf("https://acme.io/jobs/%d", i),
			Score:          85,
			Recommendation: models.RecommendationApply,
			Reasoning:      "PM role matches target",
		})
	}
	return d
}

type fakeSender struct {
	sent []tgbotapi.MessageConfig
	err  error
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if f.err != nil {
		return tgbotapi.Message{}, f.err
	}
	f.sent = append(f.sent, c.(tgbotapi.MessageConfig))
	return tgbotapi.Message{}, nil
}

type failingChannel struct{}

func (failingChannel) Name() string { return "broken" }
func (failingChannel) Notify(context.Context, models.Digest) error {
	return errors.New("smtp down")
}

func TestConsoleDigest(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewConsole(&buf).Notify(context.Background(), digest(2)))

	out := buf.String()
	assert.Contains(t, out, "NEW JOB MATCHES - 2025-04-02 07:30")
	assert.Contains(t, out, "1. [85/100] Product Manager <Hardware> 0")
	assert.Contains(t, out, "Company: Acme & Co")
	assert.Contains(t, out, "Location: Not specified")
	assert.Contains(t, out, "Total: 2 new job(s)")
	assert.True(t, strings.HasSuffix(out, "Run run_abc completed in 12.00s\n"))
}

func TestConsoleEmptyDigest(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewConsole(&buf).Notify(context.Background(), digest(0)))
	assert.Contains(t, buf.String(), "No new jobs to notify about")
}

func TestTelegramEscapesAndSplits(t *testing.T) {
	fake := &fakeSender{}
	tg := &Telegram{bot: fake, chatID: 42}

	require.NoError(t, tg.Notify(context.Background(), digest(1)))
	require.Len(t, fake.sent, 1)
	msg := fake.sent[0]
	assert.Equal(t, int64(42), msg.ChatID)
	assert.Equal(t, tgbotapi.ModeHTML, msg.ParseMode)
	assert.Contains(t, msg.Text, "Product Manager &lt;Hardware&gt; 0")
	assert.Contains(t, msg.Text, "Acme &amp; Co")
	assert.Contains(t, msg.Text, "1 apply · 0 consider")

	fake.sent = nil
	require.NoError(t, tg.Notify(context.Background(), digest(60)))
	assert.Greater(t, len(fake.sent), 1)
	for _, m := range fake.sent {
		assert.LessOrEqual(t, len(m.Text), maxMessageLen)
	}
}

func TestTelegramSkipsEmptyDigest(t *testing.T) {
	fake := &fakeSender{}
	require.NoError(t, (&Telegram{bot: fake}).Notify(context.Background(), digest(0)))
	assert.Empty(t, fake.sent)
}

func TestMultiContinuesPastFailures(t *testing.T) {
	var buf bytes.Buffer
	m := NewMulti(logging.NewNopLogger(), failingChannel{}, NewConsole(&buf))

	err := m.Notify(context.Background(), digest(1))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken: smtp down")
	assert.Contains(t, buf.String(), "Total: 1 new job(s)")
	assert.Equal(t, []string{"broken", "console"}, m.Channels())
}
