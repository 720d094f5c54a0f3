package notify

import (
	"context"
	"fmt"
	"html"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"jobscout/pkg/models"
)

// maxMessageLen is Telegram's limit for one text message
const maxMessageLen = 4096

// sender is the part of *tgbotapi.BotAPI the channel uses
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram posts the digest to one chat
type Telegram struct {
	bot    sender
	chatID int64
}

// NewTelegram authenticates the bot token against the Bot API
func NewTelegram(token string, chatID int64) (*Telegram, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to init telegram bot: %w", err)
	}
	return &Telegram{bot: bot, chatID: chatID}, nil
}

func (t *Telegram) Name() string { return "telegram" }

// Notify sends one header message and the jobs split across as few messages as fit.
// Runs without new jobs send nothing.
func (t *Telegram) Notify(ctx context.Context, digest models.Digest) error {
	if len(digest.Jobs) == 0 {
		return nil
	}
	for _, text := range t.messages(digest) {
		if err := ctx.Err(); err != nil {
			return err
		}
		msg := tgbotapi.NewMessage(t.chatID, text)
		msg.ParseMode = tgbotapi.ModeHTML
		msg.DisableWebPagePreview = true
		if _, err := t.bot.Send(msg); err != nil {
			return fmt.Errorf("send telegram message: %w", err)
		}
	}
	return nil
}

func (t *Telegram) messages(d models.Digest) []string {
	counts := d.CountByRecommendation()
	header := fmt.Sprintf("🎯 <b>%d new job match(es)</b>\n%d apply · %d consider\n",
		len(d.Jobs), counts[models.RecommendationApply], counts[models.RecommendationConsider])

	var (
		out     []string
		current strings.Builder
	)
	current.WriteString(header)

	for _, j := range d.Jobs {
		block := formatJobHTML(j)
		if current.Len()+len(block) > maxMessageLen {
			out = append(out, current.String())
			current.Reset()
		}
		current.WriteString(block)
	}
	if current.Len() > 0 {
		out = append(out, current.String())
	}
	return out
}

func formatJobHTML(j models.Job) string {
	return fmt.Sprintf(
		"\n<b>[%d/100] %s</b>\n🏢 %s\n📍 %s\n🔗 <a href=\"%s\">View posting</a>\n",
		j.Score,
		html.EscapeString(j.Title),
		html.EscapeString(orDefault(j.CompanyName, "Unknown")),
		html.EscapeString(orDefault(j.Location, "Not specified")),
		html.EscapeString(j.URL),
	)
}
