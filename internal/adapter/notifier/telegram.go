package notifier

import (
	"context"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/semmidev/dbstash/internal/config"
	"github.com/semmidev/dbstash/internal/domain"
)

type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram posts a short report for finished jobs.
type Telegram struct {
	bot          sender
	chatID       int64
	failuresOnly bool
}

func NewTelegram(cfg *config.TelegramConfig) (*Telegram, error) {
	bot, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	return &Telegram{
		bot:          bot,
		chatID:       cfg.ChatID,
		failuresOnly: cfg.On != "always",
	}, nil
}

func (t *Telegram) Notify(ctx context.Context, report domain.Report) error {
	if t.failuresOnly && report.Outcome.Status != domain.StatusFailed {
		return nil
	}

	if _, err := t.bot.Send(tgbotapi.NewMessage(t.chatID, FormatReport(report))); err != nil {
		return fmt.Errorf("failed to send telegram notification: %w", err)
	}
	return nil
}

func FormatReport(report domain.Report) string {
	var b strings.Builder
	if report.Outcome.Status == domain.StatusFailed {
		fmt.Fprintf(&b, "❌ Backup failed at %s\n\n", report.Outcome.Stage)
	} else {
		b.WriteString("✅ Backup Created\n\n")
	}
	fmt.Fprintf(&b, "🆔 Job: %s\n", report.JobID)
	if report.RemoteKey != "" {
		fmt.Fprintf(&b, "📁 Key: %s\n", report.RemoteKey)
	}
	if report.Size > 0 {
		fmt.Fprintf(&b, "📊 Size: %.2f MB\n", float64(report.Size)/(1024*1024))
	}
	fmt.Fprintf(&b, "⏱ Duration: %s", report.Duration.Round(100*time.Millisecond))
	if report.Outcome.Err != nil {
		fmt.Fprintf(&b, "\n⚠️ Error: %v", report.Outcome.Err)
	}
	return b.String()
}
