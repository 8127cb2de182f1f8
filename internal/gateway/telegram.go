package gateway

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"telegram-emotion-diary/internal/models"
)

// Telegram is the Gateway backed by the Bot API long polling.
type Telegram struct {
	Bot         *tgbotapi.BotAPI
	PollTimeout int // seconds
	log         *zap.Logger
}

func NewTelegram(token string, pollTimeout int, log *zap.Logger) (*Telegram, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram: %w", err)
	}
	log.Info("authorized on telegram", zap.String("account", bot.Self.UserName))
	return &Telegram{Bot: bot, PollTimeout: pollTimeout, log: log}, nil
}

func (t *Telegram) Updates(ctx context.Context) <-chan Update {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = t.PollTimeout

	updates := t.Bot.GetUpdatesChan(updateConfig)
	out := make(chan Update)

	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				t.Bot.StopReceivingUpdates()
				return
			case upd, ok := <-updates:
				if !ok {
					return
				}
				u, ok := fromTelegram(upd)
				if !ok {
					continue
				}
				select {
				case out <- u:
				case <-ctx.Done():
					t.Bot.StopReceivingUpdates()
					return
				}
			}
		}
	}()
	return out
}

// fromTelegram keeps text messages from users and drops everything else.
func fromTelegram(upd tgbotapi.Update) (Update, bool) {
	msg := upd.Message
	if msg == nil || msg.From == nil {
		return Update{}, false
	}
	u := Update{UserID: msg.From.ID, Text: msg.Text}
	if msg.IsCommand() {
		u.Command = msg.Command()
	}
	return u, true
}

func (t *Telegram) Send(_ context.Context, userID int64, p models.Prompt) error {
	msg := tgbotapi.NewMessage(userID, p.Text)
	switch {
	case len(p.Options) > 0:
		msg.ReplyMarkup = replyKeyboard(p.Options, p.Columns)
	case p.RemoveKeyboard:
		msg.ReplyMarkup = tgbotapi.NewRemoveKeyboard(true)
	}
	if _, err := t.Bot.Send(msg); err != nil {
		return fmt.Errorf("telegram send to %d: %w", userID, err)
	}
	return nil
}

// replyKeyboard lays options out in rows of columns buttons; 0 puts all of them in one row.
func replyKeyboard(options []string, columns int) tgbotapi.ReplyKeyboardMarkup {
	if columns <= 0 {
		columns = len(options)
	}
	var rows [][]tgbotapi.KeyboardButton
	for start := 0; start < len(options); start += columns {
		end := min(start+columns, len(options))
		row := make([]tgbotapi.KeyboardButton, 0, end-start)
		for _, o := range options[start:end] {
			row = append(row, tgbotapi.NewKeyboardButton(o))
		}
		rows = append(rows, tgbotapi.NewKeyboardButtonRow(row...))
	}
	kb := tgbotapi.NewReplyKeyboard(rows...)
	kb.ResizeKeyboard = true
	return kb
}
