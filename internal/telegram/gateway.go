package telegram

import (
	"fmt"
	"log"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Button is one inline keyboard button. Callback data goes back to the bot
// front end which owns command handling.
type Button struct {
	Text string
	Data string
}

// SendOptions controls formatting and the optional inline keyboard.
type SendOptions struct {
	Markdown bool
	Keyboard [][]Button
}

type Gateway struct {
	bot *tgbotapi.BotAPI
}

// NewGateway initializes the Telegram client from a bot token.
func NewGateway(token string) (*Gateway, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telegram bot: %w", err)
	}

	log.Printf("Telegram gateway authorized as @%s", bot.Self.UserName)
	return &Gateway{bot: bot}, nil
}

// SendMessage delivers one message to a chat. Callers treat a returned
// error as a delivery failure to log, never to propagate past a sweep.
func (g *Gateway) SendMessage(chatID int64, text string, opts *SendOptions) error {
	msg := tgbotapi.NewMessage(chatID, text)

	if opts != nil {
		if opts.Markdown {
			msg.ParseMode = tgbotapi.ModeMarkdown
		}
		if len(opts.Keyboard) > 0 {
			var rows [][]tgbotapi.InlineKeyboardButton
			for _, row := range opts.Keyboard {
				var buttons []tgbotapi.InlineKeyboardButton
				for _, b := range row {
					buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(b.Text, b.Data))
				}
				rows = append(rows, buttons)
			}
			msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
		}
	}

	if _, err := g.bot.Send(msg); err != nil {
		return fmt.Errorf("failed to send telegram message to chat %d: %w", chatID, err)
	}

	return nil
}
