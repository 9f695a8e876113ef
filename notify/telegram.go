// Package notify delivers engine messages to a Telegram channel.
package notify

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/ridgelift/livetrack/tracker"
)

type Telegram struct {
	bot     *tgbotapi.BotAPI
	channel string // "@channelname", or a numeric chat id
}

// New dials the Telegram API. A missing token is the one fatal configuration
// error; callers should abort startup when this fails.
func New(token, channel string, timeout time.Duration) (*Telegram, error) {
	if token == "" {
		return nil, fmt.Errorf("no telegram token (set TELEGRAM_TOKEN)")
	}
	if channel == "" {
		return nil, fmt.Errorf("no channel defined")
	}

	bot, err := tgbotapi.NewBotAPIWithClient(token, tgbotapi.APIEndpoint,
		&http.Client{Timeout: timeout})
	if err != nil {
		return nil, err
	}
	return &Telegram{bot: bot, channel: channel}, nil
}

func (t *Telegram) Send(text string) (tracker.MessageRef, error) {
	var msg tgbotapi.MessageConfig
	if strings.HasPrefix(t.channel, "@") {
		msg = tgbotapi.NewMessageToChannel(t.channel, text)
	} else {
		id, err := strconv.ParseInt(t.channel, 10, 64)
		if err != nil {
			return tracker.MessageRef{}, fmt.Errorf("bad channel %q: %v", t.channel, err)
		}
		msg = tgbotapi.NewMessage(id, text)
	}
	msg.ParseMode = tgbotapi.ModeMarkdown

	sent, err := t.bot.Send(msg)
	if err != nil {
		return tracker.MessageRef{}, err
	}
	return tracker.MessageRef{ChatID: sent.Chat.ID, MessageID: sent.MessageID}, nil
}

func (t *Telegram) Delete(ref tracker.MessageRef) error {
	_, err := t.bot.Request(tgbotapi.NewDeleteMessage(ref.ChatID, ref.MessageID))
	return err
}
