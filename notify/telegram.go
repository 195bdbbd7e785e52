package notify

import (
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"gridbot/logger"
)

// Telegram pushes notifications to a single chat.
type Telegram struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

// NewTelegram validates the token against the Telegram API and returns a
// ready notifier.
func NewTelegram(token string, chatID int64) (*Telegram, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram auth: %w", err)
	}
	logger.Infof("[Notify] telegram bot @%s ready", bot.Self.UserName)
	return &Telegram{bot: bot, chatID: chatID}, nil
}

func (t *Telegram) NotifyTrade(e Event) {
	t.send(FormatTrade(e))
}

func (t *Telegram) NotifyError(symbol, message string) {
	t.send(fmt.Sprintf("⚠️ %s\n%s", symbol, message))
}

func (t *Telegram) NotifyStart(symbols []string) {
	t.send(fmt.Sprintf("🤖 Grid bot started\nSymbols: %s", strings.Join(symbols, ", ")))
}

func (t *Telegram) NotifyStop(reason string) {
	t.send(fmt.Sprintf("🛑 Grid bot stopped\n%s", reason))
}

func (t *Telegram) send(text string) {
	msg := tgbotapi.NewMessage(t.chatID, text)
	if _, err := t.bot.Send(msg); err != nil {
		logger.Warnf("[Notify] telegram send failed: %v", err)
	}
}

// FormatTrade renders a trade event as a Telegram message.
func FormatTrade(e Event) string {
	var b strings.Builder
	switch e.Action {
	case "place":
		icon := "🟢"
		if e.Side == "SELL" {
			icon = "🔴"
		}
		fmt.Fprintf(&b, "%s %s %s\n", icon, e.Side, e.Symbol)
		fmt.Fprintf(&b, "Price: %g\nQuantity: %g", e.Price, e.Quantity)
	case "cancel":
		fmt.Fprintf(&b, "✖️ Cancelled %s %s @ %g", e.Side, e.Symbol, e.Price)
	case "close_all":
		fmt.Fprintf(&b, "📕 Closed all positions on %s", e.Symbol)
		if e.Quantity != 0 {
			fmt.Fprintf(&b, "\n%s %g @ %g\nPnL: %+.2f", e.Side, e.Quantity, e.Price, e.PnL)
		}
		if e.Reason != "" {
			fmt.Fprintf(&b, "\nReason: %s", e.Reason)
		}
	default:
		fmt.Fprintf(&b, "%s %s %s @ %g", e.Action, e.Side, e.Symbol, e.Price)
	}
	return b.String()
}
