// internal/notify/notifier.go
// Package notify delivers trade lifecycle notifications. Delivery is best
// effort: a failed send is logged and never interrupts trading.
package notify

import (
	"fmt"
	"strings"

	tgbot "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/dkovalev/perps-bot/internal/profit"
	"github.com/dkovalev/perps-bot/internal/trading"
)

// Telegram pushes formatted trade events to a single chat.
type Telegram struct {
	logger *zap.Logger
	bot    *tgbot.BotAPI
	chatID int64
}

// NewTelegram authorizes the bot token and binds it to a chat.
func NewTelegram(token string, chatID int64, logger *zap.Logger) (*Telegram, error) {
	b, err := tgbot.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to authorize telegram bot: %w", err)
	}
	return &Telegram{
		logger: logger.Named("notify"),
		bot:    b,
		chatID: chatID,
	}, nil
}

func (t *Telegram) send(msg string) {
	if t == nil || t.bot == nil || t.chatID == 0 {
		return
	}
	if _, err := t.bot.Send(tgbot.NewMessage(t.chatID, msg)); err != nil {
		t.logger.Warn("Telegram send failed", zap.Error(err))
	}
}

// TradeOpened announces a freshly opened position.
func (t *Telegram) TradeOpened(pos *trading.Position) {
	t.send(formatOpen(pos))
}

// TradeClosed announces the exit and its profit allocation.
func (t *Telegram) TradeClosed(pos *trading.Position, rec profit.Record) {
	t.send(formatClose(pos, rec))
}

func formatOpen(pos *trading.Position) string {
	spec := pos.Spec
	var b strings.Builder
	fmt.Fprintf(&b, "📈 Opened %s %s\n", spec.Direction, pos.Symbol)
	fmt.Fprintf(&b, "Collateral: $%.2f @ %dx ($%.2f)\n",
		spec.CollateralAmount, spec.Leverage, spec.PositionSizeUSD)
	if spec.EntryPrice > 0 {
		fmt.Fprintf(&b, "Entry: %.4f\n", spec.EntryPrice)
	}
	fmt.Fprintf(&b, "Venue: %s", pos.VenueMode)
	return b.String()
}

func formatClose(pos *trading.Position, rec profit.Record) string {
	var b strings.Builder
	emoji := "✅"
	if pos.PnL < 0 {
		emoji = "🔻"
	}
	fmt.Fprintf(&b, "%s Closed %s [%s]\n", emoji, pos.Symbol, pos.CloseKind)
	fmt.Fprintf(&b, "PnL: $%.2f @ %.4f\n", pos.PnL, pos.ExitPrice)
	if rec.Kind == profit.KindProfit {
		fmt.Fprintf(&b, "Allocation (%s): reinvest $%.2f / hard asset $%.2f / reserve $%.2f\n",
			rec.Phase, rec.ReinvestAmount, rec.HardAssetAmount, rec.ReserveAmount)
		fmt.Fprintf(&b, "Balance: $%.2f", rec.NewBalance)
	} else {
		fmt.Fprintf(&b, "Protected stacks untouched: $%.2f",
			rec.ProtectedHardAsset+rec.ProtectedReserve)
		if rec.RebateEligible {
			b.WriteString("\nRebate eligible ♻️")
		}
	}
	return b.String()
}

// Noop satisfies the notifier contract when Telegram is not configured.
type Noop struct{}

func NewNoop() *Noop { return &Noop{} }

func (*Noop) TradeOpened(*trading.Position)                {}
func (*Noop) TradeClosed(*trading.Position, profit.Record) {}
