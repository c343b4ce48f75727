// Package notify tells vendors about orders that contain their products.
package notify

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/buzzer/internal/domain/auth"
	"github.com/xenking/buzzer/internal/event"
)

// ChatResolver finds the Telegram chat of a vendor. ok is false when the
// vendor has none.
type ChatResolver interface {
	VendorChatID(ctx context.Context, role auth.Role, id int64) (chatID int64, ok bool, err error)
}

// Sender delivers a Telegram message. *tgbotapi.BotAPI implements it.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

var headlines = map[event.Type]string{
	event.OrderPlaced:    "New order #%d",
	event.OrderPaid:      "Paid order #%d",
	event.OrderCancelled: "Order #%d was cancelled",
}

type vendorKey struct {
	role auth.Role
	id   int64
}

// Notifier sends one message per vendor for each order event.
type Notifier struct {
	chats  ChatResolver
	sender Sender
}

// New returns a Notifier.
func New(chats ChatResolver, sender Sender) *Notifier {
	return &Notifier{chats: chats, sender: sender}
}

// Handle notifies every vendor with lines in e. Events vendors don't act on
// are ignored. Failing vendors are logged and the rest are still notified;
// the first failure is returned.
func (n *Notifier) Handle(ctx context.Context, e event.Event) error {
	headline, ok := headlines[e.Type]
	if !ok {
		return nil
	}
	lg := zctx.From(ctx).With(zap.Int64("order_id", e.OrderID), zap.String("type", string(e.Type)))

	var firstErr error
	for _, g := range groupByVendor(e.Items) {
		chatID, ok, err := n.chats.VendorChatID(ctx, g.vendor.role, g.vendor.id)
		if err != nil {
			lg.Error("Resolve vendor chat", zap.Error(err), zap.Int64("vendor_id", g.vendor.id))
			firstErr = pick(firstErr, err)
			continue
		}
		if !ok {
			lg.Debug("Vendor has no chat", zap.String("vendor_type", string(g.vendor.role)), zap.Int64("vendor_id", g.vendor.id))
			continue
		}

		msg := tgbotapi.NewMessage(chatID, render(fmt.Sprintf(headline, e.OrderID), g.items))
		if _, err := n.sender.Send(msg); err != nil {
			lg.Error("Send vendor notification", zap.Error(err), zap.Int64("chat_id", chatID))
			firstErr = pick(firstErr, errors.Wrapf(err, "notify %s %d", g.vendor.role, g.vendor.id))
			continue
		}
		lg.Info("Vendor notified", zap.String("vendor_type", string(g.vendor.role)), zap.Int64("vendor_id", g.vendor.id))
	}
	return firstErr
}

func pick(first, err error) error {
	if first != nil {
		return first
	}
	return err
}

type vendorGroup struct {
	vendor vendorKey
	items  []event.Item
}

// groupByVendor keeps vendors in first-seen order.
func groupByVendor(items []event.Item) []vendorGroup {
	var (
		groups []vendorGroup
		index  = map[vendorKey]int{}
	)
	for _, it := range items {
		k := vendorKey{role: auth.Role(it.VendorType), id: it.VendorID}
		i, ok := index[k]
		if !ok {
			i = len(groups)
			index[k] = i
			groups = append(groups, vendorGroup{vendor: k})
		}
		groups[i].items = append(groups[i].items, it)
	}
	return groups
}

func render(headline string, items []event.Item) string {
	lines := make([]string, 0, len(items))
	total := decimal.Zero
	for _, it := range items {
		sub := it.Price.Mul(decimal.NewFromInt(int64(it.Quantity)))
		total = total.Add(sub)
		lines = append(lines, fmt.Sprintf("• %s × %d = %s", it.Name, it.Quantity, sub.StringFixed(2)))
	}
	sort.Strings(lines)

	var b strings.Builder
	b.WriteString(headline)
	b.WriteString("\n\n")
	b.WriteString(strings.Join(lines, "\n"))
	b.WriteString("\n\nTotal: ")
	b.WriteString(total.StringFixed(2))
	return b.String()
}
