package notify

import (
	"context"
	"testing"

	"github.com/go-faster/errors"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/buzzer/internal/domain/auth"
	"github.com/xenking/buzzer/internal/event"
)

// --- Mock implementations ---

type mockChats struct {
	chats map[vendorKey]int64
	err   map[vendorKey]error
}

func (m *mockChats) VendorChatID(_ context.Context, role auth.Role, id int64) (int64, bool, error) {
	k := vendorKey{role: role, id: id}
	if err := m.err[k]; err != nil {
		return 0, false, err
	}
	chat, ok := m.chats[k]
	return chat, ok, nil
}

type mockSender struct {
	sent []tgbotapi.MessageConfig
	err  error
}

func (m *mockSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if m.err != nil {
		return tgbotapi.Message{}, m.err
	}
	m.sent = append(m.sent, c.(tgbotapi.MessageConfig))
	return tgbotapi.Message{}, nil
}

// --- Helpers ---

func placedEvent() event.Event {
	e := event.New(event.OrderPlaced)
	e.OrderID = 12
	e.Items = []event.Item{
		{ProductID: 1, Name: "Latte", Quantity: 2, Price: decimal.NewFromInt(4), VendorType: "cafe", VendorID: 3},
		{ProductID: 2, Name: "Burger", Quantity: 1, Price: decimal.RequireFromString("9.5"), VendorType: "restaurant", VendorID: 8},
		{ProductID: 3, Name: "Bagel", Quantity: 1, Price: decimal.NewFromInt(2), VendorType: "cafe", VendorID: 3},
	}
	return e
}

// --- Tests ---

func TestNotifier_Handle(t *testing.T) {
	chats := &mockChats{chats: map[vendorKey]int64{
		{role: auth.RoleCafe, id: 3}:       1001,
		{role: auth.RoleRestaurant, id: 8}: 1002,
	}}
	sender := &mockSender{}

	require.NoError(t, New(chats, sender).Handle(context.Background(), placedEvent()))
	require.Len(t, sender.sent, 2)

	cafe := sender.sent[0]
	assert.Equal(t, int64(1001), cafe.ChatID)
	assert.Equal(t, "New order #12\n\n• Bagel × 1 = 2.00\n• Latte × 2 = 8.00\n\nTotal: 10.00", cafe.Text)

	assert.Equal(t, int64(1002), sender.sent[1].ChatID)
	assert.Contains(t, sender.sent[1].Text, "Burger × 1 = 9.50")
}

func TestNotifier_Handle_SkipsVendorsWithoutChat(t *testing.T) {
	chats := &mockChats{chats: map[vendorKey]int64{{role: auth.RoleRestaurant, id: 8}: 1002}}
	sender := &mockSender{}

	require.NoError(t, New(chats, sender).Handle(context.Background(), placedEvent()))
	require.Len(t, sender.sent, 1)
	assert.Equal(t, int64(1002), sender.sent[0].ChatID)
}

func TestNotifier_Handle_IgnoredTypes(t *testing.T) {
	sender := &mockSender{}
	e := placedEvent()
	e.Type = event.PaymentRefunded

	require.NoError(t, New(&mockChats{}, sender).Handle(context.Background(), e))
	assert.Empty(t, sender.sent)
}

func TestNotifier_Handle_Errors(t *testing.T) {
	resolveErr := errors.New("db down")
	chats := &mockChats{
		chats: map[vendorKey]int64{{role: auth.RoleRestaurant, id: 8}: 1002},
		err:   map[vendorKey]error{{role: auth.RoleCafe, id: 3}: resolveErr},
	}
	sender := &mockSender{}

	err := New(chats, sender).Handle(context.Background(), placedEvent())
	require.ErrorIs(t, err, resolveErr)
	assert.Len(t, sender.sent, 1, "other vendors are still notified")

	chats.err = nil
	err = New(chats, &mockSender{err: errors.New("blocked")}).Handle(context.Background(), placedEvent())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "blocked")
}
