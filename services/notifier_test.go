package services

import (
	"bytes"
	"context"
	"errors"
	"log"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	sent []tgbotapi.MessageConfig
	err  error
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if msg, ok := c.(tgbotapi.MessageConfig); ok {
		f.sent = append(f.sent, msg)
	}
	return tgbotapi.Message{}, f.err
}

func TestLogNotifier(t *testing.T) {
	var buf bytes.Buffer
	n := NewLogNotifier(log.New(&buf, "", 0))

	require.NoError(t, n.Notify(context.Background(), "Connection Error", "devices unavailable"))
	assert.Contains(t, buf.String(), "Connection Error: devices unavailable")
}

func TestTelegramNotifier_Notify(t *testing.T) {
	sender := &fakeSender{}
	n := &TelegramNotifier{bot: sender, chatID: 42}

	require.NoError(t, n.Notify(context.Background(), "Connection Error", "статус 503 <html>"))
	require.Len(t, sender.sent, 1)

	msg := sender.sent[0]
	assert.Equal(t, int64(42), msg.ChatID)
	assert.Equal(t, tgbotapi.ModeHTML, msg.ParseMode)
	assert.Equal(t, "<b>Connection Error</b>\nстатус 503 &lt;html&gt;", msg.Text)
}

func TestTelegramNotifier_SendError(t *testing.T) {
	n := &TelegramNotifier{bot: &fakeSender{err: errors.New("network down")}, chatID: 1}

	err := n.Notify(context.Background(), "t", "m")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "network down")
}

func TestNewTelegramNotifier_InvalidChatID(t *testing.T) {
	_, err := NewTelegramNotifier("token", "not-a-number")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chat ID")
}
