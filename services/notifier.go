package services

import (
	"context"
	"fmt"
	"html"
	"io"
	"log"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Notifier сообщает пользователю об ошибках соединения
type Notifier interface {
	Notify(ctx context.Context, title, message string) error
}

// LogNotifier пишет уведомления в лог
type LogNotifier struct {
	logger *log.Logger
}

// NewLogNotifier создает уведомитель, пишущий в лог
func NewLogNotifier(logger *log.Logger) *LogNotifier {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &LogNotifier{logger: logger}
}

// Notify пишет уведомление в лог
func (n *LogNotifier) Notify(ctx context.Context, title, message string) error {
	n.logger.Printf("⚠️  %s: %s", title, message)
	return nil
}

// telegramSender часть tgbotapi.BotAPI, которая нужна уведомителю
type telegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramNotifier отправляет уведомления в чат Telegram
type TelegramNotifier struct {
	bot    telegramSender
	chatID int64
}

// NewTelegramNotifier создает уведомитель Telegram
func NewTelegramNotifier(botToken, chatID string) (*TelegramNotifier, error) {
	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("неверный chat ID: %s", chatID)
	}

	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания Telegram бота: %w", err)
	}
	bot.Debug = false

	log.Printf("✅ Telegram бот авторизован: %s", bot.Self.UserName)

	return &TelegramNotifier{bot: bot, chatID: id}, nil
}

// Notify отправляет сообщение в чат
func (n *TelegramNotifier) Notify(ctx context.Context, title, message string) error {
	text := fmt.Sprintf("<b>%s</b>\n%s", html.EscapeString(title), html.EscapeString(message))

	msg := tgbotapi.NewMessage(n.chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML

	if _, err := n.bot.Send(msg); err != nil {
		return fmt.Errorf("ошибка отправки сообщения: %w", err)
	}
	return nil
}
