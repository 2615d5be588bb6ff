package notification

import (
	"context"
	"log"
)

// LogTransport — транспорт-заглушка: пишет уведомления в лог.
// Реальная доставка (почта, push) подключается отдельным транспортом,
// реализующим тот же интерфейс.
type LogTransport struct{}

func NewLogTransport() *LogTransport {
	return &LogTransport{}
}

func (t *LogTransport) Send(ctx context.Context, recipient string, subject, body string) error {
	log.Printf("[Notification] to=%s subject=%q", recipient, subject)
	return nil
}
