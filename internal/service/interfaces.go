package service

import (
	"context"
	"time"

	"fitshare/internal/domain"
)

// SharePersistence — контракт хранилища грантов. Реализация живет
// в internal/repository, сервисы зависят только от интерфейса.
type SharePersistence interface {
	FindByID(ctx context.Context, shareID string) (*domain.SharedResource, error)
	FindByUserAndResource(ctx context.Context, userID, resourceID string) (*domain.SharedResource, error)
	FindByOwnerID(ctx context.Context, ownerID string) ([]domain.SharedResource, error)
	FindBySharedUserID(ctx context.Context, userID string) ([]domain.SharedResource, error)
	FindByResourceID(ctx context.Context, resourceID string) ([]domain.SharedResource, error)
	Create(ctx context.Context, share *domain.SharedResource) error
	Update(ctx context.Context, share *domain.SharedResource) error
	Archive(ctx context.Context, shareID string) (bool, error)
	BulkArchiveExpired(ctx context.Context) (int, error)
}

// AuditPersistence — контракт хранилища журнала аудита
type AuditPersistence interface {
	Create(ctx context.Context, entry *domain.AuditEntry) error
	FindByShareID(ctx context.Context, shareID string) ([]domain.AuditEntry, error)
	FindByUserID(ctx context.Context, userID string) ([]domain.AuditEntry, error)
	FindByDateRange(ctx context.Context, from, to time.Time) ([]domain.AuditEntry, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error)
}

// UserDirectory — read-модель identity-сервиса: роль, организация,
// статус пользователя
type UserDirectory interface {
	GetByID(ctx context.Context, userID string) (*domain.User, error)
	GetByIDs(ctx context.Context, userIDs []string) ([]domain.User, error)
}

// NotificationTransport доставляет готовое уведомление получателю.
// Результат доставки в пайплайн шаринга не возвращается.
type NotificationTransport interface {
	Send(ctx context.Context, recipient string, subject, body string) error
}
