package domain

import (
	"time"

	"github.com/google/uuid"
)

type AuditAction string

const (
	AuditActionCreated  AuditAction = "created"
	AuditActionUpdated  AuditAction = "updated"
	AuditActionRevoked  AuditAction = "revoked"
	AuditActionExpired  AuditAction = "expired"
	AuditActionAccessed AuditAction = "accessed"
	AuditActionError    AuditAction = "error"
)

// AuditEntry — неизменяемая запись журнала. Записи никогда не
// обновляются и не удаляются, кроме чистки по сроку хранения.
type AuditEntry struct {
	ID          uuid.UUID   `json:"id"`
	ShareID     string      `json:"share_id"`
	Action      AuditAction `json:"action"`
	PerformedBy string      `json:"performed_by"`
	Details     string      `json:"details"`
	// Allowed — исход попытки доступа; имеет смысл только для
	// записей с action=accessed
	Allowed   bool      `json:"allowed,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	IPAddress string    `json:"ip_address,omitempty"`
	UserAgent string    `json:"user_agent,omitempty"`
}

// UserActivityCount — количество записей журнала по пользователю
type UserActivityCount struct {
	UserID string `json:"user_id"`
	Count  int    `json:"count"`
}

// ShareStatistics — агрегаты журнала за период
type ShareStatistics struct {
	From           time.Time           `json:"from"`
	To             time.Time           `json:"to"`
	CountsByAction map[AuditAction]int `json:"counts_by_action"`
	TopUsers       []UserActivityCount `json:"top_users"`
	AccessGranted  int                 `json:"access_granted"`
	AccessDenied   int                 `json:"access_denied"`
}
