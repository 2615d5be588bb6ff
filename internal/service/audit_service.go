package service

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/google/uuid"

	"fitshare/internal/domain"
)

// ShareAuditService пишет журнал всех событий жизненного цикла гранта
// и попыток доступа. Запись best-effort: ошибка хранилища логируется,
// но основную операцию не прерывает.
type ShareAuditService struct {
	repo AuditPersistence
}

func NewShareAuditService(repo AuditPersistence) *ShareAuditService {
	return &ShareAuditService{repo: repo}
}

func (s *ShareAuditService) write(ctx context.Context, entry domain.AuditEntry) {
	entry.ID = uuid.New()
	entry.Timestamp = time.Now()
	if err := s.repo.Create(ctx, &entry); err != nil {
		log.Printf("[Audit] warning: failed to write audit entry %s for share %s: %v",
			entry.Action, entry.ShareID, err)
	}
}

// LogShareCreated фиксирует создание гранта
func (s *ShareAuditService) LogShareCreated(ctx context.Context, share *domain.SharedResource, performedBy string) {
	s.write(ctx, domain.AuditEntry{
		ShareID:     share.ID.String(),
		Action:      domain.AuditActionCreated,
		PerformedBy: performedBy,
		Details: fmt.Sprintf("shared %s %s with %d user(s)",
			share.ResourceType, share.ResourceID, len(share.SharedWith)),
	})
}

// LogShareUpdated фиксирует изменение гранта
func (s *ShareAuditService) LogShareUpdated(ctx context.Context, shareID, performedBy, details string) {
	s.write(ctx, domain.AuditEntry{
		ShareID:     shareID,
		Action:      domain.AuditActionUpdated,
		PerformedBy: performedBy,
		Details:     details,
	})
}

// LogShareRevoked фиксирует отзыв гранта
func (s *ShareAuditService) LogShareRevoked(ctx context.Context, shareID, performedBy string) {
	s.write(ctx, domain.AuditEntry{
		ShareID:     shareID,
		Action:      domain.AuditActionRevoked,
		PerformedBy: performedBy,
		Details:     "share revoked",
	})
}

// LogShareExpired фиксирует истечение срока гранта
func (s *ShareAuditService) LogShareExpired(ctx context.Context, shareID string) {
	s.write(ctx, domain.AuditEntry{
		ShareID:     shareID,
		Action:      domain.AuditActionExpired,
		PerformedBy: "system",
		Details:     "share expired",
	})
}

// LogAccessAttempt фиксирует попытку доступа, успешную или нет
func (s *ShareAuditService) LogAccessAttempt(ctx context.Context, shareID, userID string, action domain.Action, allowed bool, reason string, metadata map[string]string) {
	details := fmt.Sprintf("action=%s allowed=%t", action, allowed)
	if reason != "" {
		details += " reason=" + reason
	}
	s.write(ctx, domain.AuditEntry{
		ShareID:     shareID,
		Action:      domain.AuditActionAccessed,
		PerformedBy: userID,
		Details:     details,
		Allowed:     allowed,
		IPAddress:   metadata["ip_address"],
		UserAgent:   metadata["user_agent"],
	})
}

// LogShareError фиксирует инфраструктурную ошибку операции шаринга
func (s *ShareAuditService) LogShareError(ctx context.Context, shareID, performedBy, details string) {
	s.write(ctx, domain.AuditEntry{
		ShareID:     shareID,
		Action:      domain.AuditActionError,
		PerformedBy: performedBy,
		Details:     details,
	})
}

// GetShareHistory возвращает все записи журнала по гранту
func (s *ShareAuditService) GetShareHistory(ctx context.Context, shareID string) ([]domain.AuditEntry, error) {
	return s.repo.FindByShareID(ctx, shareID)
}

// GetUserShareActivity возвращает все записи журнала по пользователю
func (s *ShareAuditService) GetUserShareActivity(ctx context.Context, userID string) ([]domain.AuditEntry, error) {
	return s.repo.FindByUserID(ctx, userID)
}

// GetShareStatistics собирает агрегаты журнала за период: счетчики по
// типам событий, наиболее активных пользователей и долю успешных
// попыток доступа
func (s *ShareAuditService) GetShareStatistics(ctx context.Context, from, to time.Time) (*domain.ShareStatistics, error) {
	entries, err := s.repo.FindByDateRange(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to load audit entries: %w", err)
	}

	stats := &domain.ShareStatistics{
		From:           from,
		To:             to,
		CountsByAction: make(map[domain.AuditAction]int),
	}

	userCounts := make(map[string]int)
	for _, entry := range entries {
		stats.CountsByAction[entry.Action]++
		if entry.PerformedBy != "" && entry.PerformedBy != "system" {
			userCounts[entry.PerformedBy]++
		}
		if entry.Action == domain.AuditActionAccessed {
			if entry.Allowed {
				stats.AccessGranted++
			} else {
				stats.AccessDenied++
			}
		}
	}

	for userID, count := range userCounts {
		stats.TopUsers = append(stats.TopUsers, domain.UserActivityCount{UserID: userID, Count: count})
	}
	sort.Slice(stats.TopUsers, func(i, j int) bool {
		if stats.TopUsers[i].Count != stats.TopUsers[j].Count {
			return stats.TopUsers[i].Count > stats.TopUsers[j].Count
		}
		return stats.TopUsers[i].UserID < stats.TopUsers[j].UserID
	})
	if len(stats.TopUsers) > 10 {
		stats.TopUsers = stats.TopUsers[:10]
	}

	return stats, nil
}

// CleanupOldEntries удаляет записи журнала старше указанного числа дней
func (s *ShareAuditService) CleanupOldEntries(ctx context.Context, olderThanDays int) (int, error) {
	if olderThanDays <= 0 {
		return 0, fmt.Errorf("retention period must be positive, got %d", olderThanDays)
	}
	cutoff := time.Now().AddDate(0, 0, -olderThanDays)
	return s.repo.DeleteOlderThan(ctx, cutoff)
}
