package service

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

type JobType string

const (
	JobTypeExpiration JobType = "expiration"
	JobTypeReminder   JobType = "reminder"
)

// ExpirationJob — отложенная задача по гранту: истечение срока или
// напоминание. Выполняется один раз.
type ExpirationJob struct {
	ID          uuid.UUID
	ShareID     string
	Type        JobType
	ScheduledAt time.Time
	Executed    bool
}

// ShareExpirationService ведет таблицу задач в памяти и периодически
// выполняет наступившие. Фоновый цикл принадлежит жизненному циклу
// сервиса: запускается через Start(ctx) и останавливается отменой
// контекста.
type ShareExpirationService struct {
	mu   sync.Mutex
	jobs map[string]*ExpirationJob // ключ shareID_type

	shareRepo     SharePersistence
	directory     UserDirectory
	notifications *ShareNotificationService
	audit         *ShareAuditService
	interval      time.Duration
}

func NewShareExpirationService(
	shareRepo SharePersistence,
	directory UserDirectory,
	notifications *ShareNotificationService,
	audit *ShareAuditService,
	interval time.Duration,
) *ShareExpirationService {
	if interval <= 0 {
		interval = time.Minute
	}
	return &ShareExpirationService{
		jobs:          make(map[string]*ExpirationJob),
		shareRepo:     shareRepo,
		directory:     directory,
		notifications: notifications,
		audit:         audit,
		interval:      interval,
	}
}

func jobKey(shareID string, t JobType) string {
	return fmt.Sprintf("%s_%s", shareID, t)
}

// ScheduleExpiration планирует задачу истечения на дату окончания
// гранта и, если до нее больше недели, напоминание за 7 дней
func (s *ShareExpirationService) ScheduleExpiration(shareID string, endDate time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scheduleLocked(shareID, endDate)
}

func (s *ShareExpirationService) scheduleLocked(shareID string, endDate time.Time) {
	s.jobs[jobKey(shareID, JobTypeExpiration)] = &ExpirationJob{
		ID:          uuid.New(),
		ShareID:     shareID,
		Type:        JobTypeExpiration,
		ScheduledAt: endDate,
	}

	if time.Until(endDate) > reminderThresholdDays*24*time.Hour {
		s.jobs[jobKey(shareID, JobTypeReminder)] = &ExpirationJob{
			ID:          uuid.New(),
			ShareID:     shareID,
			Type:        JobTypeReminder,
			ScheduledAt: endDate.AddDate(0, 0, -reminderThresholdDays),
		}
	}
}

// CancelExpiration снимает все задачи по гранту
func (s *ShareExpirationService) CancelExpiration(shareID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelLocked(shareID)
}

func (s *ShareExpirationService) cancelLocked(shareID string) {
	delete(s.jobs, jobKey(shareID, JobTypeExpiration))
	delete(s.jobs, jobKey(shareID, JobTypeReminder))
}

// UpdateExpiration перепланирует задачи после продления гранта.
// Снятие и постановка выполняются под одной блокировкой.
func (s *ShareExpirationService) UpdateExpiration(shareID string, newEndDate time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelLocked(shareID)
	s.scheduleLocked(shareID, newEndDate)
}

// Start запускает периодический обход задач до отмены контекста
func (s *ShareExpirationService) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep выполняет все наступившие задачи. Задача потребляется под
// блокировкой до выполнения: изымается из таблицы и помечается, поэтому
// повторный обход (в том числе перекрывающийся) не выполнит её дважды,
// а таблица не растет вместе с числом выданных грантов.
func (s *ShareExpirationService) Sweep(ctx context.Context) {
	now := time.Now()

	s.mu.Lock()
	var due []*ExpirationJob
	for key, job := range s.jobs {
		if !job.Executed && !job.ScheduledAt.After(now) {
			job.Executed = true
			delete(s.jobs, key)
			due = append(due, job)
		}
	}
	s.mu.Unlock()

	for _, job := range due {
		if err := s.execute(ctx, job); err != nil {
			log.Printf("[ExpirationSweep] warning: job %s for share %s failed: %v",
				job.Type, job.ShareID, err)
		}
	}
}

func (s *ShareExpirationService) execute(ctx context.Context, job *ExpirationJob) error {
	share, err := s.shareRepo.FindByID(ctx, job.ShareID)
	if err != nil {
		return fmt.Errorf("failed to load share: %w", err)
	}

	recipients, err := s.directory.GetByIDs(ctx, share.SharedWith)
	if err != nil {
		log.Printf("[ExpirationSweep] warning: failed to resolve recipients for share %s: %v", job.ShareID, err)
		recipients = nil
	}

	switch job.Type {
	case JobTypeExpiration:
		if share.Archived {
			return nil
		}
		if !share.HasExpired() {
			// Грант продлили после планирования задачи
			return nil
		}
		if _, err := s.shareRepo.Archive(ctx, job.ShareID); err != nil {
			return fmt.Errorf("failed to archive expired share: %w", err)
		}
		s.notifications.NotifyShareExpired(ctx, share, recipients)
		s.audit.LogShareExpired(ctx, job.ShareID)

	case JobTypeReminder:
		if !share.IsValid() || share.EndDate == nil {
			return nil
		}
		s.notifications.NotifyExpirationReminder(ctx, share, recipients, int(share.GetDaysRemaining()))
	}

	return nil
}

// PendingJobs возвращает количество незавершенных задач (для
// диагностики и healthcheck)
func (s *ShareExpirationService) PendingJobs() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, job := range s.jobs {
		if !job.Executed {
			count++
		}
	}
	return count
}
