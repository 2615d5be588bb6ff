package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"fitshare/internal/domain"
)

// UserShares — гранты пользователя: выданные им и выданные ему
type UserShares struct {
	Owned    []domain.SharedResource `json:"owned"`
	Received []domain.SharedResource `json:"received"`
}

// SharingService — оркестратор шаринга: структурная валидация,
// политики, создание гранта, планирование истечения, уведомления и
// аудит. Публичные операции не паникуют и не пробрасывают ошибки
// пайплайна — итог возвращается в объекте результата.
type SharingService struct {
	shareRepo     SharePersistence
	directory     UserDirectory
	validator     *ShareValidator
	ruleEngine    *ShareRuleEngine
	expiration    *ShareExpirationService
	notifications *ShareNotificationService
	audit         *ShareAuditService
}

func NewSharingService(
	shareRepo SharePersistence,
	directory UserDirectory,
	validator *ShareValidator,
	ruleEngine *ShareRuleEngine,
	expiration *ShareExpirationService,
	notifications *ShareNotificationService,
	audit *ShareAuditService,
) *SharingService {
	return &SharingService{
		shareRepo:     shareRepo,
		directory:     directory,
		validator:     validator,
		ruleEngine:    ruleEngine,
		expiration:    expiration,
		notifications: notifications,
		audit:         audit,
	}
}

// ShareResource создает грант. Политики проверяются отдельно для
// каждого получателя: грант разрешен, только если разрешен для всех,
// а ограничения берутся самые строгие.
func (s *SharingService) ShareResource(ctx context.Context, req *domain.ShareRequest, sharerID string) *domain.ShareResult {
	sharer, err := s.directory.GetByID(ctx, sharerID)
	if err != nil {
		s.audit.LogShareError(ctx, "", sharerID, fmt.Sprintf("failed to resolve sharer: %v", err))
		return &domain.ShareResult{Success: false, Errors: []string{fmt.Sprintf("failed to resolve sharer: %v", err)}}
	}

	// Структурные ошибки блокируют создание целиком
	if validationErrs := s.validator.ValidateShareRequest(ctx, req, sharer); len(validationErrs) > 0 {
		result := &domain.ShareResult{Success: false}
		for _, ve := range validationErrs {
			result.Errors = append(result.Errors, ve.Error())
		}
		return result
	}

	targets, err := s.directory.GetByIDs(ctx, req.TargetUserIDs)
	if err != nil {
		s.audit.LogShareError(ctx, "", sharerID, fmt.Sprintf("failed to resolve target users: %v", err))
		return &domain.ShareResult{Success: false, Errors: []string{fmt.Sprintf("failed to resolve target users: %v", err)}}
	}

	actions := req.Actions
	var warnings []string
	var maxDuration *time.Duration

	if s.ruleEngine != nil {
		allowed := true
		var reasons []string
		var suggested []domain.Action

		for i := range targets {
			ruleCtx := &domain.RuleContext{
				Sharer:           *sharer,
				TargetUser:       targets[i],
				ResourceID:       req.ResourceID,
				ResourceType:     req.ResourceType,
				RequestedActions: req.Actions,
				Request:          req,
			}
			eval := s.ruleEngine.EvaluateRules(ruleCtx)

			allowed = allowed && eval.Allowed
			reasons = append(reasons, eval.Reasons...)
			warnings = append(warnings, eval.Warnings...)
			suggested = unionActions(suggested, eval.SuggestedActions)
			if eval.MaxDuration != nil {
				if maxDuration == nil || *eval.MaxDuration < *maxDuration {
					maxDuration = eval.MaxDuration
				}
			}
		}

		if !allowed {
			return &domain.ShareResult{Success: false, Errors: reasons, Warnings: warnings}
		}
		if len(suggested) > 0 {
			actions = suggested
		}
	}

	endDate := req.EndDate
	if maxDuration != nil {
		capDate := time.Now().Add(*maxDuration)
		if endDate == nil || endDate.After(capDate) {
			if endDate != nil {
				warnings = append(warnings, fmt.Sprintf("end date was limited to %d days by sharing policies",
					int(maxDuration.Hours()/24)))
			} else {
				warnings = append(warnings, fmt.Sprintf("share duration was defaulted to %d days by sharing policies",
					int(maxDuration.Hours()/24)))
			}
			endDate = &capDate
		}
	}

	share, err := domain.NewSharedResource(
		req.ResourceID,
		req.ResourceType,
		sharer.ID,
		req.TargetUserIDs,
		actions,
		time.Now(),
		endDate,
		req.Conditions,
		req.Scope,
		req.Notes,
		sharer.ID,
	)
	if err != nil {
		return &domain.ShareResult{Success: false, Errors: []string{err.Error()}, Warnings: warnings}
	}

	if err := s.shareRepo.Create(ctx, share); err != nil {
		s.audit.LogShareError(ctx, share.ID.String(), sharerID, fmt.Sprintf("failed to persist share: %v", err))
		return &domain.ShareResult{Success: false, Errors: []string{fmt.Sprintf("failed to persist share: %v", err)}, Warnings: warnings}
	}

	// Истечение планируется только после успешного сохранения, чтобы
	// не осталось задачи для гранта, которого нет в хранилище
	if share.EndDate != nil {
		s.expiration.ScheduleExpiration(share.ID.String(), *share.EndDate)
	}
	s.notifications.NotifyResourceShared(ctx, share, sharer, targets)
	s.audit.LogShareCreated(ctx, share, sharer.ID)

	log.Printf("[ShareResource] Created share %s: %s %s for %d user(s)",
		share.ID, share.ResourceType, share.ResourceID, len(share.SharedWith))

	return &domain.ShareResult{Success: true, Share: share, Warnings: warnings}
}

// RevokeShare отзывает грант. Разрешено владельцу и администраторам.
func (s *SharingService) RevokeShare(ctx context.Context, shareID, revokerID string) *domain.ShareResult {
	revoker, err := s.directory.GetByID(ctx, revokerID)
	if err != nil {
		s.audit.LogShareError(ctx, shareID, revokerID, fmt.Sprintf("failed to resolve revoker: %v", err))
		return &domain.ShareResult{Success: false, Errors: []string{fmt.Sprintf("failed to resolve revoker: %v", err)}}
	}

	share, err := s.shareRepo.FindByID(ctx, shareID)
	if err != nil {
		return &domain.ShareResult{Success: false, Errors: []string{fmt.Sprintf("share not found: %v", err)}}
	}

	if revoker.ID != share.OwnerID && revoker.Role != domain.RoleAdmin {
		return &domain.ShareResult{Success: false, Errors: []string{"only the share owner or an administrator can revoke a share"}}
	}

	archived := share.Archive()
	if err := s.shareRepo.Update(ctx, archived); err != nil {
		s.audit.LogShareError(ctx, shareID, revokerID, fmt.Sprintf("failed to archive share: %v", err))
		return &domain.ShareResult{Success: false, Errors: []string{fmt.Sprintf("failed to archive share: %v", err)}}
	}

	s.expiration.CancelExpiration(shareID)

	recipients, err := s.directory.GetByIDs(ctx, share.SharedWith)
	if err != nil {
		log.Printf("[RevokeShare] warning: failed to resolve recipients for share %s: %v", shareID, err)
	} else {
		s.notifications.NotifyShareRevoked(ctx, archived, revoker, recipients)
	}
	s.audit.LogShareRevoked(ctx, shareID, revoker.ID)

	return &domain.ShareResult{Success: true, Share: archived}
}

// CheckAccess проверяет, может ли пользователь выполнить действие над
// ресурсом. Каждая попытка, успешная или нет, попадает в журнал.
func (s *SharingService) CheckAccess(ctx context.Context, resourceID, userID string, action domain.Action, metadata map[string]string) *domain.AccessResult {
	user, err := s.directory.GetByID(ctx, userID)
	if err != nil {
		s.audit.LogAccessAttempt(ctx, "", userID, action, false, fmt.Sprintf("failed to resolve user: %v", err), metadata)
		return &domain.AccessResult{Allowed: false, Reasons: []string{fmt.Sprintf("failed to resolve user: %v", err)}}
	}

	share, err := s.shareRepo.FindByUserAndResource(ctx, userID, resourceID)
	if err != nil || share == nil {
		s.audit.LogAccessAttempt(ctx, "", userID, action, false, "resource is not shared with user", metadata)
		return &domain.AccessResult{Allowed: false, Reasons: []string{"resource is not shared with this user"}}
	}

	validationErrs := s.validator.ValidateAccess(share, user, action, metadata)
	if len(validationErrs) > 0 {
		result := &domain.AccessResult{Allowed: false}
		for _, ve := range validationErrs {
			result.Reasons = append(result.Reasons, ve.Message)
		}
		s.audit.LogAccessAttempt(ctx, share.ID.String(), userID, action, false, result.Reasons[0], metadata)
		return result
	}

	s.audit.LogAccessAttempt(ctx, share.ID.String(), userID, action, true, "", metadata)
	return &domain.AccessResult{Allowed: true}
}

// ExtendShare продлевает срок действия гранта. Разрешено владельцу и
// администраторам; дата в прошлом отклоняется.
func (s *SharingService) ExtendShare(ctx context.Context, shareID string, newEndDate time.Time, extenderID string) *domain.ShareResult {
	extender, err := s.directory.GetByID(ctx, extenderID)
	if err != nil {
		s.audit.LogShareError(ctx, shareID, extenderID, fmt.Sprintf("failed to resolve extender: %v", err))
		return &domain.ShareResult{Success: false, Errors: []string{fmt.Sprintf("failed to resolve extender: %v", err)}}
	}

	if !newEndDate.After(time.Now()) {
		return &domain.ShareResult{Success: false, Errors: []string{"new end date must be in the future"}}
	}

	share, err := s.shareRepo.FindByID(ctx, shareID)
	if err != nil {
		return &domain.ShareResult{Success: false, Errors: []string{fmt.Sprintf("share not found: %v", err)}}
	}

	if extender.ID != share.OwnerID && extender.Role != domain.RoleAdmin {
		return &domain.ShareResult{Success: false, Errors: []string{"only the share owner or an administrator can extend a share"}}
	}

	// Отозванный грант не продлевается, нужно создать новый
	if share.Archived {
		return &domain.ShareResult{Success: false, Errors: []string{"cannot extend a revoked share"}}
	}

	previousEnd := "none"
	if share.EndDate != nil {
		previousEnd = share.EndDate.Format(time.RFC3339)
	}

	extended, err := share.Extend(newEndDate)
	if err != nil {
		return &domain.ShareResult{Success: false, Errors: []string{err.Error()}}
	}

	if err := s.shareRepo.Update(ctx, extended); err != nil {
		s.audit.LogShareError(ctx, shareID, extenderID, fmt.Sprintf("failed to persist extension: %v", err))
		return &domain.ShareResult{Success: false, Errors: []string{fmt.Sprintf("failed to persist extension: %v", err)}}
	}

	s.expiration.UpdateExpiration(shareID, newEndDate)
	s.audit.LogShareUpdated(ctx, shareID, extender.ID,
		fmt.Sprintf("end date changed from %s to %s", previousEnd, newEndDate.Format(time.RFC3339)))

	return &domain.ShareResult{Success: true, Share: extended}
}

// GetUserShares возвращает действующие гранты пользователя: выданные
// им и выданные ему
func (s *SharingService) GetUserShares(ctx context.Context, userID string) (*UserShares, error) {
	owned, err := s.shareRepo.FindByOwnerID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get owned shares: %w", err)
	}

	received, err := s.shareRepo.FindBySharedUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get received shares: %w", err)
	}

	result := &UserShares{}
	for i := range owned {
		if owned[i].IsValid() {
			result.Owned = append(result.Owned, owned[i])
		}
	}
	for i := range received {
		if received[i].IsValid() {
			result.Received = append(result.Received, received[i])
		}
	}

	return result, nil
}

// ProcessExpiredShares массово архивирует все истекшие гранты и
// возвращает число заархивированных
func (s *SharingService) ProcessExpiredShares(ctx context.Context) (int, error) {
	count, err := s.shareRepo.BulkArchiveExpired(ctx)
	if err != nil {
		s.audit.LogShareError(ctx, "", "system", fmt.Sprintf("bulk expiration failed: %v", err))
		return 0, fmt.Errorf("failed to archive expired shares: %w", err)
	}
	if count > 0 {
		log.Printf("[ProcessExpiredShares] Archived %d expired share(s)", count)
	}
	return count, nil
}
