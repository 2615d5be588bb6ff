package service

import (
	"context"
	"fmt"
	"time"

	"fitshare/internal/domain"
)

// ShareValidator выполняет структурную проверку запроса на шаринг и
// проверку доступа в момент обращения к ресурсу. Структурные ошибки
// блокируют создание целиком — в отличие от движка правил, который
// может понизить отказ до предупреждения.
type ShareValidator struct {
	directory       UserDirectory
	conditionEngine *ShareConditionEngine
}

func NewShareValidator(directory UserDirectory, conditionEngine *ShareConditionEngine) *ShareValidator {
	return &ShareValidator{
		directory:       directory,
		conditionEngine: conditionEngine,
	}
}

// ValidateShareRequest проверяет структуру запроса. Возвращает список
// ошибок с привязкой к полям; пустой список означает валидный запрос.
func (v *ShareValidator) ValidateShareRequest(ctx context.Context, req *domain.ShareRequest, sharer *domain.User) []domain.ValidationError {
	var errs []domain.ValidationError

	if req.ResourceID == "" {
		errs = append(errs, domain.ValidationError{Field: "resource_id", Message: "resource id is required"})
	}
	if len(req.TargetUserIDs) == 0 {
		errs = append(errs, domain.ValidationError{Field: "target_user_ids", Message: "at least one target user is required"})
	}
	if len(req.Actions) == 0 {
		errs = append(errs, domain.ValidationError{Field: "actions", Message: "at least one action is required"})
	}
	if req.OwnerID != "" && req.OwnerID != sharer.ID {
		errs = append(errs, domain.ValidationError{Field: "owner_id", Message: "only the resource owner can share it"})
	}
	if req.EndDate != nil && !req.EndDate.After(time.Now()) {
		errs = append(errs, domain.ValidationError{Field: "end_date", Message: "end date must be in the future"})
	}

	for _, targetID := range req.TargetUserIDs {
		if targetID == sharer.ID {
			errs = append(errs, domain.ValidationError{Field: "target_user_ids", Message: "cannot share a resource with yourself"})
			break
		}
	}

	if len(req.TargetUserIDs) > 0 {
		targets, err := v.directory.GetByIDs(ctx, req.TargetUserIDs)
		if err != nil {
			errs = append(errs, domain.ValidationError{
				Field:   "target_user_ids",
				Message: fmt.Sprintf("failed to resolve target users: %v", err),
			})
		} else {
			found := make(map[string]domain.User, len(targets))
			for _, u := range targets {
				found[u.ID] = u
			}
			for _, targetID := range req.TargetUserIDs {
				user, ok := found[targetID]
				if !ok {
					errs = append(errs, domain.ValidationError{
						Field:   "target_user_ids",
						Message: fmt.Sprintf("user %s does not exist", targetID),
					})
					continue
				}
				if !user.IsActive() {
					errs = append(errs, domain.ValidationError{
						Field:   "target_user_ids",
						Message: fmt.Sprintf("user %s is not active", targetID),
					})
				}
			}
		}
	}

	return errs
}

// ValidateAccess проверяет попытку доступа к уже созданному гранту:
// действительность гранта, право пользователя на действие и условия.
// Каждое проваленное условие возвращается отдельной ошибкой.
func (v *ShareValidator) ValidateAccess(share *domain.SharedResource, user *domain.User, action domain.Action, metadata map[string]string) []domain.ValidationError {
	var errs []domain.ValidationError

	if !share.IsValid() {
		errs = append(errs, domain.ValidationError{
			Field:   "share",
			Message: "share is no longer valid (archived, expired or not yet active)",
		})
		return errs
	}

	if !share.CanUserAccess(user.ID, action) {
		errs = append(errs, domain.ValidationError{
			Field:   "action",
			Message: fmt.Sprintf("user %s is not allowed to perform %s on this resource", user.ID, action),
		})
	}

	if len(share.Conditions) > 0 {
		condCtx := &domain.ConditionContext{
			User:       *user,
			ResourceID: share.ResourceID,
			Timestamp:  time.Now(),
			Metadata:   metadata,
		}
		outcome := v.conditionEngine.EvaluateAll(share.Conditions, condCtx)
		for _, failed := range outcome.Failed {
			errs = append(errs, domain.ValidationError{
				Field:   fmt.Sprintf("condition.%s", failed.Condition.Type),
				Message: failed.Result.Reason,
			})
		}
	}

	return errs
}
