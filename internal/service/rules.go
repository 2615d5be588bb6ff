package service

import (
	"fmt"
	"time"

	"fitshare/internal/domain"
)

// Имена правил фиксированы: по ним работает RemoveRule и по ним же
// причины отказа попадают в результат операции
const (
	RuleNameOrganization = "OrganizationShareRule"
	RuleNameRoleBased    = "RoleBasedShareRule"
	RuleNameTimeBased    = "TimeBasedShareRule"
	RuleNameResourceType = "ResourceTypeShareRule"
)

// ShareRule — именованная политика, проверяемая при создании гранта.
// Правила независимы: движок прогоняет все применимые и агрегирует итог.
type ShareRule interface {
	Name() string
	Priority() int
	Description() string
	AppliesTo(ctx *domain.RuleContext) bool
	Evaluate(ctx *domain.RuleContext) (domain.RuleResult, error)
}

// OrganizationShareRule разрешает шаринг внутри одной организации.
// Между организациями — только администраторам, с предупреждением
// и ограничением срока в 30 дней.
type OrganizationShareRule struct {
	CrossOrgMaxDuration time.Duration
}

func NewOrganizationShareRule() *OrganizationShareRule {
	return &OrganizationShareRule{CrossOrgMaxDuration: 30 * 24 * time.Hour}
}

func (r *OrganizationShareRule) Name() string { return RuleNameOrganization }

func (r *OrganizationShareRule) Priority() int { return 100 }

func (r *OrganizationShareRule) Description() string {
	return "restricts sharing across organization boundaries"
}

func (r *OrganizationShareRule) AppliesTo(ctx *domain.RuleContext) bool {
	return ctx.Sharer.OrganizationID != "" || ctx.TargetUser.OrganizationID != ""
}

func (r *OrganizationShareRule) Evaluate(ctx *domain.RuleContext) (domain.RuleResult, error) {
	if ctx.Sharer.OrganizationID == ctx.TargetUser.OrganizationID {
		return domain.RuleResult{Allowed: true}, nil
	}

	if ctx.Sharer.Role == domain.RoleAdmin {
		maxDuration := r.CrossOrgMaxDuration
		return domain.RuleResult{
			Allowed: true,
			Warnings: []string{
				fmt.Sprintf("cross-organization share with user %s, duration limited to %d days",
					ctx.TargetUser.ID, int(maxDuration.Hours()/24)),
			},
			MaxDuration: &maxDuration,
		}, nil
	}

	return domain.RuleResult{
		Allowed: false,
		Reason: fmt.Sprintf("sharing outside organization %s is allowed only for administrators",
			ctx.Sharer.OrganizationID),
	}, nil
}

// rolePolicy описывает, что разрешено роли: какие типы ресурсов она
// может шарить, каким ролям, на какой срок и какие действия закрыты
type rolePolicy struct {
	CanShare          []domain.ResourceType
	CanShareWith      []domain.Role
	MaxDuration       *time.Duration
	RestrictedActions []domain.Action
}

// RoleBasedShareRule проверяет запрос против таблицы прав роли
type RoleBasedShareRule struct {
	policies map[domain.Role]rolePolicy
}

func NewRoleBasedShareRule() *RoleBasedShareRule {
	trainerMax := 180 * 24 * time.Hour
	clientMax := 30 * 24 * time.Hour

	return &RoleBasedShareRule{
		policies: map[domain.Role]rolePolicy{
			domain.RoleAdmin: {
				CanShare: []domain.ResourceType{
					domain.ResourceTypeWorkout, domain.ResourceTypeExercise,
					domain.ResourceTypeProgram, domain.ResourceTypeProfile,
					domain.ResourceTypeProgress, domain.ResourceTypeNutrition,
				},
				CanShareWith: []domain.Role{domain.RoleAdmin, domain.RoleTrainer, domain.RoleClient},
			},
			domain.RoleTrainer: {
				CanShare: []domain.ResourceType{
					domain.ResourceTypeWorkout, domain.ResourceTypeExercise,
					domain.ResourceTypeProgram, domain.ResourceTypeNutrition,
				},
				CanShareWith:      []domain.Role{domain.RoleAdmin, domain.RoleTrainer, domain.RoleClient},
				MaxDuration:       &trainerMax,
				RestrictedActions: []domain.Action{domain.ActionDelete},
			},
			domain.RoleClient: {
				CanShare: []domain.ResourceType{
					domain.ResourceTypeProgress, domain.ResourceTypeProfile,
				},
				CanShareWith:      []domain.Role{domain.RoleAdmin, domain.RoleTrainer},
				MaxDuration:       &clientMax,
				RestrictedActions: []domain.Action{domain.ActionDelete, domain.ActionShare},
			},
		},
	}
}

func (r *RoleBasedShareRule) Name() string { return RuleNameRoleBased }

func (r *RoleBasedShareRule) Priority() int { return 90 }

func (r *RoleBasedShareRule) Description() string {
	return "restricts sharing based on the sharer role table"
}

func (r *RoleBasedShareRule) AppliesTo(ctx *domain.RuleContext) bool {
	return ctx.Sharer.Role != ""
}

func (r *RoleBasedShareRule) Evaluate(ctx *domain.RuleContext) (domain.RuleResult, error) {
	policy, ok := r.policies[ctx.Sharer.Role]
	if !ok {
		return domain.RuleResult{
			Allowed: false,
			Reason:  fmt.Sprintf("role %s has no sharing privileges", ctx.Sharer.Role),
		}, nil
	}

	if !containsResourceType(policy.CanShare, ctx.ResourceType) {
		return domain.RuleResult{
			Allowed: false,
			Reason:  fmt.Sprintf("role %s cannot share resources of type %s", ctx.Sharer.Role, ctx.ResourceType),
		}, nil
	}

	if !containsRole(policy.CanShareWith, ctx.TargetUser.Role) {
		return domain.RuleResult{
			Allowed: false,
			Reason:  fmt.Sprintf("role %s cannot share with users of role %s", ctx.Sharer.Role, ctx.TargetUser.Role),
		}, nil
	}

	result := domain.RuleResult{Allowed: true, MaxDuration: policy.MaxDuration}

	// Запрошенные действия, пересекающиеся с закрытыми для роли,
	// не блокируют запрос целиком: остаток предлагается вместо них
	if len(policy.RestrictedActions) > 0 {
		remaining := subtractActions(ctx.RequestedActions, policy.RestrictedActions)
		if len(remaining) == 0 {
			return domain.RuleResult{
				Allowed: false,
				Reason:  fmt.Sprintf("all requested actions are restricted for role %s", ctx.Sharer.Role),
			}, nil
		}
		if len(remaining) < len(ctx.RequestedActions) {
			result.SuggestedActions = remaining
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("some requested actions are restricted for role %s and were removed", ctx.Sharer.Role))
		}
	}

	return result, nil
}

// TimeBasedShareRuleConfig настраивается из конфигурации сервиса
type TimeBasedShareRuleConfig struct {
	MaxDuration        time.Duration
	WarnAfter          time.Duration
	BusinessHoursOnly  bool
	BusinessHoursStart string
	BusinessHoursEnd   string
}

// TimeBasedShareRule ограничивает срок действия гранта и, при
// включенной настройке, время суток создания
type TimeBasedShareRule struct {
	cfg TimeBasedShareRuleConfig
}

func NewTimeBasedShareRule(cfg TimeBasedShareRuleConfig) *TimeBasedShareRule {
	if cfg.MaxDuration <= 0 {
		cfg.MaxDuration = 365 * 24 * time.Hour
	}
	if cfg.WarnAfter <= 0 {
		cfg.WarnAfter = 90 * 24 * time.Hour
	}
	if cfg.BusinessHoursStart == "" {
		cfg.BusinessHoursStart = "09:00"
	}
	if cfg.BusinessHoursEnd == "" {
		cfg.BusinessHoursEnd = "18:00"
	}
	return &TimeBasedShareRule{cfg: cfg}
}

func (r *TimeBasedShareRule) Name() string { return RuleNameTimeBased }

func (r *TimeBasedShareRule) Priority() int { return 80 }

func (r *TimeBasedShareRule) Description() string {
	return "restricts share duration and creation time"
}

func (r *TimeBasedShareRule) AppliesTo(ctx *domain.RuleContext) bool {
	return (ctx.Request != nil && ctx.Request.EndDate != nil) || r.cfg.BusinessHoursOnly
}

func (r *TimeBasedShareRule) Evaluate(ctx *domain.RuleContext) (domain.RuleResult, error) {
	now := time.Now()

	if r.cfg.BusinessHoursOnly {
		if now.Weekday() == time.Saturday || now.Weekday() == time.Sunday {
			return domain.RuleResult{
				Allowed: false,
				Reason:  "shares can only be created on business days",
			}, nil
		}
		clock := now.Format("15:04")
		if clock < r.cfg.BusinessHoursStart || clock > r.cfg.BusinessHoursEnd {
			return domain.RuleResult{
				Allowed: false,
				Reason: fmt.Sprintf("shares can only be created between %s and %s",
					r.cfg.BusinessHoursStart, r.cfg.BusinessHoursEnd),
			}, nil
		}
	}

	maxDuration := r.cfg.MaxDuration
	result := domain.RuleResult{Allowed: true, MaxDuration: &maxDuration}

	if ctx.Request != nil && ctx.Request.EndDate != nil {
		duration := ctx.Request.EndDate.Sub(now)
		if duration > r.cfg.MaxDuration {
			return domain.RuleResult{
				Allowed: false,
				Reason: fmt.Sprintf("share duration exceeds the maximum of %d days",
					int(r.cfg.MaxDuration.Hours()/24)),
			}, nil
		}
		if duration > r.cfg.WarnAfter {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("share duration exceeds %d days, consider a shorter period",
					int(r.cfg.WarnAfter.Hours()/24)))
		}
	}

	return result, nil
}

// Именованные специальные условия таблицы типов ресурсов
const (
	specialProfileOwnerOnly     = "PROFILE_OWNER_ONLY"
	specialSensitiveDataWarning = "SENSITIVE_DATA_WARNING"
)

// resourceTypePolicy описывает правила шаринга для типа ресурса
type resourceTypePolicy struct {
	AllowedActions    []domain.Action
	DefaultDuration   time.Duration
	MaxShares         int
	RequiresApproval  bool
	SpecialConditions []string
}

// ResourceTypeShareRule ограничивает действия и срок по типу ресурса
type ResourceTypeShareRule struct {
	policies map[domain.ResourceType]resourceTypePolicy
}

func NewResourceTypeShareRule() *ResourceTypeShareRule {
	return &ResourceTypeShareRule{
		policies: map[domain.ResourceType]resourceTypePolicy{
			domain.ResourceTypeWorkout: {
				AllowedActions:  []domain.Action{domain.ActionRead, domain.ActionUpdate, domain.ActionCopy},
				DefaultDuration: 90 * 24 * time.Hour,
			},
			domain.ResourceTypeExercise: {
				AllowedActions:  []domain.Action{domain.ActionRead, domain.ActionCopy},
				DefaultDuration: 180 * 24 * time.Hour,
			},
			domain.ResourceTypeProgram: {
				AllowedActions:  []domain.Action{domain.ActionRead, domain.ActionCopy},
				DefaultDuration: 90 * 24 * time.Hour,
			},
			domain.ResourceTypeProfile: {
				AllowedActions:    []domain.Action{domain.ActionRead},
				DefaultDuration:   30 * 24 * time.Hour,
				MaxShares:         5,
				RequiresApproval:  true,
				SpecialConditions: []string{specialProfileOwnerOnly},
			},
			domain.ResourceTypeProgress: {
				AllowedActions:    []domain.Action{domain.ActionRead},
				DefaultDuration:   30 * 24 * time.Hour,
				SpecialConditions: []string{specialSensitiveDataWarning},
			},
			domain.ResourceTypeNutrition: {
				AllowedActions:    []domain.Action{domain.ActionRead, domain.ActionUpdate},
				DefaultDuration:   60 * 24 * time.Hour,
				SpecialConditions: []string{specialSensitiveDataWarning},
			},
		},
	}
}

func (r *ResourceTypeShareRule) Name() string { return RuleNameResourceType }

func (r *ResourceTypeShareRule) Priority() int { return 70 }

func (r *ResourceTypeShareRule) Description() string {
	return "restricts allowed actions and duration per resource type"
}

func (r *ResourceTypeShareRule) AppliesTo(ctx *domain.RuleContext) bool {
	return ctx.ResourceType != ""
}

func (r *ResourceTypeShareRule) Evaluate(ctx *domain.RuleContext) (domain.RuleResult, error) {
	policy, ok := r.policies[ctx.ResourceType]
	if !ok {
		return domain.RuleResult{
			Allowed: false,
			Reason:  fmt.Sprintf("resource type %s cannot be shared", ctx.ResourceType),
		}, nil
	}

	remaining := intersectActions(ctx.RequestedActions, policy.AllowedActions)
	if len(remaining) == 0 {
		return domain.RuleResult{
			Allowed: false,
			Reason:  fmt.Sprintf("none of the requested actions are allowed for resource type %s", ctx.ResourceType),
		}, nil
	}

	duration := policy.DefaultDuration
	result := domain.RuleResult{Allowed: true, MaxDuration: &duration}

	if len(remaining) < len(ctx.RequestedActions) {
		result.SuggestedActions = remaining
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("some requested actions are not allowed for resource type %s and were removed", ctx.ResourceType))
	}

	if policy.RequiresApproval {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("sharing resources of type %s requires approval", ctx.ResourceType))
	}

	for _, special := range policy.SpecialConditions {
		switch special {
		case specialProfileOwnerOnly:
			// Профили адресуются идентификатором владельца
			if ctx.ResourceID != ctx.Sharer.ID {
				return domain.RuleResult{
					Allowed: false,
					Reason:  "profiles can only be shared by their owner",
				}, nil
			}
		case specialSensitiveDataWarning:
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("resources of type %s contain sensitive data", ctx.ResourceType))
		}
	}

	return result, nil
}

func containsResourceType(list []domain.ResourceType, t domain.ResourceType) bool {
	for _, v := range list {
		if v == t {
			return true
		}
	}
	return false
}

func containsRole(list []domain.Role, r domain.Role) bool {
	for _, v := range list {
		if v == r {
			return true
		}
	}
	return false
}

func containsAction(list []domain.Action, a domain.Action) bool {
	for _, v := range list {
		if v == a {
			return true
		}
	}
	return false
}

func intersectActions(requested, allowed []domain.Action) []domain.Action {
	var out []domain.Action
	for _, a := range requested {
		if containsAction(allowed, a) {
			out = append(out, a)
		}
	}
	return out
}

func subtractActions(requested, restricted []domain.Action) []domain.Action {
	var out []domain.Action
	for _, a := range requested {
		if !containsAction(restricted, a) {
			out = append(out, a)
		}
	}
	return out
}
