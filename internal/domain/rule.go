package domain

import "time"

// RuleContext — контекст проверки политик при создании гранта.
// Создается по одному на каждую пару (sharer, targetUser).
type RuleContext struct {
	Sharer           User
	TargetUser       User
	ResourceID       string
	ResourceType     ResourceType
	RequestedActions []Action
	Request          *ShareRequest
}

// RuleResult — результат проверки одного правила
type RuleResult struct {
	Allowed          bool
	Reason           string
	Warnings         []string
	SuggestedActions []Action
	MaxDuration      *time.Duration
}

// RuleEvaluation — агрегат по всем применимым правилам:
// allowed = AND, warnings и suggested actions объединяются,
// из ограничений срока берется минимальное
type RuleEvaluation struct {
	Allowed          bool
	AppliedRules     []string
	FailedRules      []string
	Reasons          []string
	Warnings         []string
	SuggestedActions []Action
	MaxDuration      *time.Duration
}
