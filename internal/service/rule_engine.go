package service

import (
	"fmt"
	"sort"

	"fitshare/internal/domain"
)

// ShareRuleEngine прогоняет набор правил по контексту запроса.
// Правила хранятся в порядке добавления, повторное добавление с тем же
// именем заменяет правило (last-write-wins).
type ShareRuleEngine struct {
	rules []ShareRule
}

func NewShareRuleEngine(rules ...ShareRule) *ShareRuleEngine {
	e := &ShareRuleEngine{}
	for _, r := range rules {
		e.AddRule(r)
	}
	return e
}

// DefaultShareRuleEngine собирает движок со штатным набором правил
func DefaultShareRuleEngine(timeCfg TimeBasedShareRuleConfig) *ShareRuleEngine {
	return NewShareRuleEngine(
		NewOrganizationShareRule(),
		NewRoleBasedShareRule(),
		NewTimeBasedShareRule(timeCfg),
		NewResourceTypeShareRule(),
	)
}

// AddRule добавляет правило; правило с существующим именем заменяется
func (e *ShareRuleEngine) AddRule(rule ShareRule) {
	for i, r := range e.rules {
		if r.Name() == rule.Name() {
			e.rules[i] = rule
			return
		}
	}
	e.rules = append(e.rules, rule)
}

// RemoveRule убирает правило по имени
func (e *ShareRuleEngine) RemoveRule(name string) {
	for i, r := range e.rules {
		if r.Name() == name {
			e.rules = append(e.rules[:i], e.rules[i+1:]...)
			return
		}
	}
}

// EvaluateRules проверяет все применимые правила в порядке убывания
// приоритета. Короткого замыкания нет: даже после отказа остальные
// правила выполняются, чтобы накопить предупреждения и ограничения.
// Итог не зависит от порядка обхода: allowed — это AND по всем
// правилам, ограничение срока — минимум из предложенных.
func (e *ShareRuleEngine) EvaluateRules(ctx *domain.RuleContext) domain.RuleEvaluation {
	applicable := make([]ShareRule, 0, len(e.rules))
	for _, r := range e.rules {
		if r.AppliesTo(ctx) {
			applicable = append(applicable, r)
		}
	}
	sort.SliceStable(applicable, func(i, j int) bool {
		return applicable[i].Priority() > applicable[j].Priority()
	})

	eval := domain.RuleEvaluation{Allowed: true}
	for _, rule := range applicable {
		eval.AppliedRules = append(eval.AppliedRules, rule.Name())

		result, err := rule.Evaluate(ctx)
		if err != nil {
			// Ошибка правила не прерывает прогон: правило считается
			// проваленным, ошибка попадает в предупреждения
			eval.Allowed = false
			eval.FailedRules = append(eval.FailedRules, rule.Name())
			eval.Reasons = append(eval.Reasons, fmt.Sprintf("%s: evaluation failed: %v", rule.Name(), err))
			eval.Warnings = append(eval.Warnings, fmt.Sprintf("%s: evaluation failed: %v", rule.Name(), err))
			continue
		}

		if !result.Allowed {
			eval.Allowed = false
			eval.FailedRules = append(eval.FailedRules, rule.Name())
			eval.Reasons = append(eval.Reasons, fmt.Sprintf("%s: %s", rule.Name(), result.Reason))
		}

		eval.Warnings = append(eval.Warnings, result.Warnings...)
		eval.SuggestedActions = unionActions(eval.SuggestedActions, result.SuggestedActions)

		if result.MaxDuration != nil {
			if eval.MaxDuration == nil || *result.MaxDuration < *eval.MaxDuration {
				eval.MaxDuration = result.MaxDuration
			}
		}
	}

	return eval
}

func unionActions(a, b []domain.Action) []domain.Action {
	out := a
	for _, action := range b {
		if !containsAction(out, action) {
			out = append(out, action)
		}
	}
	return out
}
