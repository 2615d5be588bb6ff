package service

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fitshare/internal/domain"
)

// stubRule — управляемое правило для тестов движка
type stubRule struct {
	name     string
	priority int
	applies  bool
	result   domain.RuleResult
	err      error
}

func (r *stubRule) Name() string                           { return r.name }
func (r *stubRule) Priority() int                          { return r.priority }
func (r *stubRule) Description() string                    { return "stub" }
func (r *stubRule) AppliesTo(ctx *domain.RuleContext) bool { return r.applies }

func (r *stubRule) Evaluate(ctx *domain.RuleContext) (domain.RuleResult, error) {
	return r.result, r.err
}

func durationPtr(d time.Duration) *time.Duration { return &d }

func TestRuleEngineAggregation(t *testing.T) {
	engine := NewShareRuleEngine(
		&stubRule{name: "allow-a", priority: 10, applies: true, result: domain.RuleResult{
			Allowed:          true,
			Warnings:         []string{"warn-a"},
			SuggestedActions: []domain.Action{domain.ActionRead},
			MaxDuration:      durationPtr(90 * 24 * time.Hour),
		}},
		&stubRule{name: "deny-b", priority: 20, applies: true, result: domain.RuleResult{
			Allowed: false,
			Reason:  "not today",
		}},
		&stubRule{name: "allow-c", priority: 30, applies: true, result: domain.RuleResult{
			Allowed:          true,
			SuggestedActions: []domain.Action{domain.ActionRead, domain.ActionCopy},
			MaxDuration:      durationPtr(30 * 24 * time.Hour),
		}},
		&stubRule{name: "skipped", priority: 99, applies: false},
	)

	eval := engine.EvaluateRules(&domain.RuleContext{})

	assert.False(t, eval.Allowed, "allowed is AND over all rules")
	assert.Equal(t, []string{"deny-b"}, eval.FailedRules)
	require.Len(t, eval.Reasons, 1)
	assert.Equal(t, "deny-b: not today", eval.Reasons[0])

	// Отказ не прерывает прогон: предупреждения и ограничения
	// собираются со всех правил
	assert.Equal(t, []string{"warn-a"}, eval.Warnings)
	assert.ElementsMatch(t, []domain.Action{domain.ActionRead, domain.ActionCopy}, eval.SuggestedActions)
	require.NotNil(t, eval.MaxDuration)
	assert.Equal(t, 30*24*time.Hour, *eval.MaxDuration)

	// Применимые правила идут в порядке убывания приоритета
	assert.Equal(t, []string{"allow-c", "deny-b", "allow-a"}, eval.AppliedRules)
	assert.NotContains(t, eval.AppliedRules, "skipped")
}

func TestRuleEngineOrderIndependence(t *testing.T) {
	makeRules := func() []ShareRule {
		return []ShareRule{
			&stubRule{name: "deny-low", priority: 10, applies: true, result: domain.RuleResult{
				Allowed: false,
				Reason:  "low says no",
			}},
			&stubRule{name: "cap-mid", priority: 20, applies: true, result: domain.RuleResult{
				Allowed:          true,
				Warnings:         []string{"mid warning"},
				SuggestedActions: []domain.Action{domain.ActionRead},
				MaxDuration:      durationPtr(60 * 24 * time.Hour),
			}},
			&stubRule{name: "cap-high", priority: 30, applies: true, result: domain.RuleResult{
				Allowed:     true,
				MaxDuration: durationPtr(14 * 24 * time.Hour),
			}},
		}
	}

	// Итог не зависит от порядка регистрации правил
	permutations := [][]int{
		{0, 1, 2},
		{2, 1, 0},
		{1, 2, 0},
	}

	var baseline *domain.RuleEvaluation
	for _, perm := range permutations {
		rules := makeRules()
		engine := NewShareRuleEngine()
		for _, i := range perm {
			engine.AddRule(rules[i])
		}

		eval := engine.EvaluateRules(&domain.RuleContext{})
		if baseline == nil {
			baseline = &eval
			continue
		}
		assert.Equal(t, baseline.Allowed, eval.Allowed)
		assert.Equal(t, baseline.FailedRules, eval.FailedRules)
		assert.Equal(t, baseline.Reasons, eval.Reasons)
		assert.Equal(t, baseline.Warnings, eval.Warnings)
		assert.Equal(t, baseline.SuggestedActions, eval.SuggestedActions)
		require.NotNil(t, eval.MaxDuration)
		assert.Equal(t, *baseline.MaxDuration, *eval.MaxDuration)
	}

	assert.False(t, baseline.Allowed)
	assert.Equal(t, 14*24*time.Hour, *baseline.MaxDuration)
}

func TestRuleEngineErrorBecomesFailure(t *testing.T) {
	engine := NewShareRuleEngine(
		&stubRule{name: "broken", priority: 10, applies: true, err: fmt.Errorf("boom")},
		&stubRule{name: "fine", priority: 5, applies: true, result: domain.RuleResult{Allowed: true}},
	)

	eval := engine.EvaluateRules(&domain.RuleContext{})
	assert.False(t, eval.Allowed)
	assert.Equal(t, []string{"broken"}, eval.FailedRules)
	require.Len(t, eval.Reasons, 1)
	assert.Contains(t, eval.Reasons[0], "evaluation failed: boom")
	assert.Contains(t, eval.Warnings[0], "evaluation failed: boom")
	assert.Equal(t, []string{"broken", "fine"}, eval.AppliedRules)
}

func TestRuleEngineAllAllowed(t *testing.T) {
	engine := NewShareRuleEngine(
		&stubRule{name: "a", priority: 1, applies: true, result: domain.RuleResult{Allowed: true}},
		&stubRule{name: "b", priority: 2, applies: true, result: domain.RuleResult{Allowed: true}},
	)

	eval := engine.EvaluateRules(&domain.RuleContext{})
	assert.True(t, eval.Allowed)
	assert.Empty(t, eval.FailedRules)
	assert.Empty(t, eval.Reasons)
}

func TestRuleEngineNoApplicableRules(t *testing.T) {
	engine := NewShareRuleEngine(
		&stubRule{name: "a", priority: 1, applies: false},
	)

	eval := engine.EvaluateRules(&domain.RuleContext{})
	assert.True(t, eval.Allowed)
	assert.Empty(t, eval.AppliedRules)
}

func TestAddRuleLastWriteWins(t *testing.T) {
	engine := NewShareRuleEngine(
		&stubRule{name: "policy", priority: 1, applies: true, result: domain.RuleResult{Allowed: false, Reason: "v1"}},
	)
	engine.AddRule(&stubRule{name: "policy", priority: 1, applies: true, result: domain.RuleResult{Allowed: true}})

	eval := engine.EvaluateRules(&domain.RuleContext{})
	assert.True(t, eval.Allowed)
	assert.Equal(t, []string{"policy"}, eval.AppliedRules)
}

func TestRemoveRule(t *testing.T) {
	engine := NewShareRuleEngine(
		&stubRule{name: "deny", priority: 1, applies: true, result: domain.RuleResult{Allowed: false, Reason: "no"}},
	)
	engine.RemoveRule("deny")

	eval := engine.EvaluateRules(&domain.RuleContext{})
	assert.True(t, eval.Allowed)
	assert.Empty(t, eval.AppliedRules)
}

func TestDefaultShareRuleEngine(t *testing.T) {
	engine := DefaultShareRuleEngine(TimeBasedShareRuleConfig{})

	// Тренер шарит тренировку клиенту той же организации
	ctx := ruleCtx(user("t1", domain.RoleTrainer, "org-1"), user("c1", domain.RoleClient, "org-1"),
		domain.ResourceTypeWorkout, []domain.Action{domain.ActionRead})
	ctx.Request.EndDate = nil

	eval := engine.EvaluateRules(ctx)
	assert.True(t, eval.Allowed)
	// Срок ограничен минимумом из правил: 90 дней для тренировок
	require.NotNil(t, eval.MaxDuration)
	assert.Equal(t, 90*24*time.Hour, *eval.MaxDuration)

	// Клиент не может шарить тренировки
	ctx = ruleCtx(user("c1", domain.RoleClient, "org-1"), user("t1", domain.RoleTrainer, "org-1"),
		domain.ResourceTypeWorkout, []domain.Action{domain.ActionRead})
	eval = engine.EvaluateRules(ctx)
	assert.False(t, eval.Allowed)
	assert.Contains(t, eval.FailedRules, RuleNameRoleBased)
}
