package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fitshare/internal/domain"
)

func condCtx(role domain.Role, org string, metadata map[string]string, at time.Time) *domain.ConditionContext {
	return &domain.ConditionContext{
		User: domain.User{
			ID:             "user-1",
			Role:           role,
			OrganizationID: org,
			Status:         domain.UserStatusActive,
		},
		ResourceID: "workout-1",
		Timestamp:  at,
		Metadata:   metadata,
	}
}

func TestConditionEngineUnknownType(t *testing.T) {
	engine := NewShareConditionEngine()

	result := engine.Evaluate(
		domain.ShareCondition{Type: "geo_fence", Value: "x"},
		condCtx(domain.RoleClient, "org-1", nil, time.Now()),
	)
	assert.False(t, result.Passed)
	assert.Equal(t, domain.SeverityError, result.Severity)
	assert.Contains(t, result.Reason, "unknown condition type")
}

func TestTimeRangeCondition(t *testing.T) {
	engine := NewShareConditionEngine()
	noon := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	night := time.Date(2026, 3, 10, 23, 30, 0, 0, time.UTC)

	cond := domain.ShareCondition{Type: domain.ConditionTimeRange, Value: "09:00-18:00", Operator: domain.OperatorIn}

	assert.True(t, engine.Evaluate(cond, condCtx(domain.RoleClient, "", nil, noon)).Passed)

	result := engine.Evaluate(cond, condCtx(domain.RoleClient, "", nil, night))
	assert.False(t, result.Passed)
	assert.Contains(t, result.Reason, "outside allowed range")

	// NOT_IN инвертирует диапазон
	cond.Operator = domain.OperatorNotIn
	assert.True(t, engine.Evaluate(cond, condCtx(domain.RoleClient, "", nil, night)).Passed)
	assert.False(t, engine.Evaluate(cond, condCtx(domain.RoleClient, "", nil, noon)).Passed)

	// Некорректное значение — детерминированный отказ, не паника
	bad := domain.ShareCondition{Type: domain.ConditionTimeRange, Value: "whenever"}
	result = engine.Evaluate(bad, condCtx(domain.RoleClient, "", nil, noon))
	assert.False(t, result.Passed)
	assert.Equal(t, domain.SeverityError, result.Severity)
}

func TestUserRoleCondition(t *testing.T) {
	engine := NewShareConditionEngine()
	cond := domain.ShareCondition{Type: domain.ConditionUserRole, Value: "trainer,admin", Operator: domain.OperatorIn}

	assert.True(t, engine.Evaluate(cond, condCtx(domain.RoleTrainer, "", nil, time.Now())).Passed)
	assert.False(t, engine.Evaluate(cond, condCtx(domain.RoleClient, "", nil, time.Now())).Passed)

	cond.Operator = domain.OperatorNotIn
	assert.True(t, engine.Evaluate(cond, condCtx(domain.RoleClient, "", nil, time.Now())).Passed)

	// Пустая роль в контексте — ошибка данных, отказ
	result := engine.Evaluate(cond, condCtx("", "", nil, time.Now()))
	assert.False(t, result.Passed)
	assert.Contains(t, result.Reason, "role is not available")
}

func TestOrganizationCondition(t *testing.T) {
	engine := NewShareConditionEngine()
	cond := domain.ShareCondition{Type: domain.ConditionOrganization, Value: "org-1", Operator: domain.OperatorEquals}

	assert.True(t, engine.Evaluate(cond, condCtx(domain.RoleClient, "org-1", nil, time.Now())).Passed)
	assert.False(t, engine.Evaluate(cond, condCtx(domain.RoleClient, "org-2", nil, time.Now())).Passed)

	cond.Operator = domain.OperatorNotEquals
	assert.True(t, engine.Evaluate(cond, condCtx(domain.RoleClient, "org-2", nil, time.Now())).Passed)
}

func TestMaxUsesCondition(t *testing.T) {
	engine := NewShareConditionEngine()
	cond := domain.ShareCondition{Type: domain.ConditionMaxUses, Value: "3"}

	meta := map[string]string{"use_count": "2"}
	assert.True(t, engine.Evaluate(cond, condCtx(domain.RoleClient, "", meta, time.Now())).Passed)

	meta["use_count"] = "3"
	result := engine.Evaluate(cond, condCtx(domain.RoleClient, "", meta, time.Now()))
	assert.False(t, result.Passed)
	assert.Contains(t, result.Reason, "maximum number of uses reached")

	// Без счетчика в метаданных использований еще не было
	assert.True(t, engine.Evaluate(cond, condCtx(domain.RoleClient, "", nil, time.Now())).Passed)

	bad := domain.ShareCondition{Type: domain.ConditionMaxUses, Value: "many"}
	assert.False(t, engine.Evaluate(bad, condCtx(domain.RoleClient, "", nil, time.Now())).Passed)
}

func TestIPRangeCondition(t *testing.T) {
	engine := NewShareConditionEngine()
	cond := domain.ShareCondition{Type: domain.ConditionIPRange, Value: "10.0., 192.168.1.", Operator: domain.OperatorIn}

	meta := map[string]string{"ip_address": "10.0.5.17"}
	assert.True(t, engine.Evaluate(cond, condCtx(domain.RoleClient, "", meta, time.Now())).Passed)

	meta["ip_address"] = "172.16.0.1"
	result := engine.Evaluate(cond, condCtx(domain.RoleClient, "", meta, time.Now()))
	assert.False(t, result.Passed)
	assert.Contains(t, result.Reason, "not in allowed range")

	// Адрес обязателен
	result = engine.Evaluate(cond, condCtx(domain.RoleClient, "", nil, time.Now()))
	assert.False(t, result.Passed)
	assert.Contains(t, result.Reason, "ip address is not available")
}

func TestDeviceTypeConditionFailOpen(t *testing.T) {
	engine := NewShareConditionEngine()
	cond := domain.ShareCondition{Type: domain.ConditionDeviceType, Value: "mobile,tablet", Operator: domain.OperatorIn}

	// Неизвестное устройство пропускается
	assert.True(t, engine.Evaluate(cond, condCtx(domain.RoleClient, "", nil, time.Now())).Passed)

	meta := map[string]string{"device_type": "mobile"}
	assert.True(t, engine.Evaluate(cond, condCtx(domain.RoleClient, "", meta, time.Now())).Passed)

	meta["device_type"] = "desktop"
	assert.False(t, engine.Evaluate(cond, condCtx(domain.RoleClient, "", meta, time.Now())).Passed)
}

func TestEvaluateAllNoShortCircuit(t *testing.T) {
	engine := NewShareConditionEngine()
	night := time.Date(2026, 3, 10, 23, 0, 0, 0, time.UTC)

	conditions := []domain.ShareCondition{
		{Type: domain.ConditionTimeRange, Value: "09:00-18:00"},
		{Type: domain.ConditionOrganization, Value: "org-1", Operator: domain.OperatorEquals},
		{Type: domain.ConditionUserRole, Value: "admin", Operator: domain.OperatorIn},
	}

	outcome := engine.EvaluateAll(conditions, condCtx(domain.RoleClient, "org-2", nil, night))
	assert.False(t, outcome.AllPassed)
	require.Len(t, outcome.Failed, 3, "all conditions must be evaluated")

	// Порядок проваленных условий совпадает с входным
	assert.Equal(t, domain.ConditionTimeRange, outcome.Failed[0].Condition.Type)
	assert.Equal(t, domain.ConditionOrganization, outcome.Failed[1].Condition.Type)
	assert.Equal(t, domain.ConditionUserRole, outcome.Failed[2].Condition.Type)
}

func TestEvaluateAllEmpty(t *testing.T) {
	engine := NewShareConditionEngine()
	outcome := engine.EvaluateAll(nil, condCtx(domain.RoleClient, "", nil, time.Now()))
	assert.True(t, outcome.AllPassed)
	assert.Empty(t, outcome.Failed)
}

type alwaysFailEvaluator struct{}

func (alwaysFailEvaluator) Evaluate(cond domain.ShareCondition, ctx *domain.ConditionContext) (domain.ConditionResult, error) {
	return domain.ConditionResult{Passed: false, Reason: "custom deny", Severity: domain.SeverityError}, nil
}

func TestRegisterReplacesEvaluator(t *testing.T) {
	engine := NewShareConditionEngine()
	engine.Register(domain.ConditionDeviceType, alwaysFailEvaluator{})

	cond := domain.ShareCondition{Type: domain.ConditionDeviceType, Value: "mobile"}
	result := engine.Evaluate(cond, condCtx(domain.RoleClient, "", nil, time.Now()))
	assert.False(t, result.Passed)
	assert.Equal(t, "custom deny", result.Reason)
}
