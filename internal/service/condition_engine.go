package service

import (
	"fmt"
	"strconv"
	"strings"

	"fitshare/internal/domain"
)

// ConditionEvaluator проверяет одно условие конкретного типа.
// Ошибка проверки не прерывает доступ с паникой — движок превращает
// её в проваленный результат с текстом ошибки.
type ConditionEvaluator interface {
	Evaluate(cond domain.ShareCondition, ctx *domain.ConditionContext) (domain.ConditionResult, error)
}

// ShareConditionEngine — реестр проверок условий по типу.
// Единственная точка расширения для новых видов условий.
type ShareConditionEngine struct {
	evaluators map[domain.ConditionType]ConditionEvaluator
}

func NewShareConditionEngine() *ShareConditionEngine {
	e := &ShareConditionEngine{
		evaluators: make(map[domain.ConditionType]ConditionEvaluator),
	}
	e.Register(domain.ConditionTimeRange, &timeRangeEvaluator{})
	e.Register(domain.ConditionUserRole, &userRoleEvaluator{})
	e.Register(domain.ConditionOrganization, &organizationEvaluator{})
	e.Register(domain.ConditionMaxUses, &maxUsesEvaluator{})
	e.Register(domain.ConditionIPRange, &ipRangeEvaluator{})
	e.Register(domain.ConditionDeviceType, &deviceTypeEvaluator{})
	return e
}

// Register добавляет или заменяет проверку для типа условия
func (e *ShareConditionEngine) Register(t domain.ConditionType, ev ConditionEvaluator) {
	e.evaluators[t] = ev
}

// Evaluate проверяет одно условие. Неизвестный тип — детерминированный
// отказ с severity=error, наружу ошибка не выходит.
func (e *ShareConditionEngine) Evaluate(cond domain.ShareCondition, ctx *domain.ConditionContext) domain.ConditionResult {
	ev, ok := e.evaluators[cond.Type]
	if !ok {
		return domain.ConditionResult{
			Passed:   false,
			Reason:   fmt.Sprintf("unknown condition type: %s", cond.Type),
			Severity: domain.SeverityError,
		}
	}

	result, err := ev.Evaluate(cond, ctx)
	if err != nil {
		return domain.ConditionResult{
			Passed:   false,
			Reason:   err.Error(),
			Severity: domain.SeverityError,
		}
	}
	return result
}

// EvaluateAll проверяет все условия независимо, без короткого
// замыкания; порядок проваленных условий совпадает с входным
func (e *ShareConditionEngine) EvaluateAll(conditions []domain.ShareCondition, ctx *domain.ConditionContext) domain.ConditionsOutcome {
	outcome := domain.ConditionsOutcome{AllPassed: true}
	for _, cond := range conditions {
		result := e.Evaluate(cond, ctx)
		if !result.Passed {
			outcome.AllPassed = false
			outcome.Failed = append(outcome.Failed, domain.FailedCondition{
				Condition: cond,
				Result:    result,
			})
		}
	}
	return outcome
}

// timeRangeEvaluator сравнивает текущее время со строковым диапазоном
// "HH:MM-HH:MM". Сравнение лексикографическое, как в исходной системе.
type timeRangeEvaluator struct{}

func (timeRangeEvaluator) Evaluate(cond domain.ShareCondition, ctx *domain.ConditionContext) (domain.ConditionResult, error) {
	parts := strings.SplitN(cond.Value, "-", 2)
	if len(parts) != 2 {
		return domain.ConditionResult{}, fmt.Errorf("invalid time range value: %q", cond.Value)
	}
	start := strings.TrimSpace(parts[0])
	end := strings.TrimSpace(parts[1])

	now := ctx.Timestamp.Format("15:04")
	inRange := now >= start && now <= end

	passed := inRange
	if cond.Operator == domain.OperatorNotIn {
		passed = !inRange
	}
	if passed {
		return domain.ConditionResult{Passed: true}, nil
	}
	return domain.ConditionResult{
		Passed:   false,
		Reason:   fmt.Sprintf("access time %s is outside allowed range %s", now, cond.Value),
		Severity: domain.SeverityError,
	}, nil
}

// userRoleEvaluator проверяет роль пользователя против значения
// условия (одна роль или список через запятую)
type userRoleEvaluator struct{}

func (userRoleEvaluator) Evaluate(cond domain.ShareCondition, ctx *domain.ConditionContext) (domain.ConditionResult, error) {
	role := string(ctx.User.Role)
	if role == "" {
		return domain.ConditionResult{}, fmt.Errorf("user role is not available in context")
	}

	matched := false
	for _, v := range strings.Split(cond.Value, ",") {
		if strings.TrimSpace(v) == role {
			matched = true
			break
		}
	}

	passed := matched
	if cond.Operator == domain.OperatorNotEquals || cond.Operator == domain.OperatorNotIn {
		passed = !matched
	}
	if passed {
		return domain.ConditionResult{Passed: true}, nil
	}
	return domain.ConditionResult{
		Passed:   false,
		Reason:   fmt.Sprintf("user role %s does not satisfy condition %s %s", role, cond.Operator, cond.Value),
		Severity: domain.SeverityError,
	}, nil
}

// organizationEvaluator сравнивает организацию пользователя со значением условия
type organizationEvaluator struct{}

func (organizationEvaluator) Evaluate(cond domain.ShareCondition, ctx *domain.ConditionContext) (domain.ConditionResult, error) {
	org := ctx.User.OrganizationID
	if org == "" {
		return domain.ConditionResult{}, fmt.Errorf("user organization is not available in context")
	}

	matched := org == cond.Value
	passed := matched
	if cond.Operator == domain.OperatorNotEquals {
		passed = !matched
	}
	if passed {
		return domain.ConditionResult{Passed: true}, nil
	}
	return domain.ConditionResult{
		Passed:   false,
		Reason:   fmt.Sprintf("user organization %s does not match required organization", org),
		Severity: domain.SeverityError,
	}, nil
}

// maxUsesEvaluator сравнивает счетчик использований из метаданных
// контекста с лимитом в значении условия
type maxUsesEvaluator struct{}

func (maxUsesEvaluator) Evaluate(cond domain.ShareCondition, ctx *domain.ConditionContext) (domain.ConditionResult, error) {
	limit, err := strconv.Atoi(cond.Value)
	if err != nil {
		return domain.ConditionResult{}, fmt.Errorf("invalid max uses value: %q", cond.Value)
	}

	used := 0
	if raw, ok := ctx.Metadata["use_count"]; ok {
		used, err = strconv.Atoi(raw)
		if err != nil {
			return domain.ConditionResult{}, fmt.Errorf("invalid use_count metadata: %q", raw)
		}
	}

	if used < limit {
		return domain.ConditionResult{Passed: true}, nil
	}
	return domain.ConditionResult{
		Passed:   false,
		Reason:   fmt.Sprintf("maximum number of uses reached (%d of %d)", used, limit),
		Severity: domain.SeverityError,
	}, nil
}

// ipRangeEvaluator проверяет адрес по строковому префиксу.
// Намеренное упрощение исходной системы, это НЕ корректный CIDR.
type ipRangeEvaluator struct{}

func (ipRangeEvaluator) Evaluate(cond domain.ShareCondition, ctx *domain.ConditionContext) (domain.ConditionResult, error) {
	ip := ctx.Metadata["ip_address"]
	if ip == "" {
		return domain.ConditionResult{}, fmt.Errorf("ip address is not available in context")
	}

	matched := false
	for _, prefix := range strings.Split(cond.Value, ",") {
		if strings.HasPrefix(ip, strings.TrimSpace(prefix)) {
			matched = true
			break
		}
	}

	passed := matched
	if cond.Operator == domain.OperatorNotIn {
		passed = !matched
	}
	if passed {
		return domain.ConditionResult{Passed: true}, nil
	}
	return domain.ConditionResult{
		Passed:   false,
		Reason:   fmt.Sprintf("ip address %s is not in allowed range", ip),
		Severity: domain.SeverityError,
	}, nil
}

// deviceTypeEvaluator проверяет тип устройства. Если тип неизвестен,
// доступ разрешается (fail-open).
type deviceTypeEvaluator struct{}

func (deviceTypeEvaluator) Evaluate(cond domain.ShareCondition, ctx *domain.ConditionContext) (domain.ConditionResult, error) {
	device := ctx.Metadata["device_type"]
	if device == "" {
		return domain.ConditionResult{Passed: true}, nil
	}

	matched := false
	for _, v := range strings.Split(cond.Value, ",") {
		if strings.TrimSpace(v) == device {
			matched = true
			break
		}
	}

	passed := matched
	if cond.Operator == domain.OperatorNotEquals || cond.Operator == domain.OperatorNotIn {
		passed = !matched
	}
	if passed {
		return domain.ConditionResult{Passed: true}, nil
	}
	return domain.ConditionResult{
		Passed:   false,
		Reason:   fmt.Sprintf("device type %s is not allowed", device),
		Severity: domain.SeverityError,
	}, nil
}
