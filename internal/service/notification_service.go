package service

import (
	"context"
	"fmt"
	"log"
	"strings"

	"fitshare/internal/domain"
)

type NotificationType string

const (
	NotificationShared   NotificationType = "shared"
	NotificationRevoked  NotificationType = "revoked"
	NotificationExpired  NotificationType = "expired"
	NotificationReminder NotificationType = "reminder"
)

// Напоминания отправляются только когда до истечения осталось не
// больше этого числа дней
const reminderThresholdDays = 7

// NotificationTemplate — шаблон уведомления с подстановками вида
// {{sharerName}}, {{resourceType}}, {{recipientName}}, {{daysRemaining}}
type NotificationTemplate struct {
	Subject string
	Body    string
}

// ShareNotificationService рендерит уведомления по шаблонам и отдает
// их транспорту. Доставка best-effort: ошибки логируются и не влияют
// на основную операцию.
type ShareNotificationService struct {
	transport NotificationTransport
	templates map[NotificationType]NotificationTemplate
}

func NewShareNotificationService(transport NotificationTransport) *ShareNotificationService {
	return &ShareNotificationService{
		transport: transport,
		templates: map[NotificationType]NotificationTemplate{
			NotificationShared: {
				Subject: "{{sharerName}} shared a {{resourceType}} with you",
				Body:    "Hi {{recipientName}}, {{sharerName}} has shared a {{resourceType}} with you. You can find it in your shared resources.",
			},
			NotificationRevoked: {
				Subject: "Access to a {{resourceType}} was revoked",
				Body:    "Hi {{recipientName}}, your access to a {{resourceType}} shared by {{sharerName}} has been revoked.",
			},
			NotificationExpired: {
				Subject: "Access to a {{resourceType}} has expired",
				Body:    "Hi {{recipientName}}, your access to a {{resourceType}} shared by {{sharerName}} has expired.",
			},
			NotificationReminder: {
				Subject: "Access to a {{resourceType}} expires in {{daysRemaining}} days",
				Body:    "Hi {{recipientName}}, your access to a {{resourceType}} shared by {{sharerName}} expires in {{daysRemaining}} days.",
			},
		},
	}
}

// RegisterTemplate добавляет или заменяет шаблон для типа уведомления
func (s *ShareNotificationService) RegisterTemplate(t NotificationType, tpl NotificationTemplate) {
	s.templates[t] = tpl
}

// Render подставляет значения в шаблон типа уведомления
func (s *ShareNotificationService) Render(t NotificationType, vars map[string]string) (subject, body string, err error) {
	tpl, ok := s.templates[t]
	if !ok {
		return "", "", fmt.Errorf("no template registered for notification type %s", t)
	}
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{{"+k+"}}", v)
	}
	replacer := strings.NewReplacer(pairs...)
	return replacer.Replace(tpl.Subject), replacer.Replace(tpl.Body), nil
}

// NotifyResourceShared уведомляет получателей о новом гранте
func (s *ShareNotificationService) NotifyResourceShared(ctx context.Context, share *domain.SharedResource, sharer *domain.User, recipients []domain.User) {
	s.send(ctx, NotificationShared, share, sharer, recipients, nil)
}

// NotifyShareRevoked уведомляет получателей об отзыве доступа
func (s *ShareNotificationService) NotifyShareRevoked(ctx context.Context, share *domain.SharedResource, revoker *domain.User, recipients []domain.User) {
	s.send(ctx, NotificationRevoked, share, revoker, recipients, nil)
}

// NotifyShareExpired уведомляет получателей об истечении доступа
func (s *ShareNotificationService) NotifyShareExpired(ctx context.Context, share *domain.SharedResource, recipients []domain.User) {
	s.send(ctx, NotificationExpired, share, nil, recipients, nil)
}

// NotifyExpirationReminder отправляет напоминание об истечении срока.
// Если осталось больше reminderThresholdDays дней, ничего не делает.
func (s *ShareNotificationService) NotifyExpirationReminder(ctx context.Context, share *domain.SharedResource, recipients []domain.User, daysRemaining int) {
	if daysRemaining > reminderThresholdDays {
		return
	}
	s.send(ctx, NotificationReminder, share, nil, recipients, map[string]string{
		"daysRemaining": fmt.Sprintf("%d", daysRemaining),
	})
}

func (s *ShareNotificationService) send(ctx context.Context, t NotificationType, share *domain.SharedResource, sharer *domain.User, recipients []domain.User, extra map[string]string) {
	sharerName := share.OwnerID
	if sharer != nil && sharer.Name != "" {
		sharerName = sharer.Name
	}

	for _, recipient := range recipients {
		vars := map[string]string{
			"sharerName":    sharerName,
			"resourceType":  string(share.ResourceType),
			"recipientName": recipientName(&recipient),
		}
		for k, v := range extra {
			vars[k] = v
		}

		subject, body, err := s.Render(t, vars)
		if err != nil {
			log.Printf("[Notify] warning: failed to render %s notification: %v", t, err)
			continue
		}

		address := recipient.Email
		if address == "" {
			address = recipient.ID
		}
		if err := s.transport.Send(ctx, address, subject, body); err != nil {
			// Ошибка доставки не возвращается в пайплайн шаринга
			log.Printf("[Notify] warning: failed to deliver %s notification to %s: %v", t, address, err)
		}
	}
}

func recipientName(u *domain.User) string {
	if u.Name != "" {
		return u.Name
	}
	return u.ID
}
