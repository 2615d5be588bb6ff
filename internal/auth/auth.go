package auth

import (
	"fmt"
	"net/http"
)

// UserIDFromRequest извлекает идентификатор пользователя, проставленный
// шлюзом аутентификации. Проверка самого токена выполняется выше по
// цепочке, движку шаринга достаточно идентификатора.
func UserIDFromRequest(r *http.Request) (string, error) {
	userID := r.Header.Get("X-User-ID")
	if userID == "" {
		return "", fmt.Errorf("no authenticated user in request")
	}
	return userID, nil
}

// RequestMetadata собирает метаданные запроса для условий доступа и аудита
func RequestMetadata(r *http.Request) map[string]string {
	return map[string]string{
		"ip_address":  r.RemoteAddr,
		"user_agent":  r.UserAgent(),
		"device_type": r.Header.Get("X-Device-Type"),
	}
}
