package handler

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"fitshare/internal/auth"
	"fitshare/internal/domain"
	"fitshare/internal/service"
)

type ShareHandler struct {
	sharingService *service.SharingService
	auditService   *service.ShareAuditService
}

func NewShareHandler(sharingService *service.SharingService, auditService *service.ShareAuditService) *ShareHandler {
	return &ShareHandler{
		sharingService: sharingService,
		auditService:   auditService,
	}
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

// CreateShare обрабатывает запрос на создание гранта
func (h *ShareHandler) CreateShare(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.UserIDFromRequest(r)
	if err != nil {
		log.Printf("[CreateShare] Authentication failed: %v", err)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req domain.ShareRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("[CreateShare] Failed to decode request body: %v", err)
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	log.Printf("[CreateShare] Sharing %s %s with %d user(s)", req.ResourceType, req.ResourceID, len(req.TargetUserIDs))

	result := h.sharingService.ShareResource(r.Context(), &req, userID)
	if !result.Success {
		writeJSON(w, http.StatusBadRequest, result)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

// RevokeShare отзывает грант
func (h *ShareHandler) RevokeShare(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.UserIDFromRequest(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	shareID := chi.URLParam(r, "id")
	if shareID == "" {
		http.Error(w, "Share ID is required", http.StatusBadRequest)
		return
	}

	result := h.sharingService.RevokeShare(r.Context(), shareID, userID)
	if !result.Success {
		writeJSON(w, http.StatusBadRequest, result)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type extendShareRequest struct {
	EndDate time.Time `json:"end_date"`
}

// ExtendShare продлевает срок действия гранта
func (h *ShareHandler) ExtendShare(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.UserIDFromRequest(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	shareID := chi.URLParam(r, "id")
	if shareID == "" {
		http.Error(w, "Share ID is required", http.StatusBadRequest)
		return
	}

	var req extendShareRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("[ExtendShare] Failed to decode request body: %v", err)
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	result := h.sharingService.ExtendShare(r.Context(), shareID, req.EndDate, userID)
	if !result.Success {
		writeJSON(w, http.StatusBadRequest, result)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// CheckAccess проверяет доступ пользователя к ресурсу
func (h *ShareHandler) CheckAccess(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.UserIDFromRequest(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	resourceID := r.URL.Query().Get("resource_id")
	action := r.URL.Query().Get("action")
	if resourceID == "" || action == "" {
		http.Error(w, "resource_id and action are required", http.StatusBadRequest)
		return
	}

	result := h.sharingService.CheckAccess(r.Context(), resourceID, userID, domain.Action(action), auth.RequestMetadata(r))
	writeJSON(w, http.StatusOK, result)
}

// GetMyShares возвращает действующие гранты пользователя
func (h *ShareHandler) GetMyShares(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.UserIDFromRequest(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	shares, err := h.sharingService.GetUserShares(r.Context(), userID)
	if err != nil {
		log.Printf("[GetMyShares] Failed to get shares: %v", err)
		http.Error(w, "Failed to get shares", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, shares)
}

// ProcessExpired массово архивирует истекшие гранты
func (h *ShareHandler) ProcessExpired(w http.ResponseWriter, r *http.Request) {
	if _, err := auth.UserIDFromRequest(r); err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	count, err := h.sharingService.ProcessExpiredShares(r.Context())
	if err != nil {
		log.Printf("[ProcessExpired] Failed: %v", err)
		http.Error(w, "Failed to process expired shares", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"archived": count})
}

// GetShareHistory возвращает журнал аудита по гранту
func (h *ShareHandler) GetShareHistory(w http.ResponseWriter, r *http.Request) {
	if _, err := auth.UserIDFromRequest(r); err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	shareID := chi.URLParam(r, "id")
	if shareID == "" {
		http.Error(w, "Share ID is required", http.StatusBadRequest)
		return
	}

	entries, err := h.auditService.GetShareHistory(r.Context(), shareID)
	if err != nil {
		log.Printf("[GetShareHistory] Failed: %v", err)
		http.Error(w, "Failed to get share history", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// GetMyActivity возвращает журнал действий пользователя
func (h *ShareHandler) GetMyActivity(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.UserIDFromRequest(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	entries, err := h.auditService.GetUserShareActivity(r.Context(), userID)
	if err != nil {
		log.Printf("[GetMyActivity] Failed: %v", err)
		http.Error(w, "Failed to get activity", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// GetStatistics возвращает агрегаты журнала за период.
// По умолчанию — последние 30 дней.
func (h *ShareHandler) GetStatistics(w http.ResponseWriter, r *http.Request) {
	if _, err := auth.UserIDFromRequest(r); err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	to := time.Now()
	from := to.AddDate(0, 0, -30)

	if raw := r.URL.Query().Get("from"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			http.Error(w, "Invalid from date", http.StatusBadRequest)
			return
		}
		from = parsed
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			http.Error(w, "Invalid to date", http.StatusBadRequest)
			return
		}
		to = parsed
	}

	stats, err := h.auditService.GetShareStatistics(r.Context(), from, to)
	if err != nil {
		log.Printf("[GetStatistics] Failed: %v", err)
		http.Error(w, "Failed to get statistics", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

type cleanupAuditRequest struct {
	OlderThanDays int `json:"older_than_days"`
}

// CleanupAudit удаляет записи журнала старше указанного срока
func (h *ShareHandler) CleanupAudit(w http.ResponseWriter, r *http.Request) {
	if _, err := auth.UserIDFromRequest(r); err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req cleanupAuditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	deleted, err := h.auditService.CleanupOldEntries(r.Context(), req.OlderThanDays)
	if err != nil {
		log.Printf("[CleanupAudit] Failed: %v", err)
		http.Error(w, "Failed to cleanup audit entries", http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"deleted": deleted})
}
