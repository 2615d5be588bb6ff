package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"fitshare/internal/domain"
)

// In-memory реализации контрактов хранилищ для тестов сервисов

type memShareRepo struct {
	mu        sync.Mutex
	shares    map[string]*domain.SharedResource
	createErr error
	updateErr error
}

func newMemShareRepo() *memShareRepo {
	return &memShareRepo{shares: make(map[string]*domain.SharedResource)}
}

func (r *memShareRepo) put(share *domain.SharedResource) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.shares[share.ID.String()] = share
}

func (r *memShareRepo) FindByID(ctx context.Context, shareID string) (*domain.SharedResource, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	share, ok := r.shares[shareID]
	if !ok {
		return nil, fmt.Errorf("share not found")
	}
	return share, nil
}

func (r *memShareRepo) FindByUserAndResource(ctx context.Context, userID, resourceID string) (*domain.SharedResource, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, share := range r.shares {
		if share.Archived || share.ResourceID != resourceID {
			continue
		}
		if share.OwnerID == userID {
			return share, nil
		}
		for _, id := range share.SharedWith {
			if id == userID {
				return share, nil
			}
		}
	}
	return nil, nil
}

func (r *memShareRepo) FindByOwnerID(ctx context.Context, ownerID string) ([]domain.SharedResource, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.SharedResource
	for _, share := range r.shares {
		if share.OwnerID == ownerID {
			out = append(out, *share)
		}
	}
	return out, nil
}

func (r *memShareRepo) FindBySharedUserID(ctx context.Context, userID string) ([]domain.SharedResource, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.SharedResource
	for _, share := range r.shares {
		for _, id := range share.SharedWith {
			if id == userID {
				out = append(out, *share)
				break
			}
		}
	}
	return out, nil
}

func (r *memShareRepo) FindByResourceID(ctx context.Context, resourceID string) ([]domain.SharedResource, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.SharedResource
	for _, share := range r.shares {
		if share.ResourceID == resourceID {
			out = append(out, *share)
		}
	}
	return out, nil
}

func (r *memShareRepo) Create(ctx context.Context, share *domain.SharedResource) error {
	if r.createErr != nil {
		return r.createErr
	}
	r.put(share)
	return nil
}

func (r *memShareRepo) Update(ctx context.Context, share *domain.SharedResource) error {
	if r.updateErr != nil {
		return r.updateErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.shares[share.ID.String()]; !ok {
		return fmt.Errorf("share not found")
	}
	r.shares[share.ID.String()] = share
	return nil
}

func (r *memShareRepo) Archive(ctx context.Context, shareID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	share, ok := r.shares[shareID]
	if !ok {
		return false, nil
	}
	r.shares[shareID] = share.Archive()
	return true, nil
}

func (r *memShareRepo) BulkArchiveExpired(ctx context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for id, share := range r.shares {
		if !share.Archived && share.HasExpired() {
			r.shares[id] = share.Archive()
			count++
		}
	}
	return count, nil
}

type memAuditRepo struct {
	mu      sync.Mutex
	entries []domain.AuditEntry
}

func newMemAuditRepo() *memAuditRepo {
	return &memAuditRepo{}
}

func (r *memAuditRepo) Create(ctx context.Context, entry *domain.AuditEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, *entry)
	return nil
}

func (r *memAuditRepo) FindByShareID(ctx context.Context, shareID string) ([]domain.AuditEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.AuditEntry
	for _, e := range r.entries {
		if e.ShareID == shareID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *memAuditRepo) FindByUserID(ctx context.Context, userID string) ([]domain.AuditEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.AuditEntry
	for _, e := range r.entries {
		if e.PerformedBy == userID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *memAuditRepo) FindByDateRange(ctx context.Context, from, to time.Time) ([]domain.AuditEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.AuditEntry
	for _, e := range r.entries {
		if !e.Timestamp.Before(from) && !e.Timestamp.After(to) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *memAuditRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var kept []domain.AuditEntry
	deleted := 0
	for _, e := range r.entries {
		if e.Timestamp.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, e)
	}
	r.entries = kept
	return deleted, nil
}

func (r *memAuditRepo) byAction(action domain.AuditAction) []domain.AuditEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.AuditEntry
	for _, e := range r.entries {
		if e.Action == action {
			out = append(out, e)
		}
	}
	return out
}

type memDirectory struct {
	users map[string]domain.User
}

func newMemDirectory(users ...domain.User) *memDirectory {
	d := &memDirectory{users: make(map[string]domain.User)}
	for _, u := range users {
		d.users[u.ID] = u
	}
	return d
}

func (d *memDirectory) GetByID(ctx context.Context, userID string) (*domain.User, error) {
	u, ok := d.users[userID]
	if !ok {
		return nil, fmt.Errorf("user not found")
	}
	return &u, nil
}

func (d *memDirectory) GetByIDs(ctx context.Context, userIDs []string) ([]domain.User, error) {
	var out []domain.User
	for _, id := range userIDs {
		if u, ok := d.users[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

type sentNotification struct {
	Recipient string
	Subject   string
	Body      string
}

type memTransport struct {
	mu      sync.Mutex
	sent    []sentNotification
	sendErr error
}

func newMemTransport() *memTransport {
	return &memTransport{}
}

func (t *memTransport) Send(ctx context.Context, recipient string, subject, body string) error {
	if t.sendErr != nil {
		return t.sendErr
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sent = append(t.sent, sentNotification{Recipient: recipient, Subject: subject, Body: body})
	return nil
}

func (t *memTransport) sentCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sent)
}
