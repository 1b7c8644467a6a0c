package team

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/teamfaces/teamfaces/internal/models"
)

// MemoryStore is an in-process Store for tests and local development.
type MemoryStore struct {
	mu       sync.RWMutex
	team     *models.Team
	members  map[uuid.UUID]*models.Member
	order    []uuid.UUID
	invites  map[string]*models.InviteCode
	activity []models.Activity
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		members: make(map[uuid.UUID]*models.Member),
		invites: make(map[string]*models.InviteCode),
	}
}

func (m *MemoryStore) GetTeam(_ context.Context) (*models.Team, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.team == nil {
		return nil, ErrNotFound
	}
	t := *m.team
	return &t, nil
}

func (m *MemoryStore) CreateTeam(_ context.Context, t *models.Team) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.team != nil {
		return ErrAlreadyExists
	}
	stored := *t
	m.team = &stored
	return nil
}

func (m *MemoryStore) UpdateTeam(_ context.Context, fields TeamFields, now time.Time) (*models.Team, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.team == nil {
		return nil, ErrNotFound
	}
	if fields.Name != nil {
		m.team.Name = *fields.Name
	}
	if fields.Description != nil {
		m.team.Description = *fields.Description
	}
	if fields.LogoURL != nil {
		m.team.LogoURL = *fields.LogoURL
	}
	if fields.Settings != nil {
		m.team.Settings = *fields.Settings
	}
	m.team.UpdatedAt = now
	t := *m.team
	return &t, nil
}

func (m *MemoryStore) GetMember(_ context.Context, id uuid.UUID) (*models.Member, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	mem, ok := m.members[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyMember(mem), nil
}

func (m *MemoryStore) UpsertMember(_ context.Context, id uuid.UUID, fields MemberFields, now time.Time) (*models.Member, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mem, ok := m.members[id]
	if !ok {
		mem = &models.Member{ID: id, Role: models.DefaultRole, Status: models.StatusAvailable, CreatedAt: now}
		m.members[id] = mem
		m.order = append(m.order, id)
	}
	applyMemberFields(mem, fields)
	return copyMember(mem), nil
}

func (m *MemoryStore) ListMembers(_ context.Context) ([]models.Member, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Member, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, *copyMember(m.members[id]))
	}
	return out, nil
}

func (m *MemoryStore) CountMembersActiveSince(_ context.Context, since time.Time) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, mem := range m.members {
		if mem.LastActive != nil && !mem.LastActive.Before(since) {
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) CreateInviteCode(_ context.Context, code *models.InviteCode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.invites[code.Code]; ok {
		return ErrAlreadyExists
	}
	stored := *code
	m.invites[code.Code] = &stored
	return nil
}

func (m *MemoryStore) GetInviteCode(_ context.Context, code string) (*models.InviteCode, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	inv, ok := m.invites[code]
	if !ok {
		return nil, ErrNotFound
	}
	c := *inv
	return &c, nil
}

func (m *MemoryStore) ConsumeInviteCode(_ context.Context, code string, userID uuid.UUID, now time.Time) (*models.InviteCode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.invites[code]
	if !ok || !inv.Usable(now) {
		return nil, ErrInvalidInvite
	}
	usedAt := now
	inv.Used = true
	inv.UsedBy = &userID
	inv.UsedAt = &usedAt
	c := *inv
	return &c, nil
}

func (m *MemoryStore) ListActiveInviteCodes(_ context.Context, now time.Time) ([]models.InviteCode, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.InviteCode
	for _, inv := range m.invites {
		if inv.Usable(now) {
			out = append(out, *inv)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryStore) RecordActivity(_ context.Context, a *models.Activity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.activity = append(m.activity, *a)
	return nil
}

func (m *MemoryStore) RecentActivity(_ context.Context, limit int) ([]models.Activity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Activity, 0, limit)
	for i := len(m.activity) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.activity[i])
	}
	return out, nil
}

func applyMemberFields(mem *models.Member, f MemberFields) {
	if f.Name != nil {
		mem.Name = *f.Name
	}
	if f.Email != nil {
		mem.Email = *f.Email
	}
	if f.Role != nil {
		mem.Role = *f.Role
	}
	if f.Status != nil {
		mem.Status = *f.Status
	}
	if f.StatusMessage != nil {
		mem.StatusMessage = *f.StatusMessage
	}
	if f.Schedule != nil {
		mem.Schedule = *f.Schedule
	}
	if f.PhotoURL != nil {
		mem.PhotoURL = *f.PhotoURL
	}
	if f.LastActive != nil {
		t := *f.LastActive
		mem.LastActive = &t
	}
}

func copyMember(mem *models.Member) *models.Member {
	c := *mem
	if mem.LastActive != nil {
		t := *mem.LastActive
		c.LastActive = &t
	}
	return &c
}
