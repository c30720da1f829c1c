package repository

import (
	"context"
	"sync"
	"time"

	"authcore/internal/session/domain"
)

// MemoryStore is a mutex-guarded in-memory Store. It enforces the same
// conditional-update and uniqueness semantics as the Postgres store and is
// used for tests and single-process development.
type MemoryStore struct {
	mu       sync.Mutex
	families map[string]*domain.Family
	records  map[string]*domain.RefreshRecord
}

// NewMemoryStore returns an empty in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		families: make(map[string]*domain.Family),
		records:  make(map[string]*domain.RefreshRecord),
	}
}

func (m *MemoryStore) CreateFamily(ctx context.Context, f *domain.Family) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *f
	m.families[f.ID] = &cp
	return nil
}

func (m *MemoryStore) GetFamily(ctx context.Context, id string) (*domain.Family, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.families[id]
	if !ok {
		return nil, nil
	}
	cp := *f
	return &cp, nil
}

func (m *MemoryStore) ListFamiliesByPrincipal(ctx context.Context, principalID string) ([]*domain.Family, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Family
	for _, f := range m.families {
		if f.PrincipalID == principalID {
			cp := *f
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MemoryStore) InsertRefreshRecord(ctx context.Context, r *domain.RefreshRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *r
	m.records[r.ID] = &cp
	return nil
}

func (m *MemoryStore) LookupByHash(ctx context.Context, credentialHash string) (*domain.RefreshRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.records {
		if r.CredentialHash == credentialHash {
			cp := *r
			return &cp, nil
		}
	}
	return nil, nil
}

// ConsumeAndAdvance performs the check and the successor insert under one
// lock, matching the Postgres store's single-transaction guarantee.
func (m *MemoryStore) ConsumeAndAdvance(ctx context.Context, recordID string, successor *domain.RefreshRecord, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[recordID]
	if !ok {
		return ErrAlreadyConsumedOrRevoked
	}
	f := m.families[r.FamilyID]
	if r.ConsumedAt != nil || r.RevokedAt != nil || f == nil || f.RevokedAt != nil {
		return ErrAlreadyConsumedOrRevoked
	}
	for _, other := range m.records {
		if other.FamilyID == successor.FamilyID && other.Sequence == successor.Sequence {
			return ErrAlreadyConsumedOrRevoked
		}
	}
	cp := *successor
	m.records[successor.ID] = &cp
	consumed := at
	r.ConsumedAt = &consumed
	id := successor.ID
	r.SuccessorID = &id
	return nil
}

func (m *MemoryStore) RevokeFamily(ctx context.Context, familyID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if f, ok := m.families[familyID]; ok && f.RevokedAt == nil {
		t := at
		f.RevokedAt = &t
	}
	for _, r := range m.records {
		if r.FamilyID == familyID && r.ConsumedAt == nil && r.RevokedAt == nil {
			t := at
			r.RevokedAt = &t
		}
	}
	return nil
}

func (m *MemoryStore) RevokeAllFamiliesForPrincipal(ctx context.Context, principalID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, f := range m.families {
		if f.PrincipalID != principalID {
			continue
		}
		if f.RevokedAt == nil {
			t := at
			f.RevokedAt = &t
		}
		for _, r := range m.records {
			if r.FamilyID == f.ID && r.ConsumedAt == nil && r.RevokedAt == nil {
				t := at
				r.RevokedAt = &t
			}
		}
	}
	return nil
}
