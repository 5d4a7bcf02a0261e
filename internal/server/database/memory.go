package database

import (
	"context"
	"sync"
)

// MemoryStore is an in-process metadata store used in tests and for
// dependency-free local runs. Files are kept in a slice so listings come
// back in insertion order, matching the persistent backends.
type MemoryStore struct {
	mu    sync.RWMutex
	users map[string]*User
	files []*File
	byID  map[string]*File
}

// NewMemoryStore creates an empty in-memory metadata store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users: make(map[string]*User),
		byID:  make(map[string]*File),
	}
}

func (m *MemoryStore) CreateUser(ctx context.Context, user *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.users {
		if u.Email == user.Email {
			return ErrEmailTaken
		}
	}
	clone := *user
	m.users[user.ID] = &clone
	return nil
}

func (m *MemoryStore) UserByEmail(ctx context.Context, email string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, u := range m.users {
		if u.Email == email {
			clone := *u
			return &clone, nil
		}
	}
	return nil, ErrUserNotFound
}

func (m *MemoryStore) UserByID(ctx context.Context, id string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	clone := *u
	return &clone, nil
}

func (m *MemoryStore) CountUsers(ctx context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.users)), nil
}

func (m *MemoryStore) InsertFile(ctx context.Context, file *File) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	clone := *file
	m.files = append(m.files, &clone)
	m.byID[file.ID] = &clone
	return nil
}

func (m *MemoryStore) FileByID(ctx context.Context, id string) (*File, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	f, ok := m.byID[id]
	if !ok {
		return nil, ErrFileNotFound
	}
	clone := *f
	return &clone, nil
}

func (m *MemoryStore) FileByIDAndOwner(ctx context.Context, id, ownerID string) (*File, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	f, ok := m.byID[id]
	if !ok || f.OwnerID != ownerID {
		return nil, ErrFileNotFound
	}
	clone := *f
	return &clone, nil
}

func (m *MemoryStore) ListFiles(ctx context.Context, ownerID string, parent ParentID, skip, limit int) ([]*File, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	matched := 0
	out := make([]*File, 0, limit)
	for _, f := range m.files {
		if f.OwnerID != ownerID || f.ParentID != parent {
			continue
		}
		if matched >= skip {
			clone := *f
			out = append(out, &clone)
			if len(out) == limit {
				break
			}
		}
		matched++
	}
	return out, nil
}

func (m *MemoryStore) SetFilePublic(ctx context.Context, id, ownerID string, public bool) (*File, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	f, ok := m.byID[id]
	if !ok || f.OwnerID != ownerID {
		return nil, ErrFileNotFound
	}
	f.IsPublic = public
	clone := *f
	return &clone, nil
}

func (m *MemoryStore) CountFiles(ctx context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.files)), nil
}

func (m *MemoryStore) Ping(ctx context.Context) error { return nil }

func (m *MemoryStore) Close(ctx context.Context) error { return nil }
