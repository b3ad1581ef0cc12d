package users

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

type memoryRepository struct {
	mu    sync.RWMutex
	users map[string]User
}

// NewMemoryRepository builds an in-memory user store for development and tests.
func NewMemoryRepository() Repository {
	return &memoryRepository{users: make(map[string]User)}
}

func (r *memoryRepository) Create(_ context.Context, user User) error {
	if !user.Status.Valid() {
		return ErrInvalidStatus
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if strings.EqualFold(existing.Name, user.Name) {
			return &DuplicateError{Field: "name", Value: user.Name}
		}
		if strings.EqualFold(existing.Email, user.Email) {
			return &DuplicateError{Field: "email", Value: user.Email}
		}
	}
	if _, exists := r.users[user.ID]; exists {
		return ErrAlreadyExists
	}
	r.users[user.ID] = clone(user)
	return nil
}

func (r *memoryRepository) Get(_ context.Context, id string) (User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	user, ok := r.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return clone(user), nil
}

func (r *memoryRepository) FindByEmail(_ context.Context, email string) (User, error) {
	return r.find(func(u User) bool { return strings.EqualFold(u.Email, email) })
}

func (r *memoryRepository) FindByName(_ context.Context, name string) (User, error) {
	return r.find(func(u User) bool { return strings.EqualFold(u.Name, name) })
}

func (r *memoryRepository) find(match func(User) bool) (User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, user := range r.users {
		if match(user) {
			return clone(user), nil
		}
	}
	return User{}, ErrNotFound
}

func (r *memoryRepository) List(_ context.Context) ([]User, error) {
	r.mu.RLock()
	out := make([]User, 0, len(r.users))
	for _, user := range r.users {
		out = append(out, clone(user))
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].RegistrationTime.Equal(out[j].RegistrationTime) {
			return out[i].ID < out[j].ID
		}
		return out[i].RegistrationTime.Before(out[j].RegistrationTime)
	})
	return out, nil
}

func (r *memoryRepository) SetStatus(_ context.Context, id string, status Status) (User, error) {
	if !status.Valid() {
		return User{}, ErrInvalidStatus
	}
	return r.update(id, func(u *User) { u.Status = status })
}

func (r *memoryRepository) TouchLogin(_ context.Context, id string, at time.Time) (User, error) {
	at = at.UTC()
	return r.update(id, func(u *User) { u.LastLoginTime = &at })
}

func (r *memoryRepository) update(id string, mutate func(*User)) (User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	mutate(&user)
	r.users[id] = user
	return clone(user), nil
}

func (r *memoryRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[id]; !ok {
		return ErrNotFound
	}
	delete(r.users, id)
	return nil
}

func clone(u User) User {
	if u.LastLoginTime != nil {
		t := *u.LastLoginTime
		u.LastLoginTime = &t
	}
	if u.PasswordHash != nil {
		u.PasswordHash = append([]byte(nil), u.PasswordHash...)
	}
	return u
}
