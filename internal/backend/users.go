package backend

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bookworm-labs/bookchat/internal/domain"
)

var (
	errEmailTaken   = errors.New("email already registered")
	errUserNotFound = errors.New("user not found")
)

// userStore keeps accounts and profiles in memory. The development
// backend has no durability requirement.
type userStore struct {
	mu       sync.RWMutex
	byEmail  map[string]*domain.User
	byID     map[uuid.UUID]*domain.User
	profiles map[uuid.UUID]*domain.UserProfile
}

func newUserStore() *userStore {
	return &userStore{
		byEmail:  make(map[string]*domain.User),
		byID:     make(map[uuid.UUID]*domain.User),
		profiles: make(map[uuid.UUID]*domain.UserProfile),
	}
}

func (s *userStore) create(user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byEmail[user.Email]; exists {
		return errEmailTaken
	}
	s.byEmail[user.Email] = user
	s.byID[user.ID] = user
	return nil
}

func (s *userStore) getByEmail(email string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.byEmail[email]
	if !ok {
		return nil, errUserNotFound
	}
	return user, nil
}

func (s *userStore) getByID(id uuid.UUID) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.byID[id]
	if !ok {
		return nil, errUserNotFound
	}
	return user, nil
}

// upsertProfile creates or replaces the user's background profile.
func (s *userStore) upsertProfile(userID uuid.UUID, req domain.ProfileRequest) *domain.UserProfile {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	profile, exists := s.profiles[userID]
	if !exists {
		profile = &domain.UserProfile{
			ID:        userID,
			UserID:    userID,
			CreatedAt: now,
		}
		s.profiles[userID] = profile
	}
	profile.SoftwareContext = req.SoftwareContext
	profile.HardwareContext = req.HardwareContext
	profile.UpdatedAt = now
	return profile
}

func (s *userStore) getProfile(userID uuid.UUID) (*domain.UserProfile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	profile, ok := s.profiles[userID]
	return profile, ok
}
