// Package session keeps in-progress conversations in memory. Nothing here survives a restart.
package session

import (
	"sync"

	"telegram-emotion-diary/internal/models"
)

// Store maps a user id to the conversation in progress.
type Store struct {
	mu       sync.RWMutex
	sessions map[int64]models.Session
}

func NewStore() *Store {
	return &Store{sessions: make(map[int64]models.Session)}
}

// Get returns a copy of the user's session.
func (s *Store) Get(userID int64) (models.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[userID]
	return sess, ok
}

func (s *Store) Set(userID int64, sess models.Session) {
	s.mu.Lock()
	s.sessions[userID] = sess
	s.mu.Unlock()
}

func (s *Store) Clear(userID int64) {
	s.mu.Lock()
	delete(s.sessions, userID)
	s.mu.Unlock()
}

// Len reports how many conversations are in progress.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
