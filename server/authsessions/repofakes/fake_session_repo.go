package fakesessionrepo

import (
	"sort"
	"sync"
	"time"

	"github.com/jrsteele09/go-storefront/server/authsessions"
)

var _ authsessions.Repo = (*FakeSessionRepo)(nil)

type FakeSessionRepo struct {
	sessions map[string]*authsessions.SessionData
	byUser   map[string]map[string]struct{} // Map user IDs to their sessionIDs
	lock     sync.RWMutex
}

func NewFakeSessionRepo() *FakeSessionRepo {
	return &FakeSessionRepo{
		sessions: make(map[string]*authsessions.SessionData),
		byUser:   make(map[string]map[string]struct{}),
	}
}

func (sr *FakeSessionRepo) Upsert(sessionID string, sessionData *authsessions.SessionData) error {
	sr.lock.Lock()
	defer sr.lock.Unlock()

	if previous, ok := sr.sessions[sessionID]; ok && previous.UserID != sessionData.UserID {
		sr.unindex(previous)
	}

	stored := *sessionData
	stored.ID = sessionID
	sr.sessions[sessionID] = &stored
	if sr.byUser[stored.UserID] == nil {
		sr.byUser[stored.UserID] = make(map[string]struct{})
	}
	sr.byUser[stored.UserID][sessionID] = struct{}{}
	return nil
}

func (sr *FakeSessionRepo) Delete(sessionID string) error {
	sr.lock.Lock()
	defer sr.lock.Unlock()

	session, ok := sr.sessions[sessionID]
	if !ok {
		return authsessions.ErrSessionNotFound
	}
	sr.unindex(session)
	delete(sr.sessions, sessionID)
	return nil
}

func (sr *FakeSessionRepo) Get(sessionID string) (*authsessions.SessionData, error) {
	sr.lock.RLock()
	defer sr.lock.RUnlock()

	session, ok := sr.sessions[sessionID]
	if !ok {
		return nil, authsessions.ErrSessionNotFound
	}
	s := *session
	return &s, nil
}

func (sr *FakeSessionRepo) ListByUser(userID string) ([]*authsessions.SessionData, error) {
	sr.lock.RLock()
	defer sr.lock.RUnlock()
	return sr.collect(userID), nil
}

func (sr *FakeSessionRepo) DeleteByUser(userID string) ([]*authsessions.SessionData, error) {
	sr.lock.Lock()
	defer sr.lock.Unlock()

	removed := sr.collect(userID)
	for _, s := range removed {
		delete(sr.sessions, s.ID)
	}
	delete(sr.byUser, userID)
	return removed, nil
}

func (sr *FakeSessionRepo) DeleteExpiredSessions(expiryTime time.Time) error {
	sr.lock.Lock()
	defer sr.lock.Unlock()

	for sessionID, session := range sr.sessions {
		if session.ExpiresAt.Before(expiryTime) {
			sr.unindex(session)
			delete(sr.sessions, sessionID)
		}
	}
	return nil
}

// collect copies the user's sessions, oldest first. Callers hold the lock.
func (sr *FakeSessionRepo) collect(userID string) []*authsessions.SessionData {
	list := make([]*authsessions.SessionData, 0, len(sr.byUser[userID]))
	for sessionID := range sr.byUser[userID] {
		s := *sr.sessions[sessionID]
		list = append(list, &s)
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].Timestamp.Before(list[j].Timestamp)
	})
	return list
}

func (sr *FakeSessionRepo) unindex(session *authsessions.SessionData) {
	delete(sr.byUser[session.UserID], session.ID)
	if len(sr.byUser[session.UserID]) == 0 {
		delete(sr.byUser, session.UserID)
	}
}
