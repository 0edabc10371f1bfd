package signal

import (
	"fmt"
	"time"
)

// CallStatus is the lifecycle state of a call session.
type CallStatus string

const (
	CallStatusPending CallStatus = "pending"
	CallStatusActive  CallStatus = "active"
	CallStatusEnded   CallStatus = "ended"
)

type CallSession struct {
	CallID       string
	CallerID     string
	TargetUserID string
	Status       CallStatus
	StartTime    time.Time
	EndTime      time.Time
}

// Counterparty returns the participant that is not userID.
func (s *CallSession) Counterparty(userID string) string {
	if userID == s.CallerID {
		return s.TargetUserID
	}
	return s.CallerID
}

// SessionStore maps call ids to sessions. Like the registry it is owned and
// serialized by the relay.
type SessionStore struct {
	sessions map[string]*CallSession
}

func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[string]*CallSession)}
}

// Create allocates a pending session. Participant existence is the caller's
// responsibility. The id is derived from the pair and the creation time;
// collisions under extreme initiation rates are accepted.
func (s *SessionStore) Create(callerID, targetUserID string, now time.Time) *CallSession {
	session := &CallSession{
		CallID:       fmt.Sprintf("call-%s-%s-%d", callerID, targetUserID, now.UnixMilli()),
		CallerID:     callerID,
		TargetUserID: targetUserID,
		Status:       CallStatusPending,
		StartTime:    now,
	}
	s.sessions[session.CallID] = session
	return session
}

func (s *SessionStore) Get(callID string) (*CallSession, bool) {
	session, ok := s.sessions[callID]
	return session, ok
}

func (s *SessionStore) Remove(callID string) {
	delete(s.sessions, callID)
}

func (s *SessionStore) Len() int {
	return len(s.sessions)
}
