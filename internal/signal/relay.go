package signal

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"
)

// Recorder receives call start/end boundaries for history persistence.
// Implementations must be fire-and-forget: a failed write is logged on their
// side and never surfaces into signaling.
type Recorder interface {
	CallStarted(session CallSession)
	CallEnded(session CallSession, endTime time.Time)
}

// Notifier delivers best-effort wake-up notifications outside the socket,
// e.g. a web push when a call comes in while the app is backgrounded.
type Notifier interface {
	IncomingCall(targetUserID, callerID, callerName string)
}

// Relay is the call-signaling state machine. It owns the registry and the
// session store and serializes every transition under one mutex, so each
// handler's mutations of the two stores are atomic with respect to each
// other. Handlers return the outbound messages to deliver instead of
// touching sockets, which keeps the protocol testable without a transport.
type Relay struct {
	mu       sync.Mutex
	registry *Registry
	sessions *SessionStore
	recorder Recorder
	notifier Notifier
	nowFn    func() time.Time
	logger   *slog.Logger
}

func NewRelay(registry *Registry, sessions *SessionStore, recorder Recorder, notifier Notifier, logger *slog.Logger) *Relay {
	if logger == nil {
		logger = slog.Default()
	}
	return &Relay{
		registry: registry,
		sessions: sessions,
		recorder: recorder,
		notifier: notifier,
		nowFn:    time.Now,
		logger:   logger,
	}
}

// HandleMessage runs one protocol transition for a frame received on connID.
// Unknown types and malformed payloads are dropped: the worst outcome of a
// misaddressed signal is a missed notification, not corrupted state.
func (r *Relay) HandleMessage(connID string, payload []byte) []Outbound {
	var env Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		r.logger.Debug("signal bad json", "conn_id", connID, "error", err)
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	switch env.Type {
	case TypeRegisterUser:
		return r.handleRegister(connID, env.Data)
	case TypeCheckAvailability:
		return r.handleCheckAvailability(connID, env.Data)
	case TypeInitiateCall:
		return r.handleInitiate(connID, env.Data)
	case TypeCallAccepted:
		return r.handleAccept(env.Data)
	case TypeCallRejected:
		return r.handleReject(connID, env.Data)
	case TypeCallEnded:
		return r.handleEnd(connID, env.Data)
	case TypeICECandidate:
		return r.handleICECandidate(connID, env.Data)
	default:
		r.logger.Debug("signal unknown type", "conn_id", connID, "type", env.Type)
		return nil
	}
}

func (r *Relay) handleRegister(connID string, raw json.RawMessage) []Outbound {
	var data registerUserData
	if err := json.Unmarshal(raw, &data); err != nil || data.UserID == "" {
		return nil
	}

	user := r.registry.Register(data.UserID, data.UserName, connID)
	r.logger.Debug("user registered", "user_id", user.UserID, "conn_id", connID)

	return []Outbound{{To: connID, Payload: encode(TypeUserRegistered, userRegisteredData{
		UserID:       user.UserID,
		ConnectionID: connID,
		Success:      true,
	})}}
}

func (r *Relay) handleCheckAvailability(connID string, raw json.RawMessage) []Outbound {
	var data checkAvailabilityData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil
	}

	available := false
	if target, ok := r.registry.Lookup(data.TargetUserID); ok {
		available = target.IsAvailable
	}

	return []Outbound{{To: connID, Payload: encode(TypeAvailability, availabilityData{
		IsAvailable: available,
	})}}
}

func (r *Relay) handleInitiate(connID string, raw json.RawMessage) []Outbound {
	var data initiateCallData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil
	}

	target, ok := r.registry.Lookup(data.TargetUserID)
	if !ok {
		return []Outbound{{To: connID, Payload: encode(TypeCallError, callErrorData{Message: "user not found"})}}
	}
	if !target.IsAvailable {
		return []Outbound{{To: connID, Payload: encode(TypeCallError, callErrorData{Message: "user busy"})}}
	}

	session := r.sessions.Create(data.CallerID, data.TargetUserID, r.nowFn())
	target.IsAvailable = false
	target.CurrentCallID = session.CallID
	if caller, ok := r.registry.Lookup(data.CallerID); ok {
		caller.IsAvailable = false
		caller.CurrentCallID = session.CallID
	}

	r.logger.Debug("call initiated",
		"call_id", session.CallID, "caller_id", data.CallerID, "target_user_id", data.TargetUserID,
		"offer_bytes", len(data.Offer))

	if r.recorder != nil {
		r.recorder.CallStarted(*session)
	}
	if r.notifier != nil {
		r.notifier.IncomingCall(target.UserID, data.CallerID, data.CallerName)
	}

	return []Outbound{{To: target.ConnectionID, Payload: encode(TypeIncomingCall, incomingCallData{
		CallerID:   data.CallerID,
		CallerName: data.CallerName,
		Offer:      data.Offer,
	})}}
}

func (r *Relay) handleAccept(raw json.RawMessage) []Outbound {
	var data acceptCallData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil
	}

	caller, ok := r.registry.Lookup(data.TargetUserID)
	if !ok {
		r.logger.Debug("call accept dropped, caller not connected", "target_user_id", data.TargetUserID)
		return nil
	}

	return []Outbound{{To: caller.ConnectionID, Payload: encode(TypeCallAccepted, callAcceptedData{
		Answer: data.Answer,
	})}}
}

func (r *Relay) handleReject(connID string, raw json.RawMessage) []Outbound {
	var data peerRefData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil
	}

	senderID, _ := r.registry.UserByConn(connID)
	r.releasePair(senderID, data.TargetUserID)

	caller, ok := r.registry.Lookup(data.TargetUserID)
	if !ok {
		return nil
	}
	return []Outbound{{To: caller.ConnectionID, Payload: encode(TypeCallRejected, nil)}}
}

func (r *Relay) handleEnd(connID string, raw json.RawMessage) []Outbound {
	var data peerRefData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil
	}

	senderID, _ := r.registry.UserByConn(connID)
	r.releasePair(senderID, data.TargetUserID)

	other, ok := r.registry.Lookup(data.TargetUserID)
	if !ok {
		return nil
	}
	return []Outbound{{To: other.ConnectionID, Payload: encode(TypeCallEnded, nil)}}
}

func (r *Relay) handleICECandidate(connID string, raw json.RawMessage) []Outbound {
	var data iceCandidateData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil
	}

	target, ok := r.registry.Lookup(data.TargetUserID)
	if !ok {
		return nil
	}

	senderID, _ := r.registry.UserByConn(connID)
	return []Outbound{{To: target.ConnectionID, Payload: encode(TypeICECandidate, iceCandidateData{
		Candidate: data.Candidate,
		UserID:    senderID,
	})}}
}

// Disconnect tears down whatever the dropped connection was holding: the
// presence entry, its active session if any, and the counterparty's claim on
// that session. Each step degrades to a no-op when its subject is already
// gone. Called by the transport when a socket closes.
func (r *Relay) Disconnect(connID string) []Outbound {
	r.mu.Lock()
	defer r.mu.Unlock()

	userID, ok := r.registry.UserByConn(connID)
	if !ok {
		// Handle already replaced by a later registration.
		return nil
	}
	user, _ := r.registry.Lookup(userID)
	r.registry.Remove(userID)
	r.logger.Debug("user disconnected", "user_id", userID, "conn_id", connID)

	if user == nil || user.CurrentCallID == "" {
		return nil
	}

	session, ok := r.sessions.Get(user.CurrentCallID)
	if !ok {
		return nil
	}
	r.endSession(session)

	otherID := session.Counterparty(userID)
	other, ok := r.registry.Lookup(otherID)
	if !ok {
		return nil
	}
	other.IsAvailable = true
	other.CurrentCallID = ""
	return []Outbound{{To: other.ConnectionID, Payload: encode(TypeCallEnded, nil)}}
}

// releasePair restores availability for both participants and removes the
// session referenced by either of them. Safe to call for an already-ended
// call: with no session reference left it changes nothing.
func (r *Relay) releasePair(aID, bID string) {
	var callID string
	for _, userID := range []string{aID, bID} {
		if user, ok := r.registry.Lookup(userID); ok {
			if callID == "" {
				callID = user.CurrentCallID
			}
			user.IsAvailable = true
			user.CurrentCallID = ""
		}
	}
	if callID == "" {
		return
	}
	if session, ok := r.sessions.Get(callID); ok {
		r.endSession(session)
	}
}

func (r *Relay) endSession(session *CallSession) {
	now := r.nowFn()
	session.Status = CallStatusEnded
	session.EndTime = now
	r.sessions.Remove(session.CallID)
	r.logger.Debug("call ended", "call_id", session.CallID)
	if r.recorder != nil {
		r.recorder.CallEnded(*session, now)
	}
}
