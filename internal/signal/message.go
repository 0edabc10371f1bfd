package signal

import "encoding/json"

// Message types exchanged over the signaling socket. The names are part of
// the client protocol, keep them stable.
const (
	TypeRegisterUser      = "register-user"
	TypeUserRegistered    = "user-registered"
	TypeCheckAvailability = "check-user-availability"
	TypeAvailability      = "user-availability-response"
	TypeInitiateCall      = "initiate-call"
	TypeIncomingCall      = "incoming-call"
	TypeCallError         = "call-error"
	TypeCallAccepted      = "call-accepted"
	TypeCallRejected      = "call-rejected"
	TypeCallEnded         = "call-ended"
	TypeICECandidate      = "ice-candidate"
)

// Envelope frames every signaling message in both directions.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Outbound is a message the relay wants delivered to a live connection.
// The relay never writes to sockets itself; the transport layer does.
type Outbound struct {
	To      string // connection id
	Payload []byte
}

type registerUserData struct {
	UserID   string `json:"user_id"`
	UserName string `json:"user_name,omitempty"`
}

type userRegisteredData struct {
	UserID       string `json:"user_id"`
	ConnectionID string `json:"connection_id"`
	Success      bool   `json:"success"`
}

type checkAvailabilityData struct {
	TargetUserID string `json:"target_user_id"`
}

type availabilityData struct {
	IsAvailable bool `json:"is_available"`
}

type initiateCallData struct {
	CallerID     string          `json:"caller_id"`
	CallerName   string          `json:"caller_name,omitempty"`
	TargetUserID string          `json:"target_user_id"`
	Offer        json.RawMessage `json:"offer,omitempty"`
}

type incomingCallData struct {
	CallerID   string          `json:"caller_id"`
	CallerName string          `json:"caller_name,omitempty"`
	Offer      json.RawMessage `json:"offer,omitempty"`
}

type callErrorData struct {
	Message string `json:"message"`
}

type acceptCallData struct {
	TargetUserID string          `json:"target_user_id"`
	Answer       json.RawMessage `json:"answer,omitempty"`
}

type callAcceptedData struct {
	Answer json.RawMessage `json:"answer,omitempty"`
}

// peerRefData addresses the counterparty of the current call.
type peerRefData struct {
	TargetUserID string `json:"target_user_id"`
}

type iceCandidateData struct {
	TargetUserID string          `json:"target_user_id,omitempty"`
	Candidate    json.RawMessage `json:"candidate,omitempty"`
	UserID       string          `json:"user_id,omitempty"` // sender, set on forward
}

func encode(msgType string, data any) []byte {
	var raw json.RawMessage
	if data != nil {
		raw, _ = json.Marshal(data)
	}
	payload, _ := json.Marshal(Envelope{Type: msgType, Data: raw})
	return payload
}
