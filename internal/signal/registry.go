package signal

// ConnectedUser is a live presence entry. The connection id is an opaque
// transport handle and changes on every reconnect.
type ConnectedUser struct {
	UserID        string
	DisplayName   string
	ConnectionID  string
	IsAvailable   bool
	CurrentCallID string
}

// Registry maps user ids to live connection state. It holds no lock of its
// own: the relay owns it and serializes all access.
type Registry struct {
	users map[string]*ConnectedUser
	conns map[string]string // connection id -> user id
}

func NewRegistry() *Registry {
	return &Registry{
		users: make(map[string]*ConnectedUser),
		conns: make(map[string]string),
	}
}

// Register inserts or replaces the entry for userID. A later registration
// wins: the previous connection handle loses its claim on the entry, and a
// connection that re-registers under a new user id gives up the old one.
func (r *Registry) Register(userID, displayName, connID string) *ConnectedUser {
	if prev, ok := r.users[userID]; ok {
		delete(r.conns, prev.ConnectionID)
	}
	if prevUserID, ok := r.conns[connID]; ok && prevUserID != userID {
		delete(r.users, prevUserID)
	}

	user := &ConnectedUser{
		UserID:       userID,
		DisplayName:  displayName,
		ConnectionID: connID,
		IsAvailable:  true,
	}
	r.users[userID] = user
	r.conns[connID] = userID
	return user
}

func (r *Registry) Lookup(userID string) (*ConnectedUser, bool) {
	user, ok := r.users[userID]
	return user, ok
}

// UserByConn resolves a connection handle back to the user that currently
// owns it. A handle replaced by a later registration resolves to nothing.
func (r *Registry) UserByConn(connID string) (string, bool) {
	userID, ok := r.conns[connID]
	return userID, ok
}

func (r *Registry) Remove(userID string) {
	if user, ok := r.users[userID]; ok {
		delete(r.conns, user.ConnectionID)
		delete(r.users, userID)
	}
}

// SetAvailability flips the advisory availability flag. No-op if absent.
func (r *Registry) SetAvailability(userID string, available bool) {
	if user, ok := r.users[userID]; ok {
		user.IsAvailable = available
	}
}

func (r *Registry) Len() int {
	return len(r.users)
}
