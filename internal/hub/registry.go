package hub

import (
	"sort"
	"sync"

	"chathub/internal/models"
)

// Conn is one live client connection. Send queues an already encoded frame and
// must not block on the network.
type Conn interface {
	ID() string
	Send(frame []byte) error
}

type presence struct {
	identity models.Identity
	conns    map[string]struct{}
}

type binding struct {
	userID string
	conn   Conn
}

// Departure is the outcome of Deregister. Departed is set only when the
// connection was the user's last one.
type Departure struct {
	Departed bool
	Identity models.Identity
}

// Registry maps users to their live connections. Every method returns copies;
// callers never see the maps.
type Registry struct {
	mu    sync.RWMutex
	users map[string]*presence
	conns map[string]binding
}

func NewRegistry() *Registry {
	return &Registry{
		users: make(map[string]*presence),
		conns: make(map[string]binding),
	}
}

// Register adds the session's connection. It returns true if the user just came
// online. Registering a known connection ID again is a no-op.
func (r *Registry) Register(s models.Session, conn Conn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.conns[s.ConnectionID]; ok {
		return false
	}

	p, ok := r.users[s.UserID]
	if !ok {
		p = &presence{identity: s.Identity, conns: make(map[string]struct{})}
		r.users[s.UserID] = p
	}
	p.conns[s.ConnectionID] = struct{}{}
	r.conns[s.ConnectionID] = binding{userID: s.UserID, conn: conn}
	return !ok
}

// Deregister removes a connection. Unknown IDs yield a zero Departure.
func (r *Registry) Deregister(connID string) Departure {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.conns[connID]
	if !ok {
		return Departure{}
	}
	delete(r.conns, connID)

	p := r.users[b.userID]
	delete(p.conns, connID)
	if len(p.conns) > 0 {
		return Departure{Identity: p.identity}
	}
	delete(r.users, b.userID)
	return Departure{Departed: true, Identity: p.identity}
}

// ConnectionsOf returns the sorted connection IDs of a user.
func (r *Registry) ConnectionsOf(userID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.users[userID]
	if !ok {
		return []string{}
	}
	ids := make([]string, 0, len(p.conns))
	for id := range p.conns {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Snapshot lists every online user once, ordered by username then ID.
func (r *Registry) Snapshot() []models.OnlineUser {
	r.mu.RLock()
	out := make([]models.OnlineUser, 0, len(r.users))
	for id, p := range r.users {
		out = append(out, models.OnlineUser{ID: id, Username: p.identity.Username, Avatar: p.identity.Avatar})
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Username != out[j].Username {
			return out[i].Username < out[j].Username
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (r *Registry) IsOnline(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.users[userID]
	return ok
}

// Count returns the number of online users and live connections.
func (r *Registry) Count() (users, connections int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users), len(r.conns)
}

// connsOf returns the connections of the given users, each at most once.
func (r *Registry) connsOf(userIDs ...string) []Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]struct{})
	var out []Conn
	for _, uid := range userIDs {
		p, ok := r.users[uid]
		if !ok {
			continue
		}
		for id := range p.conns {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, r.conns[id].conn)
		}
	}
	return out
}

// connsExcept returns every connection not owned by userID.
func (r *Registry) connsExcept(userID string) []Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Conn, 0, len(r.conns))
	for _, b := range r.conns {
		if b.userID != userID {
			out = append(out, b.conn)
		}
	}
	return out
}

func (r *Registry) all() []Conn {
	return r.connsExcept("")
}

func (r *Registry) conn(connID string) (Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.conns[connID]
	return b.conn, ok
}
