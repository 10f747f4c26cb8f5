package netcontrol

import (
	"sort"

	"github.com/ThaumielSparrow/LodeRunner-sub004/pkg/authority"
	"github.com/ThaumielSparrow/LodeRunner-sub004/pkg/session"
)

// Status is the peer role reported by GetStatus.
type Status int32

const (
	Offline Status = iota
	Server
	Client
)

func (s Status) String() string {
	switch s {
	case Server:
		return "server"
	case Client:
		return "client"
	default:
		return "offline"
	}
}

// Role is the role-specific half of a NetworkSession. It is one of
// OfflineRole, *ServerRole or *ClientRole.
type Role interface {
	Status() Status
}

// OfflineRole plays locally with full authority and no peers.
type OfflineRole struct{}

func (OfflineRole) Status() Status { return Offline }

// ServerRole holds one session per connected client.
type ServerRole struct {
	sessions  map[uint32]*session.Session
	validator *authority.Validator
	// closing is set once server-disconnecting has been broadcast.
	closing bool
}

func (*ServerRole) Status() Status { return Server }

// Session returns the session of a connected client.
func (r *ServerRole) Session(peerID uint32) (*session.Session, bool) {
	s, ok := r.sessions[peerID]
	return s, ok
}

// PeerIDs returns the connected clients in id order.
func (r *ServerRole) PeerIDs() []uint32 {
	ids := make([]uint32, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// ClientRole holds the session to the server.
type ClientRole struct {
	server *session.Session
	// playerID is the id assigned by the server, 0 until player-id arrives.
	playerID uint32
	token    string
	leaving  bool
}

func (*ClientRole) Status() Status { return Client }

func (r *ClientRole) PlayerID() uint32 {
	return r.playerID
}

// Token is the session token the server sent with player-id.
func (r *ClientRole) Token() string {
	return r.token
}
