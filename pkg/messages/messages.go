package messages

import "fmt"

const (
	// MessageBufferSize represents the maximum size of an encoded frame
	MessageBufferSize = 8192
	// ServerOrigin is the origin of messages sent by the server
	ServerOrigin uint32 = 0
)

// Category controls how an envelope is delivered.
type Category byte

const (
	// Unregistered messages are fire-and-forget, latest value wins.
	Unregistered Category = 'U'
	// Registered messages are retransmitted until a Receipt arrives.
	Registered Category = 'R'
	// Receipt acknowledges a Registered message by id.
	Receipt Category = 'A'
)

func (c Category) String() string {
	switch c {
	case Unregistered:
		return "unregistered"
	case Registered:
		return "registered"
	case Receipt:
		return "receipt"
	default:
		return fmt.Sprintf("category(%d)", byte(c))
	}
}

func (c Category) valid() bool {
	return c == Unregistered || c == Registered || c == Receipt
}

// Type is the closed set of gameplay and session message codes.
type Type uint8

// Message types
const (
	TypeNone Type = iota
	TypeLockSoft
	TypeLockHard
	TypeUnlock
	TypeEntityStartMotion
	TypeEntityStopMotion
	TypeEntityDig
	TypeDigResponseValid
	TypeDigResponseInvalid
	TypePing
	TypePong
	TypeSyncEnemyAI
	TypeCallScript
	TypePlayerID
	TypeScriptRequest
	TypeOK
	TypeUnauthorized
	TypeConfirmDigTileRequest
	TypeInvalidateDig
	TypeSyncOneGold
	TypeSyncAllGold
	TypeValidateBombRequest
	TypeValidateBombOK
	TypeValidateBombUnauthorized
	TypeCreateBomb
	TypeEntityDie
	TypeEntityRespawn
	TypeSyncPlayer
	TypeSyncPlayerByID
	TypeSyncAllPlayers
	TypeClientDisconnecting
	TypeServerDisconnecting
	TypeConfirmDisconnect
	TypeChat
	TypeRequestNick
	TypeBeginGame
	TypeAvatarData
	TypeVoteToSkip
	TypeTransitionToMap
	TypeLevelComplete
	TypeLevelFailed

	typeCount
)

var typeNames = [typeCount]string{
	TypeNone:                     "none",
	TypeLockSoft:                 "lock-soft",
	TypeLockHard:                 "lock-hard",
	TypeUnlock:                   "unlock",
	TypeEntityStartMotion:        "entity-start-motion",
	TypeEntityStopMotion:         "entity-stop-motion",
	TypeEntityDig:                "entity-dig",
	TypeDigResponseValid:         "dig-response-valid",
	TypeDigResponseInvalid:       "dig-response-invalid",
	TypePing:                     "ping",
	TypePong:                     "pong",
	TypeSyncEnemyAI:              "sync-enemy-ai",
	TypeCallScript:               "call-script",
	TypePlayerID:                 "player-id",
	TypeScriptRequest:            "script-request",
	TypeOK:                       "ok",
	TypeUnauthorized:             "unauthorized",
	TypeConfirmDigTileRequest:    "confirm-dig-tile-request",
	TypeInvalidateDig:            "invalidate-dig",
	TypeSyncOneGold:              "sync-one-gold",
	TypeSyncAllGold:              "sync-all-gold",
	TypeValidateBombRequest:      "validate-bomb-request",
	TypeValidateBombOK:           "validate-bomb-ok",
	TypeValidateBombUnauthorized: "validate-bomb-unauthorized",
	TypeCreateBomb:               "create-bomb",
	TypeEntityDie:                "entity-die",
	TypeEntityRespawn:            "entity-respawn",
	TypeSyncPlayer:               "sync-player",
	TypeSyncPlayerByID:           "sync-player-by-id",
	TypeSyncAllPlayers:           "sync-all-players",
	TypeClientDisconnecting:      "client-disconnecting",
	TypeServerDisconnecting:      "server-disconnecting",
	TypeConfirmDisconnect:        "confirm-disconnect",
	TypeChat:                     "chat",
	TypeRequestNick:              "request-nick",
	TypeBeginGame:                "begin-game",
	TypeAvatarData:               "avatar-data",
	TypeVoteToSkip:               "vote-to-skip",
	TypeTransitionToMap:          "transition-to-map",
	TypeLevelComplete:            "level-complete",
	TypeLevelFailed:              "level-failed",
}

var typesByName = func() map[string]Type {
	m := make(map[string]Type, typeCount)
	for t := TypeNone + 1; t < typeCount; t++ {
		m[typeNames[t]] = t
	}
	return m
}()

func (t Type) String() string {
	if t >= typeCount {
		return fmt.Sprintf("type(%d)", uint8(t))
	}
	return typeNames[t]
}

// ParseType returns the Type for a wire name.
func ParseType(name string) (Type, bool) {
	t, ok := typesByName[name]
	return t, ok
}

// Valid reports whether t is a member of the closed type set.
func (t Type) Valid() bool {
	return t > TypeNone && t < typeCount
}

// Reliable reports whether messages of this type are sent Registered.
// Position, motion and ping traffic is latest-wins and never retransmitted.
func (t Type) Reliable() bool {
	switch t {
	case TypePing, TypePong,
		TypeEntityStartMotion, TypeEntityStopMotion,
		TypeSyncPlayer, TypeSyncPlayerByID, TypeSyncEnemyAI:
		return false
	default:
		return t.Valid()
	}
}

// Types returns every valid message type in code order.
func Types() []Type {
	types := make([]Type, 0, typeCount-1)
	for t := TypeNone + 1; t < typeCount; t++ {
		types = append(types, t)
	}
	return types
}

// Envelope is a single message on the wire. It must not be modified once sent.
type Envelope struct {
	Category Category
	// ID is assigned by the sender's delivery tracker for Registered messages,
	// and references the acknowledged message for Receipts.
	ID     uint32
	Origin uint32
	Type   Type
	// Payload is nil for Receipts.
	Payload Payload
}

// NewEnvelope wraps a payload using the default category for its type.
func NewEnvelope(origin uint32, payload Payload) *Envelope {
	category := Unregistered
	if payload.Type().Reliable() {
		category = Registered
	}
	return &Envelope{
		Category: category,
		Origin:   origin,
		Type:     payload.Type(),
		Payload:  payload,
	}
}

// NewReceipt acknowledges the Registered message with the given id.
func NewReceipt(origin, id uint32) *Envelope {
	return &Envelope{
		Category: Receipt,
		ID:       id,
		Origin:   origin,
	}
}

// Clone returns a shallow copy suitable for re-addressing the same payload.
func (e *Envelope) Clone() *Envelope {
	c := *e
	return &c
}

func (e *Envelope) String() string {
	if e.Category == Receipt {
		return fmt.Sprintf("receipt#%d from %d", e.ID, e.Origin)
	}
	return fmt.Sprintf("%s %s#%d from %d", e.Category, e.Type, e.ID, e.Origin)
}
