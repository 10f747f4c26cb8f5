package authority

import (
	"errors"
	"fmt"

	"github.com/ThaumielSparrow/LodeRunner-sub004/pkg/log"
	"github.com/ThaumielSparrow/LodeRunner-sub004/pkg/messages"
	"github.com/ThaumielSparrow/LodeRunner-sub004/pkg/telemetry"
	"github.com/ThaumielSparrow/LodeRunner-sub004/pkg/world"
)

// ErrUnauthorized is wrapped by the error of a rejected verdict.
var ErrUnauthorized = errors.New("unauthorized")

// Rejection reasons
const (
	ReasonUnknownEntity = "unknown entity"
	ReasonNotOwner      = "entity not owned by requester"
	ReasonDead          = "entity is dead"
	ReasonNotDiggable   = "target is not a brick"
	ReasonNotAdjacent   = "target is not next to the entity"
	ReasonBlocked       = "tile above target is solid"
	ReasonOccupied      = "target is not empty"
	ReasonBombPresent   = "a bomb is already there"
	ReasonBombCapacity  = "bomb capacity reached"
	ReasonUnknownScript = "unknown script"
	ReasonScriptFailed  = "script failed"
	ReasonNotAHole      = "tile is not a hole"
	ReasonUnknownGold   = "unknown gold"
	ReasonNotAPickup    = "only pickups may be requested"
	ReasonGoldTaken     = "gold already taken"
	ReasonNoPlayer      = "requester has no live player"
	ReasonNotOnGold     = "player is not on the gold"
	ReasonLocked        = "server is locked"
)

type Outcome int

const (
	Accepted Outcome = iota
	Rejected
	// Dropped requests get no reply at all.
	Dropped
)

func (o Outcome) String() string {
	switch o {
	case Accepted:
		return "accepted"
	case Rejected:
		return "rejected"
	default:
		return "dropped"
	}
}

// Action is a world mutation a client may request but not perform.
type Action int

const (
	ActionDig Action = iota
	ActionBomb
	ActionScript
	ActionConfirmDigTile
	ActionCollectGold
)

// Request is a pending action from a client. It is evaluated immediately and
// never stored.
type Request struct {
	Requester uint32
	Action    Action
	Payload   messages.Payload
}

// RequestFrom maps an inbound envelope to a request. ok is false for
// envelope types that are not authority requests.
func RequestFrom(env *messages.Envelope) (Request, bool) {
	req := Request{Requester: env.Origin, Payload: env.Payload}
	switch env.Payload.(type) {
	case *messages.EntityDig:
		req.Action = ActionDig
	case *messages.ValidateBombRequest:
		req.Action = ActionBomb
	case *messages.ScriptRequest:
		req.Action = ActionScript
	case *messages.ConfirmDigTileRequest:
		req.Action = ActionConfirmDigTile
	case *messages.SyncOneGold:
		req.Action = ActionCollectGold
	default:
		return Request{}, false
	}
	return req, true
}

// Outbound is a message the caller must send as a result of a verdict,
// either to the requester alone or to every client.
type Outbound struct {
	Broadcast bool
	To        uint32
	Payload   messages.Payload
}

type Verdict struct {
	Outcome Outcome
	Reason  string
	Replies []Outbound
}

// Err returns an ErrUnauthorized wrapping error for rejected verdicts.
func (v Verdict) Err() error {
	if v.Outcome != Rejected {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrUnauthorized, v.Reason)
}

// ScriptRunner executes level scripts on the server.
type ScriptRunner interface {
	Has(name string) bool
	Run(name string) error
}

// LockState is the part of the lock coordinator the validator consults.
type LockState interface {
	IsLocked() bool
}

// Validator is the server's trust boundary. Accepted requests mutate the
// authoritative world exactly once.
type Validator struct {
	world   *world.World
	scripts ScriptRunner
	locks   LockState
	logger  *log.Logger
}

func NewValidator(w *world.World, scripts ScriptRunner, locks LockState) *Validator {
	return &Validator{
		world:   w,
		scripts: scripts,
		locks:   locks,
		logger:  log.Named("authority"),
	}
}

// SetWorld swaps the authoritative world after a level transition.
func (v *Validator) SetWorld(w *world.World, scripts ScriptRunner) {
	v.world = w
	v.scripts = scripts
}

// Handle validates an inbound envelope. ok is false when the envelope is not
// an authority request.
func (v *Validator) Handle(env *messages.Envelope) (Verdict, bool) {
	req, ok := RequestFrom(env)
	if !ok {
		return Verdict{}, false
	}
	return v.Validate(req), true
}

// Validate evaluates a request, applies it when accepted and returns the
// messages to send.
func (v *Validator) Validate(req Request) Verdict {
	var verdict Verdict
	if v.locks.IsLocked() {
		verdict = Verdict{Outcome: Dropped, Reason: ReasonLocked}
	} else {
		switch payload := req.Payload.(type) {
		case *messages.EntityDig:
			verdict = v.validateDig(req.Requester, payload)
		case *messages.ValidateBombRequest:
			verdict = v.validateBomb(req.Requester, payload)
		case *messages.ScriptRequest:
			verdict = v.validateScript(req.Requester, payload)
		case *messages.ConfirmDigTileRequest:
			verdict = v.confirmDigTile(req.Requester, payload)
		case *messages.SyncOneGold:
			verdict = v.collectGold(req.Requester, payload)
		default:
			verdict = Verdict{Outcome: Dropped, Reason: fmt.Sprintf("unexpected payload %T", req.Payload)}
		}
	}

	if req.Payload != nil {
		telemetry.Verdicts.WithLabelValues(req.Payload.Type().String(), verdict.Outcome.String()).Inc()
	}
	if verdict.Outcome != Accepted {
		v.logger.Debug("Request from %d %s: %s", req.Requester, verdict.Outcome, verdict.Reason)
	}
	return verdict
}

func (v *Validator) owned(requester, entityID uint32) (*world.Entity, string) {
	e, ok := v.world.Entity(entityID)
	if !ok {
		return nil, ReasonUnknownEntity
	}
	if e.Owner != requester {
		return nil, ReasonNotOwner
	}
	if !e.Alive {
		return nil, ReasonDead
	}
	return e, ""
}

func (v *Validator) validateDig(requester uint32, dig *messages.EntityDig) Verdict {
	reject := func(reason string) Verdict {
		return Verdict{
			Outcome: Rejected,
			Reason:  reason,
			Replies: []Outbound{{To: requester, Payload: &messages.DigResponseInvalid{
				EntityID: dig.EntityID,
				TileX:    dig.TileX,
				TileY:    dig.TileY,
			}}},
		}
	}

	e, reason := v.owned(requester, dig.EntityID)
	if e == nil {
		return reject(reason)
	}
	if v.world.Tile(dig.TileX, dig.TileY) != world.Brick {
		return reject(ReasonNotDiggable)
	}
	at := v.world.TileOf(e)
	if at.Y != dig.TileY-1 || abs(at.X-dig.TileX) != 1 {
		return reject(ReasonNotAdjacent)
	}
	if v.world.Tile(dig.TileX, dig.TileY-1).Solid() {
		return reject(ReasonBlocked)
	}

	if err := v.world.Dig(dig.TileX, dig.TileY); err != nil {
		return reject(err.Error())
	}
	return Verdict{
		Outcome: Accepted,
		Replies: []Outbound{{Broadcast: true, Payload: &messages.DigResponseValid{
			EntityID: dig.EntityID,
			TileX:    dig.TileX,
			TileY:    dig.TileY,
		}}},
	}
}

func (v *Validator) validateBomb(requester uint32, bomb *messages.ValidateBombRequest) Verdict {
	reject := func(reason string) Verdict {
		return Verdict{
			Outcome: Rejected,
			Reason:  reason,
			Replies: []Outbound{{To: requester, Payload: &messages.ValidateBombUnauthorized{
				EntityID: bomb.EntityID,
				TileX:    bomb.TileX,
				TileY:    bomb.TileY,
			}}},
		}
	}

	e, reason := v.owned(requester, bomb.EntityID)
	if e == nil {
		return reject(reason)
	}
	if v.world.Tile(bomb.TileX, bomb.TileY) != world.Empty {
		return reject(ReasonOccupied)
	}
	at := v.world.TileOf(e)
	if at.Y != bomb.TileY || abs(at.X-bomb.TileX) > 1 {
		return reject(ReasonNotAdjacent)
	}
	if v.world.BombAt(bomb.TileX, bomb.TileY) {
		return reject(ReasonBombPresent)
	}
	if v.world.BombsOwnedBy(requester) >= v.world.BombCapacity() {
		return reject(ReasonBombCapacity)
	}

	placed, err := v.world.PlaceBomb(0, requester, bomb.TileX, bomb.TileY)
	if err != nil {
		return reject(err.Error())
	}
	return Verdict{
		Outcome: Accepted,
		Replies: []Outbound{
			{To: requester, Payload: &messages.ValidateBombOK{
				EntityID: bomb.EntityID,
				TileX:    bomb.TileX,
				TileY:    bomb.TileY,
				BombID:   placed.ID,
			}},
			{Broadcast: true, Payload: &messages.CreateBomb{
				BombID: placed.ID,
				Owner:  requester,
				TileX:  bomb.TileX,
				TileY:  bomb.TileY,
			}},
		},
	}
}

func (v *Validator) validateScript(requester uint32, script *messages.ScriptRequest) Verdict {
	reject := func(reason string) Verdict {
		return Verdict{
			Outcome: Rejected,
			Reason:  reason,
			Replies: []Outbound{{To: requester, Payload: &messages.Unauthorized{
				Request: messages.TypeScriptRequest,
				Reason:  reason,
			}}},
		}
	}

	if !v.scripts.Has(script.Name) {
		return reject(ReasonUnknownScript)
	}
	if err := v.scripts.Run(script.Name); err != nil {
		v.logger.Error("Failed to run script %q for %d: %v", script.Name, requester, err)
		return reject(ReasonScriptFailed)
	}
	return Verdict{
		Outcome: Accepted,
		Replies: []Outbound{{Broadcast: true, Payload: &messages.CallScript{Name: script.Name}}},
	}
}

func (v *Validator) confirmDigTile(requester uint32, confirm *messages.ConfirmDigTileRequest) Verdict {
	if v.world.Tile(confirm.TileX, confirm.TileY) == world.Hole {
		return Verdict{
			Outcome: Accepted,
			Replies: []Outbound{{To: requester, Payload: &messages.DigResponseValid{
				TileX: confirm.TileX,
				TileY: confirm.TileY,
			}}},
		}
	}
	return Verdict{
		Outcome: Rejected,
		Reason:  ReasonNotAHole,
		Replies: []Outbound{{To: requester, Payload: &messages.InvalidateDig{
			TileX: confirm.TileX,
			TileY: confirm.TileY,
		}}},
	}
}

// collectGold accepts a pickup when the requester's live player stands on a
// piece nobody holds. A rejection also resends the piece's real state so the
// requester can correct its mirror.
func (v *Validator) collectGold(requester uint32, sync *messages.SyncOneGold) Verdict {
	g, known := v.world.Gold(sync.Gold.GoldID)
	reject := func(reason string) Verdict {
		replies := []Outbound{{To: requester, Payload: &messages.Unauthorized{
			Request: messages.TypeSyncOneGold,
			Reason:  reason,
		}}}
		if known {
			replies = append(replies, Outbound{To: requester, Payload: &messages.SyncOneGold{Gold: g.State()}})
		}
		return Verdict{Outcome: Rejected, Reason: reason, Replies: replies}
	}

	if !known {
		return reject(ReasonUnknownGold)
	}
	if !sync.Gold.Collected {
		return reject(ReasonNotAPickup)
	}
	if g.Collected || g.Carrier != 0 {
		return reject(ReasonGoldTaken)
	}
	e, ok := v.world.PlayerOf(requester)
	if !ok || !e.Alive {
		return reject(ReasonNoPlayer)
	}
	if v.world.TileOf(e) != g.Tile {
		return reject(ReasonNotOnGold)
	}

	if err := v.world.CollectGold(g.ID); err != nil {
		return reject(err.Error())
	}
	return Verdict{
		Outcome: Accepted,
		Replies: []Outbound{{Broadcast: true, Payload: &messages.SyncOneGold{Gold: g.State()}}},
	}
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
