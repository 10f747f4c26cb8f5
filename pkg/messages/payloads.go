package messages

// Payload is the type-specific body of an envelope. The set of
// implementations is closed: one struct per Type.
type Payload interface {
	Type() Type
	encodeFields(w *fieldWriter)
	decodeFields(r *fieldReader)
}

// PlayerState is the replicated state of one player entity.
type PlayerState struct {
	EntityID uint32
	Owner    uint32
	X        float64
	Y        float64
	Alive    bool
}

// GoldState is the replicated state of one gold piece.
type GoldState struct {
	GoldID    uint32
	TileX     int
	TileY     int
	Carrier   uint32
	Collected bool
}

type LockSoft struct{}

type LockHard struct{}

type Unlock struct{}

type EntityStartMotion struct {
	EntityID uint32
	X        float64
	Y        float64
	DirX     int
	DirY     int
}

type EntityStopMotion struct {
	EntityID uint32
	X        float64
	Y        float64
}

// EntityDig is a client's request to dig the tile at TileX, TileY.
type EntityDig struct {
	EntityID uint32
	TileX    int
	TileY    int
}

type DigResponseValid struct {
	EntityID uint32
	TileX    int
	TileY    int
}

type DigResponseInvalid struct {
	EntityID uint32
	TileX    int
	TileY    int
}

type Ping struct {
	Timestamp int64
}

type Pong struct {
	Timestamp int64
}

type SyncEnemyAI struct {
	EntityID uint32
	X        float64
	Y        float64
	Target   uint32
}

// CallScript tells clients to run a script the server already ran.
type CallScript struct {
	Name string
}

type PlayerID struct {
	PlayerID uint32
	Session  string
}

// ScriptRequest asks the server to run a script on the client's behalf.
type ScriptRequest struct {
	Name string
}

type OK struct {
	Request Type
}

type Unauthorized struct {
	Request Type
	Reason  string
}

type ConfirmDigTileRequest struct {
	TileX int
	TileY int
}

// InvalidateDig tells clients that a hole at TileX, TileY no longer exists.
type InvalidateDig struct {
	TileX int
	TileY int
}

type SyncOneGold struct {
	Gold GoldState
}

type SyncAllGold struct {
	Gold []GoldState
}

type ValidateBombRequest struct {
	EntityID uint32
	TileX    int
	TileY    int
}

type ValidateBombOK struct {
	EntityID uint32
	TileX    int
	TileY    int
	BombID   uint32
}

type ValidateBombUnauthorized struct {
	EntityID uint32
	TileX    int
	TileY    int
}

// CreateBomb replicates a bomb. Detonated announces that it went off and
// must be removed.
type CreateBomb struct {
	BombID    uint32
	Owner     uint32
	TileX     int
	TileY     int
	Detonated bool
}

type EntityDie struct {
	EntityID uint32
}

type EntityRespawn struct {
	EntityID uint32
	X        float64
	Y        float64
}

type SyncPlayer struct {
	Player PlayerState
}

type SyncPlayerByID struct {
	Player PlayerState
}

type SyncAllPlayers struct {
	Players []PlayerState
}

type ClientDisconnecting struct {
	PlayerID uint32
}

type ServerDisconnecting struct{}

type ConfirmDisconnect struct{}

type Chat struct {
	Nick string
	Text string
}

type RequestNick struct{}

type BeginGame struct {
	Map string
}

// AvatarData announces a lobby seat: join, ready toggles and departures.
type AvatarData struct {
	Seat   int
	PeerID uint32
	Nick   string
	Colors []string
	Ready  bool
	Joined bool
}

type VoteToSkip struct{}

type TransitionToMap struct {
	Map string
}

type LevelComplete struct {
	Map     string
	NextMap string
}

type LevelFailed struct {
	Map string
}

func (LockSoft) Type() Type                 { return TypeLockSoft }
func (LockHard) Type() Type                 { return TypeLockHard }
func (Unlock) Type() Type                   { return TypeUnlock }
func (EntityStartMotion) Type() Type        { return TypeEntityStartMotion }
func (EntityStopMotion) Type() Type         { return TypeEntityStopMotion }
func (EntityDig) Type() Type                { return TypeEntityDig }
func (DigResponseValid) Type() Type         { return TypeDigResponseValid }
func (DigResponseInvalid) Type() Type       { return TypeDigResponseInvalid }
func (Ping) Type() Type                     { return TypePing }
func (Pong) Type() Type                     { return TypePong }
func (SyncEnemyAI) Type() Type              { return TypeSyncEnemyAI }
func (CallScript) Type() Type               { return TypeCallScript }
func (PlayerID) Type() Type                 { return TypePlayerID }
func (ScriptRequest) Type() Type            { return TypeScriptRequest }
func (OK) Type() Type                       { return TypeOK }
func (Unauthorized) Type() Type             { return TypeUnauthorized }
func (ConfirmDigTileRequest) Type() Type    { return TypeConfirmDigTileRequest }
func (InvalidateDig) Type() Type            { return TypeInvalidateDig }
func (SyncOneGold) Type() Type              { return TypeSyncOneGold }
func (SyncAllGold) Type() Type              { return TypeSyncAllGold }
func (ValidateBombRequest) Type() Type      { return TypeValidateBombRequest }
func (ValidateBombOK) Type() Type           { return TypeValidateBombOK }
func (ValidateBombUnauthorized) Type() Type { return TypeValidateBombUnauthorized }
func (CreateBomb) Type() Type               { return TypeCreateBomb }
func (EntityDie) Type() Type                { return TypeEntityDie }
func (EntityRespawn) Type() Type            { return TypeEntityRespawn }
func (SyncPlayer) Type() Type               { return TypeSyncPlayer }
func (SyncPlayerByID) Type() Type           { return TypeSyncPlayerByID }
func (SyncAllPlayers) Type() Type           { return TypeSyncAllPlayers }
func (ClientDisconnecting) Type() Type      { return TypeClientDisconnecting }
func (ServerDisconnecting) Type() Type      { return TypeServerDisconnecting }
func (ConfirmDisconnect) Type() Type        { return TypeConfirmDisconnect }
func (Chat) Type() Type                     { return TypeChat }
func (RequestNick) Type() Type              { return TypeRequestNick }
func (BeginGame) Type() Type                { return TypeBeginGame }
func (AvatarData) Type() Type               { return TypeAvatarData }
func (VoteToSkip) Type() Type               { return TypeVoteToSkip }
func (TransitionToMap) Type() Type          { return TypeTransitionToMap }
func (LevelComplete) Type() Type            { return TypeLevelComplete }
func (LevelFailed) Type() Type              { return TypeLevelFailed }

func (*LockSoft) encodeFields(*fieldWriter) {}
func (*LockSoft) decodeFields(*fieldReader) {}
func (*LockHard) encodeFields(*fieldWriter) {}
func (*LockHard) decodeFields(*fieldReader) {}
func (*Unlock) encodeFields(*fieldWriter)   {}
func (*Unlock) decodeFields(*fieldReader)   {}

func (p *EntityStartMotion) encodeFields(w *fieldWriter) {
	w.uint32(p.EntityID)
	w.float(p.X)
	w.float(p.Y)
	w.int(p.DirX)
	w.int(p.DirY)
}

func (p *EntityStartMotion) decodeFields(r *fieldReader) {
	p.EntityID = r.uint32()
	p.X = r.float()
	p.Y = r.float()
	p.DirX = r.int()
	p.DirY = r.int()
}

func (p *EntityStopMotion) encodeFields(w *fieldWriter) {
	w.uint32(p.EntityID)
	w.float(p.X)
	w.float(p.Y)
}

func (p *EntityStopMotion) decodeFields(r *fieldReader) {
	p.EntityID = r.uint32()
	p.X = r.float()
	p.Y = r.float()
}

func encodeTileAction(w *fieldWriter, entityID uint32, x, y int) {
	w.uint32(entityID)
	w.int(x)
	w.int(y)
}

func decodeTileAction(r *fieldReader) (uint32, int, int) {
	return r.uint32(), r.int(), r.int()
}

func (p *EntityDig) encodeFields(w *fieldWriter) { encodeTileAction(w, p.EntityID, p.TileX, p.TileY) }
func (p *EntityDig) decodeFields(r *fieldReader) { p.EntityID, p.TileX, p.TileY = decodeTileAction(r) }

func (p *DigResponseValid) encodeFields(w *fieldWriter) {
	encodeTileAction(w, p.EntityID, p.TileX, p.TileY)
}

func (p *DigResponseValid) decodeFields(r *fieldReader) {
	p.EntityID, p.TileX, p.TileY = decodeTileAction(r)
}

func (p *DigResponseInvalid) encodeFields(w *fieldWriter) {
	encodeTileAction(w, p.EntityID, p.TileX, p.TileY)
}

func (p *DigResponseInvalid) decodeFields(r *fieldReader) {
	p.EntityID, p.TileX, p.TileY = decodeTileAction(r)
}

func (p *Ping) encodeFields(w *fieldWriter) { w.int64(p.Timestamp) }
func (p *Ping) decodeFields(r *fieldReader) { p.Timestamp = r.int64() }
func (p *Pong) encodeFields(w *fieldWriter) { w.int64(p.Timestamp) }
func (p *Pong) decodeFields(r *fieldReader) { p.Timestamp = r.int64() }

func (p *SyncEnemyAI) encodeFields(w *fieldWriter) {
	w.uint32(p.EntityID)
	w.float(p.X)
	w.float(p.Y)
	w.uint32(p.Target)
}

func (p *SyncEnemyAI) decodeFields(r *fieldReader) {
	p.EntityID = r.uint32()
	p.X = r.float()
	p.Y = r.float()
	p.Target = r.uint32()
}

func (p *CallScript) encodeFields(w *fieldWriter)    { w.str(p.Name) }
func (p *CallScript) decodeFields(r *fieldReader)    { p.Name = r.str() }
func (p *ScriptRequest) encodeFields(w *fieldWriter) { w.str(p.Name) }
func (p *ScriptRequest) decodeFields(r *fieldReader) { p.Name = r.str() }

func (p *PlayerID) encodeFields(w *fieldWriter) {
	w.uint32(p.PlayerID)
	w.str(p.Session)
}

func (p *PlayerID) decodeFields(r *fieldReader) {
	p.PlayerID = r.uint32()
	p.Session = r.str()
}

func (p *OK) encodeFields(w *fieldWriter) { w.msgType(p.Request) }
func (p *OK) decodeFields(r *fieldReader) { p.Request = r.msgType() }

func (p *Unauthorized) encodeFields(w *fieldWriter) {
	w.msgType(p.Request)
	w.str(p.Reason)
}

func (p *Unauthorized) decodeFields(r *fieldReader) {
	p.Request = r.msgType()
	p.Reason = r.str()
}

func (p *ConfirmDigTileRequest) encodeFields(w *fieldWriter) {
	w.int(p.TileX)
	w.int(p.TileY)
}

func (p *ConfirmDigTileRequest) decodeFields(r *fieldReader) {
	p.TileX = r.int()
	p.TileY = r.int()
}

func (p *InvalidateDig) encodeFields(w *fieldWriter) {
	w.int(p.TileX)
	w.int(p.TileY)
}

func (p *InvalidateDig) decodeFields(r *fieldReader) {
	p.TileX = r.int()
	p.TileY = r.int()
}

func (g GoldState) encodeItem(w *itemWriter) {
	w.uint32(g.GoldID)
	w.int(g.TileX)
	w.int(g.TileY)
	w.uint32(g.Carrier)
	w.bool(g.Collected)
}

func (g *GoldState) decodeItem(r *fieldReader) {
	g.GoldID = r.uint32()
	g.TileX = r.int()
	g.TileY = r.int()
	g.Carrier = r.uint32()
	g.Collected = r.bool()
}

func (p *SyncOneGold) encodeFields(w *fieldWriter) { w.record(p.Gold.encodeItem) }
func (p *SyncOneGold) decodeFields(r *fieldReader) { p.Gold.decodeItem(r) }

func (p *SyncAllGold) encodeFields(w *fieldWriter) {
	items := make([]func(*itemWriter), len(p.Gold))
	for i := range p.Gold {
		items[i] = p.Gold[i].encodeItem
	}
	w.list(items)
}

func (p *SyncAllGold) decodeFields(r *fieldReader) {
	items := r.list(5)
	p.Gold = make([]GoldState, len(items))
	for i, item := range items {
		p.Gold[i].decodeItem(item)
		r.absorb(item)
	}
}

func (p *ValidateBombRequest) encodeFields(w *fieldWriter) {
	encodeTileAction(w, p.EntityID, p.TileX, p.TileY)
}

func (p *ValidateBombRequest) decodeFields(r *fieldReader) {
	p.EntityID, p.TileX, p.TileY = decodeTileAction(r)
}

func (p *ValidateBombOK) encodeFields(w *fieldWriter) {
	encodeTileAction(w, p.EntityID, p.TileX, p.TileY)
	w.uint32(p.BombID)
}

func (p *ValidateBombOK) decodeFields(r *fieldReader) {
	p.EntityID, p.TileX, p.TileY = decodeTileAction(r)
	p.BombID = r.uint32()
}

func (p *ValidateBombUnauthorized) encodeFields(w *fieldWriter) {
	encodeTileAction(w, p.EntityID, p.TileX, p.TileY)
}

func (p *ValidateBombUnauthorized) decodeFields(r *fieldReader) {
	p.EntityID, p.TileX, p.TileY = decodeTileAction(r)
}

func (p *CreateBomb) encodeFields(w *fieldWriter) {
	w.uint32(p.BombID)
	w.uint32(p.Owner)
	w.int(p.TileX)
	w.int(p.TileY)
	w.bool(p.Detonated)
}

func (p *CreateBomb) decodeFields(r *fieldReader) {
	p.BombID = r.uint32()
	p.Owner = r.uint32()
	p.TileX = r.int()
	p.TileY = r.int()
	p.Detonated = r.bool()
}

func (p *EntityDie) encodeFields(w *fieldWriter) { w.uint32(p.EntityID) }
func (p *EntityDie) decodeFields(r *fieldReader) { p.EntityID = r.uint32() }

func (p *EntityRespawn) encodeFields(w *fieldWriter) {
	w.uint32(p.EntityID)
	w.float(p.X)
	w.float(p.Y)
}

func (p *EntityRespawn) decodeFields(r *fieldReader) {
	p.EntityID = r.uint32()
	p.X = r.float()
	p.Y = r.float()
}

func (s PlayerState) encodeItem(w *itemWriter) {
	w.uint32(s.EntityID)
	w.uint32(s.Owner)
	w.float(s.X)
	w.float(s.Y)
	w.bool(s.Alive)
}

func (s *PlayerState) decodeItem(r *fieldReader) {
	s.EntityID = r.uint32()
	s.Owner = r.uint32()
	s.X = r.float()
	s.Y = r.float()
	s.Alive = r.bool()
}

func (p *SyncPlayer) encodeFields(w *fieldWriter)     { w.record(p.Player.encodeItem) }
func (p *SyncPlayer) decodeFields(r *fieldReader)     { p.Player.decodeItem(r) }
func (p *SyncPlayerByID) encodeFields(w *fieldWriter) { w.record(p.Player.encodeItem) }
func (p *SyncPlayerByID) decodeFields(r *fieldReader) { p.Player.decodeItem(r) }

func (p *SyncAllPlayers) encodeFields(w *fieldWriter) {
	items := make([]func(*itemWriter), len(p.Players))
	for i := range p.Players {
		items[i] = p.Players[i].encodeItem
	}
	w.list(items)
}

func (p *SyncAllPlayers) decodeFields(r *fieldReader) {
	items := r.list(5)
	p.Players = make([]PlayerState, len(items))
	for i, item := range items {
		p.Players[i].decodeItem(item)
		r.absorb(item)
	}
}

func (p *ClientDisconnecting) encodeFields(w *fieldWriter) { w.uint32(p.PlayerID) }
func (p *ClientDisconnecting) decodeFields(r *fieldReader) { p.PlayerID = r.uint32() }

func (*ServerDisconnecting) encodeFields(*fieldWriter) {}
func (*ServerDisconnecting) decodeFields(*fieldReader) {}
func (*ConfirmDisconnect) encodeFields(*fieldWriter)   {}
func (*ConfirmDisconnect) decodeFields(*fieldReader)   {}

func (p *Chat) encodeFields(w *fieldWriter) {
	w.str(p.Nick)
	w.str(p.Text)
}

func (p *Chat) decodeFields(r *fieldReader) {
	p.Nick = r.str()
	p.Text = r.str()
}

func (*RequestNick) encodeFields(*fieldWriter) {}
func (*RequestNick) decodeFields(*fieldReader) {}

func (p *BeginGame) encodeFields(w *fieldWriter) { w.str(p.Map) }
func (p *BeginGame) decodeFields(r *fieldReader) { p.Map = r.str() }

func (p *AvatarData) encodeFields(w *fieldWriter) {
	w.int(p.Seat)
	w.uint32(p.PeerID)
	w.str(p.Nick)
	w.strs(p.Colors)
	w.bool(p.Ready)
	w.bool(p.Joined)
}

func (p *AvatarData) decodeFields(r *fieldReader) {
	p.Seat = r.int()
	p.PeerID = r.uint32()
	p.Nick = r.str()
	p.Colors = r.strs()
	p.Ready = r.bool()
	p.Joined = r.bool()
}

func (*VoteToSkip) encodeFields(*fieldWriter) {}
func (*VoteToSkip) decodeFields(*fieldReader) {}

func (p *TransitionToMap) encodeFields(w *fieldWriter) { w.str(p.Map) }
func (p *TransitionToMap) decodeFields(r *fieldReader) { p.Map = r.str() }

func (p *LevelComplete) encodeFields(w *fieldWriter) {
	w.str(p.Map)
	w.str(p.NextMap)
}

func (p *LevelComplete) decodeFields(r *fieldReader) {
	p.Map = r.str()
	p.NextMap = r.str()
}

func (p *LevelFailed) encodeFields(w *fieldWriter) { w.str(p.Map) }
func (p *LevelFailed) decodeFields(r *fieldReader) { p.Map = r.str() }

// newPayload returns an empty payload for t. Every valid type must be listed.
func newPayload(t Type) (Payload, bool) {
	switch t {
	case TypeLockSoft:
		return &LockSoft{}, true
	case TypeLockHard:
		return &LockHard{}, true
	case TypeUnlock:
		return &Unlock{}, true
	case TypeEntityStartMotion:
		return &EntityStartMotion{}, true
	case TypeEntityStopMotion:
		return &EntityStopMotion{}, true
	case TypeEntityDig:
		return &EntityDig{}, true
	case TypeDigResponseValid:
		return &DigResponseValid{}, true
	case TypeDigResponseInvalid:
		return &DigResponseInvalid{}, true
	case TypePing:
		return &Ping{}, true
	case TypePong:
		return &Pong{}, true
	case TypeSyncEnemyAI:
		return &SyncEnemyAI{}, true
	case TypeCallScript:
		return &CallScript{}, true
	case TypePlayerID:
		return &PlayerID{}, true
	case TypeScriptRequest:
		return &ScriptRequest{}, true
	case TypeOK:
		return &OK{}, true
	case TypeUnauthorized:
		return &Unauthorized{}, true
	case TypeConfirmDigTileRequest:
		return &ConfirmDigTileRequest{}, true
	case TypeInvalidateDig:
		return &InvalidateDig{}, true
	case TypeSyncOneGold:
		return &SyncOneGold{}, true
	case TypeSyncAllGold:
		return &SyncAllGold{}, true
	case TypeValidateBombRequest:
		return &ValidateBombRequest{}, true
	case TypeValidateBombOK:
		return &ValidateBombOK{}, true
	case TypeValidateBombUnauthorized:
		return &ValidateBombUnauthorized{}, true
	case TypeCreateBomb:
		return &CreateBomb{}, true
	case TypeEntityDie:
		return &EntityDie{}, true
	case TypeEntityRespawn:
		return &EntityRespawn{}, true
	case TypeSyncPlayer:
		return &SyncPlayer{}, true
	case TypeSyncPlayerByID:
		return &SyncPlayerByID{}, true
	case TypeSyncAllPlayers:
		return &SyncAllPlayers{}, true
	case TypeClientDisconnecting:
		return &ClientDisconnecting{}, true
	case TypeServerDisconnecting:
		return &ServerDisconnecting{}, true
	case TypeConfirmDisconnect:
		return &ConfirmDisconnect{}, true
	case TypeChat:
		return &Chat{}, true
	case TypeRequestNick:
		return &RequestNick{}, true
	case TypeBeginGame:
		return &BeginGame{}, true
	case TypeAvatarData:
		return &AvatarData{}, true
	case TypeVoteToSkip:
		return &VoteToSkip{}, true
	case TypeTransitionToMap:
		return &TransitionToMap{}, true
	case TypeLevelComplete:
		return &LevelComplete{}, true
	case TypeLevelFailed:
		return &LevelFailed{}, true
	default:
		return nil, false
	}
}
