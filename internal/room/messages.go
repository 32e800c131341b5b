package room

import (
	"github.com/DoyleJ11/arena-backend/internal/engine"
	"github.com/DoyleJ11/arena-backend/internal/types"
	"github.com/DoyleJ11/arena-backend/internal/world"
)

type Msg interface{ isRoomMsg() }

type Join struct {
	Name   string
	Outbox chan Update // where this client wants to receive updates
	Reply  chan JoinResult
}

func (Join) isRoomMsg() {}

type JoinResult struct {
	Participant engine.ParticipantID
	Err         error
}

type Leave struct{ Participant engine.ParticipantID }

func (Leave) isRoomMsg() {}

type Input struct {
	Participant engine.ParticipantID
	Input       world.Input
}

func (Input) isRoomMsg() {}

type Shoot struct{ Participant engine.ParticipantID }

func (Shoot) isRoomMsg() {}

// Tick steps the simulation once. Only useful when the room runs without a
// ticker (Config.Manual).
type Tick struct{}

func (Tick) isRoomMsg() {}

type GetState struct {
	Reply chan View
}

func (GetState) isRoomMsg() {}

type Shutdown struct{}

func (Shutdown) isRoomMsg() {}

// Update is one item on a client's outbox: a snapshot or an event.
type Update struct {
	Snapshot *types.Snapshot
	Event    *types.Event
}

type View struct {
	Code       string
	Version    int
	Tick       int
	Phase      types.Phase
	NumClients int
	Authority  engine.ParticipantID
	Winner     engine.PlayerID
	Players    []types.PlayerSnapshot
}
