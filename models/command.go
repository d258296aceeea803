package models

import "time"

type CommandKind string

const (
	CommandReserveNow        CommandKind = "RESERVE_NOW"
	CommandCancelReservation CommandKind = "CANCEL_RESERVATION"
	CommandStartSession      CommandKind = "START_SESSION"
	CommandStopSession       CommandKind = "STOP_SESSION"
	CommandUnlockConnector   CommandKind = "UNLOCK_CONNECTOR"
)

type CommandState string

const (
	CommandAwaitingCallback CommandState = "AWAITING_CALLBACK"
	CommandCompleted        CommandState = "COMPLETED"
	CommandTimedOut         CommandState = "TIMED_OUT"
	CommandCancelled        CommandState = "CANCELLED"
)

// CommandResult is the asynchronous outcome delivered on the callback URL.
type CommandResult struct {
	Result  string `json:"result" bson:"result"`
	Message string `json:"message,omitempty" bson:"message,omitempty"`
}

// CommandResponse is the immediate response to a command request.
type CommandResponse struct {
	Result  string `json:"result" bson:"result"`
	Timeout int    `json:"timeout" bson:"timeout"`
}

// PendingCommand tracks one outstanding remote command until its callback
// arrives or its deadline elapses. Terminal entries are immutable.
type PendingCommand struct {
	CorrelationId string         `json:"correlation_id" bson:"correlation_id"`
	Kind          CommandKind    `json:"kind" bson:"kind"`
	Origin        PartyIdentity  `json:"origin" bson:"origin"`
	PartyId       string         `json:"party_id" bson:"party_id"`
	State         CommandState   `json:"state" bson:"state"`
	SubmittedAt   time.Time      `json:"submitted_at" bson:"submitted_at"`
	Deadline      time.Time      `json:"deadline" bson:"deadline"`
	CompletedAt   time.Time      `json:"completed_at,omitempty" bson:"completed_at,omitempty"`
	Result        *CommandResult `json:"result,omitempty" bson:"result,omitempty"`
}

func (pc *PendingCommand) DataType() string {
	return "pendingCommand"
}

func (pc *PendingCommand) Terminal() bool {
	return pc.State != CommandAwaitingCallback
}
