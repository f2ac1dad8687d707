// Package plugin hosts live plugin instances on top of a storage root.
//
// An Instance is the host's view of one running plugin: commands go in via
// Send, events come out of Events. The Host loop serves the instance's
// storage requests through the storage root, turns shutdown-ack and
// termination into lifecycle calls and forwards everything else untouched.
package plugin

import "github.com/GriffinCanCode/plugstore/internal/shared/types"

// StorageOp names a record operation requested by a plugin
type StorageOp string

const (
	OpPut    StorageOp = "put"
	OpGet    StorageOp = "get"
	OpDelete StorageOp = "delete"
	OpList   StorageOp = "list"
	OpClear  StorageOp = "clear"
)

// Status is the result of a storage request
type Status string

const (
	StatusOK       Status = "ok"
	StatusNotFound Status = "not_found"
	StatusInvalid  Status = "invalid"
	StatusIOError  Status = "io_error"
	StatusError    Status = "error"
	// StatusUnknown: the request timed out after it was queued and may
	// still have been applied
	StatusUnknown  Status = "unknown"
)

// Event is something a plugin instance reports to the host
type Event interface {
	isEvent()
}

// StorageRequest asks the host to run a record operation on the node
type StorageRequest struct {
	ID   uint64
	Op   StorageOp
	Name string
	Data []byte
}

// ShutdownAck acknowledges request-shutdown
type ShutdownAck struct{}

// SessionMessage is an opaque message for the embedding application
type SessionMessage struct {
	Payload string
}

// Terminated reports that the instance stopped on its own
type Terminated struct {
	Err error
}

// Other carries events the host does not interpret
type Other struct {
	Kind    string
	Payload []byte
}

func (StorageRequest) isEvent() {}
func (ShutdownAck) isEvent()    {}
func (SessionMessage) isEvent() {}
func (Terminated) isEvent()     {}
func (Other) isEvent()          {}

// Command is something the host sends to a plugin instance
type Command interface {
	isCommand()
}

// Update delivers an application message to the instance
type Update struct {
	Payload string
}

// StorageReply answers a StorageRequest with the same ID
type StorageReply struct {
	ID     uint64
	Status Status
	Data   []byte
	Names  []string
	Error  string
}

// RequestShutdown asks the instance to finish up and ack
type RequestShutdown struct{}

func (Update) isCommand()          {}
func (StorageReply) isCommand()    {}
func (RequestShutdown) isCommand() {}

// Instance is a running plugin as seen by the host
type Instance interface {
	// Send delivers a command. It must not block on the instance's own
	// progress.
	Send(cmd Command) error
	// Events is closed when the instance stops
	Events() <-chan Event
	// Close stops the instance
	Close() error
}

// StatusFor maps a storage error onto a reply status
func StatusFor(err error) Status {
	switch {
	case err == nil:
		return StatusOK
	case isNotFound(err):
		return StatusNotFound
	case types.IsClientError(err):
		return StatusInvalid
	case isIO(err):
		return StatusIOError
	case isOutcomeUnknown(err):
		return StatusUnknown
	default:
		return StatusError
	}
}
