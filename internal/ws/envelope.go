package ws

import (
	"fmt"

	"github.com/GriffinCanCode/plugstore/internal/plugin"
	"github.com/GriffinCanCode/plugstore/internal/shared/utils"
	"github.com/bytedance/sonic"
)

var frames = utils.DefaultFrameValidator()

// Frame types
const (
	TypeStorage  = "storage"
	TypeAck      = "ack"
	TypeMessage  = "message"
	TypeHello    = "hello"
	TypeReply    = "reply"
	TypeUpdate   = "update"
	TypeShutdown = "shutdown"
)

// Envelope is one WebSocket frame in either direction
type Envelope struct {
	Type       string   `json:"type"`
	ID         uint64   `json:"id,omitempty"`
	Op         string   `json:"op,omitempty"`
	Name       string   `json:"name,omitempty"`
	Data       []byte   `json:"data,omitempty"`
	Status     string   `json:"status,omitempty"`
	Names      []string `json:"names,omitempty"`
	Error      string   `json:"error,omitempty"`
	Payload    string   `json:"payload,omitempty"`
	InstanceID string   `json:"instance_id,omitempty"`
	NodeID     string   `json:"node_id,omitempty"`
}

// decodeEvent turns a plugin frame into a host event
func decodeEvent(raw []byte) (plugin.Event, error) {
	if err := frames.ValidateJSON(raw); err != nil {
		return nil, fmt.Errorf("malformed frame: %w", err)
	}

	var env Envelope
	if err := sonic.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("malformed frame: %w", err)
	}

	switch env.Type {
	case TypeStorage:
		return plugin.StorageRequest{
			ID:   env.ID,
			Op:   plugin.StorageOp(env.Op),
			Name: env.Name,
			Data: env.Data,
		}, nil
	case TypeAck:
		return plugin.ShutdownAck{}, nil
	case TypeMessage:
		if err := utils.ValidateString(env.Payload, "payload", 0, utils.MaxMessageSize, false); err != nil {
			return nil, err
		}
		return plugin.SessionMessage{Payload: env.Payload}, nil
	case "":
		return nil, fmt.Errorf("frame without type")
	default:
		return plugin.Other{Kind: env.Type, Payload: raw}, nil
	}
}

// encodeCommand turns a host command into a frame
func encodeCommand(cmd plugin.Command) ([]byte, error) {
	var env Envelope
	switch c := cmd.(type) {
	case plugin.StorageReply:
		env = Envelope{
			Type:   TypeReply,
			ID:     c.ID,
			Status: string(c.Status),
			Data:   c.Data,
			Names:  c.Names,
			Error:  c.Error,
		}
	case plugin.Update:
		env = Envelope{Type: TypeUpdate, Payload: c.Payload}
	case plugin.RequestShutdown:
		env = Envelope{Type: TypeShutdown}
	default:
		return nil, fmt.Errorf("unsupported command %T", cmd)
	}
	return encodeEnvelope(env)
}

func encodeEnvelope(env Envelope) ([]byte, error) {
	return sonic.Marshal(env)
}
