package hub

import (
	"fmt"

	"github.com/glasspane/glasspane/internal/trace"
)

// CommandType enumerates the viewer control commands. The set is
// closed; Dispatch matches it exhaustively.
type CommandType string

const (
	CommandClear          CommandType = "clear"
	CommandPause          CommandType = "pause"
	CommandResume         CommandType = "resume"
	CommandSetPayloadMode CommandType = "setPayloadMode"
	CommandSetBufferSize  CommandType = "setBufferSize"
	CommandExport         CommandType = "export"
)

// Command is one control request from a viewer.
type Command struct {
	Type   CommandType `json:"type"`
	Mode   string      `json:"mode,omitempty"`   // setPayloadMode
	Size   int         `json:"size,omitempty"`   // setBufferSize
	Format string      `json:"format,omitempty"` // export
}

// CommandResult is what a viewer gets back.
type CommandResult struct {
	OK     bool   `json:"ok"`
	Status Status `json:"status"`
	Export []byte `json:"export,omitempty"`
}

// Dispatch executes one control command. Unknown or malformed commands
// return an error, never a panic.
func (h *Hub) Dispatch(cmd Command) (*CommandResult, error) {
	switch cmd.Type {
	case CommandClear:
		h.Clear()

	case CommandPause:
		h.Pause()

	case CommandResume:
		h.Resume()

	case CommandSetPayloadMode:
		mode, ok := trace.ParsePayloadMode(cmd.Mode)
		if !ok {
			return nil, fmt.Errorf("hub: unknown payload mode %q", cmd.Mode)
		}
		h.SetPayloadMode(mode)

	case CommandSetBufferSize:
		if err := h.SetBufferSize(cmd.Size); err != nil {
			return nil, err
		}

	case CommandExport:
		data, err := h.Export(cmd.Format)
		if err != nil {
			return nil, err
		}
		return &CommandResult{OK: true, Status: h.Status(), Export: data}, nil

	default:
		return nil, fmt.Errorf("hub: unknown command %q", cmd.Type)
	}

	return &CommandResult{OK: true, Status: h.Status()}, nil
}
