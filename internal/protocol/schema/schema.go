package schema

import (
	"fmt"
	"sort"

	"github.com/rs/zerolog/log"
)

// Message type IDs. The type doubles as bus priority: lower wins arbitration.
const (
	MsgError            uint8 = 0x02
	MsgOutputChanged    uint8 = 0x04
	MsgInputChanged     uint8 = 0x05
	MsgSetOutput        uint8 = 0x08
	MsgTriggerInput     uint8 = 0x09
	MsgCallProcedure    uint8 = 0x0A
	MsgShutterCommand   uint8 = 0x0B
	MsgRequestStatus    uint8 = 0x0D
	MsgStatusIO         uint8 = 0x0E
	MsgStatus           uint8 = 0x10
	MsgTimeAnnouncement uint8 = 0x11
	MsgInfo             uint8 = 0x12
	MsgPong             uint8 = 0x1D
	MsgPing             uint8 = 0x1E
)

// Requirement is the fixed payload contract for one message type.
type Requirement struct {
	Type   uint8
	Name   string
	Length uint8
}

type ValidationError struct {
	MessageType uint8
	Length      uint8
	Reason      string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("schema: message_type=0x%02x length=%d: %s", e.MessageType, e.Length, e.Reason)
}

const (
	ReasonUnknownType    = "unknown message_type"
	ReasonLengthMismatch = "length mismatch"
)

var requirements = map[uint8]Requirement{
	MsgError:            {MsgError, "error", 4},
	MsgOutputChanged:    {MsgOutputChanged, "output_changed", 2},
	MsgInputChanged:     {MsgInputChanged, "input_changed", 2},
	MsgSetOutput:        {MsgSetOutput, "set_output", 2},
	MsgTriggerInput:     {MsgTriggerInput, "trigger_input", 2},
	MsgCallProcedure:    {MsgCallProcedure, "call_procedure", 1},
	MsgShutterCommand:   {MsgShutterCommand, "shutter_command", 7},
	MsgRequestStatus:    {MsgRequestStatus, "request_status", 0},
	MsgStatusIO:         {MsgStatusIO, "status_io", 3},
	MsgStatus:           {MsgStatus, "status", 8},
	MsgTimeAnnouncement: {MsgTimeAnnouncement, "time_announcement", 8},
	MsgInfo:             {MsgInfo, "info", 6},
	MsgPong:             {MsgPong, "pong", 2},
	MsgPing:             {MsgPing, "ping", 2},
}

// Lookup returns the contract for messageType.
func Lookup(messageType uint8) (Requirement, bool) {
	req, ok := requirements[messageType]
	return req, ok
}

// Name returns the snake_case name of messageType, or "unknown".
func Name(messageType uint8) string {
	if req, ok := requirements[messageType]; ok {
		return req.Name
	}
	return "unknown"
}

// Types lists every known message type in priority order.
func Types() []uint8 {
	out := make([]uint8, 0, len(requirements))
	for t := range requirements {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Validate checks that messageType is known and that length matches its
// fixed payload size exactly.
func Validate(messageType uint8, length uint8) error {
	req, ok := requirements[messageType]
	if !ok {
		log.Debug().Msgf("schema.Validate unknown message_type=0x%02x", messageType)
		return ValidationError{MessageType: messageType, Length: length, Reason: ReasonUnknownType}
	}
	if length != req.Length {
		log.Debug().Msgf(
			"schema.Validate length mismatch message_type=%s got=%d want=%d",
			req.Name,
			length,
			req.Length,
		)
		return ValidationError{MessageType: messageType, Length: length, Reason: ReasonLengthMismatch}
	}
	return nil
}
