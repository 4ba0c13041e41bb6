package protocol

import "github.com/danmuck/iogate/internal/protocol/schema"

// Message is one decoded device message. The variant set is closed: only
// types in this package implement it, and each must append its own payload.
type Message interface {
	Type() uint8
	appendPayload(dst []byte) []byte
}

// Error reports a device fault code.
type Error struct {
	Code uint32
}

// Info is a device notification such as InfoStarted.
type Info struct {
	Code InfoCode
	Arg  uint32
}

// OutputChanged reports a new output state.
type OutputChanged struct {
	Output uint8
	State  OutputRequest
}

// SetOutput requests an output state change.
type SetOutput struct {
	Output uint8
	State  OutputRequest
}

// InputChanged reports an input event.
type InputChanged struct {
	Input   uint8
	Trigger Trigger
}

// TriggerInput simulates an input event on the device.
type TriggerInput struct {
	Input   uint8
	Trigger Trigger
}

// CallProcedure runs a stored procedure on the device.
type CallProcedure struct {
	ProcID uint8
}

// ShutterCommand drives one shutter attached to the device.
type ShutterCommand struct {
	Shutter uint8
	Cmd     ShutterCmd
}

// RequestStatus asks a device for Status and StatusIO reports.
type RequestStatus struct{}

// StatusIO reports the state of one input or output.
type StatusIO struct {
	Index uint8
	Kind  IOKind
	State IOState
}

// Status is the periodic device health report.
type Status struct {
	Uptime   uint32
	Errors   uint16
	Warnings uint16
}

// TimeAnnouncement carries wall clock time. DayOfWeek is 1 for Monday
// through 7 for Sunday.
type TimeAnnouncement struct {
	Year      uint16
	Month     uint8
	Day       uint8
	Hour      uint8
	Minute    uint8
	Second    uint8
	DayOfWeek uint8
}

type Ping struct {
	Body uint16
}

type Pong struct {
	Body uint16
}

func (Error) Type() uint8            { return schema.MsgError }
func (Info) Type() uint8             { return schema.MsgInfo }
func (OutputChanged) Type() uint8    { return schema.MsgOutputChanged }
func (SetOutput) Type() uint8        { return schema.MsgSetOutput }
func (InputChanged) Type() uint8     { return schema.MsgInputChanged }
func (TriggerInput) Type() uint8     { return schema.MsgTriggerInput }
func (CallProcedure) Type() uint8    { return schema.MsgCallProcedure }
func (ShutterCommand) Type() uint8   { return schema.MsgShutterCommand }
func (RequestStatus) Type() uint8    { return schema.MsgRequestStatus }
func (StatusIO) Type() uint8         { return schema.MsgStatusIO }
func (Status) Type() uint8           { return schema.MsgStatus }
func (TimeAnnouncement) Type() uint8 { return schema.MsgTimeAnnouncement }
func (Ping) Type() uint8             { return schema.MsgPing }
func (Pong) Type() uint8             { return schema.MsgPong }

// Name returns the snake_case type name of m.
func Name(m Message) string {
	return schema.Name(m.Type())
}
