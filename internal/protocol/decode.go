package protocol

import (
	"encoding/binary"
	"errors"

	"github.com/danmuck/iogate/internal/protocol/frame"
	"github.com/danmuck/iogate/internal/protocol/schema"
)

type decodeFunc func(p []byte) (Message, error)

// decoders is keyed by every type in the schema table. Each entry may assume
// len(p) equals the schema length.
var decoders = map[uint8]decodeFunc{
	schema.MsgError: func(p []byte) (Message, error) {
		return Error{Code: binary.LittleEndian.Uint32(p)}, nil
	},
	schema.MsgInfo: func(p []byte) (Message, error) {
		return Info{
			Code: InfoCode(binary.LittleEndian.Uint16(p[0:2])),
			Arg:  binary.LittleEndian.Uint32(p[2:6]),
		}, nil
	},
	schema.MsgOutputChanged: func(p []byte) (Message, error) {
		state, err := ParseOutputRequest(p[1])
		if err != nil {
			return nil, err
		}
		return OutputChanged{Output: p[0], State: state}, nil
	},
	schema.MsgSetOutput: func(p []byte) (Message, error) {
		state, err := ParseOutputRequest(p[1])
		if err != nil {
			return nil, err
		}
		return SetOutput{Output: p[0], State: state}, nil
	},
	schema.MsgInputChanged: func(p []byte) (Message, error) {
		trigger, err := ParseTrigger(p[1])
		if err != nil {
			return nil, err
		}
		return InputChanged{Input: p[0], Trigger: trigger}, nil
	},
	schema.MsgTriggerInput: func(p []byte) (Message, error) {
		trigger, err := ParseTrigger(p[1])
		if err != nil {
			return nil, err
		}
		return TriggerInput{Input: p[0], Trigger: trigger}, nil
	},
	schema.MsgCallProcedure: func(p []byte) (Message, error) {
		return CallProcedure{ProcID: p[0]}, nil
	},
	schema.MsgShutterCommand: func(p []byte) (Message, error) {
		cmd, err := parseShutterCmd(p[1:6])
		if err != nil {
			return nil, err
		}
		return ShutterCommand{Shutter: p[0], Cmd: cmd}, nil
	},
	schema.MsgRequestStatus: func([]byte) (Message, error) {
		return RequestStatus{}, nil
	},
	schema.MsgStatusIO: func(p []byte) (Message, error) {
		kind, err := ParseIOKind(p[1])
		if err != nil {
			return nil, err
		}
		state, err := ParseIOState(p[2])
		if err != nil {
			return nil, err
		}
		return StatusIO{Index: p[0], Kind: kind, State: state}, nil
	},
	schema.MsgStatus: func(p []byte) (Message, error) {
		return Status{
			Uptime:   binary.LittleEndian.Uint32(p[0:4]),
			Errors:   binary.LittleEndian.Uint16(p[4:6]),
			Warnings: binary.LittleEndian.Uint16(p[6:8]),
		}, nil
	},
	schema.MsgTimeAnnouncement: func(p []byte) (Message, error) {
		return TimeAnnouncement{
			Year:      binary.LittleEndian.Uint16(p[0:2]),
			Month:     p[2],
			Day:       p[3],
			Hour:      p[4],
			Minute:    p[5],
			Second:    p[6],
			DayOfWeek: p[7],
		}, nil
	},
	schema.MsgPing: func(p []byte) (Message, error) {
		return Ping{Body: binary.LittleEndian.Uint16(p)}, nil
	},
	schema.MsgPong: func(p []byte) (Message, error) {
		return Pong{Body: binary.LittleEndian.Uint16(p)}, nil
	},
}

// Decode maps rec onto its typed message. Type and length are checked
// against the schema table before any payload byte is read, so corrupted
// records fail with a *DecodeError and never panic.
func Decode(rec frame.Record) (Message, error) {
	if err := schema.Validate(rec.Type, rec.Length); err != nil {
		var ve schema.ValidationError
		cause := ErrDecode
		if errors.As(err, &ve) {
			switch ve.Reason {
			case schema.ReasonUnknownType:
				cause = ErrUnknownType
			case schema.ReasonLengthMismatch:
				cause = ErrLengthMismatch
			}
		}
		return nil, &DecodeError{Type: rec.Type, Length: rec.Length, Reason: err.Error(), Err: cause}
	}
	dec, ok := decoders[rec.Type]
	if !ok {
		return nil, &DecodeError{Type: rec.Type, Length: rec.Length, Reason: "no decoder", Err: ErrUnknownType}
	}
	msg, err := dec(rec.Payload())
	if err != nil {
		return nil, &DecodeError{Type: rec.Type, Length: rec.Length, Reason: err.Error(), Err: err}
	}
	return msg, nil
}
