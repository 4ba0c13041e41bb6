package protocol

import (
	"encoding/binary"

	"github.com/danmuck/iogate/internal/protocol/frame"
)

// Encode serializes m into a record addressed to addr. It is total: every
// variant has a fixed payload that fits the record. addr is masked to 6 bits.
func Encode(m Message, addr uint8) frame.Record {
	var scratch [frame.MaxPayload]byte
	payload := m.appendPayload(scratch[:0])
	rec := frame.Record{
		Addr:   addr & frame.MaxAddr,
		Type:   m.Type(),
		Length: uint8(len(payload)),
	}
	copy(rec.Data[:], payload)
	return rec
}

func (m Error) appendPayload(dst []byte) []byte {
	return binary.LittleEndian.AppendUint32(dst, m.Code)
}

func (m Info) appendPayload(dst []byte) []byte {
	dst = binary.LittleEndian.AppendUint16(dst, uint16(m.Code))
	return binary.LittleEndian.AppendUint32(dst, m.Arg)
}

func (m OutputChanged) appendPayload(dst []byte) []byte {
	return append(dst, m.Output, uint8(m.State))
}

func (m SetOutput) appendPayload(dst []byte) []byte {
	return append(dst, m.Output, uint8(m.State))
}

func (m InputChanged) appendPayload(dst []byte) []byte {
	return append(dst, m.Input, uint8(m.Trigger))
}

func (m TriggerInput) appendPayload(dst []byte) []byte {
	return append(dst, m.Input, uint8(m.Trigger))
}

func (m CallProcedure) appendPayload(dst []byte) []byte {
	return append(dst, m.ProcID)
}

func (m ShutterCommand) appendPayload(dst []byte) []byte {
	dst = append(dst, m.Shutter)
	return m.Cmd.appendRaw(dst)
}

func (RequestStatus) appendPayload(dst []byte) []byte {
	return dst
}

func (m StatusIO) appendPayload(dst []byte) []byte {
	return append(dst, m.Index, uint8(m.Kind), uint8(m.State))
}

func (m Status) appendPayload(dst []byte) []byte {
	dst = binary.LittleEndian.AppendUint32(dst, m.Uptime)
	dst = binary.LittleEndian.AppendUint16(dst, m.Errors)
	return binary.LittleEndian.AppendUint16(dst, m.Warnings)
}

func (m TimeAnnouncement) appendPayload(dst []byte) []byte {
	dst = binary.LittleEndian.AppendUint16(dst, m.Year)
	return append(dst, m.Month, m.Day, m.Hour, m.Minute, m.Second, m.DayOfWeek)
}

func (m Ping) appendPayload(dst []byte) []byte {
	return binary.LittleEndian.AppendUint16(dst, m.Body)
}

func (m Pong) appendPayload(dst []byte) []byte {
	return binary.LittleEndian.AppendUint16(dst, m.Body)
}
