package protocol

import (
	"errors"
	"testing"
	"time"

	"github.com/danmuck/iogate/internal/protocol/frame"
	"github.com/danmuck/iogate/internal/protocol/schema"
	"github.com/danmuck/iogate/internal/testutil/testlog"
)

func sampleMessages() []Message {
	return []Message{
		Error{Code: 0xDEADBEEF},
		Info{Code: InfoStarted, Arg: 0x01020304},
		OutputChanged{Output: 3, State: OutputOn},
		OutputChanged{Output: 4, State: OutputToggle},
		SetOutput{Output: 5, State: OutputOff},
		InputChanged{Input: 1, Trigger: TriggerLongDeactivated},
		TriggerInput{Input: 2, Trigger: TriggerShortClick},
		CallProcedure{ProcID: 17},
		ShutterCommand{Shutter: 1, Cmd: ShutterGoTo(40, 100)},
		ShutterCommand{Shutter: 2, Cmd: ShutterTiltTo(45)},
		ShutterCommand{Shutter: 3, Cmd: ShutterBindIO(6, 7)},
		ShutterCommand{Shutter: 0, Cmd: ShutterCmd{Op: ShutterTiltClose}},
		ShutterCommand{Shutter: 0, Cmd: ShutterCmd{Op: ShutterTiltReverse}},
		RequestStatus{},
		StatusIO{Index: 9, Kind: IOKindOutput, State: IOUnknown},
		Status{Uptime: 123456, Errors: 2, Warnings: 65535},
		TimeAnnouncement{Year: 2024, Month: 3, Day: 1, Hour: 10, Minute: 15, Second: 30, DayOfWeek: 5},
		Ping{Body: 0xBEEF},
		Pong{Body: 0x0102},
	}
}

func TestRoundTripEncodeDecode(t *testing.T) {
	testlog.Start(t)
	for _, in := range sampleMessages() {
		rec := Encode(in, 12)
		req, ok := schema.Lookup(in.Type())
		if !ok {
			t.Fatalf("%T: type 0x%02x missing from schema", in, in.Type())
		}
		if rec.Length != req.Length {
			t.Fatalf("%T: length=%d want=%d", in, rec.Length, req.Length)
		}
		if rec.Addr != 12 || rec.Type != in.Type() {
			t.Fatalf("%T: unexpected record header: %s", in, rec)
		}
		out, err := Decode(rec)
		if err != nil {
			t.Fatalf("%T: decode: %v", in, err)
		}
		if out != in {
			t.Fatalf("round trip mismatch: got=%#v want=%#v", out, in)
		}
	}
}

func TestEncodeCoversEveryKnownType(t *testing.T) {
	testlog.Start(t)
	seen := map[uint8]bool{}
	for _, m := range sampleMessages() {
		seen[m.Type()] = true
	}
	for _, typ := range schema.Types() {
		if !seen[typ] {
			t.Fatalf("no sample for type 0x%02x (%s)", typ, schema.Name(typ))
		}
	}
}

func TestEncodeLittleEndianLayouts(t *testing.T) {
	testlog.Start(t)
	rec := Encode(Status{Uptime: 0x04030201, Errors: 0x0605, Warnings: 0x0807}, 1)
	want := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	if string(rec.Payload()) != string(want) {
		t.Fatalf("status payload: % x", rec.Payload())
	}
	rec = Encode(Info{Code: InfoStarted, Arg: 0xAABBCCDD}, 1)
	want = []byte{10, 0, 0xDD, 0xCC, 0xBB, 0xAA}
	if string(rec.Payload()) != string(want) {
		t.Fatalf("info payload: % x", rec.Payload())
	}
	rec = Encode(ShutterCommand{Shutter: 4, Cmd: ShutterGoTo(20, 80)}, 1)
	want = []byte{4, 0x01, 20, 80, 0, 0, 0}
	if string(rec.Payload()) != string(want) {
		t.Fatalf("shutter payload: % x", rec.Payload())
	}
}

func TestSetOutputScenarioRecord(t *testing.T) {
	testlog.Start(t)
	rec := Encode(SetOutput{Output: 5, State: OutputRequestFromBool(true)}, 2)
	if rec.Addr != 2 || rec.Type != 0x08 || rec.Length != 2 {
		t.Fatalf("unexpected record: %s", rec)
	}
	if rec.Data != [8]byte{5, 1} {
		t.Fatalf("unexpected data: % x", rec.Data)
	}
}

func TestDecodeLengthMismatchForEveryType(t *testing.T) {
	testlog.Start(t)
	for _, typ := range schema.Types() {
		req, _ := schema.Lookup(typ)
		for length := uint8(0); length <= frame.MaxPayload; length++ {
			if length == req.Length {
				continue
			}
			rec := frame.Record{Addr: 1, Type: typ, Length: length, Data: [8]byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}}
			_, err := Decode(rec)
			if !errors.Is(err, ErrLengthMismatch) {
				t.Fatalf("type 0x%02x length %d: expected ErrLengthMismatch, got %v", typ, length, err)
			}
		}
	}
}

func TestDecodeUnknownTypes(t *testing.T) {
	testlog.Start(t)
	for typ := uint8(0); typ <= frame.MaxType; typ++ {
		if _, ok := schema.Lookup(typ); ok {
			continue
		}
		_, err := Decode(frame.Record{Addr: 1, Type: typ})
		if !errors.Is(err, ErrUnknownType) {
			t.Fatalf("type 0x%02x: expected ErrUnknownType, got %v", typ, err)
		}
		var de *DecodeError
		if !errors.As(err, &de) || de.Type != typ || de.Kind() != "unknown_type" {
			t.Fatalf("type 0x%02x: unexpected decode error %#v", typ, err)
		}
	}
}

func TestDecodeRejectsOutOfRangeEnums(t *testing.T) {
	testlog.Start(t)
	cases := []frame.Record{
		{Type: schema.MsgOutputChanged, Length: 2, Data: [8]byte{1, 3}},
		{Type: schema.MsgSetOutput, Length: 2, Data: [8]byte{1, 0xFF}},
		{Type: schema.MsgInputChanged, Length: 2, Data: [8]byte{1, 6}},
		{Type: schema.MsgTriggerInput, Length: 2, Data: [8]byte{1, 200}},
		{Type: schema.MsgStatusIO, Length: 3, Data: [8]byte{1, 2, 0}},
		{Type: schema.MsgStatusIO, Length: 3, Data: [8]byte{1, 0, 4}},
		{Type: schema.MsgShutterCommand, Length: 7, Data: [8]byte{1, 0x09}},
	}
	for _, rec := range cases {
		_, err := Decode(rec)
		if !errors.Is(err, ErrInvalidEnum) {
			t.Fatalf("%s: expected ErrInvalidEnum, got %v", rec, err)
		}
		if !errors.Is(err, ErrDecode) {
			t.Fatalf("%s: expected ErrDecode root, got %v", rec, err)
		}
	}
}

func TestDecodeShutterPositionRange(t *testing.T) {
	testlog.Start(t)
	rejected := [][8]byte{
		{0, byte(ShutterGo), 101, 0},
		{0, byte(ShutterGo), 50, 101},
		{0, byte(ShutterTilt), 101},
		{0, byte(ShutterTilt), 0xFF},
	}
	for _, data := range rejected {
		rec := frame.Record{Type: schema.MsgShutterCommand, Length: 7, Data: data}
		if _, err := Decode(rec); !errors.Is(err, ErrInvalidField) {
			t.Fatalf("%v: expected ErrInvalidField, got %v", data, err)
		}
	}

	rec := frame.Record{Type: schema.MsgShutterCommand, Length: 7, Data: [8]byte{1, byte(ShutterGo), MaxShutterPosition, MaxShutterPosition}}
	msg, err := Decode(rec)
	if err != nil {
		t.Fatalf("decode at max position: %v", err)
	}
	sc, ok := msg.(ShutterCommand)
	if !ok || sc.Cmd != ShutterGoTo(MaxShutterPosition, MaxShutterPosition) {
		t.Fatalf("unexpected message: %#v", msg)
	}
}

func TestDecodeTiltCloseKeepsOp(t *testing.T) {
	testlog.Start(t)
	rec := frame.Record{Type: schema.MsgShutterCommand, Length: 7, Data: [8]byte{2, 0x05}}
	msg, err := Decode(rec)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	sc, ok := msg.(ShutterCommand)
	if !ok || sc.Cmd.Op != ShutterTiltClose {
		t.Fatalf("unexpected message: %#v", msg)
	}
}

func TestOutputRequestBool(t *testing.T) {
	testlog.Start(t)
	if v, ok := OutputOn.Bool(); !ok || !v {
		t.Fatalf("on should map to true")
	}
	if v, ok := OutputOff.Bool(); !ok || v {
		t.Fatalf("off should map to false")
	}
	if _, ok := OutputToggle.Bool(); ok {
		t.Fatalf("toggle has no boolean form")
	}
}

func TestTimeAnnouncementAtFriday(t *testing.T) {
	testlog.Start(t)
	at := time.Date(2024, time.March, 1, 10, 15, 30, 0, time.UTC)
	rec := Encode(TimeAnnouncementAt(at), frame.BroadcastAddr)
	want := [8]byte{0xE8, 0x07, 3, 1, 10, 15, 30, 5}
	if rec.Addr != 63 || rec.Type != 0x11 || rec.Length != 8 || rec.Data != want {
		t.Fatalf("unexpected record: %s", rec)
	}
}

func TestTimeAnnouncementAtSunday(t *testing.T) {
	testlog.Start(t)
	at := time.Date(2024, time.March, 3, 0, 0, 0, 0, time.UTC)
	if got := TimeAnnouncementAt(at).DayOfWeek; got != 7 {
		t.Fatalf("sunday should be 7, got %d", got)
	}
	back := TimeAnnouncementAt(at).Time(time.UTC)
	if !back.Equal(at) {
		t.Fatalf("time mismatch: %v", back)
	}
}
