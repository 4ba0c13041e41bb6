package protocol

import "fmt"

// Trigger is the kind of input event reported by a device.
type Trigger uint8

const (
	TriggerShortClick Trigger = iota
	TriggerLongClick
	TriggerActivated
	TriggerDeactivated
	TriggerLongActivated
	TriggerLongDeactivated
)

var triggerNames = [...]string{"short_click", "long_click", "activated", "deactivated", "long_activated", "long_deactivated"}

func (t Trigger) String() string {
	if int(t) < len(triggerNames) {
		return triggerNames[t]
	}
	return fmt.Sprintf("trigger(%d)", uint8(t))
}

func ParseTrigger(b byte) (Trigger, error) {
	if int(b) >= len(triggerNames) {
		return 0, fmt.Errorf("%w: trigger=%d", ErrInvalidEnum, b)
	}
	return Trigger(b), nil
}

// OutputRequest is a requested or reported output state.
type OutputRequest uint8

const (
	OutputOff OutputRequest = iota
	OutputOn
	OutputToggle
)

func (o OutputRequest) String() string {
	switch o {
	case OutputOff:
		return "off"
	case OutputOn:
		return "on"
	case OutputToggle:
		return "toggle"
	default:
		return fmt.Sprintf("output_request(%d)", uint8(o))
	}
}

// Bool maps Off/On to a boolean; Toggle has no boolean form.
func (o OutputRequest) Bool() (bool, bool) {
	switch o {
	case OutputOff:
		return false, true
	case OutputOn:
		return true, true
	default:
		return false, false
	}
}

func OutputRequestFromBool(on bool) OutputRequest {
	if on {
		return OutputOn
	}
	return OutputOff
}

func ParseOutputRequest(b byte) (OutputRequest, error) {
	if b > uint8(OutputToggle) {
		return 0, fmt.Errorf("%w: output_request=%d", ErrInvalidEnum, b)
	}
	return OutputRequest(b), nil
}

// IOState is the reported state of one input or output.
type IOState uint8

const (
	IOOff IOState = iota
	IOOn
	IOError
	IOUnknown
)

func (s IOState) String() string {
	switch s {
	case IOOff:
		return "off"
	case IOOn:
		return "on"
	case IOError:
		return "error"
	case IOUnknown:
		return "unknown"
	default:
		return fmt.Sprintf("io_state(%d)", uint8(s))
	}
}

func ParseIOState(b byte) (IOState, error) {
	if b > uint8(IOUnknown) {
		return 0, fmt.Errorf("%w: io_state=%d", ErrInvalidEnum, b)
	}
	return IOState(b), nil
}

// IOKind selects the input or output table in a StatusIO report.
type IOKind uint8

const (
	IOKindInput IOKind = iota
	IOKindOutput
)

func (k IOKind) String() string {
	if k == IOKindOutput {
		return "output"
	}
	return "input"
}

func ParseIOKind(b byte) (IOKind, error) {
	if b > uint8(IOKindOutput) {
		return 0, fmt.Errorf("%w: io_kind=%d", ErrInvalidEnum, b)
	}
	return IOKind(b), nil
}

// InfoCode identifies an Info notification.
type InfoCode uint16

// InfoStarted is sent once by a device after boot.
const InfoStarted InfoCode = 10

func (c InfoCode) String() string {
	if c == InfoStarted {
		return "started"
	}
	return fmt.Sprintf("info(%d)", uint16(c))
}

// ShutterOp is the operation byte of a shutter command.
type ShutterOp uint8

const (
	ShutterGo          ShutterOp = 0x01
	ShutterOpen        ShutterOp = 0x02
	ShutterClose       ShutterOp = 0x03
	ShutterTilt        ShutterOp = 0x04
	ShutterTiltClose   ShutterOp = 0x05
	ShutterTiltOpen    ShutterOp = 0x06
	ShutterTiltHalf    ShutterOp = 0x07
	ShutterTiltReverse ShutterOp = 0x08
	ShutterSetIO       ShutterOp = 0x10
)

var shutterOpNames = map[ShutterOp]string{
	ShutterGo:          "go",
	ShutterOpen:        "open",
	ShutterClose:       "close",
	ShutterTilt:        "tilt",
	ShutterTiltClose:   "tilt_close",
	ShutterTiltOpen:    "tilt_open",
	ShutterTiltHalf:    "tilt_half",
	ShutterTiltReverse: "tilt_reverse",
	ShutterSetIO:       "set_io",
}

func (o ShutterOp) String() string {
	if name, ok := shutterOpNames[o]; ok {
		return name
	}
	return fmt.Sprintf("shutter_op(0x%02x)", uint8(o))
}

// MaxShutterPosition is fully closed; 0 is fully open.
const MaxShutterPosition = 100

// ShutterCmd is one shutter driver instruction. Arg0 and Arg1 carry
// height/tilt for Go, tilt for Tilt and down/up output indices for SetIO; they
// are zero for every other op.
type ShutterCmd struct {
	Op   ShutterOp
	Arg0 uint8
	Arg1 uint8
}

func ShutterGoTo(height, tilt uint8) ShutterCmd {
	return ShutterCmd{Op: ShutterGo, Arg0: height, Arg1: tilt}
}

func ShutterTiltTo(tilt uint8) ShutterCmd {
	return ShutterCmd{Op: ShutterTilt, Arg0: tilt}
}

func ShutterBindIO(down, up uint8) ShutterCmd {
	return ShutterCmd{Op: ShutterSetIO, Arg0: down, Arg1: up}
}

func (c ShutterCmd) String() string {
	switch c.Op {
	case ShutterGo:
		return fmt.Sprintf("go height=%d tilt=%d", c.Arg0, c.Arg1)
	case ShutterTilt:
		return fmt.Sprintf("tilt %d", c.Arg0)
	case ShutterSetIO:
		return fmt.Sprintf("set_io down=%d up=%d", c.Arg0, c.Arg1)
	default:
		return c.Op.String()
	}
}

// parseShutterCmd reads the 5-byte command block. Args of ops that carry
// none are ignored.
func parseShutterCmd(raw []byte) (ShutterCmd, error) {
	op := ShutterOp(raw[0])
	switch op {
	case ShutterGo:
		if raw[1] > MaxShutterPosition || raw[2] > MaxShutterPosition {
			return ShutterCmd{}, fmt.Errorf("%w: shutter position height=%d tilt=%d", ErrInvalidField, raw[1], raw[2])
		}
		return ShutterGoTo(raw[1], raw[2]), nil
	case ShutterTilt:
		if raw[1] > MaxShutterPosition {
			return ShutterCmd{}, fmt.Errorf("%w: shutter tilt=%d", ErrInvalidField, raw[1])
		}
		return ShutterTiltTo(raw[1]), nil
	case ShutterSetIO:
		return ShutterBindIO(raw[1], raw[2]), nil
	case ShutterOpen, ShutterClose, ShutterTiltClose, ShutterTiltOpen, ShutterTiltHalf, ShutterTiltReverse:
		return ShutterCmd{Op: op}, nil
	default:
		return ShutterCmd{}, fmt.Errorf("%w: shutter op=0x%02x", ErrInvalidEnum, raw[0])
	}
}

func (c ShutterCmd) appendRaw(dst []byte) []byte {
	switch c.Op {
	case ShutterGo, ShutterSetIO:
		return append(dst, uint8(c.Op), c.Arg0, c.Arg1, 0, 0)
	case ShutterTilt:
		return append(dst, uint8(c.Op), c.Arg0, 0, 0, 0)
	default:
		return append(dst, uint8(c.Op), 0, 0, 0, 0)
	}
}
