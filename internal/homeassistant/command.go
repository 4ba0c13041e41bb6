package homeassistant

import "fmt"

// Device is one bus device as announced to Home Assistant. Output and input
// labels are resolved: len(Outputs) is the output count.
type Device struct {
	Name    string
	Addr    uint8
	Outputs []string
	Inputs  []string
}

// NewDevice resolves labels for count outputs and inputs. Missing labels
// become "<name>-<idx>".
func NewDevice(name string, addr uint8, outputs int, outputLabels []string, inputs int, inputLabels []string) Device {
	return Device{
		Name:    name,
		Addr:    addr,
		Outputs: ResolveLabels(name, outputs, outputLabels),
		Inputs:  ResolveLabels(name, inputs, inputLabels),
	}
}

// ResolveLabels returns count channel labels. Missing or empty entries fall
// back to "<name>-<index>".
func ResolveLabels(name string, count int, labels []string) []string {
	if count <= 0 {
		return nil
	}
	out := make([]string, count)
	for i := range out {
		if i < len(labels) && labels[i] != "" {
			out[i] = labels[i]
			continue
		}
		out[i] = fmt.Sprintf("%s-%d", name, i)
	}
	return out
}

type CommandKind int

const (
	// CommandSetOutput switches one output on a device.
	CommandSetOutput CommandKind = iota
	// CommandRaw is a message on the test topic. It carries no action.
	CommandRaw
)

func (k CommandKind) String() string {
	switch k {
	case CommandSetOutput:
		return "set_output"
	case CommandRaw:
		return "raw"
	default:
		return fmt.Sprintf("command(%d)", int(k))
	}
}

// Command is one instruction received from the broker.
type Command struct {
	Kind   CommandKind
	Device uint8
	Output uint8
	On     bool
	Raw    []byte
}

func (c Command) String() string {
	if c.Kind == CommandSetOutput {
		return fmt.Sprintf("set_output device=%d output=%d on=%t", c.Device, c.Output, c.On)
	}
	return fmt.Sprintf("%s bytes=%d", c.Kind, len(c.Raw))
}
