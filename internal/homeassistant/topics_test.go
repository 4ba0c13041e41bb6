package homeassistant

import (
	"errors"
	"testing"

	"github.com/danmuck/iogate/internal/testutil/testlog"
)

func TestTopicLayout(t *testing.T) {
	testlog.Start(t)
	topics := DefaultTopics()
	cases := map[string]string{
		topics.Command(2, 5):       "smartenough/2/switch/5/set",
		topics.State(2, 5):         "smartenough/2/switch/5/get",
		topics.CommandPattern(2):   "smartenough/2/switch/+/set",
		topics.Status():            "smartenough/status",
		topics.DiscoveryConfig(12): "homeassistant/device/gate-12/config",
	}
	for got, want := range cases {
		if got != want {
			t.Fatalf("topic mismatch: got=%q want=%q", got, want)
		}
	}
}

func TestParseCommandSetOutput(t *testing.T) {
	testlog.Start(t)
	topics := DefaultTopics()
	cmd, ok, err := topics.ParseCommand("smartenough/2/switch/5/set", []byte("ON"))
	if err != nil || !ok {
		t.Fatalf("parse: ok=%v err=%v", ok, err)
	}
	if cmd.Kind != CommandSetOutput || cmd.Device != 2 || cmd.Output != 5 || !cmd.On {
		t.Fatalf("unexpected command: %+v", cmd)
	}

	cmd, _, _ = topics.ParseCommand("smartenough/2/switch/5/set", []byte("on"))
	if cmd.On {
		t.Fatalf("only exact ON payload switches on")
	}
}

func TestParseCommandIgnoresUnknownTopics(t *testing.T) {
	testlog.Start(t)
	topics := DefaultTopics()
	for _, topic := range []string{
		"smartenough/status",
		"smartenough/2/switch/5/get",
		"other/2/switch/5/set",
		"smartenough/2/light/5/set",
		"smartenough/2/switch/5/set/extra",
	} {
		_, ok, err := topics.ParseCommand(topic, []byte("ON"))
		if ok || err != nil {
			t.Fatalf("%s: expected ignore, got ok=%v err=%v", topic, ok, err)
		}
	}
}

func TestParseCommandRejectsBadIndices(t *testing.T) {
	testlog.Start(t)
	topics := DefaultTopics()
	for _, topic := range []string{
		"smartenough/256/switch/1/set",
		"smartenough/x/switch/1/set",
		"smartenough/1/switch/-1/set",
	} {
		if _, ok, err := topics.ParseCommand(topic, []byte("ON")); ok || !errors.Is(err, ErrBadTopic) {
			t.Fatalf("%s: expected ErrBadTopic, got ok=%v err=%v", topic, ok, err)
		}
	}
}

func TestParseCommandTestTopic(t *testing.T) {
	testlog.Start(t)
	topics := DefaultTopics()
	cmd, ok, err := topics.ParseCommand(DefaultTestTopic, []byte{1, 2, 3})
	if err != nil || !ok || cmd.Kind != CommandRaw || len(cmd.Raw) != 3 {
		t.Fatalf("unexpected raw command: %+v ok=%v err=%v", cmd, ok, err)
	}
}
