package poller

import "strings"

// Interest is the set of conditions a descriptor is registered for.
// Registration is always edge-triggered.
type Interest uint32

const (
	Readable Interest = 1 << iota
	Writable
	PeerClosed
)

// Flag is the set of conditions reported for a ready descriptor.
type Flag uint32

const (
	FlagReadable Flag = 1 << iota
	FlagWritable
	FlagPeerClosed
	FlagHangUp
	FlagError
)

func (f Flag) String() string {
	if f == 0 {
		return "none"
	}
	names := make([]string, 0, 5)
	for _, n := range []struct {
		f    Flag
		name string
	}{
		{FlagReadable, "readable"},
		{FlagWritable, "writable"},
		{FlagPeerClosed, "peer_closed"},
		{FlagHangUp, "hang_up"},
		{FlagError, "error"},
	} {
		if f&n.f != 0 {
			names = append(names, n.name)
		}
	}
	return strings.Join(names, "|")
}

// reserved tags, connection tags start from FirstConnTag
const (
	ListenerTag  uint32 = 0
	WakeTag      uint32 = 1
	FirstConnTag uint32 = 2
)

type Pevent struct {
	Tag  uint32
	Flag Flag
}

// Batch is the result of one Wait. It aliases the poller owner's event
// buffer and is only valid until the next Wait.
type Batch []Pevent

func (b Batch) Len() int {
	return len(b)
}

type Poller interface {
	Register(fd int, interest Interest, tag uint32) error
	Modify(fd int, interest Interest, tag uint32) error
	Unregister(fd int) error
	// Wait blocks until at least one event is ready and fills events from the
	// front, returning how many were filled.
	Wait(events []Pevent) (int, error)
	// Wake makes a blocked Wait return a WakeTag event. It is the only method
	// that may be called from another goroutine.
	Wake() error
	Close() error
}
