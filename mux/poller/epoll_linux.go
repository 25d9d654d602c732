package poller

import (
	"encoding/binary"
	"sync"

	"github.com/Trinoooo/tcpmux/errs"
	"go.uber.org/multierr"
	"golang.org/x/sys/unix"
)

// EpollPoller is not safe for concurrent use except for Wake, which may race
// with Close.
type EpollPoller struct {
	epfd       int
	wakeMu     sync.Mutex // guards wakeFd between Wake and Close
	wakeFd     int
	registered map[int]uint32 // fd -> tag
	raw        []unix.EpollEvent
	wakeBuf    [8]byte
}

func NewEpollPoller(maxEvents int) (*EpollPoller, error) {
	if maxEvents <= 0 {
		return nil, errs.NewInvalidParamErr()
	}

	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, errs.NewPollerCreateErr().WithErr(err)
	}

	wakeFd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		_ = unix.Close(epfd)
		return nil, errs.NewPollerCreateErr().WithErr(err)
	}

	ep := &EpollPoller{
		epfd:       epfd,
		wakeFd:     wakeFd,
		registered: make(map[int]uint32),
		raw:        make([]unix.EpollEvent, maxEvents),
	}
	if err = ep.Register(wakeFd, Readable, WakeTag); err != nil {
		_ = unix.Close(wakeFd)
		_ = unix.Close(epfd)
		return nil, err
	}
	return ep, nil
}

func (ep *EpollPoller) Register(fd int, interest Interest, tag uint32) error {
	if _, exist := ep.registered[fd]; exist {
		return errs.NewAlreadyRegisteredErr()
	}

	evt := &unix.EpollEvent{
		Events: toEpollEvents(interest),
		Fd:     int32(tag),
	}
	if err := unix.EpollCtl(ep.epfd, unix.EPOLL_CTL_ADD, fd, evt); err != nil {
		if err == unix.EEXIST {
			return errs.NewAlreadyRegisteredErr().WithErr(err)
		}
		return errs.NewRegisterErr().WithErr(err)
	}
	ep.registered[fd] = tag
	return nil
}

func (ep *EpollPoller) Modify(fd int, interest Interest, tag uint32) error {
	if _, exist := ep.registered[fd]; !exist {
		return errs.NewNotRegisteredErr()
	}

	evt := &unix.EpollEvent{
		Events: toEpollEvents(interest),
		Fd:     int32(tag),
	}
	if err := unix.EpollCtl(ep.epfd, unix.EPOLL_CTL_MOD, fd, evt); err != nil {
		return errs.NewPollerCtlErr().WithErr(err)
	}
	ep.registered[fd] = tag
	return nil
}

// Unregister forgets fd even when the kernel already dropped it, e.g. because
// fd was closed before.
func (ep *EpollPoller) Unregister(fd int) error {
	if _, exist := ep.registered[fd]; !exist {
		return errs.NewNotRegisteredErr()
	}
	delete(ep.registered, fd)

	if err := unix.EpollCtl(ep.epfd, unix.EPOLL_CTL_DEL, fd, nil); err != nil {
		return errs.NewPollerCtlErr().WithErr(err)
	}
	return nil
}

func (ep *EpollPoller) Wait(events []Pevent) (int, error) {
	if ep.epfd < 0 {
		return 0, errs.NewPollErr().WithErr(unix.EBADF)
	}
	if len(events) == 0 {
		return 0, errs.NewInvalidParamErr()
	}
	if len(ep.raw) < len(events) {
		ep.raw = make([]unix.EpollEvent, len(events))
	}
	raw := ep.raw[:len(events)]

	for {
		n, err := unix.EpollWait(ep.epfd, raw, -1)
		if err != nil {
			// bugfix: EINTR 是信号打断，不是错误
			if err == unix.EINTR {
				continue
			}
			return 0, errs.NewPollErr().WithErr(err)
		}

		for i := 0; i < n; i++ {
			tag := uint32(raw[i].Fd)
			if tag == WakeTag {
				ep.drainWake()
			}
			events[i] = Pevent{
				Tag:  tag,
				Flag: toFlag(raw[i].Events),
			}
		}
		return n, nil
	}
}

// Wake fails with PollErr once the poller is closed, it never writes to a
// released descriptor.
func (ep *EpollPoller) Wake() error {
	ep.wakeMu.Lock()
	defer ep.wakeMu.Unlock()
	if ep.wakeFd < 0 {
		return errs.NewPollErr().WithErr(unix.EBADF)
	}

	var buf [8]byte
	binary.NativeEndian.PutUint64(buf[:], 1)
	for {
		_, err := unix.Write(ep.wakeFd, buf[:])
		switch err {
		case nil, unix.EAGAIN:
			// EAGAIN: counter saturated, a wakeup is already pending
			return nil
		case unix.EINTR:
			continue
		default:
			return err
		}
	}
}

func (ep *EpollPoller) drainWake() {
	for {
		_, err := unix.Read(ep.wakeFd, ep.wakeBuf[:])
		if err != unix.EINTR {
			return
		}
	}
}

func (ep *EpollPoller) Close() error {
	if ep.epfd < 0 {
		return nil
	}

	ep.wakeMu.Lock()
	err := unix.Close(ep.wakeFd)
	ep.wakeFd = -1
	ep.wakeMu.Unlock()

	err = multierr.Append(err, unix.Close(ep.epfd))
	ep.epfd = -1
	ep.registered = nil
	return err
}

func toEpollEvents(interest Interest) uint32 {
	events := uint32(unix.EPOLLET)
	if interest&Readable != 0 {
		events |= unix.EPOLLIN
	}
	if interest&Writable != 0 {
		events |= unix.EPOLLOUT
	}
	if interest&PeerClosed != 0 {
		events |= unix.EPOLLRDHUP
	}
	return events
}

func toFlag(events uint32) Flag {
	var f Flag
	if events&unix.EPOLLIN != 0 {
		f |= FlagReadable
	}
	if events&unix.EPOLLOUT != 0 {
		f |= FlagWritable
	}
	if events&unix.EPOLLRDHUP != 0 {
		f |= FlagPeerClosed
	}
	if events&unix.EPOLLHUP != 0 {
		f |= FlagHangUp
	}
	if events&unix.EPOLLERR != 0 {
		f |= FlagError
	}
	return f
}
