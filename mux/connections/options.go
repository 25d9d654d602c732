package connections

import (
	"github.com/Trinoooo/tcpmux/consts"
	"github.com/Trinoooo/tcpmux/errs"
	"github.com/Trinoooo/tcpmux/mux/poller"
)

// PollerBuilder creates the poller a Listener owns.
type PollerBuilder func(maxEvents int) (poller.Poller, error)

type Options struct {
	maxEvents     int
	worker        int
	pollerBuilder PollerBuilder
}

func NewOptions() *Options {
	return &Options{
		maxEvents:     consts.DefaultMaxEvents,
		pollerBuilder: newEpollPoller,
	}
}

func newEpollPoller(maxEvents int) (poller.Poller, error) {
	return poller.NewEpollPoller(maxEvents)
}

// SetMaxEvents bounds the readiness batch returned by one Poll.
func (opts *Options) SetMaxEvents(n int) *Options {
	opts.maxEvents = n
	return opts
}

// SetWorker only labels log entries.
func (opts *Options) SetWorker(id int) *Options {
	opts.worker = id
	return opts
}

// SetPollerBuilder replaces the default epoll poller, e.g. to wrap it.
func (opts *Options) SetPollerBuilder(builder PollerBuilder) *Options {
	opts.pollerBuilder = builder
	return opts
}

func (opts *Options) validate() error {
	if opts.maxEvents <= 0 || opts.pollerBuilder == nil {
		return errs.NewInvalidParamErr()
	}
	return nil
}
