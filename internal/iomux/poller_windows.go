//go:build windows
// +build windows

// File: internal/iomux/poller_windows.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Windows has no epoll. WSAPoll gives the same level-triggered,
// interest-set-based readiness model our Channel abstraction needs,
// unlike a completion-based I/O model — so this backend calls WSAPoll
// directly through ws2_32.dll.

package iomux

import (
	"fmt"
	"time"
	"unsafe"

	"golang.org/x/sys/windows"
)

const (
	pollrdnorm = 0x0100
	pollwrnorm = 0x0010
	pollerr    = 0x0001
	pollhup    = 0x0002
)

type wsaPollFd struct {
	fd      windows.Handle
	events  int16
	revents int16
}

var (
	modws2_32   = windows.NewLazySystemDLL("ws2_32.dll")
	procWSAPoll = modws2_32.NewProc("WSAPoll")
)

func wsaPoll(fds []wsaPollFd, timeoutMs int32) (int, error) {
	if len(fds) == 0 {
		return 0, nil
	}
	r, _, errno := procWSAPoll.Call(
		uintptr(unsafe.Pointer(&fds[0])),
		uintptr(len(fds)),
		uintptr(timeoutMs),
	)
	n := int(int32(r))
	if n < 0 {
		return 0, fmt.Errorf("iomux: WSAPoll: %w", errno)
	}
	return n, nil
}

type selectPoller struct {
	byFd map[int]*Channel
}

func newPoller() (poller, error) {
	return &selectPoller{byFd: make(map[int]*Channel)}, nil
}

func toPollEvents(e Events) int16 {
	var r int16
	if e&EventReadable != 0 {
		r |= pollrdnorm
	}
	if e&EventWritable != 0 {
		r |= pollwrnorm
	}
	return r
}

func fromPollEvents(r int16) Events {
	var e Events
	if r&pollrdnorm != 0 {
		e |= EventReadable
	}
	if r&pollwrnorm != 0 {
		e |= EventWritable
	}
	if r&pollerr != 0 {
		e |= EventError
	}
	if r&pollhup != 0 {
		e |= EventHangup
	}
	return e
}

func (p *selectPoller) poll(timeout time.Duration, active *[]*Channel) (time.Time, error) {
	fds := make([]wsaPollFd, 0, len(p.byFd))
	chans := make([]*Channel, 0, len(p.byFd))
	for fd, ch := range p.byFd {
		fds = append(fds, wsaPollFd{fd: windows.Handle(fd), events: toPollEvents(ch.Events())})
		chans = append(chans, ch)
	}

	ms := int32(timeout / time.Millisecond)
	if timeout < 0 {
		ms = -1
	}

	n, err := wsaPoll(fds, ms)
	receiveTime := time.Now()
	if err != nil {
		return receiveTime, err
	}
	if n == 0 {
		return receiveTime, nil
	}

	for i, f := range fds {
		if f.revents == 0 {
			continue
		}
		chans[i].SetRevents(fromPollEvents(f.revents))
		*active = append(*active, chans[i])
	}
	return receiveTime, nil
}

func (p *selectPoller) updateChannel(ch *Channel) error {
	idx := ch.index_()
	if idx == indexNew || idx == indexDeleted {
		p.byFd[ch.Fd()] = ch
		ch.setIndex(indexAdded)
		return nil
	}
	if ch.IsNoneEvent() {
		ch.setIndex(indexDeleted)
	}
	return nil
}

func (p *selectPoller) removeChannel(ch *Channel) error {
	delete(p.byFd, ch.Fd())
	ch.setIndex(indexNew)
	return nil
}

func (p *selectPoller) hasChannel(fd int) bool {
	_, ok := p.byFd[fd]
	return ok
}

func (p *selectPoller) close() error { return nil }
