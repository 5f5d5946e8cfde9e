//go:build linux
// +build linux

// File: internal/iomux/poller_linux.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// epoll(7)-backed Poller, carrying mutable per-fd interest
// (EPOLL_CTL_MOD/DEL) and reporting readiness as revents on the owning
// Channel rather than invoking a callback directly — dispatch-ordering
// policy belongs to Channel, not the Poller.

package iomux

import (
	"fmt"
	"time"

	"golang.org/x/sys/unix"
)

const initEventListSize = 16

type epollPoller struct {
	epfd    int
	events  []unix.EpollEvent
	byFd    map[int]*Channel
}

func newPoller() (poller, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("iomux: epoll_create1: %w", err)
	}
	return &epollPoller{
		epfd:   epfd,
		events: make([]unix.EpollEvent, initEventListSize),
		byFd:   make(map[int]*Channel),
	}, nil
}

func toEpollEvents(e Events) uint32 {
	var r uint32
	if e&EventReadable != 0 {
		r |= unix.EPOLLIN
	}
	if e&EventPriority != 0 {
		r |= unix.EPOLLPRI
	}
	if e&EventWritable != 0 {
		r |= unix.EPOLLOUT
	}
	return r
}

func fromEpollEvents(r uint32) Events {
	var e Events
	if r&unix.EPOLLIN != 0 {
		e |= EventReadable
	}
	if r&unix.EPOLLPRI != 0 {
		e |= EventPriority
	}
	if r&unix.EPOLLOUT != 0 {
		e |= EventWritable
	}
	if r&unix.EPOLLERR != 0 {
		e |= EventError
	}
	if r&unix.EPOLLHUP != 0 {
		e |= EventHangup
	}
	return e
}

func (p *epollPoller) poll(timeout time.Duration, active *[]*Channel) (time.Time, error) {
	ms := int(timeout / time.Millisecond)
	if timeout < 0 {
		ms = -1
	}

	n, err := unix.EpollWait(p.epfd, p.events, ms)
	receiveTime := time.Now()
	if err != nil {
		if err == unix.EINTR {
			return receiveTime, nil
		}
		return receiveTime, fmt.Errorf("iomux: epoll_wait: %w", err)
	}

	for i := 0; i < n; i++ {
		fd := int(p.events[i].Fd)
		ch, ok := p.byFd[fd]
		if !ok {
			continue
		}
		ch.SetRevents(fromEpollEvents(p.events[i].Events))
		*active = append(*active, ch)
	}

	if n == len(p.events) {
		p.events = make([]unix.EpollEvent, len(p.events)*2)
	}

	return receiveTime, nil
}

func (p *epollPoller) updateChannel(ch *Channel) error {
	fd := ch.Fd()
	idx := ch.index_()

	if idx == indexNew || idx == indexDeleted {
		p.byFd[fd] = ch
		ev := unix.EpollEvent{Events: toEpollEvents(ch.Events()), Fd: int32(fd)}
		if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
			return fmt.Errorf("iomux: epoll_ctl add fd=%d: %w", fd, err)
		}
		ch.setIndex(indexAdded)
		return nil
	}

	// idx == indexAdded
	if ch.IsNoneEvent() {
		if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil); err != nil {
			return fmt.Errorf("iomux: epoll_ctl del fd=%d: %w", fd, err)
		}
		ch.setIndex(indexDeleted)
		return nil
	}

	ev := unix.EpollEvent{Events: toEpollEvents(ch.Events()), Fd: int32(fd)}
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_MOD, fd, &ev); err != nil {
		return fmt.Errorf("iomux: epoll_ctl mod fd=%d: %w", fd, err)
	}
	return nil
}

func (p *epollPoller) removeChannel(ch *Channel) error {
	fd := ch.Fd()
	idx := ch.index_()
	if idx == indexAdded {
		if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil); err != nil {
			return fmt.Errorf("iomux: epoll_ctl del fd=%d: %w", fd, err)
		}
	}
	delete(p.byFd, fd)
	ch.setIndex(indexNew)
	return nil
}

func (p *epollPoller) hasChannel(fd int) bool {
	_, ok := p.byFd[fd]
	return ok
}

func (p *epollPoller) close() error {
	return unix.Close(p.epfd)
}
