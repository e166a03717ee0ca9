// Package linuxpin implements pin.PinIO against Linux sysfs GPIO
// (/sys/class/gpio), for running coopsched and syncom against real GPIO
// edges on a host machine rather than bare-metal firmware. Edge detection
// is epoll-based, grounded on eventloop/poller_linux.go's EpollWait loop
// and eventloop/wakeup_linux.go's eventfd self-pipe wakeup for clean
// shutdown of the watcher goroutine.
package linuxpin

import (
	"fmt"
	"os"
	"strconv"

	"golang.org/x/sys/unix"

	"github.com/coopsched/coopsched/pin"
)

// GPIOPin is a single sysfs GPIO line. Export it (or have it already
// exported by a udev rule) before constructing one.
type GPIOPin struct {
	num int

	valueFile *os.File

	epfd   int
	wakeFd int

	handlers []handler
	done     chan struct{}
}

type handler struct {
	edge pin.Edge
	cb   func()
}

// Open exports gpioNum if necessary, sets its direction, and opens its
// value file for reads and (if dir is "out") writes.
func Open(gpioNum int, dir string) (*GPIOPin, error) {
	base := fmt.Sprintf("/sys/class/gpio/gpio%d", gpioNum)
	if _, err := os.Stat(base); os.IsNotExist(err) {
		if err := os.WriteFile("/sys/class/gpio/export", []byte(strconv.Itoa(gpioNum)), 0o200); err != nil {
			return nil, fmt.Errorf("linuxpin: export gpio%d: %w", gpioNum, err)
		}
	}
	if err := os.WriteFile(base+"/direction", []byte(dir), 0o200); err != nil {
		return nil, fmt.Errorf("linuxpin: set direction on gpio%d: %w", gpioNum, err)
	}

	flags := os.O_RDONLY
	if dir == "out" {
		flags = os.O_RDWR
	}
	f, err := os.OpenFile(base+"/value", flags, 0)
	if err != nil {
		return nil, fmt.Errorf("linuxpin: open value for gpio%d: %w", gpioNum, err)
	}

	p := &GPIOPin{num: gpioNum, valueFile: f, epfd: -1, wakeFd: -1}
	if err := os.WriteFile(base+"/edge", []byte("both"), 0o200); err == nil {
		if err := p.startWatcher(); err != nil {
			f.Close()
			return nil, err
		}
	}
	return p, nil
}

func (p *GPIOPin) Read() bool {
	var buf [1]byte
	if _, err := p.valueFile.ReadAt(buf[:], 0); err != nil {
		return false
	}
	return buf[0] == '1'
}

func (p *GPIOPin) Write(level bool) {
	b := []byte("0")
	if level {
		b = []byte("1")
	}
	_, _ = p.valueFile.WriteAt(b, 0)
}

func (p *GPIOPin) AttachISR(e pin.Edge, cb func()) (detach func()) {
	p.handlers = append(p.handlers, handler{edge: e, cb: cb})
	idx := len(p.handlers) - 1
	return func() {
		if idx < len(p.handlers) {
			p.handlers[idx].cb = func() {}
		}
	}
}

// Close stops the edge watcher and releases the underlying fds.
func (p *GPIOPin) Close() error {
	if p.done != nil {
		close(p.done)
	}
	if p.wakeFd >= 0 {
		one := [8]byte{1}
		_, _ = unix.Write(p.wakeFd, one[:])
	}
	if p.epfd >= 0 {
		_ = unix.Close(p.epfd)
	}
	if p.wakeFd >= 0 {
		_ = unix.Close(p.wakeFd)
	}
	return p.valueFile.Close()
}

// startWatcher arms epoll on the value fd for EPOLLPRI|EPOLLERR, the
// classic sysfs-gpio edge-notification pattern, plus an eventfd the
// watcher also polls so Close can wake it out of EpollWait promptly
// (eventloop/wakeup_linux.go's createWakeFd, generalized from an I/O
// readiness wakeup to a GPIO-edge watcher's own shutdown signal).
func (p *GPIOPin) startWatcher() error {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return fmt.Errorf("linuxpin: epoll_create1: %w", err)
	}
	wakeFd, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		unix.Close(epfd)
		return fmt.Errorf("linuxpin: eventfd: %w", err)
	}

	valueFd := int(p.valueFile.Fd())
	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, valueFd, &unix.EpollEvent{
		Events: unix.EPOLLPRI | unix.EPOLLERR,
		Fd:     int32(valueFd),
	}); err != nil {
		unix.Close(epfd)
		unix.Close(wakeFd)
		return fmt.Errorf("linuxpin: epoll_ctl value fd: %w", err)
	}
	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, wakeFd, &unix.EpollEvent{
		Events: unix.EPOLLIN,
		Fd:     int32(wakeFd),
	}); err != nil {
		unix.Close(epfd)
		unix.Close(wakeFd)
		return fmt.Errorf("linuxpin: epoll_ctl wake fd: %w", err)
	}

	p.epfd = epfd
	p.wakeFd = wakeFd
	p.done = make(chan struct{})

	go p.watch(valueFd, wakeFd)
	return nil
}

func (p *GPIOPin) watch(valueFd, wakeFd int) {
	var events [4]unix.EpollEvent
	var discard [1]byte
	_, _ = p.valueFile.ReadAt(discard[:], 0) // clear the initial always-pending POLLPRI

	for {
		select {
		case <-p.done:
			return
		default:
		}

		n, err := unix.EpollWait(p.epfd, events[:], -1)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return
		}
		for i := 0; i < n; i++ {
			switch int(events[i].Fd) {
			case int(wakeFd):
				return
			case valueFd:
				p.fireEdge()
			}
		}
	}
}

func (p *GPIOPin) fireEdge() {
	level := p.Read()
	edge := pin.FallingEdge
	if level {
		edge = pin.RisingEdge
	}
	for _, h := range p.handlers {
		if h.edge == edge || h.edge == pin.BothEdges {
			h.cb()
		}
	}
}

var _ pin.PinIO = (*GPIOPin)(nil)
