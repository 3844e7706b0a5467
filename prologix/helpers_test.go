package prologix

import (
	"bufio"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeController emulates the controller firmware on the far end of a pipe.
type fakeController struct {
	conn net.Conn

	mu       sync.Mutex
	lines    []string
	addr     string
	readTmo  int
	devices  map[string]string // address → *IDN? reply
	lastText map[string]string
	silent   bool   // controller queries go unanswered
	badAddr  string // reported by ++addr instead of the real address
}

func newFakeController(conn net.Conn, devices map[string]string) *fakeController {
	if devices == nil {
		devices = map[string]string{}
	}

	return &fakeController{
		conn:     conn,
		addr:     "0",
		readTmo:  50,
		devices:  devices,
		lastText: map[string]string{},
	}
}

func (c *fakeController) serve() {
	r := bufio.NewReader(c.conn)
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return
		}
		line = strings.TrimSuffix(line, "\n")

		if reply, ok := c.handle(line); ok {
			if _, err := c.conn.Write([]byte(reply + "\n")); err != nil {
				return
			}
		}
	}
}

func (c *fakeController) handle(line string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.lines = append(c.lines, line)

	if !strings.HasPrefix(line, "++") {
		c.lastText[c.addr] = line
		return "", false
	}
	if c.silent {
		return "", false
	}

	switch {
	case line == "++addr":
		if c.badAddr != "" {
			return c.badAddr, true
		}
		return c.addr, true
	case strings.HasPrefix(line, "++addr "):
		c.addr = strings.TrimPrefix(line, "++addr ")
	case line == "++read_tmo_ms":
		return strconv.Itoa(c.readTmo), true
	case strings.HasPrefix(line, "++read_tmo_ms "):
		c.readTmo, _ = strconv.Atoi(strings.TrimPrefix(line, "++read_tmo_ms "))
	case line == "++spoll":
		if _, ok := c.devices[c.addr]; ok {
			return "16", true
		}
	case line == "++read eoi":
		idn, ok := c.devices[c.addr]
		if ok && c.lastText[c.addr] == "*IDN?" {
			return idn + "\r", true
		}
	case line == "++srq":
		return "1", true
	case line == "++ver":
		return "Prologix GPIB-USB Controller version 6.107", true
	}

	return "", false
}

func (c *fakeController) setSilent(silent bool) {
	c.mu.Lock()
	c.silent = silent
	c.mu.Unlock()
}

func (c *fakeController) setBadAddr(addr string) {
	c.mu.Lock()
	c.badAddr = addr
	c.mu.Unlock()
}

func (c *fakeController) received() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	return append([]string(nil), c.lines...)
}

func (c *fakeController) currentAddr() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.addr
}

func newTestBus(t *testing.T, devices map[string]string, opts ...Option) (*Bus, *fakeController) {
	t.Helper()

	client, server := net.Pipe()
	ctrl := newFakeController(server, devices)
	go ctrl.serve()

	opts = append([]Option{
		WithControllerTimeout(200 * time.Millisecond),
		WithScanAddressTimeout(20 * time.Millisecond),
	}, opts...)
	cfg, err := NewConfig("/dev/ttyPROLOGIX", opts...)
	require.NoError(t, err)

	bus, err := New(client, cfg)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = bus.Close()
		_ = server.Close()
	})

	return bus, ctrl
}
