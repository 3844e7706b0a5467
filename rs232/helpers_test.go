package rs232

import (
	"bufio"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakePort is a serial port backed by one end of a net.Pipe.
type fakePort struct {
	net.Conn

	mu     sync.Mutex
	breaks []time.Duration
}

func (p *fakePort) Break(d time.Duration) error {
	p.mu.Lock()
	p.breaks = append(p.breaks, d)
	p.mu.Unlock()

	return nil
}

func (p *fakePort) breakCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return len(p.breaks)
}

// instrument is the far end of the fake serial line.
type instrument struct {
	conn   net.Conn
	reader *bufio.Reader
}

func (in *instrument) readLine(t *testing.T) string {
	t.Helper()

	_ = in.conn.SetReadDeadline(time.Now().Add(time.Second))
	line, err := in.reader.ReadString('\n')
	require.NoError(t, err)

	return line
}

func (in *instrument) writeLine(t *testing.T, line string) {
	t.Helper()

	_ = in.conn.SetWriteDeadline(time.Now().Add(time.Second))
	_, err := in.conn.Write([]byte(line + LineTerminator))
	require.NoError(t, err)
}

func newTestTransport(t *testing.T, opts ...Option) (*Transport, *fakePort, *instrument) {
	t.Helper()

	client, server := net.Pipe()
	port := &fakePort{Conn: client}

	cfg, err := NewConfig("/dev/ttyTEST0", opts...)
	require.NoError(t, err)

	tr, err := New(port, cfg)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = tr.Close()
		_ = server.Close()
	})

	return tr, port, &instrument{conn: server, reader: bufio.NewReader(server)}
}
