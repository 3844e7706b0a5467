package instrument

import (
	"bufio"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/go-scpi/rs232"
	"github.com/arloliu/go-scpi/scpi"
)

// fakePort is a serial port backed by one end of a net.Pipe.
type fakePort struct {
	net.Conn
}

func (fakePort) Break(time.Duration) error { return nil }

// supplySim answers like a 6632B on the far end of the serial line.
type supplySim struct {
	conn net.Conn

	mu       sync.Mutex
	lines    []string
	errQueue []string
	rangeMax float64
	load     float64
	volts    float64
	amps     float64
	output   bool
}

func (s *supplySim) serve() {
	r := bufio.NewReader(s.conn)
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return
		}
		line = strings.TrimRight(line, "\r\n")

		s.mu.Lock()
		s.lines = append(s.lines, line)
		reply, ok := s.handle(line)
		s.mu.Unlock()

		if !ok {
			continue
		}
		if _, err := s.conn.Write([]byte(reply + rs232.LineTerminator)); err != nil {
			return
		}
	}
}

// handle runs with s.mu held.
func (s *supplySim) handle(line string) (string, bool) {
	header, arg, _ := strings.Cut(line, " ")

	switch header {
	case "SYST:ERR?":
		if len(s.errQueue) == 0 {
			return scpi.FormatErrorReply(0, "No error"), true
		}
		entry := s.errQueue[0]
		s.errQueue = s.errQueue[1:]

		return entry, true
	case "MEAS:SCAL:CURR?":
		return number(s.load), true
	case "MEAS:SCAL:VOLT?", "SOUR:VOLT?":
		return number(s.volts), true
	case "SOUR:CURR?":
		return number(s.amps), true
	case "SENS:CURR:RANG?":
		return number(s.rangeMax), true
	case "OUTP:STAT?":
		if s.output {
			return "1", true
		}
		return "0", true
	case "SENS:CURR:RANG":
		s.rangeMax = s.value(arg)
	case "SOUR:VOLT":
		s.volts = s.value(arg) / 1000
	case "SOUR:CURR":
		s.amps = s.value(arg) / 1000
	case "OUTP:STAT":
		s.output = arg == "1"
	default:
		if strings.HasSuffix(header, "?") {
			s.errQueue = append(s.errQueue, scpi.FormatErrorReply(-113, "Undefined header"))
		}
	}

	return "", false
}

// value parses "5000.000000 MV" or "0.020000"; a bad argument queues -224.
func (s *supplySim) value(arg string) float64 {
	field, _, _ := strings.Cut(arg, " ")
	v, err := strconv.ParseFloat(field, 64)
	if err != nil {
		s.errQueue = append(s.errQueue, scpi.FormatErrorReply(-224, "Illegal parameter value"))
	}

	return v
}

func (s *supplySim) setLoad(amps float64) {
	s.mu.Lock()
	s.load = amps
	s.mu.Unlock()
}

func (s *supplySim) measureRange() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.rangeMax
}

// commands returns the received lines without the error queue reads.
func (s *supplySim) commands() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []string
	for _, line := range s.lines {
		if line != scpi.ErrorQueueQuery {
			out = append(out, line)
		}
	}

	return out
}

func number(v float64) string {
	return fmt.Sprintf("%+.5E", v)
}

func newTestHP6632B(t *testing.T) (*HP6632B, *supplySim) {
	t.Helper()

	client, server := net.Pipe()

	cfg, err := rs232.NewConfig("/dev/ttyTEST0")
	require.NoError(t, err)

	tr, err := rs232.New(fakePort{Conn: client}, cfg)
	require.NoError(t, err)

	sim := &supplySim{conn: server, rangeMax: HP6632BHighCurrentRange}
	go sim.serve()

	t.Cleanup(func() {
		_ = tr.Close()
		_ = server.Close()
	})

	dev, err := scpi.NewDevice(tr)
	require.NoError(t, err)

	hp, err := NewHP6632B(dev)
	require.NoError(t, err)

	return hp, sim
}
