package tcp

import (
	"bufio"
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// listenInstrument starts a one-connection line server answering with reply.
func listenInstrument(t *testing.T, reply func(line string) string) *Config {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		r := bufio.NewReader(conn)
		for {
			line, err := r.ReadString('\n')
			if err != nil {
				return
			}
			if resp := reply(line); resp != "" {
				_, _ = conn.Write([]byte(resp))
			}
		}
	}()

	addr, ok := ln.Addr().(*net.TCPAddr)
	require.True(t, ok)

	cfg, err := NewConfig("127.0.0.1", addr.Port, WithPacing(10*time.Millisecond))
	require.NoError(t, err)

	return cfg
}

func TestDial_Query(t *testing.T) {
	require := require.New(t)

	cfg := listenInstrument(t, func(line string) string {
		if line == "MEAS:VOLT?\r\n" {
			return "+1.23456E+00\r\n"
		}
		return ""
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	tr, err := Dial(ctx, cfg)
	require.NoError(err)
	defer tr.Close()

	reply, err := tr.Query(ctx, "MEAS:VOLT?")
	require.NoError(err)
	require.Equal("+1.23456E+00", reply)
}

func TestTransport_Pacing(t *testing.T) {
	require := require.New(t)

	client, server := net.Pipe()
	defer server.Close()

	go func() {
		r := bufio.NewReader(server)
		for {
			if _, err := r.ReadString('\n'); err != nil {
				return
			}
		}
	}()

	cfg, err := NewConfig("pipe", 5025, WithPacing(40*time.Millisecond))
	require.NoError(err)

	tr, err := New(client, cfg)
	require.NoError(err)
	defer tr.Close()

	start := time.Now()
	require.NoError(tr.SendCommand(context.Background(), "*CLS"))
	require.NoError(tr.SendCommand(context.Background(), "*RST"))
	require.GreaterOrEqual(time.Since(start), 80*time.Millisecond)
}

func TestTransport_AbortIsNoop(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()

	cfg, err := NewConfig("pipe", 5025)
	require.NoError(t, err)

	tr, err := New(client, cfg)
	require.NoError(t, err)
	defer tr.Close()

	require.NoError(t, tr.AbortCommand(context.Background()))
}

func TestDial_Refused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr, ok := ln.Addr().(*net.TCPAddr)
	require.True(t, ok)
	require.NoError(t, ln.Close())

	cfg, err := NewConfig("127.0.0.1", addr.Port, WithConnectTimeout(500*time.Millisecond))
	require.NoError(t, err)

	_, err = Dial(context.Background(), cfg)
	require.Error(t, err)
	require.Contains(t, err.Error(), "tcp: dial")
}
