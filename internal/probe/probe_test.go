package probe

import (
	"bufio"
	"context"
	"net"
	"strconv"
	"testing"
	"time"
)

func fakeGreetingServer(t *testing.T, greeting string) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func(c net.Conn) {
				defer c.Close()
				c.Write([]byte(greeting + "\r\n"))
				bufio.NewReader(c).ReadString('\n')
			}(conn)
		}
	}()
	t.Cleanup(func() { ln.Close() })
	return ln.Addr().String()
}

func TestProbeOnlineOnGreeting(t *testing.T) {
	addr := fakeGreetingServer(t, "220 fake FTP ready")
	host, portStr, _ := net.SplitHostPort(addr)
	port, _ := strconv.Atoi(portStr)

	p := NewProber(time.Second, port)
	result := p.Probe(context.Background(), host)
	if !result.Online {
		t.Fatalf("expected online, got %+v", result)
	}
	if result.Banner != "fake FTP ready" {
		t.Errorf("unexpected banner: %q", result.Banner)
	}
}

func TestProbeOfflineOnWrongCode(t *testing.T) {
	addr := fakeGreetingServer(t, "421 service not available")
	host, portStr, _ := net.SplitHostPort(addr)
	port, _ := strconv.Atoi(portStr)

	p := NewProber(time.Second, port)
	result := p.Probe(context.Background(), host)
	if result.Online {
		t.Fatalf("expected offline, got %+v", result)
	}
}

func TestProbeOfflineOnConnectFailure(t *testing.T) {
	p := NewProber(200*time.Millisecond, 1)
	result := p.Probe(context.Background(), "127.0.0.1")
	if result.Online {
		t.Fatalf("expected offline for a closed port, got %+v", result)
	}
	if result.Err == nil {
		t.Error("expected a dial error")
	}
}

func TestProbeAllCollectsEveryResult(t *testing.T) {
	addr := fakeGreetingServer(t, "220 fan-out")

	// A Prober is bound to one port, so both addresses here target the
	// same fake server; the point of the test is fan-out and collection
	// through the pool, not distinguishing separate banners.
	_, portStr, _ := net.SplitHostPort(addr)
	port, _ := strconv.Atoi(portStr)

	p := NewProber(time.Second, port)
	results := ProbeAll(context.Background(), p, []string{"127.0.0.1", "127.0.0.1"}, 4)
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
}
