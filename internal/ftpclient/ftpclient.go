// Package ftpclient implements a minimal anonymous-only FTP control-channel
// client: connect, login, LIST, and best-effort OPTS UTF8 ON. It exists
// because the reference FTP clients in the corpus (nieware-goftp,
// zippoxer-goftp) are standalone files without a go.mod, not importable
// dependencies. Their control-flow and parsing idiom is reused here
// directly against the stdlib net package, the same way the teacher's own
// protocol testers (internal/testing/protocols) talk raw FTP/telnet.
package ftpclient

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"net/textproto"
	"strconv"
	"strings"
	"time"
)

// Client is a single FTP control-channel connection.
type Client struct {
	conn net.Conn
	text *textproto.Conn
}

// Dial connects to host:21 (or the given port), reads the greeting, and
// returns a connected-but-unauthenticated Client.
func Dial(ctx context.Context, address string, port int, timeout time.Duration) (*Client, error) {
	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", fmt.Sprintf("%s:%d", address, port))
	if err != nil {
		return nil, fmt.Errorf("ftpclient: dial %s: %w", address, err)
	}

	text := textproto.NewConn(conn)
	if _, _, err := text.ReadResponse(220); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ftpclient: greeting: %w", err)
	}

	return &Client{conn: conn, text: text}, nil
}

// Login performs anonymous authentication.
func (c *Client) Login() error {
	if err := c.text.PrintfLine("USER anonymous"); err != nil {
		return err
	}
	code, _, err := c.text.ReadResponse(0)
	if err != nil {
		return err
	}
	if code == 230 {
		return nil // no password required
	}
	if code != 331 {
		return fmt.Errorf("ftpclient: unexpected USER response %d", code)
	}

	if err := c.text.PrintfLine("PASS anonymous@"); err != nil {
		return err
	}
	if _, _, err := c.text.ReadResponse(230); err != nil {
		return fmt.Errorf("ftpclient: login rejected: %w", err)
	}
	return nil
}

// EnableUTF8 issues the best-effort OPTS UTF8 ON preflight. A permanent
// rejection is returned to the caller to log as a warning; the walk
// proceeds regardless, relying on the listparse encoding fallback.
func (c *Client) EnableUTF8() error {
	if err := c.text.PrintfLine("OPTS UTF8 ON"); err != nil {
		return err
	}
	_, _, err := c.text.ReadResponse(200)
	return err
}

// List issues LIST against the given raw (pre-decoded) path over a fresh
// passive data connection and returns its raw lines, undecoded.
func (c *Client) List(path string) ([]string, error) {
	data, err := c.openPassive()
	if err != nil {
		return nil, err
	}
	defer data.Close()

	if err := c.text.PrintfLine("LIST %s", path); err != nil {
		return nil, err
	}
	code, _, err := c.text.ReadResponse(0)
	if err != nil {
		return nil, err
	}
	if code != 150 && code != 125 {
		return nil, fmt.Errorf("ftpclient: LIST %s rejected with %d", path, code)
	}

	var lines []string
	scanner := bufio.NewScanner(data)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if line != "" {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("ftpclient: reading LIST data: %w", err)
	}

	if _, _, err := c.text.ReadResponse(226); err != nil {
		return nil, fmt.Errorf("ftpclient: LIST completion: %w", err)
	}

	return lines, nil
}

// openPassive issues PASV and dials the returned data address.
func (c *Client) openPassive() (net.Conn, error) {
	if err := c.text.PrintfLine("PASV"); err != nil {
		return nil, err
	}
	_, msg, err := c.text.ReadResponse(227)
	if err != nil {
		return nil, fmt.Errorf("ftpclient: PASV: %w", err)
	}

	host, port, err := parsePASV(msg)
	if err != nil {
		return nil, err
	}

	conn, err := net.DialTimeout("tcp", fmt.Sprintf("%s:%d", host, port), 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("ftpclient: data connect: %w", err)
	}
	return conn, nil
}

// parsePASV extracts host:port from a "227 Entering Passive Mode
// (h1,h2,h3,h4,p1,p2)" response.
func parsePASV(msg string) (string, int, error) {
	start := strings.Index(msg, "(")
	end := strings.Index(msg, ")")
	if start < 0 || end < 0 || end < start {
		return "", 0, fmt.Errorf("ftpclient: malformed PASV response: %q", msg)
	}

	parts := strings.Split(msg[start+1:end], ",")
	if len(parts) != 6 {
		return "", 0, fmt.Errorf("ftpclient: malformed PASV response: %q", msg)
	}

	nums := make([]int, 6)
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return "", 0, fmt.Errorf("ftpclient: malformed PASV response: %q", msg)
		}
		nums[i] = n
	}

	host := fmt.Sprintf("%d.%d.%d.%d", nums[0], nums[1], nums[2], nums[3])
	port := nums[4]*256 + nums[5]
	return host, port, nil
}

// Quit sends QUIT and closes the connection.
func (c *Client) Quit() error {
	_ = c.text.PrintfLine("QUIT")
	return c.conn.Close()
}

// Close closes the connection without sending QUIT.
func (c *Client) Close() error {
	return c.conn.Close()
}
