package server

import (
	"bufio"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/Aman-CERP/linesearch/internal/logstore"
)

// maxReplySize bounds how much a client reads back.
const maxReplySize = 64 << 20

// ErrServerError is wrapped by client calls whose reply was an ERROR line.
var ErrServerError = errors.New("server returned an error")

// Client sends single-request connections to a linesearch server.
type Client struct {
	addr      string
	timeout   time.Duration
	tlsConfig *tls.Config
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithTimeout bounds dial, send, and receive. Default 10s.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithTLS dials with TLS using cfg.
func WithTLS(cfg *tls.Config) ClientOption {
	return func(c *Client) { c.tlsConfig = cfg }
}

// NewClient creates a client for addr (host:port).
func NewClient(addr string, opts ...ClientOption) *Client {
	c := &Client{addr: addr, timeout: 10 * time.Second}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Addr returns the server address.
func (c *Client) Addr() string { return c.addr }

// Connect dials the server.
func (c *Client) Connect(ctx context.Context) (net.Conn, error) {
	dialer := &net.Dialer{Timeout: c.timeout}
	var (
		conn net.Conn
		err  error
	)
	if c.tlsConfig != nil {
		td := &tls.Dialer{NetDialer: dialer, Config: c.tlsConfig}
		conn, err = td.DialContext(ctx, "tcp", c.addr)
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", c.addr)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", c.addr, err)
	}
	return conn, nil
}

// IsRunning reports whether the server accepts connections.
func (c *Client) IsRunning(ctx context.Context) bool {
	conn, err := c.Connect(ctx)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

// Send writes payload as the single request of a new connection and
// returns the full reply.
func (c *Client) Send(ctx context.Context, payload []byte) (string, error) {
	conn, err := c.Connect(ctx)
	if err != nil {
		return "", err
	}
	defer conn.Close()

	// Set deadline from context or timeout
	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return "", fmt.Errorf("failed to set deadline: %w", err)
	}

	if _, err := conn.Write(payload); err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	if cw, ok := conn.(interface{ CloseWrite() error }); ok {
		_ = cw.CloseWrite()
	}

	reply, err := io.ReadAll(io.LimitReader(conn, maxReplySize))
	if err != nil {
		return "", fmt.Errorf("failed to read reply: %w", err)
	}
	return string(reply), nil
}

// SendMessage encodes msg and sends it.
func (c *Client) SendMessage(ctx context.Context, msg Message) (string, error) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("failed to encode request: %w", err)
	}
	return c.Send(ctx, payload)
}

// CreateLog runs one query. A reply with an ERROR headline is returned
// as a Reply, not an error.
func (c *Client) CreateLog(ctx context.Context, query, algo string) (*Reply, error) {
	raw, err := c.SendMessage(ctx, NewCreateLog(query, algo))
	if err != nil {
		return nil, err
	}
	return ParseReply(raw)
}

// ReadLogs fetches every stored log entry.
func (c *Client) ReadLogs(ctx context.Context) ([]logstore.Entry, error) {
	raw, err := c.SendMessage(ctx, NewReadLogs())
	if err != nil {
		return nil, err
	}
	if strings.HasPrefix(raw, errorPrefix) {
		reply, perr := ParseReply(raw)
		if perr != nil {
			return nil, fmt.Errorf("%w: %s", ErrServerError, firstLine(raw))
		}
		return nil, fmt.Errorf("%w: %s", ErrServerError, reply.Error)
	}

	var entries []logstore.Entry
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		return nil, fmt.Errorf("failed to decode logs: %w", err)
	}
	return entries, nil
}

// Reply is a parsed create_log reply.
type Reply struct {
	Status        logstore.Status
	Error         string
	Query         string
	RequestingIP  string
	ExecutionTime time.Duration
	Timestamp     time.Time
	LogID         string
	Raw           string
}

// Found reports whether the query matched a line.
func (r *Reply) Found() bool { return r.Status == logstore.StatusFound }

// ParseReply parses the plain text create_log reply. N/A fields come back
// empty.
func ParseReply(raw string) (*Reply, error) {
	r := &Reply{Raw: raw}
	sc := bufio.NewScanner(strings.NewReader(raw))
	sc.Buffer(make([]byte, 0, 4096), maxReplySize)

	if !sc.Scan() {
		return nil, fmt.Errorf("empty reply")
	}
	switch headline := sc.Text(); {
	case headline == HeadlineExists:
		r.Status = logstore.StatusFound
	case headline == HeadlineNotFound:
		r.Status = logstore.StatusNotFound
	case strings.HasPrefix(headline, errorPrefix):
		r.Status = logstore.StatusError
		r.Error = strings.TrimPrefix(headline, errorPrefix)
	default:
		return nil, fmt.Errorf("unexpected reply headline %q", headline)
	}

	for sc.Scan() {
		key, value, ok := strings.Cut(strings.TrimPrefix(sc.Text(), "  "), ": ")
		if !ok {
			continue
		}
		if value == notAvailable {
			value = ""
		}
		switch key {
		case "Query":
			r.Query = value
		case "Requesting IP":
			r.RequestingIP = value
		case "Execution Time":
			secs, err := strconv.ParseFloat(strings.TrimSuffix(value, "s"), 64)
			if err != nil {
				return nil, fmt.Errorf("invalid execution time %q: %w", value, err)
			}
			r.ExecutionTime = time.Duration(math.Round(secs * float64(time.Second)))
		case "Timestamp":
			ts, err := time.Parse(time.RFC3339Nano, value)
			if err != nil {
				return nil, fmt.Errorf("invalid timestamp %q: %w", value, err)
			}
			r.Timestamp = ts
		case "Log ID":
			r.LogID = value
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return r, nil
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}
