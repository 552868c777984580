package shared

import (
	"bufio"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	TypeUsername   = "USERNAME"
	TypeMessage    = "MESSAGE"
	TypeUserJoined = "USER_JOINED"
)

// UnknownSender is used when a connection sends a MESSAGE before
// announcing a username.
const UnknownSender = "Unknown"

// Envelope is the JSON message unit exchanged over the relay, one
// object per line. Timestamp is milliseconds since the epoch.
type Envelope struct {
	Type      string `json:"type"`
	Content   string `json:"content"`
	Sender    string `json:"sender,omitempty"`
	Recipient string `json:"recipient,omitempty"`
	Timestamp int64  `json:"timestamp,omitempty"`
}

func NowMillis() int64 {
	return time.Now().UnixMilli()
}

// Client wraps one accepted connection. Writes go through a single
// mutex-guarded buffered writer so two concurrent broadcasts cannot
// interleave bytes on the same connection.
type Client struct {
	ID   string
	Conn net.Conn
	Addr string

	mu     sync.Mutex
	writer *bufio.Writer
}

func NewClient(conn net.Conn) *Client {
	return &Client{
		ID:     uuid.NewString(),
		Conn:   conn,
		Addr:   conn.RemoteAddr().String(),
		writer: bufio.NewWriter(conn),
	}
}

// Send writes data to the connection and flushes it. Callers pass a
// complete newline-terminated line.
func (c *Client) Send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.writer.Write(data); err != nil {
		return err
	}
	return c.writer.Flush()
}

func (c *Client) Close() error {
	return c.Conn.Close()
}
