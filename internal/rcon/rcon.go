// Package rcon is a client for the Source RCON protocol spoken by
// Minecraft servers.
//
// A packet is a little-endian int32 length followed by an int32 request
// id, an int32 type, the body, and two NUL bytes. The length counts every
// byte after itself.
package rcon

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"
)

// Packet types.
const (
	TypeResponse     int32 = 0
	TypeCommand      int32 = 2
	TypeAuthResponse int32 = 2
	TypeAuth         int32 = 3
)

const (
	headerSize = 8 // id + type
	// MaxCommandLength is the longest command body a Minecraft server
	// accepts.
	MaxCommandLength = 1446
	// maxPacketSize bounds the length field of incoming packets.
	maxPacketSize = 4096 + headerSize + 2
)

// ErrAuthFailed is returned when the server rejects the password.
var ErrAuthFailed = errors.New("rcon authentication failed")

// ErrCommandTooLong is returned for commands over MaxCommandLength bytes.
var ErrCommandTooLong = errors.New("rcon command too long")

// Packet is one RCON frame.
type Packet struct {
	ID   int32
	Type int32
	Body string
}

// WritePacket encodes p to w.
func WritePacket(w io.Writer, p Packet) error {
	var buf bytes.Buffer
	size := int32(headerSize + len(p.Body) + 2)
	_ = binary.Write(&buf, binary.LittleEndian, size)
	_ = binary.Write(&buf, binary.LittleEndian, p.ID)
	_ = binary.Write(&buf, binary.LittleEndian, p.Type)
	buf.WriteString(p.Body)
	buf.Write([]byte{0, 0})

	_, err := w.Write(buf.Bytes())
	return err
}

// ReadPacket decodes one packet from r.
func ReadPacket(r io.Reader) (Packet, error) {
	var size int32
	if err := binary.Read(r, binary.LittleEndian, &size); err != nil {
		return Packet{}, err
	}
	if size < headerSize+2 || size > maxPacketSize {
		return Packet{}, fmt.Errorf("rcon: invalid packet size %d", size)
	}

	payload := make([]byte, size)
	if _, err := io.ReadFull(r, payload); err != nil {
		return Packet{}, err
	}

	return Packet{
		ID:   int32(binary.LittleEndian.Uint32(payload[0:4])),
		Type: int32(binary.LittleEndian.Uint32(payload[4:8])),
		Body: string(bytes.TrimRight(payload[8:], "\x00")),
	}, nil
}

// Client is an RCON connection that dials lazily and redials on the next
// call after any I/O error.
//
// Thread-safety: safe for concurrent use; calls are serialized.
type Client struct {
	addr     string
	password string
	timeout  time.Duration

	mu     sync.Mutex
	conn   net.Conn
	nextID int32
}

// NewClient creates a client for addr. timeout bounds dialing and each
// round trip when the caller's context has no earlier deadline.
func NewClient(addr, password string, timeout time.Duration) *Client {
	return &Client{addr: addr, password: password, timeout: timeout}
}

// Execute runs command and returns the server's response text.
func (c *Client) Execute(ctx context.Context, command string) (string, error) {
	if len(command) > MaxCommandLength {
		return "", fmt.Errorf("%w: %d bytes", ErrCommandTooLong, len(command))
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.connectLocked(ctx); err != nil {
		return "", err
	}

	resp, err := c.roundTripLocked(ctx, Packet{Type: TypeCommand, Body: command}, TypeResponse)
	if err != nil {
		c.closeLocked()
		return "", fmt.Errorf("rcon execute: %w", err)
	}
	return resp.Body, nil
}

// Close closes the connection, if any.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeLocked()
}

func (c *Client) connectLocked(ctx context.Context) error {
	if c.conn != nil {
		return nil
	}

	d := net.Dialer{Timeout: c.timeout}
	conn, err := d.DialContext(ctx, "tcp", c.addr)
	if err != nil {
		return fmt.Errorf("rcon dial %s: %w", c.addr, err)
	}
	c.conn = conn

	resp, err := c.roundTripLocked(ctx, Packet{Type: TypeAuth, Body: c.password}, TypeAuthResponse)
	if err != nil {
		c.closeLocked()
		return fmt.Errorf("rcon login: %w", err)
	}
	if resp.ID == -1 {
		c.closeLocked()
		return ErrAuthFailed
	}

	slog.Debug("rcon connected", "addr", c.addr)
	return nil
}

// roundTripLocked sends p and returns the first reply of type want that
// carries its id. An auth failure reply carries id -1 and is returned as is.
func (c *Client) roundTripLocked(ctx context.Context, p Packet, want int32) (Packet, error) {
	c.nextID++
	if c.nextID <= 0 {
		c.nextID = 1
	}
	p.ID = c.nextID

	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := c.conn.SetDeadline(deadline); err != nil {
		return Packet{}, err
	}

	if err := WritePacket(c.conn, p); err != nil {
		return Packet{}, err
	}

	for {
		resp, err := ReadPacket(c.conn)
		if err != nil {
			return Packet{}, err
		}
		if resp.Type == want && (resp.ID == p.ID || resp.ID == -1) {
			return resp, nil
		}
		// Some servers send an empty response value ahead of the auth reply.
	}
}

func (c *Client) closeLocked() error {
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}
