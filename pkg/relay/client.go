package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Frame is one inbound relay frame; exactly one field is set.
type Frame struct {
	Binary []byte
	Text   []byte
}

// Client is one room membership on the relay. Inbound frames are read
// on Frames(); the channel closes when the connection ends.
type Client struct {
	conn   *websocket.Conn
	frames chan Frame

	writeMu sync.Mutex
	closed  sync.Once
}

// Dial connects, joins the room, and waits for the server
// acknowledgment before returning.
func Dial(ctx context.Context, url, room, participantID, name string) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial relay: %w", err)
	}

	payload, _ := json.Marshal(join{Type: "join", Room: room, ParticipantID: participantID, Name: name})
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		conn.Close()
		return nil, fmt.Errorf("send join: %w", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(joinTimeout))
	_, ackData, err := conn.ReadMessage()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("read join ack: %w", err)
	}
	var ack joined
	if err := json.Unmarshal(ackData, &ack); err != nil || ack.Type != "joined" {
		var wserr wsError
		if jerr := json.Unmarshal(ackData, &wserr); jerr == nil && wserr.Type == "error" {
			conn.Close()
			return nil, fmt.Errorf("join rejected: %s (%s)", wserr.Message, wserr.Code)
		}
		conn.Close()
		return nil, errors.New("unexpected join response")
	}
	_ = conn.SetReadDeadline(time.Time{})

	c := &Client{conn: conn, frames: make(chan Frame, outboundDepth)}
	conn.SetPingHandler(func(data string) error {
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(writeTimeout))
	})
	go c.readLoop()
	return c, nil
}

// Frames returns the inbound frame channel.
func (c *Client) Frames() <-chan Frame { return c.frames }

// SendFrame relays one binary PCM frame to the other room members.
func (c *Client) SendFrame(pcm []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := c.conn.WriteMessage(websocket.BinaryMessage, pcm); err != nil {
		return fmt.Errorf("send frame: %w", err)
	}
	return nil
}

// SendEvent relays one JSON text event to the other room members.
func (c *Client) SendEvent(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("send event: %w", err)
	}
	return nil
}

// Close announces a normal closure and tears the connection down.
func (c *Client) Close() error {
	var err error
	c.closed.Do(func() {
		c.writeMu.Lock()
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeTimeout))
		c.writeMu.Unlock()
		err = c.conn.Close()
	})
	return err
}

func (c *Client) readLoop() {
	defer close(c.frames)
	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var frame Frame
		switch messageType {
		case websocket.BinaryMessage:
			frame.Binary = data
		case websocket.TextMessage:
			frame.Text = data
		default:
			continue
		}
		select {
		case c.frames <- frame:
		default:
			// Reader stalled; drop rather than block the socket.
		}
	}
}
