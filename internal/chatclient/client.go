// Package chatclient provides a terminal client for the relay's websocket
// chat endpoint.
package chatclient

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/xiaot623/gogo/relay/internal/protocol"
)

// Client represents a WebSocket chat client. It is not safe for concurrent
// use; each Send waits for its reply before returning.
type Client struct {
	conn     *websocket.Conn
	threadID string
	out      io.Writer
	seq      int
}

// Dial connects to the relay at url. Progress and replies are printed to out.
func Dial(ctx context.Context, url, threadID string, out io.Writer) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "dial %s", url)
	}
	return &Client{conn: conn, threadID: threadID, out: out}, nil
}

// ThreadID returns the conversation the client is attached to, if any.
func (c *Client) ThreadID() string {
	return c.threadID
}

// Close closes the client connection.
func (c *Client) Close() error {
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return c.conn.Close()
}

// Start asks the relay for a new thread and attaches to it.
func (c *Client) Start() (string, error) {
	requestID := c.nextRequestID()
	msg := protocol.ChatStartMessage{BaseMessage: c.base(protocol.TypeChatStart, requestID)}
	if err := c.conn.WriteJSON(msg); err != nil {
		return "", errors.Wrap(err, "write chat.start")
	}

	if _, err := c.await(requestID, true); err != nil {
		return "", err
	}
	return c.threadID, nil
}

// Send relays one message and blocks until the reply arrives.
func (c *Client) Send(text string) (string, error) {
	requestID := c.nextRequestID()
	msg := protocol.ChatSendMessage{
		BaseMessage: c.base(protocol.TypeChatSend, requestID),
		Message:     text,
	}
	if c.threadID != "" {
		msg.ThreadID = c.threadID
	}
	if err := c.conn.WriteJSON(msg); err != nil {
		return "", errors.Wrap(err, "write chat.send")
	}
	return c.await(requestID, false)
}

// RelayError is an error frame returned by the relay.
type RelayError struct {
	Status  int
	Message string
}

func (e *RelayError) Error() string {
	return fmt.Sprintf("relay error (%d): %s", e.Status, e.Message)
}

// await reads frames for requestID until a terminal one arrives. When
// start is set, thread.created ends the wait.
func (c *Client) await(requestID string, start bool) (string, error) {
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return "", errors.Wrap(err, "read")
		}

		var base protocol.BaseMessage
		if err := json.Unmarshal(data, &base); err != nil {
			return "", errors.Wrap(err, "unmarshal frame")
		}
		if base.RequestID != "" && base.RequestID != requestID {
			continue
		}

		switch base.Type {
		case protocol.TypeThreadCreated:
			var msg protocol.ThreadCreatedMessage
			if err := json.Unmarshal(data, &msg); err != nil {
				return "", errors.Wrap(err, "unmarshal thread.created")
			}
			c.threadID = msg.ThreadID
			fmt.Fprintf(c.out, "[thread] %s\n", msg.ThreadID)
			if start {
				return "", nil
			}
		case protocol.TypeRunCreated, protocol.TypeRunStatus:
			var msg protocol.RunStatusMessage
			if err := json.Unmarshal(data, &msg); err != nil {
				return "", errors.Wrap(err, "unmarshal run status")
			}
			fmt.Fprintf(c.out, "[run %s] %s\n", msg.RunID, msg.Status)
		case protocol.TypeReply:
			var msg protocol.ReplyMessage
			if err := json.Unmarshal(data, &msg); err != nil {
				return "", errors.Wrap(err, "unmarshal reply")
			}
			c.threadID = msg.ThreadID
			return msg.Reply, nil
		case protocol.TypeError:
			var msg protocol.ErrorMessage
			if err := json.Unmarshal(data, &msg); err != nil {
				return "", errors.Wrap(err, "unmarshal error")
			}
			return "", &RelayError{Status: msg.Status, Message: msg.Error}
		}
	}
}

// Run reads lines from in and relays each one until EOF, /quit or ctx is
// done. Relay errors are printed and the loop continues.
func (c *Client) Run(ctx context.Context, in io.Reader) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		fmt.Fprint(c.out, "> ")
		var line string
		select {
		case <-ctx.Done():
			fmt.Fprintln(c.out)
			return nil
		case l, ok := <-lines:
			if !ok {
				return nil
			}
			line = strings.TrimSpace(l)
		}

		switch line {
		case "":
			continue
		case "/quit":
			fmt.Fprintln(c.out, "Bye!")
			return nil
		}

		reply, err := c.Send(line)
		if err != nil {
			var relayErr *RelayError
			if !errors.As(err, &relayErr) {
				return err
			}
			fmt.Fprintf(c.out, "error: %v\n", relayErr)
			continue
		}
		fmt.Fprintf(c.out, "assistant: %s\n", reply)
	}
}

func (c *Client) nextRequestID() string {
	c.seq++
	return fmt.Sprintf("req_%d", c.seq)
}

func (c *Client) base(msgType, requestID string) protocol.BaseMessage {
	return protocol.BaseMessage{Type: msgType, Ts: time.Now().UnixMilli(), RequestID: requestID}
}
