// Package ws provides the WebSocket chat endpoint of the relay.
package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/xiaot623/gogo/relay/internal/protocol"
	"github.com/xiaot623/gogo/relay/internal/service"
)

const writeTimeout = 10 * time.Second

// Server handles WebSocket connections.
type Server struct {
	svc            *service.Service
	log            zerolog.Logger
	pingInterval   time.Duration
	maxMessageSize int64
	upgrader       websocket.Upgrader
}

// NewServer creates a new WebSocket server.
func NewServer(svc *service.Service, pingInterval time.Duration, maxMessageSize int64, log zerolog.Logger) *Server {
	if pingInterval <= 0 {
		pingInterval = 30 * time.Second
	}
	if maxMessageSize <= 0 {
		maxMessageSize = 65536
	}
	return &Server{
		svc:            svc,
		log:            log,
		pingInterval:   pingInterval,
		maxMessageSize: maxMessageSize,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

const inboxSize = 16

// connection is one client socket. Writes are serialized by mu; frames are
// handled in order by a single worker reading from inbox.
type connection struct {
	id    string
	conn  *websocket.Conn
	mu    sync.Mutex
	done  chan struct{}
	inbox chan []byte
}

func (c *connection) writeJSON(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteJSON(v)
}

func (c *connection) writeControl(messageType int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteControl(messageType, nil, time.Now().Add(writeTimeout))
}

// HandleWebSocket upgrades the request and serves the connection.
// GET /chat/ws
func (s *Server) HandleWebSocket(c echo.Context) error {
	ws, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("failed to upgrade websocket")
		return err
	}

	conn := &connection{
		id:    "conn_" + uuid.New().String()[:8],
		conn:  ws,
		done:  make(chan struct{}),
		inbox: make(chan []byte, inboxSize),
	}
	ws.SetReadLimit(s.maxMessageSize)

	// Sends keep running after the socket closes, like HTTP sends do.
	ctx := context.WithoutCancel(c.Request().Context())

	go s.pingLoop(conn)
	go s.processLoop(ctx, conn)
	go s.readLoop(conn)

	s.log.Debug().Str("conn_id", conn.id).Msg("websocket connected")
	return nil
}

// readLoop keeps reading while a send is in flight so that pongs extend the
// read deadline. Frames are queued for processLoop.
func (s *Server) readLoop(conn *connection) {
	defer func() {
		close(conn.inbox)
		close(conn.done)
		conn.conn.Close()
		s.log.Debug().Str("conn_id", conn.id).Msg("websocket closed")
	}()

	readTimeout := 2 * s.pingInterval
	_ = conn.conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.conn.SetPongHandler(func(string) error {
		return conn.conn.SetReadDeadline(time.Now().Add(readTimeout))
	})

	for {
		_, data, err := conn.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				s.log.Warn().Err(err).Str("conn_id", conn.id).Msg("websocket read failed")
			}
			return
		}
		_ = conn.conn.SetReadDeadline(time.Now().Add(readTimeout))

		conn.inbox <- data
	}
}

// processLoop handles queued frames one at a time.
func (s *Server) processLoop(ctx context.Context, conn *connection) {
	for data := range conn.inbox {
		s.handleMessage(ctx, conn, data)
	}
}

func (s *Server) pingLoop(conn *connection) {
	ticker := time.NewTicker(s.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-conn.done:
			return
		case <-ticker.C:
			if err := conn.writeControl(websocket.PingMessage); err != nil {
				return
			}
		}
	}
}

// handleMessage dispatches incoming messages to appropriate handlers.
func (s *Server) handleMessage(ctx context.Context, conn *connection, data []byte) {
	var base protocol.BaseMessage
	if err := json.Unmarshal(data, &base); err != nil {
		s.sendError(conn, "", http.StatusBadRequest, "invalid JSON message", nil)
		return
	}

	switch base.Type {
	case protocol.TypeChatStart:
		s.handleStart(ctx, conn, base)
	case protocol.TypeChatSend:
		s.handleSend(ctx, conn, base, data)
	default:
		s.sendError(conn, base.RequestID, http.StatusBadRequest, "unknown message type: "+base.Type, nil)
	}
}

func (s *Server) handleStart(ctx context.Context, conn *connection, base protocol.BaseMessage) {
	threadID, err := s.svc.StartConversation(ctx)
	if err != nil {
		_, details := service.Classify(err)
		s.sendError(conn, base.RequestID, http.StatusInternalServerError, err.Error(), details)
		return
	}
	s.send(conn, protocol.ThreadCreatedMessage{
		BaseMessage: s.base(protocol.TypeThreadCreated, base.RequestID),
		ThreadID:    threadID,
	})
}

func (s *Server) handleSend(ctx context.Context, conn *connection, base protocol.BaseMessage, data []byte) {
	var msg protocol.ChatSendMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		s.sendError(conn, base.RequestID, http.StatusBadRequest, "invalid chat.send message", nil)
		return
	}
	text, ok := msg.Message.(string)
	if !ok {
		s.sendError(conn, base.RequestID, http.StatusBadRequest, "message is required and must be a string", nil)
		return
	}
	threadID, _ := msg.ThreadID.(string)

	result, err := s.svc.Send(ctx, service.SendRequest{
		ThreadID: threadID,
		Message:  text,
		OnProgress: func(p service.Progress) {
			s.sendProgress(conn, base.RequestID, p)
		},
	})
	if err != nil {
		status, details := service.Classify(err)
		s.log.Error().Err(err).Str("conn_id", conn.id).Str("thread_id", threadID).Msg("websocket send failed")
		s.sendError(conn, base.RequestID, status, err.Error(), details)
		return
	}

	s.send(conn, protocol.ReplyMessage{
		BaseMessage: s.base(protocol.TypeReply, base.RequestID),
		ThreadID:    result.ThreadID,
		Reply:       result.Reply,
	})
}

func (s *Server) sendProgress(conn *connection, requestID string, p service.Progress) {
	switch p.Kind {
	case service.ProgressThreadCreated:
		s.send(conn, protocol.ThreadCreatedMessage{
			BaseMessage: s.base(protocol.TypeThreadCreated, requestID),
			ThreadID:    p.ThreadID,
		})
	case service.ProgressRunCreated, service.ProgressRunStatus:
		msgType := protocol.TypeRunStatus
		if p.Kind == service.ProgressRunCreated {
			msgType = protocol.TypeRunCreated
		}
		s.send(conn, protocol.RunStatusMessage{
			BaseMessage: s.base(msgType, requestID),
			ThreadID:    p.ThreadID,
			RunID:       p.RunID,
			Status:      string(p.Status),
			Attempt:     p.Attempt,
		})
	}
}

func (s *Server) sendError(conn *connection, requestID string, status int, message string, details json.RawMessage) {
	s.send(conn, protocol.ErrorMessage{
		BaseMessage: s.base(protocol.TypeError, requestID),
		Status:      status,
		Error:       message,
		Details:     details,
	})
}

func (s *Server) send(conn *connection, v interface{}) {
	if err := conn.writeJSON(v); err != nil {
		s.log.Debug().Err(err).Str("conn_id", conn.id).Msg("failed to write websocket message")
	}
}

func (s *Server) base(msgType, requestID string) protocol.BaseMessage {
	return protocol.BaseMessage{
		Type:      msgType,
		Ts:        time.Now().UnixMilli(),
		RequestID: requestID,
	}
}
