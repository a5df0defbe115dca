package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
)

// WebSocket upgrader with reasonable defaults.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Allow connections from any origin in development
		// In production, you should check against allowed origins
		return true
	},
}

// ProcessWebSocketRequest requests process() over a WebSocket
// connection. Progress is reported once when processing starts and once
// with the final result; no per-page progress messages are sent.
type ProcessWebSocketRequest struct {
	File     []byte `json:"file"` // raw bytes, base64-decoded by encoding/json
	Filename string `json:"filename"`
}

// ProcessWebSocketResponse is one progress or completion message sent
// back over the connection.
type ProcessWebSocketResponse struct {
	Status    string           `json:"status"` // "processing", "completed", "error"
	Progress  float64          `json:"progress,omitempty"`
	Result    *ProcessPayload  `json:"result,omitempty"`
	Error     string           `json:"error,omitempty"`
	RequestID string           `json:"request_id,omitempty"`
}

// WebSocketConnWriter is an interface for writing WebSocket messages.
type WebSocketConnWriter interface {
	WriteMessage(messageType int, data []byte) error
}

// processWebSocketHandler handles WebSocket connections for streaming
// process() progress, grounded in the teacher's ocrWebSocketHandler.
func (s *Server) processWebSocketHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("Failed to upgrade connection to WebSocket", "error", err)
		return
	}
	defer func() {
		_ = conn.Close()
	}()

	websocketConnections.Inc()
	defer websocketConnections.Dec()

	slog.Info("WebSocket connection established", "remote_addr", r.RemoteAddr)

	s.handleWebSocketConnection(conn)
}

// handleWebSocketConnection processes messages from a WebSocket connection.
func (s *Server) handleWebSocketConnection(conn *websocket.Conn) {
	_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			if err := conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(10*time.Second)); err != nil {
				return
			}
		}
	}()

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Error("WebSocket error", "error", err)
			}
			break
		}

		websocketMessagesTotal.WithLabelValues("received").Inc()

		if messageType == websocket.TextMessage {
			s.handleWebSocketMessage(conn, data)
		}
	}
}

// handleWebSocketMessage processes one process() request sent over
// the socket, reporting discrete progress before the final result.
func (s *Server) handleWebSocketMessage(conn *websocket.Conn, data []byte) {
	var req ProcessWebSocketRequest
	if err := json.Unmarshal(data, &req); err != nil {
		s.sendWebSocketError(conn, "invalid_request", fmt.Sprintf("Failed to parse request: %v", err))
		return
	}
	if len(req.File) == 0 {
		s.sendWebSocketError(conn, "invalid_request", "No file data provided")
		return
	}

	requestID := strconv.FormatInt(int64(len(req.File))+time.Now().Unix(), 10)

	s.sendWebSocketResponse(conn, ProcessWebSocketResponse{
		Status:    "processing",
		Progress:  0.1,
		RequestID: requestID,
	})

	start := time.Now()
	assembly, err := s.pipeline.Process(context.Background(), req.File, req.Filename)
	duration := time.Since(start)

	if err != nil {
		processRequestsTotal.WithLabelValues("websocket", "error").Inc()
		s.sendWebSocketError(conn, "processing_error", fmt.Sprintf("processing failed: %v", err))
		return
	}

	processRequestsTotal.WithLabelValues("websocket", "success").Inc()
	processDuration.WithLabelValues("websocket").Observe(duration.Seconds())
	dimensionsDetected.WithLabelValues("websocket").Observe(float64(len(assembly.AllDimensions)))
	pagesProcessed.WithLabelValues("websocket").Observe(float64(len(assembly.Pages)))

	s.sendWebSocketResponse(conn, ProcessWebSocketResponse{
		Status:    "completed",
		Progress:  1.0,
		Result:    toProcessPayload(assembly),
		RequestID: requestID,
	})
}

// sendWebSocketResponse sends a response message over WebSocket.
func (s *Server) sendWebSocketResponse(conn WebSocketConnWriter, response ProcessWebSocketResponse) {
	data, err := json.Marshal(response)
	if err != nil {
		slog.Error("Failed to marshal WebSocket response", "error", err)
		return
	}

	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		slog.Error("Failed to send WebSocket message", "error", err)
		return
	}

	websocketMessagesTotal.WithLabelValues("sent").Inc()
}

// sendWebSocketError sends an error message over WebSocket.
func (s *Server) sendWebSocketError(conn WebSocketConnWriter, errorType, message string) {
	response := ProcessWebSocketResponse{
		Status: "error",
		Error:  fmt.Sprintf("%s: %s", errorType, message),
	}

	data, err := json.Marshal(response)
	if err != nil {
		slog.Error("Failed to marshal WebSocket error response", "error", err)
		return
	}

	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		slog.Error("Failed to send WebSocket error message", "error", err)
		return
	}

	websocketMessagesTotal.WithLabelValues("sent").Inc()
}
