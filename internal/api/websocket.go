package api

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/CodeMonkeyCybersecurity/idorscan/pkg/scanners/idor"
)

const (
	jobReadTimeout = 30 * time.Second
	writeTimeout   = 10 * time.Second
)

// Message types on the scan stream
const (
	MessageProgress = "progress"
	MessageReport   = "report"
	MessageError    = "error"
)

// StreamMessage is one frame of the scan stream
type StreamMessage struct {
	Type      string           `json:"type"`
	Completed int              `json:"completed,omitempty"`
	Total     int              `json:"total,omitempty"`
	Result    *idor.ScanResult `json:"result,omitempty"`
	Report    *idor.Report     `json:"report,omitempty"`
	Error     string           `json:"error,omitempty"`
}

// streamScan reads one scan job from the client, then streams a progress
// frame per completed request followed by the report.
func (s *Server) streamScan(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Warnw("Websocket upgrade failed",
			"error", err,
			"ip", c.ClientIP(),
		)
		return
	}
	defer conn.Close()

	conn.SetReadLimit(maxJobBytes)
	conn.SetReadDeadline(time.Now().Add(jobReadTimeout))
	_, data, err := conn.ReadMessage()
	if err != nil {
		s.log.Debugw("Websocket client sent no job", "error", err)
		return
	}
	conn.SetReadDeadline(time.Time{})

	job, err := s.parseJob(data)
	if err != nil {
		s.send(conn, StreamMessage{Type: MessageError, Error: err.Error()})
		return
	}

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	// The client sends nothing after the job; a read error means it left.
	go func() {
		for {
			if _, _, err := conn.NextReader(); err != nil {
				cancel()
				return
			}
		}
	}()

	report, err := s.runScan(ctx, job, func(p idor.Progress) {
		s.send(conn, StreamMessage{
			Type:      MessageProgress,
			Completed: p.Completed,
			Total:     p.Total,
			Result:    p.Result,
		})
	})
	if err != nil {
		s.send(conn, StreamMessage{Type: MessageError, Error: err.Error()})
		return
	}

	s.send(conn, StreamMessage{Type: MessageReport, Report: report})
	conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeTimeout))
}

// send writes one frame; callers never write concurrently
func (s *Server) send(conn *websocket.Conn, msg StreamMessage) {
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteJSON(msg); err != nil {
		s.log.Debugw("Websocket write failed",
			"type", msg.Type,
			"error", err,
		)
	}
}
