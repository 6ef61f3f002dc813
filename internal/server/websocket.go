package server

import (
	"context"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"go.uber.org/zap"

	"browser-pilot/internal/agent"
)

const writeTimeout = 10 * time.Second

// Message types sent by the page.
const (
	MsgURL         = "url"
	MsgInstruction = "instruction"
	MsgExecute     = "execute"
)

// Message types sent to the page.
const (
	MsgStatus    = "status"
	MsgPartial   = "partial"
	MsgSources   = "sources"
	MsgExecution = "execution"
	MsgBrowser   = "browser"
	MsgError     = "error"
	MsgDone      = "done"
)

type inbound struct {
	Type        string `json:"type"`
	URL         string `json:"url,omitempty"`
	Instruction string `json:"instruction,omitempty"`
	Code        string `json:"code,omitempty"`
}

type outbound struct {
	Type      string           `json:"type"`
	Message   string           `json:"message,omitempty"`
	Code      string           `json:"code,omitempty"`
	Sources   string           `json:"sources,omitempty"`
	Execution *agent.Execution `json:"execution,omitempty"`
	Snapshot  *agent.Snapshot  `json:"snapshot,omitempty"`
	Error     string           `json:"error,omitempty"`
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	// same-origin only
	ws, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.logger.Error("failed to accept websocket", zap.Error(err))
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "session ended"); closeErr != nil {
			s.logger.Debug("failed to close websocket", zap.Error(closeErr))
		}
	}()
	// 1 MiB covers full page markup in the debug panel
	ws.SetReadLimit(1 << 20)

	ctx := r.Context()
	for {
		var msg inbound
		if err := wsjson.Read(ctx, ws, &msg); err != nil {
			if websocket.CloseStatus(err) != -1 {
				s.logger.Debug("websocket closed by client")
			} else {
				s.logger.Debug("websocket read error", zap.Error(err))
			}
			return
		}
		if err := s.dispatch(ctx, ws, msg); err != nil {
			s.logger.Debug("websocket write error", zap.Error(err))
			return
		}
	}
}

// dispatch runs one request to completion. It returns only write errors.
func (s *Server) dispatch(ctx context.Context, ws *websocket.Conn, msg inbound) error {
	d := &wsDisplay{ctx: ctx, ws: ws}

	switch msg.Type {
	case MsgURL:
		snap, err := s.runner.SubmitURL(ctx, msg.URL)
		if err != nil {
			return d.send(outbound{Type: MsgError, Error: err.Error()})
		}
		d.Browser(snap)
	case MsgInstruction:
		if _, err := s.runner.SubmitInstruction(ctx, msg.Instruction, msg.URL, d); err != nil {
			return d.send(outbound{Type: MsgError, Error: err.Error()})
		}
	case MsgExecute:
		if _, err := s.runner.ExecuteCode(ctx, msg.Instruction, msg.Code, d); err != nil {
			return d.send(outbound{Type: MsgError, Error: err.Error()})
		}
	default:
		return d.send(outbound{Type: MsgError, Error: "unknown message type " + msg.Type})
	}

	if d.err != nil {
		return d.err
	}
	return d.send(outbound{Type: MsgDone})
}

// wsDisplay forwards pipeline updates to the page. The first write error
// sticks and silences later updates.
type wsDisplay struct {
	ctx context.Context
	ws  *websocket.Conn
	err error
}

func (d *wsDisplay) send(m outbound) error {
	if d.err != nil {
		return d.err
	}
	ctx, cancel := context.WithTimeout(d.ctx, writeTimeout)
	defer cancel()
	d.err = wsjson.Write(ctx, d.ws, m)
	return d.err
}

func (d *wsDisplay) Status(message string) {
	_ = d.send(outbound{Type: MsgStatus, Message: message})
}

func (d *wsDisplay) PartialCode(code string) {
	_ = d.send(outbound{Type: MsgPartial, Code: code})
}

func (d *wsDisplay) Sources(sources string) {
	_ = d.send(outbound{Type: MsgSources, Sources: sources})
}

func (d *wsDisplay) Execution(exec agent.Execution) {
	_ = d.send(outbound{Type: MsgExecution, Execution: &exec})
}

func (d *wsDisplay) Browser(snap agent.Snapshot) {
	_ = d.send(outbound{Type: MsgBrowser, Snapshot: &snap})
}
