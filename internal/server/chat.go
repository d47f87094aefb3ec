package server

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"RagChat/internal/archive"
	"RagChat/internal/chatbot"
	"RagChat/internal/documents"
	"RagChat/internal/session"
)

// Client frame types.
const (
	FrameSubmit         = "submit"
	FrameRegenerate     = "regenerate"
	FrameDelete         = "delete"
	FrameToggleDocument = "toggle_document"
	FrameClearDocuments = "clear_documents"
	FrameSetInstruction = "set_instruction"
	FrameNewChat        = "new_chat"
	FrameLoad           = "load"
)

// Server frame types.
const (
	FrameMessages  = "messages"
	FrameRefresh   = "refresh"
	FrameDocuments = "documents"
	FrameError     = "error"
)

// ClientFrame is a request from the browser.
type ClientFrame struct {
	Type          string `json:"type"`
	Text          string `json:"text,omitempty"`
	MessageID     string `json:"messageId,omitempty"`
	GUID          string `json:"guid,omitempty"`
	InstructionID string `json:"instructionId,omitempty"`
	FilePath      string `json:"filePath,omitempty"`
	Title         string `json:"title,omitempty"`
}

// ServerFrame is pushed to the browser.
type ServerFrame struct {
	Type      string            `json:"type"`
	Messages  []session.Message `json:"messages,omitempty"`
	Title     string            `json:"title,omitempty"`
	Documents []documents.Entry `json:"documents,omitempty"`
	Error     string            `json:"error,omitempty"`
}

// chatSession is one websocket connection and the ChatBot behind it.
type chatSession struct {
	conn   *websocket.Conn
	bot    *chatbot.ChatBot
	logger *slog.Logger

	writeMu sync.Mutex
	turns   sync.WaitGroup
}

func (s *Server) chatSocket(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	deps := s.deps
	deps.Session = session.New()
	deps.Documents = documents.NewSelection()
	bot := chatbot.New(deps)

	cs := &chatSession{
		conn:   conn,
		bot:    bot,
		logger: s.logger.With("session_id", deps.Session.ID),
	}
	bot.SetObserver(cs)
	removeHook := deps.Documents.OnChange(func(entries []documents.Entry) {
		cs.send(ServerFrame{Type: FrameDocuments, Documents: entries})
	})
	defer removeHook()

	ctx := c.Request.Context()
	if _, err := bot.LoadModels(ctx); err != nil {
		cs.logger.Warn("failed to load models", "error", err)
	}

	cs.logger.Info("chat session opened", "model", bot.Model())
	cs.send(ServerFrame{Type: FrameMessages, Messages: bot.Session().Messages()})
	cs.readLoop(ctx)
	cs.turns.Wait()
	cs.logger.Info("chat session closed")
}

func (cs *chatSession) readLoop(ctx context.Context) {
	for {
		var frame ClientFrame
		if err := cs.conn.ReadJSON(&frame); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				cs.logger.Warn("failed to read frame", "error", err)
			}
			return
		}
		cs.dispatch(ctx, frame)
	}
}

// dispatch handles one frame. Model calls run in the background so the
// session keeps reading; the ChatBot rejects overlapping turns.
func (cs *chatSession) dispatch(ctx context.Context, frame ClientFrame) {
	switch frame.Type {
	case FrameSubmit:
		cs.background(func() error { return cs.bot.Submit(ctx, frame.Text) })

	case FrameRegenerate:
		cs.background(func() error { return cs.bot.Regenerate(ctx, frame.MessageID) })

	case FrameDelete:
		cs.report(cs.bot.DeleteMessage(ctx, frame.MessageID))

	case FrameToggleDocument:
		if !cs.bot.Documents().ToggleGUID(frame.GUID) {
			cs.report(errors.New("unknown document: " + frame.GUID))
		}

	case FrameClearDocuments:
		cs.bot.Documents().Clear()

	case FrameSetInstruction:
		if !cs.bot.Catalog().SetActive(frame.InstructionID) {
			cs.report(errors.New("unknown system instruction: " + frame.InstructionID))
		}

	case FrameNewChat:
		cs.report(cs.bot.NewChat())

	case FrameLoad:
		ref := archive.ConversationRef{Title: frame.Title, FilePath: frame.FilePath}
		cs.report(cs.bot.LoadConversation(ctx, ref))

	default:
		cs.report(errors.New("unknown frame type: " + frame.Type))
	}
}

func (cs *chatSession) background(fn func() error) {
	if cs.bot.Busy() {
		cs.report(chatbot.ErrTurnInProgress)
		return
	}
	cs.turns.Add(1)
	go func() {
		defer cs.turns.Done()
		if err := fn(); err != nil {
			cs.report(err)
			return
		}
		// the title is only known once the turn is persisted
		cs.MessagesChanged(cs.bot.Session().Messages())
	}()
}

func (cs *chatSession) report(err error) {
	if err == nil {
		return
	}
	cs.logger.Warn("chat request failed", "error", err)
	cs.send(ServerFrame{Type: FrameError, Error: err.Error()})
}

// MessagesChanged pushes the transcript.
func (cs *chatSession) MessagesChanged(messages []session.Message) {
	cs.send(ServerFrame{Type: FrameMessages, Messages: messages, Title: cs.bot.Session().Title()})
}

// Refresh tells the browser to redraw.
func (cs *chatSession) Refresh() {
	cs.send(ServerFrame{Type: FrameRefresh})
}

func (cs *chatSession) send(frame ServerFrame) {
	cs.writeMu.Lock()
	defer cs.writeMu.Unlock()
	if err := cs.conn.WriteJSON(frame); err != nil {
		cs.logger.Debug("failed to write frame", "type", frame.Type, "error", err)
	}
}
