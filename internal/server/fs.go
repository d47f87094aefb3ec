package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"RagChat/internal/archive"
	"RagChat/internal/session"
)

func (s *Server) listConversations(c *gin.Context) {
	refs, err := s.archive.List(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, refs)
}

func (s *Server) fetchConversation(c *gin.Context) {
	var req archive.ConversationPathRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	conv, err := s.archive.Fetch(c.Request.Context(), req.ConversationPath)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, conv)
}

func (s *Server) persistConversation(c *gin.Context) {
	var req archive.PersistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	title := session.CleanTitle(req.ConvoTitle)
	if title == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "convoTitle is required"})
		return
	}
	filename := strings.TrimSpace(req.Filename)
	if filename == "" {
		filename = session.ConversationFilename(title)
	}

	path, err := s.archive.Persist(c.Request.Context(), title, filename, req.Messages)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, archive.PersistResponse{OK: true, FilePath: path})
}

func (s *Server) deleteConversation(c *gin.Context) {
	var req archive.ConversationPathRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.archive.Delete(c.Request.Context(), req.ConversationPath); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *Server) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, archive.ErrInvalidPath):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, archive.ErrConversationNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		s.logger.Error("archive request failed", "path", c.Request.URL.Path, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "archive unavailable"})
	}
}
