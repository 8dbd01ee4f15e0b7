package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"intellidocs/internal/ai"
	"intellidocs/internal/app"
	"intellidocs/internal/transport/http/response"
)

type SessionHandler struct {
	ragService *app.RAGService
}

type AskRequest struct {
	Question string `json:"question" binding:"required"`
}

func NewSessionHandler(ragService *app.RAGService) *SessionHandler {
	return &SessionHandler{ragService: ragService}
}

func (h *SessionHandler) Create(c *gin.Context) {
	session := h.ragService.CreateSession()
	response.OK(c, gin.H{
		"session_id": session.ID,
		"created_at": session.CreatedAt,
	})
}

func (h *SessionHandler) Delete(c *gin.Context) {
	id := c.Param("id")
	if err := h.ragService.DeleteSession(c.Request.Context(), id); err != nil {
		writeError(c, err, "delete session failed")
		return
	}
	response.OK(c, gin.H{"deleted_session_id": id})
}

func (h *SessionHandler) Info(c *gin.Context) {
	info, err := h.ragService.Info(c.Param("id"))
	if err != nil {
		writeError(c, err, "session status failed")
		return
	}
	response.OK(c, info)
}

// UploadDocuments accepts a multipart form with one or more "files" parts,
// each a PDF, and ingests them into the session.
func (h *SessionHandler) UploadDocuments(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid multipart form")
		return
	}
	headers := form.File["files"]
	if len(headers) == 0 {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "no files uploaded")
		return
	}

	files := make([]app.UploadedFile, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "failed to read "+fh.Filename)
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "failed to read "+fh.Filename)
			return
		}
		files = append(files, app.UploadedFile{Name: fh.Filename, Data: data})
	}

	reports, err := h.ragService.Ingest(c.Request.Context(), c.Param("id"), files)
	if err != nil {
		writeError(c, err, "ingest failed")
		return
	}
	response.OK(c, gin.H{"reports": reports})
}

func (h *SessionHandler) ListDocuments(c *gin.Context) {
	docs, err := h.ragService.Documents(c.Param("id"))
	if err != nil {
		writeError(c, err, "list documents failed")
		return
	}
	response.OK(c, gin.H{"documents": docs})
}

func (h *SessionHandler) Ask(c *gin.Context) {
	var req AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}
	turn, err := h.ragService.Ask(c.Request.Context(), c.Param("id"), req.Question)
	if err != nil {
		writeError(c, err, "ask failed")
		return
	}
	response.OK(c, turn)
}

func (h *SessionHandler) History(c *gin.Context) {
	turns, err := h.ragService.History(c.Param("id"))
	if err != nil {
		writeError(c, err, "history failed")
		return
	}
	response.OK(c, gin.H{"turns": turns})
}

// Export returns the conversation as a downloadable JSON attachment.
func (h *SessionHandler) Export(c *gin.Context) {
	export, err := h.ragService.Export(c.Param("id"))
	if err != nil {
		writeError(c, err, "export failed")
		return
	}
	filename := fmt.Sprintf("intellidocs_chat_%s.json", time.Now().Format("20060102_150405"))
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.JSON(http.StatusOK, export)
}

func (h *SessionHandler) Reset(c *gin.Context) {
	id := c.Param("id")
	if err := h.ragService.Reset(c.Request.Context(), id); err != nil {
		writeError(c, err, "reset failed")
		return
	}
	response.OK(c, gin.H{"reset_session_id": id})
}

func (h *SessionHandler) ClearHistory(c *gin.Context) {
	id := c.Param("id")
	if err := h.ragService.ClearHistory(id); err != nil {
		writeError(c, err, "clear history failed")
		return
	}
	response.OK(c, gin.H{"cleared_session_id": id})
}

func writeError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, app.ErrSessionNotFound):
		response.Error(c, http.StatusNotFound, response.CodeSessionNotFound, err.Error())
	case errors.Is(err, app.ErrNotPDF):
		response.Error(c, http.StatusBadRequest, response.CodeNotPDF, err.Error())
	case errors.Is(err, app.ErrFileTooLarge):
		response.Error(c, http.StatusRequestEntityTooLarge, response.CodeFileTooLarge, err.Error())
	case errors.Is(err, app.ErrDuplicateDocument):
		response.Error(c, http.StatusConflict, response.CodeDuplicateDoc, err.Error())
	case errors.Is(err, app.ErrEmptyQuestion):
		response.Error(c, http.StatusBadRequest, response.CodeEmptyQuestion, err.Error())
	case errors.Is(err, app.ErrNoDocumentsProcessed):
		response.Error(c, http.StatusBadRequest, response.CodeNoDocuments, err.Error())
	case errors.Is(err, app.ErrInvalidInput):
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
	case errors.Is(err, ai.ErrEmbeddingService), errors.Is(err, ai.ErrGenerationService):
		response.Error(c, http.StatusBadGateway, response.CodeUpstreamAI, err.Error())
	default:
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, fallback)
	}
}
