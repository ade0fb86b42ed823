package handler

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"pdfqa/internal/auth"
	apperrors "pdfqa/internal/errors"
	"pdfqa/internal/model"
	"pdfqa/internal/service"
)

const (
	uploadField        = "file"
	msgNoFile          = "No PDF file uploaded"
	msgOnlyPDF         = "Only PDF files are allowed"
	defaultUploadName  = "document.pdf"
	mimeApplicationPDF = "application/pdf"
)

// PDFHandler handles document endpoints.
type PDFHandler struct {
	pdfService    service.PDFService
	publicBaseURL string
}

// NewPDFHandler creates a new PDF handler. publicBaseURL prefixes file links;
// when empty the request's own scheme and host are used.
func NewPDFHandler(pdfService service.PDFService, publicBaseURL string) *PDFHandler {
	return &PDFHandler{
		pdfService:    pdfService,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
	}
}

// QueryRequest represents a question about a PDF.
type QueryRequest struct {
	Question string `json:"question" form:"question" validate:"max=4000"`
	PDFID    string `json:"pdfId" form:"pdfId"`
}

// ClearRequest selects the PDF whose AI session is cleared.
type ClearRequest struct {
	PDFID string `json:"pdfId" form:"pdfId"`
}

// PDFSummary is the short form of a document.
type PDFSummary struct {
	ID           uuid.UUID `json:"_id"`
	Filename     string    `json:"filename"`
	OriginalName string    `json:"originalname"`
}

// UploadResponse represents an upload result.
type UploadResponse struct {
	Message    string          `json:"message"`
	Data       PDFSummary      `json:"data"`
	AIResponse json.RawMessage `json:"aiResponse" swaggertype:"object"`
}

// QueryResponse carries the AI server's answer.
type QueryResponse struct {
	Answer              string          `json:"answer"`
	ConversationHistory json.RawMessage `json:"conversation_history" swaggertype:"array,object"`
}

// ClearResponse represents a cleared session.
type ClearResponse struct {
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data" swaggertype:"object"`
}

// PDFItem is a document in a listing.
type PDFItem struct {
	ID           uuid.UUID `json:"_id"`
	Filename     string    `json:"filename"`
	OriginalName string    `json:"originalname"`
	Size         int64     `json:"size"`
	User         uuid.UUID `json:"user"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
	FileURL      string    `json:"fileUrl"`
}

// PDFListResponse represents the user's documents.
type PDFListResponse struct {
	Count int       `json:"count"`
	PDFs  []PDFItem `json:"pdfs"`
}

// MessageResponse is a bare confirmation.
type MessageResponse struct {
	Message string `json:"message"`
}

// HistoryItem is one recorded question.
type HistoryItem struct {
	ID        uuid.UUID   `json:"_id"`
	Question  string      `json:"question"`
	Answer    string      `json:"answer"`
	User      uuid.UUID   `json:"user"`
	PDF       *PDFSummary `json:"pdf"`
	CreatedAt time.Time   `json:"createdAt"`
}

// HistoryResponse represents a history listing.
type HistoryResponse struct {
	Count   int           `json:"count"`
	History []HistoryItem `json:"history"`
}

// Upload godoc
// @Summary Upload a PDF
// @Description Streams the file to disk and on to the AI server. Only application/pdf parts are accepted.
// @Tags pdf
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param file formData file true "PDF document"
// @Success 200 {object} UploadResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /pdf/upload [post]
func (h *PDFHandler) Upload(c echo.Context) error {
	user := auth.CurrentUser(c)

	reader, err := c.Request().MultipartReader()
	if err != nil {
		return apperrors.NewValidation(msgNoFile)
	}

	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			return apperrors.NewValidation(msgNoFile)
		}
		if err != nil {
			return apperrors.NewValidation(msgInvalidBody)
		}
		if part.FormName() != uploadField {
			_ = part.Close()
			continue
		}
		defer part.Close()

		mediaType, _, _ := mime.ParseMediaType(part.Header.Get(echo.HeaderContentType))
		if mediaType != mimeApplicationPDF {
			return apperrors.NewValidation(msgOnlyPDF)
		}
		name := part.FileName()
		if name == "" {
			name = defaultUploadName
		}

		res, err := h.pdfService.Upload(c.Request().Context(), user.ID, service.UploadInput{
			OriginalName: name,
			Content:      part,
		})
		if err != nil {
			return err
		}

		return c.JSON(http.StatusOK, UploadResponse{
			Message:    "PDF uploaded successfully",
			Data:       summarize(res.PDF),
			AIResponse: res.AIResponse,
		})
	}
}

// Query godoc
// @Summary Ask a question about a PDF
// @Tags pdf
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body QueryRequest true "Question and document id"
// @Success 200 {object} QueryResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /pdf/query [post]
func (h *PDFHandler) Query(c echo.Context) error {
	var req QueryRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	res, err := h.pdfService.Query(c.Request().Context(), auth.CurrentUser(c).ID, req.Question, req.PDFID)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, QueryResponse{
		Answer:              res.Answer,
		ConversationHistory: orNull(res.ConversationHistory),
	})
}

// ClearVectorData godoc
// @Summary Clear the AI session of a PDF
// @Description Local query history is kept.
// @Tags pdf
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body ClearRequest true "Document id"
// @Success 200 {object} ClearResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /pdf/clear-vector-data [post]
func (h *PDFHandler) ClearVectorData(c echo.Context) error {
	var req ClearRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	data, err := h.pdfService.ClearSession(c.Request().Context(), auth.CurrentUser(c).ID, req.PDFID)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, ClearResponse{
		Message: "Vector data cleared successfully",
		Data:    orNull(data),
	})
}

// List godoc
// @Summary List the user's PDFs
// @Tags pdf
// @Produce json
// @Security BearerAuth
// @Success 200 {object} PDFListResponse
// @Failure 401 {object} errors.ErrorResponse
// @Router /pdf/pdfs [get]
func (h *PDFHandler) List(c echo.Context) error {
	pdfs, err := h.pdfService.List(c.Request().Context(), auth.CurrentUser(c).ID)
	if err != nil {
		return err
	}

	base := h.fileBaseURL(c)
	items := make([]PDFItem, 0, len(pdfs))
	for _, p := range pdfs {
		items = append(items, PDFItem{
			ID:           p.ID,
			Filename:     p.Filename,
			OriginalName: p.OriginalName,
			Size:         p.Size,
			User:         p.UserID,
			CreatedAt:    p.CreatedAt,
			UpdatedAt:    p.UpdatedAt,
			FileURL:      base + "/uploads/" + p.Filename,
		})
	}

	return c.JSON(http.StatusOK, PDFListResponse{Count: len(items), PDFs: items})
}

// Delete godoc
// @Summary Delete a PDF and its history
// @Tags pdf
// @Produce json
// @Security BearerAuth
// @Param id path string true "PDF ID"
// @Success 200 {object} MessageResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /pdf/pdfs/{id} [delete]
func (h *PDFHandler) Delete(c echo.Context) error {
	if err := h.pdfService.Delete(c.Request().Context(), auth.CurrentUser(c).ID, c.Param("id")); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, MessageResponse{Message: "PDF deleted successfully"})
}

// History godoc
// @Summary Query history
// @Description Newest first. search matches question or answer, case-insensitively.
// @Tags pdf
// @Produce json
// @Security BearerAuth
// @Param pdfId query string false "Only entries for this PDF"
// @Param search query string false "Substring to look for"
// @Param limit query int false "Max entries (default 50, max 500)"
// @Success 200 {object} HistoryResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /pdf/history [get]
func (h *PDFHandler) History(c echo.Context) error {
	entries, err := h.pdfService.History(c.Request().Context(), auth.CurrentUser(c).ID, service.HistoryQuery{
		PDFID:  c.QueryParam("pdfId"),
		Search: c.QueryParam("search"),
		Limit:  c.QueryParam("limit"),
	})
	if err != nil {
		return err
	}

	items := make([]HistoryItem, 0, len(entries))
	for _, e := range entries {
		item := HistoryItem{
			ID:        e.ID,
			Question:  e.Question,
			Answer:    e.Answer,
			User:      e.UserID,
			CreatedAt: e.CreatedAt,
		}
		if e.PDF != nil {
			s := summarize(e.PDF)
			item.PDF = &s
		}
		items = append(items, item)
	}

	return c.JSON(http.StatusOK, HistoryResponse{Count: len(items), History: items})
}

func (h *PDFHandler) fileBaseURL(c echo.Context) string {
	if h.publicBaseURL != "" {
		return h.publicBaseURL
	}
	return c.Scheme() + "://" + c.Request().Host
}

func summarize(p *model.PDF) PDFSummary {
	return PDFSummary{ID: p.ID, Filename: p.Filename, OriginalName: p.OriginalName}
}

func orNull(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 {
		return json.RawMessage("null")
	}
	return raw
}
