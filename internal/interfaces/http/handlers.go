package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/yuchilin/storeledger/internal/application/service"
	"github.com/yuchilin/storeledger/internal/domain/entity"
)

// Handlers contains all HTTP request handlers
type Handlers struct {
	invoiceService   service.InvoiceService
	importService    service.ImportService
	reconcileService service.ReconcileService
	logger           Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(
	invoiceService service.InvoiceService,
	importService service.ImportService,
	reconcileService service.ReconcileService,
	logger Logger,
) *Handlers {
	return &Handlers{
		invoiceService:   invoiceService,
		importService:    importService,
		reconcileService: reconcileService,
		logger:           logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

// ScanRequest carries one captured QR pair.
type ScanRequest struct {
	QRLeft  string `json:"qr_left" binding:"required"`
	QRRight string `json:"qr_right"`
}

// CloseRequest carries the counted drawer cash for a day closure.
type CloseRequest struct {
	ActualCash string `json:"actual_cash" binding:"required"`
	ClosedBy   string `json:"closed_by" binding:"required"`
}

// ReopenRequest identifies who reopened a closed day.
type ReopenRequest struct {
	Actor string `json:"actor" binding:"required"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data: HealthResponse{
			Status:    "healthy",
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Version:   "1.0.0",
		},
	})
}

// ScanInvoice handles POST /api/v1/invoices/scan
func (h *Handlers) ScanInvoice(c *gin.Context) {
	var req ScanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid request body"})
		return
	}

	result, err := h.invoiceService.ScanQRPair(c.Request.Context(), req.QRLeft, req.QRRight)
	if err != nil {
		h.rejectOrFail(c, err, "failed to ingest invoice")
		return
	}

	status := http.StatusCreated
	if result.Duplicate {
		status = http.StatusOK
	}
	c.JSON(status, Response{Success: true, Data: result})
}

// GetInvoice handles GET /api/v1/invoices/:number
func (h *Handlers) GetInvoice(c *gin.Context) {
	invoice, err := h.invoiceService.GetByNumber(c.Request.Context(), c.Param("number"))
	if err != nil {
		h.logger.Error("Failed to get invoice", "error", err)
		c.JSON(http.StatusInternalServerError, Response{Success: false, Error: "failed to retrieve invoice"})
		return
	}
	if invoice == nil {
		c.JSON(http.StatusNotFound, Response{Success: false, Error: "invoice not found"})
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: invoice})
}

// VerifyInvoice handles POST /api/v1/invoices/:number/verify
func (h *Handlers) VerifyInvoice(c *gin.Context) {
	invoice, err := h.invoiceService.VerifyInvoice(c.Request.Context(), c.Param("number"))
	if err != nil {
		h.logger.Error("Failed to verify invoice", "error", err)
		c.JSON(http.StatusInternalServerError, Response{Success: false, Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: invoice})
}

// ListInvoices handles GET /api/v1/invoices?from=&to=
func (h *Handlers) ListInvoices(c *gin.Context) {
	from, to, ok := h.dateRange(c)
	if !ok {
		return
	}
	invoices, err := h.invoiceService.ListByDateRange(c.Request.Context(), from, to)
	if err != nil {
		h.logger.Error("Failed to list invoices", "error", err)
		c.JSON(http.StatusInternalServerError, Response{Success: false, Error: "failed to list invoices"})
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: invoices})
}

// ImportTransactions handles POST /api/v1/transactions/import
func (h *Handlers) ImportTransactions(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "multipart field 'file' is required"})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		h.logger.Error("Failed to open uploaded file", "error", err)
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "failed to read uploaded file"})
		return
	}
	defer file.Close()

	report, err := h.importService.ImportFile(c.Request.Context(), fileHeader.Filename, file)
	if err != nil {
		h.rejectOrFail(c, err, "failed to import batch")
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: report})
}

// ListTransactions handles GET /api/v1/transactions?from=&to=
func (h *Handlers) ListTransactions(c *gin.Context) {
	from, to, ok := h.dateRange(c)
	if !ok {
		return
	}
	txns, err := h.reconcileService.ListTransactions(c.Request.Context(), from, to)
	if err != nil {
		h.logger.Error("Failed to list transactions", "error", err)
		c.JSON(http.StatusInternalServerError, Response{Success: false, Error: "failed to list transactions"})
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: txns})
}

// ListSummaries handles GET /api/v1/summaries?from=&to=. Stored summaries
// only; days never computed stay absent.
func (h *Handlers) ListSummaries(c *gin.Context) {
	from, to, ok := h.dateRange(c)
	if !ok {
		return
	}
	summaries, err := h.reconcileService.ListSummaries(c.Request.Context(), from, to)
	if err != nil {
		h.logger.Error("Failed to list summaries", "error", err)
		c.JSON(http.StatusInternalServerError, Response{Success: false, Error: "failed to list summaries"})
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: summaries})
}

// GetSummary handles GET /api/v1/summaries/:date. The summary is recomputed
// from stored transactions on every read.
func (h *Handlers) GetSummary(c *gin.Context) {
	day, ok := h.datePath(c)
	if !ok {
		return
	}
	summary, err := h.reconcileService.Recompute(c.Request.Context(), day)
	if err != nil {
		h.logger.Error("Failed to compute summary", "error", err)
		c.JSON(http.StatusInternalServerError, Response{Success: false, Error: "failed to compute summary"})
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: summary})
}

// CloseDay handles POST /api/v1/summaries/:date/close
func (h *Handlers) CloseDay(c *gin.Context) {
	day, ok := h.datePath(c)
	if !ok {
		return
	}
	var req CloseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "actual_cash and closed_by are required"})
		return
	}
	actualCash, err := decimal.NewFromString(req.ActualCash)
	if err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "actual_cash is not a valid amount"})
		return
	}

	result, err := h.reconcileService.Close(c.Request.Context(), day, actualCash, req.ClosedBy)
	if err != nil {
		h.logger.Error("Failed to close day", "error", err)
		c.JSON(http.StatusInternalServerError, Response{Success: false, Error: "failed to close day"})
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: result})
}

// ReopenDay handles POST /api/v1/summaries/:date/reopen
func (h *Handlers) ReopenDay(c *gin.Context) {
	day, ok := h.datePath(c)
	if !ok {
		return
	}
	var req ReopenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "actor is required"})
		return
	}

	summary, err := h.reconcileService.Reopen(c.Request.Context(), day, req.Actor)
	if err != nil {
		c.JSON(http.StatusConflict, Response{Success: false, Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: summary})
}

// ListAudits handles GET /api/v1/summaries/:date/audits
func (h *Handlers) ListAudits(c *gin.Context) {
	day, ok := h.datePath(c)
	if !ok {
		return
	}
	audits, err := h.reconcileService.Audits(c.Request.Context(), day)
	if err != nil {
		h.logger.Error("Failed to list audits", "error", err)
		c.JSON(http.StatusInternalServerError, Response{Success: false, Error: "failed to list audits"})
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: audits})
}

// rejectOrFail maps domain rejection errors to 422 and everything else
// to 500.
func (h *Handlers) rejectOrFail(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, entity.ErrFormat),
		errors.Is(err, entity.ErrArithmeticMismatch),
		errors.Is(err, entity.ErrFutureDate):
		c.JSON(http.StatusUnprocessableEntity, Response{Success: false, Error: err.Error()})
	default:
		h.logger.Error(fallback, "error", err)
		c.JSON(http.StatusInternalServerError, Response{Success: false, Error: fallback})
	}
}

func (h *Handlers) datePath(c *gin.Context) (time.Time, bool) {
	day, err := time.Parse("2006-01-02", c.Param("date"))
	if err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "date must be YYYY-MM-DD"})
		return time.Time{}, false
	}
	return day, true
}

func (h *Handlers) dateRange(c *gin.Context) (time.Time, time.Time, bool) {
	from, err := time.Parse("2006-01-02", c.Query("from"))
	if err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "from must be YYYY-MM-DD"})
		return time.Time{}, time.Time{}, false
	}
	to, err := time.Parse("2006-01-02", c.Query("to"))
	if err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "to must be YYYY-MM-DD"})
		return time.Time{}, time.Time{}, false
	}
	if to.Before(from) {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "to must not be before from"})
		return time.Time{}, time.Time{}, false
	}
	return from, to, true
}
