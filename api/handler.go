package api

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"casa_pronosticos/internal/ledger"
)

// salesHandler holds the ledger service and implements HTTP handlers for the
// sales endpoints.
type salesHandler struct {
	svc    *ledger.Service
	logger *zap.Logger
}

// NewSalesHandler creates a new sales handler.
func NewSalesHandler(svc *ledger.Service, logger *zap.Logger) *salesHandler {
	return &salesHandler{
		svc:    svc,
		logger: logger,
	}
}

// respondError maps ledger errors to HTTP statuses. Validation problems are
// the user's, persistence problems get a generic retry prompt, and cascade
// partial failures always carry the applied/total counts so the UI can
// reconcile the day.
func (h *salesHandler) respondError(c *gin.Context, err error) {
	var ve *ledger.ValidationError
	var ce *ledger.CascadeError
	var pe *ledger.PersistenceError
	switch {
	case errors.As(err, &ve):
		c.JSON(http.StatusBadRequest, gin.H{"error": ve.Reason})
	case errors.Is(err, ledger.ErrSlotOccupied):
		c.JSON(http.StatusConflict, gin.H{"error": "slot already has a record; confirm replacement to overwrite"})
	case errors.Is(err, ledger.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "sale record not found"})
	case errors.As(err, &ce):
		c.JSON(http.StatusBadGateway, gin.H{
			"error":   "recompute stopped partway; the day's hourly breakdown is temporarily inconsistent",
			"applied": ce.Applied,
			"total":   ce.Total,
		})
	case errors.As(err, &pe):
		c.JSON(http.StatusBadGateway, gin.H{"error": "could not reach storage, please retry"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

// handleRecordReading handles POST /sales.
func (h *salesHandler) handleRecordReading(c *gin.Context) {
	var req struct {
		Date            string          `json:"date" binding:"required"`
		MachineID       string          `json:"machine_id" binding:"required"`
		Hour            *int            `json:"hour" binding:"required"`
		CumulativeTotal decimal.Decimal `json:"cumulative_total"`
		OperatorID      string          `json:"operator_id"`
		Notes           string          `json:"notes"`
		ConfirmReplace  bool            `json:"confirm_replace"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("failed to bind reading request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload"})
		return
	}

	meta := ledger.Metadata{OperatorID: req.OperatorID, Notes: req.Notes}
	rec, err := h.svc.RecordReading(c.Request.Context(), req.Date, req.MachineID, *req.Hour, req.CumulativeTotal, meta, req.ConfirmReplace)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, rec)
}

// handleEditReading handles PUT /sales/:id.
func (h *salesHandler) handleEditReading(c *gin.Context) {
	var req struct {
		CumulativeTotal decimal.Decimal `json:"cumulative_total"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload"})
		return
	}

	rec, err := h.svc.EditReading(c.Request.Context(), c.Param("id"), req.CumulativeTotal)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// handleDeleteReading handles DELETE /sales/:id. With ?patch_next=1 the
// following record's amount is corrected in the same batch.
func (h *salesHandler) handleDeleteReading(c *gin.Context) {
	patchNext, _ := strconv.ParseBool(c.DefaultQuery("patch_next", "false"))
	if err := h.svc.DeleteReading(c.Request.Context(), c.Param("id"), patchNext); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// handleListDay handles GET /sales?date=YYYY-MM-DD.
func (h *salesHandler) handleListDay(c *gin.Context) {
	date := c.Query("date")
	records, err := h.svc.ListDay(c.Request.Context(), date)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"date": date, "records": records})
}

// handleDailyTotals handles GET /sales/totals?date=YYYY-MM-DD.
func (h *salesHandler) handleDailyTotals(c *gin.Context) {
	date := c.Query("date")
	totals, err := h.svc.ComputeDailyTotals(c.Request.Context(), date)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"date": date, "totals": totals})
}

// handleExport handles GET /sales/export?date= and streams the day's hourly
// breakdown as a spreadsheet.
func (h *salesHandler) handleExport(c *gin.Context) {
	date := c.Query("date")
	records, err := h.svc.ListDay(c.Request.Context(), date)
	if err != nil {
		h.respondError(c, err)
		return
	}

	f := excelize.NewFile()
	defer f.Close()
	sheet := "Sheet1"

	f.SetCellValue(sheet, "A1", "Date")
	f.SetCellValue(sheet, "B1", "Machine")
	f.SetCellValue(sheet, "C1", "Period")
	f.SetCellValue(sheet, "D1", "CumulativeTotal")
	f.SetCellValue(sheet, "E1", "Amount")

	for i, r := range records {
		row := fmt.Sprint(i + 2)
		f.SetCellValue(sheet, "A"+row, r.Date)
		f.SetCellValue(sheet, "B"+row, r.MachineID)
		f.SetCellValue(sheet, "C"+row, r.PeriodLabel())
		f.SetCellValue(sheet, "D"+row, r.CumulativeTotal.String())
		f.SetCellValue(sheet, "E"+row, r.Amount.String())
	}

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", "attachment; filename=ventas_"+date+".xlsx")
	if err := f.Write(c.Writer); err != nil {
		h.logger.Error("failed to write export", zap.String("date", date), zap.Error(err))
	}
}

// handleImport handles POST /sales/import. The body is CSV with columns
// date,machine_id,hour,cumulative_total[,operator_id[,notes]]; a header row is
// skipped. Existing slots are replaced and the whole cache is cleared after.
func (h *salesHandler) handleImport(c *gin.Context) {
	reader := csv.NewReader(c.Request.Body)
	reader.FieldsPerRecord = -1

	var rows []ledger.ImportRow
	line := 0
	for {
		fields, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "malformed CSV: " + err.Error()})
			return
		}
		line++
		if line == 1 && len(fields) > 0 && fields[0] == "date" {
			continue
		}
		if len(fields) < 4 {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("line %d: expected at least 4 columns", line)})
			return
		}
		hour, err := strconv.Atoi(fields[2])
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("line %d: bad hour %q", line, fields[2])})
			return
		}
		total, err := decimal.NewFromString(fields[3])
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("line %d: bad total %q", line, fields[3])})
			return
		}
		row := ledger.ImportRow{
			Date:            fields[0],
			MachineID:       fields[1],
			Hour:            hour,
			CumulativeTotal: total,
		}
		if len(fields) > 4 {
			row.Metadata.OperatorID = fields[4]
		}
		if len(fields) > 5 {
			row.Metadata.Notes = fields[5]
		}
		rows = append(rows, row)
	}

	applied, err := h.svc.ImportReadings(c.Request.Context(), rows)
	if err != nil {
		h.logger.Error("import stopped", zap.Int("applied", applied), zap.Int("total", len(rows)), zap.Error(err))
		var ve *ledger.ValidationError
		status := http.StatusBadGateway
		if errors.As(err, &ve) {
			status = http.StatusBadRequest
		}
		c.JSON(status, gin.H{"error": err.Error(), "applied": applied, "total": len(rows)})
		return
	}
	c.JSON(http.StatusOK, gin.H{"imported": applied})
}

// handleCacheStats handles GET /cache/stats.
func (h *salesHandler) handleCacheStats(c *gin.Context) {
	stats := h.svc.CacheStats()
	c.JSON(http.StatusOK, gin.H{
		"hits":   stats.Hits,
		"misses": stats.Misses,
		"ratio":  stats.Ratio(),
	})
}
