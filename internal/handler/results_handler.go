package handler

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/yourusername/pilotvoice-api/internal/domain/entity"
	"github.com/yourusername/pilotvoice-api/internal/service"
)

var exportHeaders = []string{"ID ответа", "Пользователь", "Оценка", "Отзыв", "Создан", "Завершен"}

// ResultsHandler отдает администраторам результаты опросов
type ResultsHandler struct {
	results *service.SurveyResultsService
	logger  *zap.Logger
}

// NewResultsHandler создает обработчик результатов
func NewResultsHandler(results *service.SurveyResultsService, logger *zap.Logger) *ResultsHandler {
	return &ResultsHandler{results: results, logger: logger}
}

// GetResults возвращает агрегированные результаты опроса
// GET /api/surveys/:surveyId/results
func (h *ResultsHandler) GetResults(c *gin.Context) {
	surveyID := c.MustGet(ctxSurveyID).(int64)

	results, err := h.results.GetResults(c.Request.Context(), surveyID)
	if err != nil {
		respondError(c, h.logger, err, "Failed to fetch survey results")
		return
	}

	c.JSON(http.StatusOK, results)
}

// ExportResponses выгружает все ответы опроса в CSV или XLSX
// GET /api/surveys/:surveyId/responses/export?format=csv|xlsx
func (h *ResultsHandler) ExportResponses(c *gin.Context) {
	surveyID := c.MustGet(ctxSurveyID).(int64)
	format := c.DefaultQuery("format", "csv")
	if format != "csv" && format != "xlsx" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input", "details": gin.H{"format": []string{"must be csv or xlsx"}}})
		return
	}

	_, responses, err := h.results.ListResponses(c.Request.Context(), surveyID)
	if err != nil {
		respondError(c, h.logger, err, "Failed to export survey responses")
		return
	}

	filename := fmt.Sprintf("survey_%d_responses_%s", surveyID, time.Now().Format("2006-01-02"))

	switch format {
	case "xlsx":
		h.exportXLSX(c, responses, filename)
	default:
		h.exportCSV(c, responses, filename)
	}
}

// exportCSV пишет CSV с BOM, чтобы Excel корректно открыл UTF-8
func (h *ResultsHandler) exportCSV(c *gin.Context, responses []entity.SurveyResponse, filename string) {
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s.csv\"", filename))

	_, _ = c.Writer.Write([]byte{0xEF, 0xBB, 0xBF})

	writer := csv.NewWriter(c.Writer)
	defer writer.Flush()

	if err := writer.Write(exportHeaders); err != nil {
		h.logger.Warn("Failed to write CSV header", zap.Error(err))
		return
	}
	for i := range responses {
		if err := writer.Write(exportRow(&responses[i])); err != nil {
			h.logger.Warn("Failed to write CSV row", zap.Int64("response_id", responses[i].ID), zap.Error(err))
			return
		}
	}
}

// exportXLSX пишет книгу Excel через StreamWriter
func (h *ResultsHandler) exportXLSX(c *gin.Context, responses []entity.SurveyResponse, filename string) {
	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Ответы"
	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		h.logger.Error("Failed to rename sheet", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal Server Error", "message": "Failed to create Excel file"})
		return
	}

	sw, err := f.NewStreamWriter(sheetName)
	if err != nil {
		h.logger.Error("Failed to create stream writer", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal Server Error", "message": "Failed to create Excel file"})
		return
	}

	header := make([]interface{}, len(exportHeaders))
	for i, v := range exportHeaders {
		header[i] = v
	}
	if err := sw.SetRow("A1", header); err != nil {
		h.logger.Warn("Failed to write XLSX header", zap.Error(err))
	}

	for i := range responses {
		r := &responses[i]
		var rating interface{} = ""
		if r.OverallRating != nil {
			rating = *r.OverallRating
		}
		row := exportRow(r)
		cells := []interface{}{r.ID, row[1], rating, row[3], row[4], row[5]}
		if err := sw.SetRow(fmt.Sprintf("A%d", i+2), cells); err != nil {
			h.logger.Warn("Failed to write XLSX row", zap.Int64("response_id", r.ID), zap.Error(err))
		}
	}

	if err := sw.Flush(); err != nil {
		h.logger.Error("Failed to flush XLSX", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal Server Error", "message": "Failed to create Excel file"})
		return
	}

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s.xlsx\"", filename))
	if err := f.Write(c.Writer); err != nil {
		h.logger.Warn("Failed to write XLSX response", zap.Error(err))
	}
}

func exportRow(r *entity.SurveyResponse) []string {
	rating := ""
	if r.OverallRating != nil {
		rating = strconv.Itoa(*r.OverallRating)
	}
	feedback := ""
	if r.OpenFeedback != nil {
		feedback = sanitizeForExcel(*r.OpenFeedback)
	}
	completed := ""
	if r.CompletedAt != nil {
		completed = r.CompletedAt.UTC().Format(time.RFC3339)
	}
	return []string{
		strconv.FormatInt(r.ID, 10),
		r.UserID.String(),
		rating,
		feedback,
		r.CreatedAt.UTC().Format(time.RFC3339),
		completed,
	}
}

// sanitizeForExcel экранирует данные для защиты от formula injection в Excel/CSV
func sanitizeForExcel(s string) string {
	if len(s) == 0 {
		return s
	}
	// Символы, начинающие формулу в Excel/LibreOffice: = + - @ \t \r
	if s[0] == '=' || s[0] == '+' || s[0] == '-' || s[0] == '@' || s[0] == '\t' || s[0] == '\r' {
		return "'" + s
	}
	return s
}
