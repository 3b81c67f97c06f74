package middleware

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// ExtractIDParam создает middleware для извлечения и валидации числового параметра URL.
// paramName - имя параметра в URL (например, "surveyId").
// contextKey - ключ, под которым значение будет сохранено в контексте Gin.
// Допускаются только положительные целые числа.
func ExtractIDParam(paramName, contextKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseInt(c.Param(paramName), 10, 64)
		if err != nil || id <= 0 {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"error":   "Invalid input",
				"details": gin.H{paramName: []string{fmt.Sprintf("%s must be a positive integer", paramName)}},
			})
			return
		}
		c.Set(contextKey, id)
		c.Next()
	}
}
