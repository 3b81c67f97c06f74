package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	apperrors "github.com/yourusername/pilotvoice-api/internal/pkg/errors"
	"github.com/yourusername/pilotvoice-api/internal/service"
)

const msgInvalidJSON = "Invalid JSON in request body"

// respondError переводит доменную ошибку в HTTP-ответ.
// Неожиданные ошибки логируются, клиент получает fallback без подробностей.
func respondError(c *gin.Context, logger *zap.Logger, err error, fallback string) {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input", "details": verr.Fields})
	case errors.Is(err, apperrors.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input", "message": err.Error()})
	case errors.Is(err, apperrors.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized", "message": "Authentication required"})
	case errors.Is(err, apperrors.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Not Found", "message": err.Error()})
	case errors.Is(err, apperrors.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "Forbidden", "message": err.Error()})
	case errors.Is(err, apperrors.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "Conflict", "message": err.Error()})
	case errors.Is(err, apperrors.ErrRateLimited):
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "Too many requests. Please try again later.", "error_type": "rate_limited"})
	default:
		logger.Error("Request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal Server Error", "message": fallback})
	}
}

var registerTagNamesOnce sync.Once

// useJSONFieldNames заставляет валидатор gin называть поля по json-тегам
func useJSONFieldNames() {
	registerTagNamesOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
}

// bindJSON разбирает тело через ShouldBindJSON; при optional пустое тело равносильно {}
func bindJSON(c *gin.Context, dest interface{}, optional bool) error {
	if optional && (c.Request.Body == nil || c.Request.Body == http.NoBody) {
		return nil
	}
	err := c.ShouldBindJSON(dest)
	if optional && errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// respondBindError отвечает 400 на тело запроса, которое не удалось разобрать
func respondBindError(c *gin.Context, err error) {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		details := make(map[string][]string, len(validationErrs))
		for _, fe := range validationErrs {
			details[fe.Field()] = append(details[fe.Field()], validationMessage(fe))
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input", "details": details})
		return
	}
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid input",
			"details": gin.H{typeErr.Field: []string{fmt.Sprintf("must be of type %s", jsonTypeName(typeErr.Type.Kind().String()))}},
		})
		return
	}
	var timeErr *time.ParseError
	if errors.As(err, &timeErr) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid input",
			"details": gin.H{"completed_at": []string{"must be a valid ISO-8601 datetime"}},
		})
		return
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input", "message": msgInvalidJSON})
}

func jsonTypeName(kind string) string {
	switch kind {
	case "int", "int8", "int16", "int32", "int64", "uint", "uint8", "uint16", "uint32", "uint64":
		return "integer"
	case "float32", "float64":
		return "number"
	case "struct":
		return "datetime string"
	default:
		return kind
	}
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	default:
		return "is invalid"
	}
}
