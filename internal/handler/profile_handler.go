package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yourusername/pilotvoice-api/internal/handler/dto"
	"github.com/yourusername/pilotvoice-api/internal/middleware"
	"github.com/yourusername/pilotvoice-api/internal/service"
)

// ProfileHandler обрабатывает запросы к профилю пилота
type ProfileHandler struct {
	profiles *service.ProfileService
	logger   *zap.Logger
}

// NewProfileHandler создает обработчик профиля
func NewProfileHandler(profiles *service.ProfileService, logger *zap.Logger) *ProfileHandler {
	return &ProfileHandler{profiles: profiles, logger: logger}
}

// GetProfile возвращает профиль текущего пользователя
// GET /api/user/profile
func (h *ProfileHandler) GetProfile(c *gin.Context) {
	userID, _ := middleware.UserIDFromContext(c)

	profile, err := h.profiles.GetProfile(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.logger, err, "Failed to fetch profile")
		return
	}

	c.JSON(http.StatusOK, dto.NewProfileDto(profile))
}

// UpdateProfile обновляет CIVL ID и причину регистрации
// PATCH /api/user/profile
func (h *ProfileHandler) UpdateProfile(c *gin.Context) {
	userID, _ := middleware.UserIDFromContext(c)

	var cmd service.UpdateProfileCommand
	if err := bindJSON(c, &cmd, true); err != nil {
		respondBindError(c, err)
		return
	}

	profile, err := h.profiles.UpdateProfile(c.Request.Context(), userID, cmd)
	if err != nil {
		respondError(c, h.logger, err, "Failed to update profile")
		return
	}

	c.JSON(http.StatusOK, dto.NewProfileDto(profile))
}
