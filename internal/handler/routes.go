package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/yourusername/pilotvoice-api/internal/middleware"
)

// Handlers - набор обработчиков HTTP API
type Handlers struct {
	Surveys   *SurveyHandler
	Responses *SurveyResponseHandler
	Results   *ResultsHandler
	Profile   *ProfileHandler
	Fill      *FillSessionHandler
}

// RegisterRoutes регистрирует маршруты API на router
func RegisterRoutes(router *gin.Engine, h Handlers, authMiddleware *middleware.AuthMiddleware, gdprLimit gin.HandlerFunc) {
	useJSONFieldNames()

	surveyIDParam := middleware.ExtractIDParam("surveyId", ctxSurveyID)
	responseIDParam := middleware.ExtractIDParam("responseId", ctxResponseID)

	api := router.Group("/api")
	{
		api.GET("/competitions", h.Surveys.ListCompetitions)

		surveys := api.Group("/surveys")
		{
			surveys.GET("/slug/:slug", authMiddleware.OptionalAuth(), h.Surveys.GetSurveyBySlug)
			surveys.GET("/:surveyId", surveyIDParam, h.Surveys.GetSurvey)

			authed := surveys.Group("/:surveyId", authMiddleware.RequireAuth(), surveyIDParam)
			{
				authed.GET("/responses/me", h.Responses.GetMyResponse)
				authed.POST("/responses", h.Responses.CreateResponse)
			}

			admin := surveys.Group("/:surveyId", authMiddleware.RequireAuth(), authMiddleware.AdminOnly(), surveyIDParam)
			{
				admin.GET("/results", h.Results.GetResults)
				admin.GET("/responses/export", h.Results.ExportResponses)
			}
		}

		responses := api.Group("/survey-responses", authMiddleware.RequireAuth())
		{
			checkHandlers := []gin.HandlerFunc{h.Responses.CheckGdpr}
			if gdprLimit != nil {
				checkHandlers = append([]gin.HandlerFunc{gdprLimit}, checkHandlers...)
			}
			responses.POST("/check-gdpr", checkHandlers...)
			responses.PATCH("/:responseId", responseIDParam, h.Responses.UpdateResponse)
		}

		user := api.Group("/user", authMiddleware.RequireAuth())
		{
			user.GET("/profile", h.Profile.GetProfile)
			user.PATCH("/profile", h.Profile.UpdateProfile)
		}
	}

	router.GET("/ws/surveys/:surveyId/fill", authMiddleware.RequireAuthWS(), surveyIDParam, h.Fill.HandleConnection)
}
