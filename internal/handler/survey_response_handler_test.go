package handler

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/pilotvoice-api/internal/domain/entity"
	"github.com/yourusername/pilotvoice-api/internal/service"
)

func strPtr(v string) *string { return &v }

func TestGetMyResponse_RequiresAuthentication(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, responsesPath(env.survey.ID)+"/me", "", nil)

	require.Equal(t, http.StatusUnauthorized, w.Code)
	body := parseJSONResponse(t, w)
	assert.Equal(t, "Unauthorized", body["error"])
	assert.Equal(t, fmt.Sprintf("/login?redirect_to=/api/surveys/%d/responses/me", env.survey.ID), body["redirect"])
}

func TestGetMyResponse_NullWhenNotStarted(t *testing.T) {
	env := newTestEnv(t)
	token := env.token(t, uuid.New())

	w := env.do(t, http.MethodGet, responsesPath(env.survey.ID)+"/me", token, nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "null", w.Body.String(), "без ответа API должен вернуть null")
}

func TestGetMyResponse_SurveyNotFound(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/api/surveys/999/responses/me", env.token(t, uuid.New()), nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Not Found", parseJSONResponse(t, w)["error"])
}

func TestCreateResponse(t *testing.T) {
	// Arrange
	env := newTestEnv(t)
	userID := uuid.New()
	token := env.token(t, userID)

	// Act
	first := env.do(t, http.MethodPost, responsesPath(env.survey.ID), token, nil)
	second := env.do(t, http.MethodPost, responsesPath(env.survey.ID), token, map[string]int{"overall_rating": 4})
	me := env.do(t, http.MethodGet, responsesPath(env.survey.ID)+"/me", token, nil)

	// Assert
	require.Equal(t, http.StatusCreated, first.Code, first.Body.String())
	created := parseJSONResponse(t, first)
	assert.Equal(t, userID.String(), created["user_id"])
	assert.Nil(t, created["overall_rating"])
	assert.Nil(t, created["completed_at"])

	assert.Equal(t, http.StatusConflict, second.Code, "повторное создание должно вернуть 409")

	require.Equal(t, http.StatusOK, me.Code)
	assert.Equal(t, created["id"], parseJSONResponse(t, me)["id"])
}

func TestCreateResponse_BadRequests(t *testing.T) {
	env := newTestEnv(t)
	token := env.token(t, uuid.New())

	testCases := []struct {
		name string
		path string
		body interface{}
	}{
		{"non-numeric survey id", "/api/surveys/abc/responses", nil},
		{"zero survey id", "/api/surveys/0/responses", nil},
		{"malformed json", responsesPath(env.survey.ID), `{"overall_rating":`},
		{"rating out of range", responsesPath(env.survey.ID), map[string]int{"overall_rating": 9}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			w := env.do(t, http.MethodPost, tc.path, token, tc.body)

			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
			assert.Equal(t, "Invalid input", parseJSONResponse(t, w)["error"])
		})
	}
}

func TestCreateResponse_BindingDetails(t *testing.T) {
	env := newTestEnv(t)
	token := env.token(t, uuid.New())

	testCases := []struct {
		name    string
		body    interface{}
		details map[string]interface{}
	}{
		{"rating above scale", `{"overall_rating": 9}`, map[string]interface{}{"overall_rating": []interface{}{"must be at most 5"}}},
		{"rating below scale", `{"overall_rating": 0}`, map[string]interface{}{"overall_rating": []interface{}{"must be at least 1"}}},
		{"rating of wrong type", `{"overall_rating": "five"}`, map[string]interface{}{"overall_rating": []interface{}{"must be of type integer"}}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// Act
			w := env.do(t, http.MethodPost, responsesPath(env.survey.ID), token, tc.body)

			// Assert
			require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
			body := parseJSONResponse(t, w)
			assert.Equal(t, "Invalid input", body["error"])
			assert.Equal(t, tc.details, body["details"], "ошибки валидации должны называть поле по json-имени")
		})
	}

	// Пустое тело допустимо
	w := env.do(t, http.MethodPost, responsesPath(env.survey.ID), token, "")
	assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())
}

func TestUpdateResponse_PartialUpdate(t *testing.T) {
	// Arrange
	env := newTestEnv(t)
	token := env.token(t, uuid.New())
	responseID := env.createResponse(t, token)
	path := fmt.Sprintf("/api/survey-responses/%d", responseID)

	// Act
	w1 := env.do(t, http.MethodPatch, path, token, `{"overall_rating": 4, "open_feedback": "Great launch site"}`)
	w2 := env.do(t, http.MethodPatch, path, token, `{"overall_rating": 5}`)
	w3 := env.do(t, http.MethodPatch, path, token, `{"open_feedback": null}`)

	// Assert
	require.Equal(t, http.StatusOK, w1.Code, w1.Body.String())
	require.Equal(t, http.StatusOK, w2.Code, w2.Body.String())
	afterRating := parseJSONResponse(t, w2)
	assert.Equal(t, float64(5), afterRating["overall_rating"])
	assert.Equal(t, "Great launch site", afterRating["open_feedback"], "отсутствующее поле не должно меняться")

	require.Equal(t, http.StatusOK, w3.Code, w3.Body.String())
	afterNull := parseJSONResponse(t, w3)
	assert.Nil(t, afterNull["open_feedback"], "null очищает поле")
	assert.Equal(t, float64(5), afterNull["overall_rating"])
}

func TestUpdateResponse_StoresAnonymizedFeedback(t *testing.T) {
	// Arrange
	env := newTestEnv(t)
	token := env.token(t, uuid.New())
	responseID := env.createResponse(t, token)
	env.anonymizer.set(&service.GdprCheckResult{
		ContainsPersonalData: true,
		Confidence:           0.97,
		AnonymizedText:       strPtr("The organizer was very helpful"),
		DetectedDataTypes:    []string{"full_name", "phone"},
	}, nil)

	// Act
	w := env.do(t, http.MethodPatch, fmt.Sprintf("/api/survey-responses/%d", responseID), token,
		`{"open_feedback": "Jan Kowalski (+48 600 100 200) was very helpful"}`)

	// Assert
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "The organizer was very helpful", parseJSONResponse(t, w)["open_feedback"])

	var stored entity.SurveyResponse
	require.NoError(t, env.db.First(&stored, responseID).Error)
	assert.Equal(t, "The organizer was very helpful", *stored.OpenFeedback, "исходный текст не должен попасть в БД")

	var screenings []entity.GdprScreening
	require.NoError(t, env.db.Find(&screenings).Error)
	require.Len(t, screenings, 1)
	assert.True(t, screenings[0].Anonymized)
	assert.JSONEq(t, `["full_name","phone"]`, string(screenings[0].DetectedDataTypes))
}

func TestUpdateResponse_Errors(t *testing.T) {
	env := newTestEnv(t)
	owner := env.token(t, uuid.New())
	stranger := env.token(t, uuid.New())
	responseID := env.createResponse(t, owner)
	path := fmt.Sprintf("/api/survey-responses/%d", responseID)

	testCases := []struct {
		name        string
		path        string
		token       string
		body        interface{}
		screenErr   error
		wantStatus  int
		wantError   string
		wantMessage string
	}{
		{name: "not authenticated", path: path, body: `{}`, wantStatus: http.StatusUnauthorized, wantError: "Unauthorized"},
		{name: "not owner", path: path, token: stranger, body: `{"overall_rating": 3}`, wantStatus: http.StatusForbidden, wantError: "Forbidden"},
		{name: "missing response", path: "/api/survey-responses/999", token: owner, body: `{"overall_rating": 3}`, wantStatus: http.StatusNotFound, wantError: "Not Found"},
		{name: "invalid json", path: path, token: owner, body: `{oops`, wantStatus: http.StatusBadRequest, wantError: "Invalid input", wantMessage: "Invalid JSON in request body"},
		{name: "rating of wrong type", path: path, token: owner, body: `{"overall_rating": "five"}`, wantStatus: http.StatusBadRequest, wantError: "Invalid input"},
		{name: "rating out of range", path: path, token: owner, body: `{"overall_rating": 11}`, wantStatus: http.StatusBadRequest, wantError: "Invalid input"},
		{name: "complete without rating", path: path, token: owner, body: `{"completed_at": "2025-07-08T10:00:00Z"}`, wantStatus: http.StatusBadRequest, wantError: "Invalid input"},
		{
			name:        "screening failure",
			path:        path,
			token:       owner,
			body:        `{"open_feedback": "Anna Nowak"}`,
			screenErr:   errors.New("openrouter timeout"),
			wantStatus:  http.StatusInternalServerError,
			wantError:   "Internal Server Error",
			wantMessage: "Failed to process feedback",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			env.anonymizer.set(nil, tc.screenErr)

			w := env.do(t, http.MethodPatch, tc.path, tc.token, tc.body)

			require.Equal(t, tc.wantStatus, w.Code, w.Body.String())
			body := parseJSONResponse(t, w)
			assert.Equal(t, tc.wantError, body["error"])
			if tc.wantMessage != "" {
				assert.Equal(t, tc.wantMessage, body["message"])
			}
		})
	}

	var stored entity.SurveyResponse
	require.NoError(t, env.db.First(&stored, responseID).Error)
	assert.Nil(t, stored.OpenFeedback, "неудачная проверка не должна сохранять отзыв")
}

func TestUpdateResponse_CompletedIsReadOnly(t *testing.T) {
	env := newTestEnv(t)
	token := env.token(t, uuid.New())
	responseID := env.createResponse(t, token)
	path := fmt.Sprintf("/api/survey-responses/%d", responseID)

	done := env.do(t, http.MethodPatch, path, token, `{"overall_rating": 4, "completed_at": "2025-07-08T10:00:00Z"}`)
	again := env.do(t, http.MethodPatch, path, token, `{"overall_rating": 2}`)

	require.Equal(t, http.StatusOK, done.Code, done.Body.String())
	assert.NotNil(t, parseJSONResponse(t, done)["completed_at"])
	assert.Equal(t, http.StatusConflict, again.Code)
}

func TestCheckGdpr(t *testing.T) {
	env := newTestEnv(t)
	token := env.token(t, uuid.New())

	testCases := []struct {
		name        string
		token       string
		body        interface{}
		result      *service.GdprCheckResult
		screenErr   error
		wantStatus  int
		wantError   string
		wantMessage string
	}{
		{name: "not authenticated", body: `{"text":"hi"}`, wantStatus: http.StatusUnauthorized, wantError: "Unauthorized"},
		{name: "empty body", token: token, body: ``, wantStatus: http.StatusBadRequest, wantError: "Invalid input", wantMessage: "Invalid JSON in request body"},
		{name: "empty text", token: token, body: `{"text": ""}`, wantStatus: http.StatusBadRequest, wantError: "Invalid input", wantMessage: "Text field is required and must be a string"},
		{name: "missing text", token: token, body: `{}`, wantStatus: http.StatusBadRequest, wantError: "Invalid input", wantMessage: "Text field is required and must be a string"},
		{name: "text is not a string", token: token, body: `{"text": 42}`, wantStatus: http.StatusBadRequest, wantError: "Invalid input", wantMessage: "Text field is required and must be a string"},
		{name: "whitespace text", token: token, body: `{"text": "   "}`, wantStatus: http.StatusBadRequest, wantError: "Invalid input", wantMessage: "Text cannot be empty"},
		{name: "invalid json", token: token, body: `{"text"`, wantStatus: http.StatusBadRequest, wantError: "Invalid input", wantMessage: "Invalid JSON in request body"},
		{
			name:        "screening failure",
			token:       token,
			body:        `{"text": "Anna Nowak"}`,
			screenErr:   errors.New("rate limited"),
			wantStatus:  http.StatusInternalServerError,
			wantError:   "Service Error",
			wantMessage: "Failed to check for personal data. Please try again.",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			env.anonymizer.set(tc.result, tc.screenErr)

			w := env.do(t, http.MethodPost, "/api/survey-responses/check-gdpr", tc.token, tc.body)

			require.Equal(t, tc.wantStatus, w.Code, w.Body.String())
			body := parseJSONResponse(t, w)
			assert.Equal(t, tc.wantError, body["error"])
			if tc.wantMessage != "" {
				assert.Equal(t, tc.wantMessage, body["message"])
			}
		})
	}
}

func TestCheckGdpr_ReturnsVerdict(t *testing.T) {
	env := newTestEnv(t)
	env.anonymizer.set(&service.GdprCheckResult{
		ContainsPersonalData: true,
		Confidence:           0.9,
		AnonymizedText:       strPtr("Contact the organizer"),
		DetectedDataTypes:    []string{"email"},
	}, nil)

	w := env.do(t, http.MethodPost, "/api/survey-responses/check-gdpr", env.token(t, uuid.New()), `{"text": "Contact jan@example.com"}`)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := parseJSONResponse(t, w)
	assert.Equal(t, true, body["containsPersonalData"])
	assert.Equal(t, "Contact jan@example.com", body["originalText"])
	assert.Equal(t, "Contact the organizer", body["anonymizedText"])
	assert.Equal(t, []interface{}{"email"}, body["detectedDataTypes"])

	var count int64
	require.NoError(t, env.db.Model(&entity.GdprScreening{}).Count(&count).Error)
	assert.Zero(t, count, "проверка без сохранения не пишет аудит")
}
