package handler

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetSurveyBySlug_StartAction(t *testing.T) {
	env := newTestEnv(t)
	slug := *env.survey.Slug
	startedUser := uuid.New()
	startedToken := env.token(t, startedUser)
	env.createResponse(t, startedToken)

	finishedToken := env.token(t, uuid.New())
	finishedID := env.createResponse(t, finishedToken)
	done := env.do(t, http.MethodPatch, fmt.Sprintf("/api/survey-responses/%d", finishedID), finishedToken,
		`{"overall_rating": 5, "completed_at": "2025-07-08T10:00:00Z"}`)
	require.Equal(t, http.StatusOK, done.Code, done.Body.String())

	testCases := []struct {
		name      string
		token     string
		wantLabel string
		wantHref  string
	}{
		{"anonymous visitor", "", "Sign In to Start", "/login?redirect_to=/surveys/" + slug + "/fill"},
		{"new participant", env.token(t, uuid.New()), "Start Survey", "/surveys/" + slug + "/fill"},
		{"draft in progress", startedToken, "Continue Survey", "/surveys/" + slug + "/fill"},
		{"completed response", finishedToken, "View Response", "/surveys/" + slug + "/thanks"},
		{"invalid token is treated as anonymous", "garbage", "Sign In to Start", "/login?redirect_to=/surveys/" + slug + "/fill"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			w := env.do(t, http.MethodGet, "/api/surveys/slug/"+slug, tc.token, nil)

			require.Equal(t, http.StatusOK, w.Code, w.Body.String())
			body := parseJSONResponse(t, w)
			assert.Equal(t, slug, body["slug"])
			assert.Equal(t, "Polish Open", body["competition"].(map[string]interface{})["name"])
			action := body["start_action"].(map[string]interface{})
			assert.Equal(t, tc.wantLabel, action["label"])
			assert.Equal(t, tc.wantHref, action["href"])
		})
	}
}

func TestGetSurveyBySlug_NotFound(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/api/surveys/slug/missing", "", nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListCompetitions(t *testing.T) {
	env := newTestEnv(t)
	env.seedSurvey(t, "second")

	testCases := []struct {
		name       string
		query      string
		wantStatus int
		wantCount  int
	}{
		{"defaults", "", http.StatusOK, 2},
		{"second page", "?page=2&pageSize=1&sortBy=name&order=asc", http.StatusOK, 1},
		{"page is not a number", "?page=first", http.StatusBadRequest, 0},
		{"page size too large", "?pageSize=500", http.StatusBadRequest, 0},
		{"unknown sort field", "?sortBy=password", http.StatusBadRequest, 0},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			w := env.do(t, http.MethodGet, "/api/competitions"+tc.query, "", nil)

			require.Equal(t, tc.wantStatus, w.Code, w.Body.String())
			body := parseJSONResponse(t, w)
			if tc.wantStatus != http.StatusOK {
				assert.Equal(t, "Invalid input", body["error"])
				return
			}
			assert.Len(t, body["data"], tc.wantCount)
			assert.Equal(t, float64(2), body["pagination"].(map[string]interface{})["total"])
		})
	}
}

func TestProfile(t *testing.T) {
	env := newTestEnv(t)
	userID := uuid.New()
	token := env.token(t, userID)

	missing := env.do(t, http.MethodGet, "/api/user/profile", token, nil)
	assert.Equal(t, http.StatusNotFound, missing.Code, "профиль создается провайдером аутентификации")

	env.seedProfile(t, userID, "user")

	updated := env.do(t, http.MethodPatch, "/api/user/profile", token, `{"civl_id": 12345, "registration_reason": "  Competition pilot  "}`)
	require.Equal(t, http.StatusOK, updated.Code, updated.Body.String())
	body := parseJSONResponse(t, updated)
	assert.Equal(t, float64(12345), body["civl_id"])
	assert.Equal(t, "Competition pilot", body["registration_reason"])

	invalid := env.do(t, http.MethodPatch, "/api/user/profile", token, `{"civl_id": -1}`)
	assert.Equal(t, http.StatusBadRequest, invalid.Code)

	malformed := env.do(t, http.MethodPatch, "/api/user/profile", token, `{"civl_id":`)
	require.Equal(t, http.StatusBadRequest, malformed.Code)
	assert.Equal(t, "Invalid JSON in request body", parseJSONResponse(t, malformed)["message"])

	cleared := env.do(t, http.MethodPatch, "/api/user/profile", token, `{"civl_id": null}`)
	require.Equal(t, http.StatusOK, cleared.Code, cleared.Body.String())
	assert.Nil(t, parseJSONResponse(t, cleared)["civl_id"], "null очищает поле, отсутствующее поле не меняется")
	assert.Equal(t, "Competition pilot", parseJSONResponse(t, cleared)["registration_reason"])
}
