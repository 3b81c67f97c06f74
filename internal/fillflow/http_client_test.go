package fillflow

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/yourusername/pilotvoice-api/internal/pkg/errors"
	"github.com/yourusername/pilotvoice-api/internal/pkg/nullable"
)

func TestPatch_MarshalOmitsAbsentFields(t *testing.T) {
	data, err := json.Marshal(Patch{OverallRating: nullable.Of(4), OpenFeedback: nullable.Null[string]()})
	require.NoError(t, err)
	assert.JSONEq(t, `{"overall_rating":4,"open_feedback":null}`, string(data))

	data, err = json.Marshal(Patch{})
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(data))
}

func TestHTTPClient_RoundTrip(t *testing.T) {
	var lastBody map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer token-1", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")

		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/api/surveys/1/responses/me":
			_, _ = io.WriteString(w, "null")
		case r.Method == http.MethodPost && r.URL.Path == "/api/surveys/1/responses":
			w.WriteHeader(http.StatusConflict)
			_, _ = io.WriteString(w, `{"error":"Conflict","message":"response already exists"}`)
		case r.Method == http.MethodPatch && r.URL.Path == "/api/survey-responses/9":
			require.NoError(t, json.NewDecoder(r.Body).Decode(&lastBody))
			_, _ = io.WriteString(w, `{"id":9,"survey_id":1,"overall_rating":5,"open_feedback":null,"completed_at":null}`)
		case r.Method == http.MethodPost && r.URL.Path == "/api/survey-responses/check-gdpr":
			_, _ = io.WriteString(w, `{"containsPersonalData":true,"confidence":0.9,"originalText":"John","anonymizedText":"a participant","detectedDataTypes":["full_name"]}`)
		default:
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = io.WriteString(w, `{"error":"Internal Server Error"}`)
		}
	}))
	defer server.Close()

	ctx := context.Background()
	client := NewHTTPClient(server.URL+"/", "token-1", &http.Client{Timeout: time.Second})

	resp, err := client.GetMyResponse(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, resp, "null означает, что ответа еще нет")

	_, err = client.CreateResponse(ctx, 1)
	assert.ErrorIs(t, err, apperrors.ErrConflict)

	updated, err := client.UpdateResponse(ctx, 9, Patch{OverallRating: nullable.Of(5)})
	require.NoError(t, err)
	assert.Equal(t, 5, *updated.OverallRating)
	assert.Equal(t, map[string]interface{}{"overall_rating": float64(5)}, lastBody)

	verdict, err := client.CheckGDPR(ctx, "John")
	require.NoError(t, err)
	assert.True(t, verdict.ContainsPersonalData)
	assert.Equal(t, "a participant", *verdict.AnonymizedText)

	_, err = client.GetMyResponse(ctx, 2)
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusInternalServerError, statusErr.Status)
}
