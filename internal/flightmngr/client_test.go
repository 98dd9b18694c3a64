package flightmngr_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ScalabilityIssues/ticket-service/internal/apperrors"
	"github.com/ScalabilityIssues/ticket-service/internal/flightmngr"
)

type staticTokens string

func (s staticTokens) Token(context.Context) (string, error) { return string(s), nil }

func TestGetPlaneDetailsChainsLookups(t *testing.T) {
	var authHeaders []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeaders = append(authHeaders, r.Header.Get("Authorization"))
		switch r.URL.Path {
		case "/v1/flights/F1":
			json.NewEncoder(w).Encode(map[string]any{"id": "F1", "plane_id": "P7"})
		case "/v1/planes/P7":
			json.NewEncoder(w).Encode(map[string]any{"id": "P7", "cabin_capacity": 180})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	client := flightmngr.NewClient(srv.URL, srv.Client(), staticTokens("m2m-token"))

	plane, err := client.GetPlaneDetails(context.Background(), "F1")
	require.NoError(t, err)
	assert.Equal(t, "P7", plane.ID)
	assert.EqualValues(t, 180, plane.CabinCapacity)

	require.Len(t, authHeaders, 2)
	for _, h := range authHeaders {
		assert.Equal(t, "Bearer m2m-token", h)
	}
}

func TestGetPlaneDetailsPropagatesRemoteError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"error": "flight not found"})
	}))
	defer srv.Close()

	client := flightmngr.NewClient(srv.URL, srv.Client(), nil)

	_, err := client.GetPlaneDetails(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeNotFound, apperrors.CodeOf(err))
	assert.Equal(t, "flight not found", apperrors.MessageOf(err))
}

func TestGetPlaneDetailsServerFailureIsInternal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := flightmngr.NewClient(srv.URL, srv.Client(), nil)

	_, err := client.GetPlaneDetails(context.Background(), "F1")
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeInternal, apperrors.CodeOf(err))
}
