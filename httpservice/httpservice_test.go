package httpservice

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/intentgw/gateway/plan"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCallSuccess(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "u1", body["userId"])
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}))
	defer srv.Close()

	client := New(map[string]string{"UserService": srv.URL})
	value, status, err := client.Call(
		context.Background(), "UserService", "GetUser",
		map[string]plan.Value{"userId": "u1"}, "Bearer tok-abc",
	)
	require.NoError(t, err)
	require.NotNil(t, status)
	assert.Equal(t, 200, *status)
	assert.Equal(t, "Bearer tok-abc", gotAuth)
	m, ok := plan.AsMap(value)
	require.True(t, ok)
	assert.Equal(t, true, m["ok"])
}

func TestCallErrorStatusPropagatesMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]any{"message": "user not found"})
	}))
	defer srv.Close()

	client := New(map[string]string{"UserService": srv.URL})
	_, status, err := client.Call(context.Background(), "UserService", "GetUser", nil, "")
	require.Error(t, err)
	require.NotNil(t, status)
	assert.Equal(t, 404, *status)
	assert.Contains(t, err.Error(), "user not found")
}

func TestCallUnknownService(t *testing.T) {
	client := New(map[string]string{})
	_, status, err := client.Call(context.Background(), "Nope", "Fn", nil, "")
	assert.Error(t, err)
	assert.Nil(t, status)
}
