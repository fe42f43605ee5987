package gate

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eduyeet/authgate/internal/domain/auth"
)

func TestRemoteChecker_ValidateSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, validatePath, r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Query().Get("jti") {
		case "active":
			_ = json.NewEncoder(w).Encode(map[string]any{"valid": true})
		case "broken":
			w.WriteHeader(http.StatusInternalServerError)
			_ = json.NewEncoder(w).Encode(map[string]any{"valid": false})
		default:
			_ = json.NewEncoder(w).Encode(map[string]any{"valid": false, "reason": "Token revoked"})
		}
	}))
	defer srv.Close()

	checker := NewRemoteChecker(srv.URL+"/", time.Second)

	res, err := checker.ValidateSession(context.Background(), "active")
	require.NoError(t, err)
	assert.True(t, res.Valid)

	res, err = checker.ValidateSession(context.Background(), "revoked")
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.Equal(t, "Token revoked", res.Reason)

	_, err = checker.ValidateSession(context.Background(), "broken")
	assert.ErrorIs(t, err, ErrRemoteRejected)
}

func TestRemoteChecker_Rotate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, refreshPath, r.URL.Path)
		assert.Equal(t, "10.2.2.2", r.Header.Get("X-Forwarded-For"))

		w.Header().Set("Content-Type", "application/json")
		if r.Header.Get("Authorization") != "Bearer old" {
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]any{"success": false})
			return
		}
		assert.Equal(t, "browser", r.UserAgent())
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"data":    map[string]string{"access_token": "new"},
		})
	}))
	defer srv.Close()

	checker := NewRemoteChecker(srv.URL, time.Second)

	fresh, err := checker.Rotate(context.Background(), "old", "10.2.2.2", "browser")
	require.NoError(t, err)
	assert.Equal(t, "new", fresh)

	_, err = checker.Rotate(context.Background(), "stale", "10.2.2.2", "")
	assert.ErrorIs(t, err, ErrRemoteRejected)
}

func TestRemoteChecker_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	checker := NewRemoteChecker(url, 200*time.Millisecond)
	_, err := checker.ValidateSession(context.Background(), "any")
	assert.Error(t, err)

	_, err = checker.Rotate(context.Background(), "old", "", "")
	assert.Error(t, err)
}

func TestRemoteChecker_InternalKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.Header.Get(auth.InternalKeyHeader) != "gate-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"valid": true})
	}))
	defer srv.Close()

	res, err := NewRemoteChecker(srv.URL, time.Second, WithInternalKey("gate-key")).ValidateSession(context.Background(), "active")
	require.NoError(t, err)
	assert.True(t, res.Valid)

	_, err = NewRemoteChecker(srv.URL, time.Second).ValidateSession(context.Background(), "active")
	assert.ErrorIs(t, err, ErrRemoteRejected)
}

func TestRemoteChecker_HonoursContext(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		time.Sleep(500 * time.Millisecond)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"valid": true})
	}))
	defer srv.Close()

	checker := NewRemoteChecker(srv.URL, 5*time.Second)

	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := checker.ValidateSession(ctx, "active")
		assert.ErrorIs(t, err, context.Canceled)
		_, err = checker.Rotate(ctx, "old", "", "")
		assert.ErrorIs(t, err, context.Canceled)
		assert.Zero(t, hits.Load())
	})

	t.Run("deadline shorter than timeout", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		start := time.Now()
		_, err := checker.ValidateSession(ctx, "active")
		assert.Error(t, err)
		assert.Less(t, time.Since(start), 400*time.Millisecond)
	})
}
