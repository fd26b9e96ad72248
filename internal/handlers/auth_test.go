package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"onboard-hub/backend/internal/cache"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

func redisClientFor(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{Addr: addr})
}

func setupLookupRouter(t *testing.T) (*gin.Engine, *cache.SessionCache, *miniredis.Miniredis) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mr := miniredis.RunT(t)
	store := cache.NewRedisCacheWithClient(redisClientFor(mr.Addr()))
	sessions := cache.NewSessionCache(store)

	handler := NewAuthHandler(nil, nil, sessions, nil)

	r := gin.New()
	r.GET("/api/v1/auth/redis/:jti", handler.GetJWTPayload)
	r.GET("/api/v1/auth/user/:user_id/data", handler.GetUserData)
	r.GET("/api/v1/auth/user/:user_id/latest-jti", handler.GetLatestJTI)
	return r, sessions, mr
}

func doGet(r *gin.Engine, path string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest("GET", path, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestGetJWTPayload_Found(t *testing.T) {
	r, sessions, mr := setupLookupRouter(t)
	defer mr.Close()

	payload := map[string]interface{}{"sub": "u1", "exp": float64(1999999999)}
	if err := sessions.StoreJWTPayload(context.Background(), "abc123", payload, time.Hour); err != nil {
		t.Fatalf("Failed to seed token payload: %v", err)
	}

	w := doGet(r, "/api/v1/auth/redis/abc123")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var got map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if got["sub"] != "u1" {
		t.Errorf("Expected sub u1, got %v", got["sub"])
	}
}

func TestGetJWTPayload_NotFound(t *testing.T) {
	r, _, mr := setupLookupRouter(t)
	defer mr.Close()

	w := doGet(r, "/api/v1/auth/redis/missing")
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for missing jti, got %d", w.Code)
	}
}

func TestGetJWTPayload_CacheDown(t *testing.T) {
	r, _, mr := setupLookupRouter(t)
	mr.Close()

	w := doGet(r, "/api/v1/auth/redis/abc123")
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected 503 when cache is down, got %d", w.Code)
	}
}

func TestGetUserData_FoundAndMissing(t *testing.T) {
	r, sessions, mr := setupLookupRouter(t)
	defer mr.Close()

	data := map[string]interface{}{"user_id": "u1", "jti": "abc123"}
	if err := sessions.StoreUserData(context.Background(), "u1", data); err != nil {
		t.Fatalf("Failed to seed user data: %v", err)
	}

	w := doGet(r, "/api/v1/auth/user/u1/data")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}

	w = doGet(r, "/api/v1/auth/user/u2/data")
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown user, got %d", w.Code)
	}
}

func TestGetLatestJTI(t *testing.T) {
	r, sessions, mr := setupLookupRouter(t)
	defer mr.Close()

	payload := map[string]interface{}{"sub": "u1"}
	if err := sessions.StoreJWTPayload(context.Background(), "abc123", payload, time.Hour); err != nil {
		t.Fatalf("Failed to seed token payload: %v", err)
	}

	w := doGet(r, "/api/v1/auth/user/u1/latest-jti")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}

	var got map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if got["latest_jti"] != "abc123" {
		t.Errorf("Expected latest_jti abc123, got %v", got["latest_jti"])
	}
}
