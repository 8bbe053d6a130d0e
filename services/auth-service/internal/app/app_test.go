package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health/grpc_health_v1"

	"github.com/vasapolrittideah/lang-app-api/services/auth-service/internal/config"
	"github.com/vasapolrittideah/lang-app-api/services/auth-service/internal/payload"
)

func newTestConfig(t *testing.T, redisAddr string) *config.AuthServiceConfig {
	t.Helper()

	return &config.AuthServiceConfig{
		DatabaseURL: filepath.Join(t.TempDir(), "auth.db"),
		Redis: config.RedisConfig{
			Addr:    redisAddr,
			Timeout: time.Second,
		},
		Token: config.TokenConfig{
			Issuer:           "lang-app",
			SessionSecret:    "test-secret",
			SessionExpiresIn: time.Hour,
		},
		Password: config.PasswordConfig{
			MinLength:         6,
			Argon2TimeCost:    1,
			Argon2MemoryCost:  1024,
			Argon2Parallelism: 1,
		},
		Audit: config.AuditConfig{BufferSize: 16},
	}
}

func postJSON(t *testing.T, url, token string, body any) *http.Response {
	t.Helper()

	data, err := json.Marshal(body)
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(data))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })

	return resp
}

func getMe(t *testing.T, url, token string) payload.MeResponse {
	t.Helper()

	req, err := http.NewRequest(http.MethodGet, url+"/api/me", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var me payload.MeResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&me))
	return me
}

func TestApp_ServeEndToEnd(t *testing.T) {
	mr := miniredis.RunT(t)
	logger := zerolog.Nop()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := NewApp(ctx, newTestConfig(t, mr.Addr()), &logger)
	require.NoError(t, err)

	httpLn, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	healthLn, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- app.Serve(ctx, httpLn, healthLn) }()

	baseURL := "http://" + httpLn.Addr().String()

	conn, err := grpc.NewClient(healthLn.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	defer conn.Close()

	healthClient := grpc_health_v1.NewHealthClient(conn)
	require.Eventually(t, func() bool {
		resp, err := healthClient.Check(ctx, &grpc_health_v1.HealthCheckRequest{Service: ServiceName})
		return err == nil && resp.GetStatus() == grpc_health_v1.HealthCheckResponse_SERVING
	}, 5*time.Second, 20*time.Millisecond)

	resp := postJSON(t, baseURL+"/api/auth/register", "", payload.RegisterRequest{
		Username: "alice",
		Email:    "a@x.com",
		Password: "s3cret1",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var registered payload.AuthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&registered))
	assert.Equal(t, int64(1), registered.User.ID)
	assert.NotEmpty(t, registered.Token)

	resp = postJSON(t, baseURL+"/api/auth/register", "", payload.RegisterRequest{
		Username: "alice",
		Email:    "b@x.com",
		Password: "other",
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = postJSON(t, baseURL+"/api/auth/login", "", payload.LoginRequest{Username: "alice", Password: "wrong"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = postJSON(t, baseURL+"/api/auth/login", "", payload.LoginRequest{Username: "alice", Password: "s3cret1"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var loggedIn payload.AuthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&loggedIn))
	assert.Equal(t, int64(1), loggedIn.User.ID)

	me := getMe(t, baseURL, loggedIn.Token)
	assert.True(t, me.Authenticated)
	require.NotNil(t, me.User)
	assert.Equal(t, "a@x.com", me.User.Email)

	resp = postJSON(t, baseURL+"/api/auth/reset-password", "", payload.ResetPasswordRequest{
		Username:    "alice",
		NewPassword: "n3wpass",
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = postJSON(t, baseURL+"/api/auth/login", "", payload.LoginRequest{Username: "alice", Password: "s3cret1"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = postJSON(t, baseURL+"/api/auth/login", "", payload.LoginRequest{Username: "alice", Password: "n3wpass"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = postJSON(t, baseURL+"/api/auth/logout", loggedIn.Token, struct{}{})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	assert.False(t, getMe(t, baseURL, loggedIn.Token).Authenticated)

	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestNewApp_SessionStoreUnavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	logger := zerolog.Nop()
	_, err := NewApp(context.Background(), newTestConfig(t, addr), &logger)
	assert.ErrorContains(t, err, "session store")
}

func TestNewDependencies_CanonicalStoreFailure(t *testing.T) {
	logger := zerolog.Nop()
	cfg := newTestConfig(t, "127.0.0.1:0")
	cfg.DatabaseURL = filepath.Join(t.TempDir(), "missing", "dir", "auth.db")

	_, err := NewDependencies(context.Background(), cfg, &logger)
	assert.ErrorContains(t, err, "canonical store")
}
