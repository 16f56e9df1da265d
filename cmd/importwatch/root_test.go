package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/matjip/internal/domain"
	"github.com/MrSnakeDoc/matjip/internal/lifecycle"
)

func TestRootRequiresUser(t *testing.T) {
	t.Setenv(envUser, "")

	cmd := newRootCmd()
	cmd.SetArgs([]string{})
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)

	err := cmd.ExecuteContext(context.Background())
	assert.ErrorContains(t, err, "user id is required")
}

func TestResolveEnv(t *testing.T) {
	t.Setenv(envServer, "http://from-env")
	t.Setenv(envUser, "env-user")

	cmd := newRootCmd()
	require.NoError(t, cmd.Flags().Parse([]string{"--user", "flag-user"}))

	opts := &options{server: defaultServer, user: "flag-user"}
	opts.resolveEnv(cmd)

	assert.Equal(t, "http://from-env", opts.server, "unset flag falls back to env")
	assert.Equal(t, "flag-user", opts.user, "explicit flag wins")
}

func TestRootUploadsAndCompletes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/api/imports/naver":
			// nothing new: summary without an id
			_ = json.NewEncoder(w).Encode(domain.ImportBatch{SkippedCount: 1, EnrichmentStatus: domain.StatusCompleted})
		case r.Method == http.MethodGet && r.URL.Path == "/api/imports":
			_ = json.NewEncoder(w).Encode(lifecycle.HistoryResponse{Batches: []*domain.ImportBatch{}})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "export.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"bookmarkList":[{"name":"을지면옥","px":126.99,"py":37.56}]}`), 0o600))

	cmd := newRootCmd()
	cmd.SetArgs([]string{"--server", srv.URL, "--user", "u1", "--file", path, "--log-level", "error"})
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)

	assert.NoError(t, cmd.ExecuteContext(context.Background()))
}

func TestRootReportsFailedUpload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			_ = json.NewEncoder(w).Encode(lifecycle.HistoryResponse{})
			return
		}
		http.Error(w, `{"error":"import failed"}`, http.StatusInternalServerError)
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "export.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"bookmarkList":[]}`), 0o600))

	cmd := newRootCmd()
	cmd.SetArgs([]string{"--server", srv.URL, "--user", "u1", "--file", path, "--log-level", "error"})
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)

	assert.ErrorContains(t, cmd.ExecuteContext(context.Background()), "unexpected status 500")
}

