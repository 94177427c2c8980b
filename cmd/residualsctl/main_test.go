package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/residuals/internal/auth"
	"github.com/mmynk/residuals/pkg/api"
)

type stubSync struct {
	syncReq    *api.SyncRequest
	deleteReq  *api.DeleteOrphansRequest
	authHeader string
	orphans    []api.Orphan
}

func (s *stubSync) SyncNow(_ context.Context, req *connect.Request[api.SyncRequest]) (*connect.Response[api.SyncResponse], error) {
	s.syncReq = req.Msg
	s.authHeader = req.Header().Get("Authorization")
	return connect.NewResponse(&api.SyncResponse{Success: true, Created: 2, Updated: 1, Orphans: s.orphans}), nil
}

func (s *stubSync) ListOrphans(_ context.Context, req *connect.Request[api.SyncRequest]) (*connect.Response[api.ListOrphansResponse], error) {
	s.syncReq = req.Msg
	return connect.NewResponse(&api.ListOrphansResponse{Orphans: s.orphans}), nil
}

func (s *stubSync) DeleteOrphans(_ context.Context, req *connect.Request[api.DeleteOrphansRequest]) (*connect.Response[api.DeleteOrphansResponse], error) {
	s.deleteReq = req.Msg
	return connect.NewResponse(&api.DeleteOrphansResponse{
		Success: false,
		Deleted: len(req.Msg.RecordIDs) - 1,
		Errors:  []string{"record rec2 belongs to payout p1"},
	}), nil
}

func runCLI(t *testing.T, stub *stubSync, args ...string) (string, error) {
	t.Helper()
	mux := http.NewServeMux()
	mux.Handle(api.NewSyncServiceHandler(stub))
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append([]string{"--server", server.URL, "--token", "tok"}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestSyncCommand(t *testing.T) {
	stub := &stubSync{orphans: []api.Orphan{{RecordID: "rec9", PayoutID: "gone", MID: "4242"}}}
	out, err := runCLI(t, stub, "sync", "--mid", "4242")
	require.NoError(t, err)

	assert.Equal(t, "4242", stub.syncReq.MID)
	assert.Equal(t, "Bearer tok", stub.authHeader)
	assert.Contains(t, out, "created 2, updated 1")
	assert.Contains(t, out, "rec9")
}

func TestSyncCommand_JSON(t *testing.T) {
	stub := &stubSync{}
	out, err := runCLI(t, stub, "sync", "--json", "--payout", "p1,p2")
	require.NoError(t, err)

	assert.Equal(t, []string{"p1", "p2"}, stub.syncReq.PayoutIDs)
	assert.Contains(t, out, `"created": 2`)
}

func TestOrphansCommands(t *testing.T) {
	stub := &stubSync{}
	out, err := runCLI(t, stub, "orphans", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "no orphaned records")

	out, err = runCLI(t, stub, "orphans", "delete", "rec1", "rec2")
	require.Error(t, err)
	assert.Equal(t, []string{"rec1", "rec2"}, stub.deleteReq.RecordIDs)
	assert.Contains(t, out, "deleted 1 records")

	_, err = runCLI(t, stub, "orphans", "delete")
	assert.Error(t, err)
}

func TestTokenCommand(t *testing.T) {
	t.Setenv("JWT_SECRET", "cli-secret")
	t.Chdir(t.TempDir())

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"token", "--operator", "ops-9", "--email", "ops9@example.com"})
	require.NoError(t, cmd.Execute())

	claims, err := auth.NewJWTManager("cli-secret", time.Hour).Validate(strings.TrimSpace(out.String()))
	require.NoError(t, err)
	assert.Equal(t, "ops-9", claims.OperatorID)
}
