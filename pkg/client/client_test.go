package client

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	cpupmv1 "github.com/jamesainslie/cpupm/pkg/api/cpupm/v1"
	"github.com/jamesainslie/cpupm/pkg/cpupm/cpu"
	"github.com/jamesainslie/cpupm/pkg/cpupm/history"
	"github.com/jamesainslie/cpupm/pkg/cpupm/profile"
	"github.com/jamesainslie/cpupm/pkg/daemon/broadcaster"
)

// mockDaemonServer implements cpupmv1.DaemonServer for testing.
type mockDaemonServer struct {
	cpupmv1.UnimplementedDaemonServer
	applied       []cpupmv1.ApplyRequest
	historyLimit  int32
	restoreID     string
	shutdownCalls int
	watchTypes    []string
}

func (m *mockDaemonServer) GetInfo(context.Context, *emptypb.Empty) (*structpb.Struct, error) {
	return cpupmv1.Encode(&cpu.Info{Model: "Mock CPU", CoreCount: 8, Driver: cpu.AcpiCpufreq})
}

func (m *mockDaemonServer) GetStatus(context.Context, *emptypb.Empty) (*structpb.Struct, error) {
	return cpupmv1.Encode(cpupmv1.StatusReply{
		Cores:         []cpu.CoreStatus{{ID: 0, Governor: "ondemand", Online: true}},
		ActiveProfile: "Balanced",
	})
}

func (m *mockDaemonServer) ListProfiles(context.Context, *emptypb.Empty) (*structpb.Struct, error) {
	return cpupmv1.Encode(cpupmv1.ProfilesReply{Profiles: profile.Builtins()})
}

func (m *mockDaemonServer) ApplyProfile(_ context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in cpupmv1.ApplyRequest
	if err := cpupmv1.Decode(req, &in); err != nil {
		return nil, err
	}
	m.applied = append(m.applied, in)
	if in.Name == "Missing" {
		return nil, status.Error(codes.NotFound, `profile "Missing" not found`)
	}
	return cpupmv1.Encode(&history.Entry{ID: "e1", Operation: history.OpApply, Status: history.StatusOK, Profile: in.Name})
}

func (m *mockDaemonServer) ListHistory(_ context.Context, req *wrapperspb.Int32Value) (*structpb.Struct, error) {
	m.historyLimit = req.GetValue()
	return cpupmv1.Encode(cpupmv1.HistoryReply{Entries: []*history.Entry{{ID: "e1", Operation: history.OpApply}}})
}

func (m *mockDaemonServer) Restore(_ context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	m.restoreID = req.GetValue()
	return cpupmv1.Encode(&history.Entry{ID: "e2", Operation: history.OpRestore, RestoredFrom: req.GetValue()})
}

func (m *mockDaemonServer) Shutdown(context.Context, *emptypb.Empty) (*emptypb.Empty, error) {
	m.shutdownCalls++
	return &emptypb.Empty{}, nil
}

func (m *mockDaemonServer) WatchEvents(req *structpb.Struct, stream grpc.ServerStreamingServer[structpb.Struct]) error {
	var in cpupmv1.WatchRequest
	if err := cpupmv1.Decode(req, &in); err != nil {
		return err
	}
	m.watchTypes = in.Types
	for _, e := range []broadcaster.Event{
		{Type: broadcaster.EventProfileApplied, Profile: "Silent", EntryID: "e1"},
		{Type: broadcaster.EventStateRestored, EntryID: "e2"},
	} {
		msg, err := cpupmv1.Encode(e)
		if err != nil {
			return err
		}
		if err := stream.Send(msg); err != nil {
			return err
		}
	}
	return nil
}

func startMockServer(t *testing.T, mock *mockDaemonServer) string {
	t.Helper()
	socketPath := filepath.Join(t.TempDir(), "cpupmd.sock")

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	srv := grpc.NewServer()
	cpupmv1.RegisterDaemonServer(srv, mock)
	go func() { _ = srv.Serve(listener) }()
	t.Cleanup(srv.Stop)

	return socketPath
}

func connect(t *testing.T, socketPath string) *Client {
	t.Helper()
	c, err := Connect(socketPath)
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestConnect_NoSocket(t *testing.T) {
	_, err := Connect(filepath.Join(t.TempDir(), "missing.sock"))
	if err == nil || !strings.Contains(err.Error(), "daemon socket not found") {
		t.Errorf("Expected socket-not-found error, got %v", err)
	}
}

func TestClient_ReadCalls(t *testing.T) {
	c := connect(t, startMockServer(t, &mockDaemonServer{}))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	info, err := c.Info(ctx)
	if err != nil {
		t.Fatalf("Info failed: %v", err)
	}
	if info.Model != "Mock CPU" || info.Driver != cpu.AcpiCpufreq || info.CoreCount != 8 {
		t.Errorf("Unexpected info: %+v", info)
	}

	st, err := c.Status(ctx)
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if st.ActiveProfile != "Balanced" || len(st.Cores) != 1 || st.Turbo != nil {
		t.Errorf("Unexpected status: %+v", st)
	}

	profiles, err := c.Profiles(ctx)
	if err != nil {
		t.Fatalf("Profiles failed: %v", err)
	}
	if len(profiles) != 4 || profiles[2].Name != profile.NamePowerSaver {
		t.Errorf("Unexpected profiles: %+v", profiles)
	}
}

func TestClient_ApplyRestore(t *testing.T) {
	mock := &mockDaemonServer{}
	c := connect(t, startMockServer(t, mock))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	entry, err := c.Apply(ctx, "Silent", true)
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if entry.Profile != "Silent" || entry.Status != history.StatusOK {
		t.Errorf("Unexpected entry: %+v", entry)
	}
	if len(mock.applied) != 1 || !mock.applied[0].RevertOnFailure {
		t.Errorf("Request not forwarded: %+v", mock.applied)
	}

	_, err = c.Apply(ctx, "Missing", false)
	if status.Code(err) != codes.NotFound {
		t.Errorf("Expected NotFound, got %v", err)
	}

	entries, err := c.History(ctx, 7)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(entries) != 1 || mock.historyLimit != 7 {
		t.Errorf("Unexpected history call: %d entries, limit %d", len(entries), mock.historyLimit)
	}

	restored, err := c.Restore(ctx, "e1")
	if err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	if restored.RestoredFrom != "e1" || mock.restoreID != "e1" {
		t.Errorf("Unexpected restore: %+v", restored)
	}

	if err := c.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}
	if mock.shutdownCalls != 1 {
		t.Errorf("Expected 1 shutdown call, got %d", mock.shutdownCalls)
	}
}

func TestClient_WatchEvents(t *testing.T) {
	mock := &mockDaemonServer{}
	c := connect(t, startMockServer(t, mock))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	events, err := c.WatchEvents(ctx, broadcaster.EventProfileApplied, broadcaster.EventStateRestored)
	if err != nil {
		t.Fatalf("WatchEvents failed: %v", err)
	}

	var got []broadcaster.Event
	for e := range events {
		got = append(got, e)
	}

	if len(got) != 2 {
		t.Fatalf("Expected 2 events, got %d", len(got))
	}
	if got[0].Type != broadcaster.EventProfileApplied || got[0].Profile != "Silent" {
		t.Errorf("Unexpected first event: %+v", got[0])
	}
	if got[1].Type != broadcaster.EventStateRestored || got[1].EntryID != "e2" {
		t.Errorf("Unexpected second event: %+v", got[1])
	}
	if len(mock.watchTypes) != 2 || mock.watchTypes[0] != "profile_applied" {
		t.Errorf("Filter not forwarded: %v", mock.watchTypes)
	}
}

func TestResolveBinary(t *testing.T) {
	if _, err := resolveBinary(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Error("Expected error for missing configured binary")
	}

	bin := filepath.Join(t.TempDir(), DaemonBinary)
	if err := os.WriteFile(bin, []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	got, err := resolveBinary(bin)
	if err != nil || got != bin {
		t.Errorf("resolveBinary() = %q, %v", got, err)
	}
}

func TestStopDaemon_NotRunning(t *testing.T) {
	dir := t.TempDir()
	paths := DaemonPaths{Socket: filepath.Join(dir, "cpupmd.sock"), PID: filepath.Join(dir, "cpupmd.pid")}
	if err := StopDaemon(paths); err != nil {
		t.Errorf("Expected nil when daemon is not running, got %v", err)
	}
}

func TestStartDaemon_ReportsStartupError(t *testing.T) {
	dir := t.TempDir()
	socketPath := filepath.Join(dir, "cpupmd.sock")
	statusPath := filepath.Join(dir, "cpupmd.status")

	// A stand-in daemon that fails the way cpupmd reports startup errors.
	bin := filepath.Join(dir, DaemonBinary)
	script := "#!/bin/sh\nprintf '{\"status\":\"error\",\"error\":\"no cpufreq support\"}' > " + statusPath + "\n"
	if err := os.WriteFile(bin, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}

	err := StartDaemon(DaemonPaths{Binary: bin, Socket: socketPath, PID: filepath.Join(dir, "cpupmd.pid")})
	if err == nil || !strings.Contains(err.Error(), "no cpufreq support") {
		t.Errorf("Expected startup error to be reported, got %v", err)
	}
}
