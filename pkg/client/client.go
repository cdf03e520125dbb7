// Package client connects to cpupmd over its Unix socket and converts the
// wire payloads back into cpupm types.
package client

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	cpupmv1 "github.com/jamesainslie/cpupm/pkg/api/cpupm/v1"
	"github.com/jamesainslie/cpupm/pkg/cpupm/config"
	"github.com/jamesainslie/cpupm/pkg/cpupm/cpu"
	"github.com/jamesainslie/cpupm/pkg/cpupm/history"
	"github.com/jamesainslie/cpupm/pkg/cpupm/profile"
	"github.com/jamesainslie/cpupm/pkg/daemon"
	"github.com/jamesainslie/cpupm/pkg/daemon/broadcaster"
)

// DaemonBinary is the daemon executable name.
const DaemonBinary = "cpupmd"

// Client connects to cpupmd via gRPC.
type Client struct {
	conn *grpc.ClientConn
	api  cpupmv1.DaemonClient
}

// Connect establishes a connection with a 5 second timeout.
func Connect(socketPath string) (*Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return ConnectWithContext(ctx, socketPath)
}

// ConnectWithContext establishes a connection, blocking until it is ready
// or ctx expires.
func ConnectWithContext(ctx context.Context, socketPath string) (*Client, error) {
	if _, err := os.Stat(socketPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("daemon socket not found at %s", socketPath)
	}

	//nolint:staticcheck // grpc.DialContext is deprecated but NewClient doesn't support blocking
	conn, err := grpc.DialContext(
		ctx,
		"unix://"+socketPath,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithBlock(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to daemon: %w", err)
	}

	return &Client{
		conn: conn,
		api:  cpupmv1.NewDaemonClient(conn),
	}, nil
}

// Close closes the connection to the daemon.
func (c *Client) Close() error {
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// Info returns the daemon's view of the processor.
func (c *Client) Info(ctx context.Context) (*cpu.Info, error) {
	reply, err := c.api.GetInfo(ctx, &emptypb.Empty{})
	if err != nil {
		return nil, fmt.Errorf("GetInfo RPC failed: %w", err)
	}
	var info cpu.Info
	if err := cpupmv1.Decode(reply, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// Status returns per-core status, turbo state and the active profile.
func (c *Client) Status(ctx context.Context) (*cpupmv1.StatusReply, error) {
	reply, err := c.api.GetStatus(ctx, &emptypb.Empty{})
	if err != nil {
		return nil, fmt.Errorf("GetStatus RPC failed: %w", err)
	}
	var st cpupmv1.StatusReply
	if err := cpupmv1.Decode(reply, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// Profiles lists the daemon's profiles, built-ins first.
func (c *Client) Profiles(ctx context.Context) ([]profile.Profile, error) {
	reply, err := c.api.ListProfiles(ctx, &emptypb.Empty{})
	if err != nil {
		return nil, fmt.Errorf("ListProfiles RPC failed: %w", err)
	}
	var list cpupmv1.ProfilesReply
	if err := cpupmv1.Decode(reply, &list); err != nil {
		return nil, err
	}
	return list.Profiles, nil
}

// Apply applies a profile by name and returns its history entry.
func (c *Client) Apply(ctx context.Context, name string, revertOnFailure bool) (*history.Entry, error) {
	req, err := cpupmv1.Encode(cpupmv1.ApplyRequest{Name: name, RevertOnFailure: revertOnFailure})
	if err != nil {
		return nil, err
	}
	reply, err := c.api.ApplyProfile(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("ApplyProfile RPC failed: %w", err)
	}
	return decodeEntry(reply)
}

// History returns up to limit journal entries, newest first.
func (c *Client) History(ctx context.Context, limit int) ([]*history.Entry, error) {
	reply, err := c.api.ListHistory(ctx, wrapperspb.Int32(int32(limit)))
	if err != nil {
		return nil, fmt.Errorf("ListHistory RPC failed: %w", err)
	}
	var list cpupmv1.HistoryReply
	if err := cpupmv1.Decode(reply, &list); err != nil {
		return nil, err
	}
	return list.Entries, nil
}

// Restore restores the snapshot stored on entry id (or a unique prefix).
func (c *Client) Restore(ctx context.Context, id string) (*history.Entry, error) {
	reply, err := c.api.Restore(ctx, wrapperspb.String(id))
	if err != nil {
		return nil, fmt.Errorf("Restore RPC failed: %w", err)
	}
	return decodeEntry(reply)
}

// Shutdown asks the daemon to exit.
func (c *Client) Shutdown(ctx context.Context) error {
	if _, err := c.api.Shutdown(ctx, &emptypb.Empty{}); err != nil {
		return fmt.Errorf("Shutdown RPC failed: %w", err)
	}
	return nil
}

// WatchEvents streams daemon events of the given types (all when empty).
// The channel closes when ctx ends or the daemon goes away.
func (c *Client) WatchEvents(ctx context.Context, types ...broadcaster.EventType) (<-chan broadcaster.Event, error) {
	req := cpupmv1.WatchRequest{}
	for _, t := range types {
		req.Types = append(req.Types, string(t))
	}
	in, err := cpupmv1.Encode(req)
	if err != nil {
		return nil, err
	}

	stream, err := c.api.WatchEvents(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("WatchEvents RPC failed: %w", err)
	}

	events := make(chan broadcaster.Event, 16)
	go func() {
		defer close(events)
		for {
			msg, err := stream.Recv()
			if err != nil {
				return // Stream closed or error
			}
			var e broadcaster.Event
			if err := cpupmv1.Decode(msg, &e); err != nil {
				continue
			}
			select {
			case events <- e:
			case <-ctx.Done():
				return
			}
		}
	}()

	return events, nil
}

func decodeEntry(reply *structpb.Struct) (*history.Entry, error) {
	var e history.Entry
	if err := cpupmv1.Decode(reply, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// DaemonPaths configures paths for daemon operations. Empty fields use
// defaults.
type DaemonPaths struct {
	Binary string   // cpupmd binary (auto-discovered if empty)
	Socket string   // Unix socket path
	PID    string   // PID file path
	Args   []string // extra daemon arguments, e.g. --config
}

func (p DaemonPaths) withDefaults() DaemonPaths {
	if p.Socket == "" {
		p.Socket = config.DefaultSocketPath()
	}
	if p.PID == "" {
		p.PID = config.DefaultPIDPath()
	}
	return p
}

// IsDaemonRunning reports whether the process in pidPath is alive.
func IsDaemonRunning(pidPath string) bool {
	return daemon.IsDaemonRunning(pidPath)
}

// StartDaemon starts cpupmd in the background and waits until it is ready.
// It returns nil if the daemon is already running.
func StartDaemon(paths DaemonPaths) error {
	paths = paths.withDefaults()

	if IsDaemonRunning(paths.PID) {
		return nil
	}

	binary, err := resolveBinary(paths.Binary)
	if err != nil {
		return fmt.Errorf("find %s: %w", DaemonBinary, err)
	}

	statusPath := daemon.StatusPath(paths.Socket)
	_ = os.Remove(statusPath)

	// The daemon must outlive this process, so no CommandContext.
	cmd := exec.Command(binary, paths.Args...) //nolint:gosec // binary path is resolved above
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start daemon: %w", err)
	}
	if cmd.Process != nil {
		_ = cmd.Process.Release()
	}

	for range 50 {
		time.Sleep(100 * time.Millisecond)

		if status, err := daemon.ReadStatus(statusPath); err == nil {
			switch status.Status {
			case daemon.StatusReady:
				return nil
			case daemon.StatusError:
				return fmt.Errorf("daemon failed to start: %s", status.Error)
			}
		}
		if _, err := os.Stat(paths.Socket); err == nil {
			return nil
		}
	}

	return errors.New("daemon did not become ready within timeout")
}

// StopDaemon stops the daemon via RPC and waits for it to exit. It returns
// nil if the daemon is not running.
func StopDaemon(paths DaemonPaths) error {
	paths = paths.withDefaults()

	if !IsDaemonRunning(paths.PID) {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	c, err := ConnectWithContext(ctx, paths.Socket)
	if err != nil {
		return fmt.Errorf("connect to daemon: %w", err)
	}
	defer c.Close()

	if err := c.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown daemon: %w", err)
	}

	for range 20 {
		time.Sleep(250 * time.Millisecond)
		if !IsDaemonRunning(paths.PID) {
			return nil
		}
	}
	return errors.New("daemon did not stop within timeout")
}

// resolveBinary finds cpupmd: the configured path, then next to the
// running executable, then PATH.
func resolveBinary(configured string) (string, error) {
	if configured != "" {
		if _, err := os.Stat(configured); err != nil {
			return "", fmt.Errorf("configured binary not found: %s", configured)
		}
		return configured, nil
	}

	if execPath, err := os.Executable(); err == nil {
		candidate := filepath.Join(filepath.Dir(execPath), DaemonBinary)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}

	if path, err := exec.LookPath(DaemonBinary); err == nil {
		return path, nil
	}

	return "", fmt.Errorf("%s not found", DaemonBinary)
}
