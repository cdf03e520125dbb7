package daemon

import (
	"context"
	"errors"
	"sync"
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
	"github.com/jamesainslie/cpupm/pkg/cpupm/logging"
	"github.com/jamesainslie/cpupm/pkg/cpupm/profile"
	"github.com/jamesainslie/cpupm/pkg/daemon/broadcaster"
)

// defaultHistoryLimit caps ListHistory when the request leaves it at zero.
const defaultHistoryLimit = 50

// Controller is the hardware surface the daemon drives. *cpu.Manager
// implements it.
type Controller interface {
	history.Controller
	Info() (*cpu.Info, error)
	AllCoreStatus() ([]cpu.CoreStatus, error)
}

// Service implements the cpupm.v1.Daemon gRPC service.
type Service struct {
	cpupmv1.UnimplementedDaemonServer

	ctrl        Controller
	profiles    *profile.Registry
	history     *history.Store
	broadcaster *broadcaster.Broadcaster
	startTime   time.Time

	// mu serialises RPCs that write to sysfs so a reset-then-apply
	// sequence never interleaves with another one.
	mu     sync.Mutex
	active string

	done     chan struct{}
	doneOnce sync.Once
}

// NewService creates the service. store may be nil when history is disabled.
func NewService(ctrl Controller, profiles *profile.Registry, store *history.Store) *Service {
	return NewServiceWithBroadcaster(ctrl, profiles, store, nil)
}

// NewServiceWithBroadcaster creates the service with event streaming
// enabled. b may be nil.
func NewServiceWithBroadcaster(ctrl Controller, profiles *profile.Registry, store *history.Store, b *broadcaster.Broadcaster) *Service {
	return &Service{
		ctrl:        ctrl,
		profiles:    profiles,
		history:     store,
		broadcaster: b,
		startTime:   time.Now(),
		done:        make(chan struct{}),
	}
}

func (s *Service) notify(e broadcaster.Event) {
	if s.broadcaster != nil {
		s.broadcaster.Notify(e)
	}
}

// Done is closed when a client requests shutdown.
func (s *Service) Done() <-chan struct{} {
	return s.done
}

// ActiveProfile returns the last profile applied through the daemon.
func (s *Service) ActiveProfile() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// recorder returns the journal, or a nil interface when history is off.
func (s *Service) recorder() history.Recorder {
	if s.history == nil {
		return nil
	}
	return s.history
}

// ReloadProfiles replaces the user profiles with the contents of path. The
// registry is left untouched when the file is invalid.
func (s *Service) ReloadProfiles(path string) error {
	log := logging.Get("daemon")

	loaded, err := profile.LoadFile(path)
	if err != nil {
		log.Error("profile reload failed", "path", path, "error", err)
		s.notify(broadcaster.Event{Type: broadcaster.EventReloadFailed, Message: err.Error()})
		return err
	}
	s.profiles.Reset(loaded...)
	log.Info("profiles reloaded", "path", path, "user_profiles", len(loaded))
	s.notify(broadcaster.Event{Type: broadcaster.EventProfilesReloaded})
	return nil
}

// Apply applies the named profile and journals it. It is used by the
// ApplyProfile RPC and by the daemon at startup.
func (s *Service) Apply(name string, revertOnFailure bool) (*history.Entry, error) {
	p, ok := s.profiles.Get(name)
	if !ok {
		return nil, status.Errorf(codes.NotFound, "profile %q not found", name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, err := history.ApplyProfile(s.ctrl, s.recorder(), p, history.ApplyOptions{
		RevertOnFailure: revertOnFailure,
		Source:          "daemon",
	})
	if err != nil {
		logging.Get("daemon").Error("apply failed", "profile", name, "error", err)
		s.notify(broadcaster.Event{
			Type:    broadcaster.EventApplyFailed,
			Profile: p.Name,
			EntryID: entryID(entry),
			Message: err.Error(),
		})
		return entry, toStatus(err)
	}
	s.active = p.Name
	logging.Get("daemon").Info("profile applied", "profile", name)
	s.notify(broadcaster.Event{Type: broadcaster.EventProfileApplied, Profile: p.Name, EntryID: entryID(entry)})
	return entry, nil
}

// GetInfo implements cpupm.v1.Daemon.
func (s *Service) GetInfo(_ context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	info, err := s.ctrl.Info()
	if err != nil {
		return nil, toStatus(err)
	}
	return encode(info)
}

// GetStatus implements cpupm.v1.Daemon.
func (s *Service) GetStatus(_ context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	cores, err := s.ctrl.AllCoreStatus()
	if err != nil {
		return nil, toStatus(err)
	}
	reply := cpupmv1.StatusReply{
		Cores:         cores,
		ActiveProfile: s.ActiveProfile(),
		StartedAt:     s.startTime,
	}
	turbo, err := s.ctrl.TurboEnabled()
	switch {
	case err == nil:
		reply.Turbo = &turbo
	case !errors.Is(err, cpu.ErrNotSupported):
		return nil, toStatus(err)
	}
	return encode(reply)
}

// ListProfiles implements cpupm.v1.Daemon.
func (s *Service) ListProfiles(_ context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	return encode(cpupmv1.ProfilesReply{Profiles: s.profiles.List()})
}

// ApplyProfile implements cpupm.v1.Daemon.
func (s *Service) ApplyProfile(_ context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in cpupmv1.ApplyRequest
	if err := cpupmv1.Decode(req, &in); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if in.Name == "" {
		return nil, status.Error(codes.InvalidArgument, "profile name is required")
	}

	entry, err := s.Apply(in.Name, in.RevertOnFailure)
	if err != nil {
		return nil, err
	}
	return encode(entry)
}

// ListHistory implements cpupm.v1.Daemon.
func (s *Service) ListHistory(_ context.Context, req *wrapperspb.Int32Value) (*structpb.Struct, error) {
	if s.history == nil {
		return nil, status.Error(codes.FailedPrecondition, "history is disabled")
	}
	limit := int(req.GetValue())
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	entries, err := s.history.List(limit)
	if err != nil {
		return nil, toStatus(err)
	}
	return encode(cpupmv1.HistoryReply{Entries: entries})
}

// Restore implements cpupm.v1.Daemon.
func (s *Service) Restore(_ context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	if s.history == nil {
		return nil, status.Error(codes.FailedPrecondition, "history is disabled")
	}
	target, err := s.history.Get(req.GetValue())
	if err != nil {
		return nil, toStatus(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, err := history.RestoreEntry(s.ctrl, s.history, target, "daemon")
	if err != nil {
		return nil, toStatus(err)
	}
	s.active = ""
	logging.Get("daemon").Info("snapshot restored", "entry", history.ShortID(target.ID))
	s.notify(broadcaster.Event{Type: broadcaster.EventStateRestored, EntryID: entryID(entry)})
	return encode(entry)
}

// Shutdown implements cpupm.v1.Daemon. The server is stopped by whoever
// watches Done, after this reply has been sent.
func (s *Service) Shutdown(_ context.Context, _ *emptypb.Empty) (*emptypb.Empty, error) {
	logging.Get("daemon").Info("shutdown requested")
	s.doneOnce.Do(func() { close(s.done) })
	return &emptypb.Empty{}, nil
}

// WatchEvents implements cpupm.v1.Daemon.
func (s *Service) WatchEvents(req *structpb.Struct, stream grpc.ServerStreamingServer[structpb.Struct]) error {
	if s.broadcaster == nil {
		return status.Error(codes.Unavailable, "event streaming not available")
	}

	var in cpupmv1.WatchRequest
	if err := cpupmv1.Decode(req, &in); err != nil {
		return status.Error(codes.InvalidArgument, err.Error())
	}
	types := make([]broadcaster.EventType, 0, len(in.Types))
	for _, t := range in.Types {
		types = append(types, broadcaster.EventType(t))
	}

	sub := s.broadcaster.Subscribe(types...)
	if sub == nil {
		return status.Error(codes.Unavailable, "failed to subscribe")
	}
	defer s.broadcaster.Unsubscribe(sub.ID)

	ctx := stream.Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.done:
			return nil
		case event, ok := <-sub.Events:
			if !ok {
				return nil
			}
			msg, err := encode(event)
			if err != nil {
				return err
			}
			if err := stream.Send(msg); err != nil {
				return err
			}
		}
	}
}

func entryID(e *history.Entry) string {
	if e == nil {
		return ""
	}
	return e.ID
}

func encode(v any) (*structpb.Struct, error) {
	out, err := cpupmv1.Encode(v)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

// toStatus maps domain errors to gRPC codes. Errors that already carry a
// status pass through.
func toStatus(err error) error {
	if _, ok := status.FromError(err); ok {
		return err
	}
	code := codes.Internal
	switch {
	case errors.Is(err, cpu.ErrPermissionDenied):
		code = codes.PermissionDenied
	case errors.Is(err, cpu.ErrInvalidValue), errors.Is(err, history.ErrAmbiguous):
		code = codes.InvalidArgument
	case errors.Is(err, cpu.ErrNotSupported):
		code = codes.Unimplemented
	case errors.Is(err, history.ErrNotFound):
		code = codes.NotFound
	}
	return status.Error(code, err.Error())
}

var _ cpupmv1.DaemonServer = (*Service)(nil)
