package cpupmv1

import (
	"encoding/json"
	"fmt"
	"time"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/jamesainslie/cpupm/pkg/cpupm/cpu"
	"github.com/jamesainslie/cpupm/pkg/cpupm/history"
	"github.com/jamesainslie/cpupm/pkg/cpupm/profile"
)

// ApplyRequest is the ApplyProfile payload.
type ApplyRequest struct {
	Name            string `json:"name"`
	RevertOnFailure bool   `json:"revert_on_failure,omitempty"`
}

// StatusReply is the GetStatus payload. Turbo is nil when the driver has no
// turbo control.
type StatusReply struct {
	Cores         []cpu.CoreStatus `json:"cores"`
	Turbo         *bool            `json:"turbo,omitempty"`
	ActiveProfile string           `json:"active_profile,omitempty"`
	StartedAt     time.Time        `json:"started_at"`
}

// ProfilesReply is the ListProfiles payload.
type ProfilesReply struct {
	Profiles []profile.Profile `json:"profiles"`
}

// HistoryReply is the ListHistory payload.
type HistoryReply struct {
	Entries []*history.Entry `json:"entries"`
}

// WatchRequest is the WatchEvents payload. Empty Types means every event.
// Each streamed message is a broadcaster.Event.
type WatchRequest struct {
	Types []string `json:"types,omitempty"`
}

// Encode converts v to a Struct through its JSON form. v must encode as a
// JSON object.
func Encode(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding %T: %w", v, err)
	}
	s := &structpb.Struct{}
	if err := protojson.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("encoding %T: %w", v, err)
	}
	return s, nil
}

// Decode fills v from s.
func Decode(s *structpb.Struct, v any) error {
	data, err := protojson.Marshal(s)
	if err != nil {
		return fmt.Errorf("decoding %T: %w", v, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decoding %T: %w", v, err)
	}
	return nil
}
