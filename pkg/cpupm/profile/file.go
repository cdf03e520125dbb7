package profile

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// fileFormat is the on-disk layout of the user profiles file:
//
//	[[profile]]
//	name = "Gaming"
//	intent = "performance"
//	governor = "performance"
//	turbo = "always"
//	min_freq_mhz = 2000
type fileFormat struct {
	Profiles []Profile `toml:"profile"`
}

// LoadFile reads user profiles from a TOML file. A missing file yields no
// profiles and no error. Every profile is validated.
func LoadFile(path string) ([]Profile, error) {
	var f fileFormat
	md, err := toml.DecodeFile(path, &f)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading profiles %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		logger.Warn("ignoring unknown keys in profiles file", "path", path, "keys", fmt.Sprint(undecoded))
	}

	for i, p := range f.Profiles {
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("%s: profile %d: %w", path, i+1, err)
		}
	}
	logger.Debug("loaded profiles", "path", path, "count", len(f.Profiles))
	return f.Profiles, nil
}

// SaveFile writes profiles to path, replacing it atomically.
func SaveFile(path string, profiles []Profile) error {
	for _, p := range profiles {
		if err := p.Validate(); err != nil {
			return err
		}
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(fileFormat{Profiles: profiles}); err != nil {
		return fmt.Errorf("encoding profiles: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating profiles directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".profiles-*.toml")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() { _ = os.Remove(tmpPath) }()

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("writing profiles: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing profiles: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		return fmt.Errorf("setting profiles permissions: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("replacing profiles: %w", err)
	}
	return nil
}
