// Package sysdump collects every readable cpufreq attribute under a sysfs cpu
// directory for bug reports.
package sysdump

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/charlievieth/fastwalk"

	"github.com/jamesainslie/cpupm/pkg/cpupm/cpu"
	"github.com/jamesainslie/cpupm/pkg/cpupm/logging"
)

var logger = logging.Get("sysdump")

// Attribute is one sysfs file. Path is relative to the dump base.
type Attribute struct {
	Path  string `json:"path" yaml:"path"`
	Value string `json:"value,omitempty" yaml:"value,omitempty"`
	Error string `json:"error,omitempty" yaml:"error,omitempty"`
}

// Dump is the result of Collect.
type Dump struct {
	Base       string      `json:"base" yaml:"base"`
	Driver     cpu.Driver  `json:"driver" yaml:"driver"`
	Attributes []Attribute `json:"attributes" yaml:"attributes"`
}

// Get returns the attribute at rel, if collected.
func (d *Dump) Get(rel string) (Attribute, bool) {
	i := sort.Search(len(d.Attributes), func(i int) bool { return d.Attributes[i].Path >= rel })
	if i < len(d.Attributes) && d.Attributes[i].Path == rel {
		return d.Attributes[i], true
	}
	return Attribute{}, false
}

// WriteText writes one "path = value" line per attribute. Unreadable files
// are written as "path ! error".
func (d *Dump) WriteText(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "# %s (%s)\n", d.Base, d.Driver); err != nil {
		return err
	}
	for _, a := range d.Attributes {
		var err error
		if a.Error != "" {
			_, err = fmt.Fprintf(w, "%s ! %s\n", a.Path, a.Error)
		} else {
			_, err = fmt.Fprintf(w, "%s = %s\n", a.Path, a.Value)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// Collect walks the policy directory, the driver directories and each core's
// cpufreq directory below base. Per-core directories that are symlinks into
// the policy directory are only read once.
func Collect(ctx context.Context, base string) (*Dump, error) {
	realBase, err := filepath.EvalSymlinks(base)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", base, err)
	}

	roots, err := walkRoots(realBase)
	if err != nil {
		return nil, err
	}

	var (
		mu    sync.Mutex
		attrs []Attribute
	)
	conf := fastwalk.Config{
		Follow: false,
	}
	for _, root := range roots {
		err := fastwalk.Walk(&conf, root, func(path string, d fs.DirEntry, walkErr error) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if walkErr != nil {
				logger.Debug("skipping unreadable entry", "path", path, "error", walkErr)
				return nil
			}
			if d.IsDir() || d.Type()&fs.ModeSymlink != 0 {
				return nil
			}

			attr := readAttribute(realBase, path)
			mu.Lock()
			attrs = append(attrs, attr)
			mu.Unlock()
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walking %s: %w", root, err)
		}
	}

	sort.Slice(attrs, func(i, j int) bool { return attrs[i].Path < attrs[j].Path })
	logger.Debug("sysfs dump collected", "base", base, "attributes", len(attrs))

	return &Dump{
		Base:       base,
		Driver:     cpu.DetectDriver(realBase),
		Attributes: attrs,
	}, nil
}

// walkRoots lists existing directories to walk, resolved and without
// directories already covered by an earlier root.
func walkRoots(base string) ([]string, error) {
	candidates := []string{
		filepath.Join(base, "cpufreq"),
		filepath.Join(base, "intel_pstate"),
		filepath.Join(base, "amd_pstate"),
	}

	entries, err := os.ReadDir(base)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", base, err)
	}
	var cores []string
	for _, e := range entries {
		name := e.Name()
		if strings.HasPrefix(name, "cpu") && len(name) > 3 && strings.Trim(name[3:], "0123456789") == "" {
			cores = append(cores, filepath.Join(base, name, "cpufreq"))
			cores = append(cores, filepath.Join(base, name, "power"))
		}
	}
	sort.Strings(cores)
	candidates = append(candidates, cores...)

	var roots []string
	for _, c := range candidates {
		resolved, err := filepath.EvalSymlinks(c)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("resolving %s: %w", c, err)
		}
		if covered(roots, resolved) {
			continue
		}
		roots = append(roots, resolved)
	}
	return roots, nil
}

func covered(roots []string, dir string) bool {
	for _, r := range roots {
		if dir == r || strings.HasPrefix(dir, r+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

func readAttribute(base, path string) Attribute {
	rel, err := filepath.Rel(base, path)
	if err != nil {
		rel = path
	}
	attr := Attribute{Path: filepath.ToSlash(rel)}

	data, err := os.ReadFile(path)
	if err != nil {
		attr.Error = err.Error()
		var pathErr *fs.PathError
		if errors.As(err, &pathErr) {
			attr.Error = pathErr.Err.Error()
		}
		return attr
	}
	attr.Value = strings.TrimSpace(string(data))
	return attr
}
