package flags

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"timelens/internal/domain"
)

// Source supplies the current flag values, e.g. from environment variables or
// a remote config service.
type Source func() (map[domain.Capability]bool, error)

// Store is a refreshable per-capability routing flag set. A true flag routes
// the capability through the new backend, false through legacy. Refresh swaps
// the whole set without restarting the process.
type Store struct {
	mu    sync.RWMutex
	flags map[domain.Capability]bool
	src   Source
}

// NewStore loads the initial flag values from src.
func NewStore(src Source) (*Store, error) {
	s := &Store{src: src, flags: map[domain.Capability]bool{}}
	if err := s.Refresh(); err != nil {
		return nil, err
	}
	return s, nil
}

// UseNewBackend reports the routing flag for the capability. Unknown or unset
// capabilities route through legacy.
func (s *Store) UseNewBackend(c domain.Capability) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.flags[c]
}

// Refresh re-reads the source and swaps the flag set.
func (s *Store) Refresh() error {
	next, err := s.src()
	if err != nil {
		return fmt.Errorf("flags: refresh: %w", err)
	}
	if next == nil {
		next = map[domain.Capability]bool{}
	}
	s.mu.Lock()
	s.flags = next
	s.mu.Unlock()
	return nil
}

// Snapshot returns a copy of the current flag set.
func (s *Store) Snapshot() map[domain.Capability]bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[domain.Capability]bool, len(s.flags))
	for k, v := range s.flags {
		out[k] = v
	}
	return out
}

// EnvSource reads FLAG_NEW_<CAPABILITY> booleans, e.g. FLAG_NEW_TIME_MACHINE=true.
func EnvSource() Source {
	return func() (map[domain.Capability]bool, error) {
		out := map[domain.Capability]bool{}
		for _, c := range domain.Capabilities() {
			key := "FLAG_NEW_" + strings.ToUpper(string(c))
			raw, ok := os.LookupEnv(key)
			if !ok || raw == "" {
				continue
			}
			v, err := strconv.ParseBool(raw)
			if err != nil {
				return nil, fmt.Errorf("parse %s=%q: %w", key, raw, err)
			}
			out[c] = v
		}
		return out, nil
	}
}

// StaticSource serves a fixed flag set, mainly for tests and the admin CLI.
func StaticSource(flags map[domain.Capability]bool) Source {
	return func() (map[domain.Capability]bool, error) {
		return flags, nil
	}
}
