package baseline

import (
	coreerrors "archratchet/internal/core/errors"
	"archratchet/internal/engine/ratchet"
	"archratchet/internal/shared/util"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// Store persists one baseline file. Every operation runs while holding both
// an in-process mutex and an exclusive flock on "<path>.lock".
type Store struct {
	path  string
	codec Codec
	mu    sync.Mutex
}

func Open(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, coreerrors.New(coreerrors.CodeValidationError, "baseline path is required").
			WithRemediation("set paths.baseline in archratchet.toml")
	}
	return &Store{path: path, codec: CodecFor(path)}, nil
}

func (s *Store) Path() string {
	return s.path
}

// Load reads the baseline under the lock. A missing file yields (nil, nil).
func (s *Store) Load(ctx context.Context) (*ratchet.Baseline, error) {
	var out *ratchet.Baseline
	err := s.WithLock(ctx, func() error {
		b, err := s.read()
		out = b
		return err
	})
	return out, err
}

// Modify runs a read-modify-write cycle under the lock. fn receives the
// current baseline (nil when none exists); a nil result leaves the file
// untouched.
func (s *Store) Modify(ctx context.Context, fn func(current *ratchet.Baseline) (*ratchet.Baseline, error)) (*ratchet.Baseline, error) {
	var out *ratchet.Baseline
	err := s.WithLock(ctx, func() error {
		current, err := s.read()
		if err != nil {
			return err
		}
		next, err := fn(current)
		if err != nil {
			return err
		}
		if next == nil {
			out = current
			return nil
		}
		if err := s.write(next); err != nil {
			return err
		}
		out = next
		return nil
	})
	return out, err
}

// WithLock holds the baseline lock for the duration of fn and releases it on
// every exit path.
func (s *Store) WithLock(ctx context.Context, fn func() error) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fl := newFileLock(s.path)
	if err := fl.lock(ctx); err != nil {
		return err
	}
	defer func() {
		if uerr := fl.unlock(); uerr != nil {
			slog.Warn("failed to release baseline lock", "path", s.path, "error", uerr)
			if err == nil {
				err = uerr
			}
		}
	}()
	return fn()
}

func (s *Store) read() (*ratchet.Baseline, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read baseline %q: %w", s.path, err)
	}
	b, err := s.codec.Unmarshal(data)
	if err != nil {
		return nil, coreerrors.Wrap(err, coreerrors.CodeMalformedInput, "decode baseline").
			WithContext(coreerrors.CtxPath, s.path).
			WithRemediation("restore the baseline from version control or rerun `archratchet capture`")
	}
	if b.Metrics == nil {
		b.Metrics = make(map[string]map[string]int)
	}
	return b, nil
}

func (s *Store) write(b *ratchet.Baseline) error {
	data, err := s.codec.Marshal(b)
	if err != nil {
		return coreerrors.Wrap(err, coreerrors.CodeInternal, "encode baseline").
			WithContext(coreerrors.CtxPath, s.path)
	}
	if err := util.WriteFileAtomic(s.path, data, 0o644); err != nil {
		return fmt.Errorf("write baseline %q: %w", s.path, err)
	}
	slog.Debug("baseline written", "path", s.path, "codec", s.codec.Name())
	return nil
}
