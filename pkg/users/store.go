// Package users implements the credential store: it loads user records from
// an Apache FtpServer style users.properties file, authenticates logins and
// resolves home directories.
//
// The record map is replaced wholesale on reload through an atomic pointer,
// so concurrent sessions never observe a partially loaded file.
package users

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/magiconair/properties"
	"github.com/marmos91/ftpbridge/internal/logger"
)

// Options configures a Store.
type Options struct {
	// File is the path of the users.properties file.
	File string

	// Encoding is how password digests are stored in File.
	Encoding Encoding
}

// Store is the credential store. It is safe for concurrent use.
type Store struct {
	opts    Options
	records atomic.Pointer[map[string]*UserRecord]
}

// NewStore loads the credential file. An unreadable or malformed file is an
// error; the bridge must not start without credentials.
func NewStore(opts Options) (*Store, error) {
	if opts.File == "" {
		return nil, errors.New("credential file path is required")
	}
	if !opts.Encoding.Valid() {
		return nil, fmt.Errorf("unknown password encoding %q", opts.Encoding)
	}

	s := &Store{opts: opts}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// NewStoreFromBytes builds a store from in-memory properties. It cannot Reload.
func NewStoreFromBytes(data []byte, encoding Encoding) (*Store, error) {
	if !encoding.Valid() {
		return nil, fmt.Errorf("unknown password encoding %q", encoding)
	}
	records, err := load(func(l *properties.Loader) (*properties.Properties, error) {
		return l.LoadBytes(data)
	})
	if err != nil {
		return nil, err
	}
	s := &Store{opts: Options{Encoding: encoding}}
	s.records.Store(&records)
	return s, nil
}

func load(fn func(*properties.Loader) (*properties.Properties, error)) (map[string]*UserRecord, error) {
	loader := &properties.Loader{Encoding: properties.UTF8, DisableExpansion: true}
	p, err := fn(loader)
	if err != nil {
		return nil, err
	}
	return parseRecords(p)
}

// Reload re-reads the credential file. On error the previous records stay
// in effect.
func (s *Store) Reload() error {
	if s.opts.File == "" {
		return errors.New("store has no credential file")
	}
	records, err := load(func(l *properties.Loader) (*properties.Properties, error) {
		return l.LoadFile(s.opts.File)
	})
	if err != nil {
		return fmt.Errorf("failed to load credential file %s: %w", s.opts.File, err)
	}
	s.records.Store(&records)
	logger.Info("Loaded %d user(s) from %s (encoding=%s)", len(records), s.opts.File, s.opts.Encoding)
	return nil
}

func (s *Store) snapshot() map[string]*UserRecord {
	if m := s.records.Load(); m != nil {
		return *m
	}
	return nil
}

// Authenticate checks a login. Failures are *AuthFailure values whose Reason
// is unknown_user, disabled (checked before the password) or bad_password.
func (s *Store) Authenticate(name, password string) (*UserRecord, error) {
	rec, ok := s.snapshot()[name]
	if !ok {
		return nil, &AuthFailure{User: name, Reason: ReasonUnknownUser}
	}
	if !rec.Enabled {
		return nil, &AuthFailure{User: name, Reason: ReasonDisabled}
	}
	if !s.opts.Encoding.matches(rec.PasswordDigest, password) {
		return nil, &AuthFailure{User: name, Reason: ReasonBadPassword}
	}
	return rec, nil
}

// HomeDirectoryOf returns the home directory of a known user.
func (s *Store) HomeDirectoryOf(name string) (string, error) {
	rec, ok := s.snapshot()[name]
	if !ok {
		return "", &AuthFailure{User: name, Reason: ReasonUnknownUser}
	}
	return rec.HomeDirectory, nil
}

// Lookup returns the record for name.
func (s *Store) Lookup(name string) (*UserRecord, bool) {
	rec, ok := s.snapshot()[name]
	return rec, ok
}

// Len returns the number of loaded records.
func (s *Store) Len() int {
	return len(s.snapshot())
}

// ValidateSuperuser fails unless name is an enabled user record.
func (s *Store) ValidateSuperuser(name string) error {
	rec, ok := s.Lookup(name)
	if !ok {
		return fmt.Errorf("superuser %q has no user record", name)
	}
	if !rec.Enabled {
		return fmt.Errorf("superuser %q is disabled", name)
	}
	return nil
}

// watchDebounce coalesces the burst of events an editor save produces.
const watchDebounce = 200 * time.Millisecond

// Watch reloads the store whenever the credential file changes, until ctx is
// done. The containing directory is watched so that atomic replacements
// (write to temp, rename over) are seen too.
func (s *Store) Watch(ctx context.Context) error {
	if s.opts.File == "" {
		return errors.New("store has no credential file")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	target := filepath.Clean(s.opts.File)
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(target), err)
	}
	logger.Info("Watching %s for credential changes", target)

	var debounce <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				debounce = time.After(watchDebounce)
			}

		case <-debounce:
			debounce = nil
			if err := s.Reload(); err != nil {
				logger.Warn("Credential reload failed, keeping previous records: %v", err)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("Credential file watcher error: %v", err)
		}
	}
}
