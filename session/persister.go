package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// StorageKey is the single key the session envelope is stored under
const StorageKey = "newsshelf.auth"

var (
	ErrNotAuthenticated = errors.New("session is not authenticated")
	ErrEmptyToken       = errors.New("auth api returned an empty token")
	ErrCorruptFile      = errors.New("session file is not a JSON object")
)

// Envelope is the persisted session
type Envelope struct {
	Token string `json:"token"`
}

// Persister stores the envelope across restarts. Load returns an empty
// envelope when nothing was stored.
type Persister interface {
	Load(ctx context.Context) (Envelope, error)
	Save(ctx context.Context, env Envelope) error
	Clear(ctx context.Context) error
}

// MemoryPersister keeps the envelope for the process lifetime only
type MemoryPersister struct {
	mu  sync.Mutex
	env Envelope
}

func NewMemoryPersister() *MemoryPersister {
	return &MemoryPersister{}
}

func (m *MemoryPersister) Load(context.Context) (Envelope, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.env, nil
}

func (m *MemoryPersister) Save(_ context.Context, env Envelope) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.env = env
	return nil
}

func (m *MemoryPersister) Clear(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.env = Envelope{}
	return nil
}

// FilePersister stores a JSON object of key to value in one file, the
// envelope living under Key. Other keys in the file are preserved. A file
// that does not decode is moved aside to Path+".corrupt" before the next
// write replaces it.
type FilePersister struct {
	Path   string
	Key    string
	Logger Logger
	mu     sync.Mutex
}

func NewFilePersister(path string) *FilePersister {
	return &FilePersister{Path: path, Key: StorageKey}
}

func (f *FilePersister) Load(context.Context) (Envelope, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	entries, err := f.read()
	if err != nil {
		return Envelope{}, err
	}

	raw, ok := entries[f.key()]
	if !ok {
		return Envelope{}, nil
	}

	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Envelope{}, fmt.Errorf("decode session: %w", err)
	}
	return env, nil
}

func (f *FilePersister) Save(_ context.Context, env Envelope) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	entries, err := f.readOrReset()
	if err != nil {
		return err
	}

	raw, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	entries[f.key()] = raw

	return f.write(entries)
}

func (f *FilePersister) Clear(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	entries, err := f.read()
	if errors.Is(err, ErrCorruptFile) {
		if err := f.moveAside(err); err != nil {
			return err
		}
		return f.write(map[string]json.RawMessage{})
	}
	if err != nil {
		return err
	}
	if _, ok := entries[f.key()]; !ok {
		return nil
	}
	delete(entries, f.key())
	return f.write(entries)
}

func (f *FilePersister) key() string {
	if f.Key == "" {
		return StorageKey
	}
	return f.Key
}

func (f *FilePersister) read() (map[string]json.RawMessage, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]json.RawMessage{}, nil
		}
		return nil, fmt.Errorf("read session file: %w", err)
	}

	entries := map[string]json.RawMessage{}
	if len(data) == 0 {
		return entries, nil
	}
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptFile, err)
	}
	return entries, nil
}

func (f *FilePersister) readOrReset() (map[string]json.RawMessage, error) {
	entries, err := f.read()
	if !errors.Is(err, ErrCorruptFile) {
		return entries, err
	}
	if err := f.moveAside(err); err != nil {
		return nil, err
	}
	return map[string]json.RawMessage{}, nil
}

func (f *FilePersister) moveAside(cause error) error {
	backup := f.Path + ".corrupt"
	if err := os.Rename(f.Path, backup); err != nil {
		return fmt.Errorf("move corrupt session file: %w", err)
	}
	if f.Logger != nil {
		f.Logger.Warn("session file %s reset, previous contents kept at %s: %v", f.Path, backup, cause)
	}
	return nil
}

// write replaces the file through a rename so readers never see a
// partial document.
func (f *FilePersister) write(entries map[string]json.RawMessage) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encode session file: %w", err)
	}

	dir := filepath.Dir(f.Path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".session-*")
	if err != nil {
		return fmt.Errorf("create session file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write session file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close session file: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o600); err != nil {
		return fmt.Errorf("chmod session file: %w", err)
	}

	return os.Rename(tmp.Name(), f.Path)
}

// RedisPersister stores the envelope under one redis key, for clients
// that share a session across processes.
type RedisPersister struct {
	client redis.UniversalClient
	key    string
	ttl    time.Duration
}

// NewRedisPersister stores under prefix+StorageKey. A zero ttl keeps the
// key until cleared.
func NewRedisPersister(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisPersister {
	return &RedisPersister{
		client: client,
		key:    prefix + StorageKey,
		ttl:    ttl,
	}
}

func (r *RedisPersister) Key() string {
	return r.key
}

func (r *RedisPersister) Load(ctx context.Context) (Envelope, error) {
	data, err := r.client.Get(ctx, r.key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Envelope{}, nil
		}
		return Envelope{}, fmt.Errorf("redis get: %w", err)
	}

	var env Envelope
	if err := json.Unmarshal([]byte(data), &env); err != nil {
		return Envelope{}, fmt.Errorf("unmarshal session: %w", err)
	}
	return env, nil
}

func (r *RedisPersister) Save(ctx context.Context, env Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	return r.client.Set(ctx, r.key, data, r.ttl).Err()
}

func (r *RedisPersister) Clear(ctx context.Context) error {
	return r.client.Del(ctx, r.key).Err()
}
