package credentials

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

var (
	ErrNotFound             = errors.New("credentials: not found")
	ErrInvalidArgument      = errors.New("credentials: invalid argument")
	ErrEncryptionKeyMissing = errors.New("credentials: encryption requested but CREDENTIALS_ENCRYPTION_KEY is not set")
)

const DefaultCacheTTL = 60 * time.Second

// Repository is the persistence contract for credential rows.
// Get returns ErrNotFound when no row exists.
type Repository interface {
	Get(ctx context.Context, category, key string) (Entry, error)
	Upsert(ctx context.Context, e Entry) error
}

type Options struct {
	// Cipher is nil when no encryption key is configured.
	Cipher *Cipher
	TTL    time.Duration
	Clock  func() time.Time
	Logger *slog.Logger
}

// Store reads and writes credentials with a process-local read cache.
//
// Reads may be stale by up to the TTL when another instance rewrites a value;
// writes through this Store invalidate the written key immediately.
type Store struct {
	repo   Repository
	cipher *Cipher
	ttl    time.Duration
	clock  func() time.Time
	log    *slog.Logger

	mu    sync.RWMutex
	cache map[string]cached
	// gen counts writes per key. A read only fills the cache when no write
	// to its key landed while it was reading the repository.
	gen map[string]uint64
}

type cached struct {
	value     string
	expiresAt time.Time
}

func NewStore(repo Repository, opts Options) *Store {
	if opts.TTL <= 0 {
		opts.TTL = DefaultCacheTTL
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Store{
		repo:   repo,
		cipher: opts.Cipher,
		ttl:    opts.TTL,
		clock:  opts.Clock,
		log:    opts.Logger,
		cache:  make(map[string]cached),
		gen:    make(map[string]uint64),
	}
}

// Get returns the plaintext value, or "" when no row exists.
func (s *Store) Get(ctx context.Context, category, key string) (string, error) {
	ck := cacheKey(category, key)
	now := s.clock()

	s.mu.RLock()
	c, ok := s.cache[ck]
	gen := s.gen[ck]
	s.mu.RUnlock()
	if ok && now.Before(c.expiresAt) {
		return c.value, nil
	}

	e, err := s.repo.Get(ctx, category, key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("credentials: read %s: %w", ck, err)
	}

	value := e.Value
	if e.IsEncrypted {
		if s.cipher == nil {
			return "", fmt.Errorf("credentials: read %s: %w", ck, ErrEncryptionKeyMissing)
		}
		value, err = s.cipher.Decrypt(e.Value)
		if err != nil {
			return "", fmt.Errorf("credentials: read %s: %w", ck, err)
		}
	}

	s.mu.Lock()
	if s.gen[ck] == gen {
		s.cache[ck] = cached{value: value, expiresAt: now.Add(s.ttl)}
	}
	s.mu.Unlock()
	return value, nil
}

func (s *Store) Set(ctx context.Context, category, key, value string, opts SetOptions) error {
	if strings.TrimSpace(category) == "" || strings.TrimSpace(key) == "" {
		return ErrInvalidArgument
	}
	e := Entry{
		Category:    category,
		Key:         key,
		Value:       value,
		Description: opts.Description,
		UpdatedAt:   s.clock().UTC(),
	}
	if opts.Encrypt {
		if s.cipher == nil {
			return ErrEncryptionKeyMissing
		}
		sealed, err := s.cipher.Encrypt(value)
		if err != nil {
			return err
		}
		e.Value = sealed
		e.IsEncrypted = true
	}

	if err := s.repo.Upsert(ctx, e); err != nil {
		return fmt.Errorf("credentials: write %s: %w", cacheKey(category, key), err)
	}

	ck := cacheKey(category, key)
	s.mu.Lock()
	s.gen[ck]++
	delete(s.cache, ck)
	s.mu.Unlock()

	s.log.Info("credential updated", "category", category, "key", key, "encrypted", e.IsEncrypted)
	return nil
}

func (s *Store) ClearCache() {
	s.mu.Lock()
	s.cache = make(map[string]cached)
	s.mu.Unlock()
}

func (s *Store) ClearCategoryCache(category string) {
	prefix := category + "."
	s.mu.Lock()
	for k := range s.cache {
		if strings.HasPrefix(k, prefix) {
			delete(s.cache, k)
		}
	}
	s.mu.Unlock()
}

// CanEncrypt reports whether an encryption key is available.
func (s *Store) CanEncrypt() bool { return s.cipher != nil }
