package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/GX-mob/gx-service-template/internal/core/ports"
	"github.com/sirupsen/logrus"
)

// DefaultTTL applies to writes that do not override it.
const DefaultTTL = 15 * time.Minute

const (
	resultHit     = "hit"
	resultMiss    = "miss"
	resultCorrupt = "corrupt"
	resultError   = "error"
	resultOK      = "ok"
)

// Store is the namespaced record cache on top of a KVBackend. Values are
// documents encoded with the namespace schema; link keys redirect to a
// primary entry and are followed at most once.
type Store struct {
	backend    ports.KVBackend
	schemas    *SchemaRegistry
	defaultTTL time.Duration
	metrics    *Metrics
	logger     *logrus.Logger
}

var _ ports.Cache = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

func WithDefaultTTL(ttl time.Duration) Option {
	return func(s *Store) {
		if ttl > 0 {
			s.defaultTTL = ttl
		}
	}
}

func WithMetrics(m *Metrics) Option {
	return func(s *Store) { s.metrics = m }
}

func WithLogger(logger *logrus.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

func NewStore(backend ports.KVBackend, schemas *SchemaRegistry, opts ...Option) *Store {
	if schemas == nil {
		schemas = NewSchemaRegistry()
	}
	s := &Store{backend: backend, schemas: schemas, defaultTTL: DefaultTTL}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Schemas returns the registry the store encodes with.
func (s *Store) Schemas() *SchemaRegistry { return s.schemas }

// SetOption adjusts a single Set call.
type SetOption func(*setOptions)

type setOptions struct {
	ttl   time.Duration
	links []any
}

// WithTTL overrides the entry lifetime.
func WithTTL(ttl time.Duration) SetOption {
	return func(o *setOptions) { o.ttl = ttl }
}

// WithLinks writes each key as a link to the entry being set.
func WithLinks(keys ...any) SetOption {
	return func(o *setOptions) { o.links = append(o.links, keys...) }
}

// Get returns the document stored under key, following one link. A miss
// returns nil and no error. Backend failures wrap ErrUnavailable and
// undecodable entries wrap ErrCorruptPayload.
func (s *Store) Get(ctx context.Context, namespace string, key any) (ports.Document, error) {
	pk, err := PhysicalKey(namespace, key)
	if err != nil {
		return nil, err
	}
	doc, err := s.get(ctx, namespace, pk, true)
	switch {
	case errors.Is(err, ErrCorruptPayload):
		s.metrics.observe(namespace, "get", resultCorrupt)
	case err != nil:
		s.metrics.observe(namespace, "get", resultError)
	case doc == nil:
		s.metrics.observe(namespace, "get", resultMiss)
	default:
		s.metrics.observe(namespace, "get", resultHit)
	}
	return doc, err
}

func (s *Store) get(ctx context.Context, namespace, pk string, follow bool) (ports.Document, error) {
	raw, ok, err := s.backend.Get(ctx, pk)
	if err != nil {
		return nil, unavailable("get", err)
	}
	if !ok {
		return nil, nil
	}
	env, err := decodeEnvelope(raw)
	if err != nil {
		s.heal(ctx, pk, err)
		return nil, corrupt(namespace, err)
	}
	if env.Kind == kindLink {
		if !follow {
			if s.logger != nil {
				s.logger.WithField("key", pk).Debug("cache: link points at another link, treating as miss")
			}
			return nil, nil
		}
		return s.get(ctx, env.Namespace, env.target(), false)
	}
	doc, err := s.schemas.Decode(namespace, env.Payload)
	if err != nil {
		s.heal(ctx, pk, err)
		return nil, err
	}
	return doc, nil
}

// heal drops an entry that cannot be decoded so the next write replaces it.
func (s *Store) heal(ctx context.Context, pk string, cause error) {
	_, err := s.backend.Del(ctx, pk)
	if s.logger == nil {
		return
	}
	entry := s.logger.WithFields(logrus.Fields{"key": pk, "cause": cause.Error()})
	if err != nil {
		entry.WithError(err).Warn("cache: failed to drop corrupt entry")
		return
	}
	entry.Debug("cache: dropped corrupt entry")
}

// Set stores value under key. The value is projected onto the namespace
// schema before encoding. When links are given, the primary entry and every
// link are written in one atomic batch.
func (s *Store) Set(ctx context.Context, namespace string, key any, value ports.Document, opts ...SetOption) error {
	o := setOptions{ttl: s.defaultTTL}
	for _, opt := range opts {
		opt(&o)
	}
	if o.ttl <= 0 {
		o.ttl = s.defaultTTL
	}

	sk, err := SanitizeKey(key)
	if err != nil {
		return err
	}
	pk := namespace + KeySeparator + sk

	payload, err := s.schemas.Encode(namespace, s.schemas.Sanitize(namespace, value))
	if err != nil {
		s.metrics.observe(namespace, "set", resultError)
		return fmt.Errorf("cache encode %s: %w", namespace, err)
	}
	entry, err := encodeValue(payload)
	if err != nil {
		return fmt.Errorf("cache encode %s: %w", namespace, err)
	}

	if len(o.links) == 0 {
		if err := s.backend.Set(ctx, pk, entry, o.ttl); err != nil {
			s.metrics.observe(namespace, "set", resultError)
			return unavailable("set", err)
		}
		s.metrics.observe(namespace, "set", resultOK)
		return nil
	}

	entries := []ports.KVEntry{{Key: pk, Value: entry, TTL: o.ttl}}
	seen := map[string]struct{}{pk: {}}
	for _, link := range o.links {
		lk, err := PhysicalKey(namespace, link)
		if err != nil {
			return err
		}
		// A link may never replace the entry it points at.
		if _, dup := seen[lk]; dup {
			continue
		}
		seen[lk] = struct{}{}
		marker, err := encodeLink(namespace, sk)
		if err != nil {
			return fmt.Errorf("cache encode %s: %w", namespace, err)
		}
		entries = append(entries, ports.KVEntry{Key: lk, Value: marker, TTL: o.ttl})
	}
	if err := s.backend.SetBatch(ctx, entries); err != nil {
		s.metrics.observe(namespace, "set", resultError)
		return unavailable("set", err)
	}
	s.metrics.observe(namespace, "set", resultOK)
	return nil
}

// Put is Set with an explicit TTL and no links.
func (s *Store) Put(ctx context.Context, namespace string, key any, doc ports.Document, ttl time.Duration) error {
	return s.Set(ctx, namespace, key, doc, WithTTL(ttl))
}

// Delete removes the primary entry under key. Links pointing at it are left
// to expire.
func (s *Store) Delete(ctx context.Context, namespace string, key any) (int64, error) {
	pk, err := PhysicalKey(namespace, key)
	if err != nil {
		return 0, err
	}
	n, err := s.backend.Del(ctx, pk)
	if err != nil {
		s.metrics.observe(namespace, "delete", resultError)
		return 0, unavailable("delete", err)
	}
	s.metrics.observe(namespace, "delete", resultOK)
	return n, nil
}
