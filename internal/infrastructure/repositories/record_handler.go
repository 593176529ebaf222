package repositories

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/GX-mob/gx-service-template/internal/core/ports"
	"github.com/GX-mob/gx-service-template/internal/infrastructure/cache"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

const idField = "id"

// loadTimeout bounds a coalesced read-through, which outlives the request
// that started it.
const loadTimeout = 5 * time.Second

// IdentityKey is the default KeyFunc: {id: <record id>}.
func IdentityKey(doc ports.Document) any {
	return ports.Filter{idField: doc[idField]}
}

// RecordHandler binds a persistent collection to a cache namespace. Records
// are cached under their identity key; every configured linking field (and
// the filter a record was first looked up by) becomes a link to that entry.
// The store is always written before the cache.
type RecordHandler[T any] struct {
	cache       *cache.Store
	store       ports.DocumentStore
	namespace   string
	linkingKeys []string
	logger      *logrus.Logger
	sf          singleflight.Group
}

var _ ports.Records[struct{}] = (*RecordHandler[struct{}])(nil)

func NewRecordHandler[T any](c *cache.Store, store ports.DocumentStore, namespace string, linkingKeys []string, logger *logrus.Logger) *RecordHandler[T] {
	return &RecordHandler[T]{
		cache:       c,
		store:       store,
		namespace:   namespace,
		linkingKeys: append([]string(nil), linkingKeys...),
		logger:      logger,
	}
}

func (h *RecordHandler[T]) Namespace() string { return h.namespace }

// Get returns the record matching filter, or nil when there is none. A cache
// hit skips the store; misses, corrupt entries, entries that no longer match
// filter and cache outages read through.
func (h *RecordHandler[T]) Get(ctx context.Context, filter ports.Filter) (*T, error) {
	doc, err := h.cache.Get(ctx, h.namespace, filter)
	if err != nil {
		h.cacheFallback("get", err)
		doc = nil
	}
	if doc != nil && !matches(doc, filter) {
		h.cacheFallback("get", errors.New("stale link"))
		if _, err := h.cache.Delete(ctx, h.namespace, filter); err != nil {
			h.cacheFallback("delete", err)
		}
		doc = nil
	}
	if doc != nil {
		rec, err := fromDocument[T](doc)
		if err == nil {
			return rec, nil
		}
		h.cacheFallback("decode", err)
	}

	key, err := cache.SanitizeKey(filter)
	if err != nil {
		return nil, err
	}
	// the shared load must not fail because the caller that started it left
	ch := h.sf.DoChan(key, func() (interface{}, error) {
		lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), loadTimeout)
		defer cancel()
		return h.load(lctx, filter)
	})
	var res singleflight.Result
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res = <-ch:
	}
	if res.Err != nil {
		return nil, res.Err
	}
	loaded, _ := res.Val.(ports.Document)
	if loaded == nil {
		return nil, nil
	}
	return fromDocument[T](loaded)
}

func (h *RecordHandler[T]) load(ctx context.Context, filter ports.Filter) (ports.Document, error) {
	doc, err := h.store.FindOne(ctx, filter)
	if err != nil {
		return nil, h.storeError("find", err)
	}
	if doc == nil {
		return nil, nil
	}
	if err := h.cacheRecord(ctx, doc, IdentityKey(doc), filter); err != nil && h.logger != nil {
		h.logger.WithFields(logrus.Fields{"namespace": h.namespace}).WithError(err).Warn("cache: failed to populate after read")
	}
	return doc, nil
}

// Create inserts data, then caches the stored record under key (IdentityKey
// when nil). On a cache failure the record is returned with ports.ErrCacheWrite.
func (h *RecordHandler[T]) Create(ctx context.Context, data *T, key ports.KeyFunc) (*T, error) {
	in, err := toDocument(data)
	if err != nil {
		return nil, err
	}
	delete(in, idField)

	doc, err := h.store.Create(ctx, in)
	if err != nil {
		return nil, h.storeError("create", err)
	}
	rec, err := fromDocument[T](doc)
	if err != nil {
		return nil, err
	}

	if key == nil {
		key = IdentityKey
	}
	if err := h.cacheRecord(ctx, doc, key(doc)); err != nil {
		return rec, h.cacheWriteError(err)
	}
	return rec, nil
}

// Update writes patch to the store, then merges it into the cached record.
// Links for linking fields changed by patch are dropped. When filter is not
// cached, the record is resolved from the store first and its identity
// entry is dropped, so the next read repopulates it.
func (h *RecordHandler[T]) Update(ctx context.Context, filter ports.Filter, patch ports.Document) error {
	cached, cacheErr := h.cache.Get(ctx, h.namespace, filter)
	if errors.Is(cacheErr, cache.ErrCorruptPayload) {
		// already dropped by the store; treat as a miss
		cached, cacheErr = nil, nil
	}

	var previous ports.Document
	if cacheErr == nil && cached == nil && !identityOnly(filter) {
		doc, err := h.store.FindOne(ctx, filter)
		if err != nil {
			return h.storeError("find", err)
		}
		previous = doc
	}

	if err := h.store.UpdateOne(ctx, filter, patch); err != nil {
		return h.storeError("update", err)
	}

	if cacheErr != nil {
		return h.cacheWriteError(cacheErr)
	}
	if cached == nil {
		if previous == nil {
			return nil
		}
		return h.forget(ctx, previous, filter, h.changedLinks(previous, patch))
	}
	if !matches(cached, filter) {
		// reached through a stale link; the record no longer answers to filter
		return h.forget(ctx, cached, filter, nil)
	}

	merged := make(ports.Document, len(cached)+len(patch))
	for k, v := range cached {
		merged[k] = v
	}
	for k, v := range patch {
		if k != idField {
			merged[k] = v
		}
	}

	for _, field := range h.changedLinks(cached, patch) {
		if _, err := h.cache.Delete(ctx, h.namespace, ports.Filter{field: cached[field]}); err != nil {
			return h.cacheWriteError(err)
		}
	}

	var extra []ports.Filter
	if matches(merged, filter) {
		extra = append(extra, filter)
	}
	if err := h.cacheRecord(ctx, merged, IdentityKey(merged), extra...); err != nil {
		return h.cacheWriteError(err)
	}
	return nil
}

// Remove deletes the record from the store, then drops its cache entries:
// filter, the identity key and every linking key. A record not cached under
// filter is resolved from the store first.
func (h *RecordHandler[T]) Remove(ctx context.Context, filter ports.Filter) error {
	doc, err := h.cache.Get(ctx, h.namespace, filter)
	if err != nil || doc == nil || !matches(doc, filter) {
		if doc, err = h.store.FindOne(ctx, filter); err != nil {
			return h.storeError("find", err)
		}
	}

	if err := h.store.DeleteOne(ctx, filter); err != nil {
		return h.storeError("delete", err)
	}

	if doc == nil {
		if _, err := h.cache.Delete(ctx, h.namespace, filter); err != nil {
			return h.cacheWriteError(err)
		}
		return nil
	}
	return h.forget(ctx, doc, filter, h.linkingKeys)
}

// changedLinks lists the linking fields whose value patch replaces.
func (h *RecordHandler[T]) changedLinks(doc ports.Document, patch ports.Document) []string {
	var fields []string
	for _, field := range h.linkingKeys {
		v, changed := patch[field]
		if !changed {
			continue
		}
		if old, ok := doc[field]; ok && !sameValue(old, v) {
			fields = append(fields, field)
		}
	}
	return fields
}

func (h *RecordHandler[T]) cacheRecord(ctx context.Context, doc ports.Document, key any, extra ...ports.Filter) error {
	links := make([]any, 0, len(h.linkingKeys)+len(extra))
	for _, f := range extra {
		links = append(links, f)
	}
	for _, field := range h.linkingKeys {
		v, ok := doc[field]
		if !ok || v == nil || v == "" {
			continue
		}
		links = append(links, ports.Filter{field: v})
	}
	return h.cache.Set(ctx, h.namespace, key, doc, cache.WithLinks(links...))
}

// forget drops filter, doc's identity entry and the links of fields.
func (h *RecordHandler[T]) forget(ctx context.Context, doc ports.Document, filter ports.Filter, fields []string) error {
	keys := []any{filter}
	if _, ok := doc[idField]; ok {
		keys = append(keys, IdentityKey(doc))
	}
	for _, field := range fields {
		if v, ok := doc[field]; ok && v != nil && v != "" {
			keys = append(keys, ports.Filter{field: v})
		}
	}
	for _, key := range keys {
		if _, err := h.cache.Delete(ctx, h.namespace, key); err != nil {
			return h.cacheWriteError(err)
		}
	}
	return nil
}

// storeError narrows store failures to ports.ErrStoreUnavailable and keeps
// the driver detail in the log. Duplicates pass through.
func (h *RecordHandler[T]) storeError(op string, err error) error {
	if errors.Is(err, ports.ErrDuplicate) {
		return fmt.Errorf("%s: %w", h.namespace, ports.ErrDuplicate)
	}
	if h.logger != nil {
		h.logger.WithFields(logrus.Fields{"namespace": h.namespace, "op": op}).WithError(err).Error("store: operation failed")
	}
	return fmt.Errorf("%s %s: %w", h.namespace, op, ports.ErrStoreUnavailable)
}

func (h *RecordHandler[T]) cacheWriteError(err error) error {
	if h.logger != nil {
		h.logger.WithFields(logrus.Fields{"namespace": h.namespace}).WithError(err).Warn("cache: write failed after store commit")
	}
	return fmt.Errorf("%w: %s: %w", ports.ErrCacheWrite, h.namespace, err)
}

func (h *RecordHandler[T]) cacheFallback(op string, err error) {
	if h.logger == nil {
		return
	}
	entry := h.logger.WithFields(logrus.Fields{"namespace": h.namespace, "op": op}).WithError(err)
	if errors.Is(err, cache.ErrUnavailable) {
		entry.Warn("cache: unavailable, reading from store")
		return
	}
	entry.Debug("cache: unusable entry, reading from store")
}

func identityOnly(filter ports.Filter) bool {
	_, ok := filter[idField]
	return ok && len(filter) == 1
}

// matches reports whether doc holds every filter value.
func matches(doc ports.Document, filter ports.Filter) bool {
	for k, want := range filter {
		got, ok := doc[k]
		if !ok || !sameValue(got, want) {
			return false
		}
	}
	return true
}

// sameValue compares values by their JSON form, so a uuid matches its
// string and uint8(3) matches 3.
func sameValue(a, b any) bool {
	ja, errA := json.Marshal(a)
	jb, errB := json.Marshal(b)
	return errA == nil && errB == nil && bytes.Equal(ja, jb)
}

func toDocument(v any) (ports.Document, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode record: %w", err)
	}
	var doc ports.Document
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("failed to encode record: %w", err)
	}
	return doc, nil
}

func fromDocument[T any](doc ports.Document) (*T, error) {
	b, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to decode record: %w", err)
	}
	var rec T
	if err := json.Unmarshal(b, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode record: %w", err)
	}
	return &rec, nil
}
