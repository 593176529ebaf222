package repositories_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/GX-mob/gx-service-template/internal/core/ports"
	"github.com/GX-mob/gx-service-template/internal/infrastructure/cache"
	"github.com/GX-mob/gx-service-template/internal/infrastructure/repositories"
	"github.com/GX-mob/gx-service-template/test/mocks"
	"github.com/stretchr/testify/require"
)

type account struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Phone string `json:"phone"`
	Name  string `json:"name"`
	Age   int    `json:"age"`
}

type fixture struct {
	kv      *mocks.MemoryKV
	docs    *mocks.MemoryDocuments
	store   *cache.Store
	handler *repositories.RecordHandler[account]
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	reg := cache.NewSchemaRegistry()
	reg.MustRegister("accounts",
		cache.Field{Name: "id", Type: cache.String},
		cache.Field{Name: "email", Type: cache.String},
		cache.Field{Name: "phone", Type: cache.String},
		cache.Field{Name: "name", Type: cache.String},
		cache.Field{Name: "age", Type: cache.Uint8},
	)
	kv := mocks.NewMemoryKV()
	docs := mocks.NewMemoryDocuments("accounts")
	store := cache.NewStore(kv, reg)
	h := repositories.NewRecordHandler[account](store, docs, "accounts", []string{"email", "phone"}, nil)
	return &fixture{kv: kv, docs: docs, store: store, handler: h}
}

func (f *fixture) create(t *testing.T) *account {
	t.Helper()
	rec, err := f.handler.Create(context.Background(), &account{Email: "ana@example.com", Phone: "+5511999990000", Name: "Ana", Age: 30}, nil)
	require.NoError(t, err)
	require.NotEmpty(t, rec.ID)
	return rec
}

func TestRecordHandler_CreateThenGetIsServedFromCache(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	created := f.create(t)

	got, err := f.handler.Get(ctx, ports.Filter{"id": created.ID})
	require.NoError(t, err)
	require.Equal(t, created, got)
	require.Zero(t, f.docs.Finds)
}

func TestRecordHandler_LinkingKeysResolveToSameRecord(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	created := f.create(t)

	byEmail, err := f.handler.Get(ctx, ports.Filter{"email": "ana@example.com"})
	require.NoError(t, err)
	byPhone, err := f.handler.Get(ctx, ports.Filter{"phone": "+5511999990000"})
	require.NoError(t, err)
	byID, err := f.handler.Get(ctx, ports.Filter{"id": created.ID})
	require.NoError(t, err)

	require.Equal(t, byID, byEmail)
	require.Equal(t, byID, byPhone)
	require.Zero(t, f.docs.Finds)
}

func TestRecordHandler_MissReadsThroughOnceAndPopulates(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	stored, err := f.docs.Create(ctx, ports.Document{"email": "bia@example.com", "name": "Bia", "age": 41})
	require.NoError(t, err)

	got, err := f.handler.Get(ctx, ports.Filter{"email": "bia@example.com"})
	require.NoError(t, err)
	require.Equal(t, &account{ID: stored["id"].(string), Email: "bia@example.com", Name: "Bia", Age: 41}, got)
	require.Equal(t, 1, f.docs.Finds)

	again, err := f.handler.Get(ctx, ports.Filter{"email": "bia@example.com"})
	require.NoError(t, err)
	require.Equal(t, got, again)
	byID, err := f.handler.Get(ctx, ports.Filter{"id": got.ID})
	require.NoError(t, err)
	require.Equal(t, got, byID)
	require.Equal(t, 1, f.docs.Finds)
}

func TestRecordHandler_GetUnknownReturnsNil(t *testing.T) {
	f := newFixture(t)
	got, err := f.handler.Get(context.Background(), ports.Filter{"id": "missing"})
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestRecordHandler_UpdateMergesIntoCache(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	created := f.create(t)

	require.NoError(t, f.handler.Update(ctx, ports.Filter{"id": created.ID}, ports.Document{"name": "Ana Maria"}))

	got, err := f.handler.Get(ctx, ports.Filter{"email": "ana@example.com"})
	require.NoError(t, err)
	require.Equal(t, "Ana Maria", got.Name)
	require.Equal(t, 30, got.Age)
	require.Zero(t, f.docs.Finds)

	stored, err := f.docs.FindOne(ctx, ports.Filter{"id": created.ID})
	require.NoError(t, err)
	require.Equal(t, "Ana Maria", stored["name"])
}

func TestRecordHandler_UpdateOfLinkingFieldDropsOldLink(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	created := f.create(t)

	require.NoError(t, f.handler.Update(ctx, ports.Filter{"id": created.ID}, ports.Document{"email": "ana@new.example.com"}))

	old, err := f.handler.Get(ctx, ports.Filter{"email": "ana@example.com"})
	require.NoError(t, err)
	require.Nil(t, old)

	got, err := f.handler.Get(ctx, ports.Filter{"email": "ana@new.example.com"})
	require.NoError(t, err)
	require.Equal(t, created.ID, got.ID)
}

func TestRecordHandler_UpdateStoreFailureLeavesCache(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	created := f.create(t)
	f.docs.UpdateErr = errors.New("write conflict")

	err := f.handler.Update(ctx, ports.Filter{"id": created.ID}, ports.Document{"name": "Changed"})
	require.Error(t, err)
	require.NotErrorIs(t, err, ports.ErrCacheWrite)

	got, err := f.handler.Get(ctx, ports.Filter{"id": created.ID})
	require.NoError(t, err)
	require.Equal(t, "Ana", got.Name)
}

func TestRecordHandler_UpdateUncachedWritesNothing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	stored, err := f.docs.Create(ctx, ports.Document{"email": "c@example.com", "name": "C"})
	require.NoError(t, err)
	id := stored["id"].(string)

	require.NoError(t, f.handler.Update(ctx, ports.Filter{"id": id}, ports.Document{"name": "C2"}))
	require.Empty(t, f.kv.Keys())

	got, err := f.handler.Get(ctx, ports.Filter{"id": id})
	require.NoError(t, err)
	require.Equal(t, "C2", got.Name)
}

func TestRecordHandler_RemoveByLinkDropsIdentity(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	created := f.create(t)

	require.NoError(t, f.handler.Remove(ctx, ports.Filter{"email": "ana@example.com"}))
	require.Zero(t, f.docs.Len())

	got, err := f.handler.Get(ctx, ports.Filter{"id": created.ID})
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestRecordHandler_CacheOutageOnReadFallsThrough(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	created := f.create(t)
	f.kv.GetErr = errors.New("connection refused")
	f.kv.BatchErr = errors.New("connection refused")

	got, err := f.handler.Get(ctx, ports.Filter{"id": created.ID})
	require.NoError(t, err)
	require.Equal(t, created, got)
	require.Equal(t, 1, f.docs.Finds)
}

func TestRecordHandler_CacheOutageOnCreateIsSurfaced(t *testing.T) {
	f := newFixture(t)
	f.kv.BatchErr = errors.New("connection refused")

	rec, err := f.handler.Create(context.Background(), &account{Email: "d@example.com", Name: "D"}, nil)
	require.ErrorIs(t, err, ports.ErrCacheWrite)
	require.ErrorIs(t, err, cache.ErrUnavailable)
	require.NotNil(t, rec)
	require.Equal(t, 1, f.docs.Len())
}

func TestRecordHandler_CorruptEntryReadsThrough(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	created := f.create(t)
	key, err := cache.PhysicalKey("accounts", ports.Filter{"id": created.ID})
	require.NoError(t, err)
	f.kv.Put(key, []byte{0x01, 0x02})

	got, err := f.handler.Get(ctx, ports.Filter{"id": created.ID})
	require.NoError(t, err)
	require.Equal(t, created, got)
	require.Equal(t, 1, f.docs.Finds)
}

func TestRecordHandler_CustomKeyDerivation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	rec, err := f.handler.Create(ctx, &account{Email: "e@example.com", Name: "E"}, func(doc ports.Document) any {
		return ports.Filter{"name": doc["name"]}
	})
	require.NoError(t, err)

	got, err := f.handler.Get(ctx, ports.Filter{"name": "E"})
	require.NoError(t, err)
	require.Equal(t, rec, got)
	require.Zero(t, f.docs.Finds)
}

func TestRecordHandler_StaleLinkReadsThrough(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	created := f.create(t)

	// a writer that does not know the email link moves the record away from it
	other := repositories.NewRecordHandler[account](f.store, f.docs, "accounts", nil, nil)
	require.NoError(t, other.Update(ctx, ports.Filter{"id": created.ID}, ports.Document{"email": "ana@new.example.com"}))

	got, err := f.handler.Get(ctx, ports.Filter{"email": "ana@example.com"})
	require.NoError(t, err)
	require.Nil(t, got)
	require.Equal(t, 1, f.docs.Finds)

	got, err = f.handler.Get(ctx, ports.Filter{"id": created.ID})
	require.NoError(t, err)
	require.Equal(t, "ana@new.example.com", got.Email)
}

func TestRecordHandler_UpdateByUncachedFilterDropsIdentity(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	created := f.create(t)

	require.NoError(t, f.handler.Update(ctx, ports.Filter{"name": "Ana"}, ports.Document{"age": 31}))

	got, err := f.handler.Get(ctx, ports.Filter{"id": created.ID})
	require.NoError(t, err)
	require.Equal(t, 31, got.Age)
}

func TestRecordHandler_UpdateByUncachedFilterDropsChangedLink(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	created := f.create(t)

	require.NoError(t, f.handler.Update(ctx, ports.Filter{"name": "Ana"}, ports.Document{"email": "ana@new.example.com"}))

	old, err := f.handler.Get(ctx, ports.Filter{"email": "ana@example.com"})
	require.NoError(t, err)
	require.Nil(t, old)

	got, err := f.handler.Get(ctx, ports.Filter{"phone": "+5511999990000"})
	require.NoError(t, err)
	require.Equal(t, created.ID, got.ID)
	require.Equal(t, "ana@new.example.com", got.Email)
}

func TestRecordHandler_RemoveByUncachedFilterDropsEveryKey(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	created := f.create(t)

	require.NoError(t, f.handler.Remove(ctx, ports.Filter{"name": "Ana"}))
	require.Zero(t, f.docs.Len())
	require.Empty(t, f.kv.Keys())

	for _, filter := range []ports.Filter{{"id": created.ID}, {"email": created.Email}, {"phone": created.Phone}} {
		got, err := f.handler.Get(ctx, filter)
		require.NoError(t, err)
		require.Nil(t, got)
	}
}

func TestRecordHandler_StoreFailureIsNarrowed(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.docs.FindErr = errors.New("dial tcp 10.0.0.9:5432: connection refused")

	_, err := f.handler.Get(ctx, ports.Filter{"email": "x@example.com"})
	require.ErrorIs(t, err, ports.ErrStoreUnavailable)
	require.NotContains(t, err.Error(), "10.0.0.9")

	f.docs.FindErr = nil
	f.docs.CreateErr = ports.ErrDuplicate
	_, err = f.handler.Create(ctx, &account{Email: "x@example.com"}, nil)
	require.ErrorIs(t, err, ports.ErrDuplicate)
	require.NotErrorIs(t, err, ports.ErrStoreUnavailable)
}

// blockingDocuments holds FindOne until release is closed or its context ends.
type blockingDocuments struct {
	*mocks.MemoryDocuments
	entered chan struct{}
	release chan struct{}
	results chan error
}

func (b *blockingDocuments) FindOne(ctx context.Context, filter ports.Filter) (ports.Document, error) {
	b.entered <- struct{}{}
	select {
	case <-b.release:
	case <-ctx.Done():
		b.results <- ctx.Err()
		return nil, ctx.Err()
	}
	doc, err := b.MemoryDocuments.FindOne(ctx, filter)
	b.results <- err
	return doc, err
}

func TestRecordHandler_SharedLoadOutlivesCancelledCaller(t *testing.T) {
	docs := &blockingDocuments{
		MemoryDocuments: mocks.NewMemoryDocuments("accounts"),
		entered:         make(chan struct{}, 4),
		release:         make(chan struct{}),
		results:         make(chan error, 4),
	}
	stored, err := docs.MemoryDocuments.Create(context.Background(), ports.Document{"email": "f@example.com", "name": "F"})
	require.NoError(t, err)
	h := repositories.NewRecordHandler[account](cache.NewStore(mocks.NewMemoryKV(), cache.NewSchemaRegistry()), docs, "accounts", nil, nil)
	filter := ports.Filter{"email": "f@example.com"}

	ctx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := h.Get(ctx, filter)
		firstErr <- err
	}()
	<-docs.entered
	cancel()
	require.ErrorIs(t, <-firstErr, context.Canceled)

	close(docs.release)
	select {
	case err := <-docs.results:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("shared load did not finish")
	}

	got, err := h.Get(context.Background(), filter)
	require.NoError(t, err)
	require.Equal(t, stored["id"], got.ID)
}
