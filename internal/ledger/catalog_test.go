package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"doka-backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

type fakeStore struct {
	mu       sync.Mutex
	products []models.Product
	writes   [][]StockUpdate
	failNext error
	loadErr  error
	nextID   uint

	// loadRead and loadRelease, when set, hold LoadProducts after it has
	// read the rows.
	loadRead    chan struct{}
	loadRelease chan struct{}
}

func (f *fakeStore) LoadProducts(context.Context) ([]models.Product, error) {
	f.mu.Lock()
	if f.loadErr != nil {
		f.mu.Unlock()
		return nil, f.loadErr
	}
	rows := append([]models.Product(nil), f.products...)
	read, release := f.loadRead, f.loadRelease
	f.mu.Unlock()

	if read != nil {
		close(read)
		<-release
	}
	return rows, nil
}

func (f *fakeStore) UpsertStock(_ context.Context, updates ...StockUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNext != nil {
		err := f.failNext
		f.failNext = nil
		return err
	}
	f.writes = append(f.writes, updates)
	return nil
}

func (f *fakeStore) CreateProduct(_ context.Context, p *models.Product) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	p.ID = 100 + f.nextID
	return nil
}

func (f *fakeStore) SaveProduct(context.Context, *models.Product) error { return nil }
func (f *fakeStore) DeleteProduct(context.Context, uint) error          { return nil }

func (f *fakeStore) writeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.writes)
}

type fakeCache struct {
	mu       sync.Mutex
	snapshot []models.Product
	saves    int
}

func (f *fakeCache) Save(_ context.Context, products []models.Product) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snapshot = products
	f.saves++
	return nil
}

func (f *fakeCache) Load(context.Context) ([]models.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.snapshot == nil {
		return nil, ErrNoSnapshot
	}
	return f.snapshot, nil
}

func newTestCatalog(t *testing.T, opts Options) (*Catalog, *fakeStore, *fakeCache) {
	t.Helper()
	store := &fakeStore{products: []models.Product{sampleProduct()}}
	cache := &fakeCache{}
	cat := NewCatalog(store, cache, zap.NewNop(), opts)
	t.Cleanup(cat.Close)
	require.NoError(t, cat.Load(context.Background()))
	return cat, store, cache
}

func TestCatalogOptimisticWrite(t *testing.T) {
	ctx := context.Background()
	cat, store, _ := newTestCatalog(t, Options{})

	res, err := cat.Transfer(ctx, 1, "42", "main", "shop1", 5)
	require.NoError(t, err)
	assert.True(t, res.Applied)

	p, _ := cat.Get(1)
	assert.Equal(t, 9, sizeOf(t, p, "42").LocationQty["shop1"])

	require.NoError(t, cat.Flush(ctx))
	require.Equal(t, 1, store.writeCount())
	assert.Equal(t, uint(1), store.writes[0][0].ProductID)
	assert.Equal(t, 1, store.writes[0][0].Sizes[0].LocationQty["main"])
	assert.Equal(t, int64(0), cat.Status().PendingWrites)
}

func TestCatalogPersistFailureKeepsLocalState(t *testing.T) {
	ctx := context.Background()
	cat, store, _ := newTestCatalog(t, Options{})
	store.failNext = errors.New("connection refused")

	_, err := cat.Deduct(ctx, 1, "42", "shop1", 1)
	require.NoError(t, err)
	require.NoError(t, cat.Flush(ctx))

	p, _ := cat.Get(1)
	assert.Equal(t, 3, sizeOf(t, p, "42").LocationQty["shop1"])
	st := cat.Status()
	assert.Contains(t, st.LastError, "connection refused")
	assert.NotNil(t, st.LastErrorAt)
}

func TestCatalogConfirmWrites(t *testing.T) {
	ctx := context.Background()
	cat, store, _ := newTestCatalog(t, Options{ConfirmWrites: true})
	store.failNext = errors.New("rejected")

	_, err := cat.Restock(ctx, 1, "42", "main", 2)
	require.Error(t, err)

	p, _ := cat.Get(1)
	assert.Equal(t, 6, sizeOf(t, p, "42").LocationQty["main"], "state unchanged on failed confirmed write")

	_, err = cat.Restock(ctx, 1, "42", "main", 2)
	require.NoError(t, err)
	p, _ = cat.Get(1)
	assert.Equal(t, 8, sizeOf(t, p, "42").LocationQty["main"])
	assert.Equal(t, 1, store.writeCount())
}

func TestCatalogSameLocationTransfer(t *testing.T) {
	cat, store, _ := newTestCatalog(t, Options{})

	_, err := cat.Transfer(context.Background(), 1, "42", "shop1", "shop1", 2)
	assert.ErrorIs(t, err, ErrSameLocation)
	require.NoError(t, cat.Flush(context.Background()))
	assert.Equal(t, 0, store.writeCount())
}

func TestCatalogUnknownProductAndSize(t *testing.T) {
	ctx := context.Background()
	cat, store, _ := newTestCatalog(t, Options{})

	_, err := cat.Restock(ctx, 999, "42", "main", 1)
	assert.ErrorIs(t, err, ErrProductNotFound)

	res, err := cat.Restock(ctx, 1, "nope", "main", 1)
	require.NoError(t, err)
	assert.False(t, res.Applied)

	require.NoError(t, cat.Flush(ctx))
	assert.Equal(t, 0, store.writeCount())
}

func TestCatalogApplyAllChecksStock(t *testing.T) {
	ctx := context.Background()
	cat, store, _ := newTestCatalog(t, Options{})

	changes := []Change{
		{ProductID: 1, Deltas: []Delta{{Size: "42", Location: "shop1", Qty: -3}}},
		{ProductID: 1, Deltas: []Delta{{Size: "42", Location: "shop1", Qty: -2}}},
	}
	_, err := cat.ApplyAll(ctx, "sale", changes, true)
	var short *ShortageError
	require.ErrorAs(t, err, &short)
	assert.ErrorIs(t, err, ErrInsufficientStock)
	assert.Equal(t, 4, short.Available)
	assert.Equal(t, 5, short.Requested)

	p, _ := cat.Get(1)
	assert.Equal(t, 4, sizeOf(t, p, "42").LocationQty["shop1"])

	res, err := cat.ApplyAll(ctx, "sale", changes[:1], true)
	require.NoError(t, err)
	assert.True(t, res[0].Applied)
	require.NoError(t, cat.Flush(ctx))
	assert.Equal(t, 1, store.writeCount())
}

func TestCatalogReadersKeepTheirSlice(t *testing.T) {
	cat, _, _ := newTestCatalog(t, Options{})

	before := cat.Products()
	_, err := cat.Deduct(context.Background(), 1, "42", "main", 6)
	require.NoError(t, err)

	assert.Equal(t, 6, sizeOf(t, before[0], "42").LocationQty["main"])
	assert.Equal(t, 0, sizeOf(t, cat.Products()[0], "42").LocationQty["main"])
}

func TestCatalogLoadFallsBackToSnapshot(t *testing.T) {
	ctx := context.Background()
	cat, store, cache := newTestCatalog(t, Options{})
	require.Equal(t, 1, cache.saves)

	store.mu.Lock()
	store.loadErr = errors.New("db down")
	store.mu.Unlock()

	require.NoError(t, cat.Resync(ctx))
	st := cat.Status()
	assert.True(t, st.FromCache)
	assert.Equal(t, 1, st.Products)

	cache.mu.Lock()
	cache.snapshot = nil
	cache.mu.Unlock()
	assert.Error(t, cat.Load(ctx))
}

func TestCatalogProductLifecycle(t *testing.T) {
	ctx := context.Background()
	cat, _, _ := newTestCatalog(t, Options{})

	_, err := cat.Create(ctx, models.Product{
		Model: "Clash",
		Sizes: datatypes.JSONSlice[models.ProductSize]{{Size: "40", Barcode: "B42"}},
	})
	assert.ErrorIs(t, err, ErrBarcodeInUse)

	created, err := cat.Create(ctx, models.Product{
		Model: "Trail",
		Code:  "TR-1",
		Color: "Black",
		Sizes: datatypes.JSONSlice[models.ProductSize]{
			{Size: "40", Barcode: "T40", Quantity: 99, LocationQty: map[string]int{"main": 3, "shop1": 1}},
		},
	})
	require.NoError(t, err)
	assert.NotZero(t, created.ID)
	assert.Equal(t, 4, created.Sizes[0].Quantity)

	found, ok := cat.FindByCodeColor(" tr-1", "black ")
	require.True(t, ok)
	assert.Equal(t, created.ID, found.ID)

	p, s, ok := cat.FindByBarcode("T40")
	require.True(t, ok)
	assert.Equal(t, created.ID, p.ID)
	assert.Equal(t, "40", s.Size)

	_, _, err = cat.Update(ctx, created.ID, func(p *models.Product) error {
		p.Sizes = append(p.Sizes, models.ProductSize{Size: "41", Barcode: "B43"})
		return nil
	})
	assert.ErrorIs(t, err, ErrBarcodeInUse)

	before, after, err := cat.Update(ctx, created.ID, func(p *models.Product) error {
		p.Model = "Trail Pro"
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "Trail", before.Model)
	assert.Equal(t, "Trail Pro", after.Model)
	assert.False(t, cat.BarcodeInUse("T40", created.ID))
	assert.True(t, cat.BarcodeInUse("T40", 0))

	_, err = cat.Delete(ctx, created.ID)
	require.NoError(t, err)
	_, ok = cat.Get(created.ID)
	assert.False(t, ok)
	_, err = cat.Delete(ctx, created.ID)
	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestCatalogConcurrentDeductions(t *testing.T) {
	ctx := context.Background()
	cat, store, _ := newTestCatalog(t, Options{})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = cat.Deduct(ctx, 1, "42", "main", 1)
		}()
	}
	wg.Wait()
	require.NoError(t, cat.Flush(ctx))

	p, _ := cat.Get(1)
	s := sizeOf(t, p, "42")
	assert.Equal(t, 0, s.LocationQty["main"])
	assert.Equal(t, 4, s.Quantity)

	// writes landed in mutation order: the last one carries the final state
	store.mu.Lock()
	last := store.writes[len(store.writes)-1][0]
	store.mu.Unlock()
	assert.Equal(t, 0, last.Sizes[0].LocationQty["main"])
}

func TestCatalogResyncDoesNotLoseConcurrentSale(t *testing.T) {
	ctx := context.Background()
	cat, store, _ := newTestCatalog(t, Options{})

	store.mu.Lock()
	store.loadRead = make(chan struct{})
	store.loadRelease = make(chan struct{})
	store.mu.Unlock()

	resynced := make(chan error, 1)
	go func() { resynced <- cat.Resync(ctx) }()
	<-store.loadRead

	sold := make(chan error, 1)
	go func() {
		_, err := cat.Deduct(ctx, 1, "42", "shop1", 3)
		sold <- err
	}()

	select {
	case <-sold:
		t.Fatal("sale applied while the reload was in flight")
	case <-time.After(50 * time.Millisecond):
	}

	close(store.loadRelease)
	require.NoError(t, <-resynced)
	require.NoError(t, <-sold)

	p, _ := cat.Get(1)
	s := sizeOf(t, p, "42")
	assert.Equal(t, 1, s.LocationQty["shop1"])
	assert.Equal(t, 7, s.Quantity)
}

func TestCatalogApplyAndRecordFailureRestoresStore(t *testing.T) {
	ctx := context.Background()
	cat, store, _ := newTestCatalog(t, Options{})

	changes := []Change{{ProductID: 1, Deltas: TransferDeltas("42", "main", "shop1", 5)}}
	_, err := cat.ApplyAndRecord(ctx, "transfer", changes, true, func(context.Context) error {
		return errors.New("insert failed")
	})
	require.ErrorIs(t, err, ErrNotRecorded)

	p, _ := cat.Get(1)
	assert.Equal(t, map[string]int{"main": 6, "shop1": 4}, sizeOf(t, p, "42").LocationQty)

	require.NoError(t, cat.Flush(ctx))
	require.Equal(t, 2, store.writeCount())
	assert.Equal(t, 1, store.writes[0][0].Sizes[0].LocationQty["main"])
	assert.Equal(t, map[string]int{"main": 6, "shop1": 4}, store.writes[1][0].Sizes[0].LocationQty)

	var recorded bool
	_, err = cat.ApplyAndRecord(ctx, "transfer", changes, true, func(context.Context) error {
		recorded = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, recorded)
	p, _ = cat.Get(1)
	assert.Equal(t, map[string]int{"main": 1, "shop1": 9}, sizeOf(t, p, "42").LocationQty)
}
