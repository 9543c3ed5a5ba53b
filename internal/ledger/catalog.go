package ledger

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"doka-backend/internal/metrics"
	"doka-backend/internal/models"

	"go.uber.org/zap"
)

var (
	ErrBarcodeInUse      = errors.New("barcode already in use")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrNotRecorded       = errors.New("mutation not recorded")
)

// ShortageError names the line that failed an availability check.
type ShortageError struct {
	ProductID uint
	Size      string
	Location  string
	Available int
	Requested int
}

func (e *ShortageError) Error() string {
	return fmt.Sprintf("insufficient stock for product %d size %s at %s: available %d, requested %d",
		e.ProductID, e.Size, e.Location, e.Available, e.Requested)
}

func (e *ShortageError) Unwrap() error { return ErrInsufficientStock }

// Store is the persistent side of the catalog.
type Store interface {
	LoadProducts(ctx context.Context) ([]models.Product, error)
	UpsertStock(ctx context.Context, updates ...StockUpdate) error
	CreateProduct(ctx context.Context, p *models.Product) error
	SaveProduct(ctx context.Context, p *models.Product) error
	DeleteProduct(ctx context.Context, id uint) error
}

// SnapshotCache mirrors the last known catalog for use when the store is down.
type SnapshotCache interface {
	Save(ctx context.Context, products []models.Product) error
	Load(ctx context.Context) ([]models.Product, error)
}

// StockUpdate is the persisted shape of one ledger mutation.
type StockUpdate struct {
	ProductID uint
	Sizes     []models.ProductSize
	Stock     models.LocationStock
}

// Change is a list of deltas for one product.
type Change struct {
	ProductID uint
	Deltas    []Delta
}

// Result is what a mutation reports back: the product's new size list.
type Result struct {
	ProductID uint                 `json:"productId"`
	Sizes     []models.ProductSize `json:"sizes"`
	Stock     models.LocationStock `json:"stock"`
	Applied   bool                 `json:"applied"`
}

type Options struct {
	// ConfirmWrites persists before the in-memory catalog changes and returns
	// the store error to the caller. Otherwise writes are queued.
	ConfirmWrites bool
	WriteTimeout  time.Duration
	QueueSize     int
}

type SyncStatus struct {
	LastError     string     `json:"lastError,omitempty"`
	LastErrorAt   *time.Time `json:"lastErrorAt,omitempty"`
	LastSyncAt    *time.Time `json:"lastSyncAt,omitempty"`
	FromCache     bool       `json:"fromCache"`
	PendingWrites int64      `json:"pendingWrites"`
	Products      int        `json:"products"`
}

type writeJob struct {
	updates  []StockUpdate
	snapshot []models.Product
	barrier  chan struct{}
}

// Catalog is the shared product collection every ledger operation reads from.
// The products slice is copy-on-write: a mutation builds a new slice and swaps
// it in, so a slice handed to a reader never changes underneath it.
type Catalog struct {
	mu       sync.RWMutex
	products []models.Product
	closed   bool

	store Store
	cache SnapshotCache
	log   *zap.Logger
	opts  Options

	writes  chan writeJob
	stopped chan struct{}
	pending atomic.Int64

	statusMu sync.Mutex
	status   SyncStatus
}

func NewCatalog(store Store, cache SnapshotCache, log *zap.Logger, opts Options) *Catalog {
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 5 * time.Second
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 256
	}
	if log == nil {
		log = zap.NewNop()
	}
	c := &Catalog{
		store:   store,
		cache:   cache,
		log:     log.Named("ledger"),
		opts:    opts,
		writes:  make(chan writeJob, opts.QueueSize),
		stopped: make(chan struct{}),
	}
	go c.run()
	return c
}

// Load replaces the catalog with the store's products. When the store fails
// and a snapshot cache is configured, the last snapshot is used instead.
func (c *Catalog) Load(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loadLocked(ctx)
}

// Resync waits for queued writes and reloads from the store. The catalog stays
// locked throughout, so no mutation can land between the read and the swap.
func (c *Catalog) Resync(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.flushLocked(ctx); err != nil {
		return err
	}
	return c.loadLocked(ctx)
}

func (c *Catalog) loadLocked(ctx context.Context) error {
	products, err := c.store.LoadProducts(ctx)
	fromCache := false
	if err != nil {
		if c.cache == nil {
			return fmt.Errorf("load products: %w", err)
		}
		cached, cerr := c.cache.Load(ctx)
		if cerr != nil {
			return fmt.Errorf("load products: %w (snapshot: %v)", err, cerr)
		}
		c.log.Warn("store unavailable, catalog loaded from snapshot", zap.Error(err), zap.Int("products", len(cached)))
		products = cached
		fromCache = true
	}
	c.products = products

	now := time.Now()
	c.statusMu.Lock()
	c.status.FromCache = fromCache
	c.status.LastSyncAt = &now
	if !fromCache {
		c.status.LastError = ""
		c.status.LastErrorAt = nil
	}
	c.statusMu.Unlock()

	if !fromCache {
		c.saveSnapshot(ctx, products)
	}
	c.log.Info("catalog loaded", zap.Int("products", len(products)), zap.Bool("from_cache", fromCache))
	return nil
}

func (c *Catalog) Products() []models.Product {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.products
}

func (c *Catalog) Get(id uint) (models.Product, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if i := indexOf(c.products, id); i >= 0 {
		return c.products[i], true
	}
	return models.Product{}, false
}

// FindByBarcode returns the product and size carrying barcode.
func (c *Catalog) FindByBarcode(barcode string) (models.Product, models.ProductSize, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, p := range c.products {
		for _, s := range p.Sizes {
			if s.Barcode != "" && s.Barcode == barcode {
				return p, s, true
			}
		}
	}
	return models.Product{}, models.ProductSize{}, false
}

// FindByCodeColor matches case-insensitively on trimmed code and color.
func (c *Catalog) FindByCodeColor(code, color string) (models.Product, bool) {
	code = strings.TrimSpace(code)
	color = strings.TrimSpace(color)
	if code == "" {
		return models.Product{}, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, p := range c.products {
		if strings.EqualFold(strings.TrimSpace(p.Code), code) && strings.EqualFold(strings.TrimSpace(p.Color), color) {
			return p, true
		}
	}
	return models.Product{}, false
}

// BarcodeInUse reports whether any product other than exclude has barcode.
func (c *Catalog) BarcodeInUse(barcode string, exclude uint) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return barcodeTaken(c.products, barcode, exclude)
}

func (c *Catalog) Restock(ctx context.Context, productID uint, size, location string, qty int) (Result, error) {
	if qty <= 0 {
		return c.unchanged(productID)
	}
	return c.Apply(ctx, "restock", productID, []Delta{{Size: size, Location: location, Qty: qty}})
}

func (c *Catalog) Deduct(ctx context.Context, productID uint, size, location string, qty int) (Result, error) {
	if qty <= 0 {
		return c.unchanged(productID)
	}
	return c.Apply(ctx, "deduct", productID, []Delta{{Size: size, Location: location, Qty: -qty}})
}

func (c *Catalog) Transfer(ctx context.Context, productID uint, size, from, to string, qty int) (Result, error) {
	if from == to {
		return Result{}, ErrSameLocation
	}
	if qty <= 0 {
		return c.unchanged(productID)
	}
	return c.Apply(ctx, "transfer", productID, TransferDeltas(size, from, to, qty))
}

// Apply runs BatchApply against the current version of one product.
func (c *Catalog) Apply(ctx context.Context, op string, productID uint, deltas []Delta) (Result, error) {
	res, err := c.ApplyAll(ctx, op, []Change{{ProductID: productID, Deltas: deltas}}, false)
	if err != nil {
		return Result{}, err
	}
	return res[0], nil
}

// ApplyAll applies every change under one lock. With checkStock set, all
// negative deltas are first checked against AvailableQuantity (summed per
// product, size and location) and nothing is applied if any line is short.
// Unknown products fail the whole call with ErrProductNotFound.
func (c *Catalog) ApplyAll(ctx context.Context, op string, changes []Change, checkStock bool) ([]Result, error) {
	return c.ApplyAndRecord(ctx, op, changes, checkStock, nil)
}

// ApplyAndRecord is ApplyAll plus a record step, such as inserting the sale
// row, run under the same lock once the stock write is persisted or queued.
// If record fails the affected products are written back exactly as they
// were, the catalog keeps its previous version and the error wraps
// ErrNotRecorded.
func (c *Catalog) ApplyAndRecord(ctx context.Context, op string, changes []Change, checkStock bool, record func(context.Context) error) ([]Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	next := slices.Clone(c.products)
	idxs := make([]int, len(changes))
	for i, ch := range changes {
		idxs[i] = indexOf(next, ch.ProductID)
		if idxs[i] < 0 {
			return nil, fmt.Errorf("product %d: %w", ch.ProductID, ErrProductNotFound)
		}
	}

	if checkStock {
		if err := checkAvailability(next, idxs, changes); err != nil {
			return nil, err
		}
	}

	results := make([]Result, len(changes))
	var updates []StockUpdate
	for i, ch := range changes {
		p, applied := BatchApply(next[idxs[i]], ch.Deltas)
		if applied {
			next[idxs[i]] = p
			updates = append(updates, StockUpdate{ProductID: p.ID, Sizes: p.Sizes, Stock: p.StockMap()})
		}
		results[i] = Result{ProductID: p.ID, Sizes: p.Sizes, Stock: p.StockMap(), Applied: applied}
	}
	if len(updates) == 0 {
		if record != nil {
			if err := record(ctx); err != nil {
				return nil, fmt.Errorf("%s: %w: %v", op, ErrNotRecorded, err)
			}
		}
		return results, nil
	}

	if err := c.persistLocked(ctx, updates, next); err != nil {
		return nil, err
	}
	if record != nil {
		if err := record(ctx); err != nil {
			c.restoreLocked(ctx, updates)
			return nil, fmt.Errorf("%s: %w: %v", op, ErrNotRecorded, err)
		}
	}
	c.products = next
	metrics.LedgerMutations.WithLabelValues(op).Inc()
	return results, nil
}

// restoreLocked writes the current in-memory version of every product in
// applied back to the store, undoing a write whose record failed.
func (c *Catalog) restoreLocked(ctx context.Context, applied []StockUpdate) {
	prev := make([]StockUpdate, 0, len(applied))
	for _, u := range applied {
		if i := indexOf(c.products, u.ProductID); i >= 0 {
			p := c.products[i]
			prev = append(prev, StockUpdate{ProductID: p.ID, Sizes: p.Sizes, Stock: p.StockMap()})
		}
	}
	if err := c.persistLocked(ctx, prev, c.products); err != nil {
		c.log.Error("stock restore failed", zap.Error(err))
	}
}

// Create stores a new product and adds it to the catalog.
func (c *Catalog) Create(ctx context.Context, p models.Product) (models.Product, error) {
	p.Sizes = Normalize(p.Sizes)

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, s := range p.Sizes {
		if s.Barcode != "" && barcodeTaken(c.products, s.Barcode, 0) {
			return models.Product{}, fmt.Errorf("%s: %w", s.Barcode, ErrBarcodeInUse)
		}
	}
	if dup := duplicateBarcode(p.Sizes); dup != "" {
		return models.Product{}, fmt.Errorf("%s: %w", dup, ErrBarcodeInUse)
	}
	if err := c.flushLocked(ctx); err != nil {
		return models.Product{}, err
	}
	if err := c.store.CreateProduct(ctx, &p); err != nil {
		return models.Product{}, fmt.Errorf("create product: %w", err)
	}

	next := append(slices.Clone(c.products), p)
	c.products = next
	c.enqueueSnapshot(next)
	return p, nil
}

// Update applies fn to a copy of the product and stores the result.
func (c *Catalog) Update(ctx context.Context, id uint, fn func(p *models.Product) error) (models.Product, models.Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := indexOf(c.products, id)
	if i < 0 {
		return models.Product{}, models.Product{}, ErrProductNotFound
	}
	before := c.products[i]
	p := before.Clone()
	if err := fn(&p); err != nil {
		return models.Product{}, models.Product{}, err
	}
	p.ID = id
	p.Sizes = Normalize(p.Sizes)

	for _, s := range p.Sizes {
		if s.Barcode != "" && barcodeTaken(c.products, s.Barcode, id) {
			return models.Product{}, models.Product{}, fmt.Errorf("%s: %w", s.Barcode, ErrBarcodeInUse)
		}
	}
	if dup := duplicateBarcode(p.Sizes); dup != "" {
		return models.Product{}, models.Product{}, fmt.Errorf("%s: %w", dup, ErrBarcodeInUse)
	}

	// queued stock writes for this product must land before the full save
	if err := c.flushLocked(ctx); err != nil {
		return models.Product{}, models.Product{}, err
	}
	if err := c.store.SaveProduct(ctx, &p); err != nil {
		return models.Product{}, models.Product{}, fmt.Errorf("save product: %w", err)
	}

	next := slices.Clone(c.products)
	next[i] = p
	c.products = next
	c.enqueueSnapshot(next)
	return before, p, nil
}

func (c *Catalog) Delete(ctx context.Context, id uint) (models.Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := indexOf(c.products, id)
	if i < 0 {
		return models.Product{}, ErrProductNotFound
	}
	if err := c.flushLocked(ctx); err != nil {
		return models.Product{}, err
	}
	if err := c.store.DeleteProduct(ctx, id); err != nil {
		return models.Product{}, fmt.Errorf("delete product: %w", err)
	}

	removed := c.products[i]
	next := slices.Delete(slices.Clone(c.products), i, i+1)
	c.products = next
	c.enqueueSnapshot(next)
	return removed, nil
}

func (c *Catalog) Status() SyncStatus {
	c.statusMu.Lock()
	st := c.status
	c.statusMu.Unlock()

	st.PendingWrites = c.pending.Load()
	c.mu.RLock()
	st.Products = len(c.products)
	c.mu.RUnlock()
	return st
}

// Flush blocks until every write queued before the call has been attempted.
func (c *Catalog) Flush(ctx context.Context) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.flushLocked(ctx)
}

// Close drains the write queue and stops the writer.
func (c *Catalog) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.writes)
	c.mu.Unlock()
	<-c.stopped
}

func (c *Catalog) unchanged(productID uint) (Result, error) {
	p, ok := c.Get(productID)
	if !ok {
		return Result{}, fmt.Errorf("product %d: %w", productID, ErrProductNotFound)
	}
	return Result{ProductID: p.ID, Sizes: p.Sizes, Stock: p.StockMap()}, nil
}

// persistLocked either writes synchronously or queues the write. Caller holds
// c.mu so queued writes keep the order of the in-memory mutations.
func (c *Catalog) persistLocked(ctx context.Context, updates []StockUpdate, snapshot []models.Product) error {
	if c.opts.ConfirmWrites || c.closed {
		wctx, cancel := context.WithTimeout(ctx, c.opts.WriteTimeout)
		defer cancel()
		if err := c.store.UpsertStock(wctx, updates...); err != nil {
			c.recordFailure(err)
			return fmt.Errorf("persist stock: %w", err)
		}
		c.saveSnapshot(wctx, snapshot)
		return nil
	}
	c.pending.Add(1)
	c.writes <- writeJob{updates: updates, snapshot: snapshot}
	return nil
}

func (c *Catalog) enqueueSnapshot(snapshot []models.Product) {
	if c.cache == nil || c.closed {
		return
	}
	c.writes <- writeJob{snapshot: snapshot}
}

func (c *Catalog) flushLocked(ctx context.Context) error {
	if c.closed {
		return nil
	}
	done := make(chan struct{})
	select {
	case c.writes <- writeJob{barrier: done}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Catalog) run() {
	defer close(c.stopped)
	for job := range c.writes {
		if job.barrier != nil {
			close(job.barrier)
			continue
		}
		if len(job.updates) == 0 {
			c.saveSnapshot(context.Background(), job.snapshot)
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), c.opts.WriteTimeout)
		err := c.store.UpsertStock(ctx, job.updates...)
		if err == nil {
			c.saveSnapshot(ctx, job.snapshot)
		}
		cancel()
		c.pending.Add(-1)

		if err != nil {
			c.recordFailure(err)
		}
	}
}

func (c *Catalog) recordFailure(err error) {
	metrics.LedgerPersistFailures.Inc()
	c.log.Warn("stock write failed, in-memory catalog kept", zap.Error(err))

	now := time.Now()
	c.statusMu.Lock()
	c.status.LastError = err.Error()
	c.status.LastErrorAt = &now
	c.statusMu.Unlock()
}

func (c *Catalog) saveSnapshot(ctx context.Context, products []models.Product) {
	if c.cache == nil || products == nil {
		return
	}
	if err := c.cache.Save(ctx, products); err != nil {
		c.log.Warn("snapshot save failed", zap.Error(err))
	}
}

func checkAvailability(products []models.Product, idxs []int, changes []Change) error {
	type key struct {
		idx            int
		size, location string
	}
	want := map[key]int{}
	var order []key
	for i, ch := range changes {
		for _, d := range ch.Deltas {
			if d.Qty >= 0 {
				continue
			}
			k := key{idxs[i], d.Size, d.Location}
			if _, seen := want[k]; !seen {
				order = append(order, k)
			}
			want[k] += -d.Qty
		}
	}
	for _, k := range order {
		p := products[k.idx]
		s, ok := FindSize(p, k.size)
		if !ok {
			return &ShortageError{ProductID: p.ID, Size: k.size, Location: k.location, Requested: want[k]}
		}
		if avail := AvailableQuantity(s, k.location); avail < want[k] {
			return &ShortageError{ProductID: p.ID, Size: k.size, Location: k.location, Available: avail, Requested: want[k]}
		}
	}
	return nil
}

func indexOf(products []models.Product, id uint) int {
	for i, p := range products {
		if p.ID == id {
			return i
		}
	}
	return -1
}

func barcodeTaken(products []models.Product, barcode string, exclude uint) bool {
	if barcode == "" {
		return false
	}
	for _, p := range products {
		if p.ID == exclude {
			continue
		}
		for _, s := range p.Sizes {
			if s.Barcode == barcode {
				return true
			}
		}
	}
	return false
}

func duplicateBarcode(sizes []models.ProductSize) string {
	seen := map[string]bool{}
	for _, s := range sizes {
		if s.Barcode == "" {
			continue
		}
		if seen[s.Barcode] {
			return s.Barcode
		}
		seen[s.Barcode] = true
	}
	return ""
}
