package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/salazarroman429-ui/proveedor-tienda-pwa/internal/models"
)

// Collection names. The order of AllCollections is the lock order.
const (
	Products  = "products"
	Stores    = "stores"
	Requests  = "requests"
	Sequences = "sequences"
)

var AllCollections = []string{Products, Stores, Requests, Sequences}

var lockRank = map[string]int{Products: 0, Stores: 1, Requests: 2, Sequences: 3}

// ErrNotExist is returned by a Backend when a collection document was never written.
var ErrNotExist = errors.New("document does not exist")

// Document is one serialized collection.
type Document struct {
	Name string `json:"name"`
	Data []byte `json:"data"`
}

// Backend persists whole collection documents. SaveBatch must apply every
// document or none of them.
type Backend interface {
	Load(ctx context.Context, name string) ([]byte, error)
	SaveBatch(ctx context.Context, docs []Document) error
	Close() error
}

// IOError is a persistence failure. Callers cannot recover from it other than by retrying.
type IOError struct {
	Op         string
	Collection string
	Err        error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("store: %s %s: %v", e.Op, e.Collection, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// Seed holds the documents written for collections that do not exist yet.
type Seed struct {
	Products []models.Product
	Stores   []models.Store
	Requests []models.Request
}

type Store struct {
	backend Backend
	locker  Locker
}

// NewStore creates a record store. A nil locker means in-process locking.
func NewStore(backend Backend, locker Locker) *Store {
	if locker == nil {
		locker = NewMemoryLocker()
	}
	return &Store{backend: backend, locker: locker}
}

// Close closes the backend
func (s *Store) Close() error {
	return s.backend.Close()
}

// Init default-initializes absent collections from seed.
func (s *Store) Init(ctx context.Context, seed *Seed) error {
	if seed == nil {
		seed = &Seed{}
	}

	release, _, err := s.lock(ctx, AllCollections)
	if err != nil {
		return err
	}
	defer release()

	values := map[string]interface{}{
		Products:  nonNil(seed.Products),
		Stores:    nonNil(seed.Stores),
		Requests:  nonNil(seed.Requests),
		Sequences: map[string]int64{},
	}

	var docs []Document
	for _, name := range AllCollections {
		_, err := s.backend.Load(ctx, name)
		if err == nil {
			continue
		}
		if !errors.Is(err, ErrNotExist) {
			return &IOError{Op: "load", Collection: name, Err: err}
		}
		data, err := encode(values[name])
		if err != nil {
			return &IOError{Op: "encode", Collection: name, Err: err}
		}
		docs = append(docs, Document{Name: name, Data: data})
	}

	if len(docs) == 0 {
		return nil
	}
	if err := s.backend.SaveBatch(ctx, docs); err != nil {
		return &IOError{Op: "save", Collection: docNames(docs), Err: err}
	}
	return nil
}

// View runs fn with the named collections locked. Changes made through the Tx are discarded.
func (s *Store) View(ctx context.Context, names []string, fn func(tx *Tx) error) error {
	release, locked, err := s.lock(ctx, names)
	if err != nil {
		return err
	}
	defer release()

	return fn(newTx(ctx, s.backend, locked))
}

// Update runs one load-mutate-save cycle: the named collections stay locked
// while fn runs, and every collection fn marked dirty is saved in one batch.
// Nothing is saved when fn returns an error. Hooks registered with OnCommit
// run after a successful save, before the locks are released.
func (s *Store) Update(ctx context.Context, names []string, fn func(tx *Tx) error) error {
	release, locked, err := s.lock(ctx, names)
	if err != nil {
		return err
	}
	defer release()

	tx := newTx(ctx, s.backend, locked)
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.commit(); err != nil {
		return err
	}
	for _, hook := range tx.onCommit {
		hook()
	}
	return nil
}

func (s *Store) lock(ctx context.Context, names []string) (func(), []string, error) {
	ordered, err := canonical(names)
	if err != nil {
		return nil, nil, err
	}

	unlocks := make([]func(), 0, len(ordered))
	release := func() {
		for i := len(unlocks) - 1; i >= 0; i-- {
			unlocks[i]()
		}
	}

	for _, name := range ordered {
		unlock, err := s.locker.Lock(ctx, "collection:"+name)
		if err != nil {
			release()
			return nil, nil, fmt.Errorf("failed to lock %s: %w", name, err)
		}
		unlocks = append(unlocks, unlock)
	}
	return release, ordered, nil
}

func canonical(names []string) ([]string, error) {
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, name := range names {
		if _, ok := lockRank[name]; !ok {
			return nil, fmt.Errorf("store: unknown collection %q", name)
		}
		if seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	sort.Slice(out, func(i, j int) bool { return lockRank[out[i]] < lockRank[out[j]] })
	return out, nil
}

// Tx gives typed access to the locked collections of one cycle.
type Tx struct {
	ctx     context.Context
	backend Backend
	locked  map[string]bool
	loaded  map[string]bool
	dirty   map[string]bool

	products  []models.Product
	stores    []models.Store
	requests  []models.Request
	sequences map[string]int64

	onCommit []func()
}

func newTx(ctx context.Context, backend Backend, names []string) *Tx {
	locked := make(map[string]bool, len(names))
	for _, name := range names {
		locked[name] = true
	}
	return &Tx{
		ctx:     ctx,
		backend: backend,
		locked:  locked,
		loaded:  map[string]bool{},
		dirty:   map[string]bool{},
	}
}

func (tx *Tx) Products() ([]models.Product, error) {
	if err := loadInto(tx, Products, &tx.products, emptySlice[models.Product]); err != nil {
		return nil, err
	}
	return tx.products, nil
}

func (tx *Tx) SetProducts(products []models.Product) {
	tx.products = products
	tx.markDirty(Products)
}

func (tx *Tx) Stores() ([]models.Store, error) {
	if err := loadInto(tx, Stores, &tx.stores, emptySlice[models.Store]); err != nil {
		return nil, err
	}
	return tx.stores, nil
}

func (tx *Tx) SetStores(stores []models.Store) {
	tx.stores = stores
	tx.markDirty(Stores)
}

func (tx *Tx) Requests() ([]models.Request, error) {
	if err := loadInto(tx, Requests, &tx.requests, emptySlice[models.Request]); err != nil {
		return nil, err
	}
	return tx.requests, nil
}

func (tx *Tx) SetRequests(requests []models.Request) {
	tx.requests = requests
	tx.markDirty(Requests)
}

// Sequences returns the highest id ever assigned per collection.
func (tx *Tx) Sequences() (map[string]int64, error) {
	if err := loadInto(tx, Sequences, &tx.sequences, func() map[string]int64 { return map[string]int64{} }); err != nil {
		return nil, err
	}
	return tx.sequences, nil
}

func (tx *Tx) SetSequences(sequences map[string]int64) {
	tx.sequences = sequences
	tx.markDirty(Sequences)
}

// OnCommit registers fn to run once the cycle's batch is saved. It never runs
// when the callback fails or the save fails.
func (tx *Tx) OnCommit(fn func()) {
	tx.onCommit = append(tx.onCommit, fn)
}

func (tx *Tx) markDirty(name string) {
	tx.loaded[name] = true
	tx.dirty[name] = true
}

func (tx *Tx) commit() error {
	if len(tx.dirty) == 0 {
		return nil
	}

	values := map[string]interface{}{
		Products:  nonNil(tx.products),
		Stores:    nonNil(tx.stores),
		Requests:  nonNil(tx.requests),
		Sequences: tx.sequences,
	}

	docs := make([]Document, 0, len(tx.dirty))
	for _, name := range AllCollections {
		if !tx.dirty[name] {
			continue
		}
		if !tx.locked[name] {
			return fmt.Errorf("store: collection %q written outside its lock", name)
		}
		data, err := encode(values[name])
		if err != nil {
			return &IOError{Op: "encode", Collection: name, Err: err}
		}
		docs = append(docs, Document{Name: name, Data: data})
	}

	if err := tx.backend.SaveBatch(tx.ctx, docs); err != nil {
		return &IOError{Op: "save", Collection: docNames(docs), Err: err}
	}
	return nil
}

// loadInto decodes a collection once per Tx. Absent documents and JSON null decode to empty().
func loadInto[T any](tx *Tx, name string, dst *T, empty func() T) error {
	if tx.loaded[name] {
		return nil
	}
	if !tx.locked[name] {
		return fmt.Errorf("store: collection %q read outside its lock", name)
	}

	data, err := tx.backend.Load(tx.ctx, name)
	switch {
	case errors.Is(err, ErrNotExist), err == nil && bytes.Equal(bytes.TrimSpace(data), []byte("null")):
		*dst = empty()
	case err != nil:
		return &IOError{Op: "load", Collection: name, Err: err}
	default:
		out := empty()
		if err := json.Unmarshal(data, &out); err != nil {
			return &IOError{Op: "decode", Collection: name, Err: err}
		}
		*dst = out
	}

	tx.loaded[name] = true
	return nil
}

func encode(v interface{}) ([]byte, error) {
	return json.MarshalIndent(v, "", "  ")
}

func emptySlice[T any]() []T {
	return []T{}
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func docNames(docs []Document) string {
	names := make([]string, len(docs))
	for i, d := range docs {
		names[i] = d.Name
	}
	return strings.Join(names, "+")
}
