package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStore is an in-memory Store with first-write-wins semantics, mirroring
// the sqlite store's ON CONFLICT DO NOTHING.
type memStore struct {
	mu     sync.Mutex
	m      map[string]string
	getErr error
	putErr error
}

func newMemStore() *memStore {
	return &memStore{m: make(map[string]string)}
}

func (s *memStore) Get(ctx context.Context, narration string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return "", false, s.getErr
	}
	v, ok := s.m[narration]
	return v, ok, nil
}

func (s *memStore) Put(ctx context.Context, narration, ledger string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.putErr != nil {
		return s.putErr
	}
	if _, exists := s.m[narration]; !exists {
		s.m[narration] = ledger
	}
	return nil
}

func (s *memStore) Close() error { return nil }

type fakeClassifier struct {
	mu    sync.Mutex
	calls int
	reply string
	err   error
	gate  chan struct{} // when set, Classify blocks until closed
}

func (c *fakeClassifier) Classify(ctx context.Context, prompt string) (string, error) {
	c.mu.Lock()
	c.calls++
	gate := c.gate
	c.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if c.err != nil {
		return "", c.err
	}
	return c.reply, nil
}

func (c *fakeClassifier) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func newResolver(store Store, classifier Classifier) *Resolver {
	return NewResolver(store, classifier, zerolog.Nop())
}

func TestResolveIdempotent(t *testing.T) {
	store := newMemStore()
	classifier := &fakeClassifier{reply: "Office Expenses"}
	r := newResolver(store, classifier)

	first, err := r.Resolve(context.Background(), "UPI-XYZ-001")
	require.NoError(t, err)
	assert.Equal(t, "Office Expenses", first)

	second, err := r.Resolve(context.Background(), "UPI-XYZ-001")
	require.NoError(t, err)
	assert.Equal(t, first, second)

	assert.Equal(t, 1, classifier.callCount(), "second resolution must hit the cache")
}

func TestResolveCacheHitSkipsClassifier(t *testing.T) {
	store := newMemStore()
	store.m["ABC"] = "Office Expenses"
	classifier := &fakeClassifier{reply: "Something Else"}
	r := newResolver(store, classifier)

	for i := 0; i < 3; i++ {
		got, err := r.Resolve(context.Background(), "ABC")
		require.NoError(t, err)
		assert.Equal(t, "Office Expenses", got)
	}
	assert.Equal(t, 0, classifier.callCount())
}

func TestResolveExactMatchKeys(t *testing.T) {
	store := newMemStore()
	classifier := &fakeClassifier{reply: "Ledger A"}
	r := newResolver(store, classifier)

	_, err := r.Resolve(context.Background(), "UPI-XYZ-001")
	require.NoError(t, err)

	// No case folding: a differently-cased narration is a distinct key.
	_, err = r.Resolve(context.Background(), "upi-xyz-001")
	require.NoError(t, err)

	assert.Equal(t, 2, classifier.callCount())
	assert.Len(t, store.m, 2)
}

func TestResolveTrimsClassifierReply(t *testing.T) {
	store := newMemStore()
	classifier := &fakeClassifier{reply: "  Office Expenses \n"}
	r := newResolver(store, classifier)

	got, err := r.Resolve(context.Background(), "RENT JAN")
	require.NoError(t, err)
	assert.Equal(t, "Office Expenses", got)
	assert.Equal(t, "Office Expenses", store.m["RENT JAN"])
}

func TestResolveSingleFlight(t *testing.T) {
	store := newMemStore()
	classifier := &fakeClassifier{reply: "Utilities", gate: make(chan struct{})}
	r := newResolver(store, classifier)

	const callers = 8
	results := make([]string, callers)
	errs := make([]error, callers)

	var started, done sync.WaitGroup
	for i := 0; i < callers; i++ {
		started.Add(1)
		done.Add(1)
		go func(i int) {
			started.Done()
			defer done.Done()
			results[i], errs[i] = r.Resolve(context.Background(), "ELECTRICITY BILL")
		}(i)
	}

	started.Wait()
	// All callers are now either inside Do or queued on the key.
	close(classifier.gate)
	done.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, "Utilities", results[i])
	}
	assert.Equal(t, 1, classifier.callCount(), "one in-flight classification per key")
}

func TestResolveClassifierFailure(t *testing.T) {
	store := newMemStore()
	classifier := &fakeClassifier{err: fmt.Errorf("rate limited")}
	r := newResolver(store, classifier)

	_, err := r.Resolve(context.Background(), "MYSTERY DEBIT")
	var classErr *ClassificationError
	require.ErrorAs(t, err, &classErr)
	assert.Equal(t, "MYSTERY DEBIT", classErr.Narration)

	// Failures are not cached; the narration is retried later.
	assert.Empty(t, store.m)
}

func TestResolveEmptyReply(t *testing.T) {
	store := newMemStore()
	classifier := &fakeClassifier{reply: "   \n"}
	r := newResolver(store, classifier)

	_, err := r.Resolve(context.Background(), "MYSTERY DEBIT")
	var classErr *ClassificationError
	require.ErrorAs(t, err, &classErr)
	assert.ErrorIs(t, err, ErrEmptyClassification)
}

func TestResolveCacheErrors(t *testing.T) {
	t.Run("get failure", func(t *testing.T) {
		store := newMemStore()
		store.getErr = errors.New("disk gone")
		r := newResolver(store, &fakeClassifier{reply: "X"})

		_, err := r.Resolve(context.Background(), "A")
		var cacheErr *CacheError
		require.ErrorAs(t, err, &cacheErr)
		assert.Equal(t, "get", cacheErr.Op)
	})

	t.Run("put failure", func(t *testing.T) {
		store := newMemStore()
		store.putErr = errors.New("disk full")
		r := newResolver(store, &fakeClassifier{reply: "X"})

		_, err := r.Resolve(context.Background(), "A")
		var cacheErr *CacheError
		require.ErrorAs(t, err, &cacheErr)
		assert.Equal(t, "put", cacheErr.Op)
	})
}

func TestResolveFirstClassificationWins(t *testing.T) {
	store := newMemStore()
	// Entry already present: even if the classifier disagrees later, the
	// stored ledger is what every resolution returns.
	require.NoError(t, store.Put(context.Background(), "ABC", "Office Expenses"))
	require.NoError(t, store.Put(context.Background(), "ABC", "Travel"))

	got, ok, err := store.Get(context.Background(), "ABC")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Office Expenses", got)
}

func TestBuildPrompt(t *testing.T) {
	prompt := BuildPrompt("UPI-XYZ-001")
	assert.Contains(t, prompt, `"UPI-XYZ-001"`)
	assert.Contains(t, prompt, "Only give the ledger name")
}
