// Package ledger maps bank narrations to ledger account names using a
// cache-then-classify strategy: the persistent cache is consulted first and
// the external classifier only runs on a miss, under per-narration
// single-flight so concurrent rows never classify the same narration twice.
package ledger

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// Unclassified is the sentinel ledger substituted when classification fails.
// It is never written to the cache, so a later batch retries the narration.
const Unclassified = "Unclassified"

// Resolver resolves narrations to ledger names. Safe for concurrent use.
type Resolver struct {
	store      Store
	classifier Classifier
	group      singleflight.Group
	log        zerolog.Logger
}

// NewResolver wires a resolver to its cache store and classifier.
func NewResolver(store Store, classifier Classifier, log zerolog.Logger) *Resolver {
	return &Resolver{
		store:      store,
		classifier: classifier,
		log:        log,
	}
}

// BuildPrompt embeds a narration into the classification prompt.
func BuildPrompt(narration string) string {
	return fmt.Sprintf(
		"Suggest an appropriate accounting ledger name for this bank narration:\n\n%q\n\nOnly give the ledger name.",
		narration,
	)
}

// Resolve returns the ledger name for a narration. Once any narration has
// been resolved, every later call for the identical string returns the same
// ledger without another classifier call, for the lifetime of the cache.
//
// Errors are *CacheError when the store is unusable and *ClassificationError
// when the classifier failed or answered empty.
func (r *Resolver) Resolve(ctx context.Context, narration string) (string, error) {
	// Concurrent misses on the same key share one classification and one
	// cache write; distinct keys do not contend.
	v, err, shared := r.group.Do(narration, func() (interface{}, error) {
		return r.resolveOne(ctx, narration)
	})
	if err != nil {
		return "", err
	}
	if shared {
		r.log.Debug().Str("narration", narration).Msg("Resolution shared with in-flight caller")
	}
	return v.(string), nil
}

func (r *Resolver) resolveOne(ctx context.Context, narration string) (string, error) {
	cached, ok, err := r.store.Get(ctx, narration)
	if err != nil {
		return "", &CacheError{Op: "get", Err: err}
	}
	if ok {
		return cached, nil
	}

	text, err := r.classifier.Classify(ctx, BuildPrompt(narration))
	if err != nil {
		return "", &ClassificationError{Narration: narration, Err: err}
	}

	suggested := strings.TrimSpace(text)
	if suggested == "" {
		return "", &ClassificationError{Narration: narration, Err: ErrEmptyClassification}
	}

	if err := r.store.Put(ctx, narration, suggested); err != nil {
		return "", &CacheError{Op: "put", Err: err}
	}

	// The store keeps the first write on conflict, so re-read to honor a
	// classification that landed between our miss and our Put.
	final, ok, err := r.store.Get(ctx, narration)
	if err != nil {
		return "", &CacheError{Op: "get", Err: err}
	}
	if !ok {
		return "", &CacheError{Op: "get", Err: fmt.Errorf("entry for %q vanished after put", narration)}
	}

	r.log.Info().Str("narration", narration).Str("ledger", final).Msg("Narration classified")
	return final, nil
}
