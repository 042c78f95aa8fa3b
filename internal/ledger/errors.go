package ledger

import (
	"errors"
	"fmt"
)

// ErrEmptyClassification is returned when the classifier answered but the
// reply contained no usable text.
var ErrEmptyClassification = errors.New("classifier returned empty text")

// ClassificationError reports that the external classifier failed for one
// narration. Row-scoped: callers substitute a placeholder ledger and flag the
// row instead of aborting the batch.
type ClassificationError struct {
	Narration string
	Err       error
}

func (e *ClassificationError) Error() string {
	return fmt.Sprintf("classify narration %q: %v", e.Narration, e.Err)
}

func (e *ClassificationError) Unwrap() error { return e.Err }

// CacheError reports that the persistent cache is unusable. Fatal for the
// request: skipping the cache would risk duplicate, inconsistent
// classifications.
type CacheError struct {
	Op  string
	Err error
}

func (e *CacheError) Error() string {
	return fmt.Sprintf("ledger cache %s: %v", e.Op, e.Err)
}

func (e *CacheError) Unwrap() error { return e.Err }
