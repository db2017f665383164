package cache

import (
	"golang.org/x/sync/singleflight"
)

// Coalescer guarantees at most one in-flight population routine per cache
// key within the process. For N concurrent callers of the same key the
// population function executes exactly once and all N receive the same
// result or the same error. The pending entry is removed when the
// population completes, success or failure.
type Coalescer struct {
	group singleflight.Group
}

// NewCoalescer creates a Coalescer.
func NewCoalescer() *Coalescer {
	return &Coalescer{}
}

// Do invokes populate for key, coalescing concurrent callers. shared
// reports whether the result was handed to more than one caller.
func (c *Coalescer) Do(key string, populate func() ([]byte, error)) (value []byte, shared bool, err error) {
	v, err, shared := c.group.Do(key, func() (interface{}, error) {
		return populate()
	})
	if err != nil {
		return nil, shared, err
	}
	if v == nil {
		return nil, shared, nil
	}
	return v.([]byte), shared, nil
}
