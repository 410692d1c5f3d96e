package engine

import (
	"fmt"
	"strings"
	"sync/atomic"
	"time"
)

// idFactory mints provisional message ids. They are time-derived and unique
// for the lifetime of the factory.
type idFactory struct {
	seed    string
	counter uint64
}

func newIDFactory(seed string) *idFactory {
	clean := strings.TrimSpace(seed)
	if clean == "" {
		clean = fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return &idFactory{seed: clean}
}

func (f *idFactory) next() string {
	n := atomic.AddUint64(&f.counter, 1)
	return fmt.Sprintf("local-%s-%d", f.seed, n)
}
