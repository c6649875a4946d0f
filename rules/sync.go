//go:build ruleguard

package gorules

import "github.com/quasilyte/go-ruleguard/dsl"

// WaitGroupGo detects the manual Add/Done pattern and suggests wg.Go()
//
//	wg.Add(1)
//	go func() {
//	    defer wg.Done()
//	    doSomething()
//	}()
//
// becomes
//
//	wg.Go(func() {
//	    doSomething()
//	})
func WaitGroupGo(m dsl.Matcher) {
	m.Match(
		`$wg.Add(1); go func() { defer $wg.Done(); $*body }()`,
	).
		Where(m["wg"].Type.Is("*sync.WaitGroup") || m["wg"].Type.Is("sync.WaitGroup")).
		Report("use $wg.Go(func() { $body }) instead of manual Add/Done pattern (Go 1.25+)").
		Suggest("$wg.Go(func() { $body })")

	m.Match(`go func() { defer $wg.Done(); $*_ }()`).
		Where(m["wg"].Type.Is("*sync.WaitGroup")).
		Report("use $wg.Go(func() { ... }) instead of go func() { defer $wg.Done(); ... }() (Go 1.25+)")
}

// TypedAtomics flags the function-style sync/atomic API. Shared state in the
// registry and engine uses atomic.Pointer, atomic.Uint64 and friends so a
// plain load or store cannot sneak in.
func TypedAtomics(m dsl.Matcher) {
	m.Match(
		`atomic.AddInt32($*_)`,
		`atomic.AddInt64($*_)`,
		`atomic.AddUint64($*_)`,
		`atomic.LoadInt32($*_)`,
		`atomic.LoadInt64($*_)`,
		`atomic.LoadUint64($*_)`,
		`atomic.LoadPointer($*_)`,
		`atomic.StoreInt32($*_)`,
		`atomic.StoreInt64($*_)`,
		`atomic.StoreUint64($*_)`,
		`atomic.StorePointer($*_)`,
		`atomic.CompareAndSwapPointer($*_)`,
	).
		Report("use the typed atomics (atomic.Int64, atomic.Pointer[T]) instead of $$")
}

// TestingContext suggests t.Context() over context.Background() in tests so
// goroutines started by a test are cancelled when it ends.
func TestingContext(m dsl.Matcher) {
	m.Match(
		`$ctx := context.Background()`,
		`$ctx := context.TODO()`,
		`$fn(context.Background(), $*_)`,
	).
		Where(m.File().Name.Matches(`_test\.go$`)).
		Report("in tests, use t.Context() instead of context.Background() (Go 1.24+)")
}
