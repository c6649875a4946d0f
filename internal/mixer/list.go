package mixer

import "sync/atomic"

// registry is the set of in-flight requests, newest first. Any goroutine may
// push; only the mixer goroutine unlinks.
type registry struct {
	head atomic.Pointer[request]
}

func (l *registry) push(n *request) {
	for {
		old := l.head.Load()
		n.next = old
		if l.head.CompareAndSwap(old, n) {
			return
		}
	}
}

// unlink removes cur, whose predecessor in the mixer's walk is prev (nil when
// cur was the head of the snapshot). It returns the predecessor to use for
// the node that followed cur.
//
// Producers only ever touch the head, so a non-nil prev can be patched
// directly. When cur is the head the CAS can lose against a concurrent push;
// cur is then somewhere behind the new head and the chain is rescanned for
// its predecessor.
func (l *registry) unlink(prev, cur *request) *request {
	next := cur.next

	if prev != nil {
		prev.next = next
		return prev
	}

	if l.head.CompareAndSwap(cur, next) {
		return nil
	}

	p := l.head.Load()
	for p.next != cur {
		p = p.next
	}
	p.next = next
	return p
}

// reclaimQueue holds retired requests until some goroutine drains it. The
// mixer pushes, anyone may take the whole chain.
type reclaimQueue struct {
	head atomic.Pointer[request]
}

func (q *reclaimQueue) push(n *request) {
	for {
		old := q.head.Load()
		n.next = old
		if q.head.CompareAndSwap(old, n) {
			return
		}
	}
}

// take claims every queued request at once
func (q *reclaimQueue) take() *request {
	return q.head.Swap(nil)
}
