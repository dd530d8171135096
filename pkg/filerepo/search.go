package filerepo

import (
	"cmp"

	"github.com/fluxorio/filerepo/pkg/future"
)

// Search finds the record in [left, right] whose key equals target. The
// file must be sorted ascending by key. Each probe is chained onto the
// previous lookup.
//
// A search that exhausts the range fails with *NoExactMatchError holding
// the records next to where target would be, clamped to [left, right].
// left > right fails with ErrNotFound straight away.
func Search[M Model, K cmp.Ordered](r *Repo[M], target K, left, right int, key func(M) K) *future.Future[M] {
	return instrument(r, "search", func() *future.Future[M] {
		if left > right {
			return future.Failed[M](r.loop, notFound(left, right))
		}

		var probe func(lo, hi int) *future.Future[M]
		probe = func(lo, hi int) *future.Future[M] {
			if lo > hi {
				return future.FlatMap(r.neighbours(lo, hi, left, right, "Search"), func(p future.Pair[M, M]) *future.Future[M] {
					return future.Failed[M](r.loop, &NoExactMatchError[M]{Left: p.First, Right: p.Second})
				})
			}
			mid := (1 + lo + hi) / 2
			return future.FlatMap(r.find(mid, "Search"), func(row M) *future.Future[M] {
				switch c := cmp.Compare(key(row), target); {
				case c < 0:
					return probe(mid+1, hi)
				case c > 0:
					return probe(lo, mid-1)
				default:
					return future.Succeeded(r.loop, row)
				}
			})
		}
		return probe(left, right)
	})
}

// SearchInto is Search with every probe posted to the reactor as a new
// task, so the call stack stays flat however large the range is. promise
// is completed exactly once with the same outcome Search would produce.
func SearchInto[M Model, K cmp.Ordered](r *Repo[M], target K, left, right int, key func(M) K, promise *future.Promise[M]) {
	instrument(r, "search_into", func() *future.Future[M] {
		p := future.NewPromise[M](r.loop)
		if left > right {
			p.Fail(notFound(left, right))
			return p.Future
		}

		var probe func(lo, hi int)
		next := func(lo, hi int) {
			if err := r.loop.Post(func() { probe(lo, hi) }); err != nil {
				p.Fail(err)
			}
		}
		probe = func(lo, hi int) {
			if lo > hi {
				r.neighbours(lo, hi, left, right, "SearchInto").OnComplete(func(pair future.Pair[M, M], err error) {
					if err != nil {
						p.Fail(err)
						return
					}
					p.Fail(&NoExactMatchError[M]{Left: pair.First, Right: pair.Second})
				})
				return
			}
			mid := (1 + lo + hi) / 2
			r.find(mid, "SearchInto").OnComplete(func(row M, err error) {
				if err != nil {
					p.Fail(err)
					return
				}
				switch c := cmp.Compare(key(row), target); {
				case c < 0:
					next(mid+1, hi)
				case c > 0:
					next(lo, mid-1)
				default:
					p.Succeed(row)
				}
			})
		}
		probe(left, right)
		return p.Future
	}).Cascade(promise)
}

// neighbours fetches the records bounding an exhausted search [lo, hi]
// inside the caller's [left, right].
func (r *Repo[M]) neighbours(lo, hi, left, right int, event string) *future.Future[future.Pair[M, M]] {
	return future.And(r.find(max(left, lo-1), event), r.find(min(right, hi+1), event))
}
