// Copyright (c) 2023 Colin McRae

// Package sieve finds the smooth relations that feed the linear
// algebra of the quadratic sieve. The k-axis around sqrt(n) is cut
// into fixed-size windows; a producer streams positive and negative
// windows alternately, and a pool of workers log-sieves each window
// against the factor base, confirms candidates by trial division, and
// submits relations to the shared store.
package sieve

import (
	"context"
	"math"
	"math/big"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/plan-systems/klog"
	"golang.org/x/sync/errgroup"

	"github.com/SoftSec-KAIST/Smartian-Dirichlet/modmath"
	"github.com/SoftSec-KAIST/Smartian-Dirichlet/primes"
	"github.com/SoftSec-KAIST/Smartian-Dirichlet/relation"
)

var bigOne = big.NewInt(1)

const (
	minInterval = 1 << 15
	maxInterval = 1 << 20
	// Primes up to smallPrimeCap are sieved through the precomputed
	// cycle copied into each window instead of the per-prime loop.
	smallPrimeCap = 13
	smallCycleLen = 2 * 3 * 5 * 7 * 11 * 13
)

// Options tunes one sieve run. The zero value of a field selects its
// default.
type Options struct {
	// Threads is the worker count; 0 picks the hardware default, and
	// small inputs are forced serial where fan-out costs more than it
	// buys.
	Threads int
	// IntervalSize is the window width in sieve positions.
	IntervalSize int
	// LowerBoundPercent scales the candidate threshold; default 85.
	LowerBoundPercent int
	// ThresholdExponent weights the large-prime allowance subtracted
	// from the threshold. Empirical; default 2.
	ThresholdExponent float64
	// ProcessPartials admits one-large-prime relations.
	ProcessPartials bool
	// CofactorCutoff divides maxPrime^2 to give the large-prime bound.
	CofactorCutoff uint64
	// TimeLimit bounds the wall-clock of the run; zero means no limit.
	TimeLimit time.Duration
	// ReportingInterval spaces progress log lines; zero disables them.
	ReportingInterval time.Duration
}

func (o *Options) withDefaults(n *big.Int) Options {
	opts := *o
	if opts.Threads <= 0 {
		opts.Threads = runtime.GOMAXPROCS(0)
	}
	// Below ~10^10 the fan-out overhead outweighs the sieving.
	if n.Cmp(big.NewInt(10_000_000_000)) <= 0 {
		opts.Threads = 1
	}
	if opts.IntervalSize == 0 {
		opts.IntervalSize = 200_000
	}
	if opts.IntervalSize < minInterval {
		opts.IntervalSize = minInterval
	}
	if opts.IntervalSize > maxInterval {
		opts.IntervalSize = maxInterval
	}
	if opts.LowerBoundPercent <= 0 {
		opts.LowerBoundPercent = 85
	}
	if opts.ThresholdExponent <= 0 {
		opts.ThresholdExponent = 2
	}
	if opts.CofactorCutoff == 0 {
		opts.CofactorCutoff = 1000
	}
	return opts
}

// window is one unit of work: the half-open k-range
// [start, start+width) with x = sqrtN + k.
type window struct {
	start int64
	width int
}

// Sieve owns one run against a fixed composite and factor base. The
// factor base, roots and precomputed offsets are immutable once New
// returns, so workers share them without locks.
type Sieve struct {
	n     *big.Int
	fb    *primes.FactorBase
	opts  Options
	store *relation.Store

	sqrtN  *big.Int
	x0ModP []uint32 // sqrtN mod p, aligned with fb.Entries

	smallCycle []uint16 // log contributions of primes <= smallPrimeCap, by x mod cycle
	x0ModCycle int64

	largePrimeBound uint64

	cancelled atomic.Bool
	windows   atomic.Int64
}

// New prepares a sieve run for n with the given factor base and
// relation store. n must match the composite the base was built for.
func New(n *big.Int, fb *primes.FactorBase, store *relation.Store, opts Options) *Sieve {
	s := &Sieve{
		n:     new(big.Int).Set(n),
		fb:    fb,
		opts:  opts.withDefaults(n),
		store: store,
		sqrtN: modmath.Sqrt(n),
	}

	s.x0ModP = make([]uint32, len(fb.Entries))
	pBig := new(big.Int)
	mBig := new(big.Int)
	for i, e := range fb.Entries {
		s.x0ModP[i] = uint32(mBig.Mod(s.sqrtN, pBig.SetUint64(uint64(e.P))).Uint64())
	}
	s.x0ModCycle = int64(mBig.Mod(s.sqrtN, pBig.SetInt64(smallCycleLen)).Int64())

	s.smallCycle = make([]uint16, smallCycleLen)
	for _, e := range fb.Entries {
		if e.P > smallPrimeCap {
			continue
		}
		p := int64(e.P)
		for t := int64(0); t < smallCycleLen; t++ {
			r := uint32(t % p)
			if r == e.Root || (e.P != 2 && r == e.RootNeg) {
				s.smallCycle[t] += uint16(e.Log)
			}
		}
	}

	// L = maxPrime^2 / cutoff, floored so small bases still leave the
	// large primes a useful range above the base.
	mp := uint64(s.fb.MaxPrime)
	s.largePrimeBound = mp * mp / s.opts.CofactorCutoff
	if s.largePrimeBound < 64*mp {
		s.largePrimeBound = 64 * mp
	}
	return s
}

// Run sieves until the store reports enough full relations, the
// context is cancelled, or the time limit expires. A nil return means
// the store is full; a time limit expiry returns context.DeadlineExceeded
// wrapped, which callers treat as cancellation followed by a retry.
func (s *Sieve) Run(ctx context.Context) error {
	if s.store.Done() {
		return nil
	}
	if s.opts.TimeLimit > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.TimeLimit)
		defer cancel()
	}
	ctx, stop := context.WithCancel(ctx)
	defer stop()

	work := make(chan window, 2*s.opts.Threads)
	results := make(chan *relation.Relation, 256)

	go s.produce(ctx, work)

	var workers errgroup.Group
	for t := 0; t < s.opts.Threads; t++ {
		workers.Go(func() error {
			w := newWorker(s)
			for win := range work {
				if s.cancelled.Load() {
					break
				}
				w.sieveWindow(win, results)
				s.windows.Add(1)
			}
			// Drain so the producer never blocks against a stopped pool.
			for range work {
			}
			return nil
		})
	}
	go func() {
		_ = workers.Wait()
		close(results)
	}()

	var report <-chan time.Time
	if s.opts.ReportingInterval > 0 {
		ticker := time.NewTicker(s.opts.ReportingInterval)
		defer ticker.Stop()
		report = ticker.C
	}

	for {
		select {
		case r, ok := <-results:
			if !ok {
				if s.store.Done() {
					return nil
				}
				return errors.Wrap(ctx.Err(), "sieve: interrupted")
			}
			if s.store.Add(r) && !s.cancelled.Swap(true) {
				stop()
			}
		case <-report:
			fulls, pending := s.store.Counts()
			klog.Infof("sieve: %d windows, %d/%d full relations, %d partials pending",
				s.windows.Load(), fulls, s.store.Target(), pending)
		}
	}
}

// produce alternates positive and negative windows outward from k = 0,
// so the smallest |Q(x)| values -- the likeliest smooth ones -- are
// sieved first.
func (s *Sieve) produce(ctx context.Context, work chan<- window) {
	defer close(work)
	width := s.opts.IntervalSize
	var posNext int64
	negNext := int64(-width)
	// The negative stream may not run past x = 1.
	negFloor := int64(math.MinInt64)
	if s.sqrtN.IsInt64() {
		negFloor = -s.sqrtN.Int64() + 1
	}
	emitNeg := true
	for {
		var win window
		if emitNeg && negNext >= negFloor {
			win = window{start: negNext, width: width}
			negNext -= int64(width)
		} else {
			win = window{start: posNext, width: width}
			posNext += int64(width)
		}
		emitNeg = !emitNeg
		select {
		case work <- win:
		case <-ctx.Done():
			return
		}
	}
}

// worker owns the scratch state for sieving windows: the counter slab
// and reusable big.Int temporaries. Nothing here is shared.
type worker struct {
	s        *Sieve
	counters []uint16
	x        *big.Int
	y        *big.Int
	q        *big.Int
	r        *big.Int
	rem      *big.Int
}

func newWorker(s *Sieve) *worker {
	return &worker{
		s:        s,
		counters: make([]uint16, s.opts.IntervalSize),
		x:        new(big.Int),
		y:        new(big.Int),
		q:        new(big.Int),
		r:        new(big.Int),
		rem:      new(big.Int),
	}
}

// offsetFor returns the first j >= 0 with x0 + start + j hitting the
// given root mod p.
func offsetFor(x0ModP uint32, start int64, root, p uint32) int {
	xStart := (int64(x0ModP) + start) % int64(p)
	if xStart < 0 {
		xStart += int64(p)
	}
	j := int64(root) - xStart
	if j < 0 {
		j += int64(p)
	}
	return int(j)
}

func (w *worker) sieveWindow(win window, results chan<- *relation.Relation) {
	s := w.s
	width := win.width

	// Seed the counters with the small-prime cycle, phased by x mod
	// the cycle length, then zero is never needed separately.
	phase := (s.x0ModCycle + win.start) % smallCycleLen
	if phase < 0 {
		phase += smallCycleLen
	}
	for filled := 0; filled < width; {
		n := copy(w.counters[filled:width], s.smallCycle[phase:])
		filled += n
		phase = 0
	}

	// Log sieve over the rest of the base. Cancellation is polled
	// between batches of factor-base entries.
	for i, e := range s.fb.Entries {
		if e.P <= smallPrimeCap {
			continue
		}
		if i&1023 == 0 && s.cancelled.Load() {
			return
		}
		p := int(e.P)
		logp := uint16(e.Log)
		j := offsetFor(s.x0ModP[i], win.start, e.Root, e.P)
		for ; j < width; j += p {
			w.counters[j] += logp
		}
		if e.RootNeg != e.Root {
			j = offsetFor(s.x0ModP[i], win.start, e.RootNeg, e.P)
			for ; j < width; j += p {
				w.counters[j] += logp
			}
		}
	}

	threshold := w.threshold(win)
	for j := 0; j < width; j++ {
		if w.counters[j] < threshold {
			continue
		}
		if rel := w.confirm(win, j); rel != nil {
			results <- rel
		}
	}
}

// threshold computes the counter value a candidate must reach:
// the scaled log of |Q| at the window start, less an allowance of
// ThresholdExponent large-prime logs, scaled by LowerBoundPercent.
func (w *worker) threshold(win window) uint16 {
	s := w.s
	w.x.Add(s.sqrtN, w.q.SetInt64(win.start))
	w.y.Mul(w.x, w.x)
	w.y.Sub(w.y, s.n)
	w.y.Abs(w.y)
	logQ := 10 * float64(w.y.BitLen()) * math.Ln2
	allowance := s.opts.ThresholdExponent * 10 * math.Log(float64(s.fb.MaxPrime))
	t := (logQ - allowance) * float64(s.opts.LowerBoundPercent) / 100
	if t < 1 {
		t = 1
	}
	if t > math.MaxUint16 {
		t = math.MaxUint16
	}
	return uint16(t)
}

// confirm trial-divides Q(x) at window offset j over the factor base
// and builds the relation if the residual is 1 or a single large
// prime under the bound.
func (w *worker) confirm(win window, j int) *relation.Relation {
	s := w.s
	k := win.start + int64(j)
	w.x.Add(s.sqrtN, w.q.SetInt64(k))
	if w.x.Sign() <= 0 {
		return nil
	}
	w.y.Mul(w.x, w.x)
	w.y.Sub(w.y, s.n)
	negative := w.y.Sign() < 0
	if w.y.Sign() == 0 {
		return nil
	}
	w.y.Abs(w.y)

	var factors []relation.PrimePower
	for i, e := range s.fb.Entries {
		p := uint32(e.P)
		xModP := (int64(s.x0ModP[i]) + k) % int64(p)
		if xModP < 0 {
			xModP += int64(p)
		}
		if uint32(xModP) != e.Root && uint32(xModP) != e.RootNeg {
			continue
		}
		var power int32
		pBig := w.r.SetUint64(uint64(p))
		for {
			w.q.QuoRem(w.y, pBig, w.rem)
			if w.rem.Sign() != 0 {
				break
			}
			w.y.Set(w.q)
			power++
		}
		if power > 0 {
			factors = append(factors, relation.PrimePower{Index: int32(i), Power: power})
		}
	}

	cofactor := uint64(1)
	if w.y.Cmp(bigOne) != 0 {
		if !w.y.IsUint64() {
			return nil
		}
		c := w.y.Uint64()
		if !s.opts.ProcessPartials || c > s.largePrimeBound || !primes.IsPrime(c) {
			return nil
		}
		cofactor = c
	}

	return &relation.Relation{
		X:        new(big.Int).Set(w.x),
		Negative: negative,
		Factors:  factors,
		Cofactor: cofactor,
	}
}
