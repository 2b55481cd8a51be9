// Package weights resolves the active weight vector for a rank call by
// merging the persisted LTR snapshot, a named preset, and a case-complexity
// adjustment into a normalized vector summing to 1. Grounded on
// original_source/algoritmo_match_v2_4/algoritmo_match_v2_4_full.py's
// load_weights/dynamic_weights functions, with the process-wide snapshot
// held behind an atomic pointer the way the teacher bootstraps its
// tracing.TracerProvider once at process start.
package weights

import (
	"os"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/NicholasJacob1990/litgo-match/internal/litmatch"
	"github.com/NicholasJacob1990/litgo-match/internal/xjson"
)

// Resolver holds the process-wide LTR snapshot and resolves per-call
// weight vectors. Reads (Resolve) never block on reload; Reload swaps the
// snapshot pointer atomically, guarded by a mutex so concurrent reloads
// don't race each other.
type Resolver struct {
	snapshotPath string
	logger       *zap.Logger

	current    atomic.Pointer[litmatch.WeightVector]
	reloadLock sync.Mutex
}

// New constructs a Resolver and performs the initial snapshot load. A
// failed initial load is not fatal: the resolver starts on
// litmatch.DefaultWeights, matching spec §4.2's cold-start rule.
func New(snapshotPath string, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Resolver{snapshotPath: snapshotPath, logger: logger}
	initial := litmatch.DefaultWeights.Clone()
	r.current.Store(&initial)
	if _, err := r.Reload(); err != nil {
		logger.Warn("ltr snapshot load failed at startup, using DEFAULT", zap.Error(err))
	}
	return r
}

// Reload re-reads the LTR snapshot from disk. On any failure (missing,
// malformed, or all-zero snapshot) it logs a warning and keeps the
// previously active vector — it never leaves the resolver without a valid
// vector.
func (r *Resolver) Reload() (litmatch.WeightVector, error) {
	r.reloadLock.Lock()
	defer r.reloadLock.Unlock()

	snapshot, err := loadSnapshot(r.snapshotPath)
	if err != nil {
		r.logger.Warn("ltr snapshot reload failed, keeping previous vector",
			zap.String("path", r.snapshotPath), zap.Error(err))
		return *r.current.Load(), litmatch.WeightLoadFailure(err, "reload ltr snapshot from %q", r.snapshotPath)
	}
	r.current.Store(&snapshot)
	return snapshot.Clone(), nil
}

// Active returns the currently loaded LTR snapshot without reloading.
func (r *Resolver) Active() litmatch.WeightVector {
	return (*r.current.Load()).Clone()
}

// Resolve merges the active snapshot, the named preset, and the
// complexity delta into a normalized weight vector. Unknown preset names
// fall back to DEFAULT (balanced), per spec §6.
func (r *Resolver) Resolve(preset string, complexity litmatch.Complexity) litmatch.WeightVector {
	base := r.Active()
	for k, v := range resolvePreset(preset) {
		base[k] = v
	}

	delta := complexityDelta[complexity]
	for k, d := range delta {
		base[k] += d
	}

	return normalize(base)
}

// normalize clamps every component to >=0 and divides by the sum,
// falling back to the normalized DEFAULT vector if the sum is zero.
func normalize(w litmatch.WeightVector) litmatch.WeightVector {
	var sum float64
	for _, k := range litmatch.FeatureKeys {
		if w[k] < 0 {
			w[k] = 0
		}
		sum += w[k]
	}
	if sum == 0 {
		return normalize(litmatch.DefaultWeights.Clone())
	}
	out := make(litmatch.WeightVector, len(litmatch.FeatureKeys))
	for _, k := range litmatch.FeatureKeys {
		out[k] = w[k] / sum
	}
	return out
}

// loadSnapshot reads and validates the weight snapshot file. An empty
// path, a missing file, malformed JSON, or an all-zero vector are all
// load failures.
func loadSnapshot(path string) (litmatch.WeightVector, error) {
	if path == "" {
		return nil, os.ErrNotExist
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var data litmatch.WeightVector
	if err := xjson.Unmarshal(raw, &data); err != nil {
		return nil, err
	}
	var anyPositive bool
	for _, v := range data {
		if v > 0 {
			anyPositive = true
			break
		}
	}
	if !anyPositive {
		return nil, errAllZeroSnapshot
	}
	return data, nil
}

var errAllZeroSnapshot = &snapshotError{"weight snapshot is all-zero or empty"}

type snapshotError struct{ msg string }

func (e *snapshotError) Error() string { return e.msg }
