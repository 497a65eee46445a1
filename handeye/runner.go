package handeye

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"
)

// Runner executes calibration jobs one at a time. It serves repeated jobs on
// unchanged poses from the result cache, records every result in the store,
// persists it and publishes it when a publisher is attached.
type Runner struct {
	config    *Config
	cachePath string
	store     *ResultStore
	publisher *Publisher

	mu    sync.Mutex
	cache *CalibrationCache
}

// NewRunner creates a Runner. cache may be nil; an empty cachePath disables
// persistence.
func NewRunner(config *Config, cache *CalibrationCache, cachePath string, store *ResultStore, pub *Publisher) *Runner {
	if store == nil {
		store = NewResultStore()
	}
	return &Runner{
		config:    config,
		cache:     cache,
		cachePath: cachePath,
		store:     store,
		publisher: pub,
	}
}

// SetPublisher attaches a publisher for subsequent runs.
func (r *Runner) SetPublisher(pub *Publisher) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.publisher = pub
}

// Config returns the configuration jobs run with.
func (r *Runner) Config() *Config {
	return r.config
}

// Store returns the store results are recorded in.
func (r *Runner) Store() *ResultStore {
	return r.store
}

// Run calibrates with the named methods (all when empty).
func (r *Runner) Run(ctx context.Context, a, b PoseSequence, methods []string) (*BatchResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := checkSequences(a, b); err != nil {
		r.store.SetError(err)
		return nil, fmt.Errorf("calibration job: %w", err)
	}
	if len(methods) == 0 {
		methods = r.config.MethodList()
	} else {
		methods = ResolveMethodAliases(methods)
	}

	sel := r.config.SelectionOptions()
	if res := r.fromCache(a, b, sel, methods); res != nil {
		log.Printf("[CACHE] poses unchanged (%d), serving cached results", len(a))
		r.store.Update(a, b, res)
		return res, nil
	}

	r.store.SetRunning(true)
	defer r.store.SetRunning(false)

	log.Printf("[SOLVE] running %d methods on %d poses", len(methods), len(a))
	res := RunBatch(ctx, methods, a, b, WithSelection(sel))
	for _, o := range res.Outcomes {
		if o.OK() {
			log.Printf("[SOLVE] %s: translation mean=%.4f %s, rotation mean=%.4f deg",
				o.Method, o.Result.Translation.Mean, r.config.TranslationUnit(), o.Result.Rotation.Mean)
		}
	}
	log.Printf("[SOLVE] batch finished in %s", res.Duration.Round(time.Millisecond))
	r.store.Update(a, b, res)

	r.cache = NewCalibrationCache(a, b, sel, res)
	if r.cachePath != "" {
		if err := SaveCalibration(r.cachePath, r.cache); err != nil {
			log.Printf("[CACHE] failed to save %s: %v", r.cachePath, err)
		}
	}

	if r.publisher != nil {
		if err := r.publisher.PublishBatch(res); err != nil {
			log.Printf("[MQTT] results not published: %v", err)
		}
	}
	return res, nil
}

// fromCache returns the cached batch when it was computed from the same poses
// under the same selection options and holds an entry for every requested
// method.
func (r *Runner) fromCache(a, b PoseSequence, sel SelectionOptions, methods []string) *BatchResult {
	if r.cache.NeedsRecalibration(a, b, sel, 0) {
		return nil
	}
	res := &BatchResult{PoseCount: len(a), Started: time.Unix(r.cache.LastUpdated, 0)}
	cached := r.cache.BatchResult()
	for _, m := range methods {
		o, ok := cached.Get(m)
		if !ok {
			return nil
		}
		res.Outcomes = append(res.Outcomes, o)
	}
	return res
}

// HandleJob is the JobHandler registered with the MQTT client.
func (r *Runner) HandleJob(job *CalibrationJob, err error) {
	if err != nil {
		r.store.SetError(err)
		return
	}
	if _, err := r.Run(context.Background(), job.A, job.B, job.Methods); err != nil {
		log.Printf("[SOLVE] job rejected: %v", err)
	}
}
