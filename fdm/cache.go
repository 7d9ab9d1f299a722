package fdm

import "sync"

// Step is the outcome of a step-size search.
type Step struct {
	// Step is the step size, in units of the argument.
	Step float64
	// Accuracy is an estimate of the absolute error of the derivative computed with Step.
	// It is NaN when the step had to be clipped and the error bound no longer holds.
	Accuracy float64
}

// StepCache is the mutable part of a [Method]: the last step estimated by [Evaluate]
// and the point it was estimated at. It is safe for concurrent use.
type StepCache struct {
	mu    sync.Mutex
	x     float64
	step  Step
	bound Step
	valid bool
}

// Load returns the cached point and step, and false if the cache is empty.
func (c *StepCache) Load() (x float64, step Step, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.x, c.step, c.valid
}

// Store records the step estimated at x.
func (c *StepCache) Store(x float64, step Step) {
	c.store(x, step, Step{})
}

// store records the step estimated at x and the step of the bound estimator it was derived from.
func (c *StepCache) store(x float64, step, bound Step) {
	c.mu.Lock()
	c.x, c.step, c.bound, c.valid = x, step, bound, true
	c.mu.Unlock()
}

func (c *StepCache) load() (x float64, step, bound Step, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.x, c.step, c.bound, c.valid
}

// Reset empties the cache.
func (c *StepCache) Reset() {
	c.mu.Lock()
	c.x, c.step, c.bound, c.valid = 0, Step{}, Step{}, false
	c.mu.Unlock()
}
