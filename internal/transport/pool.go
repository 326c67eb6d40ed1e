package transport

import (
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/nao1215/catalogcrawler/internal/model"
)

// ProxyPool is the process-wide registry of proxy endpoints.
//
// The table itself is read-only after load. The pool only tracks which
// endpoints are held by live sessions so that a session replacing a
// burned proxy never picks one another session is using.
type ProxyPool struct {
	mu      sync.Mutex
	order   []model.ProxyEndpoint
	byID    map[string]model.ProxyEndpoint
	inUse   map[string]bool
	rng     *rand.Rand
	onSwap  func(from, to model.ProxyEndpoint)
	swapped int
}

// PoolOption configures a ProxyPool.
type PoolOption func(*ProxyPool)

// WithPoolRand sets the random source used to pick replacement proxies.
func WithPoolRand(rng *rand.Rand) PoolOption {
	return func(p *ProxyPool) {
		p.rng = rng
	}
}

// WithSwapHook registers a callback invoked after every successful exchange.
func WithSwapHook(fn func(from, to model.ProxyEndpoint)) PoolOption {
	return func(p *ProxyPool) {
		p.onSwap = fn
	}
}

// NewProxyPool creates a pool over the given endpoints. Nothing is in use yet.
func NewProxyPool(proxies []model.ProxyEndpoint, opts ...PoolOption) *ProxyPool {
	p := &ProxyPool{
		order: make([]model.ProxyEndpoint, len(proxies)),
		byID:  make(map[string]model.ProxyEndpoint, len(proxies)),
		inUse: make(map[string]bool, len(proxies)),
	}
	copy(p.order, proxies)
	for _, e := range proxies {
		p.byID[e.ID] = e
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Size returns the number of endpoints in the pool.
func (p *ProxyPool) Size() int {
	return len(p.order)
}

// Endpoints returns the endpoints in table order.
func (p *ProxyPool) Endpoints() []model.ProxyEndpoint {
	out := make([]model.ProxyEndpoint, len(p.order))
	copy(out, p.order)
	return out
}

// Get returns the endpoint with the given id.
func (p *ProxyPool) Get(id string) (model.ProxyEndpoint, bool) {
	e, ok := p.byID[id]
	return e, ok
}

// Acquire marks the endpoint as held by a live session.
func (p *ProxyPool) Acquire(id string) (model.ProxyEndpoint, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	e, ok := p.byID[id]
	if !ok {
		return model.ProxyEndpoint{}, fmt.Errorf("%s: %w", id, ErrUnknownProxy)
	}
	if p.inUse[id] {
		return model.ProxyEndpoint{}, fmt.Errorf("%s: %w", id, ErrProxyInUse)
	}
	p.inUse[id] = true
	return e, nil
}

// Release returns the endpoint to the pool. Releasing a free proxy is a no-op.
func (p *ProxyPool) Release(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.inUse, id)
}

// InUse reports whether the endpoint is held by a live session.
func (p *ProxyPool) InUse(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.inUse[id]
}

// Exchange releases current and hands out a random endpoint that is
// neither current nor held by another session. When no such endpoint
// exists the caller keeps current and ErrNoSpareProxy is returned.
func (p *ProxyPool) Exchange(current model.ProxyEndpoint) (model.ProxyEndpoint, error) {
	p.mu.Lock()

	candidates := make([]model.ProxyEndpoint, 0, len(p.order))
	for _, e := range p.order {
		if e.ID == current.ID || p.inUse[e.ID] {
			continue
		}
		candidates = append(candidates, e)
	}
	if len(candidates) == 0 {
		p.mu.Unlock()
		return current, ErrNoSpareProxy
	}

	var next model.ProxyEndpoint
	if p.rng != nil {
		next = candidates[p.rng.IntN(len(candidates))]
	} else {
		next = candidates[rand.IntN(len(candidates))]
	}
	delete(p.inUse, current.ID)
	p.inUse[next.ID] = true
	p.swapped++
	hook := p.onSwap
	p.mu.Unlock()

	if hook != nil {
		hook(current, next)
	}
	return next, nil
}

// Exchanges returns how many exchanges the pool has performed.
func (p *ProxyPool) Exchanges() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.swapped
}
