package relay

import "sync"

// Registry is the process-wide set of live pairs. The acceptor adds a
// pair once its upstream leg is established; the pair removes itself on
// reaching Closed.
type Registry struct {
	mu    sync.Mutex
	pairs map[string]*Pair
}

func NewRegistry() *Registry {
	return &Registry{pairs: make(map[string]*Pair)}
}

func (r *Registry) add(p *Pair) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pairs[p.ID] = p
}

func (r *Registry) remove(p *Pair) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.pairs, p.ID)
}

// Len reports the number of live pairs.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pairs)
}

// TerminateAll force-terminates every live pair. Called on process
// shutdown so no pair is left with one live leg.
func (r *Registry) TerminateAll() {
	r.mu.Lock()
	pairs := make([]*Pair, 0, len(r.pairs))
	for _, p := range r.pairs {
		pairs = append(pairs, p)
	}
	r.mu.Unlock()

	for _, p := range pairs {
		p.Terminate()
	}
	for _, p := range pairs {
		<-p.Done()
	}
}
