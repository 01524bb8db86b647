package grid

import (
	"fmt"
	"sort"
	"sync"

	"github.com/Lachlan00/emsarray/pkg/dataset"
)

// Specificity ranks how strongly a convention matches a dataset. Higher
// values win when several conventions match.
type Specificity int

const (
	Low    Specificity = 10
	Medium Specificity = 20
	High   Specificity = 30
)

// Detector recognises datasets of one convention and constructs the
// convention for them.
type Detector interface {
	Name() string
	// CheckDataset reports whether ds follows the convention and how
	// specific the match is. It never fails; a dataset that cannot be
	// inspected simply does not match.
	CheckDataset(ds *dataset.Dataset) (Specificity, bool)
	Open(ds *dataset.Dataset, opts ...Option) (Convention, error)
}

// Match is one detector that recognised a dataset.
type Match struct {
	Detector    Detector
	Specificity Specificity
}

// Registry holds the detectors consulted when guessing the convention of
// a dataset. It is safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	detectors []Detector
}

// NewRegistry returns a registry holding detectors in the given order.
func NewRegistry(detectors ...Detector) *Registry {
	r := &Registry{}
	for _, d := range detectors {
		r.Register(d)
	}
	return r
}

// Register adds d. A detector with the same name replaces the earlier one
// but keeps its position.
func (r *Registry) Register(d Detector) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, existing := range r.detectors {
		if existing.Name() == d.Name() {
			r.detectors[i] = d
			return
		}
	}
	r.detectors = append(r.detectors, d)
}

// Detectors returns the registered detectors in registration order.
func (r *Registry) Detectors() []Detector {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Detector(nil), r.detectors...)
}

// Match returns every detector that recognises ds, most specific first.
// Detectors of equal specificity keep their registration order.
func (r *Registry) Match(ds *dataset.Dataset) []Match {
	var matches []Match
	for _, d := range r.Detectors() {
		if s, ok := d.CheckDataset(ds); ok {
			matches = append(matches, Match{Detector: d, Specificity: s})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Specificity > matches[j].Specificity
	})
	return matches
}

// Guess returns the most specific detector for ds, or ErrNoConvention.
func (r *Registry) Guess(ds *dataset.Dataset) (Detector, error) {
	matches := r.Match(ds)
	if len(matches) == 0 {
		return nil, ErrNoConvention
	}
	return matches[0].Detector, nil
}

// Open returns the convention bound to ds. When ds has no binding yet, the
// most specific matching convention is constructed and bound.
func (r *Registry) Open(ds *dataset.Dataset, opts ...Option) (Convention, error) {
	if c, ok := Bound(ds); ok {
		return c, nil
	}
	d, err := r.Guess(ds)
	if err != nil {
		return nil, err
	}
	c, err := d.Open(ds, opts...)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", d.Name(), err)
	}
	if err := c.Bind(); err != nil {
		return nil, err
	}
	return c, nil
}
