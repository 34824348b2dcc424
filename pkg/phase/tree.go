// Package phase builds the construction-phase visibility index: for every
// phase, which elements are created, demolished, active and pre-existing.
package phase

import (
	"fmt"
	"slices"
)

// ID identifies a construction phase. Integer phase ids are carried in their
// decimal form.
type ID string

// ElementMeta carries an element's phase tags. An empty Created means the
// element always existed; an empty Demolished means it is never demolished.
type ElementMeta struct {
	ID         string `mapstructure:"id" yaml:"id"`
	Created    ID     `mapstructure:"created" yaml:"created"`
	Demolished ID     `mapstructure:"demolished" yaml:"demolished"`
}

// HasTags reports whether the element references any phase.
func (m ElementMeta) HasTags() bool {
	return m.Created != "" || m.Demolished != ""
}

// Element is an element's derived index entry.
type Element struct {
	Meta ElementMeta

	// ActivePhases is the contiguous run of phases the element is active in,
	// from its creation phase up to but excluding its demolition phase.
	ActivePhases []ID

	// Excluded is set when the element's tags could not be placed in the
	// ordering; it then appears in no per-phase set.
	Excluded bool
}

// Sets are the four per-phase element sets.
type Sets struct {
	Created    Set
	Demolished Set
	Active     Set
	Existing   Set // active but not created in this phase
}

// AnomalyKind classifies a recoverable problem with an element's metadata.
type AnomalyKind int

const (
	AnomalyUnknownPhase     AnomalyKind = iota // tag references a phase outside the ordering
	AnomalyInvertedSpan                        // demolished before it was created
	AnomalyDuplicateElement                    // id seen earlier in the input
	AnomalyMissingElementID                    // element without an id
)

// String returns a short name for the anomaly kind.
func (k AnomalyKind) String() string {
	switch k {
	case AnomalyUnknownPhase:
		return "unknown_phase"
	case AnomalyInvertedSpan:
		return "inverted_span"
	case AnomalyDuplicateElement:
		return "duplicate_element"
	case AnomalyMissingElementID:
		return "missing_element_id"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// Anomaly is a warning about one input element. The build never aborts on it.
type Anomaly struct {
	Kind      AnomalyKind
	ElementID string
	Detail    string
}

func (a Anomaly) String() string {
	return fmt.Sprintf("%s for %q: %s", a.Kind, a.ElementID, a.Detail)
}

// Tree is the precomputed phase index. It is never modified after Build
// returns and may be shared between goroutines; a metadata change means
// building a new Tree.
type Tree struct {
	order     []ID
	pos       map[ID]int
	sets      []Sets
	elements  map[string]Element
	all       Set
	anomalies []Anomaly
}

// Phases returns the phase ordering.
func (t *Tree) Phases() []ID {
	return append([]ID(nil), t.order...)
}

// Len returns the number of phases.
func (t *Tree) Len() int {
	return len(t.order)
}

// Index returns the position of p in the ordering.
func (t *Tree) Index(p ID) (int, bool) {
	i, ok := t.pos[p]
	return i, ok
}

// Sets returns the four sets for phase p.
func (t *Tree) Sets(p ID) (Sets, bool) {
	i, ok := t.pos[p]
	if !ok {
		return Sets{}, false
	}
	return t.sets[i], true
}

// Created returns the elements created in phase p.
func (t *Tree) Created(p ID) Set {
	s, _ := t.Sets(p)
	return s.Created
}

// Demolished returns the elements demolished in phase p.
func (t *Tree) Demolished(p ID) Set {
	s, _ := t.Sets(p)
	return s.Demolished
}

// Active returns the elements standing as of phase p.
func (t *Tree) Active(p ID) Set {
	s, _ := t.Sets(p)
	return s.Active
}

// Existing returns the elements standing as of phase p that were not
// created in it.
func (t *Tree) Existing(p ID) Set {
	s, _ := t.Sets(p)
	return s.Existing
}

// IsActive reports whether element id stands as of phase p.
func (t *Tree) IsActive(id string, p ID) bool {
	return t.Active(p).Has(id)
}

// Element returns the derived entry for an element id. The returned
// ActivePhases is the caller's own copy.
func (t *Tree) Element(id string) (Element, bool) {
	e, ok := t.elements[id]
	e.ActivePhases = slices.Clone(e.ActivePhases)
	return e, ok
}

// All returns every known element id, including excluded ones.
func (t *Tree) All() Set {
	return t.all
}

// Anomalies returns the warnings raised while building.
func (t *Tree) Anomalies() []Anomaly {
	return append([]Anomaly(nil), t.anomalies...)
}
