// Package match resolves line-item character keys to catalog assets:
// exact catalog lookup first, then one batched call to an external
// AI matching service for whatever is left.
package match

import "fmt"

// Kind is the outcome class of one resolution attempt.
type Kind int

const (
	// NoMatch means no asset could be confirmed. A NoMatch is never
	// dropped; it always survives as an Unresolved line item for
	// manual resolution.
	NoMatch Kind = iota
	// ExactHit means the catalog resolved the key directly.
	ExactHit
	// FuzzyHit means the external service proposed the asset.
	FuzzyHit
)

func (k Kind) String() string {
	switch k {
	case NoMatch:
		return "no-match"
	case ExactHit:
		return "exact"
	case FuzzyHit:
		return "fuzzy"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Result is the typed outcome of resolving one character key. The
// service's duck-typed "N/A" sentinels are folded into this closed
// set at the boundary and never compared as raw strings downstream.
type Result struct {
	Kind       Kind
	AssetPath  string  // set for ExactHit and FuzzyHit
	Confidence float64 // service-supplied hint for FuzzyHit, 0 when absent
}

// ServiceError is a batch-level matching failure (transport, timeout,
// unparseable response). The whole submitted batch degrades to
// Unresolved; nothing is left in a partial state.
type ServiceError struct {
	Err error
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("match service: %v", e.Err)
}

func (e *ServiceError) Unwrap() error { return e.Err }

// Inconsistency records the service answering with a key that does
// not exist in the catalog. The item is coerced to Unresolved rather
// than trusting the key blindly.
type Inconsistency struct {
	Personalization string
	ReturnedKey     string
}

func (i Inconsistency) String() string {
	return fmt.Sprintf("service returned unknown key %q for %q", i.ReturnedKey, i.Personalization)
}
