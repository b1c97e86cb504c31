// Package orders defines the order data model and the raw-text parser
// that turns sale-notification text blocks into structured orders.
package orders

import "fmt"

// MatchStatus tracks whether a line item has a confirmed asset.
type MatchStatus int

const (
	// Unresolved means no asset has been confirmed for the item yet.
	Unresolved MatchStatus = iota
	// Resolved means the item has a confirmed asset on disk.
	Resolved
)

func (s MatchStatus) String() string {
	switch s {
	case Unresolved:
		return "unresolved"
	case Resolved:
		return "resolved"
	default:
		return fmt.Sprintf("MatchStatus(%d)", int(s))
	}
}

// LineItem is one character+personalization pairing within an order.
// CharacterKey is free text as parsed (theme+variant); matching against
// the catalog is case-insensitive but the key is preserved verbatim.
type LineItem struct {
	CharacterKey    string
	Personalization string

	status    MatchStatus
	assetPath string
}

// Status returns the item's current match status.
func (li *LineItem) Status() MatchStatus { return li.status }

// AssetPath returns the confirmed asset path, empty while Unresolved.
func (li *LineItem) AssetPath() string { return li.assetPath }

// Resolve transitions the item to Resolved. The transition is one-way:
// resolving an already-resolved item to a different path is rejected so
// a confirmed asset can never be silently swapped or reverted.
func (li *LineItem) Resolve(assetPath string) error {
	if assetPath == "" {
		return fmt.Errorf("resolve %q: empty asset path", li.CharacterKey)
	}
	if li.status == Resolved && li.assetPath != assetPath {
		return fmt.Errorf("resolve %q: already resolved to %s", li.CharacterKey, li.assetPath)
	}
	li.status = Resolved
	li.assetPath = assetPath
	return nil
}

// Order is one customer purchase. It is immutable once parsed except
// for its items' match status.
type Order struct {
	ID           string
	CustomerName string
	City         string
	State        string
	Items        []*LineItem
}

// AllResolved reports whether every line item has a confirmed asset.
func (o *Order) AllResolved() bool {
	for _, li := range o.Items {
		if li.status != Resolved {
			return false
		}
	}
	return true
}

// UnresolvedItems returns the items still awaiting an asset.
func (o *Order) UnresolvedItems() []*LineItem {
	var out []*LineItem
	for _, li := range o.Items {
		if li.status != Resolved {
			out = append(out, li)
		}
	}
	return out
}

// MalformedOrderError reports one unparseable block. The parser
// recovers locally; the rest of the batch is unaffected.
type MalformedOrderError struct {
	Block  int    // 0-based index of the block within the raw text
	Reason string
}

func (e *MalformedOrderError) Error() string {
	return fmt.Sprintf("malformed order block %d: %s", e.Block, e.Reason)
}
