package resolver

import "fmt"

// Strategy selects how a loaded module's entries are attached to the chain.
type Strategy int

const (
	// Isolated creates a new leaf node delegating to the host chain. Names
	// defined by two isolated modules are independent identities, never
	// collisions. Only isolated modules can be unloaded.
	Isolated Strategy = iota

	// Merged splices the module's entries directly into an existing node's
	// table. Merged modules cannot be unloaded.
	Merged

	// MultiSegment appends the module's entries to an existing node as an
	// immutable segment, cheaper than Merged when many modules accumulate.
	MultiSegment

	// Delegating inserts a new node between the target and its parent and
	// makes it the chain's entry point.
	Delegating
)

func (s Strategy) String() string {
	switch s {
	case Isolated:
		return "isolated"
	case Merged:
		return "merged"
	case MultiSegment:
		return "multisegment"
	case Delegating:
		return "delegating"
	default:
		return fmt.Sprintf("strategy(%d)", int(s))
	}
}

// ParseStrategy maps a config or CLI string to a Strategy.
func ParseStrategy(s string) (Strategy, error) {
	switch s {
	case "isolated":
		return Isolated, nil
	case "merged":
		return Merged, nil
	case "multisegment":
		return MultiSegment, nil
	case "delegating":
		return Delegating, nil
	default:
		return 0, fmt.Errorf("unknown load strategy %q", s)
	}
}
