package domain

// TerminalPolicy decides what happens when every source in a fallback
// chain came back empty or erroring.
type TerminalPolicy string

const (
	// PolicyFail aborts the unit with FallbackExhaustedError.
	PolicyFail TerminalPolicy = "fail"

	// PolicySkip marks the entity unprocessable and lets siblings continue.
	PolicySkip TerminalPolicy = "skip"

	// PolicyPlaceholder synthesizes a minimal unusable-tier row so
	// downstream joins do not silently drop the entity.
	PolicyPlaceholder TerminalPolicy = "placeholder"

	// PolicyContinueWithout proceeds with empty input and an explicit
	// quality-score penalty.
	PolicyContinueWithout TerminalPolicy = "continue_without"
)

// ImpactTag maps the policy onto the downstream-impact tag attached to
// emitted missing-source events.
func (p TerminalPolicy) ImpactTag() string {
	switch p {
	case PolicyFail:
		return "processing_blocked"
	case PolicySkip:
		return "entity_skipped"
	case PolicyPlaceholder:
		return "predictions_blocked"
	case PolicyContinueWithout:
		return "confidence_reduced"
	default:
		return "unknown_impact"
	}
}

// Valid reports whether the policy is one of the known values.
func (p TerminalPolicy) Valid() bool {
	switch p {
	case PolicyFail, PolicySkip, PolicyPlaceholder, PolicyContinueWithout:
		return true
	}
	return false
}

// FallbackSource is one physical source inside a chain, with its static
// quality grade.
type FallbackSource struct {
	Name  string  `yaml:"name"`
	Tier  Tier    `yaml:"tier"`
	Score float64 `yaml:"score"`

	// Derived marks synthetic/reconstructed sources; using one adds the
	// "reconstructed" issue tag.
	Derived bool `yaml:"derived"`
}

// FallbackChain is the ordered source list for one logical dataset plus
// the terminal policy. Static configuration, read-only at runtime.
type FallbackChain struct {
	Dataset     string           `yaml:"dataset"`
	Sources     []FallbackSource `yaml:"sources"`
	OnExhausted TerminalPolicy   `yaml:"on_exhausted"`

	// Penalty applied to the quality score under PolicyContinueWithout.
	Penalty float64 `yaml:"penalty"`
}

// Primary returns the first (preferred) source of the chain.
func (c FallbackChain) Primary() (FallbackSource, bool) {
	if len(c.Sources) == 0 {
		return FallbackSource{}, false
	}
	return c.Sources[0], true
}
