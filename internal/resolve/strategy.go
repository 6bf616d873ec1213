package resolve

import (
	"math"

	"github.com/sells-group/account-linker/internal/model"
)

// Rules holds the tunable thresholds and fixed confidences of the match policy.
type Rules struct {
	FuzzyThreshold     float64 // minimum similarity for a fuzzy match
	CorroborationFloor float64 // minimum similarity for parent/contact-only matches
	Boost              float64 // added to fuzzy confidence by a corroborating signal
	ParentConfidence   float64
	ContactConfidence  float64
}

// DefaultRules returns the production match policy.
func DefaultRules() Rules {
	return Rules{
		FuzzyThreshold:     0.85,
		CorroborationFloor: 0.70,
		Boost:              10,
		ParentConfidence:   90,
		ContactConfidence:  85,
	}
}

// Evidence is everything known about one account pair when it is classified.
// When Manual is set the remaining fields are left unset: a manual linkage
// decides the pair on its own.
type Evidence struct {
	Manual         bool
	Similarity     float64
	ParentMatch    bool
	ContactOverlap bool
}

// Classification is the outcome of a matching strategy.
type Classification struct {
	Method     model.MatchMethod
	Confidence float64
}

// Strategy inspects the evidence for a pair and either classifies it as a
// match or passes (ok == false) to the next strategy in the chain.
type Strategy func(ev Evidence, rules Rules) (c Classification, ok bool)

// DefaultChain is the match precedence: manual, exact, fuzzy (with boosts),
// parent-only, contact-only. A pair no strategy claims is not a match.
var DefaultChain = []Strategy{
	ManualStrategy,
	ExactStrategy,
	FuzzyStrategy,
	ParentStrategy,
	ContactStrategy,
}

// Classify walks the chain and returns the first hit, with its confidence
// clamped to [0, 100] and rounded to two decimals.
func Classify(chain []Strategy, ev Evidence, rules Rules) (Classification, bool) {
	for _, strategy := range chain {
		if c, ok := strategy(ev, rules); ok {
			c.Confidence = ClampConfidence(c.Confidence)
			return c, true
		}
	}
	return Classification{}, false
}

// ManualStrategy accepts human-confirmed linkages outright.
func ManualStrategy(ev Evidence, _ Rules) (Classification, bool) {
	if !ev.Manual {
		return Classification{}, false
	}
	return Classification{Method: model.MethodManual, Confidence: 100}, true
}

// ExactStrategy accepts names that normalize to the same string.
func ExactStrategy(ev Evidence, _ Rules) (Classification, bool) {
	if ev.Similarity != 1.0 {
		return Classification{}, false
	}
	return Classification{Method: model.MethodExact, Confidence: ev.Similarity * 100}, true
}

// FuzzyStrategy accepts names above the fuzzy threshold. A shared parent
// upgrades the match to fuzzy_parent; otherwise shared contacts upgrade it to
// fuzzy_contact. Only one boost is ever applied.
func FuzzyStrategy(ev Evidence, rules Rules) (Classification, bool) {
	if ev.Similarity < rules.FuzzyThreshold {
		return Classification{}, false
	}
	c := Classification{Method: model.MethodFuzzy, Confidence: ev.Similarity * 100}
	switch {
	case ev.ParentMatch:
		c.Method = model.MethodFuzzyParent
		c.Confidence = math.Min(100, c.Confidence+rules.Boost)
	case ev.ContactOverlap:
		c.Method = model.MethodFuzzyContact
		c.Confidence = math.Min(100, c.Confidence+rules.Boost)
	}
	return c, true
}

// ParentStrategy accepts moderately similar names that share a parent account.
func ParentStrategy(ev Evidence, rules Rules) (Classification, bool) {
	if !ev.ParentMatch || ev.Similarity < rules.CorroborationFloor {
		return Classification{}, false
	}
	return Classification{Method: model.MethodParent, Confidence: rules.ParentConfidence}, true
}

// ContactStrategy accepts moderately similar names that share a contact.
func ContactStrategy(ev Evidence, rules Rules) (Classification, bool) {
	if !ev.ContactOverlap || ev.Similarity < rules.CorroborationFloor {
		return Classification{}, false
	}
	return Classification{Method: model.MethodContact, Confidence: rules.ContactConfidence}, true
}

// ClampConfidence bounds a confidence to [0, 100] and rounds it to two decimals.
func ClampConfidence(c float64) float64 {
	if math.IsNaN(c) || c < 0 {
		return 0
	}
	if c > 100 {
		return 100
	}
	return math.Round(c*100) / 100
}
