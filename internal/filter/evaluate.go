package filter

// StyleToken names the paint style a visible feature is drawn with.
type StyleToken string

// Style tokens besides the per-category ones (StyleToken(level)).
const (
	StyleHidden  StyleToken = "hidden"
	StyleDefault StyleToken = "default"
)

// Visibility is the outcome of evaluating one feature.
type Visibility struct {
	Visible bool
	Style   StyleToken
}

// Evaluate decides whether a feature is shown under the given filters. A feature is
// visible only when every active dimension matches. It is pure and does bounded work,
// so it can run once per feature per render pass.
func Evaluate(f TileFeature, s State) Visibility {
	if !matchOperator(f, s) || !matchProtection(f, s) || !matchSource(f, s) {
		return Visibility{Visible: false, Style: StyleHidden}
	}
	if level, ok := ClassifyProtection(f.ProtectClass); ok {
		return Visibility{Visible: true, Style: StyleToken(level)}
	}
	return Visibility{Visible: true, Style: StyleDefault}
}

func matchOperator(f TileFeature, s State) bool {
	if s.OperatorID == nil {
		return true
	}
	for _, id := range f.OperatorIDs {
		if id == *s.OperatorID {
			return true
		}
	}
	return false
}

func matchProtection(f TileFeature, s State) bool {
	if s.ProtectionLevel == "" {
		return true
	}
	level, ok := ClassifyProtection(f.ProtectClass)
	return ok && level == s.ProtectionLevel
}

func matchSource(f TileFeature, s State) bool {
	if s.Source == "" {
		return true
	}
	return f.Source == string(s.Source)
}
