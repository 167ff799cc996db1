package overlay

const (
	// Gap between the anchor span and the menu.
	Gap = 8.0
	// MinSpaceAbove is the least room above the anchor that allows flipping.
	MinSpaceAbove = 120.0
)

// Position is where the menu is drawn. Left is the anchor's horizontal centre;
// Transform centres the menu on it without measuring the menu.
type Position struct {
	Top       float64 `json:"top"`
	Left      float64 `json:"left"`
	Above     bool    `json:"above"`
	Transform string  `json:"transform"`
}

// Place positions the menu below anchor, or above it when there is less room
// below than above and at least MinSpaceAbove above.
func Place(anchor Rect, viewportHeight float64) Position {
	below := viewportHeight - anchor.Bottom()
	above := anchor.Top
	if below < above && above >= MinSpaceAbove {
		return Position{
			Top:       anchor.Top - Gap,
			Left:      anchor.CenterX(),
			Above:     true,
			Transform: "translate(-50%, -100%)",
		}
	}
	return Position{
		Top:       anchor.Bottom() + Gap,
		Left:      anchor.CenterX(),
		Transform: "translateX(-50%)",
	}
}
