package doc

// Step is one position-aware document operation.
type Step interface {
	Apply(d *Document) (*Document, error)
	Map() StepMap
}

// ReplaceStep replaces inline content [From, To) of a single textblock.
type ReplaceStep struct {
	From    int
	To      int
	Content []*Node
	// size of Content, filled in when applied
	size int
}

func (s *ReplaceStep) Apply(d *Document) (*Document, error) {
	next, err := d.replaceInline(s.From, s.To, s.Content)
	if err != nil {
		return nil, err
	}
	s.size = 0
	for _, n := range s.Content {
		s.size += d.schema.NodeSize(n)
	}
	return next, nil
}

func (s *ReplaceStep) Map() StepMap {
	return StepMap{Start: s.From, OldSize: s.To - s.From, NewSize: s.size}
}

type AddMarkStep struct {
	From int
	To   int
	Mark Mark
}

func (s *AddMarkStep) Apply(d *Document) (*Document, error) {
	return d.updateInlineMarks(s.From, s.To, func(set []Mark) []Mark {
		return d.schema.AddToSet(set, s.Mark)
	})
}

func (s *AddMarkStep) Map() StepMap { return StepMap{} }

// RemoveMarkStep drops Mark from [From, To). A Mark without attrs removes
// every mark of that type.
type RemoveMarkStep struct {
	From int
	To   int
	Mark Mark
}

func (s *RemoveMarkStep) Apply(d *Document) (*Document, error) {
	return d.updateInlineMarks(s.From, s.To, func(set []Mark) []Mark {
		return removeMark(set, s.Mark)
	})
}

func (s *RemoveMarkStep) Map() StepMap { return StepMap{} }

// StepMap records how one step shifted positions: OldSize positions at Start
// became NewSize positions.
type StepMap struct {
	Start   int
	OldSize int
	NewSize int
}

// Map moves pos across the step. assoc < 0 keeps a position at an insertion
// or deletion boundary on the left side, otherwise it moves right.
func (m StepMap) Map(pos, assoc int) int {
	if m.OldSize == 0 && m.NewSize == 0 {
		return pos
	}
	end := m.Start + m.OldSize
	if pos < m.Start {
		return pos
	}
	if pos > end {
		return pos + m.NewSize - m.OldSize
	}
	side := assoc
	if m.OldSize > 0 {
		switch pos {
		case m.Start:
			side = -1
		case end:
			side = 1
		}
	}
	if side < 0 {
		return m.Start
	}
	return m.Start + m.NewSize
}

// Mapping chains the step maps of a transaction.
type Mapping struct {
	maps []StepMap
}

func (m *Mapping) Append(sm StepMap) {
	m.maps = append(m.maps, sm)
}

func (m *Mapping) Map(pos, assoc int) int {
	for _, sm := range m.maps {
		pos = sm.Map(pos, assoc)
	}
	return pos
}

// MapFrom maps pos through the step maps starting at index from.
func (m *Mapping) MapFrom(from, pos, assoc int) int {
	for _, sm := range m.maps[from:] {
		pos = sm.Map(pos, assoc)
	}
	return pos
}

func (m *Mapping) Len() int { return len(m.maps) }
