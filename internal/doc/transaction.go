package doc

// Meta keys shared between transaction producers and listeners.
const (
	MetaAddToHistory = "addToHistory"
)

// Transaction is an ordered batch of steps applied to a starting document.
// Steps are applied as they are added, so later steps see positions produced
// by earlier ones; Mapping translates pre-transaction positions.
type Transaction struct {
	before  *Document
	doc     *Document
	steps   []Step
	mapping Mapping
	meta    map[string]any
}

func NewTransaction(d *Document) *Transaction {
	return &Transaction{before: d, doc: d, meta: make(map[string]any)}
}

func (tr *Transaction) Before() *Document { return tr.before }
func (tr *Transaction) Doc() *Document { return tr.doc }
func (tr *Transaction) Steps() []Step { return tr.steps }
func (tr *Transaction) Mapping() *Mapping { return &tr.mapping }
func (tr *Transaction) DocChanged() bool { return len(tr.steps) > 0 }

// Step applies step to the current document. A failing step leaves the
// transaction unchanged.
func (tr *Transaction) Step(step Step) error {
	next, err := step.Apply(tr.doc)
	if err != nil {
		return err
	}
	tr.doc = next
	tr.steps = append(tr.steps, step)
	tr.mapping.Append(step.Map())
	return nil
}

func (tr *Transaction) Insert(pos int, content ...*Node) error {
	return tr.Step(&ReplaceStep{From: pos, To: pos, Content: content})
}

func (tr *Transaction) Delete(from, to int) error {
	if from == to {
		return nil
	}
	return tr.Step(&ReplaceStep{From: from, To: to})
}

func (tr *Transaction) Replace(from, to int, content ...*Node) error {
	return tr.Step(&ReplaceStep{From: from, To: to, Content: content})
}

func (tr *Transaction) AddMark(from, to int, mark Mark) error {
	if from == to {
		return nil
	}
	return tr.Step(&AddMarkStep{From: from, To: to, Mark: mark})
}

func (tr *Transaction) RemoveMark(from, to int, mark Mark) error {
	if from == to {
		return nil
	}
	return tr.Step(&RemoveMarkStep{From: from, To: to, Mark: mark})
}

func (tr *Transaction) SetMeta(key string, value any) *Transaction {
	tr.meta[key] = value
	return tr
}

func (tr *Transaction) Meta(key string) (any, bool) {
	value, ok := tr.meta[key]
	return value, ok
}

// AddToHistory reports whether the transaction is an undoable step. It is
// true unless the addToHistory meta is set to false.
func (tr *Transaction) AddToHistory() bool {
	value, ok := tr.meta[MetaAddToHistory]
	if !ok {
		return true
	}
	flag, isBool := value.(bool)
	return !isBool || flag
}
