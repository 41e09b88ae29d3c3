package position

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/octool/octool/internal/document"
	"github.com/octool/octool/internal/domain"
)

// ErrInvalidDepth is returned for operations on a depth that is not active
var ErrInvalidDepth = errors.New("depth not active")

// ErrUnbound is returned when navigating before Bind
var ErrUnbound = errors.New("position not bound to a document")

// Position is the editor's cursor into a configuration document.
// For every active depth d, SecNum(d) < SecLength(d) and SecNum(d) never
// selects a disabled key. It never modifies the document.
type Position struct {
	BuildType        string
	ResourceSections []domain.ResourceSection
	FileName         string

	secLength []int
	secNum    []int
	// selected holds the key under the cursor at each depth so the cursor
	// can be re-anchored after the document is edited
	selected []string
	root     *document.Dict
}

// level is one nesting level: dictionary keys or array indices
type level struct {
	labels []string
	values []any
	keyed  bool
}

func levelOf(v any) (level, bool) {
	switch t := v.(type) {
	case *document.Dict:
		lv := level{keyed: true, labels: t.Keys(), values: make([]any, t.Len())}
		for i := range lv.labels {
			_, lv.values[i] = t.At(i)
		}
		return lv, true
	case []any:
		lv := level{labels: make([]string, len(t)), values: t}
		for i := range t {
			lv.labels[i] = strconv.Itoa(i)
		}
		return lv, true
	default:
		return level{}, false
	}
}

func (lv level) selectable(i int) bool {
	return !lv.keyed || !document.IsMarker(lv.labels[i])
}

// scan returns the first selectable index from i moving by step, or -1
func (lv level) scan(i, step int) int {
	for ; i >= 0 && i < len(lv.labels); i += step {
		if lv.selectable(i) {
			return i
		}
	}
	return -1
}

// Bind points the cursor at the first enabled top-level key of doc
func (p *Position) Bind(doc *document.Document) error {
	if doc == nil || doc.Root == nil {
		return fmt.Errorf("%w: no document", domain.ErrEmptyDocument)
	}

	lv, _ := levelOf(doc.Root)
	idx := lv.scan(0, 1)
	if idx < 0 {
		return fmt.Errorf("%w: %s", domain.ErrEmptyDocument, doc.Path)
	}

	p.root = doc.Root
	p.FileName = doc.Path
	p.secLength = []int{len(lv.labels)}
	p.secNum = []int{idx}
	p.selected = []string{lv.labels[idx]}
	return nil
}

// Bound reports whether the cursor has a document
func (p *Position) Bound() bool {
	return p.root != nil
}

// Depth returns the deepest active depth, or -1 when unbound
func (p *Position) Depth() int {
	return len(p.secNum) - 1
}

// SecLength returns the number of keys at depth d, or -1 if d is inactive
func (p *Position) SecLength(d int) int {
	if !p.active(d) {
		return -1
	}
	return p.secLength[d]
}

// SecNum returns the selected offset at depth d, or -1 if d is inactive
func (p *Position) SecNum(d int) int {
	if !p.active(d) {
		return -1
	}
	return p.secNum[d]
}

// Advance selects the next enabled key at depth d.
// At the last enabled key it does nothing.
func (p *Position) Advance(d int) error {
	return p.move(d, 1)
}

// Retreat selects the previous enabled key at depth d.
// At the first enabled key it does nothing.
func (p *Position) Retreat(d int) error {
	return p.move(d, -1)
}

func (p *Position) move(d, step int) error {
	lv, err := p.levelAt(d)
	if err != nil {
		return err
	}

	idx := lv.scan(p.secNum[d]+step, step)
	if idx < 0 {
		return nil
	}

	p.truncate(d + 1)
	p.secNum[d] = idx
	p.selected[d] = lv.labels[idx]
	return nil
}

// Enter descends into the value selected at depth d. Deeper levels that
// were open are replaced.
func (p *Position) Enter(d int) error {
	lv, err := p.levelAt(d)
	if err != nil {
		return err
	}

	key := lv.labels[p.secNum[d]]
	child, ok := levelOf(lv.values[p.secNum[d]])
	if !ok {
		return fmt.Errorf("%w: %s has no children", domain.ErrNotNavigable, key)
	}
	idx := child.scan(0, 1)
	if idx < 0 {
		return fmt.Errorf("%w: %s has no enabled children", domain.ErrNotNavigable, key)
	}

	p.truncate(d + 1)
	p.secLength = append(p.secLength, len(child.labels))
	p.secNum = append(p.secNum, idx)
	p.selected = append(p.selected, child.labels[idx])
	return nil
}

// Exit closes depth d and everything below it. It does nothing at depth 0.
func (p *Position) Exit(d int) error {
	if d == 0 && p.Bound() {
		return nil
	}
	if !p.active(d) {
		return ErrInvalidDepth
	}
	p.truncate(d)
	return nil
}

// Refresh re-anchors the cursor after the document was edited. Selected
// keys are found again by name; when one is gone or disabled the nearest
// enabled key takes its place, and levels that no longer exist are closed.
// A document left without enabled top-level keys unbinds the cursor.
func (p *Position) Refresh() error {
	if !p.Bound() {
		return ErrUnbound
	}

	var current any = p.root
	for d := 0; d < len(p.secNum); d++ {
		lv, ok := levelOf(current)
		if !ok {
			p.truncate(d)
			break
		}

		idx := -1
		if lv.keyed {
			for i, label := range lv.labels {
				if label == p.selected[d] {
					idx = i
					break
				}
			}
		}
		if idx < 0 || !lv.selectable(idx) {
			idx = nearest(lv, p.secNum[d])
		}
		if idx < 0 {
			if d == 0 {
				p.unbind()
				return fmt.Errorf("%w: %s", domain.ErrEmptyDocument, p.FileName)
			}
			p.truncate(d)
			break
		}

		p.secLength[d] = len(lv.labels)
		p.secNum[d] = idx
		p.selected[d] = lv.labels[idx]
		current = lv.values[idx]
	}
	return nil
}

// nearest finds the enabled index closest to i, preferring later keys
func nearest(lv level, i int) int {
	if len(lv.labels) == 0 {
		return -1
	}
	if i >= len(lv.labels) {
		i = len(lv.labels) - 1
	}
	if i < 0 {
		i = 0
	}
	if idx := lv.scan(i, 1); idx >= 0 {
		return idx
	}
	return lv.scan(i, -1)
}

// Path returns the selected key at every active depth
func (p *Position) Path() []string {
	out := make([]string, len(p.selected))
	copy(out, p.selected)
	return out
}

// CurrentKey returns the selected key at the deepest level
func (p *Position) CurrentKey() string {
	if len(p.selected) == 0 {
		return ""
	}
	return p.selected[len(p.selected)-1]
}

// CurrentValue returns the value under the cursor
func (p *Position) CurrentValue() (any, bool) {
	d := p.Depth()
	if d < 0 {
		return nil, false
	}
	lv, err := p.levelAt(d)
	if err != nil {
		return nil, false
	}
	return lv.values[p.secNum[d]], true
}

// ResourceSection returns the resource section the cursor is inside
func (p *Position) ResourceSection() (domain.ResourceSection, bool) {
	if len(p.selected) < 2 {
		return domain.ResourceSection{}, false
	}
	for _, rs := range p.ResourceSections {
		if rs.Section == p.selected[0] && rs.Sub == p.selected[1] {
			return rs, true
		}
	}
	return domain.ResourceSection{}, false
}

// ResourceLabels returns the labels of the configured resource sections
func (p *Position) ResourceLabels() []string {
	labels := make([]string, len(p.ResourceSections))
	for i, rs := range p.ResourceSections {
		labels[i] = rs.Label()
	}
	return labels
}

func (p *Position) active(d int) bool {
	return d >= 0 && d < len(p.secNum)
}

// levelAt walks from the root along the selected offsets down to depth d
func (p *Position) levelAt(d int) (level, error) {
	if !p.Bound() {
		return level{}, ErrUnbound
	}
	if !p.active(d) {
		return level{}, fmt.Errorf("%w: %d", ErrInvalidDepth, d)
	}

	lv, _ := levelOf(p.root)
	for i := 0; i < d; i++ {
		if p.secNum[i] >= len(lv.values) {
			return level{}, fmt.Errorf("%w: document changed, call Refresh", ErrInvalidDepth)
		}
		next, ok := levelOf(lv.values[p.secNum[i]])
		if !ok {
			return level{}, fmt.Errorf("%w: document changed, call Refresh", ErrInvalidDepth)
		}
		lv = next
	}
	if p.secNum[d] >= len(lv.labels) {
		return level{}, fmt.Errorf("%w: document changed, call Refresh", ErrInvalidDepth)
	}
	return lv, nil
}

func (p *Position) unbind() {
	p.root = nil
	p.secLength = nil
	p.secNum = nil
	p.selected = nil
}

func (p *Position) truncate(depth int) {
	p.secLength = p.secLength[:depth]
	p.secNum = p.secNum[:depth]
	p.selected = p.selected[:depth]
}
