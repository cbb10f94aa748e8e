package jsengine

import (
	"errors"
	"fmt"
	"sync"
)

var ErrTemplateSealed = errors.New("template is sealed: a context was already created from it")

// ObjectTemplate maps property names to native functions or nested object
// templates. It becomes immutable once a context is instantiated from it.
type ObjectTemplate struct {
	mu      sync.Mutex
	entries []TemplateEntry
	sealed  bool
}

// TemplateEntry holds exactly one of Function or Object.
type TemplateEntry struct {
	Name     string
	Function FunctionCallback
	Object   *ObjectTemplate
}

func NewObjectTemplate() *ObjectTemplate {
	return &ObjectTemplate{}
}

func (t *ObjectTemplate) SetFunction(name string, fn FunctionCallback) error {
	if fn == nil {
		return fmt.Errorf("function %q is nil", name)
	}
	return t.set(TemplateEntry{Name: name, Function: fn})
}

func (t *ObjectTemplate) SetObject(name string, obj *ObjectTemplate) error {
	if obj == nil {
		return fmt.Errorf("object %q is nil", name)
	}
	if obj == t {
		return fmt.Errorf("object %q cannot contain itself", name)
	}
	return t.set(TemplateEntry{Name: name, Object: obj})
}

func (t *ObjectTemplate) set(e TemplateEntry) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.sealed {
		return ErrTemplateSealed
	}
	if e.Name == "" {
		return errors.New("empty property name")
	}
	for _, existing := range t.entries {
		if existing.Name == e.Name {
			return fmt.Errorf("property %q already set", e.Name)
		}
	}
	t.entries = append(t.entries, e)
	return nil
}

// Entries returns the entries in insertion order.
func (t *ObjectTemplate) Entries() []TemplateEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]TemplateEntry(nil), t.entries...)
}

func (t *ObjectTemplate) Sealed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sealed
}

// Seal makes t and every nested object template immutable.
func (t *ObjectTemplate) Seal() {
	t.mu.Lock()
	if t.sealed {
		t.mu.Unlock()
		return
	}
	t.sealed = true
	entries := t.entries
	t.mu.Unlock()

	for _, e := range entries {
		if e.Object != nil {
			e.Object.Seal()
		}
	}
}
