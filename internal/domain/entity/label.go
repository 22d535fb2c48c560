package entity

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Assertion labels emitted by the clinical assertion model
const (
	LabelPresent     = "PRESENT"
	LabelAbsent      = "ABSENT"
	LabelConditional = "CONDITIONAL"
)

// unknownLabelPrefix formats class indices missing from the mapping
const unknownLabelPrefix = "UNKNOWN_"

// Label is either a named class or an index the mapping does not know.
type Label struct {
	index int
	name  string
}

// KnownLabel creates a named label for a class index
func KnownLabel(index int, name string) Label {
	return Label{index: index, name: name}
}

// UnknownLabel creates a label for an index outside the mapping
func UnknownLabel(index int) Label {
	return Label{index: index}
}

// Index returns the model class index
func (l Label) Index() int {
	return l.index
}

// Known reports whether the label came from the mapping
func (l Label) Known() bool {
	return l.name != ""
}

// String returns the display form, UNKNOWN_{idx} for unknown labels
func (l Label) String() string {
	if l.name == "" {
		return unknownLabelPrefix + strconv.Itoa(l.index)
	}
	return l.name
}

// LabelMapping resolves model class indices to labels. Resolve never fails.
type LabelMapping struct {
	names map[int]string
}

// DefaultLabelMapping is used when the model configuration carries no id2label
func DefaultLabelMapping() LabelMapping {
	return LabelMapping{names: map[int]string{
		0: LabelPresent,
		1: LabelAbsent,
		2: LabelConditional,
	}}
}

// NewLabelMapping builds a mapping, falling back to the default when names is empty
func NewLabelMapping(names map[int]string) LabelMapping {
	if len(names) == 0 {
		return DefaultLabelMapping()
	}
	copied := make(map[int]string, len(names))
	for idx, name := range names {
		if strings.TrimSpace(name) == "" {
			continue
		}
		copied[idx] = name
	}
	if len(copied) == 0 {
		return DefaultLabelMapping()
	}
	return LabelMapping{names: copied}
}

// ParseID2Label converts a HuggingFace config id2label object ({"0": "PRESENT"}) to indices
func ParseID2Label(raw map[string]string) (map[int]string, error) {
	out := make(map[int]string, len(raw))
	for key, name := range raw {
		idx, err := strconv.Atoi(strings.TrimSpace(key))
		if err != nil {
			return nil, fmt.Errorf("invalid id2label key %q: %w", key, err)
		}
		if idx < 0 {
			return nil, fmt.Errorf("invalid id2label key %q: negative index", key)
		}
		out[idx] = name
	}
	return out, nil
}

// Resolve returns the label for a class index
func (m LabelMapping) Resolve(index int) Label {
	if name, ok := m.names[index]; ok {
		return KnownLabel(index, name)
	}
	return UnknownLabel(index)
}

// Len returns the number of named classes
func (m LabelMapping) Len() int {
	return len(m.names)
}

// Names returns label names ordered by class index
func (m LabelMapping) Names() []string {
	indices := make([]int, 0, len(m.names))
	for idx := range m.names {
		indices = append(indices, idx)
	}
	sort.Ints(indices)

	names := make([]string, len(indices))
	for i, idx := range indices {
		names[i] = m.names[idx]
	}
	return names
}

// IsAssertionLabel reports whether name is one of PRESENT, ABSENT, CONDITIONAL
func IsAssertionLabel(name string) bool {
	switch name {
	case LabelPresent, LabelAbsent, LabelConditional:
		return true
	}
	return false
}

// IsUnknownLabel reports whether name is a well-formed UNKNOWN_{idx} label
func IsUnknownLabel(name string) bool {
	rest, ok := strings.CutPrefix(name, unknownLabelPrefix)
	if !ok || rest == "" {
		return false
	}
	idx, err := strconv.Atoi(rest)
	return err == nil && idx >= 0
}
