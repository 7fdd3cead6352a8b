// Package segment models a single X12 segment: a tag followed by ordered data
// elements, addressable by position, by tag+index key ("GS02") or by a
// registered field name.
//
// A Segment holds no locks. The owning document synchronizes concurrent
// mutation if it shares a Segment across goroutines.
package segment

import (
	"fmt"
	"regexp"

	"github.com/solatis/x12keeper/internal/types"
)

// NameIndex maps a descriptive field name to its 1-based element position.
type NameIndex map[string]int

// Segment is one parsed X12 segment. elements[0] is the tag and
// elements[1:] are the data elements in standard-defined order.
type Segment struct {
	elements []string
	names    NameIndex
	kinds    map[int]ElementType
	pattern  *regexp.Regexp // ^<tag>(\d+)$
}

// New constructs a generic segment with an empty name index.
// The segment takes ownership of elements; the caller must not reslice it.
func New(elements []string) (*Segment, error) {
	return NewNamed(elements, nil)
}

// NewNamed constructs a segment and registers every entry of names.
// Returns ErrEmptySegmentID if elements is empty or has an empty tag.
func NewNamed(elements []string, names NameIndex) (*Segment, error) {
	if len(elements) == 0 || elements[0] == "" {
		return nil, types.ErrEmptySegmentID
	}

	s := &Segment{
		elements: elements,
		names:    make(NameIndex, len(names)),
		kinds:    make(map[int]ElementType),
		pattern:  regexp.MustCompile("^" + regexp.QuoteMeta(elements[0]) + `(\d+)$`),
	}
	for name, index := range names {
		if err := s.Register(name, index); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// ID returns the segment tag, e.g. "GS".
func (s *Segment) ID() string {
	return s.elements[0]
}

// DataElements returns the backing element slice, tag included.
// Writes made through Set are visible in the returned slice.
func (s *Segment) DataElements() []string {
	return s.elements
}

// Len returns the element count, tag included.
func (s *Segment) Len() int {
	return len(s.elements)
}

// Register binds name to a 1-based element position.
// The position is checked against the element count at lookup time, not here,
// so schemas may name optional trailing fields a given segment omits.
func (s *Segment) Register(name string, index int) error {
	if name == "" {
		return fmt.Errorf("%w: empty field name", types.ErrInvalidSchema)
	}
	if index < 1 {
		return fmt.Errorf("%w: %s=%d", types.ErrInvalidIndex, name, index)
	}
	s.names[name] = index
	return nil
}

// Names returns a copy of the name index.
func (s *Segment) Names() NameIndex {
	out := make(NameIndex, len(s.names))
	for k, v := range s.names {
		out[k] = v
	}
	return out
}

// MarshalJSON encodes the segment as its ordered serialization.
func (s *Segment) MarshalJSON() ([]byte, error) {
	return s.Serialize().MarshalJSON()
}
