// internal/segment/resolve.go
package segment

import (
	"strconv"

	"github.com/solatis/x12keeper/internal/types"
)

/*
 * Field reference resolution.
 *
 * Every read and write funnels through Resolve so accessors and the
 * serializer always agree on what a position means.
 *
 * Resolution order:
 *   1. Tag+index pattern: "<tag><digits>" (e.g. "GS02" -> 2). Leading zeros
 *      are insignificant. Checked first, so a registered name that looks like
 *      a tag+index key is always treated as positional.
 *   2. Name index: the reference verbatim as key.
 *
 * Position 0 holds the tag and is only reachable through ID(). A digit group
 * parsing to 0 ("GS00") fails with ErrIndexOutOfRange, as does a digit group
 * too large for int.
 *
 * Failures are *types.FieldError wrapping ErrFieldNotFound (nothing matched)
 * or ErrIndexOutOfRange (matched, but no element at that position).
 */

// Resolve maps a field reference to an element position in [1, Len()).
func (s *Segment) Resolve(ref string) (int, error) {
	var index int

	if m := s.pattern.FindStringSubmatch(ref); m != nil {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			return 0, &types.FieldError{Reference: ref, Err: types.ErrIndexOutOfRange}
		}
		index = n
	} else {
		n, ok := s.names[ref]
		if !ok {
			return 0, &types.FieldError{Reference: ref, Err: types.ErrFieldNotFound}
		}
		index = n
	}

	if index < 1 || index >= len(s.elements) {
		return 0, &types.FieldError{Reference: ref, Err: types.ErrIndexOutOfRange}
	}
	return index, nil
}

// Get returns the element value for ref.
func (s *Segment) Get(ref string) (string, error) {
	index, err := s.Resolve(ref)
	if err != nil {
		return "", err
	}
	return s.elements[index], nil
}

// Set replaces the element value for ref in place.
// The element slice never grows; out-of-range writes fail.
func (s *Segment) Set(ref, value string) error {
	index, err := s.Resolve(ref)
	if err != nil {
		return err
	}
	s.elements[index] = value
	return nil
}
