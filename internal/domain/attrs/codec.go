// Package attrs implements attribute-selection fingerprints: their
// serialization, order- and case-insensitive equality, and the generation and
// resolution of attribute combinations built on top of them.
//
// A fingerprint is a JSON object mapping attribute ids to value lists, e.g.
// {"12":["34"],"15":["red","blue"]}. The encoding is an internal detail; the
// only contract is round-trip equality via AreEqual.
package attrs

import (
	"strconv"
	"strings"

	"github.com/go-faster/jx"
)

// Selections is a multimap of attribute id to selected values. An attribute
// may carry more than one value (checkbox controls); attributes without a
// discrete value list store the raw customer input as the value.
type Selections struct {
	order  []int64
	values map[int64][]string
}

// NewSelections returns an empty selection set.
func NewSelections() *Selections {
	return &Selections{values: make(map[int64][]string)}
}

// Add appends a value under the given attribute id, keeping first-seen
// attribute order for serialization.
func (s *Selections) Add(attributeID int64, value string) {
	if _, ok := s.values[attributeID]; !ok {
		s.order = append(s.order, attributeID)
	}
	s.values[attributeID] = append(s.values[attributeID], value)
}

// Get returns the values selected for the given attribute id.
func (s *Selections) Get(attributeID int64) []string {
	return s.values[attributeID]
}

// AttributeIDs returns the attribute ids in first-seen order.
func (s *Selections) AttributeIDs() []int64 {
	return s.order
}

// Len returns the number of distinct attributes carrying values.
func (s *Selections) Len() int {
	return len(s.order)
}

// Serialize encodes the selection set into its fingerprint form.
// An empty set serializes to "{}".
func (s *Selections) Serialize() string {
	e := &jx.Encoder{}
	e.ObjStart()
	for _, id := range s.order {
		e.FieldStart(strconv.FormatInt(id, 10))
		e.ArrStart()
		for _, v := range s.values[id] {
			e.Str(v)
		}
		e.ArrEnd()
	}
	e.ObjEnd()
	return e.String()
}

// Equal reports whether two selection sets cover the same attribute ids with
// the same multiset of values, compared trimmed and case-insensitively.
func (s *Selections) Equal(other *Selections) bool {
	if len(s.values) != len(other.values) {
		return false
	}
	for id, vals := range s.values {
		otherVals, ok := other.values[id]
		if !ok || len(vals) != len(otherVals) {
			return false
		}
		if !sameValueMultiset(vals, otherVals) {
			return false
		}
	}
	return true
}

func sameValueMultiset(a, b []string) bool {
	counts := make(map[string]int, len(a))
	for _, v := range a {
		counts[normalizeValue(v)]++
	}
	for _, v := range b {
		counts[normalizeValue(v)]--
	}
	for _, c := range counts {
		if c != 0 {
			return false
		}
	}
	return true
}

func normalizeValue(v string) string {
	return strings.ToLower(strings.TrimSpace(v))
}

// Serialize builds a fingerprint from (attributeID, value) pairs in order.
func Serialize(pairs []Pair) string {
	s := NewSelections()
	for _, p := range pairs {
		s.Add(p.AttributeID, p.Value)
	}
	return s.Serialize()
}

// Pair is one (attribute id, selected value) entry.
type Pair struct {
	AttributeID int64
	Value       string
}

// Append adds one (attributeID, value) pair to an existing fingerprint.
// Adding a second value under an already-present attribute id yields a
// multi-valued attribute rather than replacing the first value.
func Append(fingerprint string, attributeID int64, value string) string {
	s := Deserialize(fingerprint)
	s.Add(attributeID, value)
	return s.Serialize()
}

// Deserialize parses a fingerprint back into a selection set. Empty or
// malformed input yields an empty set: a fingerprint that cannot be parsed
// must never fail the evaluation, it simply matches nothing.
func Deserialize(fingerprint string) *Selections {
	s := NewSelections()
	if strings.TrimSpace(fingerprint) == "" {
		return s
	}

	d := jx.DecodeStr(fingerprint)
	err := d.Obj(func(d *jx.Decoder, key string) error {
		id, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			return err
		}
		return d.Arr(func(d *jx.Decoder) error {
			v, err := d.Str()
			if err != nil {
				return err
			}
			s.Add(id, v)
			return nil
		})
	})
	if err != nil {
		return NewSelections()
	}
	return s
}

// AreEqual reports whether two fingerprints encode the same attribute-value
// multiset. Identical strings short-circuit; otherwise both sides are
// deserialized and compared order- and case-insensitively.
func AreEqual(a, b string) bool {
	if a == b {
		return true
	}
	return Deserialize(a).Equal(Deserialize(b))
}
