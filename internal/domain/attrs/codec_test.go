package attrs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSerializeRoundTrip(t *testing.T) {
	fp := Serialize([]Pair{
		{AttributeID: 12, Value: "34"},
		{AttributeID: 15, Value: "red"},
		{AttributeID: 15, Value: "blue"},
	})

	s := Deserialize(fp)
	require.Equal(t, 2, s.Len())
	assert.Equal(t, []string{"34"}, s.Get(12))
	assert.Equal(t, []string{"red", "blue"}, s.Get(15))
}

func TestAppendAccumulatesValues(t *testing.T) {
	fp := Serialize([]Pair{{AttributeID: 7, Value: "a"}})
	fp = Append(fp, 7, "b")
	fp = Append(fp, 9, "c")

	s := Deserialize(fp)
	assert.Equal(t, []string{"a", "b"}, s.Get(7))
	assert.Equal(t, []string{"c"}, s.Get(9))
}

func TestDeserializeEmptyAndMalformed(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty string", ""},
		{"whitespace", "   "},
		{"truncated json", `{"12":["a"`},
		{"not an object", `[1,2,3]`},
		{"non-numeric key", `{"color":["red"]}`},
		{"non-array value", `{"12":"a"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Deserialize(tt.input)
			require.NotNil(t, s)
			assert.Equal(t, 0, s.Len())
		})
	}
}

func TestAreEqual(t *testing.T) {
	tests := []struct {
		name string
		a    []Pair
		b    []Pair
		want bool
	}{
		{
			name: "same pairs different construction order",
			a:    []Pair{{1, "a"}, {2, "b"}},
			b:    []Pair{{2, "b"}, {1, "a"}},
			want: true,
		},
		{
			name: "case insensitive values",
			a:    []Pair{{1, "Red"}},
			b:    []Pair{{1, "red"}},
			want: true,
		},
		{
			name: "trimmed values",
			a:    []Pair{{1, " red "}},
			b:    []Pair{{1, "red"}},
			want: true,
		},
		{
			name: "multi-value order insensitive",
			a:    []Pair{{1, "a"}, {1, "b"}},
			b:    []Pair{{1, "b"}, {1, "a"}},
			want: true,
		},
		{
			name: "value count differs",
			a:    []Pair{{1, "a"}},
			b:    []Pair{{1, "a"}, {1, "a"}},
			want: false,
		},
		{
			name: "different attribute sets",
			a:    []Pair{{1, "a"}},
			b:    []Pair{{2, "a"}},
			want: false,
		},
		{
			name: "different values",
			a:    []Pair{{1, "a"}},
			b:    []Pair{{1, "b"}},
			want: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AreEqual(Serialize(tt.a), Serialize(tt.b)))
		})
	}
}

func TestAreEqualIdenticalStrings(t *testing.T) {
	assert.True(t, AreEqual("", ""))
	assert.True(t, AreEqual(`{"1":["a"]}`, `{"1":["a"]}`))
}

func TestAreEqualMalformedIsEmptySelection(t *testing.T) {
	// A side that cannot be parsed behaves as an empty selection: it equals
	// another empty/malformed side and nothing else.
	assert.True(t, AreEqual(`{"broken`, ""))
	assert.True(t, AreEqual(`{"broken`, `also broken`))
	assert.False(t, AreEqual(`{"broken`, Serialize([]Pair{{1, "a"}})))
}
