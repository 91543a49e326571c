package document

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTree() *Tree {
	return New(NewNode("Product").
		Set("PartNumber", String("P-100")).
		Set("Mass", Number(12.5)).
		Set("Released", Bool(true)).
		Add(
			NewNode("Part").Set("Count", Number(3)),
			NewNode("Part").Set("Count", Number(-0.0)),
		))
}

func TestFormatNumber(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{3, "3"},
		{12.5, "12.5"},
		{0.1, "0.1"},
		{-2.25, "-2.25"},
		{math.Copysign(0, -1), "0"},
		{1e21, "1000000000000000000000"},
		{1e-7, "0.0000001"},
	}
	for _, tt := range tests {
		got, err := FormatNumber(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}

	for _, bad := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		_, err := FormatNumber(bad)
		assert.ErrorIs(t, err, ErrNonFiniteNumber)
	}
}

func TestDecodeWireForm(t *testing.T) {
	tree, err := Parse([]byte(`{
		"name": "Product",
		"attributes": {"PartNumber": "P-100", "Mass": 12.5, "Released": true},
		"children": [
			{"name": "Part", "attributes": {"Count": 3}},
			{"name": "Part", "attributes": {"Count": -0}}
		]
	}`))
	require.NoError(t, err)
	assert.True(t, tree.Equal(sampleTree()))
	assert.Equal(t, 3, tree.NodeCount())
	assert.Equal(t, []string{"Mass", "PartNumber", "Released"}, tree.Root.AttrNames())
}

func TestDecodeRejectsBadInput(t *testing.T) {
	tests := map[string]struct {
		body string
		want error
	}{
		"nested object value": {`{"name":"a","attributes":{"x":{"y":1}}}`, ErrUnsupportedValue},
		"null value":          {`{"name":"a","attributes":{"x":null}}`, ErrUnsupportedValue},
		"unnamed child":       {`{"name":"a","children":[{"attributes":{}}]}`, ErrEmptyName},
		"unnamed root":        {`{}`, ErrEmptyName},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(tt.body))
			assert.ErrorIs(t, err, tt.want)
		})
	}

	_, err := Parse([]byte(`not json`))
	assert.Error(t, err)
}

func TestMarshalJSONRoundTrip(t *testing.T) {
	data, err := sampleTree().MarshalJSON()
	require.NoError(t, err)

	back, err := Parse(data)
	require.NoError(t, err)
	assert.True(t, back.Equal(sampleTree()))

	bad := New(NewNode("a").Set("x", Number(math.NaN())))
	_, err = bad.MarshalJSON()
	assert.ErrorIs(t, err, ErrNonFiniteNumber)
	assert.ErrorIs(t, bad.Validate(), ErrNonFiniteNumber)
}

func TestWalkOrder(t *testing.T) {
	var names []string
	var depths []int
	require.NoError(t, sampleTree().Walk(func(n *Node, depth int) error {
		names = append(names, n.Name)
		depths = append(depths, depth)
		return nil
	}))
	assert.Equal(t, []string{"Product", "Part", "Part"}, names)
	assert.Equal(t, []int{0, 1, 1}, depths)

	var empty *Tree
	assert.ErrorIs(t, empty.Walk(func(*Node, int) error { return nil }), ErrNoRoot)
}

func TestValueEquality(t *testing.T) {
	assert.True(t, String("1").Equal(String("1")))
	assert.False(t, String("1").Equal(Number(1)))
	assert.True(t, Number(0).Equal(Number(math.Copysign(0, -1))))
	assert.False(t, Bool(true).Equal(Bool(false)))
}

func TestValidText(t *testing.T) {
	for _, ok := range []string{"", "plain", "tab\tnl\ncr\r", "Stål 🔩", "\uFFFD", "\uE000"} {
		assert.NoError(t, ValidText(ok), "%q", ok)
	}
	for _, bad := range []string{"\x00", "a\x01b", "\x1f", "a\xffc", "\xed\xa0\x80", "\uFFFE", "\uFFFF"} {
		assert.ErrorIs(t, ValidText(bad), ErrInvalidText, "%q", bad)
	}
}

func TestValidateRejectsNilAndInvalidText(t *testing.T) {
	withNil := New(NewNode("Product").Add(NewNode("Part"), nil))
	assert.ErrorIs(t, withNil.Validate(), ErrNilNode)
	assert.NotPanics(t, func() { withNil.NodeCount() })

	ctrl := New(NewNode("Product").Set("Name", String("a\x01b")))
	assert.ErrorIs(t, ctrl.Validate(), ErrInvalidText)

	_, err := Parse([]byte(`{"name":"a","attributes":{"x":"\u0001"}}`))
	assert.ErrorIs(t, err, ErrInvalidText)
}
