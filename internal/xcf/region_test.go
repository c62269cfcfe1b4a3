package xcf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRegion(t *testing.T) {
	tests := []struct {
		in   string
		want Region
	}{
		{"chr1", Region{"chr1", 1, MaxPos}},
		{"chr1:100", Region{"chr1", 100, MaxPos}},
		{"chr1:100-", Region{"chr1", 100, MaxPos}},
		{"chr1:100-200", Region{"chr1", 100, 200}},
		{"chr1:1,000-2,000", Region{"chr1", 1000, 2000}},
		{" 7:5-5 ", Region{"7", 5, 5}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseRegion(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseRegion_Invalid(t *testing.T) {
	for _, in := range []string{"", ":1-2", "chr1:", "chr1:a-b", "chr1:10-x", "chr1:0-5", "chr1:200-100"} {
		t.Run(in, func(t *testing.T) {
			_, err := ParseRegion(in)
			assert.ErrorIs(t, err, ErrInvalidRegion)
		})
	}
}

func TestRegion_String(t *testing.T) {
	assert.Equal(t, "chr1", Region{"chr1", 1, MaxPos}.String())
	assert.Equal(t, "chr1:100-", Region{"chr1", 100, MaxPos}.String())
	assert.Equal(t, "chr1:15-35", Region{"chr1", 15, 35}.String())
}

func TestRegion_Contains(t *testing.T) {
	r := Region{"chr1", 15, 35}
	assert.True(t, r.Contains("chr1", 15))
	assert.True(t, r.Contains("chr1", 35))
	assert.False(t, r.Contains("chr1", 14))
	assert.False(t, r.Contains("chr1", 36))
	assert.False(t, r.Contains("chr2", 20))
}
