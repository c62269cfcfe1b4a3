package bcf

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenotypeText(t *testing.T) {
	tests := []struct {
		name string
		ints []int32
		want string
	}{
		{"unphased het", []int32{2, 4}, "0/1"},
		{"phased", []int32{4, 7}, "1|2"},
		{"missing", []int32{0, 0}, "./."},
		{"haploid padded", []int32{4, Int8EOV}, "1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, genotypeText(value{typ: TypeInt8, ints: tt.ints, n: len(tt.ints)}))
		})
	}
}
