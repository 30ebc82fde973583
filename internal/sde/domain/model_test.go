package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCategoryFor(t *testing.T) {
	tests := []struct {
		groupID int64
		want    TaxCategory
	}{
		{GroupIce, CategoryIce},
		{GroupGasCloud, CategoryGas},
		{GroupMoonUbiquitous, CategoryMoonR4},
		{GroupMoonCommon, CategoryMoonR8},
		{GroupMoonUncommon, CategoryMoonR16},
		{GroupMoonRare, CategoryMoonR32},
		{GroupMoonException, CategoryMoonR64},
		{450, CategoryOre},  // Arkonor
		{9999, CategoryOre}, // unknown group degrades to ore
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CategoryFor(tt.groupID))
	}
}

func TestCompressedName(t *testing.T) {
	plain := ItemType{Name: "Veldspar"}
	assert.False(t, plain.IsCompressed())
	assert.Equal(t, "Compressed Veldspar", plain.CompressedName())

	compressed := ItemType{Name: "Compressed Veldspar"}
	assert.True(t, compressed.IsCompressed())
	assert.Equal(t, "Compressed Veldspar", compressed.CompressedName())
}
