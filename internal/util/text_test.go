package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeHeader(t *testing.T) {
	assert.Equal(t, "اسم الصنف", NormalizeHeader("  إسم   الصنف "))
	assert.Equal(t, "unit price", NormalizeHeader("Unit\tPRICE"))
	assert.Equal(t, "تاريخ الصلاحيه", NormalizeHeader("تاريخ الصلاحية"))
}

func TestContainsAny(t *testing.T) {
	assert.True(t, ContainsAny("item name", []string{"sku", "name"}))
	assert.False(t, ContainsAny("qty", []string{"", "price"}))
}
