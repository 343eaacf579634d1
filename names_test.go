package dumpdir

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidItemName(t *testing.T) {
	t.Parallel()

	valid := []string{"time", "analyzer", "os_release", ".lock", "a.b.c"}
	for _, name := range valid {
		assert.NoErrorf(t, validItemName(name), "expected %q to be valid", name)
	}

	invalid := []string{"", ".", "..", ".hidden", "a/b", "a\x00b", "a\x01b"}
	for _, name := range invalid {
		assert.Errorf(t, validItemName(name), "expected %q to be invalid", name)
	}
}
