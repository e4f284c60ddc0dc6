package id

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewSortsByGenerationOrder(t *testing.T) {
	t.Parallel()

	a := New()
	b := New()
	assert.Len(t, a, 26)
	assert.True(t, a < b, "ULIDs must sort in generation order: %s vs %s", a, b)
}

func TestClientIDShape(t *testing.T) {
	t.Parallel()

	cid := ClientID()
	assert.True(t, strings.HasPrefix(cid, "client-"))
	assert.NotEqual(t, cid, ClientID())
}
