package revision_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeffa5/model-checked-orchestration/revision"
)

func TestRoundTrip(t *testing.T) {
	for _, r := range []revision.Revision{revision.Zero(), 1, 2, 1000, 1 << 40} {
		parsed, err := revision.ParseRevision(r.String())
		require.NoError(t, err)
		assert.Equal(t, r, parsed)
	}
}

func TestIncrementMonotonic(t *testing.T) {
	r := revision.Zero()
	for i := 0; i < 10; i++ {
		next := r.Increment()
		assert.True(t, r.Before(next))
		r = next
	}
}

func TestParseInvalid(t *testing.T) {
	_, err := revision.ParseRevision("not-a-number")
	assert.Error(t, err)
}
