package pgstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJoinSplitCodes(t *testing.T) {
	in := []string{"$argon2id$v=19$m=8192,t=1,p=1$c2FsdA$a2V5", "PLAIN1"}

	joined, err := joinCodes(in)
	require.NoError(t, err)
	assert.Equal(t, in, splitCodes(joined))

	assert.Nil(t, splitCodes(""))
}

func TestJoinCodesRejectsDelimiter(t *testing.T) {
	_, err := joinCodes([]string{"ab;cd"})
	assert.Error(t, err)
}
