package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"golang.org/x/crypto/bcrypt"
)

func TestPasswordVerifier(t *testing.T) {
	v, err := NewPasswordVerifier(bcrypt.MinCost)
	require.NoError(t, err)

	hash, err := v.Hash("correct horse battery staple")
	require.NoError(t, err)

	t.Run("matching password verifies", func(t *testing.T) {
		assert.True(t, v.Verify(&hash, "correct horse battery staple"))
	})

	t.Run("wrong password fails", func(t *testing.T) {
		assert.False(t, v.Verify(&hash, "Tr0ub4dor&3"))
	})

	t.Run("nil hash always fails", func(t *testing.T) {
		// OAuth-only accounts and unknown emails take this path.
		assert.False(t, v.Verify(nil, "correct horse battery staple"))
		assert.False(t, v.Verify(nil, ""))
	})

	t.Run("hashes are salted", func(t *testing.T) {
		again, err := v.Hash("correct horse battery staple")
		require.NoError(t, err)
		assert.NotEqual(t, hash, again)
		assert.True(t, v.Verify(&again, "correct horse battery staple"))
	})
}

func TestHashToken(t *testing.T) {
	a := HashToken("some-raw-credential")
	b := HashToken("some-raw-credential")
	c := HashToken("another-credential")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64)
	assert.NotContains(t, a, "some-raw-credential")
}
