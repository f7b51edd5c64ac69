package security_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/pestguard-backend/pkg/config"
	"github.com/angelmondragon/pestguard-backend/pkg/security"
)

func testPasswordConfig() config.PasswordConfig {
	return config.PasswordConfig{
		ArgonMemoryKB:    32768,
		ArgonTime:        1,
		ArgonParallelism: 1,
		ArgonSaltLen:     16,
		ArgonKeyLen:      32,
	}
}

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := security.HashPassword("very-secure-password1", testPasswordConfig())
	require.NoError(t, err)
	require.Contains(t, hash, "$argon2id$v=19$m=32768,t=1,p=1$")

	ok, err := security.VerifyPassword("very-secure-password1", hash)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = security.VerifyPassword("bogus-password", hash)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestHashPasswordRejectsEmpty(t *testing.T) {
	_, err := security.HashPassword("", testPasswordConfig())
	require.Error(t, err)
}

func TestVerifyPasswordRejectsMalformedHashes(t *testing.T) {
	for _, encoded := range []string{
		"",
		"plain",
		"$argon2i$v=19$m=1,t=1,p=1$c2FsdA$aGFzaA",
		"$argon2id$v=18$m=1,t=1,p=1$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=x,t=1,p=1$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=1,t=1,p=1$***$aGFzaA",
	} {
		_, err := security.VerifyPassword("pw", encoded)
		require.ErrorIs(t, err, security.ErrInvalidHash, encoded)
	}
}

func TestCheckPasswordPolicy(t *testing.T) {
	require.Empty(t, security.CheckPasswordPolicy("termite42"))
	require.NotEmpty(t, security.CheckPasswordPolicy("short1"))
	require.NotEmpty(t, security.CheckPasswordPolicy("lettersonly"))
	require.NotEmpty(t, security.CheckPasswordPolicy("1234567890"))
}
