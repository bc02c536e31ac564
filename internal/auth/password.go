package auth

import "golang.org/x/crypto/bcrypt"

// PasswordVerifier hashes and checks passwords with bcrypt. Verification
// always performs exactly one bcrypt comparison, even when the stored hash
// is absent, so account existence cannot be inferred from response latency.
type PasswordVerifier struct {
	cost  int
	dummy []byte
}

// NewPasswordVerifier precomputes a dummy hash at the configured cost for
// the absent-hash compare path.
func NewPasswordVerifier(cost int) (*PasswordVerifier, error) {
	dummy, err := bcrypt.GenerateFromPassword([]byte("dummy-comparison-value"), cost)
	if err != nil {
		return nil, err
	}
	return &PasswordVerifier{cost: cost, dummy: dummy}, nil
}

// Hash returns the bcrypt hash of a plaintext password.
func (v *PasswordVerifier) Hash(plain string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plain), v.cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Verify reports whether plain matches the stored hash. A nil hash (no such
// user, or OAuth-only account) still runs a full compare against the dummy
// hash and returns false; the "no such user" determination stays with the
// caller, after this constant-shape step.
func (v *PasswordVerifier) Verify(hash *string, plain string) bool {
	if hash == nil {
		_ = bcrypt.CompareHashAndPassword(v.dummy, []byte(plain))
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(*hash), []byte(plain)) == nil
}
