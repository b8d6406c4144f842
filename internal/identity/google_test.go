package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGoogleVerifier_DisabledWithoutClientID(t *testing.T) {
	_, err := NewGoogleVerifier("  ").Verify("token")
	assert.ErrorIs(t, err, ErrFederatedDisabled)

	var nilVerifier *GoogleVerifier
	_, err = nilVerifier.Verify("token")
	assert.ErrorIs(t, err, ErrFederatedDisabled)
}
