package signature

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenSigner_RoundTrip(t *testing.T) {
	s := NewTokenSigner([]byte("0123456789abcdef"))

	cases := []struct {
		formID   int
		fieldID  string
		filename string
	}{
		{5, "3.1", "abc123"},
		{1, "1", "5f2b8c3e1a"},
		{0, "", "x"},
		{42, "7", "gf_cv5mdn3k0j4s73b4b5p0a1b2c3d4"},
	}
	for _, tc := range cases {
		token := s.Generate(tc.formID, tc.fieldID, tc.filename)
		assert.Len(t, token, 64)
		assert.True(t, s.Verify(token, tc.formID, tc.fieldID, tc.filename))
		assert.Equal(t, token, s.Generate(tc.formID, tc.fieldID, tc.filename), "deterministic")
	}
}

func TestTokenSigner_AnyChangeInvalidates(t *testing.T) {
	s := NewTokenSigner([]byte("0123456789abcdef"))
	token := s.Generate(5, "3.1", "abc123")

	assert.False(t, s.Verify(token, 6, "3.1", "abc123"), "form id")
	assert.False(t, s.Verify(token, 5, "3.2", "abc123"), "field id")
	assert.False(t, s.Verify(token, 5, "3.1", "abc124"), "filename")
	assert.False(t, s.Verify("", 5, "3.1", "abc123"), "empty token")
	assert.False(t, s.Verify("not-hex", 5, "3.1", "abc123"), "garbage token")
	assert.False(t, s.Verify(token[:63], 5, "3.1", "abc123"), "truncated token")

	other := NewTokenSigner([]byte("fedcba9876543210"))
	assert.False(t, other.Verify(token, 5, "3.1", "abc123"), "secret")
}

func TestTokenSigner_FieldsAreDelimited(t *testing.T) {
	s := NewTokenSigner([]byte("0123456789abcdef"))

	// 直接拼接时这两组输入相同
	assert.NotEqual(t, s.Generate(1, "23", "abc"), s.Generate(12, "3", "abc"))
	assert.NotEqual(t, s.Generate(1, "2", "3abc"), s.Generate(1, "23", "abc"))
}
