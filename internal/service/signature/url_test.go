package signature

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestURLBuilder_Build(t *testing.T) {
	signer := NewTokenSigner([]byte("0123456789abcdef"))
	b := NewURLBuilder("https://forms.example.com/", "/signature", "", signer, nil)

	raw := b.Build("abc123", 5, "3.1", false, false)
	u, err := url.Parse(raw)
	require.NoError(t, err)

	assert.Equal(t, "https", u.Scheme)
	assert.Equal(t, "forms.example.com", u.Host)
	assert.Equal(t, "/signature", u.Path)

	q := u.Query()
	assert.Equal(t, "abc123", q.Get(DefaultQueryVar))
	assert.Equal(t, "5", q.Get(ParamFormID))
	assert.Equal(t, "3.1", q.Get(ParamFieldID))
	assert.True(t, signer.Verify(q.Get(ParamHash), 5, "3.1", "abc123"))
	assert.False(t, q.Has(ParamTransparent))
	assert.False(t, q.Has(ParamDownload))

	p := ParseURLParams(q, DefaultQueryVar)
	assert.Equal(t, URLParams{Filename: "abc123", FormID: 5, FieldID: "3.1", Hash: q.Get(ParamHash)}, p)
}

func TestURLBuilder_Flags(t *testing.T) {
	b := NewURLBuilder("http://localhost:8080", "/signature", "sig", NewTokenSigner([]byte("k")), nil)

	u, err := url.Parse(b.Build("f", 1, "2", true, true))
	require.NoError(t, err)
	q := u.Query()
	assert.Equal(t, "f", q.Get("sig"))
	assert.Equal(t, "1", q.Get(ParamTransparent))
	assert.Equal(t, "1", q.Get(ParamDownload))

	p := ParseURLParams(q, "sig")
	assert.True(t, p.Transparent)
	assert.True(t, p.Download)
}

func TestURLBuilder_EmptyFilename(t *testing.T) {
	b := NewURLBuilder("http://localhost", "/signature", "", NewTokenSigner([]byte("k")), nil)
	assert.Empty(t, b.Build("", 1, "1", false, false))
}

func TestPrefixRewriter(t *testing.T) {
	r, err := NewPrefixRewriter("https://cdn.example.net/sig/")
	require.NoError(t, err)

	signer := NewTokenSigner([]byte("k"))
	b := NewURLBuilder("http://origin.internal:8080", "/signature", "", signer, r)

	u, err := url.Parse(b.Build("abc", 5, "3", false, true))
	require.NoError(t, err)
	assert.Equal(t, "https", u.Scheme)
	assert.Equal(t, "cdn.example.net", u.Host)
	assert.Equal(t, "/sig/signature", u.Path)
	assert.True(t, signer.Verify(u.Query().Get(ParamHash), 5, "3", "abc"))
	assert.Equal(t, "1", u.Query().Get(ParamDownload))
}

func TestParseURLParams_BadFormID(t *testing.T) {
	q := url.Values{}
	q.Set(DefaultQueryVar, "x")
	q.Set(ParamFormID, "five")
	q.Set(ParamTransparent, "true")

	p := ParseURLParams(q, DefaultQueryVar)
	assert.Zero(t, p.FormID)
	assert.False(t, p.Transparent, "only 1 enables a flag")
}
