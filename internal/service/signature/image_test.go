package signature

import (
	"context"
	"errors"
	"image/color"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weiwangfds/scisign/internal/auth"
	apperrors "github.com/weiwangfds/scisign/internal/errors"
)

// spyStore 记录调用次数的存储替身
type spyStore struct {
	files map[string][]byte
	loads int
}

func (s *spyStore) Save([]byte, string) (string, error) { return "", errors.New("not implemented") }
func (s *spyStore) Delete(string) error { return nil }
func (s *spyStore) Resolve(name string) (string, error) { return "/signatures/" + name + Ext, nil }
func (s *spyStore) Load(name string) ([]byte, error) {
	s.loads++
	data, ok := s.files[name]
	if !ok {
		return nil, apperrors.ErrSignatureNotFoundError
	}
	return data, nil
}

// fieldSet 表单ID -> 字段整数部分 -> 是否签名字段
type fieldSet map[int]map[string]bool

func (f fieldSet) IsSignatureField(_ context.Context, formID int, fieldID string) (bool, error) {
	base, _, _ := strings.Cut(fieldID, ".")
	return f[formID][base], nil
}

type failingFields struct{}

func (failingFields) IsSignatureField(context.Context, int, string) (bool, error) {
	return false, errors.New("database is locked")
}

type denyAllPolicy struct{ DefaultPolicy }

func (denyAllPolicy) PermissionGranted(context.Context, bool, int, string) bool { return false }

func newImageFixture(t *testing.T, opts ImageOptions, policy AuthorizationPolicy) (*ImageService, *spyStore, *TokenSigner, []byte) {
	t.Helper()
	src := strokePNG(t, 30, 10)
	store := &spyStore{files: map[string][]byte{"abc123": src}}
	signer := NewTokenSigner([]byte("0123456789abcdef"))
	fields := fieldSet{5: {"3": true}, 6: {"1": false}}
	return NewImageService(store, signer, fields, policy, opts, testLogger()), store, signer, src
}

func TestImageService_RenderFlattened(t *testing.T) {
	svc, store, signer, src := newImageFixture(t, ImageOptions{}, nil)

	img, err := svc.Render(context.Background(), URLParams{
		Filename: "abc123", FormID: 5, FieldID: "3.1", Hash: signer.Generate(5, "3.1", "abc123"),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, store.loads)
	assert.True(t, img.Flattened)
	assert.NotEqual(t, src, img.Data)

	decoded, err := Decode(img.Data)
	require.NoError(t, err)
	assert.Equal(t, 30, decoded.Bounds().Dx())
	assert.Equal(t, color.NRGBA{R: 255, G: 255, B: 255, A: 255}, color.NRGBAModel.Convert(decoded.At(0, 0)))
}

func TestImageService_RenderTransparentIsByteIdentical(t *testing.T) {
	svc, _, signer, src := newImageFixture(t, ImageOptions{}, nil)

	img, err := svc.Render(context.Background(), URLParams{
		Filename: "abc123", FormID: 5, FieldID: "3", Hash: signer.Generate(5, "3", "abc123"),
		Transparent: true, Download: true,
	})
	require.NoError(t, err)
	assert.Equal(t, src, img.Data)
	assert.False(t, img.Flattened)
	assert.True(t, img.Download)
}

func TestImageService_BadHashNeverTouchesStore(t *testing.T) {
	svc, store, signer, _ := newImageFixture(t, ImageOptions{}, nil)
	good := signer.Generate(5, "3.1", "abc123")

	cases := map[string]URLParams{
		"wrong field input": {Filename: "abc123", FormID: 5, FieldID: "3.2", Hash: good},
		"wrong filename":    {Filename: "other", FormID: 5, FieldID: "3.1", Hash: good},
		"garbage hash":      {Filename: "abc123", FormID: 5, FieldID: "3.1", Hash: "deadbeef"},
	}
	for name, p := range cases {
		_, err := svc.Render(context.Background(), p)
		assert.ErrorIs(t, err, apperrors.ErrInvalidTokenError, name)
	}
	assert.Zero(t, store.loads)
}

func TestImageService_FieldChecks(t *testing.T) {
	svc, store, signer, _ := newImageFixture(t, ImageOptions{}, nil)

	cases := map[string]URLParams{
		"unknown form":        {Filename: "abc123", FormID: 99, FieldID: "3", Hash: signer.Generate(99, "3", "abc123")},
		"unknown field":       {Filename: "abc123", FormID: 5, FieldID: "4", Hash: signer.Generate(5, "4", "abc123")},
		"not signature field": {Filename: "abc123", FormID: 6, FieldID: "1", Hash: signer.Generate(6, "1", "abc123")},
	}
	for name, p := range cases {
		_, err := svc.Render(context.Background(), p)
		assert.ErrorIs(t, err, apperrors.ErrSignatureNotFoundError, name)
	}
	assert.Zero(t, store.loads)

	failing := NewImageService(store, signer, failingFields{}, nil, ImageOptions{}, testLogger())
	_, err := failing.Render(context.Background(), URLParams{Filename: "abc123", FormID: 5, FieldID: "3", Hash: "x"})
	assert.ErrorIs(t, err, apperrors.ErrSignatureNotFoundError)
}

func TestImageService_EmptyFilename(t *testing.T) {
	svc, store, _, _ := newImageFixture(t, ImageOptions{AllowUnsigned: true}, nil)

	_, err := svc.Render(context.Background(), URLParams{})
	assert.ErrorIs(t, err, apperrors.ErrSignatureNotFoundError)
	assert.Zero(t, store.loads)
}

func TestImageService_Unsigned(t *testing.T) {
	t.Run("rejected by default", func(t *testing.T) {
		svc, store, _, _ := newImageFixture(t, ImageOptions{}, nil)
		_, err := svc.Render(context.Background(), URLParams{Filename: "abc123"})
		assert.ErrorIs(t, err, apperrors.ErrUnauthorizedAccess)
		assert.Zero(t, store.loads)
	})

	t.Run("allowed by compatibility flag", func(t *testing.T) {
		svc, store, _, _ := newImageFixture(t, ImageOptions{AllowUnsigned: true}, nil)
		img, err := svc.Render(context.Background(), URLParams{Filename: "abc123"})
		require.NoError(t, err)
		assert.Equal(t, 1, store.loads)
		assert.NotEmpty(t, img.Data)
	})
}

func TestImageService_MissingFile(t *testing.T) {
	svc, store, signer, _ := newImageFixture(t, ImageOptions{}, nil)

	_, err := svc.Render(context.Background(), URLParams{
		Filename: "gone", FormID: 5, FieldID: "3", Hash: signer.Generate(5, "3", "gone"),
	})
	assert.ErrorIs(t, err, apperrors.ErrSignatureNotFoundError)
	assert.Equal(t, 1, store.loads)
}

func TestImageService_UndecodableFile(t *testing.T) {
	svc, store, signer, _ := newImageFixture(t, ImageOptions{}, nil)
	store.files["broken"] = []byte("\x89PNG\r\n\x1a\n garbage")

	_, err := svc.Render(context.Background(), URLParams{
		Filename: "broken", FormID: 5, FieldID: "3", Hash: signer.Generate(5, "3", "broken"), Transparent: true,
	})
	assert.ErrorIs(t, err, apperrors.ErrSignatureNotFoundError)
}

func TestImageService_LoginPolicy(t *testing.T) {
	svc, store, signer, _ := newImageFixture(t, ImageOptions{}, LoginRequiredPolicy{})
	p := URLParams{Filename: "abc123", FormID: 5, FieldID: "3", Hash: signer.Generate(5, "3", "abc123")}

	_, err := svc.Render(context.Background(), p)
	assert.ErrorIs(t, err, apperrors.ErrLoginRequiredError)
	assert.Zero(t, store.loads)

	_, err = svc.Render(auth.WithUser(context.Background(), "admin"), p)
	require.NoError(t, err)
	assert.Equal(t, 1, store.loads)
}

func TestImageService_PermissionOverride(t *testing.T) {
	svc, store, signer, _ := newImageFixture(t, ImageOptions{}, denyAllPolicy{})

	_, err := svc.Render(context.Background(), URLParams{
		Filename: "abc123", FormID: 5, FieldID: "3", Hash: signer.Generate(5, "3", "abc123"),
	})
	assert.ErrorIs(t, err, apperrors.ErrInvalidTokenError)
	assert.Zero(t, store.loads)
}

func TestImageService_FlattenFallback(t *testing.T) {
	svc, _, signer, src := newImageFixture(t, ImageOptions{MaxPixels: 10}, nil)

	img, err := svc.Render(context.Background(), URLParams{
		Filename: "abc123", FormID: 5, FieldID: "3", Hash: signer.Generate(5, "3", "abc123"),
	})
	require.NoError(t, err)
	assert.False(t, img.Flattened)
	assert.Equal(t, src, img.Data)
}
