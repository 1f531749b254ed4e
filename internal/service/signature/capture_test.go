package signature

import (
	"context"
	"encoding/base64"
	"errors"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	apperrors "github.com/weiwangfds/scisign/internal/errors"
)

// memEntries 内存中的条目仓库，签名字段由fields描述
type memEntries struct {
	fields  fieldSet
	forms   map[uint]int
	values  map[uint]map[string]string
	status  map[uint]string
	nextID     uint
	failSet    bool
	failDelete bool
}

func newMemEntries(fields fieldSet) *memEntries {
	return &memEntries{
		fields: fields,
		forms:  map[uint]int{},
		values: map[uint]map[string]string{},
		status: map[uint]string{},
	}
}

func (m *memEntries) IsSignatureField(ctx context.Context, formID int, fieldID string) (bool, error) {
	return m.fields.IsSignatureField(ctx, formID, fieldID)
}

func (m *memEntries) CreateEntry(_ context.Context, formID int, values map[string]string, _ string) (uint, error) {
	m.nextID++
	m.forms[m.nextID] = formID
	m.status[m.nextID] = "active"
	m.values[m.nextID] = map[string]string{}
	for k, v := range values {
		if v != "" {
			m.values[m.nextID][k] = v
		}
	}
	return m.nextID, nil
}

func (m *memEntries) EntryFormID(_ context.Context, entryID uint) (int, error) {
	formID, ok := m.forms[entryID]
	if !ok {
		return 0, apperrors.ErrEntryNotFoundError
	}
	return formID, nil
}

func (m *memEntries) FieldValue(ctx context.Context, entryID uint, fieldID string) (string, error) {
	if _, err := m.EntryFormID(ctx, entryID); err != nil {
		return "", err
	}
	return m.values[entryID][fieldID], nil
}

func (m *memEntries) SetFieldValue(ctx context.Context, entryID uint, fieldID, value string) error {
	if _, err := m.EntryFormID(ctx, entryID); err != nil {
		return err
	}
	if m.failSet {
		return errors.New("database is locked")
	}
	if value == "" {
		delete(m.values[entryID], fieldID)
	} else {
		m.values[entryID][fieldID] = value
	}
	return nil
}

func (m *memEntries) SignatureValues(ctx context.Context, entryID uint) (map[string]string, error) {
	formID, err := m.EntryFormID(ctx, entryID)
	if err != nil {
		return nil, err
	}
	out := map[string]string{}
	for k, v := range m.values[entryID] {
		if ok, _ := m.fields.IsSignatureField(ctx, formID, k); ok {
			out[k] = v
		}
	}
	return out, nil
}

func (m *memEntries) EntryIDs(_ context.Context, formID int, status string) ([]uint, error) {
	var ids []uint
	for id := uint(1); id <= m.nextID; id++ {
		f, ok := m.forms[id]
		if ok && f == formID && (status == "" || m.status[id] == status) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (m *memEntries) DeleteEntry(_ context.Context, entryID uint) error {
	if m.failDelete {
		return errors.New("database is locked")
	}
	if _, ok := m.forms[entryID]; !ok {
		return apperrors.ErrEntryNotFoundError
	}
	delete(m.forms, entryID)
	delete(m.values, entryID)
	delete(m.status, entryID)
	return nil
}

func newCaptureFixture(t *testing.T) (*CaptureService, *LocalStore, *memEntries) {
	t.Helper()
	store := newTestStore(t)
	entries := newMemEntries(fieldSet{5: {"1": false, "3": true, "4": true}})
	return NewCaptureService(store, entries, CaptureOptions{MaxPayloadBytes: 64 << 10}, testLogger()), store, entries
}

func encodedStroke(t *testing.T) string {
	return base64.StdEncoding.EncodeToString(strokePNG(t, 40, 12))
}

// pngFiles 列出签名目录中的PNG文件
func pngFiles(t *testing.T, root string) []string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(root, "*"+Ext))
	require.NoError(t, err)
	return matches
}

func TestDecodePayload(t *testing.T) {
	raw := strokePNG(t, 4, 4)
	std := base64.StdEncoding.EncodeToString(raw)

	for name, payload := range map[string]string{
		"standard": std,
		"data url": "data:image/png;base64," + std,
		"unpadded": strings.TrimRight(std, "="),
		"spaces":   "  " + std + "\n",
	} {
		got, err := DecodePayload(payload, 0)
		require.NoError(t, err, name)
		assert.Equal(t, raw, got, name)
	}

	for _, bad := range []string{"", "data:image/png;base64,", "!!not base64!!"} {
		_, err := DecodePayload(bad, 0)
		assert.ErrorIs(t, err, apperrors.ErrSignatureDecodeError, bad)
	}
}

func TestDecodePayloadLimit(t *testing.T) {
	std := base64.StdEncoding.EncodeToString(strokePNG(t, 4, 4))

	_, err := DecodePayload(std, len(std))
	require.NoError(t, err)
	// data URL前缀不计入长度
	_, err = DecodePayload("data:image/png;base64,"+std, len(std))
	require.NoError(t, err)

	_, err = DecodePayload(std, len(std)-1)
	assert.ErrorIs(t, err, apperrors.ErrSignatureDecodeError)
}

func TestCaptureService_RejectsOversizedPayload(t *testing.T) {
	svc, store, entries := newCaptureFixture(t)

	// 合法PNG后面附加大量填充字节
	padded := append(strokePNG(t, 2, 2), make([]byte, 1<<20)...)
	payload := base64.StdEncoding.EncodeToString(padded)

	_, err := svc.SaveCapture(payload)
	assert.ErrorIs(t, err, apperrors.ErrSignatureDecodeError)

	_, err = svc.SubmitEntry(context.Background(), 5, map[string]string{"3": encodedStroke(t), "4": payload}, "")
	assert.ErrorIs(t, err, apperrors.ErrSignatureDecodeError)
	assert.Empty(t, pngFiles(t, store.Root()))
	assert.Zero(t, entries.nextID)
}

func TestCaptureService_SaveCapture(t *testing.T) {
	svc, store, _ := newCaptureFixture(t)

	name, err := svc.SaveCapture(encodedStroke(t))
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(store.Root(), name+Ext))

	_, err = svc.SaveCapture(base64.StdEncoding.EncodeToString([]byte("not an image")))
	assert.ErrorIs(t, err, apperrors.ErrSignatureDecodeError)
}

func TestCaptureService_SaveCaptureStorageUnavailable(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))
	store, err := NewLocalStore(filepath.Join(blocker, "signatures"), 0, testLogger())
	require.NoError(t, err)
	svc := NewCaptureService(store, newMemEntries(fieldSet{}), CaptureOptions{}, testLogger())

	name, err := svc.SaveCapture(encodedStroke(t))
	require.NoError(t, err)
	assert.Empty(t, name)
}

func TestCaptureService_SubmitEntry(t *testing.T) {
	svc, store, entries := newCaptureFixture(t)
	ctx := context.Background()

	id, err := svc.SubmitEntry(ctx, 5, map[string]string{
		"1": "Ada",
		"3": "data:image/png;base64," + encodedStroke(t),
		"4": "",
	}, "10.0.0.1")
	require.NoError(t, err)

	assert.Equal(t, "Ada", entries.values[id]["1"])
	name := entries.values[id]["3"]
	require.NotEmpty(t, name)
	_, err = store.Load(name)
	assert.NoError(t, err)
	assert.NotContains(t, entries.values[id], "4")
	assert.Len(t, pngFiles(t, store.Root()), 1)
}

func TestCaptureService_SubmitEntryRollsBackOnDecodeError(t *testing.T) {
	svc, store, entries := newCaptureFixture(t)

	_, err := svc.SubmitEntry(context.Background(), 5, map[string]string{
		"3": encodedStroke(t),
		"4": base64.StdEncoding.EncodeToString([]byte("garbage")),
	}, "")
	assert.ErrorIs(t, err, apperrors.ErrSignatureDecodeError)
	assert.Empty(t, pngFiles(t, store.Root()))
	assert.Zero(t, entries.nextID)
}

func TestCaptureService_SignAgainLeavesOneFile(t *testing.T) {
	svc, store, entries := newCaptureFixture(t)
	ctx := context.Background()

	id, err := svc.SubmitEntry(ctx, 5, map[string]string{"3": encodedStroke(t)}, "")
	require.NoError(t, err)
	first := entries.values[id]["3"]

	for i := 0; i < 3; i++ {
		next, err := svc.SignAgain(ctx, id, "3", encodedStroke(t))
		require.NoError(t, err)
		assert.NotEqual(t, first, next)
		assert.Equal(t, next, entries.values[id]["3"])

		files := pngFiles(t, store.Root())
		require.Len(t, files, 1)
		assert.Equal(t, next+Ext, filepath.Base(files[0]))
		first = next
	}
}

func TestCaptureService_SignAgainFailures(t *testing.T) {
	svc, store, entries := newCaptureFixture(t)
	ctx := context.Background()
	id, err := svc.SubmitEntry(ctx, 5, map[string]string{"3": encodedStroke(t)}, "")
	require.NoError(t, err)
	original := entries.values[id]["3"]

	_, err = svc.SignAgain(ctx, id, "1", encodedStroke(t))
	assert.ErrorIs(t, err, apperrors.ErrFieldNotSignedError)

	_, err = svc.SignAgain(ctx, id+1, "3", encodedStroke(t))
	assert.ErrorIs(t, err, apperrors.ErrEntryNotFoundError)

	_, err = svc.SignAgain(ctx, id, "3", "bad")
	assert.ErrorIs(t, err, apperrors.ErrSignatureDecodeError)

	// 条目值无法更新时新文件被清理，旧文件保留
	entries.failSet = true
	_, err = svc.SignAgain(ctx, id, "3", encodedStroke(t))
	assert.Error(t, err)
	files := pngFiles(t, store.Root())
	require.Len(t, files, 1)
	assert.Equal(t, original+Ext, filepath.Base(files[0]))
	assert.Equal(t, original, entries.values[id]["3"])
}

func TestCaptureService_DeleteSignatureForField(t *testing.T) {
	svc, store, entries := newCaptureFixture(t)
	ctx := context.Background()
	id, err := svc.SubmitEntry(ctx, 5, map[string]string{"1": "Ada", "3": encodedStroke(t)}, "")
	require.NoError(t, err)

	require.NoError(t, svc.DeleteSignatureForField(ctx, id, "3"))
	assert.Empty(t, pngFiles(t, store.Root()))
	assert.NotContains(t, entries.values[id], "3")

	// 再次删除是幂等的
	require.NoError(t, svc.DeleteSignatureForField(ctx, id, "3"))

	assert.ErrorIs(t, svc.DeleteSignatureForField(ctx, id, "1"), apperrors.ErrFieldNotSignedError)
	assert.Equal(t, "Ada", entries.values[id]["1"])
}

func TestCaptureService_DeleteSignatureForFieldInvalidValue(t *testing.T) {
	svc, store, entries := newCaptureFixture(t)
	ctx := context.Background()
	outside := filepath.Join(filepath.Dir(store.Root()), "victim.png")
	require.NoError(t, os.WriteFile(outside, pngBytes(t, 2, 2, color.Black), 0o644))

	id, err := entries.CreateEntry(ctx, 5, map[string]string{"3": "../victim"}, "")
	require.NoError(t, err)

	require.NoError(t, svc.DeleteSignatureForField(ctx, id, "3"))
	assert.FileExists(t, outside)
	assert.NotContains(t, entries.values[id], "3")
}

func TestCaptureService_DeleteSignatureFile(t *testing.T) {
	svc, store, _ := newCaptureFixture(t)
	name, err := svc.SaveCapture(encodedStroke(t))
	require.NoError(t, err)

	require.NoError(t, svc.DeleteSignatureFile(name))
	assert.NoFileExists(t, filepath.Join(store.Root(), name+Ext))
	require.NoError(t, svc.DeleteSignatureFile(name))
	assert.ErrorIs(t, svc.DeleteSignatureFile("../../etc/passwd"), apperrors.ErrInvalidPathError)
}

func TestCaptureService_DeleteEntries(t *testing.T) {
	svc, store, entries := newCaptureFixture(t)
	ctx := context.Background()

	var ids []uint
	for i := 0; i < 3; i++ {
		id, err := svc.SubmitEntry(ctx, 5, map[string]string{"3": encodedStroke(t), "4": encodedStroke(t)}, "")
		require.NoError(t, err)
		ids = append(ids, id)
	}
	require.Len(t, pngFiles(t, store.Root()), 6)

	require.NoError(t, svc.DeleteEntry(ctx, ids[0]))
	assert.Len(t, pngFiles(t, store.Root()), 4)
	assert.ErrorIs(t, svc.DeleteEntry(ctx, ids[0]), apperrors.ErrEntryNotFoundError)

	entries.status[ids[2]] = "trash"
	n, err := svc.DeleteEntries(ctx, 5, "trash")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Len(t, pngFiles(t, store.Root()), 2)

	n, err = svc.DeleteEntries(ctx, 5, "")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Empty(t, pngFiles(t, store.Root()))
}

func TestCaptureService_DeleteEntryKeepsFilesWhenEntryRemains(t *testing.T) {
	svc, store, entries := newCaptureFixture(t)
	ctx := context.Background()

	id, err := svc.SubmitEntry(ctx, 5, map[string]string{"3": encodedStroke(t), "4": encodedStroke(t)}, "")
	require.NoError(t, err)
	require.Len(t, pngFiles(t, store.Root()), 2)

	entries.failDelete = true
	assert.Error(t, svc.DeleteEntry(ctx, id))
	assert.Len(t, pngFiles(t, store.Root()), 2)
	for _, name := range entries.values[id] {
		_, err := store.Load(name)
		assert.NoError(t, err)
	}

	entries.failDelete = false
	require.NoError(t, svc.DeleteEntry(ctx, id))
	assert.Empty(t, pngFiles(t, store.Root()))
}
