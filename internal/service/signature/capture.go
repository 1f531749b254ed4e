package signature

import (
	"context"
	"encoding/base64"
	"fmt"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
	apperrors "github.com/weiwangfds/scisign/internal/errors"
)

// EntryRepository 宿主表单引擎的条目存取接口
// 签名字段的值是签名文件名
type EntryRepository interface {
	FieldChecker
	CreateEntry(ctx context.Context, formID int, values map[string]string, sourceIP string) (uint, error)
	EntryFormID(ctx context.Context, entryID uint) (int, error)
	FieldValue(ctx context.Context, entryID uint, fieldID string) (string, error)
	SetFieldValue(ctx context.Context, entryID uint, fieldID, value string) error
	SignatureValues(ctx context.Context, entryID uint) (map[string]string, error)
	EntryIDs(ctx context.Context, formID int, status string) ([]uint, error)
	DeleteEntry(ctx context.Context, entryID uint) error
}

// CaptureOptions 采集选项
type CaptureOptions struct {
	// Prefix 加在每个新文件名之前，只允许字母、数字、下划线和连字符
	Prefix string
	// MaxPayloadBytes 单个签名base64数据的最大长度，<=0不限制
	MaxPayloadBytes int
}

// CaptureService 签名采集与条目生命周期绑定
// 签名文件随条目创建、替换、删除；每个条目字段最多引用一个文件
type CaptureService struct {
	store   Store
	entries EntryRepository
	opts    CaptureOptions
	logger  logrus.FieldLogger
}

// NewCaptureService 创建采集服务
func NewCaptureService(store Store, entries EntryRepository, opts CaptureOptions, logger logrus.FieldLogger) *CaptureService {
	return &CaptureService{
		store:   store,
		entries: entries,
		opts:    opts,
		logger:  logger,
	}
}

// DecodePayload 解码base64签名数据，支持data URL形式
// maxBytes限制去掉data URL前缀后的base64长度，<=0不限制
func DecodePayload(payload string, maxBytes int) ([]byte, error) {
	payload = strings.TrimSpace(payload)
	if i := strings.Index(payload, ";base64,"); strings.HasPrefix(payload, "data:") && i >= 0 {
		payload = payload[i+len(";base64,"):]
	}
	if payload == "" {
		return nil, apperrors.ErrSignatureDecodeError.WithDetails("empty signature payload")
	}
	if maxBytes > 0 && len(payload) > maxBytes {
		return nil, apperrors.ErrSignatureDecodeError.WithDetails(
			fmt.Sprintf("signature payload of %d bytes exceeds limit of %d", len(payload), maxBytes))
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		// 部分画布组件输出不带填充的base64
		if raw, rawErr := base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "=")); rawErr == nil {
			return raw, nil
		}
		return nil, apperrors.ErrSignatureDecodeError.WithOriginalError(err)
	}
	return data, nil
}

// SaveCapture 保存一次签名采集，返回文件名
// 签名目录不可用时记录错误并返回空文件名，表单提交继续进行
func (s *CaptureService) SaveCapture(payload string) (string, error) {
	filename, err := s.save(payload)
	if apperrors.CodeOf(err) == apperrors.ErrStorageUnavailable {
		s.logger.WithError(err).Error("signature storage unavailable, submission continues without signature")
		return "", nil
	}
	return filename, err
}

func (s *CaptureService) save(payload string) (string, error) {
	data, err := DecodePayload(payload, s.opts.MaxPayloadBytes)
	if err != nil {
		return "", err
	}
	return s.store.Save(data, s.opts.Prefix)
}

// SubmitEntry 保存签名字段并创建条目
// values中签名字段的值是base64数据，保存后替换为文件名；
// 任一签名无法解码时删除本次已保存的文件并返回错误
func (s *CaptureService) SubmitEntry(ctx context.Context, formID int, values map[string]string, sourceIP string) (uint, error) {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	stored := make(map[string]string, len(values))
	var saved []string
	rollback := func() {
		for _, name := range saved {
			if err := s.store.Delete(name); err != nil {
				s.logger.WithError(err).WithField("filename", name).Warn("failed to remove signature of rejected submission")
			}
		}
	}

	for _, key := range keys {
		value := values[key]
		isSignature, err := s.entries.IsSignatureField(ctx, formID, key)
		if err != nil {
			rollback()
			return 0, err
		}
		if !isSignature || strings.TrimSpace(value) == "" {
			stored[key] = value
			continue
		}

		filename, err := s.SaveCapture(value)
		if err != nil {
			rollback()
			return 0, err
		}
		if filename != "" {
			saved = append(saved, filename)
		}
		stored[key] = filename
	}

	id, err := s.entries.CreateEntry(ctx, formID, stored, sourceIP)
	if err != nil {
		rollback()
		return 0, err
	}

	s.logger.WithFields(logrus.Fields{
		"form_id":    formID,
		"entry_id":   id,
		"signatures": len(saved),
	}).Info("entry submitted")
	return id, nil
}

// signatureField 确认字段属于条目所在表单且为签名字段
func (s *CaptureService) signatureField(ctx context.Context, entryID uint, fieldID string) error {
	formID, err := s.entries.EntryFormID(ctx, entryID)
	if err != nil {
		return err
	}
	ok, err := s.entries.IsSignatureField(ctx, formID, fieldID)
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.ErrFieldNotSignedError
	}
	return nil
}

// SignAgain 重新签名：保存新文件、更新条目值、删除旧文件
// 条目值更新失败时删除新文件，保证字段只引用一个文件
func (s *CaptureService) SignAgain(ctx context.Context, entryID uint, fieldID, payload string) (string, error) {
	if err := s.signatureField(ctx, entryID, fieldID); err != nil {
		return "", err
	}

	old, err := s.entries.FieldValue(ctx, entryID, fieldID)
	if err != nil {
		return "", err
	}

	filename, err := s.save(payload)
	if err != nil {
		return "", err
	}

	if err := s.entries.SetFieldValue(ctx, entryID, fieldID, filename); err != nil {
		if delErr := s.store.Delete(filename); delErr != nil {
			s.logger.WithError(delErr).WithField("filename", filename).Error("failed to remove unreferenced signature")
		}
		return "", err
	}

	log := s.logger.WithFields(logrus.Fields{"entry_id": entryID, "field_id": fieldID, "filename": filename})
	if old != "" && old != filename {
		if err := s.store.Delete(old); err != nil {
			log.WithError(err).WithField("previous", old).Error("failed to delete replaced signature")
		}
	}
	log.Info("signature replaced")
	return filename, nil
}

// DeleteSignatureFile 删除签名文件，文件不存在视为成功
func (s *CaptureService) DeleteSignatureFile(filename string) error {
	return s.store.Delete(filename)
}

// DeleteSignatureForField 删除条目字段引用的签名文件并清空字段值
func (s *CaptureService) DeleteSignatureForField(ctx context.Context, entryID uint, fieldID string) error {
	if err := s.signatureField(ctx, entryID, fieldID); err != nil {
		return err
	}

	filename, err := s.entries.FieldValue(ctx, entryID, fieldID)
	if err != nil {
		return err
	}
	if filename == "" {
		return nil
	}

	log := s.logger.WithFields(logrus.Fields{"entry_id": entryID, "field_id": fieldID, "filename": filename})
	if err := s.store.Delete(filename); err != nil {
		if apperrors.CodeOf(err) != apperrors.ErrInvalidPath {
			return err
		}
		// 值本身不合法，不可能对应签名目录中的文件，直接清空
		log.Warn("entry references a signature outside the signature root")
	}

	if err := s.entries.SetFieldValue(ctx, entryID, fieldID, ""); err != nil {
		return err
	}
	log.Info("signature deleted")
	return nil
}

// DeleteEntry 删除条目及其所有签名文件
// 先删除条目再删除文件：条目删除失败时文件保持完整，
// 文件删除失败只留下无引用的孤立文件并记录日志
func (s *CaptureService) DeleteEntry(ctx context.Context, entryID uint) error {
	values, err := s.entries.SignatureValues(ctx, entryID)
	if err != nil {
		return err
	}

	if err := s.entries.DeleteEntry(ctx, entryID); err != nil {
		return err
	}

	for fieldID, filename := range values {
		if err := s.store.Delete(filename); err != nil {
			s.logger.WithError(err).WithFields(logrus.Fields{
				"entry_id": entryID,
				"field_id": fieldID,
				"filename": filename,
			}).Warn("failed to delete signature of deleted entry")
		}
	}
	return nil
}

// DeleteEntries 批量删除表单条目，status为空时删除全部
// 返回实际删除的条目数
func (s *CaptureService) DeleteEntries(ctx context.Context, formID int, status string) (int, error) {
	ids, err := s.entries.EntryIDs(ctx, formID, status)
	if err != nil {
		return 0, err
	}

	deleted := 0
	for _, id := range ids {
		if err := s.DeleteEntry(ctx, id); err != nil {
			if apperrors.CodeOf(err) == apperrors.ErrEntryNotFound {
				continue
			}
			return deleted, err
		}
		deleted++
	}

	s.logger.WithFields(logrus.Fields{"form_id": formID, "status": status, "deleted": deleted}).Info("entries deleted")
	return deleted, nil
}
