// Package entry 提供表单与条目的存取服务
// 签名字段的条目值是签名文件名，本包只负责持久化，不接触签名文件本身
package entry

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/weiwangfds/scisign/internal/database"
	apperrors "github.com/weiwangfds/scisign/internal/errors"
	"gorm.io/gorm"
)

// EntryService 表单与条目服务接口
type EntryService interface {
	// CreateForm 创建表单及其字段
	// 参数:
	//   ctx - 上下文
	//   req - 创建表单请求
	// 返回:
	//   *database.Form - 创建的表单（含字段）
	//   error - 错误信息
	CreateForm(ctx context.Context, req *CreateFormRequest) (*database.Form, error)

	// GetForm 获取表单及其字段
	// 参数:
	//   ctx - 上下文
	//   formID - 表单ID
	// 返回:
	//   *database.Form - 表单信息
	//   error - 表单不存在时返回ErrFormNotFound
	GetForm(ctx context.Context, formID int) (*database.Form, error)

	// IsSignatureField 判断字段是否存在且为签名字段
	// fieldID可以是"3"或"3.1"，按整数部分查找
	IsSignatureField(ctx context.Context, formID int, fieldID string) (bool, error)

	// SignatureFieldIDs 返回表单中所有签名字段的编号
	SignatureFieldIDs(ctx context.Context, formID int) ([]int, error)

	// CreateEntry 创建条目，values的键是字段编号，整数部分必须是表单中的字段
	// 参数:
	//   ctx - 上下文
	//   formID - 表单ID
	//   values - 字段值，空值不保存
	//   sourceIP - 提交者IP
	// 返回:
	//   uint - 条目ID
	//   error - 错误信息
	CreateEntry(ctx context.Context, formID int, values map[string]string, sourceIP string) (uint, error)

	// GetEntry 获取条目及全部字段值
	GetEntry(ctx context.Context, entryID uint) (*database.Entry, error)

	// EntryFormID 返回条目所属表单ID
	EntryFormID(ctx context.Context, entryID uint) (int, error)

	// FieldValue 读取条目的单个字段值，未设置时返回空字符串
	FieldValue(ctx context.Context, entryID uint, fieldID string) (string, error)

	// SetFieldValue 设置条目的单个字段值，value为空时删除该值
	SetFieldValue(ctx context.Context, entryID uint, fieldID, value string) error

	// SignatureValues 返回条目中所有签名字段的值（字段编号 -> 文件名）
	SignatureValues(ctx context.Context, entryID uint) (map[string]string, error)

	// EntryIDs 列出表单的条目ID，status为空时不过滤
	EntryIDs(ctx context.Context, formID int, status string) ([]uint, error)

	// UpdateEntryStatus 修改条目状态：active、spam或trash
	// 参数:
	//   ctx - 上下文
	//   entryID - 条目ID
	//   status - 新状态
	// 返回:
	//   error - 状态无效返回ErrInvalidParams，条目不存在返回ErrEntryNotFound
	UpdateEntryStatus(ctx context.Context, entryID uint, status string) error

	// DeleteEntry 删除条目及其字段值
	DeleteEntry(ctx context.Context, entryID uint) error
}

// ValidEntryStatus 判断条目状态是否合法
func ValidEntryStatus(status string) bool {
	switch status {
	case database.EntryStatusActive, database.EntryStatusSpam, database.EntryStatusTrash:
		return true
	}
	return false
}

// CreateFormRequest 创建表单请求
type CreateFormRequest struct {
	Title  string         `json:"title" binding:"required,max=255"`
	Fields []FieldRequest `json:"fields" binding:"required,min=1,dive"`
}

// FieldRequest 表单字段定义
type FieldRequest struct {
	FieldID  int    `json:"field_id" binding:"required,min=1"`
	Type     string `json:"type" binding:"required,oneof=signature text email"`
	Label    string `json:"label" binding:"max=255"`
	Required bool   `json:"required"`
}

// entryService 条目服务实现
type entryService struct {
	db *gorm.DB
}

// NewEntryService 创建条目服务实例
// 参数:
//   db - 数据库连接
// 返回:
//   EntryService - 条目服务接口实例
func NewEntryService(db *gorm.DB) EntryService {
	return &entryService{
		db: db,
	}
}

// BaseFieldID 取字段编号的整数部分，"3.1" -> 3
func BaseFieldID(fieldID string) (int, bool) {
	base, _, _ := strings.Cut(fieldID, ".")
	id, err := strconv.Atoi(base)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// CreateForm 创建表单
func (s *entryService) CreateForm(ctx context.Context, req *CreateFormRequest) (*database.Form, error) {
	seen := make(map[int]bool, len(req.Fields))
	form := &database.Form{Title: strings.TrimSpace(req.Title)}
	for _, f := range req.Fields {
		if seen[f.FieldID] {
			return nil, apperrors.ErrInvalidParameters.WithDetails(fmt.Sprintf("duplicate field id %d", f.FieldID))
		}
		seen[f.FieldID] = true
		form.Fields = append(form.Fields, database.Field{
			FieldID:  f.FieldID,
			Type:     f.Type,
			Label:    f.Label,
			Required: f.Required,
		})
	}

	if err := s.db.WithContext(ctx).Create(form).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabaseInsert, "创建表单失败", err)
	}
	return form, nil
}

// GetForm 获取表单
func (s *entryService) GetForm(ctx context.Context, formID int) (*database.Form, error) {
	if formID <= 0 {
		return nil, apperrors.ErrFormNotFoundError
	}
	var form database.Form
	err := s.db.WithContext(ctx).
		Preload("Fields", func(db *gorm.DB) *gorm.DB { return db.Order("field_id ASC") }).
		First(&form, formID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrFormNotFoundError
		}
		return nil, apperrors.Wrap(apperrors.ErrDatabaseQuery, "获取表单失败", err)
	}
	return &form, nil
}

// IsSignatureField 判断签名字段
// 表单或字段不存在时返回false和nil
func (s *entryService) IsSignatureField(ctx context.Context, formID int, fieldID string) (bool, error) {
	base, ok := BaseFieldID(fieldID)
	if !ok || formID <= 0 {
		return false, nil
	}

	var field database.Field
	err := s.db.WithContext(ctx).
		Where("form_id = ? AND field_id = ?", formID, base).
		First(&field).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, apperrors.Wrap(apperrors.ErrDatabaseQuery, "查询字段失败", err)
	}
	return field.IsSignature(), nil
}

// SignatureFieldIDs 列出签名字段
func (s *entryService) SignatureFieldIDs(ctx context.Context, formID int) ([]int, error) {
	var ids []int
	err := s.db.WithContext(ctx).Model(&database.Field{}).
		Where("form_id = ? AND type = ?", formID, database.FieldTypeSignature).
		Order("field_id ASC").
		Pluck("field_id", &ids).Error
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabaseQuery, "查询签名字段失败", err)
	}
	return ids, nil
}

// CreateEntry 创建条目
func (s *entryService) CreateEntry(ctx context.Context, formID int, values map[string]string, sourceIP string) (uint, error) {
	form, err := s.GetForm(ctx, formID)
	if err != nil {
		return 0, err
	}
	known := make(map[int]bool, len(form.Fields))
	for _, f := range form.Fields {
		known[f.FieldID] = true
	}

	entry := &database.Entry{
		FormID:   uint(formID),
		Status:   database.EntryStatusActive,
		SourceIP: sourceIP,
	}
	for key, value := range values {
		if base, ok := BaseFieldID(key); !ok || !known[base] {
			return 0, apperrors.ErrFieldNotFoundError.WithDetails(fmt.Sprintf("field %q", key))
		}
		if value == "" {
			continue
		}
		entry.Values = append(entry.Values, database.EntryMeta{
			FormID:    uint(formID),
			MetaKey:   key,
			MetaValue: value,
		})
	}

	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		return 0, apperrors.Wrap(apperrors.ErrDatabaseInsert, "创建条目失败", err)
	}
	return entry.ID, nil
}

// GetEntry 获取条目
func (s *entryService) GetEntry(ctx context.Context, entryID uint) (*database.Entry, error) {
	var entry database.Entry
	err := s.db.WithContext(ctx).
		Preload("Values", func(db *gorm.DB) *gorm.DB { return db.Order("meta_key ASC") }).
		First(&entry, entryID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrEntryNotFoundError
		}
		return nil, apperrors.Wrap(apperrors.ErrDatabaseQuery, "获取条目失败", err)
	}
	return &entry, nil
}

// EntryFormID 查询条目所属表单
func (s *entryService) EntryFormID(ctx context.Context, entryID uint) (int, error) {
	var entry database.Entry
	err := s.db.WithContext(ctx).Select("id", "form_id").First(&entry, entryID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, apperrors.ErrEntryNotFoundError
		}
		return 0, apperrors.Wrap(apperrors.ErrDatabaseQuery, "获取条目失败", err)
	}
	return int(entry.FormID), nil
}

// FieldValue 读取字段值
func (s *entryService) FieldValue(ctx context.Context, entryID uint, fieldID string) (string, error) {
	if _, err := s.EntryFormID(ctx, entryID); err != nil {
		return "", err
	}

	var meta database.EntryMeta
	err := s.db.WithContext(ctx).
		Where("entry_id = ? AND meta_key = ?", entryID, fieldID).
		First(&meta).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil
		}
		return "", apperrors.Wrap(apperrors.ErrDatabaseQuery, "读取字段值失败", err)
	}
	return meta.MetaValue, nil
}

// SetFieldValue 设置字段值
func (s *entryService) SetFieldValue(ctx context.Context, entryID uint, fieldID, value string) error {
	formID, err := s.EntryFormID(ctx, entryID)
	if err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if value == "" {
			if err := tx.Where("entry_id = ? AND meta_key = ?", entryID, fieldID).
				Delete(&database.EntryMeta{}).Error; err != nil {
				return apperrors.Wrap(apperrors.ErrDatabaseDelete, "删除字段值失败", err)
			}
			return nil
		}

		var meta database.EntryMeta
		err := tx.Where("entry_id = ? AND meta_key = ?", entryID, fieldID).First(&meta).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			meta = database.EntryMeta{
				EntryID:   entryID,
				FormID:    uint(formID),
				MetaKey:   fieldID,
				MetaValue: value,
			}
			if err := tx.Create(&meta).Error; err != nil {
				return apperrors.Wrap(apperrors.ErrDatabaseInsert, "保存字段值失败", err)
			}
		case err != nil:
			return apperrors.Wrap(apperrors.ErrDatabaseQuery, "读取字段值失败", err)
		default:
			if err := tx.Model(&meta).Update("meta_value", value).Error; err != nil {
				return apperrors.Wrap(apperrors.ErrDatabaseUpdate, "更新字段值失败", err)
			}
		}
		return tx.Model(&database.Entry{}).Where("id = ?", entryID).
			Update("updated_at", time.Now()).Error
	})
}

// SignatureValues 签名字段的值
func (s *entryService) SignatureValues(ctx context.Context, entryID uint) (map[string]string, error) {
	formID, err := s.EntryFormID(ctx, entryID)
	if err != nil {
		return nil, err
	}
	ids, err := s.SignatureFieldIDs(ctx, formID)
	if err != nil {
		return nil, err
	}
	signature := make(map[int]bool, len(ids))
	for _, id := range ids {
		signature[id] = true
	}

	var metas []database.EntryMeta
	if err := s.db.WithContext(ctx).Where("entry_id = ?", entryID).Find(&metas).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabaseQuery, "读取条目值失败", err)
	}

	values := make(map[string]string)
	for _, m := range metas {
		if base, ok := BaseFieldID(m.MetaKey); ok && signature[base] && m.MetaValue != "" {
			values[m.MetaKey] = m.MetaValue
		}
	}
	return values, nil
}

// EntryIDs 列出条目ID
func (s *entryService) EntryIDs(ctx context.Context, formID int, status string) ([]uint, error) {
	query := s.db.WithContext(ctx).Model(&database.Entry{}).Where("form_id = ?", formID)
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var ids []uint
	if err := query.Order("id ASC").Pluck("id", &ids).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabaseQuery, "查询条目失败", err)
	}
	return ids, nil
}

// UpdateEntryStatus 修改条目状态
func (s *entryService) UpdateEntryStatus(ctx context.Context, entryID uint, status string) error {
	if !ValidEntryStatus(status) {
		return apperrors.ErrInvalidParameters.WithDetails(fmt.Sprintf("status %q", status))
	}

	res := s.db.WithContext(ctx).Model(&database.Entry{}).Where("id = ?", entryID).
		Updates(map[string]interface{}{"status": status, "updated_at": time.Now()})
	if res.Error != nil {
		return apperrors.Wrap(apperrors.ErrDatabaseUpdate, "更新条目状态失败", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.ErrEntryNotFoundError
	}
	return nil
}

// DeleteEntry 删除条目
// 显式删除字段值，不依赖SQLite的外键级联设置
func (s *entryService) DeleteEntry(ctx context.Context, entryID uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("entry_id = ?", entryID).Delete(&database.EntryMeta{}).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrDatabaseDelete, "删除条目值失败", err)
		}
		res := tx.Delete(&database.Entry{}, entryID)
		if res.Error != nil {
			return apperrors.Wrap(apperrors.ErrDatabaseDelete, "删除条目失败", res.Error)
		}
		if res.RowsAffected == 0 {
			return apperrors.ErrEntryNotFoundError
		}
		return nil
	})
}
