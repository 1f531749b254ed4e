package database

import (
	"time"
)

// 字段类型
const (
	FieldTypeSignature = "signature"
	FieldTypeText      = "text"
	FieldTypeEmail     = "email"
)

// 条目状态
const (
	EntryStatusActive = "active"
	EntryStatusSpam   = "spam"
	EntryStatusTrash  = "trash"
)

// Form 表单模型
type Form struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	Title     string    `gorm:"not null;size:255" json:"title"`
	Fields    []Field   `gorm:"foreignKey:FormID;constraint:OnDelete:CASCADE" json:"fields"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName 指定Form模型对应的数据库表名
func (Form) TableName() string {
	return "forms"
}

// Field 表单字段模型
// FieldID是表单内的字段编号，与条目值的键（如"3"或"3.1"）的整数部分对应
type Field struct {
	ID       uint   `gorm:"primarykey" json:"-"`
	FormID   uint   `gorm:"not null;uniqueIndex:idx_fields_form_field" json:"form_id"`
	FieldID  int    `gorm:"not null;uniqueIndex:idx_fields_form_field" json:"field_id"`
	Type     string `gorm:"not null;size:50" json:"type"`
	Label    string `gorm:"size:255" json:"label"`
	Required bool   `gorm:"default:false" json:"required"`
}

// TableName 指定Field模型对应的数据库表名
func (Field) TableName() string {
	return "form_fields"
}

// IsSignature 是否为签名字段
func (f Field) IsSignature() bool {
	return f.Type == FieldTypeSignature
}

// Entry 表单条目模型
type Entry struct {
	ID        uint        `gorm:"primarykey" json:"id"`
	FormID    uint        `gorm:"not null;index" json:"form_id"`
	Status    string      `gorm:"not null;size:20;default:active;index" json:"status"`
	SourceIP  string      `gorm:"size:45" json:"source_ip,omitempty"`
	Values    []EntryMeta `gorm:"foreignKey:EntryID;constraint:OnDelete:CASCADE" json:"-"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// TableName 指定Entry模型对应的数据库表名
func (Entry) TableName() string {
	return "entries"
}

// EntryMeta 条目字段值
// 签名字段的值是签名文件名（不含扩展名）
type EntryMeta struct {
	ID        uint   `gorm:"primarykey" json:"-"`
	EntryID   uint   `gorm:"not null;uniqueIndex:idx_entry_meta_key" json:"entry_id"`
	FormID    uint   `gorm:"not null;index" json:"form_id"`
	MetaKey   string `gorm:"not null;size:32;uniqueIndex:idx_entry_meta_key" json:"key"`
	MetaValue string `gorm:"type:text" json:"value"`
}

// TableName 指定EntryMeta模型对应的数据库表名
func (EntryMeta) TableName() string {
	return "entry_meta"
}
