package database

import (
	"gorm.io/gorm"
)

// Migrate 迁移全部表结构并创建查询用索引
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&Form{},
		&Field{},
		&Entry{},
		&EntryMeta{},
		&MirrorLog{},
	)
	if err != nil {
		return err
	}

	return createIndexes(db)
}

// createIndexes 创建复合索引
func createIndexes(db *gorm.DB) error {
	indexes := []string{
		// 按表单与状态批量删除条目
		"CREATE INDEX IF NOT EXISTS idx_entries_form_status ON entries(form_id, status)",
		// 按表单与字段列出签名文件名
		"CREATE INDEX IF NOT EXISTS idx_entry_meta_form_key ON entry_meta(form_id, meta_key)",
		"CREATE INDEX IF NOT EXISTS idx_mirror_logs_created ON mirror_logs(created_at DESC)",
	}

	for _, indexSQL := range indexes {
		if err := db.Exec(indexSQL).Error; err != nil {
			return err
		}
	}
	return nil
}
