package database

import (
	"time"
)

// 镜像操作类型
const (
	MirrorOpUpload = "upload"
	MirrorOpDelete = "delete"
)

// 镜像同步状态
const (
	MirrorStatusSuccess = "success"
	MirrorStatusFailed  = "failed"
)

// MirrorLog 签名文件镜像同步日志
// 记录每个签名文件上传到（或从中删除）云存储的结果，用于追踪失败与重试
type MirrorLog struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	Filename  string    `gorm:"not null;size:128;index" json:"filename"`  // 签名文件名（不含扩展名）
	Provider  string    `gorm:"not null;size:20" json:"provider"`         // aliyun、tencent、qiniu
	Operation string    `gorm:"not null;size:20" json:"operation"`        // upload、delete
	Status    string    `gorm:"not null;size:20;index" json:"status"`     // success、failed
	ObjectKey string    `gorm:"size:500" json:"object_key"`               // 云端对象键
	Attempts  int       `gorm:"default:1" json:"attempts"`                // 尝试次数
	ErrorMsg  string    `gorm:"type:text" json:"error_msg,omitempty"`     // 失败原因
	FileSize  int64     `json:"file_size"`                                // 字节
	Duration  int64     `json:"duration"`                                 // 毫秒
	CreatedAt time.Time `json:"created_at"`
}

// TableName 指定MirrorLog模型对应的数据库表名
func (MirrorLog) TableName() string {
	return "mirror_logs"
}
