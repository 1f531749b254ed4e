// Package database 负责数据库连接初始化与表结构迁移
// 包含表单、条目与镜像同步日志等数据模型
package database

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/weiwangfds/scisign/config"
	applogger "github.com/weiwangfds/scisign/internal/logger"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// slowQueryThreshold 超过该耗时的SQL以警告级别记录
const slowQueryThreshold = 500 * time.Millisecond

// Init 初始化数据库连接并执行迁移
func Init(cfg config.DatabaseConfig) (*gorm.DB, error) {
	if cfg.Driver != "sqlite" {
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}

	memory := cfg.DSN == "" || strings.Contains(cfg.DSN, ":memory:")
	if !memory {
		if err := os.MkdirAll(filepath.Dir(strings.SplitN(cfg.DSN, "?", 2)[0]), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(sqliteDSN(cfg.DSN)), &gorm.Config{
		// SQL日志走logrus，记录不存在属于正常分支
		Logger: gormlogger.New(applogger.GetLogger(), gormlogger.Config{
			SlowThreshold:             slowQueryThreshold,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	// 内存数据库每个连接都是独立的库，只能保持一个连接
	if memory {
		sqlDB.SetMaxIdleConns(1)
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxIdleConns(max(cfg.MaxIdleConns, 1))
		sqlDB.SetMaxOpenConns(max(cfg.MaxOpenConns, 1))
		sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Second)
	}

	if err := Migrate(db); err != nil {
		return nil, fmt.Errorf("failed to auto migrate: %w", err)
	}

	applogger.Infof("database ready (driver=%s, dsn=%s)", cfg.Driver, cfg.DSN)
	return db, nil
}

// sqliteDSN 为文件数据库启用WAL等选项，内存数据库保持原样
func sqliteDSN(dsn string) string {
	if dsn == "" || strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "?") {
		return dsn
	}
	return dsn + "?_journal_mode=WAL&_synchronous=NORMAL&_timeout=5000&_busy_timeout=5000&_foreign_keys=1"
}
