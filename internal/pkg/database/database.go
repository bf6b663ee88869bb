package database

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"k8s.io/klog/v2"

	"github.com/structgen/backend/config"
	"github.com/structgen/backend/internal/model"
)

const memoryDSN = ":memory:"

// InitDB 打开生成历史库并迁移表结构
func InitDB(cfg config.DatabaseConfig) (*gorm.DB, error) {
	var dialector gorm.Dialector

	switch cfg.Type {
	case "mysql":
		dialector = mysql.Open(cfg.DSN)
	case "", "sqlite":
		if err := ensureDataDir(cfg.DSN); err != nil {
			return nil, fmt.Errorf("prepare sqlite dir: %w", err)
		}
		dialector = sqlite.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database type %q", cfg.Type)
	}

	// SQL 日志只在高 verbosity 下输出
	level := logger.Silent
	if klog.V(8).Enabled() {
		level = logger.Info
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(level)})
	if err != nil {
		return nil, err
	}

	if cfg.DSN == memoryDSN {
		// 每个连接各自持有一份内存库，必须固定为单连接
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}

	if err := db.AutoMigrate(&model.GenerationRecord{}); err != nil {
		return nil, err
	}
	klog.V(6).Infof("[Database] 生成历史库已就绪: type=%s", cfg.Type)
	return db, nil
}

func ensureDataDir(dsn string) error {
	if dsn == memoryDSN {
		return nil
	}
	dir := filepath.Dir(dsn)
	if dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0755)
}
