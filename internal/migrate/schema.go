package migrate

import (
	"database/sql"

	"cdi-map/internal/logger"
)

// 背景：首次运行自动创建区域浏览统计表
// 约束：使用 IF NOT EXISTS 避免与既有结构冲突；仅创建最小必需结构
func EnsureSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS _region_views_total (
            slug TEXT PRIMARY KEY,
            views BIGINT NOT NULL DEFAULT 0
        )`,
		`CREATE TABLE IF NOT EXISTS _region_views_daily (
            day DATE NOT NULL,
            slug TEXT NOT NULL,
            views BIGINT NOT NULL DEFAULT 0,
            PRIMARY KEY (day, slug)
        )`,
		`CREATE INDEX IF NOT EXISTS idx_region_views_daily_slug ON _region_views_daily(slug, day)`,
	}
	for i, s := range stmts {
		logger.L().Debug("schema_exec", "idx", i)
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	logger.L().Debug("schema_done")
	return nil
}
