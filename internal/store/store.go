// 包 store: 提供与 PostgreSQL 的数据访问层，记录区域浏览次数供运营统计
package store

import (
	"context"
	"database/sql"
	"errors"

	"cdi-map/internal/logger"

	_ "github.com/lib/pq"
)

// ErrEmptySlug：slug 为空时拒绝写入
var ErrEmptySlug = errors.New("store: empty slug")

// Store: 数据库访问入口，持有连接池并提供统计读写
type Store struct {
	db *sql.DB
}

func AttachDB(db *sql.DB) *Store { return &Store{db: db} }

// Open: 使用 DSN 打开数据库连接并配置连接池参数
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	return &Store{db: db}, nil
}

// Close: 关闭数据库连接
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

// 文档注释：确认进入区域后递增累计与当日浏览计数
// 背景：仅为运营统计，不保存任何用户状态；写入失败只返回错误，由调用方记录日志。
func (s *Store) IncrRegionView(ctx context.Context, slug string) error {
	if slug == "" {
		return ErrEmptySlug
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	if _, err := tx.ExecContext(ctx, `INSERT INTO _region_views_total(slug, views) VALUES($1, 1)
        ON CONFLICT (slug) DO UPDATE SET views=_region_views_total.views+1`, slug); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO _region_views_daily(day, slug, views) VALUES(current_date, $1, 1)
        ON CONFLICT (day, slug) DO UPDATE SET views=_region_views_daily.views+1`, slug); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	logger.L().Debug("stats_region_view_incr", "slug", slug)
	return nil
}

// RegionTotals: 单个区域的累计与当日浏览次数
type RegionTotals struct {
	Slug  string `json:"slug"`
	Total int64  `json:"total"`
	Today int64  `json:"today"`
}

// 文档注释：读取全部区域的浏览统计，按累计次数降序
func (s *Store) RegionTotals(ctx context.Context) ([]RegionTotals, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT t.slug, t.views, COALESCE(d.views, 0)
        FROM _region_views_total t
        LEFT JOIN _region_views_daily d ON d.slug = t.slug AND d.day = current_date
        ORDER BY t.views DESC, t.slug ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []RegionTotals{}
	for rows.Next() {
		var t RegionTotals
		if err := rows.Scan(&t.Slug, &t.Total, &t.Today); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	logger.L().Debug("stats_region_totals", "regions", len(out))
	return out, nil
}
