// 包 migrate：首次运行时建表，保证看板读取与工单写入所需结构存在
package migrate

import (
	"context"
	"database/sql"
	"fmt"

	"screening-map/internal/logger"
	"screening-map/internal/utils"
)

// 背景：两种后端的自增主键与时间类型写法不同，其余结构一致
// 约束：全部使用 IF NOT EXISTS，重复执行无副作用
func EnsureSchema(ctx context.Context, db *sql.DB, d utils.Driver) error {
	serial, ts, now := "BIGSERIAL PRIMARY KEY", "TIMESTAMPTZ", "now()"
	if d == utils.SQLite {
		serial, ts, now = "INTEGER PRIMARY KEY AUTOINCREMENT", "TIMESTAMP", "CURRENT_TIMESTAMP"
	}
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS screening_records (
            id ` + serial + `,
            zona_id BIGINT NOT NULL,
            screening_location_id BIGINT NOT NULL,
            lat DOUBLE PRECISION NOT NULL DEFAULT 0,
            lon DOUBLE PRECISION NOT NULL DEFAULT 0,
            site_type TEXT NOT NULL DEFAULT '',
            district TEXT NOT NULL DEFAULT '',
            screened_count BIGINT NOT NULL DEFAULT 0,
            diagnosed_count BIGINT NOT NULL DEFAULT 0,
            period DATE
        )`,
		`CREATE INDEX IF NOT EXISTS idx_screening_records_location ON screening_records(screening_location_id)`,
		`CREATE TABLE IF NOT EXISTS neighborhood_stats (
            zona_id BIGINT PRIMARY KEY,
            rank INT NOT NULL DEFAULT 0,
            population_median DOUBLE PRECISION NOT NULL DEFAULT 0,
            district TEXT NOT NULL DEFAULT ''
        )`,
		`CREATE INDEX IF NOT EXISTS idx_neighborhood_stats_district ON neighborhood_stats(district)`,
		`CREATE TABLE IF NOT EXISTS tickets (
            id ` + serial + `,
            screening_location_id BIGINT NOT NULL,
            screened_count BIGINT NOT NULL DEFAULT 0,
            positive_count BIGINT NOT NULL DEFAULT 0,
            saved BOOLEAN NOT NULL DEFAULT FALSE,
            batch_id TEXT NOT NULL,
            created_at ` + ts + ` NOT NULL DEFAULT ` + now + `
        )`,
		`CREATE INDEX IF NOT EXISTS idx_tickets_batch ON tickets(batch_id)`,
	}
	l := logger.L()
	for i, s := range stmts {
		l.Debug("schema_exec", "idx", i, "driver", d)
		if _, err := db.ExecContext(ctx, s); err != nil {
			return fmt.Errorf("schema statement %d: %w", i, err)
		}
	}
	l.Debug("schema_done")
	return nil
}
