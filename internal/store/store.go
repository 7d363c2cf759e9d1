// 包 store：看板的数据访问层，读取原始记录与街区统计，写入确认工单
package store

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"time"

	"screening-map/internal/logger"
	"screening-map/internal/selection"
	"screening-map/internal/site"
	"screening-map/internal/utils"
)

// Store：数据库访问入口；查询统一以 $n 占位符书写，SQLite 下改写为 ?
type Store struct {
	db     *sql.DB
	driver utils.Driver
}

func AttachDB(db *sql.DB, d utils.Driver) *Store { return &Store{db: db, driver: d} }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Driver() utils.Driver { return s.driver }

var dollarParam = regexp.MustCompile(`\$\d+`)

func (s *Store) rebind(q string) string {
	if s.driver != utils.SQLite {
		return q
	}
	return dollarParam.ReplaceAllString(q, "?")
}

// ReadSiteRecords：全量读取原始上报记录，不分页
func (s *Store) ReadSiteRecords(ctx context.Context) ([]site.RawRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT zona_id, screening_location_id, lat, lon, site_type, district,
        screened_count, diagnosed_count, period FROM screening_records`)
	if err != nil {
		return nil, fmt.Errorf("read site records: %w", err)
	}
	defer rows.Close()
	var out []site.RawRecord
	for rows.Next() {
		var r site.RawRecord
		var period sql.NullTime
		if err := rows.Scan(&r.ZoneID, &r.ScreeningLocationID, &r.Lat, &r.Lon, &r.SiteType, &r.District,
			&r.Screened, &r.Diagnosed, &period); err != nil {
			return nil, fmt.Errorf("scan site record: %w", err)
		}
		if period.Valid {
			r.Period = period.Time
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read site records: %w", err)
	}
	logger.L().Debug("db_site_records", "rows", len(out))
	return out, nil
}

func (s *Store) ReadNeighborhoodStats(ctx context.Context) ([]site.NeighborhoodStat, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT zona_id, rank, population_median, district FROM neighborhood_stats`)
	if err != nil {
		return nil, fmt.Errorf("read neighborhood stats: %w", err)
	}
	defer rows.Close()
	var out []site.NeighborhoodStat
	for rows.Next() {
		var st site.NeighborhoodStat
		if err := rows.Scan(&st.ZoneID, &st.Rank, &st.PopulationMedian, &st.District); err != nil {
			return nil, fmt.Errorf("scan neighborhood stat: %w", err)
		}
		out = append(out, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read neighborhood stats: %w", err)
	}
	return out, nil
}

// 文档注释：写入确认工单
// 背景：一次确认对应一个事务，要么全部写入要么全部回滚，失败时调用方保留选中以便重试。
// 约束：筛查数与阳性数初始为 0，saved 为 false，由工单页后续编辑。
func (s *Store) Insert(ctx context.Context, rows []selection.PendingInsert) error {
	if len(rows) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("insert tickets: %w", err)
	}
	defer tx.Rollback()
	stmt, err := tx.PrepareContext(ctx, s.rebind(`INSERT INTO tickets(screening_location_id, screened_count, positive_count, saved, batch_id, created_at)
        VALUES($1, 0, 0, FALSE, $2, $3)`))
	if err != nil {
		return fmt.Errorf("insert tickets: %w", err)
	}
	defer stmt.Close()
	now := time.Now().UTC()
	for _, r := range rows {
		if _, err := stmt.ExecContext(ctx, r.ScreeningLocationID, r.BatchID.String(), now); err != nil {
			return fmt.Errorf("insert ticket %d: %w", r.ScreeningLocationID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("insert tickets: %w", err)
	}
	logger.L().Info("tickets_inserted", "rows", len(rows), "batch", rows[0].BatchID)
	return nil
}

// Ticket：工单行，供 CLI 与测试读取
type Ticket struct {
	ID                  int64
	ScreeningLocationID int64
	ScreenedCount       int64
	PositiveCount       int64
	Saved               bool
	BatchID             string
	CreatedAt           time.Time
}

// TicketsByBatch：按批次读取工单，按 id 升序
func (s *Store) TicketsByBatch(ctx context.Context, batch string) ([]Ticket, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`SELECT id, screening_location_id, screened_count, positive_count, saved, batch_id, created_at
        FROM tickets WHERE batch_id=$1 ORDER BY id`), batch)
	if err != nil {
		return nil, fmt.Errorf("read tickets: %w", err)
	}
	defer rows.Close()
	var out []Ticket
	for rows.Next() {
		var t Ticket
		if err := rows.Scan(&t.ID, &t.ScreeningLocationID, &t.ScreenedCount, &t.PositiveCount, &t.Saved, &t.BatchID, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan ticket: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// AddRecords：批量写入原始记录，供 sitectl 导入与测试造数
func (s *Store) AddRecords(ctx context.Context, recs []site.RawRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	stmt, err := tx.PrepareContext(ctx, s.rebind(`INSERT INTO screening_records(zona_id, screening_location_id, lat, lon, site_type, district,
        screened_count, diagnosed_count, period) VALUES($1, $2, $3, $4, $5, $6, $7, $8, $9)`))
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, r := range recs {
		var period any
		if !r.Period.IsZero() {
			period = r.Period
		}
		if _, err := stmt.ExecContext(ctx, r.ZoneID, r.ScreeningLocationID, r.Lat, r.Lon, r.SiteType, r.District,
			r.Screened, r.Diagnosed, period); err != nil {
			return fmt.Errorf("insert record %d: %w", r.ScreeningLocationID, err)
		}
	}
	return tx.Commit()
}

// UpsertStats：写入或覆盖街区统计
func (s *Store) UpsertStats(ctx context.Context, stats []site.NeighborhoodStat) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	stmt, err := tx.PrepareContext(ctx, s.rebind(`INSERT INTO neighborhood_stats(zona_id, rank, population_median, district)
        VALUES($1, $2, $3, $4)
        ON CONFLICT (zona_id) DO UPDATE SET rank=excluded.rank, population_median=excluded.population_median, district=excluded.district`))
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, st := range stats {
		if _, err := stmt.ExecContext(ctx, st.ZoneID, st.Rank, st.PopulationMedian, st.District); err != nil {
			return fmt.Errorf("upsert stat %d: %w", st.ZoneID, err)
		}
	}
	return tx.Commit()
}
