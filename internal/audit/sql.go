package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"

	"github.com/John-Robertt/domainrouter-go/internal/model"
)

var schemas = map[string]string{
	"sqlite3": `CREATE TABLE IF NOT EXISTS removals (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		group_name TEXT NOT NULL,
		family TEXT NOT NULL,
		reason TEXT NOT NULL,
		entry TEXT NOT NULL,
		covered_by TEXT NOT NULL DEFAULT '',
		created_at INTEGER DEFAULT (strftime('%s', 'now'))
	)`,
	"mysql": `CREATE TABLE IF NOT EXISTS removals (
		id BIGINT UNSIGNED PRIMARY KEY AUTO_INCREMENT,
		run_id VARCHAR(64) NOT NULL,
		group_name VARCHAR(255) NOT NULL,
		family VARCHAR(16) NOT NULL,
		reason VARCHAR(32) NOT NULL,
		entry TEXT NOT NULL,
		covered_by TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		INDEX idx_removals_run (run_id)
	)`,
}

// SQLSink stores records in a "removals" table. Every Open starts a new
// run, identified by RunID.
type SQLSink struct {
	db     *sql.DB
	Driver string
	RunID  string
}

// OpenSQL opens driver ("sqlite3" or "mysql") and creates the table.
func OpenSQL(ctx context.Context, driver, dsn string) (*SQLSink, error) {
	schema, ok := schemas[driver]
	if !ok {
		return nil, sinkError("AUDIT_OPEN_ERROR", fmt.Sprintf("不支持的审计驱动：%s", driver), nil)
	}
	if driver == "mysql" {
		cfg, err := mysql.ParseDSN(dsn)
		if err != nil {
			return nil, sinkError("AUDIT_OPEN_ERROR", "mysql DSN 不合法", err)
		}
		if cfg.Params == nil {
			cfg.Params = map[string]string{}
		}
		cfg.Params["charset"] = "utf8mb4"
		dsn = cfg.FormatDSN()
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, sinkError("AUDIT_OPEN_ERROR", "打开审计数据库失败", err)
	}
	if driver == "sqlite3" {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, sinkError("AUDIT_OPEN_ERROR", "连接审计数据库失败", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, sinkError("AUDIT_OPEN_ERROR", "创建审计表失败", err)
	}

	return &SQLSink{
		db:     db,
		Driver: driver,
		RunID:  time.Now().UTC().Format("20060102T150405.000000000Z"),
	}, nil
}

// Append inserts records inside one transaction.
func (s *SQLSink) Append(ctx context.Context, group string, records []model.Removal) error {
	if len(records) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return sinkError("AUDIT_WRITE_ERROR", "开启审计事务失败", err)
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO removals (run_id, group_name, family, reason, entry, covered_by) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		_ = tx.Rollback()
		return sinkError("AUDIT_WRITE_ERROR", "准备审计语句失败", err)
	}
	defer stmt.Close()

	for _, r := range records {
		if _, err := stmt.ExecContext(ctx, s.RunID, group, string(r.Family), string(r.Reason), r.Entry, r.CoveredBy); err != nil {
			_ = tx.Rollback()
			return sinkError("AUDIT_WRITE_ERROR", "写入审计记录失败", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return sinkError("AUDIT_WRITE_ERROR", "提交审计事务失败", err)
	}
	return nil
}

// CountByReason summarizes the current run.
func (s *SQLSink) CountByReason(ctx context.Context) (map[model.RemovalReason]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT reason, COUNT(*) FROM removals WHERE run_id = ? GROUP BY reason`, s.RunID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[model.RemovalReason]int)
	for rows.Next() {
		var reason string
		var n int
		if err := rows.Scan(&reason, &n); err != nil {
			return nil, err
		}
		out[model.RemovalReason(reason)] = n
	}
	return out, rows.Err()
}

// Records returns the records of group in the current run, in insert order.
func (s *SQLSink) Records(ctx context.Context, group string) ([]model.Removal, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT family, reason, entry, covered_by FROM removals WHERE run_id = ? AND group_name = ? ORDER BY id`,
		s.RunID, group)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Removal
	for rows.Next() {
		var family, reason string
		var r model.Removal
		if err := rows.Scan(&family, &reason, &r.Entry, &r.CoveredBy); err != nil {
			return nil, err
		}
		r.Family = model.Family(family)
		r.Reason = model.RemovalReason(reason)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLSink) Close() error { return s.db.Close() }
