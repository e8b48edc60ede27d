package db

import (
	"strings"

	"gorm.io/gorm"
)

// StripRowLocks removes FOR UPDATE clauses from raw queries. SQLite has no
// row locks and serializes writers at the database level instead.
func StripRowLocks(conn *gorm.DB) error {
	strip := func(d *gorm.DB) {
		sql := d.Statement.SQL.String()
		if !strings.Contains(sql, "FOR UPDATE") {
			return
		}
		newSQL := strings.ReplaceAll(sql, "FOR UPDATE SKIP LOCKED", "")
		newSQL = strings.ReplaceAll(newSQL, "FOR UPDATE", "")
		d.Statement.SQL.Reset()
		d.Statement.SQL.WriteString(newSQL)
	}

	if err := conn.Callback().Query().Before("gorm:query").Register("rentledger:strip_row_locks", strip); err != nil {
		return err
	}
	return conn.Callback().Row().Before("gorm:row").Register("rentledger:strip_row_locks_row", strip)
}
