package ledgertest

import (
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var faultSeq atomic.Int64

// ExecMatcher decides whether a raw statement should fail.
type ExecMatcher func(sql string, vars []any) bool

// FailExec makes every Exec statement accepted by match fail with err until
// the returned func is called. Queries and scans are never affected.
func FailExec(t testing.TB, conn *gorm.DB, match ExecMatcher, err error) (stop func()) {
	t.Helper()

	var armed atomic.Bool
	armed.Store(true)

	name := fmt.Sprintf("ledgertest:fail_exec_%d", faultSeq.Add(1))
	require.NoError(t, conn.Callback().Raw().Before("gorm:raw").Register(name, func(d *gorm.DB) {
		if !armed.Load() || d.Statement == nil {
			return
		}
		if match(d.Statement.SQL.String(), d.Statement.Vars) {
			_ = d.AddError(err)
		}
	}))
	return func() { armed.Store(false) }
}

// UpdateOf matches an UPDATE on table whose last bound argument is id.
func UpdateOf(table string, id snowflake.ID) ExecMatcher {
	prefix := "UPDATE " + table
	return func(sql string, vars []any) bool {
		if !strings.HasPrefix(strings.TrimSpace(sql), prefix) || len(vars) == 0 {
			return false
		}
		return fmt.Sprint(vars[len(vars)-1]) == id.String()
	}
}
