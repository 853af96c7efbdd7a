package sqlitepool

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/ozontech/allure-go/pkg/framework/provider"
	"github.com/ozontech/allure-go/pkg/framework/suite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

type PoolSuite struct {
	suite.Suite

	dir string
}

func (s *PoolSuite) BeforeEach(t provider.T) {
	dir, err := os.MkdirTemp("", "sqlitepool-*")
	require.NoError(t, err)
	s.dir = dir
}

func (s *PoolSuite) AfterEach(t provider.T) {
	os.RemoveAll(s.dir)
}

func (s *PoolSuite) TestOpen(t provider.T) {
	t.Run("Should require a path", func(t provider.T) {
		_, err := Open(Config{})

		assert.Error(t, err)
	})

	t.Run("Should apply WAL and the OnConnect hook", func(t provider.T) {
		called := false
		pool, err := Open(Config{
			Path:     filepath.Join(s.dir, "test.db"),
			PoolSize: 2,
			OnConnect: func(conn *sqlite.Conn) error {
				called = true
				return sqlitex.ExecuteScript(conn, `CREATE TABLE IF NOT EXISTS t (v TEXT NOT NULL);`, nil)
			},
		})
		require.NoError(t, err)
		defer pool.Close()

		conn, err := pool.Take(context.Background())
		require.NoError(t, err)
		defer pool.Put(conn)

		var mode string
		err = sqlitex.Execute(conn, "PRAGMA journal_mode", &sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				mode = stmt.ColumnText(0)
				return nil
			},
		})
		require.NoError(t, err)
		assert.Equal(t, "wal", mode)
		assert.True(t, called)
		assert.NoError(t, sqlitex.Execute(conn, "INSERT INTO t (v) VALUES (?)", &sqlitex.ExecOptions{Args: []any{"ok"}}))
	})
}

func TestPoolSuite(t *testing.T) {
	suite.RunSuite(t, new(PoolSuite))
}
