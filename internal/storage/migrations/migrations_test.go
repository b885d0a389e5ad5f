package migrations

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_EmbeddedOrder(t *testing.T) {
	pg, err := load(PostgresFS, "postgres")
	require.NoError(t, err)
	require.Len(t, pg, 3)
	assert.Equal(t, "001_vaults", pg[0].Version)
	assert.Equal(t, "002_ledger", pg[1].Version)
	assert.Equal(t, "003_receipts", pg[2].Version)

	ch, err := load(ClickhouseFS, "clickhouse")
	require.NoError(t, err)
	require.Len(t, ch, 1)
	assert.Contains(t, ch[0].SQL, "vault_price_snapshots")
}

func TestLoad_SkipsEmptyAndNonSQL(t *testing.T) {
	fsys := fstest.MapFS{
		"m/002_b.sql":  {Data: []byte("SELECT 2;")},
		"m/001_a.sql":  {Data: []byte("SELECT 1;")},
		"m/003_c.sql":  {Data: []byte("  \n")},
		"m/README.txt": {Data: []byte("docs")},
	}

	got, err := load(fsys, "m")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "001_a", got[0].Version)
	assert.Equal(t, "002_b", got[1].Version)
}

func TestSplitStatements(t *testing.T) {
	sql := `-- header comment
CREATE TABLE a (x UInt8) ENGINE = Memory;

-- second
CREATE TABLE b (s String DEFAULT 'it''s') ENGINE = Memory;
`
	stmts, err := splitStatements(sql)
	require.NoError(t, err)
	require.Len(t, stmts, 2)
	assert.Equal(t, "CREATE TABLE a (x UInt8) ENGINE = Memory", stmts[0])
	assert.Equal(t, "CREATE TABLE b (s String DEFAULT 'it''s') ENGINE = Memory", stmts[1])
}

func TestSplitStatements_SemicolonInString(t *testing.T) {
	_, err := splitStatements(`INSERT INTO t VALUES ('a;b');`)
	assert.ErrorIs(t, err, ErrSemicolonInString)
}

func TestSplitStatements_EmbeddedClickhouse(t *testing.T) {
	ch, err := load(ClickhouseFS, "clickhouse")
	require.NoError(t, err)
	for _, m := range ch {
		stmts, err := splitStatements(m.SQL)
		require.NoError(t, err, m.Version)
		assert.NotEmpty(t, stmts, m.Version)
	}
}

func TestDatabaseFromDSN(t *testing.T) {
	db, err := databaseFromDSN("clickhouse://default:@localhost:9000/vaults")
	require.NoError(t, err)
	assert.Equal(t, "vaults", db)

	_, err = databaseFromDSN("clickhouse://localhost:9000")
	assert.Error(t, err)
}
