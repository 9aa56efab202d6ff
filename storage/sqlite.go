package storage

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

// SQLite caps bound parameters per statement at 999 in older builds.
const sqliteMaxParams = 999

type SQLiteConfig struct {
	OnDisk    bool
	Directory string
}

type SQLiteStorage struct {
	SQLiteConfig
	sqlStorage
}

func NewSQLiteStorage(cfg ...SQLiteConfig) (*SQLiteStorage, error) {
	onDisk := false
	directory := ""
	if len(cfg) > 0 {
		onDisk = cfg[0].OnDisk
		directory = cfg[0].Directory
	}

	sourceName := ":memory:"
	if onDisk {
		sourceName = directory + "/txc.db"
	}

	db, err := sql.Open("sqlite3", sourceName)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Every connection to :memory: is its own database, and on disk
	// a single writer avoids lock contention.
	db.SetMaxOpenConns(1)

	d := sqliteDialect{}
	err = createSchema(db, d)
	if err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteStorage{
		SQLiteConfig: SQLiteConfig{
			OnDisk:    onDisk,
			Directory: directory,
		},
		sqlStorage: sqlStorage{db: db, d: d},
	}, nil
}

type sqliteDialect struct{}

func (sqliteDialect) rebind(query string) string {
	return query
}

func (sqliteDialect) anyOf(column string, values []string) (string, []interface{}) {
	params := make([]interface{}, 0, len(values))
	for _, v := range values {
		params = append(params, v)
	}
	if len(values) == 0 {
		return "1 = 0", params
	}
	return fmt.Sprintf("%s IN (%s)", column, placeholders(len(values))), params
}

func (sqliteDialect) serialPrimaryKey() string {
	return "INTEGER PRIMARY KEY AUTOINCREMENT"
}

// Multi row INSERTs, as many rows per statement as the parameter
// limit allows.
func (sqliteDialect) bulkInsert(tx *sql.Tx, table string, columns []string, rows [][]interface{}) error {
	batchSize := max(sqliteMaxParams/len(columns), 1)
	rowPlaceholder := "(" + placeholders(len(columns)) + ")"

	for start := 0; start < len(rows); start += batchSize {
		batch := rows[start:min(start+batchSize, len(rows))]

		values := make([]string, 0, len(batch))
		params := make([]interface{}, 0, len(batch)*len(columns))
		for _, row := range batch {
			values = append(values, rowPlaceholder)
			params = append(params, row...)
		}

		query := fmt.Sprintf(
			"INSERT INTO %s (%s) VALUES %s",
			table, strings.Join(columns, ", "), strings.Join(values, ", "),
		)
		_, err := tx.Exec(query, params...)
		if err != nil {
			return err
		}
	}

	return nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
