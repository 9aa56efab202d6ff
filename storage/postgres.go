package storage

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/lib/pq"
)

type PSQLStorage struct {
	sqlStorage
}

// Creates a new Postgres Storage using the provided connection string.
//
// If clearDB is true, the database will be cleared on startup. You
// probably only want this for testing.
func NewPSQLStorage(connStr string, clearDB bool) (*PSQLStorage, error) {

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}

	err = db.Ping()
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}

	if clearDB {
		drops := []string{}
		for _, table := range allTables {
			drops = append(drops, fmt.Sprintf("DROP TABLE IF EXISTS %s;", table))
		}
		_, err = db.Exec(strings.Join(drops, "\n"))
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("clearing db: %w", err)
		}
	}

	d := psqlDialect{}
	err = createSchema(db, d)
	if err != nil {
		db.Close()
		return nil, err
	}

	return &PSQLStorage{
		sqlStorage: sqlStorage{db: db, d: d},
	}, nil
}

type psqlDialect struct{}

// Replaces ? placeholders with $1, $2, ...
func (psqlDialect) rebind(query string) string {
	b := strings.Builder{}
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (psqlDialect) anyOf(column string, values []string) (string, []interface{}) {
	return column + " = ANY(?)", []interface{}{pq.Array(values)}
}

func (psqlDialect) serialPrimaryKey() string {
	return "BIGSERIAL PRIMARY KEY"
}

// COPY FROM STDIN, within the writer's transaction.
func (psqlDialect) bulkInsert(tx *sql.Tx, table string, columns []string, rows [][]interface{}) error {
	stmt, err := tx.Prepare(pq.CopyIn(table, columns...))
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for _, row := range rows {
		_, err = stmt.Exec(row...)
		if err != nil {
			return fmt.Errorf("COPY %s: %w", table, err)
		}
	}

	_, err = stmt.Exec()
	if err != nil {
		return fmt.Errorf("executing statement: %w", err)
	}

	return nil
}
