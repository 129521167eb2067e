package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/jmoiron/sqlx"

	"github.com/at-ishikawa/leetrecall/internal/database"
)

type kvEntry struct {
	Key   string `db:"entry_key"`
	Value string `db:"entry_value"`
}

// SQLKV stores entries in the kv_entries table. The queries are portable
// between MySQL and SQLite.
type SQLKV struct {
	db *sqlx.DB
}

var _ KV = (*SQLKV)(nil)

// NewSQLKV creates a new SQLKV. The schema must already be migrated.
func NewSQLKV(db *sqlx.DB) *SQLKV {
	return &SQLKV{db: db}
}

func (kv *SQLKV) Get(ctx context.Context, key string) ([]byte, error) {
	var value string
	err := kv.db.GetContext(ctx, &value, "SELECT entry_value FROM kv_entries WHERE entry_key = ?", key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get %q: %w", ErrUnavailable, key, err)
	}
	return []byte(value), nil
}

func (kv *SQLKV) GetMulti(ctx context.Context, keys []string) (map[string][]byte, error) {
	result := make(map[string][]byte, len(keys))
	if len(keys) == 0 {
		return result, nil
	}

	query, args, err := sqlx.In("SELECT entry_key, entry_value FROM kv_entries WHERE entry_key IN (?)", keys)
	if err != nil {
		return nil, fmt.Errorf("sqlx.In() > %w", err)
	}
	var rows []kvEntry
	if err := kv.db.SelectContext(ctx, &rows, kv.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("%w: get %d keys: %w", ErrUnavailable, len(keys), err)
	}
	for _, row := range rows {
		result[row.Key] = []byte(row.Value)
	}
	return result, nil
}

func (kv *SQLKV) Set(ctx context.Context, key string, value []byte) error {
	if _, err := kv.db.ExecContext(ctx, "REPLACE INTO kv_entries (entry_key, entry_value) VALUES (?, ?)", key, string(value)); err != nil {
		return fmt.Errorf("%w: set %q: %w", ErrUnavailable, key, err)
	}
	return nil
}

// SetMulti writes every entry with one multi-row REPLACE inside a transaction.
func (kv *SQLKV) SetMulti(ctx context.Context, entries map[string][]byte) error {
	if len(entries) == 0 {
		return nil
	}

	keys := make([]string, 0, len(entries))
	for key := range entries {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	args := make([]interface{}, 0, len(keys)*2)
	for _, key := range keys {
		args = append(args, key, string(entries[key]))
	}
	query := buildMultiRowReplace("kv_entries", []string{"entry_key", "entry_value"}, len(keys))

	err := database.RunInTx(ctx, kv.db, func(ctx context.Context, tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("replace %d entries: %w", len(keys), err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return nil
}

func (kv *SQLKV) Delete(ctx context.Context, key string) error {
	if _, err := kv.db.ExecContext(ctx, "DELETE FROM kv_entries WHERE entry_key = ?", key); err != nil {
		return fmt.Errorf("%w: delete %q: %w", ErrUnavailable, key, err)
	}
	return nil
}

// Scan compares a key prefix with SUBSTR so that LIKE wildcards in ids need no escaping.
func (kv *SQLKV) Scan(ctx context.Context, prefix string) (map[string][]byte, error) {
	var rows []kvEntry
	err := kv.db.SelectContext(ctx, &rows,
		"SELECT entry_key, entry_value FROM kv_entries WHERE SUBSTR(entry_key, 1, ?) = ?",
		utf8.RuneCountInString(prefix), prefix)
	if err != nil {
		return nil, fmt.Errorf("%w: scan %q: %w", ErrUnavailable, prefix, err)
	}

	result := make(map[string][]byte, len(rows))
	for _, row := range rows {
		result[row.Key] = []byte(row.Value)
	}
	return result, nil
}

func buildMultiRowReplace(table string, columns []string, rows int) string {
	placeholder := "(" + strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ") + ")"
	values := make([]string, rows)
	for i := range values {
		values[i] = placeholder
	}
	return fmt.Sprintf("REPLACE INTO %s (%s) VALUES %s", table, strings.Join(columns, ", "), strings.Join(values, ", "))
}
