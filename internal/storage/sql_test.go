package storage

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockSQLKV(t *testing.T) (*SQLKV, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewSQLKV(sqlx.NewDb(db, "mysql")), mock
}

func TestSQLKV_Get(t *testing.T) {
	query := regexp.QuoteMeta("SELECT entry_value FROM kv_entries WHERE entry_key = ?")
	tests := []struct {
		name      string
		setup     func(mock sqlmock.Sqlmock)
		want      []byte
		wantError bool
	}{
		{
			name: "found",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(query).
					WithArgs("review:two-sum").
					WillReturnRows(sqlmock.NewRows([]string{"entry_value"}).AddRow(`{"interval":3}`))
			},
			want: []byte(`{"interval":3}`),
		},
		{
			name: "not found",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(query).
					WithArgs("review:two-sum").
					WillReturnError(sql.ErrNoRows)
			},
		},
		{
			name: "connection error",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(query).
					WithArgs("review:two-sum").
					WillReturnError(errors.New("connection refused"))
			},
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kv, mock := newMockSQLKV(t)
			tt.setup(mock)

			got, err := kv.Get(context.Background(), "review:two-sum")
			if tt.wantError {
				assert.ErrorIs(t, err, ErrUnavailable)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestSQLKV_GetMulti(t *testing.T) {
	kv, mock := newMockSQLKV(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT entry_key, entry_value FROM kv_entries WHERE entry_key IN (?, ?)")).
		WithArgs("item:two-sum", "review:two-sum").
		WillReturnRows(sqlmock.NewRows([]string{"entry_key", "entry_value"}).
			AddRow("item:two-sum", `{"id":"two-sum"}`))

	got, err := kv.GetMulti(context.Background(), []string{"item:two-sum", "review:two-sum"})

	require.NoError(t, err)
	assert.Equal(t, map[string][]byte{"item:two-sum": []byte(`{"id":"two-sum"}`)}, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLKV_SetMulti(t *testing.T) {
	query := regexp.QuoteMeta("REPLACE INTO kv_entries (entry_key, entry_value) VALUES (?, ?), (?, ?)")
	entries := map[string][]byte{
		"review:two-sum": []byte(`{"interval":1}`),
		"item:two-sum":   []byte(`{"id":"two-sum"}`),
	}

	tests := []struct {
		name      string
		setup     func(mock sqlmock.Sqlmock)
		wantError bool
	}{
		{
			name: "commits sorted rows",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec(query).
					WithArgs("item:two-sum", `{"id":"two-sum"}`, "review:two-sum", `{"interval":1}`).
					WillReturnResult(sqlmock.NewResult(0, 2))
				mock.ExpectCommit()
			},
		},
		{
			name: "rolls back on failure",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec(query).WillReturnError(errors.New("deadlock"))
				mock.ExpectRollback()
			},
			wantError: true,
		},
		{
			name: "begin fails",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin().WillReturnError(errors.New("connection refused"))
			},
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kv, mock := newMockSQLKV(t)
			tt.setup(mock)

			err := kv.SetMulti(context.Background(), entries)
			if tt.wantError {
				assert.ErrorIs(t, err, ErrUnavailable)
			} else {
				assert.NoError(t, err)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestSQLKV_Scan(t *testing.T) {
	kv, mock := newMockSQLKV(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT entry_key, entry_value FROM kv_entries WHERE SUBSTR(entry_key, 1, ?) = ?")).
		WithArgs(7, "review:").
		WillReturnRows(sqlmock.NewRows([]string{"entry_key", "entry_value"}).
			AddRow("review:a", "1").
			AddRow("review:b", "2"))

	got, err := kv.Scan(context.Background(), "review:")

	require.NoError(t, err)
	assert.Equal(t, map[string][]byte{"review:a": []byte("1"), "review:b": []byte("2")}, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLKV_SetAndDeleteErrors(t *testing.T) {
	kv, mock := newMockSQLKV(t)
	mock.ExpectExec(regexp.QuoteMeta("REPLACE INTO kv_entries (entry_key, entry_value) VALUES (?, ?)")).
		WithArgs("sync:cursor", "{}").
		WillReturnError(errors.New("read-only"))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM kv_entries WHERE entry_key = ?")).
		WithArgs("sync:cursor").
		WillReturnError(errors.New("read-only"))

	assert.ErrorIs(t, kv.Set(context.Background(), "sync:cursor", []byte("{}")), ErrUnavailable)
	assert.ErrorIs(t, kv.Delete(context.Background(), "sync:cursor"), ErrUnavailable)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBuildMultiRowReplace(t *testing.T) {
	tests := []struct {
		name    string
		columns []string
		rows    int
		want    string
	}{
		{
			name:    "single row",
			columns: []string{"entry_key", "entry_value"},
			rows:    1,
			want:    "REPLACE INTO kv_entries (entry_key, entry_value) VALUES (?, ?)",
		},
		{
			name:    "three rows",
			columns: []string{"entry_key", "entry_value"},
			rows:    3,
			want:    "REPLACE INTO kv_entries (entry_key, entry_value) VALUES (?, ?), (?, ?), (?, ?)",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, buildMultiRowReplace("kv_entries", tt.columns, tt.rows))
		})
	}
}
