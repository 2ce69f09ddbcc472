package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithStatementTimeout(t *testing.T) {
	tests := []struct {
		name string
		dsn  string
		want string
	}{
		{
			name: "url without query",
			dsn:  "postgres://u:p@localhost/db",
			want: "postgres://u:p@localhost/db?options=-c+statement_timeout%3D1500",
		},
		{
			name: "url with query",
			dsn:  "postgres://u:p@localhost/db?sslmode=disable",
			want: "postgres://u:p@localhost/db?options=-c+statement_timeout%3D1500&sslmode=disable",
		},
		{
			name: "url with existing options",
			dsn:  "postgresql://localhost/db?options=-c%20search_path%3Dzkl",
			want: "postgresql://localhost/db?options=-c+search_path%3Dzkl+-c+statement_timeout%3D1500",
		},
		{
			name: "key value",
			dsn:  "host=localhost dbname=db",
			want: "host=localhost dbname=db options='-c statement_timeout=1500'",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := withStatementTimeout(tt.dsn, 1500)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestWithStatementTimeout_BadURL(t *testing.T) {
	_, err := withStatementTimeout("postgres://local host:%zz/db", 1500)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse db url")
}

func TestNew_RejectsStatementTimeoutOutOfRange(t *testing.T) {
	for _, ms := range []int{-1, maxStatementTimeoutMS + 1} {
		_, err := New(context.Background(), Config{URL: "postgres://localhost/db", StatementTimeoutMS: ms})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "out of allowed range")
	}
}
