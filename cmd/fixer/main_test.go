package main

import (
	"testing"

	"github.com/alecthomas/kong"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDatabaseFlagForms(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"short", []string{"-d", "/tmp/a.db", "currency"}, "/tmp/a.db"},
		{"long", []string{"--database", "/tmp/b.db", "currency"}, "/tmp/b.db"},
		{"dsn alias", []string{"--database-dsn", "/tmp/c.db", "currency"}, "/tmp/c.db"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var c struct {
				Globals

				Currency CurrencyCmd `cmd:""`
				Ingest   IngestCmd   `cmd:""`
				Serve    ServeCmd    `cmd:""`
			}
			parser, err := kong.New(&c)
			require.NoError(t, err)

			_, err = parser.Parse(tt.args)
			require.NoError(t, err)
			assert.Equal(t, tt.want, c.Database)
		})
	}
}
