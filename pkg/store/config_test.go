package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseURL(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		wantType DatabaseType
		wantPath string
		wantURL  string
		wantErr  error
	}{
		{name: "relative sqlite", raw: "sqlite://data/taverna_bot.db", wantType: DatabaseTypeSQLite, wantPath: "data/taverna_bot.db"},
		{name: "absolute sqlite", raw: "sqlite:///var/lib/taverna.db", wantType: DatabaseTypeSQLite, wantPath: "/var/lib/taverna.db"},
		{name: "memory sqlite", raw: "sqlite://:memory:", wantType: DatabaseTypeSQLite, wantPath: MemoryPath},
		{name: "postgres", raw: "postgres://bot:pw@db:5432/taverna", wantType: DatabaseTypePostgres, wantURL: "postgres://bot:pw@db:5432/taverna"},
		{name: "postgresql", raw: "postgresql://bot@db/taverna?sslmode=disable", wantType: DatabaseTypePostgres, wantURL: "postgresql://bot@db/taverna?sslmode=disable"},
		{name: "empty", raw: "  ", wantErr: ErrInvalidURL},
		{name: "no scheme", raw: "data.db", wantErr: ErrInvalidURL},
		{name: "empty sqlite path", raw: "sqlite://", wantErr: ErrInvalidURL},
		{name: "mysql", raw: "mysql://root@localhost/db", wantErr: ErrUnsupportedScheme},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := ParseURL(tt.raw)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantType, cfg.Type)
			assert.Equal(t, tt.wantPath, cfg.SQLite.Path)
			assert.Equal(t, tt.wantURL, cfg.Postgres.URL)
			assert.NoError(t, cfg.Validate())
		})
	}
}

func TestConfigStringRedactsPassword(t *testing.T) {
	cfg, err := ParseURL("postgres://bot:secret@db:5432/taverna")
	require.NoError(t, err)
	assert.Equal(t, "postgres://bot:***@db:5432/taverna", cfg.String())
	assert.NotContains(t, cfg.String(), "secret")
}

func TestConfigApplyDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.ApplyDefaults()
	assert.Equal(t, DatabaseTypeSQLite, cfg.Type)
	assert.NotEmpty(t, cfg.SQLite.Path)

	pg := &Config{Type: DatabaseTypePostgres, Postgres: PostgresConfig{URL: "postgres://db/x"}}
	pg.ApplyDefaults()
	assert.Equal(t, 10, pg.Postgres.MaxOpenConns)
	assert.Equal(t, 2, pg.Postgres.MaxIdleConns)
}

func TestParseCommandName(t *testing.T) {
	c, err := ParseCommandName("logchannel")
	require.NoError(t, err)
	assert.Equal(t, CommandLogChannel, c)

	_, err = ParseCommandName("place_holder")
	assert.ErrorIs(t, err, ErrUnknownCommand)
}
