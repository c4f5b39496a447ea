package pg

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_DSN(t *testing.T) {
	dsn := Config{
		User:     "gateway",
		Password: "p@ss word",
		Host:     "db.internal",
		Port:     "5432",
		Database: "expenses",
	}.DSN()

	u, err := url.Parse(dsn)
	require.NoError(t, err)
	assert.Equal(t, "postgres", u.Scheme)
	assert.Equal(t, "db.internal:5432", u.Host)
	assert.Equal(t, "/expenses", u.Path)
	pass, _ := u.User.Password()
	assert.Equal(t, "p@ss word", pass)
	assert.Equal(t, "disable", u.Query().Get("sslmode"))
	assert.Equal(t, "10", u.Query().Get("connect_timeout"))
	assert.Empty(t, u.Query().Get("application_name"))
}

func TestConfig_DSN_SSLModeAndApplication(t *testing.T) {
	u, err := url.Parse(Config{Host: "h", Port: "1", SSLMode: "require", Application: "expensectl"}.DSN())
	require.NoError(t, err)
	assert.Equal(t, "require", u.Query().Get("sslmode"))
	assert.Equal(t, "expensectl", u.Query().Get("application_name"))
}
