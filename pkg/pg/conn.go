package pg

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"time"
)

const connectTimeout = 10 * time.Second

type Config struct {
	User        string `env:"USER"`
	Host        string `env:"HOST"`
	Port        string `env:"PORT"`
	Password    string `env:"PASSWORD"`
	Database    string `env:"DBNAME"`
	SSLMode     string `env:"SSLMODE,default=disable"`
	Application string `env:"APPLICATION,default=expense-gateway"`
}

// DSN renders the config as a postgres URL understood by both pgx and pq.
func (c Config) DSN() string {
	q := url.Values{}
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	q.Set("sslmode", sslMode)
	q.Set("connect_timeout", fmt.Sprint(int(connectTimeout.Seconds())))
	if c.Application != "" {
		q.Set("application_name", c.Application)
	}

	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     c.Host + ":" + c.Port,
		Path:     "/" + c.Database,
		RawQuery: q.Encode(),
	}
	return u.String()
}

// newSqlConnection opens a plain database/sql handle through lib/pq and
// checks it answers before returning.
func newSqlConnection(config Config) (*sql.DB, error) {
	db, err := sql.Open("postgres", config.DSN())
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connect %s/%s: %w", config.Host, config.Database, err)
	}
	return db, nil
}
