// Package authstore backs the login/register static-page rewrite with a
// SQL-backed credential check when the deployment opts in via config: a
// bounded connection pool guarding a single table of (username,
// password) rows, via database/sql's own pool (SetMaxOpenConns).
package authstore

import (
	"database/sql"
	"fmt"

	_ "github.com/go-sql-driver/mysql"
)

// Store verifies and registers credentials for the auth-gated static
// pages. VerifyAndRegister creates the account if the username is free.
type Store interface {
	VerifyLogin(username, password string) bool
	VerifyAndRegister(username, password string) bool
}

// disabledStore always fails, for deployments with enable_db=false —
// every login/register attempt lands on /error.html.
type disabledStore struct{}

func (disabledStore) VerifyLogin(string, string) bool      { return false }
func (disabledStore) VerifyAndRegister(string, string) bool { return false }

// Disabled returns the always-fail Store used when the config disables
// the database.
func Disabled() Store { return disabledStore{} }

// sqlStore is the real, pool-backed implementation.
type sqlStore struct {
	db *sql.DB
}

// Config carries the connection parameters read from the
// sql_host/sql_port/sql_username/sql_passwd/db_name/conn_pool_num keys.
type Config struct {
	Host        string
	Port        int
	Username    string
	Password    string
	DBName      string
	ConnPoolNum int
}

// New opens a bounded connection pool and returns a Store backed by it.
func New(cfg Config) (Store, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true",
		cfg.Username, cfg.Password, cfg.Host, cfg.Port, cfg.DBName)
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("authstore: open: %w", err)
	}
	n := cfg.ConnPoolNum
	if n <= 0 {
		n = 4
	}
	db.SetMaxOpenConns(n)
	db.SetMaxIdleConns(n)
	return &sqlStore{db: db}, nil
}

// Close releases the underlying connection pool.
func (s *sqlStore) Close() error { return s.db.Close() }

func (s *sqlStore) VerifyLogin(username, password string) bool {
	var stored string
	err := s.db.QueryRow("SELECT password FROM user WHERE username = ?", username).Scan(&stored)
	if err != nil {
		return false
	}
	return stored == password
}

func (s *sqlStore) VerifyAndRegister(username, password string) bool {
	var exists int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM user WHERE username = ?", username).Scan(&exists); err != nil {
		return false
	}
	if exists > 0 {
		return false
	}
	_, err := s.db.Exec("INSERT INTO user (username, password) VALUES (?, ?)", username, password)
	return err == nil
}
