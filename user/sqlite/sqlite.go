//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package sqlite provides a SQLite-backed user.Store.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"trpc.group/trpc-go/trpc-agent-app/user"
)

const (
	sqliteCreateUsers = "CREATE TABLE IF NOT EXISTS users (" +
		"id INTEGER PRIMARY KEY AUTOINCREMENT, " +
		"full_name TEXT NOT NULL, " +
		"username TEXT NOT NULL UNIQUE, " +
		"password_hash TEXT NOT NULL, " +
		"created_at INTEGER NOT NULL, " +
		"updated_at INTEGER NOT NULL" +
		")"

	sqliteInsertUser = "INSERT INTO users (full_name, username, password_hash, created_at, updated_at) " +
		"VALUES (?, ?, ?, ?, ?)"

	sqliteSelectUsers = "SELECT id, full_name, username, password_hash, created_at, updated_at FROM users"

	sqliteSelectUser = sqliteSelectUsers + " WHERE username = ?"

	sqliteListUsers = sqliteSelectUsers + " ORDER BY created_at DESC, id DESC"

	sqliteUpdatePassword = "UPDATE users SET password_hash = ?, updated_at = ? WHERE username = ?"

	sqliteDeleteUser = "DELETE FROM users WHERE username = ?"
)

// Store is a SQLite-backed user.Store. Timestamps are kept as Unix
// nanoseconds.
type Store struct {
	db *sql.DB
}

var _ user.Store = (*Store)(nil)

// NewStore creates the users table if needed.
func NewStore(db *sql.DB) (*Store, error) {
	if db == nil {
		return nil, errors.New("db is nil")
	}
	if _, err := db.Exec(sqliteCreateUsers); err != nil {
		return nil, fmt.Errorf("create users table: %w", err)
	}
	return &Store{db: db}, nil
}

// Create implements user.Store.
func (s *Store) Create(ctx context.Context, fullName, username, password string) (*user.User, error) {
	if err := user.Validate(fullName, username, password); err != nil {
		return nil, err
	}
	hash, err := user.HashPassword(password)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, sqliteInsertUser, fullName, username, hash, now.UnixNano(), now.UnixNano())
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: %s", user.ErrUserExists, username)
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return &user.User{
		ID:           id,
		FullName:     fullName,
		Username:     username,
		PasswordHash: hash,
		CreatedAt:    time.Unix(0, now.UnixNano()).UTC(),
		UpdatedAt:    time.Unix(0, now.UnixNano()).UTC(),
	}, nil
}

// List implements user.Store.
func (s *Store) List(ctx context.Context) ([]*user.User, error) {
	rows, err := s.db.QueryContext(ctx, sqliteListUsers)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()
	users := []*user.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// Get implements user.Store.
func (s *Store) Get(ctx context.Context, username string) (*user.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, sqliteSelectUser, username))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", user.ErrUserNotFound, username)
	}
	return u, err
}

// UpdatePassword implements user.Store.
func (s *Store) UpdatePassword(ctx context.Context, username, password string) (*user.User, error) {
	hash, err := user.HashPassword(password)
	if err != nil {
		return nil, err
	}
	res, err := s.db.ExecContext(ctx, sqliteUpdatePassword, hash, time.Now().UTC().UnixNano(), username)
	if err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}
	if err := checkAffected(res, username); err != nil {
		return nil, err
	}
	return s.Get(ctx, username)
}

// Delete implements user.Store.
func (s *Store) Delete(ctx context.Context, username string) error {
	res, err := s.db.ExecContext(ctx, sqliteDeleteUser, username)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return checkAffected(res, username)
}

// Close implements user.Store.
func (s *Store) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(row scanner) (*user.User, error) {
	var (
		u                user.User
		created, updated int64
	)
	if err := row.Scan(&u.ID, &u.FullName, &u.Username, &u.PasswordHash, &created, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	u.CreatedAt = time.Unix(0, created).UTC()
	u.UpdatedAt = time.Unix(0, updated).UTC()
	return &u, nil
}

func checkAffected(res sql.Result, username string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", user.ErrUserNotFound, username)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
