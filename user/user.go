//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package user manages user accounts. Passwords are stored as bcrypt
// hashes.
package user

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrUserExists is returned when the username is taken.
	ErrUserExists = errors.New("user already exists")
	// ErrUserNotFound is returned for an unknown username.
	ErrUserNotFound = errors.New("user not found")
	// ErrInvalidUser is returned when a required field is empty.
	ErrInvalidUser = errors.New("invalid user")
)

// HashCost is the bcrypt cost of new password hashes.
var HashCost = bcrypt.DefaultCost

// User is a user account.
type User struct {
	ID           int64     `json:"id"`
	FullName     string    `json:"full_name"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// CheckPassword reports whether password matches the stored hash.
func (u *User) CheckPassword(password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) == nil
}

// Store persists users.
type Store interface {
	// Create adds a user. It returns ErrUserExists when the username is
	// taken.
	Create(ctx context.Context, fullName, username, password string) (*User, error)
	// List returns every user, newest first.
	List(ctx context.Context) ([]*User, error)
	// Get returns the user with username or ErrUserNotFound.
	Get(ctx context.Context, username string) (*User, error)
	// UpdatePassword replaces the password and returns the updated user.
	UpdatePassword(ctx context.Context, username, password string) (*User, error)
	// Delete removes the user or returns ErrUserNotFound.
	Delete(ctx context.Context, username string) error
	// Close releases the store.
	Close() error
}

// HashPassword hashes password with HashCost.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", fmt.Errorf("%w: password is empty", ErrInvalidUser)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), HashCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// Validate checks the fields of a new user.
func Validate(fullName, username, password string) error {
	switch {
	case strings.TrimSpace(fullName) == "":
		return fmt.Errorf("%w: full name is empty", ErrInvalidUser)
	case strings.TrimSpace(username) == "":
		return fmt.Errorf("%w: username is empty", ErrInvalidUser)
	case password == "":
		return fmt.Errorf("%w: password is empty", ErrInvalidUser)
	}
	return nil
}
