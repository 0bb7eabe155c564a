//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package sqlite provides SQLite-based checkpoint storage for graph
// execution state persistence and recovery.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"trpc.group/trpc-go/trpc-agent-app/graph"
)

const (
	sqliteCreateCheckpoints = "CREATE TABLE IF NOT EXISTS checkpoints (" +
		"checkpoint_ns TEXT NOT NULL, " +
		"thread_id TEXT NOT NULL, " +
		"seq INTEGER NOT NULL, " +
		"checkpoint_id TEXT NOT NULL, " +
		"ts INTEGER NOT NULL, " +
		"checkpoint_json BLOB NOT NULL, " +
		"PRIMARY KEY (checkpoint_ns, thread_id, seq)" +
		")"

	sqliteInsertCheckpoint = "INSERT INTO checkpoints (" +
		"checkpoint_ns, thread_id, seq, checkpoint_id, ts, checkpoint_json) " +
		"VALUES (?, ?, ?, ?, ?, ?)"

	sqliteSelectLatest = "SELECT checkpoint_json FROM checkpoints " +
		"WHERE checkpoint_ns = ? AND thread_id = ? ORDER BY seq DESC LIMIT 1"

	sqliteSelectList = "SELECT checkpoint_json FROM checkpoints " +
		"WHERE checkpoint_ns = ? AND thread_id = ? ORDER BY seq DESC LIMIT ?"

	sqliteSelectThreads = "SELECT DISTINCT thread_id FROM checkpoints " +
		"WHERE checkpoint_ns = ? AND substr(thread_id, 1, ?) = ? ORDER BY thread_id"

	sqliteDeleteThread = "DELETE FROM checkpoints WHERE checkpoint_ns = ? AND thread_id = ?"
)

// Saver is a SQLite-backed implementation of graph.CheckpointSaver.
// It expects an initialized *sql.DB and will create the required schema.
// Each checkpoint is stored as one JSON blob.
type Saver struct {
	db *sql.DB
}

// NewSaver creates a new saver using the provided DB.
// The DB must use a SQLite driver. The constructor creates tables if needed.
func NewSaver(db *sql.DB) (*Saver, error) {
	if db == nil {
		return nil, errors.New("db is nil")
	}
	if _, err := db.Exec(sqliteCreateCheckpoints); err != nil {
		return nil, fmt.Errorf("create checkpoints table: %w", err)
	}
	return &Saver{db: db}, nil
}

// Put implements graph.CheckpointSaver.
func (s *Saver) Put(ctx context.Context, c *graph.Checkpoint) error {
	data, err := graph.EncodeCheckpoint(c)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, sqliteInsertCheckpoint,
		c.Namespace, c.ThreadID, c.Seq, c.ID, c.CreatedAt.UnixNano(), data)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("thread %s seq %d: %w", c.ThreadID, c.Seq, graph.ErrCheckpointConflict)
		}
		return fmt.Errorf("insert checkpoint: %w", err)
	}
	return nil
}

// Latest implements graph.CheckpointSaver.
func (s *Saver) Latest(ctx context.Context, namespace, threadID string) (*graph.Checkpoint, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, sqliteSelectLatest, namespace, threadID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("thread %s: %w", threadID, graph.ErrCheckpointNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("select latest: %w", err)
	}
	return graph.DecodeCheckpoint(data)
}

// List implements graph.CheckpointSaver.
func (s *Saver) List(ctx context.Context, namespace, threadID string, limit int) ([]*graph.Checkpoint, error) {
	if limit <= 0 {
		// SQLite treats a negative LIMIT as no limit.
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, sqliteSelectList, namespace, threadID, limit)
	if err != nil {
		return nil, fmt.Errorf("select checkpoints: %w", err)
	}
	defer rows.Close()
	var result []*graph.Checkpoint
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan checkpoint: %w", err)
		}
		c, err := graph.DecodeCheckpoint(data)
		if err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	return result, rows.Err()
}

// Threads implements graph.CheckpointSaver.
func (s *Saver) Threads(ctx context.Context, namespace, prefix string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, sqliteSelectThreads, namespace, len([]rune(prefix)), prefix)
	if err != nil {
		return nil, fmt.Errorf("select threads: %w", err)
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan thread: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// DeleteThread implements graph.CheckpointSaver.
func (s *Saver) DeleteThread(ctx context.Context, namespace, threadID string) error {
	if _, err := s.db.ExecContext(ctx, sqliteDeleteThread, namespace, threadID); err != nil {
		return fmt.Errorf("delete thread checkpoints: %w", err)
	}
	return nil
}

// Close implements graph.CheckpointSaver.
func (s *Saver) Close() error {
	return s.db.Close()
}

func isUniqueViolation(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "PRIMARY KEY")
}
