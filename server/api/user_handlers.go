//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"trpc.group/trpc-go/trpc-agent-app/user"
)

type createUserRequest struct {
	FullName string `json:"full_name"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type updatePasswordRequest struct {
	Password string `json:"password"`
}

// writeUserError maps store errors to status codes.
func writeUserError(w http.ResponseWriter, username string, err error) {
	switch {
	case errors.Is(err, user.ErrUserExists):
		writeError(w, http.StatusBadRequest, fmt.Sprintf("User with username '%s' already exists.", username))
	case errors.Is(err, user.ErrUserNotFound):
		writeError(w, http.StatusNotFound, fmt.Sprintf("User with username '%s' not found.", username))
	case errors.Is(err, user.ErrInvalidUser):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	u, err := s.users.Create(r.Context(), req.FullName, req.Username, req.Password)
	if err != nil {
		writeUserError(w, req.Username, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.users.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	username := mux.Vars(r)["username"]
	u, err := s.users.Get(r.Context(), username)
	if err != nil {
		writeUserError(w, username, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (s *Server) handleUpdatePassword(w http.ResponseWriter, r *http.Request) {
	username := mux.Vars(r)["username"]
	var req updatePasswordRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	u, err := s.users.UpdatePassword(r.Context(), username, req.Password)
	if err != nil {
		writeUserError(w, username, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	username := mux.Vars(r)["username"]
	if err := s.users.Delete(r.Context(), username); err != nil {
		writeUserError(w, username, err)
		return
	}
	writeJSON(w, http.StatusOK, detailResponse{Detail: fmt.Sprintf("User '%s' deleted successfully.", username)})
}
