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
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"trpc.group/trpc-go/trpc-agent-app/agent"
	"trpc.group/trpc-go/trpc-agent-app/agent/reactagent"
	"trpc.group/trpc-go/trpc-agent-app/agent/sidekickagent"
	"trpc.group/trpc-go/trpc-agent-app/log"
	"trpc.group/trpc-go/trpc-agent-app/runner"
)

type runRequest struct {
	Message  string `json:"message"`
	ThreadID string `json:"thread_id,omitempty"`
	Username string `json:"username,omitempty"`
}

type sidekickRunRequest struct {
	runRequest
	SuccessCriteria string `json:"success_criteria,omitempty"`
}

type runResponse struct {
	AgentResponse string `json:"agent_response"`
	UserMessage   string `json:"user_message"`
	ThreadID      string `json:"thread_id"`
}

type sidekickRunResponse struct {
	runResponse
	Feedback           string `json:"feedback"`
	SuccessCriteriaMet bool   `json:"success_criteria_met"`
	UserInputNeeded    bool   `json:"user_input_needed"`
}

type threadsResponse struct {
	Threads []string `json:"threads"`
}

type messageOut struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesResponse struct {
	ThreadID string       `json:"thread_id"`
	Messages []messageOut `json:"messages"`
}

// threadID returns the thread of a run request. New threads are keyed
// "{username}_{conversation}".
func (s *Server) threadID(req runRequest) string {
	if req.ThreadID != "" {
		return req.ThreadID
	}
	username := req.Username
	if username == "" {
		username = anonymousUser
	}
	return username + "_" + s.newThreadID()
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	reply, ok := s.run(w, r, reactagent.Name, req)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, runResponse{
		AgentResponse: reply.Content,
		UserMessage:   req.Message,
		ThreadID:      reply.ThreadID,
	})
}

func (s *Server) handleSidekickRun(w http.ResponseWriter, r *http.Request) {
	var req sidekickRunRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	reply, ok := s.run(w, r, sidekickagent.Name, req.runRequest,
		agent.WithSuccessCriteria(req.SuccessCriteria))
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sidekickRunResponse{
		runResponse: runResponse{
			AgentResponse: reply.Content,
			UserMessage:   req.Message,
			ThreadID:      reply.ThreadID,
		},
		Feedback:           reply.Feedback,
		SuccessCriteriaMet: reply.SuccessCriteriaMet,
		UserInputNeeded:    reply.UserInputNeeded,
	})
}

// run executes one turn and writes the error response on failure.
func (s *Server) run(
	w http.ResponseWriter,
	r *http.Request,
	kind string,
	req runRequest,
	opts ...agent.RunOption,
) (*agent.Reply, bool) {
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return nil, false
	}
	handle, err := s.runner.Setup(r.Context(), kind)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Agent error: "+err.Error())
		return nil, false
	}
	threadID := s.threadID(req)
	reply, err := s.runner.Run(r.Context(), handle, threadID, req.Message, opts...)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Agent error: "+err.Error())
		return nil, false
	}
	if reply.Error != "" {
		log.Warnf("api: %s run of thread %s recovered from: %s", kind, threadID, reply.Error)
	}
	return reply, true
}

// agentKind reads the agent query parameter, default is the reactive agent.
func agentKind(r *http.Request) string {
	if kind := r.URL.Query().Get("agent"); kind != "" {
		return kind
	}
	return reactagent.Name
}

func (s *Server) writeRunnerError(w http.ResponseWriter, err error) {
	if errors.Is(err, runner.ErrUnknownAgent) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error())
}

func (s *Server) handleListThreads(w http.ResponseWriter, r *http.Request) {
	prefix := ""
	if username := r.URL.Query().Get("username"); username != "" {
		prefix = username + "_"
	}
	threads, err := s.runner.ListThreads(r.Context(), agentKind(r), prefix)
	if err != nil {
		s.writeRunnerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, threadsResponse{Threads: threads})
}

func (s *Server) handleGetMessages(w http.ResponseWriter, r *http.Request) {
	threadID := mux.Vars(r)["thread_id"]
	msgs, err := s.runner.GetMessages(r.Context(), agentKind(r), threadID)
	if err != nil {
		s.writeRunnerError(w, err)
		return
	}
	out := make([]messageOut, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, messageOut{Role: string(m.Role), Content: m.Content})
	}
	writeJSON(w, http.StatusOK, messagesResponse{ThreadID: threadID, Messages: out})
}
