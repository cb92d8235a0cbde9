// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package integration runs the full client stack against an in-process
// DPDA designer service. The fake service implements the real wire
// contract, including a working pushdown interpreter, so scenarios
// exercise caching, invalidation, and session identity end to end.
package integration

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/pdasync/pkg/dpda"
	"github.com/AleutianAI/pdasync/pkg/validation"
)

const defaultMaxSteps = 1000

// fakeService is the in-memory DPDA designer backend.
type fakeService struct {
	mu       sync.Mutex
	machines map[string]*dpda.Machine
	order    []string
	seq      int

	// sessions counts requests per session token, for asserting the
	// header reaches the server.
	sessions map[string]int
}

func newFakeService() *fakeService {
	return &fakeService{
		machines: make(map[string]*dpda.Machine),
		sessions: make(map[string]int),
	}
}

// sessionCount returns how many requests carried the given token.
func (s *fakeService) sessionCount(token string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions[token]
}

// sessionTokens returns every distinct token seen.
func (s *fakeService) sessionTokens() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	tokens := make([]string, 0, len(s.sessions))
	for tok := range s.sessions {
		tokens = append(tokens, tok)
	}
	return tokens
}

func (s *fakeService) router() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(s.requireSession)

	api := r.Group("/api/dpda")
	api.POST("/create", s.handleCreate)
	api.GET("/list", s.handleList)
	api.GET("/:id", s.handleGet)
	api.PATCH("/:id", s.handleUpdate)
	api.DELETE("/:id", s.handleDelete)
	api.PUT("/:id/states", s.handleSetStates)
	api.PATCH("/:id/states", s.handlePatchStates)
	api.PUT("/:id/alphabets", s.handleSetAlphabets)
	api.PATCH("/:id/alphabets", s.handlePatchAlphabets)
	api.GET("/:id/transitions", s.handleTransitions)
	api.POST("/:id/transition", s.handleAddTransition)
	api.DELETE("/:id/transition/:index", s.handleDeleteTransition)
	api.PUT("/:id/transition/:index", s.handleUpdateTransition)
	api.POST("/:id/compute", s.handleCompute)
	api.POST("/:id/validate", s.handleValidate)
	api.GET("/:id/export", s.handleExport)
	api.GET("/:id/visualize", s.handleVisualize)
	return r
}

// requireSession rejects requests without a well-formed session header
// and counts requests per token.
func (s *fakeService) requireSession(c *gin.Context) {
	token := c.GetHeader("X-Session-ID")
	if err := validation.ValidateSessionToken(token); err != nil {
		abortError(c, http.StatusUnauthorized, "missing or malformed X-Session-ID", err.Error())
		return
	}
	s.mu.Lock()
	s.sessions[token]++
	s.mu.Unlock()
	c.Next()
}

func abortError(c *gin.Context, status int, msg, detail string) {
	c.AbortWithStatusJSON(status, gin.H{
		"error":       msg,
		"detail":      detail,
		"status_code": status,
	})
}

// lookup fetches a machine or writes a 404.
func (s *fakeService) lookup(c *gin.Context) (*dpda.Machine, bool) {
	m, ok := s.machines[c.Param("id")]
	if !ok {
		abortError(c, http.StatusNotFound, "dpda not found", c.Param("id"))
		return nil, false
	}
	return m, true
}

func (s *fakeService) handleCreate(c *gin.Context) {
	var req dpda.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortError(c, http.StatusBadRequest, "invalid body", err.Error())
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	m := &dpda.Machine{
		ID:          fmt.Sprintf("m-%d", s.seq),
		Name:        req.Name,
		Description: req.Description,
		CreatedAt:   time.Now().UTC().Format(time.RFC3339),
	}
	s.machines[m.ID] = m
	s.order = append(s.order, m.ID)
	c.JSON(http.StatusCreated, m)
}

func (s *fakeService) handleList(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := dpda.MachineList{DPDAs: []dpda.Machine{}}
	for _, id := range s.order {
		if m, ok := s.machines[id]; ok {
			list.DPDAs = append(list.DPDAs, *m)
		}
	}
	list.Total = len(list.DPDAs)
	c.JSON(http.StatusOK, list)
}

func (s *fakeService) handleGet(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.lookup(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, m)
}

func (s *fakeService) handleUpdate(c *gin.Context) {
	var req dpda.UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortError(c, http.StatusBadRequest, "invalid body", err.Error())
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.lookup(c)
	if !ok {
		return
	}

	changes := map[string]any{}
	if req.Name != nil {
		m.Name = *req.Name
		changes["name"] = *req.Name
	}
	if req.Description != nil {
		m.Description = *req.Description
		changes["description"] = *req.Description
	}
	c.JSON(http.StatusOK, dpda.ChangesResponse{Changes: changes})
}

func (s *fakeService) handleDelete(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.lookup(c); !ok {
		return
	}
	delete(s.machines, c.Param("id"))
	c.JSON(http.StatusOK, dpda.DeleteResponse{Success: true, Message: "deleted"})
}

func (s *fakeService) handleSetStates(c *gin.Context) {
	var cfg dpda.StatesConfig
	if err := c.ShouldBindJSON(&cfg); err != nil {
		abortError(c, http.StatusBadRequest, "invalid body", err.Error())
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.lookup(c)
	if !ok {
		return
	}
	m.States = &cfg
	m.IsValid = nil
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *fakeService) handlePatchStates(c *gin.Context) {
	var patch dpda.StatesPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		abortError(c, http.StatusBadRequest, "invalid body", err.Error())
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.lookup(c)
	if !ok {
		return
	}
	if m.States == nil {
		m.States = &dpda.StatesConfig{}
	}

	changes := map[string]any{}
	if patch.States != nil {
		m.States.States = *patch.States
		changes["states"] = *patch.States
	}
	if patch.InitialState != nil {
		m.States.InitialState = *patch.InitialState
		changes["initial_state"] = *patch.InitialState
	}
	if patch.AcceptStates != nil {
		m.States.AcceptStates = *patch.AcceptStates
		changes["accept_states"] = *patch.AcceptStates
	}
	m.IsValid = nil
	c.JSON(http.StatusOK, dpda.ChangesResponse{Changes: changes})
}

func (s *fakeService) handleSetAlphabets(c *gin.Context) {
	var cfg dpda.AlphabetsConfig
	if err := c.ShouldBindJSON(&cfg); err != nil {
		abortError(c, http.StatusBadRequest, "invalid body", err.Error())
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.lookup(c)
	if !ok {
		return
	}
	m.Alphabets = &cfg
	m.IsValid = nil
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *fakeService) handlePatchAlphabets(c *gin.Context) {
	var patch dpda.AlphabetsPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		abortError(c, http.StatusBadRequest, "invalid body", err.Error())
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.lookup(c)
	if !ok {
		return
	}
	if m.Alphabets == nil {
		m.Alphabets = &dpda.AlphabetsConfig{}
	}

	changes := map[string]any{}
	if patch.InputAlphabet != nil {
		m.Alphabets.InputAlphabet = *patch.InputAlphabet
		changes["input_alphabet"] = *patch.InputAlphabet
	}
	if patch.StackAlphabet != nil {
		m.Alphabets.StackAlphabet = *patch.StackAlphabet
		changes["stack_alphabet"] = *patch.StackAlphabet
	}
	if patch.InitialStackSymbol != nil {
		m.Alphabets.InitialStackSymbol = *patch.InitialStackSymbol
		changes["initial_stack_symbol"] = *patch.InitialStackSymbol
	}
	m.IsValid = nil
	c.JSON(http.StatusOK, dpda.ChangesResponse{Changes: changes})
}

func (s *fakeService) handleTransitions(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.lookup(c)
	if !ok {
		return
	}
	trs := m.Transitions
	if trs == nil {
		trs = []dpda.Transition{}
	}
	c.JSON(http.StatusOK, dpda.TransitionList{Transitions: trs, Total: len(trs)})
}

func (s *fakeService) handleAddTransition(c *gin.Context) {
	var tr dpda.Transition
	if err := c.ShouldBindJSON(&tr); err != nil {
		abortError(c, http.StatusBadRequest, "invalid body", err.Error())
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.lookup(c)
	if !ok {
		return
	}
	m.Transitions = append(m.Transitions, tr)
	m.IsValid = nil
	c.JSON(http.StatusCreated, gin.H{"success": true})
}

func (s *fakeService) transitionIndex(c *gin.Context, m *dpda.Machine) (int, bool) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil || index < 0 || index >= len(m.Transitions) {
		abortError(c, http.StatusUnprocessableEntity, "transition index out of range", c.Param("index"))
		return 0, false
	}
	return index, true
}

func (s *fakeService) handleDeleteTransition(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.lookup(c)
	if !ok {
		return
	}
	index, ok := s.transitionIndex(c, m)
	if !ok {
		return
	}

	m.Transitions = append(m.Transitions[:index], m.Transitions[index+1:]...)
	m.IsValid = nil
	remaining := len(m.Transitions)
	c.JSON(http.StatusOK, dpda.DeleteTransitionResponse{
		Success:              true,
		Message:              "deleted",
		RemainingTransitions: &remaining,
	})
}

func (s *fakeService) handleUpdateTransition(c *gin.Context) {
	var tr dpda.Transition
	if err := c.ShouldBindJSON(&tr); err != nil {
		abortError(c, http.StatusBadRequest, "invalid body", err.Error())
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.lookup(c)
	if !ok {
		return
	}
	index, ok := s.transitionIndex(c, m)
	if !ok {
		return
	}

	m.Transitions[index] = tr
	m.IsValid = nil
	c.JSON(http.StatusOK, dpda.ChangesResponse{Changes: map[string]any{"index": index}})
}

func (s *fakeService) handleCompute(c *gin.Context) {
	var req dpda.ComputeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortError(c, http.StatusBadRequest, "invalid body", err.Error())
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.lookup(c)
	if !ok {
		return
	}
	if m.States == nil || m.Alphabets == nil {
		abortError(c, http.StatusConflict, "machine not fully configured", m.ID)
		return
	}
	c.JSON(http.StatusOK, runMachine(m, req))
}

func (s *fakeService) handleValidate(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.lookup(c)
	if !ok {
		return
	}

	result := validateMachine(m)
	m.IsValid = &result.IsValid
	c.JSON(http.StatusOK, result)
}

func (s *fakeService) handleExport(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.lookup(c)
	if !ok {
		return
	}

	switch dpda.ExportFormat(c.Query("format")) {
	case dpda.ExportJSON, "":
		c.JSON(http.StatusOK, m)
	case dpda.ExportYAML:
		data, err := yaml.Marshal(m)
		if err != nil {
			abortError(c, http.StatusInternalServerError, "yaml export failed", err.Error())
			return
		}
		c.Data(http.StatusOK, "application/yaml", data)
	case dpda.ExportXML:
		c.XML(http.StatusOK, m)
	default:
		abortError(c, http.StatusBadRequest, "unsupported export format", c.Query("format"))
	}
}

func (s *fakeService) handleVisualize(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.lookup(c)
	if !ok {
		return
	}

	snap := snapshotOf(m)
	switch dpda.VizFormat(c.Query("format")) {
	case dpda.VizD3, "":
		c.JSON(http.StatusOK, snap)
	case dpda.VizDOT:
		c.String(http.StatusOK, renderDOT(snap))
	case dpda.VizCytoscape:
		elements := make([]gin.H, 0, len(snap.Nodes)+len(snap.Edges))
		for _, n := range snap.Nodes {
			elements = append(elements, gin.H{"data": gin.H{"id": n.ID, "label": n.Label}})
		}
		for i, e := range snap.Edges {
			elements = append(elements, gin.H{"data": gin.H{
				"id":     fmt.Sprintf("e%d", i),
				"source": e.Source,
				"target": e.Target,
				"label":  e.Label,
			}})
		}
		c.JSON(http.StatusOK, gin.H{"elements": elements})
	default:
		abortError(c, http.StatusBadRequest, "unsupported visualization format", c.Query("format"))
	}
}

// snapshotOf builds the d3 graph for a machine.
func snapshotOf(m *dpda.Machine) *dpda.Snapshot {
	snap := &dpda.Snapshot{Nodes: []dpda.Node{}, Edges: []dpda.Edge{}}
	if m.States == nil {
		return snap
	}

	accepting := make(map[string]bool, len(m.States.AcceptStates))
	for _, st := range m.States.AcceptStates {
		accepting[st] = true
	}
	for _, st := range m.States.States {
		snap.Nodes = append(snap.Nodes, dpda.Node{
			ID:        st,
			Label:     st,
			Initial:   st == m.States.InitialState,
			Accepting: accepting[st],
		})
	}
	for _, tr := range m.Transitions {
		snap.Edges = append(snap.Edges, dpda.Edge{
			Source: tr.FromState,
			Target: tr.ToState,
			Label:  transitionLabel(tr),
		})
	}
	return snap
}

func transitionLabel(tr dpda.Transition) string {
	read := "ε"
	if tr.InputSymbol != nil {
		read = *tr.InputSymbol
	}
	top := "ε"
	if tr.StackTop != nil {
		top = *tr.StackTop
	}
	push := "ε"
	if len(tr.StackPush) > 0 {
		push = strings.Join(tr.StackPush, "")
	}
	return fmt.Sprintf("%s, %s → %s", read, top, push)
}

func renderDOT(snap *dpda.Snapshot) string {
	var b strings.Builder
	b.WriteString("digraph dpda {\n  rankdir=LR;\n")
	for _, n := range snap.Nodes {
		shape := "circle"
		if n.Accepting {
			shape = "doublecircle"
		}
		fmt.Fprintf(&b, "  %q [shape=%s];\n", n.ID, shape)
	}
	for _, e := range snap.Edges {
		fmt.Fprintf(&b, "  %q -> %q [label=%q];\n", e.Source, e.Target, e.Label)
	}
	b.WriteString("}\n")
	return b.String()
}
