// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package service

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/AleutianAI/RandoForge/pkg/validation"
	"github.com/AleutianAI/RandoForge/services/rando/filler"
	"github.com/AleutianAI/RandoForge/services/rando/generator"
	"github.com/AleutianAI/RandoForge/services/rando/patches"
	"github.com/AleutianAI/RandoForge/services/rando/preset"
	"github.com/AleutianAI/RandoForge/services/rando/worldio"
)

// Handlers serves the HTTP endpoints of a Service.
type Handlers struct {
	svc *Service
}

// NewHandlers creates handlers for svc.
func NewHandlers(svc *Service) *Handlers {
	return &Handlers{svc: svc}
}

// HandleHealth handles GET /v1/rando/health.
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:  "healthy",
		Version: ServiceVersion,
		Worlds:  len(h.svc.Worlds()),
	})
}

// HandleWorlds handles GET /v1/rando/worlds.
func (h *Handlers) HandleWorlds(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.Worlds())
}

// HandleGenerate handles POST /v1/rando/generate.
//
// Description:
//
//	Generates a layout and returns it with its cache key. The request
//	blocks until generation finishes; use the stream endpoint for
//	progress.
//
// Request Body:
//
//	GenerateRequest
//
// Response:
//
//	200 OK: GenerateResponse
//	400 Bad Request: Invalid body, preset or world selection
//	404 Not Found: Unknown world
//	422 Unprocessable Entity: Every attempt failed
//	504 Gateway Timeout: Generation timed out
func (h *Handlers) HandleGenerate(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleGenerate")

	var req GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "INVALID_REQUEST"})
		return
	}

	resp, err := h.svc.Generate(c.Request.Context(), &req, nil)
	if err != nil {
		status, code := errorStatus(err)
		logger.Warn("Generation failed", "error", err, "code", code)
		c.JSON(status, ErrorResponse{Error: err.Error(), Code: code})
		return
	}
	logger.Info("Generated layout", "cache_key", resp.CacheKey, "from_cache", resp.FromCache)
	c.JSON(http.StatusOK, resp)
}

// HandleVerify handles POST /v1/rando/verify.
//
// Response:
//
//	200 OK: VerifyResponse (Completable may be false)
//	400 Bad Request: Invalid body, multiworld layout or mismatched layout
//	404 Not Found: Unknown world
func (h *Handlers) HandleVerify(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleVerify")

	var req VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "INVALID_REQUEST"})
		return
	}

	resp, err := h.svc.Verify(c.Request.Context(), &req)
	if err != nil {
		status, code := errorStatus(err)
		logger.Warn("Verification failed", "error", err, "code", code)
		c.JSON(status, ErrorResponse{Error: err.Error(), Code: code})
		return
	}
	c.JSON(http.StatusOK, resp)
}

// HandleReach handles POST /v1/rando/reach.
func (h *Handlers) HandleReach(c *gin.Context) {
	getOrCreateRequestID(c)

	var req ReachRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "INVALID_REQUEST"})
		return
	}

	resp, err := h.svc.Reach(c.Request.Context(), &req)
	if err != nil {
		status, code := errorStatus(err)
		c.JSON(status, ErrorResponse{Error: err.Error(), Code: code})
		return
	}
	c.JSON(http.StatusOK, resp)
}

// HandleLayout handles GET /v1/rando/layouts/:key.
//
// Response:
//
//	200 OK: patches.Layout
//	400 Bad Request: Malformed key
//	404 Not Found: No layout under key
//	503 Service Unavailable: The server runs without a layout store
func (h *Handlers) HandleLayout(c *gin.Context) {
	getOrCreateRequestID(c)

	layout, err := h.svc.Layout(c.Request.Context(), c.Param("key"))
	if err != nil {
		status, code := errorStatus(err)
		c.JSON(status, ErrorResponse{Error: err.Error(), Code: code})
		return
	}
	c.JSON(http.StatusOK, layout)
}

// errorStatus maps a service error to an HTTP status and error code.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, ErrUnknownWorld):
		return http.StatusNotFound, "UNKNOWN_WORLD"
	case errors.Is(err, ErrLayoutNotFound):
		return http.StatusNotFound, "LAYOUT_NOT_FOUND"
	case errors.Is(err, ErrNoLayoutStore):
		return http.StatusServiceUnavailable, "NO_LAYOUT_STORE"
	case errors.Is(err, ErrTooManyPlayers), errors.Is(err, generator.ErrNoPlayers):
		return http.StatusBadRequest, "INVALID_PLAYERS"
	case errors.Is(err, validation.ErrInvalidKey):
		return http.StatusBadRequest, "INVALID_KEY"
	case errors.Is(err, validation.ErrInvalidName), errors.Is(err, validation.ErrEmpty):
		return http.StatusBadRequest, "INVALID_NAME"
	case errors.Is(err, ErrMultiworldVerify):
		return http.StatusBadRequest, "MULTIWORLD_VERIFY"
	case errors.Is(err, preset.ErrInvalidPreset), errors.Is(err, preset.ErrPresetTooLarge),
		errors.Is(err, preset.ErrUnknownName):
		return http.StatusBadRequest, "INVALID_PRESET"
	case errors.Is(err, worldio.ErrInvalidWorld):
		return http.StatusBadRequest, "INVALID_WORLD"
	case errors.Is(err, patches.ErrLayoutMismatch):
		return http.StatusBadRequest, "LAYOUT_MISMATCH"
	case errors.Is(err, filler.ErrInvalidConfiguration):
		return http.StatusUnprocessableEntity, "UNFILLABLE"
	case errors.Is(err, generator.ErrAttemptsExhausted):
		return http.StatusUnprocessableEntity, "GENERATION_FAILED"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "TIMEOUT"
	case errors.Is(err, context.Canceled):
		return 499, "CANCELLED"
	default:
		return http.StatusInternalServerError, "INTERNAL"
	}
}

func getOrCreateRequestID(c *gin.Context) string {
	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Header("X-Request-ID", requestID)
	return requestID
}
