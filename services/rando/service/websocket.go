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
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const streamWriteTimeout = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  64 * 1024,
	WriteBufferSize: 64 * 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// HandleGenerateStream handles GET /v1/rando/generate/stream.
//
// Description:
//
//	Upgrades to a websocket and reads GenerateRequest messages. Each
//	request is answered with "status" frames while the generator runs,
//	then one "result" or "error" frame. The connection stays open for
//	further requests until the client closes it.
func (h *Handlers) HandleGenerateStream(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleGenerateStream")

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warn("Websocket upgrade failed", "error", err)
		return
	}
	defer ws.Close()

	send := func(m StreamMessage) error {
		_ = ws.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
		if err := ws.WriteJSON(m); err != nil {
			logger.Warn("Failed to write websocket message", "error", err)
			return err
		}
		return nil
	}

	for {
		var req GenerateRequest
		if err := ws.ReadJSON(&req); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Info("Websocket client disconnected", "error", err)
			}
			return
		}

		// The generator serializes status calls and makes none after
		// Generate returns, so there is one writer at a time.
		var writeErr error
		status := func(message string) {
			if writeErr == nil {
				writeErr = send(StreamMessage{Type: "status", Message: message})
			}
		}
		resp, err := h.svc.Generate(c.Request.Context(), &req, status)
		if writeErr != nil {
			return
		}
		if err != nil {
			_, code := errorStatus(err)
			if send(StreamMessage{Type: "error", Message: err.Error(), Code: code}) != nil {
				return
			}
			continue
		}
		if send(StreamMessage{Type: "result", Result: resp}) != nil {
			return
		}
	}
}
