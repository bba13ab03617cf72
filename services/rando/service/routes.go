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
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers the rando endpoints with the router.
//
// Description:
//
//	Registers all /v1/rando/* endpoints with the given Gin router group.
//	The router group should already have any required middleware applied.
//
// Inputs:
//
//	rg - Gin router group (typically /v1)
//	handlers - The handlers instance
//
// Endpoints:
//
//	GET  /v1/rando/health - Health check
//	GET  /v1/rando/worlds - List registered worlds
//	POST /v1/rando/generate - Generate a layout
//	GET  /v1/rando/generate/stream - Generate over a websocket with status frames
//	POST /v1/rando/verify - Check that a layout can be completed
//	POST /v1/rando/reach - Nodes accessible from the start
//	GET  /v1/rando/layouts/:key - Fetch a stored layout
//
// Example:
//
//	svc := service.NewService(service.DefaultServiceConfig(), store)
//	handlers := service.NewHandlers(svc)
//
//	v1 := router.Group("/v1")
//	service.RegisterRoutes(v1, handlers)
func RegisterRoutes(rg *gin.RouterGroup, handlers *Handlers) {
	rando := rg.Group("/rando")
	{
		rando.GET("/health", handlers.HandleHealth)
		rando.GET("/worlds", handlers.HandleWorlds)

		// Generation
		rando.POST("/generate", handlers.HandleGenerate)
		rando.GET("/generate/stream", handlers.HandleGenerateStream)

		// Analysis
		rando.POST("/verify", handlers.HandleVerify)
		rando.POST("/reach", handlers.HandleReach)

		// Stored layouts
		rando.GET("/layouts/:key", handlers.HandleLayout)
	}
}
