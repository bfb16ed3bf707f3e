package handler

import (
	"github.com/gin-gonic/gin"
)

// Routes groups the API handlers mounted under the versioned prefix.
type Routes struct {
	Suggestions *SuggestionHandler
	Assignments *AssignmentHandler
	Conflicts   *ConflictHandler
	Audit       *AuditHandler
}

// Register mounts every engine endpoint on api. Authentication middleware is
// expected to be installed on api by the caller.
func (r Routes) Register(api gin.IRouter, audit ...gin.HandlerFunc) {
	suggestions := api.Group("/matching-suggestions")
	suggestions.GET("", r.Suggestions.List)
	suggestions.POST("", r.Suggestions.Generate)
	suggestions.GET("/:id", r.Suggestions.Get)
	suggestions.PATCH("/:id", r.Suggestions.Transition)

	assignments := api.Group("/assignments")
	assignments.POST("", r.Assignments.Create)
	assignments.GET("", r.Assignments.List)
	assignments.GET("/:id", r.Assignments.Get)

	conflicts := api.Group("/conflicts")
	conflicts.GET("", r.Conflicts.List)
	conflicts.POST("/scan", r.Conflicts.Scan)
	conflicts.GET("/:id", r.Conflicts.Get)
	api.POST("/conflict-requests/:id/resolve", r.Conflicts.ResolveRequest)

	api.GET("/audit-logs", append(audit, r.Audit.List)...)
}
