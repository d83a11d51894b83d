package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/worksmarter/internal/middleware"
	"github.com/noah-isme/worksmarter/internal/models"
)

// Handlers groups every API handler mounted under the API prefix.
type Handlers struct {
	Auth        *AuthHandler
	Classrooms  *ClassroomHandler
	Tables      *TableHandler
	Messages    *MessageHandler
	Assignments *AssignmentHandler
	Prompts     *PromptHandler
}

// Register mounts the API routes. auth must populate the caller claims.
func (h Handlers) Register(api *gin.RouterGroup, auth gin.HandlerFunc) {
	teacher := middleware.RequireRoles(models.RoleTeacher)
	student := middleware.RequireRoles(models.RoleStudent)

	api.POST("/token/", h.Auth.Login)
	api.POST("/token/refresh/", h.Auth.Refresh)
	api.POST("/token/register/", h.Auth.Register)

	secured := api.Group("")
	secured.Use(auth, middleware.WithResponseMeta())
	secured.GET("/auth/user/", h.Auth.Me)

	secured.GET("/classrooms/", h.Classrooms.List)
	secured.POST("/classrooms/", teacher, h.Classrooms.Create)
	secured.POST("/classrooms/join/", student, h.Classrooms.Join)

	secured.GET("/classrooms/:id/tables/", h.Tables.List)
	secured.POST("/classrooms/:id/tables/", teacher, h.Tables.Replace)
	secured.POST("/classrooms/:id/tables/assign/", h.Tables.Assign)
	secured.GET("/classrooms/:id/tables/export/", teacher, h.Tables.Export)

	secured.GET("/classrooms/tables/:id/messages/", h.Messages.List)
	secured.POST("/classrooms/tables/:id/messages/", h.Messages.Send)

	secured.GET("/classrooms/:id/assignments/", h.Assignments.List)
	secured.POST("/classrooms/:id/assignments/", teacher, h.Assignments.Create)
	secured.POST("/assignments/:id/submissions/", student, h.Assignments.Submit)
	secured.POST("/submissions/:id/grade/", teacher, h.Assignments.Grade)

	secured.GET("/groups/:id/student-prompts/", student, h.Prompts.StudentPrompts)
	secured.POST("/groups/:id/generate/", teacher, h.Prompts.Generate)
	secured.GET("/groups/:id/prompt-runs/", h.Prompts.History)
	secured.POST("/assignments/:id/generate-all/", teacher, h.Prompts.GenerateAll)
	secured.POST("/prompts/:id/responses/", student, h.Prompts.SaveResponse)
}
