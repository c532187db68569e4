package api

import (
	"errors"
	"net/http"

	"points_bot/internal/model"
	"points_bot/internal/service"
	"points_bot/pkg/auth"
	"points_bot/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type taskRoutes struct {
	svc *service.Service
}

func NewTaskRoutes(handler *gin.RouterGroup, svc *service.Service, a *auth.TelegramAuth) {
	r := &taskRoutes{svc: svc}

	h := handler.Group("/tasks")
	h.Use(a.TelegramAuthMiddleware())
	{
		h.GET("", r.GetTasks)
		h.GET("/:task_id", r.GetTask)
		h.POST("/:task_id/submit", r.SubmitTask)
	}
}

type taskResponse struct {
	TaskID    string      `json:"task_id"`
	Title     string      `json:"title"`
	Link      string      `json:"link"`
	Reward    int         `json:"reward"`
	Phase     model.Phase `json:"phase"`
	Completed bool        `json:"completed"`
}

func newTaskResponse(task model.Task, phase model.Phase) taskResponse {
	return taskResponse{
		TaskID:    task.ID,
		Title:     task.Title,
		Link:      task.Link,
		Reward:    task.Reward,
		Phase:     phase,
		Completed: phase == model.TaskPhaseCompleted,
	}
}

func (r *taskRoutes) GetTasks(c *gin.Context) {
	user, ok := enterUser(c, r.svc)
	if !ok {
		return
	}

	tasks := r.svc.Tasks.List()
	response := make([]taskResponse, len(tasks))
	for i, task := range tasks {
		response[i] = newTaskResponse(task, user.TaskPhase(task.ID))
	}

	c.JSON(http.StatusOK, response)
}

func (r *taskRoutes) GetTask(c *gin.Context) {
	user, ok := enterUser(c, r.svc)
	if !ok {
		return
	}

	outcome, err := r.svc.Tasks.Info(c.Request.Context(), user.TelegramID, c.Param("task_id"))
	if err != nil {
		r.fail(c, err)
		return
	}

	info := outcome.(model.TaskInfo)
	c.JSON(http.StatusOK, newTaskResponse(info.Task, info.Phase))
}

// SubmitTask registers the click on the first call and completes the task
// on the second.
func (r *taskRoutes) SubmitTask(c *gin.Context) {
	user, ok := enterUser(c, r.svc)
	if !ok {
		return
	}

	taskID := c.Param("task_id")
	outcome, err := r.svc.Tasks.SubmitProof(c.Request.Context(), user.TelegramID, taskID, "")
	if err != nil {
		r.fail(c, err)
		return
	}

	switch o := outcome.(type) {
	case model.TaskFirstClick:
		c.JSON(http.StatusAccepted, newTaskResponse(o.Task, model.TaskPhaseClicked))
	case model.TaskCompleted:
		c.JSON(http.StatusOK, gin.H{
			"task":    newTaskResponse(o.Task, model.TaskPhaseCompleted),
			"awarded": o.Awarded,
			"balance": o.Balance,
		})
	case model.TaskAlreadyCompleted:
		c.JSON(http.StatusForbidden, gin.H{"error": "task already completed"})
	}
}

func (r *taskRoutes) fail(c *gin.Context, err error) {
	if errors.Is(err, service.ErrTaskNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "task_id not found"})
		return
	}
	logger.Logger().Error("failed to handle task", zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}
