package handler

import (
	"errors"
	"net/http"
	"time"

	"tasktracker/internal/model"
	"tasktracker/internal/notifier"
	"tasktracker/internal/policy"
	"tasktracker/internal/repository"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// dueDateLayout - формат срока выполнения задачи в запросах и ответах.
const dueDateLayout = "2006-01-02"

type TaskHandler struct {
	taskRepo    repository.TaskRepositoryInterface
	userRepo    repository.UserRepositoryInterface
	commentRepo repository.CommentRepositoryInterface
	dispatcher  *notifier.Dispatcher
}

func NewTaskHandler(
	taskRepo repository.TaskRepositoryInterface,
	userRepo repository.UserRepositoryInterface,
	commentRepo repository.CommentRepositoryInterface,
	dispatcher *notifier.Dispatcher,
) *TaskHandler {
	return &TaskHandler{
		taskRepo:    taskRepo,
		userRepo:    userRepo,
		commentRepo: commentRepo,
		dispatcher:  dispatcher,
	}
}

// TaskCreateRequest представляет запрос на создание задачи
type TaskCreateRequest struct {
	Name          string `json:"name" binding:"required,max=200"`
	Specification string `json:"specification" binding:"required"`
	DueDate       string `json:"due_date" binding:"required"`
	Performer     string `json:"performer" binding:"required"`
}

// TaskUpdateRequest представляет запрос на обновление задачи
type TaskUpdateRequest struct {
	Name          string `json:"name" binding:"required,max=200"`
	Specification string `json:"specification" binding:"required"`
	DueDate       string `json:"due_date"`
	Status        string `json:"status"`
	Performer     string `json:"performer"`
}

// TaskResponse представляет ответ с данными задачи
type TaskResponse struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Specification string  `json:"specification"`
	DueDate       *string `json:"due_date,omitempty"`
	Creator       *string `json:"creator,omitempty"`
	Performer     *string `json:"performer,omitempty"`
	Status        string  `json:"status"`
}

// TaskDetailResponse представляет ответ с данными задачи и её комментариями
type TaskDetailResponse struct {
	TaskResponse
	Comments []CommentResponse `json:"comments"`
}

func taskResponse(task *model.Task) TaskResponse {
	resp := TaskResponse{
		ID:            task.ID.String(),
		Name:          task.Name,
		Specification: task.Specification,
		Status:        task.Status,
	}
	if task.DueDate != nil {
		dueDate := task.DueDate.Format(dueDateLayout)
		resp.DueDate = &dueDate
	}
	if task.Creator != nil {
		resp.Creator = &task.Creator.Username
	}
	if task.Performer != nil {
		resp.Performer = &task.Performer.Username
	}
	return resp
}

// Create создает новую задачу со статусом "new".
// Создателем становится аутентифицированный пользователь.
func (h *TaskHandler) Create(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req TaskCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	dueDate, err := time.Parse(dueDateLayout, req.DueDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid due date format, expected YYYY-MM-DD"})
		return
	}

	// Срок выполнения не может быть раньше сегодняшнего дня (по UTC)
	now := time.Now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if dueDate.Before(today) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Due date cannot be earlier than today"})
		return
	}

	// Имя задачи уникально
	_, err = h.taskRepo.GetByName(c.Request.Context(), req.Name)
	if err == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "A task with the same name already exists"})
		return
	}
	if !errors.Is(err, repository.ErrTaskNotFound) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to check task name"})
		return
	}

	performer, err := h.userRepo.FindByUsername(c.Request.Context(), req.Performer)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve user"})
		return
	}
	if performer == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "There is no user with that username"})
		return
	}

	task := &model.Task{
		Name:          req.Name,
		Specification: req.Specification,
		DueDate:       &dueDate,
		CreatorID:     &userID,
		PerformerID:   &performer.ID,
		Status:        model.StatusNew,
	}

	if err := h.taskRepo.Create(c.Request.Context(), task); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create task"})
		return
	}

	h.dispatcher.NotifyTask(notifier.TaskEvent{TaskID: task.ID, Title: notifier.TitleTaskCreated})

	c.JSON(http.StatusCreated, gin.H{"id": task.ID})
}

// Update обновляет задачу.
// Изменять задачу могут только её создатель и исполнитель,
// менять исполнителя - только создатель.
func (h *TaskHandler) Update(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	taskID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid task ID format"})
		return
	}

	task, err := h.taskRepo.GetByID(c.Request.Context(), taskID)
	if err != nil {
		if errors.Is(err, repository.ErrTaskNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Task not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve task"})
		}
		return
	}

	if !policy.CanMutateTask(task, userID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Failure! You don't have permission to edit this task."})
		return
	}

	var req TaskUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	if req.Status != "" && !model.ValidStatus(req.Status) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid status value"})
		return
	}

	// Смена исполнителя разрешена только создателю задачи.
	// Неавторизованная попытка отклоняется явно, а не игнорируется.
	if req.Performer != "" && (task.Performer == nil || task.Performer.Username != req.Performer) {
		if !policy.CanReassignPerformer(task, userID) {
			c.JSON(http.StatusForbidden, gin.H{"error": "Only the creator can reassign the performer"})
			return
		}

		performer, err := h.userRepo.FindByUsername(c.Request.Context(), req.Performer)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve user"})
			return
		}
		if performer == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "There is no user with that username"})
			return
		}
		task.PerformerID = &performer.ID
		task.Performer = performer
	}

	// Новое имя не должно совпадать с именем другой задачи
	if req.Name != task.Name {
		_, err := h.taskRepo.GetByName(c.Request.Context(), req.Name)
		if err == nil {
			c.JSON(http.StatusConflict, gin.H{"error": "A task with the same name already exists"})
			return
		}
		if !errors.Is(err, repository.ErrTaskNotFound) {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to check task name"})
			return
		}
	}

	task.Name = req.Name
	task.Specification = req.Specification

	if req.DueDate != "" {
		dueDate, err := time.Parse(dueDateLayout, req.DueDate)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid due date format, expected YYYY-MM-DD"})
			return
		}
		task.DueDate = &dueDate
	}

	if req.Status != "" {
		task.Status = req.Status
	}

	if err := h.taskRepo.Update(c.Request.Context(), task); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update task"})
		return
	}

	h.dispatcher.NotifyTask(notifier.TaskEvent{TaskID: task.ID, Title: notifier.TitleTaskChanged})

	c.JSON(http.StatusOK, taskResponse(task))
}

// List возвращает список задач с фильтрацией по подстроке
// в имени задачи или имени исполнителя (параметр search)
func (h *TaskHandler) List(c *gin.Context) {
	if _, ok := currentUserID(c); !ok {
		return
	}

	tasks, err := h.taskRepo.Search(c.Request.Context(), c.Query("search"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve tasks"})
		return
	}

	response := make([]TaskResponse, len(tasks))
	for i := range tasks {
		response[i] = taskResponse(&tasks[i])
	}

	c.JSON(http.StatusOK, response)
}

// GetByID возвращает задачу со всеми её комментариями (новые первыми)
func (h *TaskHandler) GetByID(c *gin.Context) {
	if _, ok := currentUserID(c); !ok {
		return
	}

	taskID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid task ID format"})
		return
	}

	task, err := h.taskRepo.GetByID(c.Request.Context(), taskID)
	if err != nil {
		if errors.Is(err, repository.ErrTaskNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Task not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve task"})
		}
		return
	}

	comments, err := h.commentRepo.GetByTaskID(c.Request.Context(), taskID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve comments"})
		return
	}

	response := TaskDetailResponse{
		TaskResponse: taskResponse(task),
		Comments:     make([]CommentResponse, len(comments)),
	}
	for i := range comments {
		response.Comments[i] = commentResponse(&comments[i])
	}

	c.JSON(http.StatusOK, response)
}
