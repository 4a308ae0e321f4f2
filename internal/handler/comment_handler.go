package handler

import (
	"errors"
	"net/http"

	"tasktracker/internal/model"
	"tasktracker/internal/notifier"
	"tasktracker/internal/repository"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// postDateLayout - формат даты публикации комментария в ответах.
const postDateLayout = "02.01.2006 15:04"

type CommentHandler struct {
	commentRepo repository.CommentRepositoryInterface
	taskRepo    repository.TaskRepositoryInterface
	userRepo    repository.UserRepositoryInterface
	dispatcher  *notifier.Dispatcher
}

func NewCommentHandler(
	commentRepo repository.CommentRepositoryInterface,
	taskRepo repository.TaskRepositoryInterface,
	userRepo repository.UserRepositoryInterface,
	dispatcher *notifier.Dispatcher,
) *CommentHandler {
	return &CommentHandler{
		commentRepo: commentRepo,
		taskRepo:    taskRepo,
		userRepo:    userRepo,
		dispatcher:  dispatcher,
	}
}

// CommentAddRequest представляет запрос на добавление комментария
type CommentAddRequest struct {
	Description string `json:"description" binding:"required"`
}

// CommentResponse представляет ответ с данными комментария
type CommentResponse struct {
	ID          string  `json:"id"`
	Description string  `json:"description"`
	Author      *string `json:"author,omitempty"`
	PostDate    string  `json:"post_date"`
}

func commentResponse(comment *model.Comment) CommentResponse {
	resp := CommentResponse{
		ID:          comment.ID.String(),
		Description: comment.Description,
		PostDate:    comment.PostDate.Format(postDateLayout),
	}
	if comment.Author != nil {
		resp.Author = &comment.Author.Username
	}
	return resp
}

// Add добавляет комментарий к задаче.
// Задача адресуется по id или по уникальному имени.
// Комментировать может любой аутентифицированный пользователь,
// автором становится автор запроса, дата публикации ставится сервером.
func (h *CommentHandler) Add(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req CommentAddRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	var (
		task *model.Task
		err  error
	)
	param := c.Param("id")
	if taskID, parseErr := uuid.Parse(param); parseErr == nil {
		task, err = h.taskRepo.GetByID(c.Request.Context(), taskID)
	} else {
		task, err = h.taskRepo.GetByName(c.Request.Context(), param)
	}
	if err != nil {
		if errors.Is(err, repository.ErrTaskNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Task not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve task"})
		}
		return
	}

	author, err := h.userRepo.GetByID(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve user"})
		return
	}

	comment := &model.Comment{
		TaskID:      task.ID,
		Description: req.Description,
		AuthorID:    &userID,
	}

	if err := h.commentRepo.Create(c.Request.Context(), comment); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create comment"})
		return
	}
	comment.Author = author

	h.dispatcher.NotifyComment(notifier.CommentEvent{TaskID: task.ID, CommentID: comment.ID})

	c.JSON(http.StatusCreated, commentResponse(comment))
}
