package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"todotree/internal/hierarchy"
	"todotree/internal/middleware"
	"todotree/internal/model"
	"todotree/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// TaskService is what the handlers need from service.TaskService.
type TaskService interface {
	CreateTask(ctx context.Context, ownerID uuid.UUID, in service.CreateTaskInput) (*model.Task, error)
	ListTasks(ctx context.Context, ownerID uuid.UUID, opts service.ListOptions) ([]*hierarchy.Node, error)
	GetTask(ctx context.Context, ownerID, id uuid.UUID) (*service.TaskDetail, error)
	UpdateTask(ctx context.Context, ownerID, id uuid.UUID, patch model.TaskPatch) (*model.Task, error)
	ToggleStatus(ctx context.Context, ownerID, id uuid.UUID) (*model.Task, error)
	DeleteTask(ctx context.Context, ownerID, id uuid.UUID) (*service.DeleteResult, error)
	GenerateSubtasks(ctx context.Context, ownerID, id uuid.UUID) (*service.SuggestionResult, error)
	AcceptSuggestion(ctx context.Context, ownerID, parentID uuid.UUID, title string) (*model.Task, error)
}

type TaskHandler struct {
	tasks TaskService
}

func NewTaskHandler(tasks TaskService) *TaskHandler {
	return &TaskHandler{tasks: tasks}
}

// CreateTaskRequest представляет запрос на создание задачи или подзадачи
type CreateTaskRequest struct {
	Title       string     `json:"title" binding:"required,notblank,max=255"`
	Description string     `json:"description" binding:"max=2000"`
	DueDate     *time.Time `json:"due_date"`
	Priority    *string    `json:"priority"`
	ParentID    *string    `json:"parent_id" binding:"omitempty,uuid"`
}

// UpdateTaskRequest представляет частичное обновление задачи
type UpdateTaskRequest struct {
	Title        *string    `json:"title" binding:"omitempty,notblank,max=255"`
	Description  *string    `json:"description" binding:"omitempty,max=2000"`
	DueDate      *time.Time `json:"due_date"`
	ClearDueDate bool       `json:"clear_due_date"`
	Priority     *string    `json:"priority"`
	Completed    *bool      `json:"completed"`
}

// AcceptSuggestionRequest представляет выбранную пользователем подзадачу
type AcceptSuggestionRequest struct {
	Title string `json:"title" binding:"required,notblank,max=255"`
}

// TaskResponse представляет ответ с данными задачи
type TaskResponse struct {
	ID              string  `json:"id"`
	ParentID        *string `json:"parent_id"`
	Title           string  `json:"title"`
	Description     string  `json:"description"`
	Completed       bool    `json:"completed"`
	Priority        string  `json:"priority"`
	PriorityLevel   int     `json:"priority_level"`
	DueDate         *string `json:"due_date,omitempty"`
	GenerationCount int     `json:"generation_count"`
	CreatedAt       string  `json:"created_at"`
	UpdatedAt       string  `json:"updated_at"`
}

// TaskNodeResponse представляет задачу вместе с вложенными подзадачами
type TaskNodeResponse struct {
	TaskResponse
	Depth    int                `json:"depth"`
	Children []TaskNodeResponse `json:"children"`
}

// TaskDetailResponse представляет задачу, ее глубину и прямых потомков
type TaskDetailResponse struct {
	Task            TaskResponse   `json:"task"`
	Depth           int            `json:"depth"`
	Children        []TaskResponse `json:"children"`
	GenerationsLeft int            `json:"generations_left"`
	SlotsLeft       int            `json:"slots_left"`
}

// DeleteResponse перечисляет все удаленные задачи
type DeleteResponse struct {
	DeletedIDs []string `json:"deleted_ids"`
	ParentID   *string  `json:"parent_id"`
}

// SuggestionResponse представляет результат генерации подзадач
type SuggestionResponse struct {
	TaskID          string   `json:"task_id"`
	Candidates      []string `json:"candidates"`
	Rejection       string   `json:"rejection,omitempty"`
	ManualEntry     bool     `json:"manual_entry"`
	Message         string   `json:"message,omitempty"`
	GenerationsLeft int      `json:"generations_left"`
	SlotsLeft       int      `json:"slots_left"`
}

func toTaskResponse(t *model.Task) TaskResponse {
	resp := TaskResponse{
		ID:              t.ID.String(),
		Title:           t.Title,
		Description:     t.Description,
		Completed:       t.Completed,
		Priority:        t.Priority.String(),
		PriorityLevel:   int(t.Priority),
		GenerationCount: t.GenerationCount,
		CreatedAt:       t.CreatedAt.Format(time.RFC3339),
		UpdatedAt:       t.UpdatedAt.Format(time.RFC3339),
	}
	if t.ParentID != nil {
		parent := t.ParentID.String()
		resp.ParentID = &parent
	}
	if t.DueDate != nil {
		due := t.DueDate.Format(time.RFC3339)
		resp.DueDate = &due
	}
	return resp
}

func toNodeResponses(nodes []*hierarchy.Node) []TaskNodeResponse {
	out := make([]TaskNodeResponse, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, TaskNodeResponse{
			TaskResponse: toTaskResponse(&n.Task),
			Depth:        n.Depth,
			Children:     toNodeResponses(n.Children),
		})
	}
	return out
}

func parsePriority(raw *string) (*model.Priority, bool) {
	if raw == nil {
		return nil, true
	}
	p, err := model.ParsePriority(*raw)
	if err != nil {
		return nil, false
	}
	return &p, true
}

// currentUser достает ID пользователя, установленный middleware
func currentUser(c *gin.Context) (uuid.UUID, bool) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		respondFail(c, http.StatusUnauthorized, "Not authenticated")
	}
	return userID, ok
}

func taskIDParam(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondFail(c, http.StatusBadRequest, "Invalid task ID format")
		return uuid.Nil, false
	}
	return id, true
}

// Create godoc
// @Summary      Create a task
// @Tags         Tasks
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body CreateTaskRequest true "Task"
// @Success      201 {object} Response{data=TaskResponse}
// @Failure      400 {object} Response
// @Failure      404 {object} Response
// @Failure      409 {object} Response
// @Router       /tasks [post]
func (h *TaskHandler) Create(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondFail(c, http.StatusBadRequest, "Invalid request")
		return
	}

	var parentID *uuid.UUID
	if req.ParentID != nil {
		id, err := uuid.Parse(*req.ParentID)
		if err != nil {
			respondFail(c, http.StatusBadRequest, "Invalid parent ID format")
			return
		}
		parentID = &id
	}
	h.create(c, userID, req, parentID)
}

// CreateSubtask godoc
// @Summary      Create a subtask
// @Tags         Tasks
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Parent task ID"
// @Param        request body CreateTaskRequest true "Subtask"
// @Success      201 {object} Response{data=TaskResponse}
// @Failure      409 {object} Response
// @Router       /tasks/{id}/subtasks [post]
func (h *TaskHandler) CreateSubtask(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	parentID, ok := taskIDParam(c)
	if !ok {
		return
	}

	var req CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondFail(c, http.StatusBadRequest, "Invalid request")
		return
	}
	h.create(c, userID, req, &parentID)
}

func (h *TaskHandler) create(c *gin.Context, userID uuid.UUID, req CreateTaskRequest, parentID *uuid.UUID) {
	priority, ok := parsePriority(req.Priority)
	if !ok {
		respondFail(c, http.StatusBadRequest, "Invalid priority")
		return
	}

	task, err := h.tasks.CreateTask(c.Request.Context(), userID, service.CreateTaskInput{
		Title:       req.Title,
		Description: req.Description,
		DueDate:     req.DueDate,
		Priority:    priority,
		ParentID:    parentID,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondSuccess(c, http.StatusCreated, toTaskResponse(task))
}

// List godoc
// @Summary      List the task tree
// @Tags         Tasks
// @Produce      json
// @Security     BearerAuth
// @Param        hide_completed query bool false "Hide completed tasks"
// @Success      200 {object} Response{data=[]TaskNodeResponse}
// @Router       /tasks [get]
func (h *TaskHandler) List(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	hide := false
	if raw := c.Query("hide_completed"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			respondFail(c, http.StatusBadRequest, "Invalid hide_completed value")
			return
		}
		hide = v
	}

	tree, err := h.tasks.ListTasks(c.Request.Context(), userID, service.ListOptions{HideCompleted: hide})
	if err != nil {
		respondError(c, err)
		return
	}

	respondSuccess(c, http.StatusOK, toNodeResponses(tree))
}

// GetByID godoc
// @Summary      Get a task with its direct subtasks
// @Tags         Tasks
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Task ID"
// @Success      200 {object} Response{data=TaskDetailResponse}
// @Failure      404 {object} Response
// @Router       /tasks/{id} [get]
func (h *TaskHandler) GetByID(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := taskIDParam(c)
	if !ok {
		return
	}

	detail, err := h.tasks.GetTask(c.Request.Context(), userID, id)
	if err != nil {
		respondError(c, err)
		return
	}

	resp := TaskDetailResponse{
		Task:            toTaskResponse(&detail.Task),
		Depth:           detail.Depth,
		Children:        make([]TaskResponse, 0, len(detail.Children)),
		GenerationsLeft: detail.GenerationsLeft,
		SlotsLeft:       detail.SlotsLeft,
	}
	for i := range detail.Children {
		resp.Children = append(resp.Children, toTaskResponse(&detail.Children[i]))
	}
	respondSuccess(c, http.StatusOK, resp)
}

// Update godoc
// @Summary      Update a task
// @Tags         Tasks
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Task ID"
// @Param        request body UpdateTaskRequest true "Changed fields"
// @Success      200 {object} Response{data=TaskResponse}
// @Failure      400 {object} Response
// @Router       /tasks/{id} [put]
func (h *TaskHandler) Update(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := taskIDParam(c)
	if !ok {
		return
	}

	var req UpdateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondFail(c, http.StatusBadRequest, "Invalid request")
		return
	}
	priority, ok := parsePriority(req.Priority)
	if !ok {
		respondFail(c, http.StatusBadRequest, "Invalid priority")
		return
	}

	task, err := h.tasks.UpdateTask(c.Request.Context(), userID, id, model.TaskPatch{
		Title:        req.Title,
		Description:  req.Description,
		DueDate:      req.DueDate,
		ClearDueDate: req.ClearDueDate,
		Priority:     priority,
		Completed:    req.Completed,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondSuccess(c, http.StatusOK, toTaskResponse(task))
}

// Toggle godoc
// @Summary      Toggle completion of one task
// @Tags         Tasks
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Task ID"
// @Success      200 {object} Response{data=TaskResponse}
// @Router       /tasks/{id}/toggle [post]
func (h *TaskHandler) Toggle(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := taskIDParam(c)
	if !ok {
		return
	}

	task, err := h.tasks.ToggleStatus(c.Request.Context(), userID, id)
	if err != nil {
		respondError(c, err)
		return
	}

	respondSuccess(c, http.StatusOK, toTaskResponse(task))
}

// Delete godoc
// @Summary      Delete a task and all of its subtasks
// @Tags         Tasks
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Task ID"
// @Success      200 {object} Response{data=DeleteResponse}
// @Router       /tasks/{id} [delete]
func (h *TaskHandler) Delete(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := taskIDParam(c)
	if !ok {
		return
	}

	res, err := h.tasks.DeleteTask(c.Request.Context(), userID, id)
	if err != nil {
		respondError(c, err)
		return
	}

	resp := DeleteResponse{DeletedIDs: make([]string, 0, len(res.DeletedIDs))}
	for _, deleted := range res.DeletedIDs {
		resp.DeletedIDs = append(resp.DeletedIDs, deleted.String())
	}
	if res.ParentID != nil {
		parent := res.ParentID.String()
		resp.ParentID = &parent
	}
	respondSuccess(c, http.StatusOK, resp)
}

// Suggest godoc
// @Summary      Generate subtask suggestions
// @Tags         Tasks
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Task ID"
// @Success      200 {object} Response{data=SuggestionResponse}
// @Failure      429 {object} Response
// @Router       /tasks/{id}/suggestions [post]
func (h *TaskHandler) Suggest(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := taskIDParam(c)
	if !ok {
		return
	}

	res, err := h.tasks.GenerateSubtasks(c.Request.Context(), userID, id)
	if err != nil {
		respondError(c, err)
		return
	}

	resp := SuggestionResponse{
		TaskID:          res.TaskID.String(),
		Candidates:      res.Candidates,
		ManualEntry:     res.ManualEntry,
		Message:         res.Message,
		GenerationsLeft: res.GenerationsLeft,
		SlotsLeft:       res.SlotsLeft,
	}
	if resp.Candidates == nil {
		resp.Candidates = []string{}
	}
	if res.Rejected() {
		resp.Rejection = res.Rejection.String()
	}
	respondSuccess(c, http.StatusOK, resp)
}

// AcceptSuggestion godoc
// @Summary      Add a suggested subtask
// @Tags         Tasks
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Parent task ID"
// @Param        request body AcceptSuggestionRequest true "Chosen title"
// @Success      201 {object} Response{data=TaskResponse}
// @Failure      409 {object} Response
// @Router       /tasks/{id}/suggestions/accept [post]
func (h *TaskHandler) AcceptSuggestion(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	parentID, ok := taskIDParam(c)
	if !ok {
		return
	}

	var req AcceptSuggestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondFail(c, http.StatusBadRequest, "Invalid request")
		return
	}

	task, err := h.tasks.AcceptSuggestion(c.Request.Context(), userID, parentID, req.Title)
	if err != nil {
		respondError(c, err)
		return
	}

	respondSuccess(c, http.StatusCreated, toTaskResponse(task))
}
