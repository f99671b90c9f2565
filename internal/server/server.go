package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strconv"

	"tasktracker/internal/domain/errors"
	"tasktracker/internal/domain/models"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"golang.org/x/crypto/bcrypt"
)

type UserRepository interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	GetUsersByIDs(ctx context.Context, ids []string) ([]models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	DeleteUserCascade(ctx context.Context, id string) error
}

type TaskRepository interface {
	CreateTask(ctx context.Context, task *models.Task) error
	GetTaskByID(ctx context.Context, id string) (*models.Task, error)
	ListTasks(ctx context.Context, filter models.TaskFilter) ([]models.Task, int, error)
	UpdateTask(ctx context.Context, id string, task *models.Task) error
	DeleteTask(ctx context.Context, id string) error
}

type TaskAPI struct {
	httpSrv *http.Server
	users   UserRepository
	tasks   TaskRepository
	cfg     *Config
}

func NewTaskAPI(users UserRepository, tasks TaskRepository, cfg *Config) *TaskAPI {
	if users == nil || tasks == nil {
		return nil
	}
	if cfg == nil {
		cfg = &Config{}
	}

	httpSrv := http.Server{
		Addr: fmt.Sprintf("%s:%d", cfg.Addr, cfg.Port),
	}

	api := TaskAPI{
		httpSrv: &httpSrv,
		users:   users,
		tasks:   tasks,
		cfg:     cfg,
	}

	api.configRoutes()

	return &api
}

func (api *TaskAPI) Start() error {
	if api.httpSrv == nil {
		return errors.ErrInternalServer
	}

	if api.httpSrv.Addr == "" || api.httpSrv.Addr == ":0" {
		api.httpSrv.Addr = ":8080"
	}

	return api.httpSrv.ListenAndServe()
}

func (api *TaskAPI) Shutdown(ctx context.Context) error {
	if api.httpSrv == nil {
		return errors.ErrInternalServer
	}
	return api.httpSrv.Shutdown(ctx)
}

func (api *TaskAPI) configRoutes() {
	router := gin.Default()

	router.Use(CORSMiddleware(api.cfg.FrontendURL))
	router.Use(MetricsMiddleware())

	router.NoMethod(func(ctx *gin.Context) {
		ctx.JSON(http.StatusMethodNotAllowed, gin.H{"error": "использован некорректный HTTP-метод"})
	})

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	auth := router.Group("/auth")
	{
		auth.POST("/register", api.register)
		auth.POST("/login", api.login)
	}

	users := router.Group("/users", api.authRequired())
	{
		users.GET("", api.listUsers)
		users.DELETE(":userID", api.deleteUser)
	}

	tasks := router.Group("/tasks", api.authRequired())
	{
		tasks.GET("", api.listTasks)
		tasks.GET(":taskID", api.getTask)
		tasks.POST("", api.createTask)
		tasks.PUT(":taskID", api.updateTask)
		tasks.DELETE(":taskID", api.deleteTask)
	}

	api.httpSrv.Handler = router
}

func (api *TaskAPI) register(ctx *gin.Context) {
	var req models.RegisterRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "некорректные данные пользователя"})
		return
	}

	valid := validator.New()
	if err := valid.Struct(req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": validationErrorToErrorResponse(err).Error()})
		return
	}

	existingUser, _ := api.users.GetUserByUsername(ctx.Request.Context(), req.Username)
	if existingUser != nil {
		ctx.JSON(http.StatusConflict, gin.H{"error": errors.ErrUserAlreadyExists.Error()})
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": errors.ErrInternalServer.Error()})
		return
	}

	user := models.User{
		ID:       uuid.New().String(),
		Username: req.Username,
		Password: string(hash),
		Name:     req.Name,
	}

	if err := api.users.CreateUser(ctx.Request.Context(), &user); err != nil {
		if err == errors.ErrUserAlreadyExists {
			ctx.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		} else {
			ctx.JSON(http.StatusInternalServerError, gin.H{"error": errors.ErrInternalServer.Error()})
		}
		return
	}

	ctx.JSON(http.StatusCreated, gin.H{
		"message": "пользователь успешно создан",
		"user":    user.Public(),
	})
}

func (api *TaskAPI) login(ctx *gin.Context) {
	var req models.LoginRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "некорректные данные запроса"})
		return
	}

	valid := validator.New()
	if err := valid.Struct(req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": validationErrorToErrorResponse(err).Error()})
		return
	}

	user, err := api.users.GetUserByUsername(ctx.Request.Context(), req.Username)
	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": errors.ErrInvalidCredentials.Error()})
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": errors.ErrInvalidCredentials.Error()})
		return
	}

	token, err := api.issueToken(user)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": errors.ErrInternalServer.Error()})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"message": "вход выполнен успешно",
		"token":   token,
		"user":    user.Public(),
	})
}

func (api *TaskAPI) listUsers(ctx *gin.Context) {
	users, err := api.users.ListUsers(ctx.Request.Context())
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": errors.ErrInternalServer.Error()})
		return
	}

	public := make([]models.PublicUser, 0, len(users))
	for i := range users {
		public = append(public, users[i].Public())
	}

	ctx.JSON(http.StatusOK, gin.H{"users": public})
}

func (api *TaskAPI) deleteUser(ctx *gin.Context) {
	userID := ctx.Param("userID")

	caller, ok := callerID(ctx)
	if !ok {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": errors.ErrTokenRequired.Error()})
		return
	}

	if userID == caller {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": errors.ErrSelfDelete.Error()})
		return
	}

	if err := api.users.DeleteUserCascade(ctx.Request.Context(), userID); err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": errors.ErrInternalServer.Error()})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"message": "пользователь успешно удален"})
}

var allowedTaskStatuses = map[string]bool{
	"pending":   true,
	"completed": true,
}

var allowedTaskPriorities = map[string]bool{
	"low":    true,
	"medium": true,
	"high":   true,
}

// taskAuthorized реализует предикат доступа: доступ имеет создатель задачи
// либо любой пользователь из assignedTo.
func taskAuthorized(userID string, task *models.Task) bool {
	if task.CreatedBy == userID {
		return true
	}
	for _, id := range task.AssignedTo {
		if id == userID {
			return true
		}
	}
	return false
}

func (api *TaskAPI) listTasks(ctx *gin.Context) {
	caller, ok := callerID(ctx)
	if !ok {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": errors.ErrTokenRequired.Error()})
		return
	}

	// Кривые page/limit не отклоняются как 400: они ломают запрос к
	// хранилищу и всплывают как 500.
	page, limit := 1, 10
	if v := ctx.Query("page"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil {
			ctx.JSON(http.StatusInternalServerError, gin.H{"error": errors.ErrInternalServer.Error()})
			return
		}
		page = p
	}
	if v := ctx.Query("limit"); v != "" {
		l, err := strconv.Atoi(v)
		if err != nil {
			ctx.JSON(http.StatusInternalServerError, gin.H{"error": errors.ErrInternalServer.Error()})
			return
		}
		limit = l
	}

	filter := models.TaskFilter{
		AssigneeID: caller,
		Status:     ctx.Query("status"),
		Priority:   ctx.Query("priority"),
		Page:       page,
		Limit:      limit,
	}

	tasks, total, err := api.tasks.ListTasks(ctx.Request.Context(), filter)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": errors.ErrInternalServer.Error()})
		return
	}

	views, err := api.taskViews(ctx.Request.Context(), tasks)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": errors.ErrInternalServer.Error()})
		return
	}

	totalPages := 0
	if limit > 0 {
		totalPages = (total + limit - 1) / limit
	}

	ctx.JSON(http.StatusOK, models.TaskPage{
		Tasks:      views,
		Total:      total,
		Page:       page,
		TotalPages: totalPages,
	})
}

func (api *TaskAPI) getTask(ctx *gin.Context) {
	caller, ok := callerID(ctx)
	if !ok {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": errors.ErrTokenRequired.Error()})
		return
	}

	task, err := api.tasks.GetTaskByID(ctx.Request.Context(), ctx.Param("taskID"))
	if err != nil {
		if err == errors.ErrTaskNotFound {
			ctx.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		} else {
			ctx.JSON(http.StatusInternalServerError, gin.H{"error": errors.ErrInternalServer.Error()})
		}
		return
	}

	if !taskAuthorized(caller, task) {
		ctx.JSON(http.StatusForbidden, gin.H{"error": errors.ErrForbidden.Error()})
		return
	}

	view, err := api.taskView(ctx.Request.Context(), task)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": errors.ErrInternalServer.Error()})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"task": view})
}

func (api *TaskAPI) createTask(ctx *gin.Context) {
	caller, ok := callerID(ctx)
	if !ok {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": errors.ErrTokenRequired.Error()})
		return
	}

	var req models.CreateTaskRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": errors.ErrBadRequest.Error()})
		return
	}

	valid := validator.New()
	if err := valid.Struct(req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": validationErrorToErrorResponse(err).Error()})
		return
	}

	assigned := req.AssignedTo
	if len(assigned) == 0 {
		assigned = []string{caller}
	}

	priority := req.Priority
	if priority == "" {
		priority = "medium"
	}

	task := models.Task{
		Title:       req.Title,
		Description: req.Description,
		DueDate:     req.DueDate,
		Status:      "pending",
		Priority:    priority,
		AssignedTo:  assigned,
		CreatedBy:   caller,
	}

	if err := api.tasks.CreateTask(ctx.Request.Context(), &task); err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": errors.ErrInternalServer.Error()})
		return
	}

	view, err := api.taskView(ctx.Request.Context(), &task)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": errors.ErrInternalServer.Error()})
		return
	}

	ctx.JSON(http.StatusCreated, gin.H{"task": view})
}

func (api *TaskAPI) updateTask(ctx *gin.Context) {
	caller, ok := callerID(ctx)
	if !ok {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": errors.ErrTokenRequired.Error()})
		return
	}

	id := ctx.Param("taskID")
	task, err := api.tasks.GetTaskByID(ctx.Request.Context(), id)
	if err != nil {
		if err == errors.ErrTaskNotFound {
			ctx.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		} else {
			ctx.JSON(http.StatusInternalServerError, gin.H{"error": errors.ErrInternalServer.Error()})
		}
		return
	}

	if !taskAuthorized(caller, task) {
		ctx.JSON(http.StatusForbidden, gin.H{"error": errors.ErrForbidden.Error()})
		return
	}

	var req models.UpdateTaskRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": errors.ErrBadRequest.Error()})
		return
	}

	if req.Status != nil && *req.Status != "" && !allowedTaskStatuses[*req.Status] {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": errors.ErrInvalidStatus.Error()})
		return
	}
	if req.Priority != nil && *req.Priority != "" && !allowedTaskPriorities[*req.Priority] {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": errors.ErrInvalidPriority.Error()})
		return
	}

	// Частичное обновление: пустой заголовок/срок/статус/приоритет поле не
	// меняют, пустое описание затирает, assignedTo заменяется только
	// непустым списком. createdBy не меняется никогда.
	if req.Title != nil && *req.Title != "" {
		task.Title = *req.Title
	}
	if req.Description != nil {
		task.Description = *req.Description
	}
	if req.DueDate.Set && !req.DueDate.Time.IsZero() {
		task.DueDate = req.DueDate.Time
	}
	if req.Status != nil && *req.Status != "" {
		task.Status = *req.Status
	}
	if req.Priority != nil && *req.Priority != "" {
		task.Priority = *req.Priority
	}
	if len(req.AssignedTo) > 0 {
		task.AssignedTo = req.AssignedTo
	}

	if err := api.tasks.UpdateTask(ctx.Request.Context(), id, task); err != nil {
		if err == errors.ErrTaskNotFound {
			ctx.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		} else {
			ctx.JSON(http.StatusInternalServerError, gin.H{"error": errors.ErrInternalServer.Error()})
		}
		return
	}

	view, err := api.taskView(ctx.Request.Context(), task)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": errors.ErrInternalServer.Error()})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"task": view})
}

func (api *TaskAPI) deleteTask(ctx *gin.Context) {
	caller, ok := callerID(ctx)
	if !ok {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": errors.ErrTokenRequired.Error()})
		return
	}

	id := ctx.Param("taskID")
	task, err := api.tasks.GetTaskByID(ctx.Request.Context(), id)
	if err != nil {
		if err == errors.ErrTaskNotFound {
			ctx.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		} else {
			ctx.JSON(http.StatusInternalServerError, gin.H{"error": errors.ErrInternalServer.Error()})
		}
		return
	}

	if !taskAuthorized(caller, task) {
		ctx.JSON(http.StatusForbidden, gin.H{"error": errors.ErrForbidden.Error()})
		return
	}

	if err := api.tasks.DeleteTask(ctx.Request.Context(), id); err != nil {
		if err == errors.ErrTaskNotFound {
			ctx.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		} else {
			ctx.JSON(http.StatusInternalServerError, gin.H{"error": errors.ErrInternalServer.Error()})
		}
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"message": "задача успешно удалена"})
}

// taskViews подставляет публичные профили пользователей вместо ссылок
// assignedTo/createdBy одним пакетным запросом к хранилищу.
func (api *TaskAPI) taskViews(ctx context.Context, tasks []models.Task) ([]models.TaskView, error) {
	idSet := make(map[string]struct{})
	for i := range tasks {
		idSet[tasks[i].CreatedBy] = struct{}{}
		for _, id := range tasks[i].AssignedTo {
			idSet[id] = struct{}{}
		}
	}

	byID := make(map[string]models.PublicUser, len(idSet))
	if len(idSet) > 0 {
		ids := make([]string, 0, len(idSet))
		for id := range idSet {
			ids = append(ids, id)
		}
		users, err := api.users.GetUsersByIDs(ctx, ids)
		if err != nil {
			log.Println("[ERROR] Не удалось получить пользователей для задач:", err)
			return nil, err
		}
		for i := range users {
			byID[users[i].ID] = users[i].Public()
		}
	}

	resolve := func(id string) models.PublicUser {
		if u, ok := byID[id]; ok {
			return u
		}
		return models.PublicUser{ID: id}
	}

	views := make([]models.TaskView, 0, len(tasks))
	for i := range tasks {
		t := &tasks[i]
		assigned := make([]models.PublicUser, 0, len(t.AssignedTo))
		for _, id := range t.AssignedTo {
			assigned = append(assigned, resolve(id))
		}
		views = append(views, models.TaskView{
			ID:          t.ID,
			Title:       t.Title,
			Description: t.Description,
			DueDate:     t.DueDate,
			Status:      t.Status,
			Priority:    t.Priority,
			AssignedTo:  assigned,
			CreatedBy:   resolve(t.CreatedBy),
			CreatedAt:   t.CreatedAt,
			UpdatedAt:   t.UpdatedAt,
		})
	}
	return views, nil
}

func (api *TaskAPI) taskView(ctx context.Context, task *models.Task) (*models.TaskView, error) {
	views, err := api.taskViews(ctx, []models.Task{*task})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

func validationErrorToErrorResponse(err error) error {
	if verrs, ok := err.(validator.ValidationErrors); ok {
		for _, verr := range verrs {
			switch verr.Field() {
			case "Username":
				return errors.ErrInvalidUsername
			case "Password":
				return errors.ErrInvalidPassword
			case "Name":
				return errors.ErrInvalidName
			case "Title":
				return errors.ErrInvalidTitle
			case "Description":
				return errors.ErrInvalidDescription
			case "DueDate":
				return errors.ErrInvalidDueDate
			case "Status":
				return errors.ErrInvalidStatus
			case "Priority":
				return errors.ErrInvalidPriority
			}
		}
	}
	return errors.ErrValidationFailed
}
