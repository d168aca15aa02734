package http

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/google/uuid"
	"go.uber.org/zap"

	sharedDomain "github.com/davicafu/pomotasks/internal/shared/domain"
	"github.com/davicafu/pomotasks/internal/shared/infra/platform/identity"
	"github.com/davicafu/pomotasks/internal/task/application"
	taskDomain "github.com/davicafu/pomotasks/internal/task/domain"
	"github.com/davicafu/pomotasks/pkg/utils"
)

// TaskHandler encapsula los endpoints HTTP relacionados con Task.
type TaskHandler struct {
	service *application.TaskService
	log     *zap.Logger
}

// NewTaskHandler crea un nuevo TaskHandler.
func NewTaskHandler(service *application.TaskService, log *zap.Logger) *TaskHandler {
	return &TaskHandler{service: service, log: log}
}

// --- Handlers CRUD ---

// ListTasks endpoint GET /tasks/
func (h *TaskHandler) ListTasks(c *gin.Context) {
	owner, ok := h.owner(c)
	if !ok {
		return
	}

	tasks, err := h.service.ListTasks(c.Request.Context(), owner)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, toTaskResponses(tasks))
}

// CreateTask endpoint POST /tasks/
func (h *TaskHandler) CreateTask(c *gin.Context) {
	owner, ok := h.owner(c)
	if !ok {
		return
	}

	var req taskRequest
	if !h.bind(c, &req) {
		return
	}

	if missing := requiredFields(req); len(missing) > 0 {
		utils.SendValidationError(c, missing)
		return
	}

	in := application.CreateTaskInput{Title: *req.Title, AllocatedHours: *req.AllocatedHours}
	if req.Status != nil {
		st := taskDomain.TaskStatus(*req.Status)
		in.Status = &st
	}

	task, err := h.service.CreateTask(c.Request.Context(), owner, in)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toTaskResponse(task))
}

// GetTask endpoint GET /tasks/:id/
func (h *TaskHandler) GetTask(c *gin.Context) {
	owner, id, ok := h.ownerAndID(c)
	if !ok {
		return
	}

	task, err := h.service.GetTask(c.Request.Context(), owner, id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, toTaskResponse(task))
}

// PatchTask endpoint PATCH /tasks/:id/ (actualización parcial)
func (h *TaskHandler) PatchTask(c *gin.Context) {
	h.update(c, false)
}

// ReplaceTask endpoint PUT /tasks/:id/ (title y allocated_hours obligatorios)
func (h *TaskHandler) ReplaceTask(c *gin.Context) {
	h.update(c, true)
}

func (h *TaskHandler) update(c *gin.Context, full bool) {
	owner, id, ok := h.ownerAndID(c)
	if !ok {
		return
	}

	var req taskRequest
	if !h.bind(c, &req) {
		return
	}
	if full {
		if missing := requiredFields(req); len(missing) > 0 {
			utils.SendValidationError(c, missing)
			return
		}
	}

	task, err := h.service.UpdateTask(c.Request.Context(), owner, id, req.toPatch())
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, toTaskResponse(task))
}

// DeleteTask endpoint DELETE /tasks/:id/
func (h *TaskHandler) DeleteTask(c *gin.Context) {
	owner, id, ok := h.ownerAndID(c)
	if !ok {
		return
	}

	if err := h.service.DeleteTask(c.Request.Context(), owner, id); err != nil {
		h.handleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// --- Acciones ---

// UpdateTime endpoint POST /tasks/:id/update_time/ con 'seconds' en el cuerpo.
// Un valor ausente o no numérico cuenta como 0.
func (h *TaskHandler) UpdateTime(c *gin.Context) {
	owner, id, ok := h.ownerAndID(c)
	if !ok {
		return
	}

	seconds := parseSeconds(readBodyField(c, "seconds"))

	task, err := h.service.UpdateTime(c.Request.Context(), owner, id, seconds)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, toTaskResponse(task))
}

// ChangeStatus endpoint POST /tasks/:id/change_status/ con 'status' en el cuerpo.
func (h *TaskHandler) ChangeStatus(c *gin.Context) {
	owner, id, ok := h.ownerAndID(c)
	if !ok {
		return
	}

	status, _ := readBodyField(c, "status").(string)

	task, err := h.service.ChangeStatus(c.Request.Context(), owner, id, taskDomain.TaskStatus(status))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, toTaskResponse(task))
}

// SearchTasks endpoint GET /tasks/search/?q=
func (h *TaskHandler) SearchTasks(c *gin.Context) {
	owner, ok := h.owner(c)
	if !ok {
		return
	}

	tasks, err := h.service.SearchTasks(c.Request.Context(), owner, c.Query("q"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, toTaskResponses(tasks))
}

// Statistics endpoint GET /tasks/statistics/
func (h *TaskHandler) Statistics(c *gin.Context) {
	owner, ok := h.owner(c)
	if !ok {
		return
	}

	stats, err := h.service.Statistics(c.Request.Context(), owner)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// --- Helpers ---

func (h *TaskHandler) owner(c *gin.Context) (uuid.UUID, bool) {
	p, ok := identity.PrincipalFromContext(c.Request.Context())
	if !ok {
		utils.SendUnauthorized(c, "authentication credentials were not provided")
		return uuid.Nil, false
	}
	return p.UserID, true
}

// ownerAndID resuelve el principal y el id de la ruta. Un id que no es UUID no puede
// existir, así que se responde 404 como para cualquier tarea ausente.
func (h *TaskHandler) ownerAndID(c *gin.Context) (uuid.UUID, uuid.UUID, bool) {
	owner, ok := h.owner(c)
	if !ok {
		return uuid.Nil, uuid.Nil, false
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.SendNotFound(c, taskDomain.ErrTaskNotFound.Error())
		return uuid.Nil, uuid.Nil, false
	}
	return owner, id, true
}

// bind decodifica el cuerpo (JSON o formulario). En JSON, un null explícito es un error de campo.
func (h *TaskHandler) bind(c *gin.Context, req *taskRequest) bool {
	if c.ContentType() != binding.MIMEJSON {
		if err := c.ShouldBind(req); err != nil {
			utils.SendBadRequest(c, "invalid request body: "+err.Error())
			return false
		}
		return true
	}

	if err := c.ShouldBindBodyWith(req, binding.JSON); err != nil {
		utils.SendBadRequest(c, "invalid request body: "+err.Error())
		return false
	}
	var raw map[string]json.RawMessage
	if err := c.ShouldBindBodyWith(&raw, binding.JSON); err != nil {
		utils.SendBadRequest(c, "invalid request body: "+err.Error())
		return false
	}
	if nulls := nullFields(raw); len(nulls) > 0 {
		utils.SendValidationError(c, nulls)
		return false
	}
	return true
}

func (h *TaskHandler) handleError(c *gin.Context, err error) {
	var verr *sharedDomain.ValidationError
	switch {
	case errors.As(err, &verr):
		utils.SendValidationError(c, verr.Fields)
	case errors.Is(err, taskDomain.ErrTaskNotFound):
		utils.SendNotFound(c, taskDomain.ErrTaskNotFound.Error())
	default:
		h.log.Error("Unhandled task error", zap.String("path", c.FullPath()), zap.Error(err))
		utils.SendInternalServerError(c, "internal server error")
	}
}

func requiredFields(req taskRequest) map[string]string {
	missing := map[string]string{}
	if req.Title == nil {
		missing["title"] = "this field is required"
	}
	if req.AllocatedHours == nil {
		missing["allocated_hours"] = "this field is required"
	}
	return missing
}

// readBodyField lee un único campo del cuerpo, sea JSON o formulario.
// Devuelve nil si falta o si el cuerpo no se puede leer.
func readBodyField(c *gin.Context, field string) interface{} {
	if c.ContentType() == binding.MIMEJSON {
		var body map[string]interface{}
		if err := c.ShouldBindBodyWith(&body, binding.JSON); err != nil {
			return nil
		}
		return body[field]
	}
	if v, ok := c.GetPostForm(field); ok {
		return v
	}
	return nil
}

// parseSeconds acepta números o texto numérico; cualquier otra cosa vale 0.
func parseSeconds(v interface{}) float64 {
	var seconds float64
	switch s := v.(type) {
	case float64:
		seconds = s
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return 0
		}
		seconds = parsed
	default:
		return 0
	}
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		return 0
	}
	return seconds
}
