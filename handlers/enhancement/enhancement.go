package enhancement

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/module-enhancer/database"
	"github.com/sahilchouksey/module-enhancer/services"
	"github.com/sahilchouksey/module-enhancer/services/queue"
	"github.com/sahilchouksey/module-enhancer/utils/logger"
	"github.com/sahilchouksey/module-enhancer/utils/response"
	"github.com/sahilchouksey/module-enhancer/utils/validation"
)

// DefaultWaitTimeout bounds how long a waiting request holds its connection
const DefaultWaitTimeout = 6 * time.Minute

// JobQueue is the part of the queue the handler uses
type JobQueue interface {
	EnqueueJob(req queue.EnqueueRequest) (string, <-chan queue.Outcome)
	Status() queue.Status
}

// RequestPreparer turns a module id into a queue submission
type RequestPreparer interface {
	PrepareRequest(ctx context.Context, moduleID uint, instructionOverride string, moduleNumber int) (queue.EnqueueRequest, error)
}

// EnhancementHandler handles module enhancement requests
type EnhancementHandler struct {
	queue       JobQueue
	preparer    RequestPreparer
	validator   *validation.Validator
	log         *logger.Logger
	waitTimeout time.Duration
}

// NewEnhancementHandler creates a new enhancement handler
func NewEnhancementHandler(q JobQueue, preparer RequestPreparer, log *logger.Logger) *EnhancementHandler {
	return &EnhancementHandler{
		queue:       q,
		preparer:    preparer,
		validator:   validation.NewValidator(),
		log:         log,
		waitTimeout: DefaultWaitTimeout,
	}
}

// EnhanceModuleRequest is the optional body of an enhance request
type EnhanceModuleRequest struct {
	InstructionOverride string `json:"instruction_override" validate:"omitempty,max=4000"`
	ModuleNumber        int    `json:"module_number" validate:"gte=0"`
	Wait                bool   `json:"wait"`
}

type queuedResponse struct {
	JobID  string       `json:"job_id"`
	Status queue.Status `json:"queue"`
}

// EnhanceModule handles POST /api/v1/modules/:id/enhance
func (h *EnhancementHandler) EnhanceModule(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return response.BadRequest(c, "Invalid module id")
	}

	var req EnhanceModuleRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return response.BadRequest(c, "Invalid request body")
		}
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, validation.FormatValidationErrors(err))
	}

	if h.queue.Status().AtSoftLimit() {
		return response.TooManyRequests(c, "Enhancement queue is full, try again later")
	}

	enqueueReq, err := h.preparer.PrepareRequest(c.UserContext(), uint(id), req.InstructionOverride, req.ModuleNumber)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return response.NotFound(c, "Module not found")
		}
		if errors.Is(err, services.ErrEmptyContent) {
			return response.BadRequest(c, "Module has no content to enhance")
		}
		h.log.Error("Failed to prepare enhancement", "module_id", id, "error", err)
		return response.InternalServerError(c, "Failed to load module")
	}

	jobID, done := h.queue.EnqueueJob(enqueueReq)
	if jobID == "" {
		return h.outcome(c, <-done)
	}
	if !req.Wait {
		return h.accepted(c, jobID)
	}

	timer := time.NewTimer(h.waitTimeout)
	defer timer.Stop()

	select {
	case out := <-done:
		return h.outcome(c, out)
	case <-timer.C:
		// The job keeps running; the caller can poll the queue
		return h.accepted(c, jobID)
	}
}

func (h *EnhancementHandler) accepted(c *fiber.Ctx, jobID string) error {
	return response.Accepted(c, "Module queued for enhancement", queuedResponse{JobID: jobID, Status: h.queue.Status()})
}

func (h *EnhancementHandler) outcome(c *fiber.Ctx, out queue.Outcome) error {
	switch {
	case out.Err == nil:
		return response.SuccessWithMessage(c, out.Result.Message, out.Result)
	case errors.Is(out.Err, queue.ErrQueueShutdown):
		return response.ServiceUnavailable(c, "Enhancement queue is shutting down")
	case errors.Is(out.Err, queue.ErrInvalidJob):
		return response.BadRequest(c, "Module is missing a title")
	case errors.Is(out.Err, database.ErrNotFound):
		return response.NotFound(c, "Module not found")
	default:
		return response.InternalServerError(c, "Enhancement failed")
	}
}

// QueueStatus handles GET /api/v1/enhancement/queue
func (h *EnhancementHandler) QueueStatus(c *fiber.Ctx) error {
	return response.Success(c, h.queue.Status())
}
