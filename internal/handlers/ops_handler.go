package handlers

import (
	"context"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/EshanRavindu17/OnlineTutoringPlatform-sub004/internal/scheduler"
	"github.com/EshanRavindu17/OnlineTutoringPlatform-sub004/internal/services"
)

type sweepRunner interface {
	ExpireOverdueSessions(ctx context.Context) (*services.SweepReport, error)
	CompleteOverrunSessions(ctx context.Context) (*services.SweepReport, error)
	InvalidateStaleEnrollments(ctx context.Context) (*services.EnrollmentSweepReport, error)
}

type reminderRunner interface {
	Run(ctx context.Context, hoursAhead int) (*services.ReminderReport, error)
}

type schedulerStatus interface {
	Status() []scheduler.JobStatus
}

// OpsHandler exposes the sweep and reminder entry points outside their
// cadence, for operational testing, plus scheduler introspection.
type OpsHandler struct {
	sweeps    sweepRunner
	reminders reminderRunner
	scheduler schedulerStatus
}

func NewOpsHandler(sweeps *services.SweepService, reminders *services.ReminderService, sched *scheduler.Scheduler) *OpsHandler {
	h := &OpsHandler{sweeps: sweeps, reminders: reminders}
	// A disabled scheduler stays a nil interface so Status reports it off.
	if sched != nil {
		h.scheduler = sched
	}
	return h
}

func (h *OpsHandler) RunExpirySweep(c *fiber.Ctx) error {
	report, err := h.sweeps.ExpireOverdueSessions(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"report": report})
}

func (h *OpsHandler) RunCompletionSweep(c *fiber.Ctx) error {
	report, err := h.sweeps.CompleteOverrunSessions(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"report": report})
}

func (h *OpsHandler) RunEnrollmentSweep(c *fiber.Ctx) error {
	report, err := h.sweeps.InvalidateStaleEnrollments(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"report": report})
}

func (h *OpsHandler) TriggerReminder(c *fiber.Ctx) error {
	hoursAhead, err := strconv.Atoi(c.Params("hours"))
	if err != nil || hoursAhead <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "hours must be a positive integer"})
	}

	report, err := h.reminders.Run(c.Context(), hoursAhead)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"report": report})
}

func (h *OpsHandler) SchedulerStatus(c *fiber.Ctx) error {
	if h.scheduler == nil {
		return c.JSON(fiber.Map{"enabled": false, "jobs": []scheduler.JobStatus{}})
	}
	return c.JSON(fiber.Map{"enabled": true, "jobs": h.scheduler.Status()})
}
