package api

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/FlowNice/job-application-agent/internal/model"
)

type leadResponse struct {
	ID                int64     `json:"id"`
	VacancyID         string    `json:"vacancy_id"`
	Title             string    `json:"title"`
	Company           string    `json:"company"`
	URL               string    `json:"url"`
	RecruiterName     string    `json:"recruiter_name,omitempty"`
	RecruiterEmail    string    `json:"recruiter_email,omitempty"`
	GeneratedResponse string    `json:"generated_response"`
	MeetingLink       *string   `json:"meeting_link"`
	Status            string    `json:"status"`
	Feedback          string    `json:"feedback,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

func toResponse(l model.Lead) leadResponse {
	return leadResponse{
		ID:                l.ID,
		VacancyID:         l.VacancyID,
		Title:             l.Title,
		Company:           l.Company,
		URL:               l.URL,
		RecruiterName:     l.RecruiterName,
		RecruiterEmail:    l.RecruiterEmail,
		GeneratedResponse: l.GeneratedResponse,
		MeetingLink:       l.MeetingLink,
		Status:            string(l.Status),
		Feedback:          l.Feedback,
		CreatedAt:         l.CreatedAt,
		UpdatedAt:         l.UpdatedAt,
	}
}

type statusRequest struct {
	Status   string  `json:"status" validate:"required"`
	Feedback *string `json:"feedback" validate:"omitempty,max=4000"`
}

func (s *Server) health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

func (s *Server) listLeads(c *fiber.Ctx) error {
	var filter *model.Status
	if raw := c.Query("status"); raw != "" {
		st, err := model.ParseStatus(raw)
		if err != nil {
			return err
		}
		filter = &st
	}

	leads, err := s.store.List(c.UserContext(), filter)
	if err != nil {
		return err
	}
	out := make([]leadResponse, 0, len(leads))
	for _, l := range leads {
		out = append(out, toResponse(l))
	}
	return c.JSON(fiber.Map{"leads": out, "count": len(out)})
}

func (s *Server) getLead(c *fiber.Ctx) error {
	id, err := leadID(c)
	if err != nil {
		return err
	}
	lead, found, err := s.store.GetByID(c.UserContext(), id)
	if err != nil {
		return err
	}
	if !found {
		return model.ErrNotFound
	}
	return c.JSON(toResponse(lead))
}

func (s *Server) getLeadByVacancy(c *fiber.Ctx) error {
	lead, found, err := s.store.GetByVacancyID(c.UserContext(), c.Params("vacancyID"))
	if err != nil {
		return err
	}
	if !found {
		return model.ErrNotFound
	}
	return c.JSON(toResponse(lead))
}

func (s *Server) updateStatus(c *fiber.Ctx) error {
	id, err := leadID(c)
	if err != nil {
		return err
	}

	var req statusRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := s.validate.Struct(req); err != nil {
		return err
	}
	status, err := model.ParseStatus(req.Status)
	if err != nil {
		return err
	}

	lead, err := s.tracker.Transition(c.UserContext(), id, status, req.Feedback)
	if err != nil {
		return err
	}
	s.logger.Info("status updated via api",
		"lead_id", lead.ID,
		"status", string(lead.Status),
		"operator", c.Locals("operator"),
	)
	return c.JSON(toResponse(lead))
}

func (s *Server) deleteLead(c *fiber.Ctx) error {
	id, err := leadID(c)
	if err != nil {
		return err
	}
	if err := s.store.Delete(c.UserContext(), id); err != nil {
		return err
	}
	s.logger.Info("lead deleted via api", "lead_id", id, "operator", c.Locals("operator"))
	return c.SendStatus(fiber.StatusNoContent)
}

func leadID(c *fiber.Ctx) (int64, error) {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fiber.NewError(fiber.StatusBadRequest, "invalid lead id")
	}
	return id, nil
}
