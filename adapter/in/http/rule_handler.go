package http

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/pretzelai/email-use/core/agent"
	"github.com/pretzelai/email-use/core/domain"
	"github.com/pretzelai/email-use/core/port/out"
	"github.com/pretzelai/email-use/pkg/logger"
)

// RuleHandler handles rule CRUD, publishing, and dry-run testing.
type RuleHandler struct {
	ruleRepo out.RuleRepository
	decision *agent.DecisionStep
}

// NewRuleHandler creates a new rule handler.
func NewRuleHandler(ruleRepo out.RuleRepository, decision *agent.DecisionStep) *RuleHandler {
	return &RuleHandler{ruleRepo: ruleRepo, decision: decision}
}

// Register registers rule routes.
func (h *RuleHandler) Register(router fiber.Router) {
	rules := router.Group("/rules")
	rules.Get("/", h.List)
	rules.Post("/", h.Create)
	rules.Get("/:id", h.Get)
	rules.Put("/:id", h.Update)
	rules.Delete("/:id", h.Delete)
	rules.Post("/:id/publish", h.Publish)
	rules.Post("/:id/unpublish", h.Unpublish)
	rules.Post("/:id/test", h.Test)
}

type ruleRequest struct {
	Name          string  `json:"name"`
	Description   *string `json:"description"`
	RuleText      string  `json:"ruleText"`
	Provider      string  `json:"provider"`
	Model         string  `json:"model"`
	IsActive      *bool   `json:"isActive"`
	SkipArchived  bool    `json:"skipArchived"`
	SkipRead      bool    `json:"skipRead"`
	SkipLabeled   bool    `json:"skipLabeled"`
	SkipStarred   bool    `json:"skipStarred"`
	SkipImportant bool    `json:"skipImportant"`
}

func (r *ruleRequest) validate() string {
	if r.Name == "" {
		return "name is required"
	}
	if r.RuleText == "" {
		return "ruleText is required"
	}
	switch domain.AIProvider(r.Provider) {
	case domain.ProviderOpenAI, domain.ProviderAnthropic:
	default:
		return "provider must be openai or anthropic"
	}
	if r.Model == "" {
		return "model is required"
	}
	return ""
}

// List returns all rules of the authenticated user.
func (h *RuleHandler) List(c *fiber.Ctx) error {
	userID, err := GetUserID(c)
	if err != nil {
		return unauthorized(c)
	}

	rules, err := h.ruleRepo.ListByUser(c.Context(), userID)
	if err != nil {
		return internalError(c, err)
	}
	return c.JSON(fiber.Map{"rules": rules})
}

// Get returns one rule.
func (h *RuleHandler) Get(c *fiber.Ctx) error {
	userID, err := GetUserID(c)
	if err != nil {
		return unauthorized(c)
	}

	rule, err := h.loadOwnedRule(c, userID)
	if err != nil {
		return err
	}
	return c.JSON(rule)
}

// Create creates an unpublished rule.
func (h *RuleHandler) Create(c *fiber.Ctx) error {
	userID, err := GetUserID(c)
	if err != nil {
		return unauthorized(c)
	}

	var req ruleRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if msg := req.validate(); msg != "" {
		return badRequest(c, msg)
	}

	now := time.Now()
	isActive := true
	if req.IsActive != nil {
		isActive = *req.IsActive
	}
	rule := &domain.Rule{
		ID:            uuid.New(),
		UserID:        userID,
		Name:          req.Name,
		Description:   req.Description,
		RuleText:      req.RuleText,
		Provider:      domain.AIProvider(req.Provider),
		Model:         req.Model,
		IsActive:      isActive,
		IsPublished:   false,
		SkipArchived:  req.SkipArchived,
		SkipRead:      req.SkipRead,
		SkipLabeled:   req.SkipLabeled,
		SkipStarred:   req.SkipStarred,
		SkipImportant: req.SkipImportant,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := h.ruleRepo.Create(c.Context(), rule); err != nil {
		return internalError(c, err)
	}

	logger.Info("[RuleHandler.Create] user=%s rule=%s", userID, rule.ID)
	return c.Status(fiber.StatusCreated).JSON(rule)
}

// Update edits an existing rule.
func (h *RuleHandler) Update(c *fiber.Ctx) error {
	userID, err := GetUserID(c)
	if err != nil {
		return unauthorized(c)
	}

	rule, err := h.loadOwnedRule(c, userID)
	if err != nil {
		return err
	}

	var req ruleRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if msg := req.validate(); msg != "" {
		return badRequest(c, msg)
	}

	rule.Name = req.Name
	rule.Description = req.Description
	rule.RuleText = req.RuleText
	rule.Provider = domain.AIProvider(req.Provider)
	rule.Model = req.Model
	if req.IsActive != nil {
		rule.IsActive = *req.IsActive
	}
	rule.SkipArchived = req.SkipArchived
	rule.SkipRead = req.SkipRead
	rule.SkipLabeled = req.SkipLabeled
	rule.SkipStarred = req.SkipStarred
	rule.SkipImportant = req.SkipImportant
	rule.UpdatedAt = time.Now()

	if err := h.ruleRepo.Update(c.Context(), rule); err != nil {
		return internalError(c, err)
	}
	return c.JSON(rule)
}

// Delete removes a rule. Its log entries stay, detached.
func (h *RuleHandler) Delete(c *fiber.Ctx) error {
	userID, err := GetUserID(c)
	if err != nil {
		return unauthorized(c)
	}

	rule, err := h.loadOwnedRule(c, userID)
	if err != nil {
		return err
	}

	if err := h.ruleRepo.Delete(c.Context(), rule.ID); err != nil {
		return internalError(c, err)
	}
	return c.JSON(fiber.Map{"deleted": true})
}

// Publish makes the rule eligible for automatic discovery.
func (h *RuleHandler) Publish(c *fiber.Ctx) error {
	return h.setPublished(c, true)
}

// Unpublish takes the rule out of automatic discovery.
func (h *RuleHandler) Unpublish(c *fiber.Ctx) error {
	return h.setPublished(c, false)
}

func (h *RuleHandler) setPublished(c *fiber.Ctx, published bool) error {
	userID, err := GetUserID(c)
	if err != nil {
		return unauthorized(c)
	}

	rule, err := h.loadOwnedRule(c, userID)
	if err != nil {
		return err
	}

	if err := h.ruleRepo.SetPublished(c.Context(), rule.ID, published); err != nil {
		return internalError(c, err)
	}
	return c.JSON(fiber.Map{"id": rule.ID, "isPublished": published})
}

type testRuleRequest struct {
	Subject string `json:"subject"`
	From    string `json:"from"`
	Body    string `json:"body"`
}

type testRuleResponse struct {
	Summary   string `json:"summary"`
	ToolCalls []struct {
		Name string         `json:"name"`
		Args map[string]any `json:"args"`
	} `json:"toolCalls"`
}

// Test runs a rule against a sample email in dry-run mode. Works on
// unpublished rules; nothing touches the mailbox.
func (h *RuleHandler) Test(c *fiber.Ctx) error {
	userID, err := GetUserID(c)
	if err != nil {
		return unauthorized(c)
	}

	rule, err := h.loadOwnedRule(c, userID)
	if err != nil {
		return err
	}

	var req testRuleRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if req.From == "" || req.Body == "" {
		return badRequest(c, "from and body are required")
	}

	email := &domain.EmailMessage{
		ID:      "dry-run",
		Subject: req.Subject,
		From:    req.From,
		Body:    req.Body,
	}

	decision, err := h.decision.DecideDryRun(c.Context(), rule, email)
	if err != nil {
		return internalError(c, err)
	}

	resp := testRuleResponse{Summary: decision.Summary}
	for _, call := range decision.ToolCalls {
		resp.ToolCalls = append(resp.ToolCalls, struct {
			Name string         `json:"name"`
			Args map[string]any `json:"args"`
		}{Name: call.Name, Args: call.Args})
	}
	return c.JSON(resp)
}

func (h *RuleHandler) loadOwnedRule(c *fiber.Ctx, userID string) (*domain.Rule, error) {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return nil, badRequest(c, "invalid rule id")
	}

	rule, err := h.ruleRepo.GetByID(c.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, notFound(c, "rule not found")
		}
		return nil, internalError(c, err)
	}
	if rule.UserID != userID {
		return nil, notFound(c, "rule not found")
	}
	return rule, nil
}
