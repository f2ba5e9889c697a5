package server

import (
	"errors"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"optionsTracker/internal/app"
	"optionsTracker/internal/auth"
	"optionsTracker/internal/domain"
	"optionsTracker/internal/ports"
)

// Handler holds the services the endpoints delegate to. The boundary stays
// thin: parse, range-validate, call the service, map errors.
type Handler struct {
	logger   ports.Logger
	strategy *app.StrategyService
	auth     *auth.Service
	validate *validator.Validate
}

// NewHandler creates the endpoint handler set.
func NewHandler(logger ports.Logger, strategy *app.StrategyService, authSvc *auth.Service) *Handler {
	return &Handler{
		logger:   logger,
		strategy: strategy,
		auth:     authSvc,
		validate: validator.New(),
	}
}

// --- Request DTOs ---

type credentialsRequest struct {
	UserID   *int64 `json:"user_id" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// calculateRequest carries the transaction fields plus the caller-supplied
// current price. Presence of the seven mandatory fields is the writer's
// business (fixed-order check); the boundary only rejects out-of-range
// values on fields that are present.
type calculateRequest struct {
	UserID        *int64               `json:"userId"`
	StockID       *int64               `json:"stockId"`
	StrategyType  *domain.StrategyType `json:"strategyType"`
	StrikePrice   *float64             `json:"strikePrice" validate:"omitempty,gt=0"`
	Premium       *float64             `json:"premium" validate:"omitempty,gte=0"`
	MaturityTime  *int64               `json:"maturityTime"`
	StockQuantity *int64               `json:"stockQuantity" validate:"omitempty,gt=0"`
	CurrentPrice  *float64             `json:"currentPrice" validate:"omitempty,gt=0"`
}

type previewRequest struct {
	StrategyType *domain.StrategyType `json:"strategyType"`
	CurrentPrice *float64             `json:"currentPrice" validate:"omitempty,gt=0"`
	StrikePrice  *float64             `json:"strikePrice" validate:"omitempty,gt=0"`
	Premium      *float64             `json:"premium" validate:"omitempty,gte=0"`
}

type stockUpsertRequest struct {
	StockID      int64   `json:"stockId" validate:"required,gt=0"`
	Ticker       string  `json:"ticker" validate:"required"`
	CurrentPrice float64 `json:"currentPrice" validate:"gte=0"`
	Volatility   float64 `json:"volatility" validate:"gte=0"`
}

// --- Credential endpoints ---

// Register creates a new user account.
func (h *Handler) Register(c *fiber.Ctx) error {
	var req credentialsRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if err := h.validate.Struct(&req); err != nil {
		return badRequest(c, "user_id and password are required")
	}

	if err := h.auth.Register(c.Context(), *req.UserID, req.Password); err != nil {
		if errors.Is(err, ports.ErrUserExists) {
			return badRequest(c, "User ID already exists.")
		}
		return h.serverError(c, err, "Server error during registration")
	}

	return c.Status(fiber.StatusCreated).JSON(Response{
		Success: true,
		Message: "User registered successfully.",
	})
}

// Login verifies credentials and returns a bearer token.
func (h *Handler) Login(c *fiber.Ctx) error {
	var req credentialsRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if err := h.validate.Struct(&req); err != nil {
		return badRequest(c, "user_id and password are required")
	}

	token, err := h.auth.Login(c.Context(), *req.UserID, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, ports.ErrNotFound):
			return badRequest(c, "User ID not found.")
		case errors.Is(err, ports.ErrInvalidCredentials):
			return badRequest(c, "Invalid password.")
		}
		return h.serverError(c, err, "Server error during login")
	}

	return c.JSON(Response{
		Success: true,
		Message: "Login successful.",
		Data:    fiber.Map{"token": token},
	})
}

// --- Transaction endpoints ---

// Calculate runs the full calculate-and-store orchestration.
func (h *Handler) Calculate(c *fiber.Ctx) error {
	var req calculateRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if err := h.validate.Struct(&req); err != nil {
		return badRequest(c, "Out-of-range value: "+err.Error())
	}

	txReq := &domain.TransactionRequest{
		UserID:        req.UserID,
		StockID:       req.StockID,
		StrategyType:  req.StrategyType,
		StrikePrice:   req.StrikePrice,
		Premium:       req.Premium,
		MaturityTime:  req.MaturityTime,
		StockQuantity: req.StockQuantity,
	}
	var currentPrice float64
	if req.CurrentPrice != nil {
		currentPrice = *req.CurrentPrice
	}

	result, err := h.strategy.CalculateAndStore(c.Context(), txReq, currentPrice)
	if err != nil {
		var oe *ports.OrchestrationError
		if errors.As(err, &oe) && oe.Partial && result != nil {
			// The write committed; surface the ID rather than discarding it.
			h.logger.Warn(c.Context(), "Transaction stored but history read-back failed", map[string]interface{}{"transactionID": result.TransactionID})
			return c.Status(fiber.StatusCreated).JSON(Response{
				Success: true,
				Message: "Transaction stored, but reading back the history failed",
				Data:    result,
			})
		}

		var ve *ports.ValidationError
		if errors.As(err, &ve) {
			return badRequest(c, ve.Error())
		}
		return h.serverError(c, err, "Server error during transaction processing")
	}

	return c.Status(fiber.StatusCreated).JSON(Response{
		Success: true,
		Message: "Transaction calculated and stored successfully",
		Data:    result,
	})
}

// Preview runs the calculator-only variant; nothing is persisted.
func (h *Handler) Preview(c *fiber.Ctx) error {
	var req previewRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if err := h.validate.Struct(&req); err != nil {
		return badRequest(c, "Out-of-range value: "+err.Error())
	}

	var strategy domain.StrategyType
	if req.StrategyType != nil {
		strategy = *req.StrategyType
	}
	// Nothing is persisted on this path, so rejecting early costs nothing
	// and spares a pointless engine round-trip.
	if !strategy.IsValid() {
		return badRequest(c, "Unknown strategy type")
	}
	var currentPrice, strikePrice, premium float64
	if req.CurrentPrice != nil {
		currentPrice = *req.CurrentPrice
	}
	if req.StrikePrice != nil {
		strikePrice = *req.StrikePrice
	}
	if req.Premium != nil {
		premium = *req.Premium
	}

	metrics, err := h.strategy.Calculate(c.Context(), strategy, currentPrice, strikePrice, premium)
	if err != nil {
		return h.serverError(c, err, "Server error during calculation")
	}

	return c.JSON(Response{
		Success: true,
		Data:    metrics,
	})
}

// UserTransactions returns a user's transaction history.
func (h *Handler) UserTransactions(c *fiber.Ctx) error {
	userID, err := pathID(c, "userID")
	if err != nil {
		return badRequest(c, "Invalid userID parameter")
	}

	records, err := h.strategy.UserTransactions(c.Context(), userID)
	if err != nil {
		return h.serverError(c, err, "Server error while reading transactions")
	}

	return c.JSON(Response{
		Success: true,
		Data:    records,
	})
}

// --- Audit endpoint ---

// AuditLogs returns the audit entries visible to the user under their role.
func (h *Handler) AuditLogs(c *fiber.Ctx) error {
	userID, err := pathID(c, "userID")
	if err != nil {
		return badRequest(c, "Invalid userID parameter")
	}

	entries, err := h.strategy.AuditLogsForUser(c.Context(), userID)
	if err != nil {
		var nfe *ports.NotFoundError
		if errors.As(err, &nfe) {
			return c.Status(fiber.StatusNotFound).JSON(Response{
				Success: false,
				Error:   nfe.Error(),
			})
		}
		return h.serverError(c, err, "Server error while reading audit logs")
	}

	return c.JSON(Response{
		Success: true,
		Data:    entries,
	})
}

// --- Stock endpoints ---

// UpsertStock creates or refreshes a tracked stock.
func (h *Handler) UpsertStock(c *fiber.Ctx) error {
	var req stockUpsertRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if err := h.validate.Struct(&req); err != nil {
		return badRequest(c, "Invalid stock: "+err.Error())
	}

	stock := &domain.Stock{
		ID:           req.StockID,
		Ticker:       req.Ticker,
		CurrentPrice: req.CurrentPrice,
		Volatility:   req.Volatility,
	}
	if err := h.strategy.UpsertStock(c.Context(), stock); err != nil {
		return h.serverError(c, err, "Server error while saving stock")
	}

	return c.JSON(Response{
		Success: true,
		Data:    stock,
	})
}

// Stock returns a tracked stock by ID.
func (h *Handler) Stock(c *fiber.Ctx) error {
	stockID, err := pathID(c, "stockID")
	if err != nil {
		return badRequest(c, "Invalid stockID parameter")
	}

	stock, err := h.strategy.StockByID(c.Context(), stockID)
	if err != nil {
		return h.serverError(c, err, "Server error while reading stock")
	}
	if stock == nil {
		return c.Status(fiber.StatusNotFound).JSON(Response{
			Success: false,
			Error:   "Stock not found",
		})
	}

	return c.JSON(Response{
		Success: true,
		Data:    stock,
	})
}

// --- Helpers ---

func pathID(c *fiber.Ctx, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Params(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("invalid ID parameter")
	}
	return id, nil
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(Response{
		Success: false,
		Error:   msg,
	})
}

// serverError logs the typed error internally and returns only a generic
// message, so infrastructure detail never reaches untrusted callers.
func (h *Handler) serverError(c *fiber.Ctx, err error, msg string) error {
	h.logger.Error(c.Context(), err, msg)
	return c.Status(fiber.StatusInternalServerError).JSON(Response{
		Success: false,
		Error:   msg,
	})
}
