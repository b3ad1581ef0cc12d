package users

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/userdesk/userdesk/internal/auth"
)

// Sessions issues and revokes login sessions.
type Sessions interface {
	Issue(ctx context.Context, userID string) (auth.Session, error)
	Revoke(ctx context.Context, id auth.Identity) error
}

// Handler exposes user endpoints.
type Handler struct {
	service      *Service
	sessions     Sessions
	cookieSecure bool
}

// NewHandler constructs a users HTTP handler.
func NewHandler(service *Service, sessions Sessions, cookieSecure bool) *Handler {
	return &Handler{service: service, sessions: sessions, cookieSecure: cookieSecure}
}

type registerRequest struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

type loginRequest struct {
	EmailOrUsername string `json:"emailOrUsername"`
	Password        string `json:"password"`
}

type bulkRequest struct {
	Action string   `json:"action"`
	IDs    []string `json:"ids"`
}

// UserResponse is the user detail record.
type UserResponse struct {
	ID               string     `json:"id"`
	Name             string     `json:"name"`
	Email            string     `json:"email"`
	LastLoginTime    *time.Time `json:"lastLoginTime,omitempty"`
	RegistrationTime *time.Time `json:"registrationTime,omitempty"`
	Status           Status     `json:"status"`
}

type bulkItem struct {
	ID     string  `json:"id"`
	OK     bool    `json:"ok"`
	Status *Status `json:"status,omitempty"`
	Error  string  `json:"error,omitempty"`
}

type errorsResponse struct {
	Errors []string `json:"errors"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func toResponse(u User) UserResponse {
	resp := UserResponse{
		ID:            u.ID,
		Name:          u.Name,
		Email:         u.Email,
		LastLoginTime: u.LastLoginTime,
		Status:        u.Status,
	}
	if !u.RegistrationTime.IsZero() {
		t := u.RegistrationTime
		resp.RegistrationTime = &t
	}
	return resp
}

// Register handles account creation.
func (h *Handler) Register(c *fiber.Ctx) error {
	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(http.StatusBadRequest).JSON(errorsResponse{Errors: []string{"Malformed request body"}})
	}
	user, err := h.service.Register(c.UserContext(), RegisterInput{
		Name:            req.Name,
		Email:           req.Email,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
	})
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"message": "User created successfully",
		"userId":  user.ID,
	})
}

// Login verifies credentials and establishes a session.
func (h *Handler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(http.StatusBadRequest).JSON(errorsResponse{Errors: []string{"Malformed request body"}})
	}
	user, err := h.service.Login(c.UserContext(), LoginInput{EmailOrUsername: req.EmailOrUsername, Password: req.Password})
	if err != nil {
		return h.fail(c, err)
	}
	sess, err := h.sessions.Issue(c.UserContext(), user.ID)
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, "could not establish session")
	}
	c.Cookie(auth.SessionCookie(sess, h.cookieSecure))
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"message":   "Login successful",
		"user":      toResponse(user),
		"token":     sess.Token,
		"expiresAt": sess.ExpiresAt,
	})
}

// Logout revokes the caller's session.
func (h *Handler) Logout(c *fiber.Ctx) error {
	id, ok := auth.IdentityFrom(c.UserContext())
	if !ok {
		return fiber.NewError(http.StatusUnauthorized, "unauthorized")
	}
	if err := h.sessions.Revoke(c.UserContext(), id); err != nil {
		return fiber.NewError(http.StatusInternalServerError, "could not end session")
	}
	c.Cookie(auth.ExpiredCookie(h.cookieSecure))
	return c.Status(http.StatusOK).JSON(messageResponse{Message: "Logged out"})
}

// Me returns the caller's own record.
func (h *Handler) Me(c *fiber.Ctx) error {
	id, ok := auth.IdentityFrom(c.UserContext())
	if !ok {
		return fiber.NewError(http.StatusUnauthorized, "unauthorized")
	}
	user, err := h.service.Get(c.UserContext(), id.UserID)
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(http.StatusOK).JSON(toResponse(user))
}

// List returns every user.
func (h *Handler) List(c *fiber.Ctx) error {
	all, err := h.service.List(c.UserContext())
	if err != nil {
		return h.fail(c, err)
	}
	out := make([]UserResponse, 0, len(all))
	for _, u := range all {
		out = append(out, toResponse(u))
	}
	return c.Status(http.StatusOK).JSON(out)
}

// Get returns a single user.
func (h *Handler) Get(c *fiber.Ctx) error {
	user, err := h.service.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(http.StatusOK).JSON(toResponse(user))
}

// Block marks the user as blocked.
func (h *Handler) Block(c *fiber.Ctx) error {
	actor, _ := auth.IdentityFrom(c.UserContext())
	user, err := h.service.Block(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(http.StatusOK).JSON(toResponse(user))
}

// Unblock restores the user to active.
func (h *Handler) Unblock(c *fiber.Ctx) error {
	actor, _ := auth.IdentityFrom(c.UserContext())
	user, err := h.service.Unblock(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(http.StatusOK).JSON(toResponse(user))
}

// Delete removes the user.
func (h *Handler) Delete(c *fiber.Ctx) error {
	actor, _ := auth.IdentityFrom(c.UserContext())
	if err := h.service.Delete(c.UserContext(), actor, c.Params("id")); err != nil {
		return h.fail(c, err)
	}
	return c.Status(http.StatusOK).JSON(messageResponse{Message: "User deleted successfully"})
}

// Bulk applies one moderation action to many users and reports each outcome.
func (h *Handler) Bulk(c *fiber.Ctx) error {
	var req bulkRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(http.StatusBadRequest).JSON(errorsResponse{Errors: []string{"Malformed request body"}})
	}
	actor, _ := auth.IdentityFrom(c.UserContext())
	results, err := h.service.Apply(c.UserContext(), actor, Action(req.Action), req.IDs)
	if err != nil {
		return h.fail(c, err)
	}
	items := make([]bulkItem, 0, len(results))
	for _, r := range results {
		item := bulkItem{ID: r.ID, OK: r.Err == nil}
		if r.User != nil {
			status := r.User.Status
			item.Status = &status
		}
		if r.Err != nil {
			item.Error = r.Err.Error()
		}
		items = append(items, item)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"results": items})
}

func (h *Handler) fail(c *fiber.Ctx, err error) error {
	var (
		vErr *ValidationError
		dErr *DuplicateError
		sErr *StoreError
	)
	switch {
	case errors.As(err, &vErr):
		return c.Status(http.StatusBadRequest).JSON(errorsResponse{Errors: vErr.Messages})
	case errors.Is(err, ErrNotFound):
		return c.Status(http.StatusNotFound).JSON(messageResponse{Message: "User not found"})
	case errors.As(err, &dErr):
		return c.Status(http.StatusBadRequest).JSON(errorsResponse{Errors: []string{dErr.Error()}})
	case errors.Is(err, ErrBlocked):
		return c.Status(http.StatusForbidden).JSON(messageResponse{Message: "User is blocked"})
	case errors.Is(err, ErrInvalidCredentials):
		return c.Status(http.StatusBadRequest).JSON(messageResponse{Message: "Invalid login attempt"})
	case errors.Is(err, ErrInvalidStatus):
		return c.Status(http.StatusBadRequest).JSON(errorsResponse{Errors: []string{err.Error()}})
	case errors.As(err, &sErr):
		return c.Status(http.StatusBadRequest).JSON(errorsResponse{Errors: []string{sErr.Error()}})
	default:
		return err
	}
}
