package users

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/userdesk/userdesk/internal/auth"
	"github.com/userdesk/userdesk/internal/logging"
	"github.com/userdesk/userdesk/internal/notification"
)

// bcrypt ignores everything past 72 bytes, so longer passwords are rejected.
const maxPasswordBytes = 72

// Action is a moderation action applicable to a batch of users.
type Action string

const (
	ActionBlock   Action = "block"
	ActionUnblock Action = "unblock"
	ActionDelete  Action = "delete"
)

// ParseAction validates a moderation action name.
func ParseAction(v string) (Action, error) {
	switch a := Action(strings.ToLower(strings.TrimSpace(v))); a {
	case ActionBlock, ActionUnblock, ActionDelete:
		return a, nil
	default:
		return "", &ValidationError{Messages: []string{fmt.Sprintf("Unknown action '%s'", v)}}
	}
}

// BulkResult is the per-id outcome of Apply. User is nil for deletions and failures.
type BulkResult struct {
	ID   string
	User *User
	Err  error
}

// Service manages registration, login and moderation of accounts.
type Service struct {
	repo              Repository
	hasher            PasswordHasher
	notifier          notification.Notifier
	logger            *slog.Logger
	minPasswordLength int
	now               func() time.Time
}

// NewService creates a user service. A nil hasher defaults to bcrypt and a
// nil logger discards output.
func NewService(repo Repository, hasher PasswordHasher, notifier notification.Notifier, logger *slog.Logger, minPasswordLength int) *Service {
	if hasher == nil {
		hasher = NewBcryptHasher(0)
	}
	if logger == nil {
		logger = logging.Discard()
	}
	if minPasswordLength < 1 {
		minPasswordLength = 1
	}
	return &Service{
		repo:              repo,
		hasher:            hasher,
		notifier:          notifier,
		logger:            logger,
		minPasswordLength: minPasswordLength,
		now:               time.Now,
	}
}

// Register validates the input and creates an Active user in one write.
func (s *Service) Register(ctx context.Context, in RegisterInput) (User, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(in.Email)

	if msgs := s.validateRegistration(in); len(msgs) > 0 {
		return User{}, &ValidationError{Messages: msgs}
	}

	if err := s.ensureAvailable(ctx, in.Name, in.Email); err != nil {
		return User{}, err
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}

	user := User{
		ID:               uuid.NewString(),
		Name:             in.Name,
		Email:            in.Email,
		PasswordHash:     hash,
		Status:           StatusActive,
		RegistrationTime: s.now().UTC(),
	}

	if err := s.repo.Create(ctx, user); err != nil {
		return User{}, err
	}

	s.logger.InfoContext(ctx, "user registered", slog.String("user_id", user.ID), slog.String("name", user.Name))
	s.notify(ctx, notification.Message{
		Kind:        notification.KindUserRegistered,
		Destination: user.ID,
		Body:        fmt.Sprintf("Welcome, %s", user.Name),
	})

	return user, nil
}

func (s *Service) validateRegistration(in RegisterInput) []string {
	var msgs []string
	if in.Name == "" {
		msgs = append(msgs, "Name is required")
	}
	if in.Email == "" {
		msgs = append(msgs, "Email is required")
	} else if !validEmail(in.Email) {
		msgs = append(msgs, "Email is not a valid e-mail address")
	}
	switch {
	case in.Password == "":
		msgs = append(msgs, "Password is required")
	case utf8.RuneCountInString(in.Password) < s.minPasswordLength:
		msgs = append(msgs, fmt.Sprintf("Password must be at least %d characters", s.minPasswordLength))
	case len(in.Password) > maxPasswordBytes:
		msgs = append(msgs, fmt.Sprintf("Password must be at most %d bytes", maxPasswordBytes))
	}
	if in.ConfirmPassword != in.Password {
		msgs = append(msgs, "The Passwords do not match")
	}
	return msgs
}

func validEmail(v string) bool {
	addr, err := mail.ParseAddress(v)
	return err == nil && addr.Address == v
}

func (s *Service) ensureAvailable(ctx context.Context, name, email string) error {
	if _, err := s.repo.FindByName(ctx, name); err == nil {
		return &DuplicateError{Field: "name", Value: name}
	} else if !errors.Is(err, ErrNotFound) {
		return err
	}
	if _, err := s.repo.FindByEmail(ctx, email); err == nil {
		return &DuplicateError{Field: "email", Value: email}
	} else if !errors.Is(err, ErrNotFound) {
		return err
	}
	return nil
}

// Login checks credentials. Unknown and blocked accounts are rejected before
// the password is verified.
func (s *Service) Login(ctx context.Context, in LoginInput) (User, error) {
	identifier := strings.TrimSpace(in.EmailOrUsername)

	var msgs []string
	if identifier == "" {
		msgs = append(msgs, "Email or username is required")
	}
	if in.Password == "" {
		msgs = append(msgs, "Password is required")
	}
	if len(msgs) > 0 {
		return User{}, &ValidationError{Messages: msgs}
	}

	user, err := s.lookup(ctx, identifier)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return User{}, ErrInvalidCredentials
		}
		return User{}, err
	}

	if user.Blocked() {
		s.logger.WarnContext(ctx, "blocked user login rejected", slog.String("user_id", user.ID))
		return User{}, ErrBlocked
	}

	if !s.hasher.Verify(user.PasswordHash, in.Password) {
		return User{}, ErrInvalidCredentials
	}

	updated, err := s.repo.TouchLogin(ctx, user.ID, s.now())
	if err != nil {
		return User{}, err
	}
	s.logger.InfoContext(ctx, "user logged in", slog.String("user_id", updated.ID))
	return updated, nil
}

func (s *Service) lookup(ctx context.Context, identifier string) (User, error) {
	if strings.Contains(identifier, "@") {
		return s.repo.FindByEmail(ctx, identifier)
	}
	return s.repo.FindByName(ctx, identifier)
}

// Get returns a user by id.
func (s *Service) Get(ctx context.Context, id string) (User, error) {
	return s.repo.Get(ctx, id)
}

// List returns all users.
func (s *Service) List(ctx context.Context) ([]User, error) {
	return s.repo.List(ctx)
}

// Block sets the user's status to Blocked.
func (s *Service) Block(ctx context.Context, actor auth.Identity, id string) (User, error) {
	return s.transition(ctx, actor, id, StatusBlocked, notification.KindUserBlocked)
}

// Unblock sets the user's status back to Active.
func (s *Service) Unblock(ctx context.Context, actor auth.Identity, id string) (User, error) {
	return s.transition(ctx, actor, id, StatusActive, notification.KindUserUnblocked)
}

func (s *Service) transition(ctx context.Context, actor auth.Identity, id string, status Status, kind string) (User, error) {
	user, err := s.repo.SetStatus(ctx, id, status)
	if err != nil {
		return User{}, err
	}
	s.logger.InfoContext(ctx, "user status changed",
		slog.String("user_id", user.ID),
		slog.String("status", user.Status.String()),
		slog.String("actor_id", actor.UserID),
	)
	s.notify(ctx, notification.Message{
		Kind:        kind,
		Destination: user.ID,
		Actor:       actor.UserID,
		Body:        fmt.Sprintf("Account status is now %s", user.Status),
	})
	return user, nil
}

// Delete removes the user permanently.
func (s *Service) Delete(ctx context.Context, actor auth.Identity, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "user deleted", slog.String("user_id", id), slog.String("actor_id", actor.UserID))
	s.notify(ctx, notification.Message{
		Kind:        notification.KindUserDeleted,
		Destination: id,
		Actor:       actor.UserID,
		Body:        "Account deleted",
	})
	return nil
}

// Apply runs action for every id independently. A failure on one id does not
// roll back or stop the others; each outcome is reported in order.
func (s *Service) Apply(ctx context.Context, actor auth.Identity, action Action, ids []string) ([]BulkResult, error) {
	action, err := ParseAction(string(action))
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, &ValidationError{Messages: []string{"At least one user id is required"}}
	}

	seen := make(map[string]struct{}, len(ids))
	results := make([]BulkResult, 0, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		if err := ctx.Err(); err != nil {
			results = append(results, BulkResult{ID: id, Err: err})
			continue
		}

		res := BulkResult{ID: id}
		switch action {
		case ActionBlock, ActionUnblock:
			var (
				user User
				err  error
			)
			if action == ActionBlock {
				user, err = s.Block(ctx, actor, id)
			} else {
				user, err = s.Unblock(ctx, actor, id)
			}
			if err != nil {
				res.Err = err
			} else {
				res.User = &user
			}
		case ActionDelete:
			res.Err = s.Delete(ctx, actor, id)
		}
		results = append(results, res)
	}
	return results, nil
}

func (s *Service) notify(ctx context.Context, msg notification.Message) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Send(ctx, msg); err != nil {
		s.logger.WarnContext(ctx, "notification failed", slog.String("kind", msg.Kind), slog.Any("error", err))
	}
}
