package user

import (
	"context"
	"log/slog"
	"strings"

	errors "github.com/frahmantamala/reimbursement-tracker/internal"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
)

// Repository is the persistence contract for users. Missing rows are
// reported as errors.ErrUserNotFound.
type Repository interface {
	GetByID(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	List(ctx context.Context) ([]*User, error)
	ListByRoles(ctx context.Context, roles []Role) ([]*User, error)
	ListByManager(ctx context.Context, managerID string) ([]*User, error)
	Create(ctx context.Context, u *User) error
	Update(ctx context.Context, u *User) error
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	SetActive(ctx context.Context, id string, active bool) error
}

type Service struct {
	repo       Repository
	bcryptCost int
	logger     *slog.Logger
}

func NewService(repo Repository, bcryptCost int, logger *slog.Logger) *Service {
	if bcryptCost == 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	return &Service{
		repo:       repo,
		bcryptCost: bcryptCost,
		logger:     logger,
	}
}

func (s *Service) GetByID(ctx context.Context, id string) (*User, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, storeError(err)
	}
	return u, nil
}

func (s *Service) List(ctx context.Context) ([]*User, error) {
	users, err := s.repo.List(ctx)
	if err != nil {
		s.logger.Error("failed to list users", "error", err)
		return nil, storeError(err)
	}
	return users, nil
}

// ListManagers returns every user who may be assigned as someone's manager.
func (s *Service) ListManagers(ctx context.Context) ([]*User, error) {
	users, err := s.repo.ListByRoles(ctx, []Role{RoleManager, RoleAdmin, RoleFinance})
	if err != nil {
		s.logger.Error("failed to list managers", "error", err)
		return nil, storeError(err)
	}
	return users, nil
}

func (s *Service) ListTeam(ctx context.Context, managerID string) ([]*User, error) {
	users, err := s.repo.ListByManager(ctx, managerID)
	if err != nil {
		s.logger.Error("failed to list team", "error", err, "manager_id", managerID)
		return nil, storeError(err)
	}
	return users, nil
}

func (s *Service) Create(ctx context.Context, actorID string, dto CreateUserDTO) (*User, error) {
	if err := s.requireAdmin(ctx, actorID); err != nil {
		return nil, err
	}
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	role := Role(dto.Role)
	email := strings.ToLower(strings.TrimSpace(dto.Email))
	if err := s.ensureEmailFree(ctx, email, ""); err != nil {
		return nil, err
	}

	managerID := normaliseManager(role, dto.ManagerID)
	if err := s.checkManager(ctx, managerID, ""); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(dto.Password), s.bcryptCost)
	if err != nil {
		return nil, errors.NewInternalError("failed to hash password", err)
	}

	u := &User{
		ID:                  uuid.NewString(),
		Email:               email,
		Name:                strings.TrimSpace(dto.Name),
		Phone:               dto.Phone,
		Address:             dto.Address,
		PasswordHash:        string(hash),
		Role:                role,
		ManagerID:           managerID,
		ReimbursementBudget: budgetFor(role, dto.ReimbursementBudget),
		IsActive:            true,
	}

	if err := s.repo.Create(ctx, u); err != nil {
		s.logger.Error("failed to create user", "error", err, "email", email)
		return nil, storeError(err)
	}

	s.logger.Info("user created", "user_id", u.ID, "role", u.Role, "actor_id", actorID)
	return u, nil
}

func (s *Service) Update(ctx context.Context, actorID, id string, dto UpdateUserDTO) (*User, error) {
	if err := s.requireAdmin(ctx, actorID); err != nil {
		return nil, err
	}
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, storeError(err)
	}

	role := Role(dto.Role)
	email := strings.ToLower(strings.TrimSpace(dto.Email))
	if email != u.Email {
		if err := s.ensureEmailFree(ctx, email, u.ID); err != nil {
			return nil, err
		}
	}

	managerID := normaliseManager(role, dto.ManagerID)
	if err := s.checkManager(ctx, managerID, u.ID); err != nil {
		return nil, err
	}

	u.Name = strings.TrimSpace(dto.Name)
	u.Email = email
	u.Phone = dto.Phone
	u.Address = dto.Address
	u.Role = role
	u.ManagerID = managerID
	u.ReimbursementBudget = budgetFor(role, dto.ReimbursementBudget)

	if err := s.repo.Update(ctx, u); err != nil {
		s.logger.Error("failed to update user", "error", err, "user_id", id)
		return nil, storeError(err)
	}

	s.logger.Info("user updated", "user_id", u.ID, "actor_id", actorID)
	return u, nil
}

func (s *Service) ResetPassword(ctx context.Context, actorID, id string, dto ResetPasswordDTO) error {
	if err := s.requireAdmin(ctx, actorID); err != nil {
		return err
	}
	if err := dto.Validate(); err != nil {
		return err
	}
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return storeError(err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(dto.Password), s.bcryptCost)
	if err != nil {
		return errors.NewInternalError("failed to hash password", err)
	}
	if err := s.repo.UpdatePassword(ctx, id, string(hash)); err != nil {
		s.logger.Error("failed to reset password", "error", err, "user_id", id)
		return storeError(err)
	}

	s.logger.Info("password reset", "user_id", id, "actor_id", actorID)
	return nil
}

// Deactivate disables a user. Users are never hard-deleted since their
// requests stay in the ledger.
func (s *Service) Deactivate(ctx context.Context, actorID, id string) error {
	if err := s.requireAdmin(ctx, actorID); err != nil {
		return err
	}
	if actorID == id {
		return errors.NewValidationError("You cannot deactivate your own account", errors.ErrCodeValidationFailed)
	}
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return storeError(err)
	}
	if err := s.repo.SetActive(ctx, id, false); err != nil {
		s.logger.Error("failed to deactivate user", "error", err, "user_id", id)
		return storeError(err)
	}

	s.logger.Info("user deactivated", "user_id", id, "actor_id", actorID)
	return nil
}

func (s *Service) requireAdmin(ctx context.Context, actorID string) error {
	actor, err := s.repo.GetByID(ctx, actorID)
	if err != nil {
		if errors.Is(err, errors.ErrUserNotFound) {
			return errors.ErrUnauthorizedAccess
		}
		return storeError(err)
	}
	if !actor.IsActive || !actor.Role.CanManageUsers() {
		s.logger.Warn("user management denied", "actor_id", actorID, "role", actor.Role)
		return errors.ErrUnauthorizedAccess
	}
	return nil
}

func (s *Service) ensureEmailFree(ctx context.Context, email, selfID string) error {
	existing, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, errors.ErrUserNotFound) {
			return nil
		}
		return storeError(err)
	}
	if existing.ID != selfID {
		return errors.ErrEmailTaken
	}
	return nil
}

func (s *Service) checkManager(ctx context.Context, managerID *string, selfID string) error {
	if managerID == nil {
		return nil
	}
	if *managerID == selfID {
		return errors.NewValidationFieldError("manager_id", "a user cannot manage themselves", errors.ErrCodeInvalidManager)
	}
	m, err := s.repo.GetByID(ctx, *managerID)
	if err != nil {
		if errors.Is(err, errors.ErrUserNotFound) {
			return errors.NewValidationFieldError("manager_id", "manager does not exist", errors.ErrCodeInvalidManager)
		}
		return storeError(err)
	}
	if !m.IsActive || m.Role == RoleEmployee {
		return errors.NewValidationFieldError("manager_id", "manager must be an active non-employee user", errors.ErrCodeInvalidManager)
	}
	return nil
}

func budgetFor(role Role, budget decimal.Decimal) decimal.Decimal {
	if !role.HasBudget() {
		return decimal.Zero
	}
	return budget.Round(2)
}

// storeError passes typed errors through and reports anything else as the
// store being unavailable.
func storeError(err error) error {
	if _, ok := errors.IsAppError(err); ok {
		return err
	}
	return errors.NewStoreUnavailableError(err)
}
