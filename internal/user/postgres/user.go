package postgres

import (
	"context"
	stderrors "errors"
	"time"

	errors "github.com/frahmantamala/reimbursement-tracker/internal"
	userDatamodel "github.com/frahmantamala/reimbursement-tracker/internal/core/datamodel/user"
	"github.com/frahmantamala/reimbursement-tracker/internal/user"
	"gorm.io/gorm"
)

// UserRepository implements user.Repository using GORM
type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*user.User, error) {
	var m userDatamodel.User
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.ErrUserNotFound
		}
		return nil, err
	}
	return user.FromDataModel(&m), nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*user.User, error) {
	var m userDatamodel.User
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&m).Error; err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.ErrUserNotFound
		}
		return nil, err
	}
	return user.FromDataModel(&m), nil
}

func (r *UserRepository) List(ctx context.Context) ([]*user.User, error) {
	var models []*userDatamodel.User
	if err := r.db.WithContext(ctx).Order("name ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	return user.FromDataModelSlice(models), nil
}

// ListByRoles returns active users holding any of roles.
func (r *UserRepository) ListByRoles(ctx context.Context, roles []user.Role) ([]*user.User, error) {
	names := make([]string, len(roles))
	for i, role := range roles {
		names[i] = string(role)
	}

	var models []*userDatamodel.User
	err := r.db.WithContext(ctx).
		Where("role IN ? AND is_active = ?", names, true).
		Order("name ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	return user.FromDataModelSlice(models), nil
}

// ListByManager returns the active direct reports of managerID.
func (r *UserRepository) ListByManager(ctx context.Context, managerID string) ([]*user.User, error) {
	var models []*userDatamodel.User
	err := r.db.WithContext(ctx).
		Where("manager_id = ? AND is_active = ?", managerID, true).
		Order("name ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	return user.FromDataModelSlice(models), nil
}

func (r *UserRepository) Create(ctx context.Context, u *user.User) error {
	m := user.ToDataModel(u)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	u.CreatedAt = m.CreatedAt
	u.UpdatedAt = m.UpdatedAt
	return nil
}

func (r *UserRepository) Update(ctx context.Context, u *user.User) error {
	res := r.db.WithContext(ctx).
		Model(&userDatamodel.User{}).
		Where("id = ?", u.ID).
		Updates(map[string]interface{}{
			"name":                 u.Name,
			"email":                u.Email,
			"phone":                u.Phone,
			"address":              u.Address,
			"role":                 string(u.Role),
			"manager_id":           u.ManagerID,
			"reimbursement_budget": u.ReimbursementBudget,
			"updated_at":           time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errors.ErrUserNotFound
	}
	return nil
}

func (r *UserRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	res := r.db.WithContext(ctx).
		Model(&userDatamodel.User{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"password_hash": passwordHash,
			"updated_at":    time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errors.ErrUserNotFound
	}
	return nil
}

func (r *UserRepository) SetActive(ctx context.Context, id string, active bool) error {
	res := r.db.WithContext(ctx).
		Model(&userDatamodel.User{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"is_active":  active,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errors.ErrUserNotFound
	}
	return nil
}
