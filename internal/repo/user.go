package repo

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Skotchmaster/taskhub_auth/internal/models"
)

type UserRepo struct {
	DB *gorm.DB
}

func (r *UserRepo) exists(ctx context.Context, column, value string) (bool, error) {
	var count int64
	if err := r.DB.WithContext(ctx).Model(&models.User{}).
		Where(column+" = ?", value).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *UserRepo) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	return r.exists(ctx, "username", username)
}

func (r *UserRepo) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	return r.exists(ctx, "email", email)
}

func (r *UserRepo) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	if err := r.DB.WithContext(ctx).Where("username = ?", username).First(&user).Error; err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

func (r *UserRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := r.DB.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

// Create relies on the unique indexes, so a racing duplicate fails here
// even when both callers passed the Exists pre-checks.
func (r *UserRepo) Create(ctx context.Context, u *models.User) error {
	if err := r.DB.WithContext(ctx).Create(u).Error; err != nil {
		if isDuplicate(err) {
			return fmt.Errorf("%w: %v", ErrDuplicate, err)
		}
		return err
	}
	return nil
}

func (r *UserRepo) Save(ctx context.Context, u *models.User) error {
	if err := r.DB.WithContext(ctx).Omit("RefreshTokens").Save(u).Error; err != nil {
		if isDuplicate(err) {
			return fmt.Errorf("%w: %v", ErrDuplicate, err)
		}
		return err
	}
	return nil
}

func (r *UserRepo) TouchLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	res := r.DB.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", id).
		Update("last_login", at)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *UserRepo) Delete(ctx context.Context, id uuid.UUID) error {
	res := r.DB.WithContext(ctx).Where("id = ?", id).Delete(&models.User{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *UserRepo) List(ctx context.Context, offset, limit int) ([]models.User, int64, error) {
	return r.list(ctx, func(tx *gorm.DB) *gorm.DB { return tx }, offset, limit)
}

// Search is the directory fallback when no search index is configured.
func (r *UserRepo) Search(ctx context.Context, q string, offset, limit int) ([]models.User, int64, error) {
	like := "%" + strings.ToLower(q) + "%"
	return r.list(ctx, func(tx *gorm.DB) *gorm.DB {
		return tx.Where("LOWER(username) LIKE ? OR LOWER(email) LIKE ? OR LOWER(first_name) LIKE ? OR LOWER(last_name) LIKE ?",
			like, like, like, like)
	}, offset, limit)
}

func (r *UserRepo) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var users []models.User
	if err := r.DB.WithContext(ctx).Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

func (r *UserRepo) list(ctx context.Context, filter func(*gorm.DB) *gorm.DB, offset, limit int) ([]models.User, int64, error) {
	var total int64
	if err := r.DB.WithContext(ctx).Model(&models.User{}).Scopes(filter).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var items []models.User
	if err := r.DB.WithContext(ctx).Model(&models.User{}).Scopes(filter).
		Order("created_at ASC, username ASC").
		Offset(offset).Limit(limit).
		Find(&items).Error; err != nil {
		return nil, 0, err
	}
	return items, total, nil
}
