package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Skotchmaster/taskhub_auth/internal/models"
)

var ErrExpiredRefreshToken = errors.New("refresh token expired")

// RefreshStore owns refresh-token rows. Every method is a single-row or
// single-statement operation; none of them lock across rows.
type RefreshStore struct {
	DB  *gorm.DB
	TTL time.Duration
	Now func() time.Time
}

func NewRefreshStore(db *gorm.DB, ttl time.Duration) *RefreshStore {
	return &RefreshStore{DB: db, TTL: ttl, Now: time.Now}
}

func (s *RefreshStore) now() time.Time {
	return s.Now().UTC()
}

// Create returns the plaintext token; only its hash is persisted.
func (s *RefreshStore) Create(ctx context.Context, userID uuid.UUID) (string, *models.RefreshToken, error) {
	token, err := newOpaqueToken()
	if err != nil {
		return "", nil, err
	}

	rec := &models.RefreshToken{
		TokenHash: Sha256Hex(token),
		UserID:    userID,
		ExpiresAt: s.now().Add(s.TTL),
	}
	if err := s.DB.WithContext(ctx).Create(rec).Error; err != nil {
		if isDuplicate(err) {
			return "", nil, fmt.Errorf("%w: %v", ErrTokenCollision, err)
		}
		return "", nil, err
	}
	return token, rec, nil
}

// FindByToken reports a missing token as (nil, false, nil).
func (s *RefreshStore) FindByToken(ctx context.Context, token string) (*models.RefreshToken, bool, error) {
	if token == "" {
		return nil, false, nil
	}
	var rec models.RefreshToken
	err := s.DB.WithContext(ctx).Where("token_hash = ?", Sha256Hex(token)).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return &rec, true, nil
}

// VerifyExpiration deletes an expired record before failing. The delete is
// conditional on the expiry so it cannot remove a row that was never expired.
func (s *RefreshStore) VerifyExpiration(ctx context.Context, rec *models.RefreshToken) (*models.RefreshToken, error) {
	now := s.now()
	if now.Before(rec.ExpiresAt) {
		return rec, nil
	}

	if err := s.DB.WithContext(ctx).
		Where("id = ? AND expires_at <= ?", rec.ID, now).
		Delete(&models.RefreshToken{}).Error; err != nil {
		return nil, fmt.Errorf("delete expired refresh token: %w", err)
	}
	return nil, ErrExpiredRefreshToken
}

func (s *RefreshStore) DeleteByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	res := s.DB.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.RefreshToken{})
	return res.RowsAffected, res.Error
}

func (s *RefreshStore) SweepExpired(ctx context.Context, now time.Time) (int64, error) {
	res := s.DB.WithContext(ctx).Where("expires_at < ?", now.UTC()).Delete(&models.RefreshToken{})
	return res.RowsAffected, res.Error
}

func (s *RefreshStore) CountByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	var n int64
	err := s.DB.WithContext(ctx).Model(&models.RefreshToken{}).Where("user_id = ?", userID).Count(&n).Error
	return n, err
}
