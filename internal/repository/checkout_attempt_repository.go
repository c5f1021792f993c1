package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/sefazor/bnpl-checkout/internal/models"
)

type CheckoutAttemptRepository struct {
	db *gorm.DB
}

func NewCheckoutAttemptRepository(db *gorm.DB) *CheckoutAttemptRepository {
	return &CheckoutAttemptRepository{
		db: db,
	}
}

func (r *CheckoutAttemptRepository) Create(ctx context.Context, attempt *models.CheckoutAttempt) error {
	return r.db.WithContext(ctx).Create(attempt).Error
}

func (r *CheckoutAttemptRepository) GetByAttemptID(ctx context.Context, attemptID string) (*models.CheckoutAttempt, error) {
	var attempt models.CheckoutAttempt
	err := r.db.WithContext(ctx).Where("attempt_id = ?", attemptID).First(&attempt).Error
	return &attempt, err
}

func (r *CheckoutAttemptRepository) Update(ctx context.Context, attempt *models.CheckoutAttempt) error {
	return r.db.WithContext(ctx).Save(attempt).Error
}

func (r *CheckoutAttemptRepository) GetUserHistory(ctx context.Context, userID uint) ([]models.CheckoutAttempt, error) {
	var attempts []models.CheckoutAttempt
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&attempts).Error
	return attempts, err
}
