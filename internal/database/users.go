package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cabo/internal/models"
)

func (db *DB) CreateUser(ctx context.Context, user *models.User) error {
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	if user.Role == "" {
		user.Role = models.RoleAdmin
	}
	if err := db.WithContext(ctx).Create(user).Error; err != nil {
		return fmt.Errorf("failed to create user: %w", translate(err))
	}
	return nil
}

func (db *DB) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := db.WithContext(ctx).Where("email = ?", strings.ToLower(strings.TrimSpace(email))).First(&user).Error
	if err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (db *DB) GetUserByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (db *DB) CountUsers(ctx context.Context) (int64, error) {
	var n int64
	err := db.WithContext(ctx).Model(&models.User{}).Count(&n).Error
	return n, err
}

func (db *DB) TouchLogin(ctx context.Context, id uint, at time.Time) error {
	return db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update("last_login_at", at).Error
}
