package repository

import (
	"context"
	"errors"
	"fmt"

	"audiovault/db"
	"audiovault/model"

	"gorm.io/gorm"
)

// ErrDuplicateUser is returned when the username or email is already taken.
var ErrDuplicateUser = errors.New("username or email already exists")

// UserRepository defines the interface for user data operations.
type UserRepository interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id int64) (*model.User, error)
	GetUserByUsername(ctx context.Context, username string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	// UpdateUser 写回用户名、邮箱和密码哈希
	UpdateUser(ctx context.Context, user *model.User) error
	DeleteUser(ctx context.Context, id int64) (bool, error)
}

type gormUserRepository struct {
	db *gorm.DB
}

// NewGormUserRepository creates a new gorm-backed UserRepository.
func NewGormUserRepository(db *gorm.DB) UserRepository {
	return &gormUserRepository{db: db}
}

// CreateUser adds a new user; ID is filled in on success.
func (r *gormUserRepository) CreateUser(ctx context.Context, user *model.User) error {
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		if db.IsDuplicateKey(err) || errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicateUser
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// UpdateUser saves username, email and password hash of an existing user.
func (r *gormUserRepository) UpdateUser(ctx context.Context, user *model.User) error {
	err := r.db.WithContext(ctx).Model(user).Updates(map[string]interface{}{
		"username":      user.Username,
		"email":         user.Email,
		"password_hash": user.PasswordHash,
	}).Error
	if err != nil {
		if db.IsDuplicateKey(err) || errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicateUser
		}
		return fmt.Errorf("failed to update user %d: %w", user.ID, err)
	}
	return nil
}

// DeleteUser removes the user row, reporting whether it existed.
func (r *gormUserRepository) DeleteUser(ctx context.Context, id int64) (bool, error) {
	res := r.db.WithContext(ctx).Delete(&model.User{}, id)
	if res.Error != nil {
		return false, fmt.Errorf("failed to delete user %d: %w", id, res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *gormUserRepository) first(ctx context.Context, query string, arg interface{}) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).Where(query, arg).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil // User not found
		}
		return nil, err
	}
	return &user, nil
}

// GetUserByID retrieves a user by their ID.
func (r *gormUserRepository) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	return r.first(ctx, "id = ?", id)
}

// GetUserByUsername retrieves a user by username.
func (r *gormUserRepository) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	return r.first(ctx, "username = ?", username)
}

// GetUserByEmail retrieves a user by email.
func (r *gormUserRepository) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.first(ctx, "email = ?", email)
}
