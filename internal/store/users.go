package store

import (
	"context"
	"errors"

	"hydro-monitor/internal/hydroerr"
	"hydro-monitor/internal/model"

	"gorm.io/gorm"
)

// UserUpdate carries a partial update of a user account. The password is
// already hashed by the caller; the store never sees plaintext.
type UserUpdate struct {
	Email          *string
	HashedPassword *string
	Role           *string
	IsActive       *bool
}

// CreateUser inserts a new account. Username and email must be unique.
func (s *Store) CreateUser(ctx context.Context, u *model.User) error {
	var count int64
	if err := s.orm.WithContext(ctx).Model(&model.User{}).
		Where("username = ?", u.Username).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return hydroerr.ErrUsernameExists
	}
	if err := s.orm.WithContext(ctx).Model(&model.User{}).
		Where("email = ?", u.Email).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return hydroerr.ErrEmailExists
	}
	return s.orm.WithContext(ctx).Create(u).Error
}

// GetUser returns the account with the given id.
func (s *Store) GetUser(ctx context.Context, id uint) (*model.User, error) {
	var u model.User
	err := s.orm.WithContext(ctx).First(&u, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, hydroerr.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// GetUserByUsername returns the account with the given username.
func (s *Store) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	var u model.User
	err := s.orm.WithContext(ctx).Where("username = ?", username).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, hydroerr.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// ListUsers returns accounts ordered by id with skip/limit pagination.
func (s *Store) ListUsers(ctx context.Context, skip, limit int) ([]model.User, error) {
	if limit <= 0 {
		limit = 100
	}
	var users []model.User
	err := s.orm.WithContext(ctx).Order("id").Offset(skip).Limit(limit).Find(&users).Error
	if err != nil {
		return nil, err
	}
	return users, nil
}

// UpdateUser applies the provided fields to an existing account.
func (s *Store) UpdateUser(ctx context.Context, id uint, upd UserUpdate) (*model.User, error) {
	u, err := s.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if upd.Email != nil {
		u.Email = *upd.Email
	}
	if upd.HashedPassword != nil {
		u.HashedPassword = *upd.HashedPassword
	}
	if upd.Role != nil {
		u.Role = *upd.Role
	}
	if upd.IsActive != nil {
		u.IsActive = *upd.IsActive
	}
	if err := s.orm.WithContext(ctx).Save(u).Error; err != nil {
		return nil, err
	}
	return u, nil
}

// DeleteUser removes an account.
func (s *Store) DeleteUser(ctx context.Context, id uint) error {
	u, err := s.GetUser(ctx, id)
	if err != nil {
		return err
	}
	return s.orm.WithContext(ctx).Delete(u).Error
}
