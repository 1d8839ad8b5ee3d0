package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/easeaico/eve/internal/types"
)

type userModel struct {
	ID        int
	Name      string `gorm:"size:100;uniqueIndex;not null"`
	Gender    string `gorm:"size:20"`
	Age       *int
	Profile   datatypes.JSON
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (userModel) TableName() string {
	return "users"
}

// UserRepo accesses users data.
type UserRepo struct {
	db *gorm.DB
}

func (r *UserRepo) Create(ctx context.Context, user *types.User) error {
	if user == nil {
		return fmt.Errorf("user cannot be nil")
	}
	if strings.TrimSpace(user.Name) == "" {
		return fmt.Errorf("%w: user name is required", types.ErrBusinessRule)
	}
	profile, err := json.Marshal(user.Profile)
	if err != nil {
		return fmt.Errorf("failed to encode user profile: %w", err)
	}
	record := userModel{
		Name:    user.Name,
		Gender:  user.Gender,
		Age:     user.Age,
		Profile: datatypes.JSON(profile),
	}
	if err := conn(ctx, r.db).Create(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("%w: user %q already exists", types.ErrBusinessRule, user.Name)
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}
	user.ID = record.ID
	user.CreatedAt = record.CreatedAt
	user.UpdatedAt = record.UpdatedAt
	return nil
}

func (r *UserRepo) GetByID(ctx context.Context, id int) (*types.User, error) {
	var model userModel
	if err := conn(ctx, r.db).First(&model, id).Error; err != nil {
		return nil, notFound(err, "user %d", id)
	}
	return userFromModel(model)
}

func (r *UserRepo) GetByName(ctx context.Context, name string) (*types.User, error) {
	var model userModel
	if err := conn(ctx, r.db).Where("name = ?", name).First(&model).Error; err != nil {
		return nil, notFound(err, "user %q", name)
	}
	return userFromModel(model)
}

func userFromModel(model userModel) (*types.User, error) {
	var profile types.UserProfile
	if len(model.Profile) > 0 {
		if err := json.Unmarshal(model.Profile, &profile); err != nil {
			return nil, fmt.Errorf("%w: user %d has malformed profile: %v", types.ErrInvalidState, model.ID, err)
		}
	}
	return &types.User{
		ID:        model.ID,
		Name:      model.Name,
		Gender:    model.Gender,
		Age:       model.Age,
		Profile:   profile,
		CreatedAt: model.CreatedAt,
		UpdatedAt: model.UpdatedAt,
	}, nil
}
