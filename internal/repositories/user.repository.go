package repositories

import (
	"context"
	"time"

	"pitstop/internal/database"
	"pitstop/internal/logger"
	. "pitstop/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	USER_CACHE_PREFIX = "user"
	USER_CACHE_EXPIRY = 24 * time.Hour
)

type UserRepository interface {
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*User, error)
	GetByEmail(ctx context.Context, tx *gorm.DB, email string) (*User, error)
	Create(ctx context.Context, tx *gorm.DB, user *User) error
	Update(ctx context.Context, tx *gorm.DB, user *User) error
	ListManagers(ctx context.Context, tx *gorm.DB, orgID uuid.UUID) ([]*User, error)
	ListStaff(ctx context.Context, tx *gorm.DB, orgID uuid.UUID) ([]*User, error)
	ClearCache(ctx context.Context, userID uuid.UUID)
}

type userRepository struct {
	cache database.CacheClient
}

func NewUserRepository(db database.DB) UserRepository {
	return &userRepository{
		cache: db.Cache.User,
	}
}

func (r *userRepository) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*User, error) {
	log := logger.NewWithContext(ctx, "userRepository").Function("GetByID")

	var cached User
	found, err := database.NewCacheBuilder(r.cache, id).
		WithContext(ctx).
		WithHash(USER_CACHE_PREFIX).
		Get(&cached)
	if err != nil {
		log.Warn("failed to get user from cache", "userID", id, "error", err)
	}

	if found {
		return &cached, nil
	}

	var user User
	if err := tx.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, err
		}
		return nil, log.Err("failed to get user", err, "userID", id)
	}

	if err := database.NewCacheBuilder(r.cache, id).
		WithContext(ctx).
		WithHash(USER_CACHE_PREFIX).
		WithStruct(user).
		WithTTL(USER_CACHE_EXPIRY).
		Set(); err != nil {
		log.Warn("failed to cache user", "userID", id, "error", err)
	}

	return &user, nil
}

func (r *userRepository) GetByEmail(
	ctx context.Context,
	tx *gorm.DB,
	email string,
) (*User, error) {
	log := logger.NewWithContext(ctx, "userRepository").Function("GetByEmail")

	var user User
	if err := tx.WithContext(ctx).First(&user, "email = ?", email).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, err
		}
		return nil, log.Err("failed to get user by email", err)
	}

	return &user, nil
}

func (r *userRepository) Create(ctx context.Context, tx *gorm.DB, user *User) error {
	log := logger.NewWithContext(ctx, "userRepository").Function("Create")

	if err := tx.WithContext(ctx).Create(user).Error; err != nil {
		return log.Err("failed to create user", err, "orgID", user.OrgID)
	}

	return nil
}

func (r *userRepository) Update(ctx context.Context, tx *gorm.DB, user *User) error {
	log := logger.NewWithContext(ctx, "userRepository").Function("Update")

	if err := tx.WithContext(ctx).Save(user).Error; err != nil {
		return log.Err("failed to update user", err, "userID", user.ID)
	}

	r.ClearCache(ctx, user.ID)

	return nil
}

func (r *userRepository) ListManagers(
	ctx context.Context,
	tx *gorm.DB,
	orgID uuid.UUID,
) ([]*User, error) {
	log := logger.NewWithContext(ctx, "userRepository").Function("ListManagers")

	var users []*User
	if err := tx.WithContext(ctx).
		Where("org_id = ? AND role = ? AND is_active = true", orgID, RoleManager).
		Find(&users).Error; err != nil {
		return nil, log.Err("failed to list managers", err, "orgID", orgID)
	}

	return users, nil
}

func (r *userRepository) ListStaff(
	ctx context.Context,
	tx *gorm.DB,
	orgID uuid.UUID,
) ([]*User, error) {
	log := logger.NewWithContext(ctx, "userRepository").Function("ListStaff")

	var users []*User
	if err := tx.WithContext(ctx).
		Where("org_id = ? AND role IN ? AND is_active = true", orgID, []UserRole{RoleStaff, RoleManager}).
		Find(&users).Error; err != nil {
		return nil, log.Err("failed to list staff", err, "orgID", orgID)
	}

	return users, nil
}

func (r *userRepository) ClearCache(ctx context.Context, userID uuid.UUID) {
	log := logger.NewWithContext(ctx, "userRepository").Function("ClearCache")

	if err := database.NewCacheBuilder(r.cache, userID).
		WithContext(ctx).
		WithHash(USER_CACHE_PREFIX).
		Delete(); err != nil {
		log.Warn("failed to clear user cache", "userID", userID, "error", err)
	}
}
