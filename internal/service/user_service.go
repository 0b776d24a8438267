package service

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"vision-assist/backend/internal/models"
	"vision-assist/backend/pkg/jwt"
	"vision-assist/backend/pkg/logger"
)

var (
	ErrUserAlreadyExists  = errors.New("username already exists")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrUserNotFound       = errors.New("user not found")
)

// TokenIssuer is satisfied by *jwt.Service
type TokenIssuer interface {
	GenerateToken(userID uint, username string, role jwt.Role) (string, error)
}

// UserService handles user-related operations
type UserService struct {
	db     *gorm.DB
	tokens TokenIssuer
	log    *logger.Logger
}

// NewUserService creates a new user service
func NewUserService(db *gorm.DB, tokens TokenIssuer, log *logger.Logger) *UserService {
	if log == nil {
		log = logger.Discard()
	}
	return &UserService{db: db, tokens: tokens, log: log.WithComponent("user_service")}
}

// Migrate creates or updates the users table
func (s *UserService) Migrate() error {
	return s.db.AutoMigrate(&models.User{})
}

// Register creates an account and returns it with a session token
func (s *UserService) Register(ctx context.Context, req *models.RegisterRequest) (*models.User, string, error) {
	log := logger.FromContext(ctx, s.log)

	if err := req.ProfileFields.Validate(); err != nil {
		return nil, "", err
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("username = ?", req.Username).Count(&count).Error; err != nil {
		return nil, "", err
	}
	if count > 0 {
		log.Warn("Registration rejected: username exists", "username", req.Username)
		return nil, "", ErrUserAlreadyExists
	}

	user := models.User{
		Username: req.Username,
		Password: req.Password,
		Role:     string(jwt.RoleUser),
	}
	req.ProfileFields.Apply(&user)

	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, "", ErrUserAlreadyExists
		}
		return nil, "", fmt.Errorf("failed to create user: %w", err)
	}

	token, err := s.issue(&user)
	if err != nil {
		return nil, "", err
	}

	log.Info("User registered", "user_id", user.ID, "username", user.Username)
	return &user, token, nil
}

// Login authenticates a user and returns a JWT token
func (s *UserService) Login(ctx context.Context, req *models.LoginRequest) (*models.User, string, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("username = ?", req.Username).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", err
	}

	if !models.CheckPasswordHash(req.Password, user.Password) {
		return nil, "", ErrInvalidCredentials
	}

	token, err := s.issue(&user)
	if err != nil {
		return nil, "", err
	}

	logger.FromContext(ctx, s.log).Info("User logged in", "user_id", user.ID)
	return &user, token, nil
}

func (s *UserService) issue(u *models.User) (string, error) {
	token, err := s.tokens.GenerateToken(u.ID, u.Username, jwt.Role(u.Role))
	if err != nil {
		return "", fmt.Errorf("failed to issue token: %w", err)
	}
	return token, nil
}

// GetUserByID retrieves a user by ID
func (s *UserService) GetUserByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).First(&user, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// CurrentRole returns the role stored for id
func (s *UserService) CurrentRole(ctx context.Context, id uint) (jwt.Role, error) {
	user, err := s.GetUserByID(ctx, id)
	if err != nil {
		return "", err
	}
	return jwt.Role(user.Role), nil
}

// ListUsers returns a page of users ordered by id
func (s *UserService) ListUsers(ctx context.Context, skip, limit int) ([]models.User, error) {
	if skip < 0 {
		skip = 0
	}
	if limit <= 0 || limit > 100 {
		limit = 100
	}

	var users []models.User
	err := s.db.WithContext(ctx).Order("id").Offset(skip).Limit(limit).Find(&users).Error
	return users, err
}

// UpdateUser applies req to the user. Role changes are only honored when
// asAdmin is set.
func (s *UserService) UpdateUser(ctx context.Context, id uint, req *models.UpdateUserRequest, asAdmin bool) (*models.User, error) {
	if err := req.ProfileFields.Validate(); err != nil {
		return nil, err
	}

	user, err := s.GetUserByID(ctx, id)
	if err != nil {
		return nil, err
	}

	req.ProfileFields.Apply(user)

	if asAdmin && req.Role != nil {
		if !jwt.Role(*req.Role).Valid() {
			return nil, models.ErrInvalidRole
		}
		user.Role = *req.Role
	}
	if req.Password != nil && *req.Password != "" {
		hash, err := models.HashPassword(*req.Password)
		if err != nil {
			return nil, err
		}
		user.Password = hash
	}

	if err := s.db.WithContext(ctx).Save(user).Error; err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}

	logger.FromContext(ctx, s.log).Info("User updated", "user_id", id)
	return user, nil
}

// DeleteUser removes a user
func (s *UserService) DeleteUser(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Delete(&models.User{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrUserNotFound
	}
	logger.FromContext(ctx, s.log).Info("User deleted", "user_id", id)
	return nil
}

// EnsureAdmin creates the bootstrap admin account when it does not exist.
// An empty password disables the bootstrap.
func (s *UserService) EnsureAdmin(ctx context.Context, username, password string) (bool, error) {
	if username == "" || password == "" {
		return false, nil
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("username = ?", username).Count(&count).Error; err != nil {
		return false, err
	}
	if count > 0 {
		return false, nil
	}

	admin := models.User{Username: username, Password: password, Role: string(jwt.RoleAdmin)}
	if err := s.db.WithContext(ctx).Create(&admin).Error; err != nil {
		return false, fmt.Errorf("failed to create admin user: %w", err)
	}

	s.log.Info("Admin user created", "username", username)
	return true, nil
}

// ResolveOptionalUser returns the user behind claims, or nil when the caller
// is anonymous or the account is gone
func (s *UserService) ResolveOptionalUser(ctx context.Context, claims *jwt.JWTClaims) *models.User {
	if claims == nil {
		return nil
	}
	user, err := s.GetUserByID(ctx, claims.UserID)
	if err != nil {
		if !errors.Is(err, ErrUserNotFound) {
			logger.FromContext(ctx, s.log).Warn("Failed to resolve current user", "user_id", claims.UserID, "error", err)
		}
		return nil
	}
	return user
}
