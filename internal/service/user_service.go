package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"inventract/internal/domain"
	"inventract/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	// BcryptCost is the cost factor for bcrypt hashing
	BcryptCost = 10

	// Token expiration times
	AccessTokenExpiration  = 15 * time.Minute
	RefreshTokenExpiration = 7 * 24 * time.Hour
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrStaffNotApproved   = errors.New("staff account not approved or deactivated")
	ErrInvalidRole        = errors.New("role must be user or staff")
	ErrInvalidToken       = errors.New("invalid token")
	ErrTokenExpired       = errors.New("token has expired")
)

// UserService defines the interface for account business logic
type UserService interface {
	Register(ctx context.Context, email, username, password, role string) (*domain.User, error)
	Login(ctx context.Context, email, password string) (accessToken, refreshToken string, user *domain.User, err error)
	Logout(ctx context.Context, refreshToken string) error
	RefreshToken(ctx context.Context, refreshToken string) (newAccessToken string, err error)
	ValidateToken(tokenString string) (*Claims, error)
	GetUserByID(ctx context.Context, userID uuid.UUID) (*domain.User, error)
	ListUsers(ctx context.Context) ([]*domain.User, error)
	ApproveStaff(ctx context.Context, userID uuid.UUID, approved, activeStaff bool) error
	UpdateProfile(ctx context.Context, userID uuid.UUID, changes map[string]string) (*domain.User, error)
	ProfileEditHistory(ctx context.Context, userID uuid.UUID) ([]*domain.ProfileEdit, error)
}

// Claims represents the JWT claims
type Claims struct {
	UserID uuid.UUID `json:"user_id"`
	Role   string    `json:"role"`
	jwt.RegisteredClaims
}

type userService struct {
	userRepo         repository.UserRepository
	refreshTokenRepo repository.RefreshTokenRepository
	editHistoryRepo  repository.EditHistoryRepository
	jwtSecret        string
}

// NewUserService creates a new instance of UserService
func NewUserService(
	userRepo repository.UserRepository,
	refreshTokenRepo repository.RefreshTokenRepository,
	editHistoryRepo repository.EditHistoryRepository,
	jwtSecret string,
) UserService {
	return &userService{
		userRepo:         userRepo,
		refreshTokenRepo: refreshTokenRepo,
		editHistoryRepo:  editHistoryRepo,
		jwtSecret:        jwtSecret,
	}
}

// Register creates a new account with hashed password. Staff accounts start
// unapproved and cannot log in until approval.
func (s *userService) Register(ctx context.Context, email, username, password, role string) (*domain.User, error) {
	if role == "" {
		role = domain.RoleUser
	}
	if role != domain.RoleUser && role != domain.RoleStaff {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}

	// Check if user already exists
	existingUser, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil && err != repository.ErrUserNotFound {
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}
	if existingUser != nil {
		return nil, repository.ErrUserAlreadyExists
	}

	hashedPassword, err := s.hashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &domain.User{
		ID:           uuid.New(),
		Email:        email,
		Username:     username,
		PasswordHash: hashedPassword,
		Role:         role,
		// Regular users need no approval; staff wait for it
		IsApproved:    role == domain.RoleUser,
		IsActiveStaff: false,
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return user, nil
}

// Login authenticates an account and returns JWT tokens. Staff that have not
// been approved and activated are rejected even with correct credentials.
func (s *userService) Login(ctx context.Context, email, password string) (accessToken, refreshToken string, user *domain.User, err error) {
	user, err = s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		if err == repository.ErrUserNotFound {
			return "", "", nil, ErrInvalidCredentials
		}
		return "", "", nil, fmt.Errorf("failed to find user: %w", err)
	}

	if err := s.verifyPassword(user.PasswordHash, password); err != nil {
		return "", "", nil, ErrInvalidCredentials
	}

	if user.Role == domain.RoleStaff && (!user.IsApproved || !user.IsActiveStaff) {
		return "", "", nil, ErrStaffNotApproved
	}

	accessToken, err = s.generateAccessToken(user)
	if err != nil {
		return "", "", nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	refreshToken, err = s.generateRefreshToken(ctx, user)
	if err != nil {
		return "", "", nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}

	return accessToken, refreshToken, user, nil
}

// Logout invalidates the refresh token
func (s *userService) Logout(ctx context.Context, refreshToken string) error {
	if err := s.refreshTokenRepo.Revoke(ctx, refreshToken); err != nil {
		if err == repository.ErrRefreshTokenNotFound {
			// Token doesn't exist, consider it already logged out
			return nil
		}
		return fmt.Errorf("failed to revoke refresh token: %w", err)
	}
	return nil
}

// RefreshToken generates a new access token using a valid refresh token
func (s *userService) RefreshToken(ctx context.Context, refreshTokenString string) (newAccessToken string, err error) {
	refreshToken, err := s.refreshTokenRepo.FindByToken(ctx, refreshTokenString)
	if err != nil {
		if err == repository.ErrRefreshTokenNotFound || err == repository.ErrRefreshTokenRevoked {
			return "", ErrInvalidToken
		}
		return "", fmt.Errorf("failed to find refresh token: %w", err)
	}

	if time.Now().After(refreshToken.ExpiresAt) {
		return "", ErrTokenExpired
	}

	user, err := s.userRepo.FindByID(ctx, refreshToken.UserID)
	if err != nil {
		return "", fmt.Errorf("failed to find user: %w", err)
	}

	newAccessToken, err = s.generateAccessToken(user)
	if err != nil {
		return "", fmt.Errorf("failed to generate access token: %w", err)
	}

	return newAccessToken, nil
}

// ValidateToken validates a JWT token and returns the claims
func (s *userService) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		// Verify signing method
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.jwtSecret), nil
	})

	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// GetUserByID retrieves an account by ID
func (s *userService) GetUserByID(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// ListUsers retrieves all accounts
func (s *userService) ListUsers(ctx context.Context) ([]*domain.User, error) {
	return s.userRepo.List(ctx)
}

// ApproveStaff sets the approval flags on a staff account
func (s *userService) ApproveStaff(ctx context.Context, userID uuid.UUID, approved, activeStaff bool) error {
	return s.userRepo.UpdateApproval(ctx, userID, approved, activeStaff)
}

// profileFields maps editable field names to getter/setter pairs so each
// change lands in the edit history with its before and after values.
var profileFields = map[string]struct {
	get func(*domain.User) string
	set func(*domain.User, string)
}{
	"username":         {func(u *domain.User) string { return u.Username }, func(u *domain.User, v string) { u.Username = v }},
	"phone":            {func(u *domain.User) string { return u.Phone }, func(u *domain.User, v string) { u.Phone = v }},
	"nickname":         {func(u *domain.User) string { return u.Nickname }, func(u *domain.User, v string) { u.Nickname = v }},
	"address_street":   {func(u *domain.User) string { return u.AddressStreet }, func(u *domain.User, v string) { u.AddressStreet = v }},
	"address_house":    {func(u *domain.User) string { return u.AddressHouse }, func(u *domain.User, v string) { u.AddressHouse = v }},
	"address_district": {func(u *domain.User) string { return u.AddressDistrict }, func(u *domain.User, v string) { u.AddressDistrict = v }},
}

// UpdateProfile applies profile field changes and records one edit history
// row per changed field
func (s *userService) UpdateProfile(ctx context.Context, userID uuid.UUID, changes map[string]string) (*domain.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	edits := []*domain.ProfileEdit{}
	now := time.Now()

	for field, newValue := range changes {
		accessor, ok := profileFields[field]
		if !ok {
			return nil, fmt.Errorf("field %q is not editable", field)
		}

		oldValue := accessor.get(user)
		if oldValue == newValue {
			continue
		}

		accessor.set(user, newValue)
		edits = append(edits, &domain.ProfileEdit{
			ID:           uuid.New(),
			UserID:       userID,
			FieldChanged: field,
			OldValue:     oldValue,
			NewValue:     newValue,
			EditedAt:     now,
		})
	}

	if len(edits) == 0 {
		return user, nil
	}

	user.UpdatedAt = now
	if err := s.userRepo.UpdateProfile(ctx, user); err != nil {
		return nil, err
	}

	for _, edit := range edits {
		if err := s.editHistoryRepo.Create(ctx, edit); err != nil {
			return nil, fmt.Errorf("failed to record profile edit: %w", err)
		}
	}

	return user, nil
}

// ProfileEditHistory retrieves an account's profile edit trail
func (s *userService) ProfileEditHistory(ctx context.Context, userID uuid.UUID) ([]*domain.ProfileEdit, error) {
	if _, err := s.userRepo.FindByID(ctx, userID); err != nil {
		return nil, err
	}
	return s.editHistoryRepo.ListByUser(ctx, userID)
}

// hashPassword hashes a password using bcrypt
func (s *userService) hashPassword(password string) (string, error) {
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return "", err
	}
	return string(hashedBytes), nil
}

// verifyPassword verifies a password against a bcrypt hash
func (s *userService) verifyPassword(hashedPassword, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
}

// generateAccessToken generates a JWT access token with user ID and role claims
func (s *userService) generateAccessToken(user *domain.User) (string, error) {
	expirationTime := time.Now().Add(AccessTokenExpiration)
	claims := &Claims{
		UserID: user.ID,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expirationTime),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(s.jwtSecret))
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

// generateRefreshToken generates a refresh token and stores it in the database
func (s *userService) generateRefreshToken(ctx context.Context, user *domain.User) (string, error) {
	tokenString := uuid.New().String()

	refreshToken := &domain.RefreshToken{
		ID:        uuid.New(),
		UserID:    user.ID,
		Token:     tokenString,
		ExpiresAt: time.Now().Add(RefreshTokenExpiration),
		CreatedAt: time.Now(),
		Revoked:   false,
	}

	if err := s.refreshTokenRepo.Create(ctx, refreshToken); err != nil {
		return "", err
	}

	return tokenString, nil
}
