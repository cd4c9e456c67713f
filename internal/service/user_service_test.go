package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"inventract/internal/domain"
	"inventract/internal/repository"

	"github.com/google/uuid"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"golang.org/x/crypto/bcrypt"
)

// Mock repositories for testing
type mockUserRepository struct {
	users map[string]*domain.User
}

func newMockUserRepository() *mockUserRepository {
	return &mockUserRepository{
		users: make(map[string]*domain.User),
	}
}

func (m *mockUserRepository) Create(ctx context.Context, user *domain.User) error {
	if _, exists := m.users[user.Email]; exists {
		return repository.ErrUserAlreadyExists
	}
	m.users[user.Email] = user
	return nil
}

func (m *mockUserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	user, exists := m.users[email]
	if !exists {
		return nil, repository.ErrUserNotFound
	}
	return user, nil
}

func (m *mockUserRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	for _, user := range m.users {
		if user.ID == id {
			return user, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (m *mockUserRepository) List(ctx context.Context) ([]*domain.User, error) {
	users := []*domain.User{}
	for _, user := range m.users {
		users = append(users, user)
	}
	return users, nil
}

func (m *mockUserRepository) UpdateProfile(ctx context.Context, user *domain.User) error {
	if _, exists := m.users[user.Email]; !exists {
		return repository.ErrUserNotFound
	}
	m.users[user.Email] = user
	return nil
}

func (m *mockUserRepository) UpdateApproval(ctx context.Context, id uuid.UUID, approved, activeStaff bool) error {
	for _, user := range m.users {
		if user.ID == id {
			user.IsApproved = approved
			user.IsActiveStaff = activeStaff
			return nil
		}
	}
	return repository.ErrUserNotFound
}

type mockRefreshTokenRepository struct {
	tokens map[string]*domain.RefreshToken
}

func newMockRefreshTokenRepository() *mockRefreshTokenRepository {
	return &mockRefreshTokenRepository{
		tokens: make(map[string]*domain.RefreshToken),
	}
}

func (m *mockRefreshTokenRepository) Create(ctx context.Context, token *domain.RefreshToken) error {
	m.tokens[token.Token] = token
	return nil
}

func (m *mockRefreshTokenRepository) FindByToken(ctx context.Context, token string) (*domain.RefreshToken, error) {
	refreshToken, exists := m.tokens[token]
	if !exists {
		return nil, repository.ErrRefreshTokenNotFound
	}
	if refreshToken.Revoked {
		return nil, repository.ErrRefreshTokenRevoked
	}
	return refreshToken, nil
}

func (m *mockRefreshTokenRepository) Revoke(ctx context.Context, token string) error {
	refreshToken, exists := m.tokens[token]
	if !exists {
		return repository.ErrRefreshTokenNotFound
	}
	refreshToken.Revoked = true
	return nil
}

type mockEditHistoryRepository struct {
	edits []*domain.ProfileEdit
}

func newMockEditHistoryRepository() *mockEditHistoryRepository {
	return &mockEditHistoryRepository{edits: []*domain.ProfileEdit{}}
}

func (m *mockEditHistoryRepository) Create(ctx context.Context, edit *domain.ProfileEdit) error {
	m.edits = append(m.edits, edit)
	return nil
}

func (m *mockEditHistoryRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*domain.ProfileEdit, error) {
	result := []*domain.ProfileEdit{}
	for _, edit := range m.edits {
		if edit.UserID == userID {
			result = append(result, edit)
		}
	}
	return result, nil
}

func newTestUserService() (UserService, *mockUserRepository, *mockRefreshTokenRepository, *mockEditHistoryRepository) {
	userRepo := newMockUserRepository()
	refreshTokenRepo := newMockRefreshTokenRepository()
	editHistoryRepo := newMockEditHistoryRepository()
	svc := NewUserService(userRepo, refreshTokenRepo, editHistoryRepo, "test-secret-key")
	return svc, userRepo, refreshTokenRepo, editHistoryRepo
}

func TestProperty_RegistrationCreatesHashedPasswords(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("passwords are hashed with bcrypt and not stored as plaintext", prop.ForAll(
		func(email string, username string, password string) bool {
			service, userRepo, _, _ := newTestUserService()
			ctx := context.Background()

			user, err := service.Register(ctx, email, username, password, domain.RoleUser)
			if err != nil {
				// If registration fails, skip this test case
				return true
			}

			// Verify password is hashed (not equal to plaintext)
			if user.PasswordHash == password {
				t.Logf("FAIL: Password stored as plaintext for email %s", email)
				return false
			}

			// Verify password hash is a valid bcrypt hash
			err = bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password))
			if err != nil {
				t.Logf("FAIL: Password hash is not a valid bcrypt hash or doesn't match: %v", err)
				return false
			}

			// Verify the stored user has the hashed password
			storedUser, err := userRepo.FindByEmail(ctx, email)
			if err != nil {
				t.Logf("FAIL: Could not find stored user: %v", err)
				return false
			}

			if storedUser.PasswordHash != user.PasswordHash {
				t.Logf("FAIL: Stored password hash doesn't match returned password hash")
				return false
			}

			return true
		},
		// Generate valid email addresses
		gen.RegexMatch(`[a-z]{3,10}@[a-z]{3,8}\.(com|org|net)`),
		// Generate usernames
		gen.RegexMatch(`[a-z]{5,15}`),
		// Generate passwords with at least 8 characters
		gen.RegexMatch(`[A-Za-z0-9!@#$%]{8,20}`),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestProperty_JWTTokensContainRequiredClaims(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("access tokens contain user ID and role claims", prop.ForAll(
		func(email string, username string, password string) bool {
			service, _, _, _ := newTestUserService()
			ctx := context.Background()

			user, err := service.Register(ctx, email, username, password, domain.RoleUser)
			if err != nil {
				return true // Skip if registration fails
			}

			accessToken, _, _, err := service.Login(ctx, email, password)
			if err != nil {
				t.Logf("FAIL: Login failed: %v", err)
				return false
			}

			claims, err := service.ValidateToken(accessToken)
			if err != nil {
				t.Logf("FAIL: Token validation failed: %v", err)
				return false
			}

			if claims.UserID != user.ID {
				t.Logf("FAIL: User ID claim mismatch. Expected %s, got %s", user.ID, claims.UserID)
				return false
			}

			if claims.Role != domain.RoleUser {
				t.Logf("FAIL: Role claim mismatch. Expected user, got %s", claims.Role)
				return false
			}

			if claims.ExpiresAt == nil {
				t.Logf("FAIL: Token missing expiration claim")
				return false
			}

			if claims.IssuedAt == nil {
				t.Logf("FAIL: Token missing issued at claim")
				return false
			}

			return true
		},
		gen.RegexMatch(`[a-z]{3,10}@[a-z]{3,8}\.(com|org|net)`),
		gen.RegexMatch(`[a-z]{5,15}`),
		gen.RegexMatch(`[A-Za-z0-9!@#$%]{8,20}`),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestProperty_TokenRefreshRoundTrip(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("valid refresh token returns new valid access token", prop.ForAll(
		func(email string, username string, password string) bool {
			service, _, _, _ := newTestUserService()
			ctx := context.Background()

			_, err := service.Register(ctx, email, username, password, domain.RoleUser)
			if err != nil {
				return true // Skip if registration fails
			}

			_, refreshToken, user, err := service.Login(ctx, email, password)
			if err != nil {
				t.Logf("FAIL: Login failed: %v", err)
				return false
			}

			newAccessToken, err := service.RefreshToken(ctx, refreshToken)
			if err != nil {
				t.Logf("FAIL: Token refresh failed: %v", err)
				return false
			}

			claims, err := service.ValidateToken(newAccessToken)
			if err != nil {
				t.Logf("FAIL: New access token validation failed: %v", err)
				return false
			}

			if claims.UserID != user.ID {
				t.Logf("FAIL: User ID mismatch in refreshed token")
				return false
			}

			if claims.Role != user.Role {
				t.Logf("FAIL: Role mismatch in refreshed token")
				return false
			}

			if claims.ExpiresAt != nil && time.Now().After(claims.ExpiresAt.Time) {
				t.Logf("FAIL: Refreshed token is already expired")
				return false
			}

			return true
		},
		gen.RegexMatch(`[a-z]{3,10}@[a-z]{3,8}\.(com|org|net)`),
		gen.RegexMatch(`[a-z]{5,15}`),
		gen.RegexMatch(`[A-Za-z0-9!@#$%]{8,20}`),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestProperty_LogoutInvalidatesRefreshToken(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("logout marks refresh token as revoked", prop.ForAll(
		func(email string, username string, password string) bool {
			service, _, refreshTokenRepo, _ := newTestUserService()
			ctx := context.Background()

			_, err := service.Register(ctx, email, username, password, domain.RoleUser)
			if err != nil {
				return true // Skip if registration fails
			}

			_, refreshToken, _, err := service.Login(ctx, email, password)
			if err != nil {
				t.Logf("FAIL: Login failed: %v", err)
				return false
			}

			// Verify refresh token works before logout
			_, err = service.RefreshToken(ctx, refreshToken)
			if err != nil {
				t.Logf("FAIL: Refresh token should work before logout: %v", err)
				return false
			}

			err = service.Logout(ctx, refreshToken)
			if err != nil {
				t.Logf("FAIL: Logout failed: %v", err)
				return false
			}

			// Verify refresh token is now invalid
			_, err = service.RefreshToken(ctx, refreshToken)
			if !errors.Is(err, ErrInvalidToken) {
				t.Logf("FAIL: Expected ErrInvalidToken after logout, got: %v", err)
				return false
			}

			// Verify token is marked as revoked in repository
			_, err = refreshTokenRepo.FindByToken(ctx, refreshToken)
			if err != repository.ErrRefreshTokenRevoked {
				t.Logf("FAIL: Token should be revoked in repository, got error: %v", err)
				return false
			}

			return true
		},
		gen.RegexMatch(`[a-z]{3,10}@[a-z]{3,8}\.(com|org|net)`),
		gen.RegexMatch(`[a-z]{5,15}`),
		gen.RegexMatch(`[A-Za-z0-9!@#$%]{8,20}`),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestStaffRegistrationStartsUnapproved(t *testing.T) {
	service, _, _, _ := newTestUserService()
	ctx := context.Background()

	user, err := service.Register(ctx, "staff@example.com", "staffer", "password123", domain.RoleStaff)
	if err != nil {
		t.Fatalf("registration failed: %v", err)
	}

	if user.IsApproved || user.IsActiveStaff {
		t.Error("staff account should start unapproved and inactive")
	}
}

func TestUnapprovedStaffCannotLogin(t *testing.T) {
	service, _, _, _ := newTestUserService()
	ctx := context.Background()

	_, err := service.Register(ctx, "staff@example.com", "staffer", "password123", domain.RoleStaff)
	if err != nil {
		t.Fatalf("registration failed: %v", err)
	}

	_, _, _, err = service.Login(ctx, "staff@example.com", "password123")
	if !errors.Is(err, ErrStaffNotApproved) {
		t.Fatalf("expected ErrStaffNotApproved, got %v", err)
	}
}

func TestApprovedStaffCanLogin(t *testing.T) {
	service, _, _, _ := newTestUserService()
	ctx := context.Background()

	user, err := service.Register(ctx, "staff@example.com", "staffer", "password123", domain.RoleStaff)
	if err != nil {
		t.Fatalf("registration failed: %v", err)
	}

	if err := service.ApproveStaff(ctx, user.ID, true, true); err != nil {
		t.Fatalf("approval failed: %v", err)
	}

	accessToken, _, _, err := service.Login(ctx, "staff@example.com", "password123")
	if err != nil {
		t.Fatalf("approved staff login failed: %v", err)
	}

	claims, err := service.ValidateToken(accessToken)
	if err != nil {
		t.Fatalf("token validation failed: %v", err)
	}
	if claims.Role != domain.RoleStaff {
		t.Errorf("expected staff role claim, got %s", claims.Role)
	}
}

func TestDeactivatedStaffCannotLogin(t *testing.T) {
	service, _, _, _ := newTestUserService()
	ctx := context.Background()

	user, err := service.Register(ctx, "staff@example.com", "staffer", "password123", domain.RoleStaff)
	if err != nil {
		t.Fatalf("registration failed: %v", err)
	}

	// Approved but deactivated
	if err := service.ApproveStaff(ctx, user.ID, true, false); err != nil {
		t.Fatalf("approval failed: %v", err)
	}

	_, _, _, err = service.Login(ctx, "staff@example.com", "password123")
	if !errors.Is(err, ErrStaffNotApproved) {
		t.Fatalf("expected ErrStaffNotApproved for deactivated staff, got %v", err)
	}
}

func TestRegisterRejectsUnknownRole(t *testing.T) {
	service, _, _, _ := newTestUserService()

	_, err := service.Register(context.Background(), "user@example.com", "someone", "password123", "admin")
	if !errors.Is(err, ErrInvalidRole) {
		t.Fatalf("expected ErrInvalidRole, got %v", err)
	}
}

func TestUpdateProfileRecordsOneEditPerChangedField(t *testing.T) {
	service, _, _, editHistoryRepo := newTestUserService()
	ctx := context.Background()

	user, err := service.Register(ctx, "profile@example.com", "profileuser", "password123", domain.RoleUser)
	if err != nil {
		t.Fatalf("registration failed: %v", err)
	}

	updated, err := service.UpdateProfile(ctx, user.ID, map[string]string{
		"phone":    "+95911111111",
		"nickname": "shade",
	})
	if err != nil {
		t.Fatalf("profile update failed: %v", err)
	}

	if updated.Phone != "+95911111111" || updated.Nickname != "shade" {
		t.Error("profile fields not applied")
	}
	if len(editHistoryRepo.edits) != 2 {
		t.Fatalf("expected 2 edit records, got %d", len(editHistoryRepo.edits))
	}

	// Setting the same values again records nothing
	_, err = service.UpdateProfile(ctx, user.ID, map[string]string{"phone": "+95911111111"})
	if err != nil {
		t.Fatalf("no-op profile update failed: %v", err)
	}
	if len(editHistoryRepo.edits) != 2 {
		t.Errorf("no-op update should not record edits, got %d", len(editHistoryRepo.edits))
	}

	history, err := service.ProfileEditHistory(ctx, user.ID)
	if err != nil {
		t.Fatalf("failed to list edit history: %v", err)
	}
	if len(history) != 2 {
		t.Errorf("expected 2 history entries, got %d", len(history))
	}
}

func TestUpdateProfileRejectsUneditableField(t *testing.T) {
	service, _, _, _ := newTestUserService()
	ctx := context.Background()

	user, err := service.Register(ctx, "locked@example.com", "lockeduser", "password123", domain.RoleUser)
	if err != nil {
		t.Fatalf("registration failed: %v", err)
	}

	_, err = service.UpdateProfile(ctx, user.ID, map[string]string{"email": "new@example.com"})
	if err == nil {
		t.Fatal("expected error when editing a locked field")
	}
}
