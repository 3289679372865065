package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/Marga-Ghale/together-culture-crm/internal/config"
	"github.com/Marga-Ghale/together-culture-crm/internal/db"
	"github.com/Marga-Ghale/together-culture-crm/internal/repository"
)

const purposePasswordReset = "password_reset"

// ============================================
// Auth Service
// ============================================

type RegisterInput struct {
	Username  string
	Email     string
	Password  string
	Password2 string
}

type AuthService interface {
	Register(ctx context.Context, in RegisterInput) (*repository.User, string, string, error)
	// Login accepts either the email address or the username.
	Login(ctx context.Context, identifier, password string) (*repository.User, string, string, error)
	RefreshToken(ctx context.Context, refreshToken string) (string, string, error)
	Logout(ctx context.Context, refreshToken string) error
	RequestPasswordReset(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, password, confirm string) error
	ValidateToken(token string) (*jwt.Token, error)
	GetUserIDFromToken(token *jwt.Token) (string, error)
	GetUser(ctx context.Context, id string) (*repository.User, error)
}

type authService struct {
	cfg      *config.Config
	userRepo repository.UserRepository
	tokens   TokenStore
	mailer   Mailer
}

func NewAuthService(cfg *config.Config, userRepo repository.UserRepository, tokens TokenStore, mailer Mailer) AuthService {
	return &authService{cfg: cfg, userRepo: userRepo, tokens: tokens, mailer: mailer}
}

func (s *authService) Register(ctx context.Context, in RegisterInput) (*repository.User, string, string, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = normalizeEmail(in.Email)

	f := fieldErrors{}
	checkUsername(f, in.Username)
	checkEmail(f, in.Email)
	checkPassword(f, "password", in.Password)
	if in.Password != in.Password2 {
		f.add("password2", "Passwords don't match.")
	}
	if err := f.err(); err != nil {
		return nil, "", "", err
	}

	if existing, err := s.userRepo.FindByUsername(ctx, in.Username); err != nil {
		return nil, "", "", err
	} else if existing != nil {
		return nil, "", "", conflictError("username_taken", "A user with this username already exists.")
	}
	if existing, err := s.userRepo.FindByEmail(ctx, in.Email); err != nil {
		return nil, "", "", err
	} else if existing != nil {
		return nil, "", "", conflictError("email_taken", "A user with this email already exists.")
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", "", fmt.Errorf("failed to hash password: %w", err)
	}

	user := &repository.User{
		Username: in.Username,
		Email:    in.Email,
		Password: string(hashedPassword),
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, "", "", conflictError("account_exists", "A user with this username or email already exists.")
		}
		return nil, "", "", fmt.Errorf("failed to create user: %w", err)
	}

	accessToken, refreshToken, err := s.generateTokens(ctx, user.ID)
	if err != nil {
		return nil, "", "", fmt.Errorf("failed to generate tokens: %w", err)
	}
	return user, accessToken, refreshToken, nil
}

func (s *authService) Login(ctx context.Context, identifier, password string) (*repository.User, string, string, error) {
	identifier = strings.TrimSpace(identifier)

	var (
		user *repository.User
		err  error
	)
	if strings.Contains(identifier, "@") {
		user, err = s.userRepo.FindByEmail(ctx, normalizeEmail(identifier))
	} else {
		user, err = s.userRepo.FindByUsername(ctx, identifier)
	}
	if err != nil || user == nil {
		return nil, "", "", ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, "", "", ErrInvalidCredentials
	}

	now := time.Now()
	if err := s.userRepo.UpdateLastLogin(ctx, user.ID, now); err != nil {
		log.Printf("[Auth] Failed to record login for %s: %v", user.ID, err)
	}
	user.LastLogin = &now

	accessToken, refreshToken, err := s.generateTokens(ctx, user.ID)
	if err != nil {
		return nil, "", "", fmt.Errorf("failed to generate tokens: %w", err)
	}
	return user, accessToken, refreshToken, nil
}

func (s *authService) RefreshToken(ctx context.Context, refreshToken string) (string, string, error) {
	rt, err := s.userRepo.FindRefreshToken(ctx, refreshToken)
	if err != nil || rt == nil {
		return "", "", ErrInvalidToken
	}

	// Refresh tokens are single use.
	s.userRepo.DeleteRefreshToken(ctx, refreshToken)
	if time.Now().After(rt.ExpiresAt) {
		return "", "", ErrInvalidToken
	}

	accessToken, newRefreshToken, err := s.generateTokens(ctx, rt.UserID)
	if err != nil {
		return "", "", fmt.Errorf("failed to generate tokens: %w", err)
	}
	return accessToken, newRefreshToken, nil
}

func (s *authService) Logout(ctx context.Context, refreshToken string) error {
	return s.userRepo.DeleteRefreshToken(ctx, refreshToken)
}

// RequestPasswordReset never reveals whether the address has an account.
func (s *authService) RequestPasswordReset(ctx context.Context, address string) error {
	user, err := s.userRepo.FindByEmail(ctx, normalizeEmail(address))
	if err != nil {
		return err
	}
	if user == nil || user.IsGuest {
		return nil
	}

	token := strings.ReplaceAll(uuid.New().String(), "-", "")
	if err := s.tokens.PutToken(ctx, purposePasswordReset, token, user.ID, s.cfg.PasswordResetTTL); err != nil {
		return fmt.Errorf("failed to store reset token: %w", err)
	}
	if s.mailer != nil {
		if err := s.mailer.SendPasswordReset(user.Email, user.Username, token, s.cfg.PasswordResetTTL); err != nil {
			log.Printf("[Auth] Failed to send reset email to %s: %v", user.ID, err)
		}
	}
	log.Printf("[Auth] Password reset requested for user %s", user.ID)
	return nil
}

func (s *authService) ResetPassword(ctx context.Context, token, password, confirm string) error {
	f := fieldErrors{}
	checkPassword(f, "password", password)
	if password != confirm {
		f.add("confirm_password", "Passwords don't match.")
	}
	if err := f.err(); err != nil {
		return err
	}

	userID, err := s.tokens.TakeToken(ctx, purposePasswordReset, token)
	if errors.Is(err, db.ErrCacheMiss) {
		return &RuleError{Kind: ErrValidation, Reason: "invalid_reset_token", Message: "This reset link is invalid or has expired."}
	}
	if err != nil {
		return err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	if err := s.userRepo.UpdatePassword(ctx, userID, string(hashed)); err != nil {
		return err
	}
	// Sign out every session that used the old password.
	return s.userRepo.DeleteUserRefreshTokens(ctx, userID)
}

func (s *authService) ValidateToken(tokenString string) (*jwt.Token, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.cfg.JWTSecret), nil
	})
	if err != nil {
		return nil, err
	}
	return token, nil
}

func (s *authService) GetUserIDFromToken(token *jwt.Token) (string, error) {
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", ErrInvalidToken
	}
	userID, ok := claims["sub"].(string)
	if !ok {
		return "", ErrInvalidToken
	}
	return userID, nil
}

func (s *authService) GetUser(ctx context.Context, id string) (*repository.User, error) {
	user, err := s.userRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, notFoundError("user_not_found", "User not found.")
	}
	return user, nil
}

func (s *authService) generateTokens(ctx context.Context, userID string) (string, string, error) {
	accessToken := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": userID,
		"exp": time.Now().Add(time.Hour * time.Duration(s.cfg.JWTExpiry)).Unix(),
		"iat": time.Now().Unix(),
	})

	accessTokenString, err := accessToken.SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		return "", "", err
	}

	rt := &repository.RefreshToken{
		Token:     uuid.New().String(),
		UserID:    userID,
		ExpiresAt: time.Now().Add(time.Hour * 24 * time.Duration(s.cfg.RefreshExpiry)),
	}
	if err := s.userRepo.SaveRefreshToken(ctx, rt); err != nil {
		return "", "", err
	}

	return accessTokenString, rt.Token, nil
}
