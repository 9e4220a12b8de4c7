package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go-marketplace/internal/model"
	"go-marketplace/internal/repository"
	"go-marketplace/pkg/googleauth"
	"go-marketplace/pkg/jwt"
	"go-marketplace/pkg/mailer"

	"go.uber.org/zap"
)

const resetTokenTTL = time.Hour

// ResetRequestedMessage is returned whether or not the e-mail is registered.
const ResetRequestedMessage = "If an account with that email exists, a password reset link has been sent"

type GoogleVerifier interface {
	Verify(ctx context.Context, idToken string) (*googleauth.Identity, error)
}

type SignupRequest struct {
	Username    string `json:"username" validate:"required,username"`
	Email       string `json:"email" validate:"required,email,max=255"`
	Password    string `json:"password" validate:"required,strongpwd"`
	Address     string `json:"address" validate:"max=255"`
	PhoneNumber string `json:"phone_number" validate:"omitempty,phone"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type GoogleLoginRequest struct {
	IDToken string `json:"id_token" validate:"required"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,strongpwd"`
	ConfirmPassword string `json:"confirm_password" validate:"required,eqfield=NewPassword"`
}

type RequestResetRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type ResetPasswordRequest struct {
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,strongpwd"`
}

type AuthResponse struct {
	Token string             `json:"token"`
	User  model.UserResponse `json:"user"`
}

type ResetRequestResult struct {
	Message    string `json:"message"`
	ResetToken string `json:"reset_token,omitempty"` // development only
}

type AuthConfig struct {
	FrontendURL      string
	ExposeResetToken bool
}

type AuthService interface {
	Signup(ctx context.Context, req SignupRequest) (*AuthResponse, error)
	Login(ctx context.Context, req LoginRequest) (*AuthResponse, error)
	GoogleLogin(ctx context.Context, req GoogleLoginRequest) (*AuthResponse, error)
	Logout(userID string) error
	ChangePassword(ctx context.Context, userID string, req ChangePasswordRequest) (*AuthResponse, error)
	RequestPasswordReset(ctx context.Context, req RequestResetRequest) (*ResetRequestResult, error)
	ResetPassword(ctx context.Context, req ResetPasswordRequest) error
}

type authService struct {
	userRepo repository.UserRepository
	tokens   *jwt.Manager
	mail     mailer.Mailer
	google   GoogleVerifier
	cfg      AuthConfig
	log      *zap.Logger
	now      func() time.Time
}

func NewAuthService(userRepo repository.UserRepository, tokens *jwt.Manager, mail mailer.Mailer, google GoogleVerifier, cfg AuthConfig, log *zap.Logger) AuthService {
	return &authService{
		userRepo: userRepo,
		tokens:   tokens,
		mail:     mail,
		google:   google,
		cfg:      cfg,
		log:      log,
		now:      time.Now,
	}
}

func (s *authService) Signup(ctx context.Context, req SignupRequest) (*AuthResponse, error) {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Username = strings.TrimSpace(req.Username)

	// 1. Validate request
	if err := validate(req); err != nil {
		return nil, err
	}

	// 2. Email & username must be free
	existing, err := s.userRepo.FindByEmail(req.Email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrEmailExists
	}
	taken, err := s.userRepo.FindByUsername(req.Username)
	if err != nil {
		return nil, err
	}
	if taken != nil {
		return nil, ErrUsernameTaken
	}

	// 3. Create account
	user := &model.User{
		Email:        req.Email,
		Username:     req.Username,
		Address:      req.Address,
		PhoneNumber:  req.PhoneNumber,
		Role:         model.RoleUser,
		AuthProvider: model.ProviderLocal,
	}
	if err := user.SetPassword(req.Password); err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	if err := s.userRepo.Create(user); err != nil {
		return nil, err
	}

	s.log.Info("user signed up", zap.String("user_id", user.ID))

	// 4. Issue session
	return s.issueSession(user)
}

func (s *authService) Login(ctx context.Context, req LoginRequest) (*AuthResponse, error) {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := validate(req); err != nil {
		return nil, err
	}

	user, err := s.userRepo.FindByEmail(req.Email)
	if err != nil {
		return nil, err
	}
	if user == nil || !user.CheckPassword(req.Password) {
		return nil, ErrInvalidCredentials
	}

	return s.issueSession(user)
}

func (s *authService) GoogleLogin(ctx context.Context, req GoogleLoginRequest) (*AuthResponse, error) {
	if err := validate(req); err != nil {
		return nil, err
	}

	// 1. Verify the ID token with Google
	identity, err := s.google.Verify(ctx, req.IDToken)
	if err != nil {
		if errors.Is(err, googleauth.ErrInvalidIDToken) {
			return nil, ErrInvalidGoogleToken
		}
		return nil, upstream("google token verification", err)
	}

	// 2. Known google account
	user, err := s.userRepo.FindByGoogleUID(identity.Subject)
	if err != nil {
		return nil, err
	}
	if user != nil {
		return s.issueSession(user)
	}

	// Linking or creating by e-mail needs Google to vouch for the address.
	if !identity.EmailVerified {
		return nil, ErrUnverifiedEmail
	}

	// 3. Existing local account with the same e-mail: link it
	email := strings.ToLower(identity.Email)
	user, err = s.userRepo.FindByEmail(email)
	if err != nil {
		return nil, err
	}
	if user != nil {
		fields := map[string]interface{}{"google_uid": identity.Subject}
		if user.ProfilePicture == "" && identity.Picture != "" {
			fields["profile_picture"] = identity.Picture
			user.ProfilePicture = identity.Picture
		}
		if err := s.userRepo.Update(user.ID, fields); err != nil {
			return nil, err
		}
		uid := identity.Subject
		user.GoogleUID = &uid
		return s.issueSession(user)
	}

	// 4. New federated account
	username, err := s.uniqueUsername(identity.Name, email)
	if err != nil {
		return nil, err
	}
	uid := identity.Subject
	user = &model.User{
		Email:          email,
		Username:       username,
		Role:           model.RoleUser,
		GoogleUID:      &uid,
		ProfilePicture: identity.Picture,
		AuthProvider:   model.ProviderGoogle,
	}
	if err := s.userRepo.Create(user); err != nil {
		return nil, err
	}

	s.log.Info("user signed up with google", zap.String("user_id", user.ID))
	return s.issueSession(user)
}

func (s *authService) Logout(userID string) error {
	return s.userRepo.UpdateAccessToken(userID, nil)
}

func (s *authService) ChangePassword(ctx context.Context, userID string, req ChangePasswordRequest) (*AuthResponse, error) {
	// 1. Validate request
	if err := validate(req); err != nil {
		return nil, err
	}

	// 2. Verify current password
	user, err := s.userRepo.FindByID(userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	if !user.HasPassword() {
		return nil, ErrNoPasswordSet
	}
	if !user.CheckPassword(req.CurrentPassword) {
		return nil, ErrWrongPassword
	}

	// 3. Store the new hash
	if err := user.SetPassword(req.NewPassword); err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	if err := s.userRepo.UpdatePassword(user.ID, *user.Password); err != nil {
		return nil, err
	}

	// 4. Rotate the session so other holders of the old token are logged out
	resp, err := s.issueSession(user)
	if err != nil {
		return nil, err
	}

	// 5. Confirmation mail is best effort
	if err := s.mail.Send(user.Email, "Your password was changed", mailer.PasswordChangedBody(user.Username)); err != nil {
		s.log.Warn("password change email failed", zap.String("user_id", user.ID), zap.Error(err))
	}

	return resp, nil
}

func (s *authService) RequestPasswordReset(ctx context.Context, req RequestResetRequest) (*ResetRequestResult, error) {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := validate(req); err != nil {
		return nil, err
	}

	result := &ResetRequestResult{Message: ResetRequestedMessage}

	user, err := s.userRepo.FindByEmail(req.Email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return result, nil
	}

	token, err := newResetToken()
	if err != nil {
		return nil, err
	}
	if err := s.userRepo.SetResetToken(user.ID, token, s.now().Add(resetTokenTTL)); err != nil {
		return nil, err
	}

	link := strings.TrimRight(s.cfg.FrontendURL, "/") + "/reset-password?token=" + token
	if err := s.mail.Send(user.Email, "Reset your password", mailer.PasswordResetBody(user.Username, link)); err != nil {
		return nil, upstream("send reset email", err)
	}

	if s.cfg.ExposeResetToken {
		result.ResetToken = token
	}
	return result, nil
}

func (s *authService) ResetPassword(ctx context.Context, req ResetPasswordRequest) error {
	if err := validate(req); err != nil {
		return err
	}

	user, err := s.userRepo.FindByResetToken(req.Token, s.now())
	if err != nil {
		return err
	}
	if user == nil {
		return ErrInvalidResetToken
	}

	if err := user.SetPassword(req.NewPassword); err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.userRepo.UpdatePassword(user.ID, *user.Password); err != nil {
		return err
	}
	if err := s.userRepo.UpdateAccessToken(user.ID, nil); err != nil {
		return err
	}

	if err := s.mail.Send(user.Email, "Your password has been reset", mailer.PasswordResetDoneBody(user.Username)); err != nil {
		s.log.Warn("password reset confirmation email failed", zap.String("user_id", user.ID), zap.Error(err))
	}
	return nil
}

// issueSession signs a token and stores it as the user's only valid session.
func (s *authService) issueSession(user *model.User) (*AuthResponse, error) {
	token, err := s.tokens.GenerateToken(user.ID, user.Email, user.Role)
	if err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}
	if err := s.userRepo.UpdateAccessToken(user.ID, &token); err != nil {
		return nil, err
	}
	user.AccessToken = &token

	return &AuthResponse{Token: token, User: user.ToResponse()}, nil
}

var usernameCleaner = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

func (s *authService) uniqueUsername(name, email string) (string, error) {
	base := usernameCleaner.ReplaceAllString(strings.ReplaceAll(strings.TrimSpace(name), " ", "_"), "")
	if len(base) < 3 {
		base = usernameCleaner.ReplaceAllString(strings.SplitN(email, "@", 2)[0], "")
	}
	if len(base) < 3 {
		base = "user"
	}
	if len(base) > 40 {
		base = base[:40]
	}

	candidate := base
	for i := 0; i < 5; i++ {
		existing, err := s.userRepo.FindByUsername(candidate)
		if err != nil {
			return "", err
		}
		if existing == nil {
			return candidate, nil
		}
		suffix, err := randomHex(3)
		if err != nil {
			return "", err
		}
		candidate = base + "_" + suffix
	}
	return "", ErrUsernameTaken
}

func newResetToken() (string, error) {
	return randomHex(32)
}

func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
