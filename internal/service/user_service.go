package service

import (
	"context"
	"strings"

	"go-marketplace/internal/model"
	"go-marketplace/internal/repository"
	"go-marketplace/pkg/storage"

	"go.uber.org/zap"
)

// UpdateProfileRequest fields are optional; nil means "leave unchanged".
type UpdateProfileRequest struct {
	Username    *string `json:"username" form:"username" validate:"omitempty,username"`
	Address     *string `json:"address" form:"address" validate:"omitempty,max=255"`
	PhoneNumber *string `json:"phone_number" form:"phone_number" validate:"omitempty,phone"`
}

type UserPage struct {
	Users      []model.UserResponse `json:"users"`
	Pagination PageMeta             `json:"pagination"`
}

type UserService interface {
	GetProfile(userID string) (*model.UserResponse, error)
	UpdateProfile(ctx context.Context, userID string, req UpdateProfileRequest, picture *Upload) (*model.UserResponse, error)
	DeleteAccount(userID string) error
	ListUsers(page, limit int) (*UserPage, error)
	DeleteUser(id string) error
}

type userService struct {
	userRepo repository.UserRepository
	store    storage.Storage
	log      *zap.Logger
}

func NewUserService(userRepo repository.UserRepository, store storage.Storage, log *zap.Logger) UserService {
	return &userService{userRepo: userRepo, store: store, log: log}
}

func (s *userService) GetProfile(userID string) (*model.UserResponse, error) {
	user, err := s.userRepo.FindByID(userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	resp := user.ToResponse()
	return &resp, nil
}

func (s *userService) UpdateProfile(ctx context.Context, userID string, req UpdateProfileRequest, picture *Upload) (*model.UserResponse, error) {
	if req.Username != nil {
		trimmed := strings.TrimSpace(*req.Username)
		req.Username = &trimmed
	}

	// 1. Validate request
	if err := validate(req); err != nil {
		return nil, err
	}

	user, err := s.userRepo.FindByID(userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	// 2. Username must not belong to somebody else
	if req.Username != nil {
		holder, err := s.userRepo.FindByUsername(*req.Username)
		if err != nil {
			return nil, err
		}
		if holder != nil && holder.ID != userID {
			return nil, ErrUsernameTaken
		}
	}

	// 3. Build the shallow merge
	fields := map[string]interface{}{}
	if req.Username != nil {
		fields["username"] = *req.Username
		user.Username = *req.Username
	}
	if req.Address != nil {
		fields["address"] = *req.Address
		user.Address = *req.Address
	}
	if req.PhoneNumber != nil {
		fields["phone_number"] = *req.PhoneNumber
		user.PhoneNumber = *req.PhoneNumber
	}
	if picture != nil {
		url, err := storeUpload(ctx, s.store, s.log, "profile-pictures", picture)
		if err != nil {
			return nil, err
		}
		fields["profile_picture"] = url
		user.ProfilePicture = url
	}

	// 4. Persist
	if err := s.userRepo.Update(userID, fields); err != nil {
		return nil, err
	}

	resp := user.ToResponse()
	return &resp, nil
}

func (s *userService) DeleteAccount(userID string) error {
	user, err := s.userRepo.FindByID(userID)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrUserNotFound
	}
	if err := s.userRepo.SoftDelete(userID); err != nil {
		return err
	}
	s.log.Info("user soft-deleted", zap.String("user_id", userID))
	return nil
}

func (s *userService) ListUsers(page, limit int) (*UserPage, error) {
	p := repository.NewPagination(page, limit, defaultPageLimit, maxPageLimit)
	users, total, err := s.userRepo.FindAll(p)
	if err != nil {
		return nil, err
	}

	out := make([]model.UserResponse, 0, len(users))
	for i := range users {
		out = append(out, users[i].ToResponse())
	}
	return &UserPage{Users: out, Pagination: newPageMeta(p, total)}, nil
}

func (s *userService) DeleteUser(id string) error {
	return s.DeleteAccount(id)
}
