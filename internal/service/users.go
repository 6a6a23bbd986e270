package service

import (
	"context"

	"github.com/webapp-auth/backend/internal/model"
)

type UserLister interface {
	ListUsers(ctx context.Context) ([]model.User, error)
}

type UserService struct {
	repo UserLister
}

func NewUserService(repo UserLister) *UserService {
	return &UserService{repo: repo}
}

func (s *UserService) ListUsers(ctx context.Context) ([]model.UserResponse, error) {
	users, err := s.repo.ListUsers(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]model.UserResponse, 0, len(users))
	for _, u := range users {
		out = append(out, model.NewUserResponse(u))
	}
	return out, nil
}
