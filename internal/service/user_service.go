package service

import (
	"context"
	"database/sql"
	"errors"

	"clubladder/internal/store"
	users "clubladder/internal/user"
	"clubladder/internal/utils"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/markbates/goth"
)

type UserService struct {
	db    *sqlx.DB
	store *store.UserStore
}

func NewUserService(db *sqlx.DB, store *store.UserStore) *UserService {
	return &UserService{db: db, store: store}
}

func (s *UserService) FindOrCreateUserByProvider(ctx context.Context, gothUser goth.User) (*users.User, error) {
	user, err := s.store.GetUserByProvider(ctx, gothUser.Provider, gothUser.UserID)

	if err == nil {
		if utils.OrZero(user.AvatarURL) != gothUser.AvatarURL || user.Username != gothUser.NickName {
			user.Username = gothUser.NickName
			user.AvatarURL = utils.StringOrNil(gothUser.AvatarURL)
			s.store.UpdateUserNameAndAvatar(ctx, user)
		}
		return user, nil
	}

	if errors.Is(err, sql.ErrNoRows) {
		newUser := &users.User{
			ID:         uuid.New(),
			Email:      gothUser.Email,
			Username:   gothUser.Name,
			Provider:   &gothUser.Provider,
			ProviderID: &gothUser.UserID,
			AvatarURL:  &gothUser.AvatarURL,
		}
		err := s.store.CreateUser(ctx, newUser)
		return newUser, err
	}

	return nil, err
}

func (s *UserService) EnsureGuestUser(ctx context.Context) (*users.User, error) {
	guestID := uuid.MustParse("00000000-0000-0000-0000-000000000001")
	user, err := s.store.GetUser(ctx, guestID)
	if err == nil {
		return user, nil
	}

	if errors.Is(err, sql.ErrNoRows) {
		guestUser := &users.User{
			ID:       guestID,
			Email:    "guest@clubladder.local",
			Username: "Guest User",
		}
		err := s.store.CreateUser(ctx, guestUser)
		return guestUser, err
	}
	return nil, err
}
