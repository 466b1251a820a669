package firestore

import (
	"context"
	"errors"
	"strings"

	"cloud.google.com/go/firestore"

	"github.com/furever-shop/api/internal/domain"
	pfirestore "github.com/furever-shop/api/internal/platform/firestore"
)

const usersCollection = "users"

type userDocument struct {
	DisplayName string `firestore:"displayName"`
	Email       string `firestore:"email"`
	IsAdmin     bool   `firestore:"isAdmin"`
	IsActive    bool   `firestore:"isActive"`
}

// UserRepository reads the user directory from Firestore.
type UserRepository struct {
	base *pfirestore.BaseRepository[userDocument]
}

// NewUserRepository constructs a Firestore-backed user repository.
func NewUserRepository(provider *pfirestore.Provider) (*UserRepository, error) {
	if provider == nil {
		return nil, errors.New("user repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[userDocument](provider, usersCollection, nil, nil)
	return &UserRepository{base: base}, nil
}

// FindByID loads the user profile by id.
func (r *UserRepository) FindByID(ctx context.Context, userID string) (domain.UserProfile, error) {
	if r == nil || r.base == nil {
		return domain.UserProfile{}, errors.New("user repository not initialised")
	}
	if strings.TrimSpace(userID) == "" {
		return domain.UserProfile{}, errors.New("user id is required")
	}

	doc, err := r.base.Get(ctx, userID)
	if err != nil {
		return domain.UserProfile{}, err
	}
	return toDomainProfile(doc.ID, doc.Data), nil
}

// ListActiveAdmins returns every active admin, the fan-out audience for
// store-wide notifications.
func (r *UserRepository) ListActiveAdmins(ctx context.Context) ([]domain.UserProfile, error) {
	if r == nil || r.base == nil {
		return nil, errors.New("user repository not initialised")
	}

	docs, err := r.base.Query(ctx, func(query firestore.Query) firestore.Query {
		return query.
			Where("isAdmin", "==", true).
			Where("isActive", "==", true)
	})
	if err != nil {
		return nil, err
	}

	admins := make([]domain.UserProfile, 0, len(docs))
	for _, doc := range docs {
		admins = append(admins, toDomainProfile(doc.ID, doc.Data))
	}
	return admins, nil
}

func toDomainProfile(id string, doc userDocument) domain.UserProfile {
	return domain.UserProfile{
		ID:          id,
		DisplayName: doc.DisplayName,
		Email:       doc.Email,
		IsAdmin:     doc.IsAdmin,
		IsActive:    doc.IsActive,
	}
}
