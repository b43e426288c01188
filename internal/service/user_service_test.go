package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/train-schedule-api/internal/models"
	"github.com/noah-isme/train-schedule-api/internal/repository"
	appErrors "github.com/noah-isme/train-schedule-api/pkg/errors"
)

type mockUserRepo struct {
	users     map[string]models.User
	listResp  []models.User
	listTotal int
	createErr error
	deleted   []string
}

func (m *mockUserRepo) List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error) {
	return m.listResp, m.listTotal, nil
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if user, ok := m.users[id]; ok {
		return &user, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserRepo) Create(ctx context.Context, user *models.User) error {
	if m.createErr != nil {
		return m.createErr
	}
	if m.users == nil {
		m.users = make(map[string]models.User)
	}
	if user.ID == "" {
		user.ID = "generated"
	}
	m.users[user.ID] = *user
	return nil
}

func (m *mockUserRepo) Delete(ctx context.Context, id string) error {
	m.deleted = append(m.deleted, id)
	delete(m.users, id)
	return nil
}

func newUserService(repo *mockUserRepo) *UserService {
	return NewUserService(repo, validator.New(), zap.NewNop())
}

func TestUserServiceCreateHashesPassword(t *testing.T) {
	repo := &mockUserRepo{}
	svc := newUserService(repo)

	user, err := svc.Create(context.Background(), CreateUserRequest{
		Username: "dispatcher",
		Password: "secret1",
		Email:    "dispatcher@example.com",
	}, adminClaims())
	require.NoError(t, err)
	assert.NotEqual(t, "secret1", user.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("secret1")))
	assert.False(t, user.IsAdmin)
}

func TestUserServiceCreateRejectsInvalidPayload(t *testing.T) {
	svc := newUserService(&mockUserRepo{})

	_, err := svc.Create(context.Background(), CreateUserRequest{Username: "ab", Password: "short", Email: "not-an-email"}, adminClaims())
	assert.Equal(t, appErrors.ErrValidation.Code, errCode(t, err))
}

func TestUserServiceCreateDuplicateUsernameConflicts(t *testing.T) {
	svc := newUserService(&mockUserRepo{createErr: repository.ErrDuplicateUsername})

	_, err := svc.Create(context.Background(), CreateUserRequest{
		Username: "dispatcher",
		Password: "secret1",
		Email:    "dispatcher@example.com",
	}, adminClaims())
	assert.Equal(t, appErrors.ErrConflict.Code, errCode(t, err))
}

func TestUserServiceRequiresAdmin(t *testing.T) {
	svc := newUserService(&mockUserRepo{})

	_, _, err := svc.List(context.Background(), models.UserFilter{}, viewerClaims())
	assert.Equal(t, appErrors.ErrForbidden.Code, errCode(t, err))

	_, err = svc.Get(context.Background(), "u-1", nil)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, errCode(t, err))

	err = svc.Delete(context.Background(), "u-1", viewerClaims())
	assert.Equal(t, appErrors.ErrForbidden.Code, errCode(t, err))
}

func TestUserServiceListPaginationDefaults(t *testing.T) {
	repo := &mockUserRepo{listResp: []models.User{{ID: "u-1", Username: "admin"}}, listTotal: 1}
	svc := newUserService(repo)

	users, pagination, err := svc.List(context.Background(), models.UserFilter{}, adminClaims())
	require.NoError(t, err)
	assert.Len(t, users, 1)
	assert.Equal(t, 1, pagination.Page)
	assert.Equal(t, 20, pagination.Limit)
	assert.Equal(t, 1, pagination.Total)
}

func TestUserServiceDeleteNotFound(t *testing.T) {
	svc := newUserService(&mockUserRepo{})

	err := svc.Delete(context.Background(), "missing", adminClaims())
	assert.Equal(t, appErrors.ErrNotFound.Code, errCode(t, err))
}
