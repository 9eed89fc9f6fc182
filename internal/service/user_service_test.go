package service

import (
	"doc-chat-go/internal/apperr"
	"doc-chat-go/internal/model"
	"doc-chat-go/pkg/token"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// fakeUserRepo 是 UserRepository 的内存实现。
type fakeUserRepo struct {
	byEmail map[string]*model.User
	nextID  uint
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{byEmail: make(map[string]*model.User), nextID: 1}
}

func (f *fakeUserRepo) Create(user *model.User) error {
	user.ID = f.nextID
	f.nextID++
	f.byEmail[user.Email] = user
	return nil
}

func (f *fakeUserRepo) FindByEmail(email string) (*model.User, error) {
	if u, ok := f.byEmail[email]; ok {
		return u, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeUserRepo) FindByID(userID uint) (*model.User, error) {
	for _, u := range f.byEmail {
		if u.ID == userID {
			return u, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func newTestUserService(repo *fakeUserRepo) UserService {
	return NewUserService(repo, token.NewJWTManager("test-secret", 1, 7))
}

func TestRegisterNormalizesEmailAndHashesPassword(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestUserService(repo)

	user, err := svc.Register("  Alice@Example.COM ", "secret123")
	require.NoError(t, err)

	assert.Equal(t, "alice@example.com", user.Email)
	// 明文密码不落库
	assert.NotEqual(t, "secret123", user.Password)
	assert.NotEmpty(t, user.Password)
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestUserService(repo)

	_, err := svc.Register("alice@example.com", "secret123")
	require.NoError(t, err)

	_, err = svc.Register("alice@example.com", "another")
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.InvalidRequest))
	assert.Equal(t, "该邮箱已注册", apperr.ReasonOf(err))
}

func TestRegisterRejectsEmptyFields(t *testing.T) {
	svc := newTestUserService(newFakeUserRepo())

	for name, in := range map[string][2]string{
		"empty email":    {"", "secret"},
		"empty password": {"alice@example.com", ""},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Register(in[0], in[1])
			assert.True(t, apperr.IsKind(err, apperr.InvalidRequest))
		})
	}
}

func TestLoginIssuesTokenPair(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestUserService(repo)

	_, err := svc.Register("alice@example.com", "secret123")
	require.NoError(t, err)

	access, refresh, err := svc.Login("alice@example.com", "secret123")
	require.NoError(t, err)
	assert.NotEmpty(t, access)
	assert.NotEmpty(t, refresh)
}

func TestLoginIndistinctFailure(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestUserService(repo)

	_, err := svc.Register("alice@example.com", "secret123")
	require.NoError(t, err)

	// 用户不存在与密码错误返回同一类别和文案
	for name, in := range map[string][2]string{
		"unknown email":  {"bob@example.com", "secret123"},
		"wrong password": {"alice@example.com", "wrong"},
	} {
		t.Run(name, func(t *testing.T) {
			_, _, err := svc.Login(in[0], in[1])
			require.Error(t, err)
			assert.True(t, apperr.IsKind(err, apperr.Unauthorized))
			assert.Equal(t, "无效的凭证", apperr.ReasonOf(err))
		})
	}
}

func TestRefreshTokenReissuesPair(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestUserService(repo)

	_, err := svc.Register("alice@example.com", "secret123")
	require.NoError(t, err)
	_, refresh, err := svc.Login("alice@example.com", "secret123")
	require.NoError(t, err)

	newAccess, newRefresh, err := svc.RefreshToken(refresh)
	require.NoError(t, err)
	assert.NotEmpty(t, newAccess)
	assert.NotEmpty(t, newRefresh)
}

func TestRefreshTokenRejectsGarbage(t *testing.T) {
	svc := newTestUserService(newFakeUserRepo())

	_, _, err := svc.RefreshToken("not-a-token")
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.Unauthorized))
}
