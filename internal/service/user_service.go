package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/pkg/errors"

	"Idea_Portal/internal/model"
	"Idea_Portal/internal/pkg"
	"Idea_Portal/internal/repository/rdb"
)

const (
	PasswordMinLen = 8
	PasswordMaxLen = 72 // bcrypt 只使用前 72 字节
)

type UserService struct {
	users    *rdb.UserRepository
	identity Identity
	verify   *VerificationService
	sessions SessionStore
	jwt      *pkg.JWTManager
	listing  *ListingCache
	log      *slog.Logger
	now      func() time.Time
}

func NewUserService(users *rdb.UserRepository, identity Identity, verify *VerificationService, sessions SessionStore, jwt *pkg.JWTManager, listing *ListingCache, log *slog.Logger) *UserService {
	if log == nil {
		log = slog.Default()
	}
	return &UserService{
		users:    users,
		identity: identity,
		verify:   verify,
		sessions: sessions,
		jwt:      jwt,
		listing:  listing,
		log:      log,
		now:      time.Now,
	}
}

type LoginResult struct {
	*pkg.Pair
	User *model.User `json:"user"`
}

type UserPage struct {
	Items  []model.User `json:"items"`
	Total  int64        `json:"total"`
	Limit  int          `json:"limit"`
	Offset int          `json:"offset"`
}

// Register 顺序固定：校验令牌 -> 创建账号和档案（同一事务） -> 消费令牌
func (s *UserService) Register(ctx context.Context, token, password string) (*model.User, error) {
	ctx, span := tracer.Start(ctx, "User.Service.Register")
	defer span.End()

	if err := validatePassword(password); err != nil {
		return nil, err
	}
	ident, err := s.verify.Redeem(ctx, token)
	if err != nil {
		return nil, err
	}
	now := s.now()
	user := &model.User{
		Email:       ident.Email,
		FirstName:   ident.FirstName,
		LastName:    ident.LastName,
		DisplayName: strings.TrimSpace(ident.FirstName + " " + ident.LastName),
		Role:        model.RoleClient,
		CreatedAt:   now,
		LastLoginAt: now,
	}
	if err := s.identity.CreateAccount(ctx, ident.Email, password, user); err != nil {
		return nil, err
	}
	if err := s.verify.Consume(ctx, token); err != nil {
		return nil, err
	}
	s.log.InfoContext(ctx, "user registered", "user_id", user.ID)
	return user, nil
}

func (s *UserService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	ctx, span := tracer.Start(ctx, "User.Service.Login")
	defer span.End()

	if strings.TrimSpace(email) == "" || password == "" {
		return nil, pkg.Invalid("email", "email and password are required")
	}
	uid, err := s.identity.Authenticate(ctx, email, password)
	if err != nil {
		return nil, err
	}
	user, err := s.users.FindByID(ctx, uid)
	if err != nil {
		if errors.Is(err, pkg.ErrNotFound) {
			return nil, pkg.ErrUnauthorized
		}
		return nil, err
	}
	pair, err := s.issue(ctx, user)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if err := s.users.TouchLogin(ctx, uid, now); err != nil {
		s.log.WarnContext(ctx, "touch last login failed", "user_id", uid, "err", err)
	} else {
		user.LastLoginAt = now
	}
	return &LoginResult{Pair: pair, User: user}, nil
}

func (s *UserService) Logout(ctx context.Context, userID string) error {
	return pkg.Classify("session.delete", s.sessions.Delete(ctx, userID))
}

// Refresh 重新读取档案，角色变更和删除在刷新时生效
func (s *UserService) Refresh(ctx context.Context, refreshToken string) (*pkg.Pair, error) {
	claims, err := s.jwt.ParseRefresh(refreshToken)
	if err != nil {
		return nil, pkg.ErrUnauthorized
	}
	user, err := s.users.FindByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, pkg.ErrNotFound) {
			return nil, pkg.ErrUnauthorized
		}
		return nil, err
	}
	return s.issue(ctx, user)
}

func (s *UserService) Me(ctx context.Context, v Viewer) (*model.User, error) {
	if v.Anonymous() {
		return nil, pkg.ErrUnauthorized
	}
	return s.users.FindByID(ctx, v.UserID)
}

func (s *UserService) ChangePassword(ctx context.Context, v Viewer, oldPassword, newPassword string) error {
	if v.Anonymous() {
		return pkg.ErrUnauthorized
	}
	if err := validatePassword(newPassword); err != nil {
		return err
	}
	if err := s.identity.ChangePassword(ctx, v.UserID, oldPassword, newPassword); err != nil {
		return err
	}
	// 修改密码后强制重新登录
	return s.Logout(ctx, v.UserID)
}

func (s *UserService) ListUsers(ctx context.Context, v Viewer, limit, offset int) (*UserPage, error) {
	if err := requireAdmin(v); err != nil {
		return nil, err
	}
	limit, offset = NormalizePage(limit, offset)
	users, total, err := s.users.List(ctx, offset, limit)
	if err != nil {
		return nil, err
	}
	if users == nil {
		users = []model.User{}
	}
	return &UserPage{Items: users, Total: total, Limit: limit, Offset: offset}, nil
}

func (s *UserService) SetRole(ctx context.Context, v Viewer, userID, role string) error {
	if err := requireAdmin(v); err != nil {
		return err
	}
	r := model.Role(strings.TrimSpace(role))
	if !r.Valid() {
		return pkg.Invalid("role", "role must be client or admin")
	}
	if userID == v.UserID && r != model.RoleAdmin {
		return pkg.Invalid("role", "admins cannot demote themselves")
	}
	if err := s.users.UpdateRole(ctx, userID, r); err != nil {
		return err
	}
	s.log.InfoContext(ctx, "user role changed", "user_id", userID, "role", r, "by", v.UserID)
	return nil
}

// DeleteUser 危险操作：删除档案、账号、投票并踢下线
func (s *UserService) DeleteUser(ctx context.Context, v Viewer, userID string) error {
	if err := requireAdmin(v); err != nil {
		return err
	}
	if userID == v.UserID {
		return pkg.Invalid("id", "admins cannot delete themselves")
	}
	if err := s.users.Delete(ctx, userID); err != nil {
		return err
	}
	// 被删用户的投票已从计数中扣除
	s.listing.Purge()
	if err := s.sessions.Delete(ctx, userID); err != nil {
		s.log.WarnContext(ctx, "session cleanup failed", "user_id", userID, "err", err)
	}
	s.log.InfoContext(ctx, "user deleted", "user_id", userID, "by", v.UserID)
	return nil
}

// SetRoleByEmail 命令行使用，不经过请求者校验
func (s *UserService) SetRoleByEmail(ctx context.Context, email string, role model.Role) (*model.User, error) {
	if !role.Valid() {
		return nil, pkg.Invalid("role", "role must be client or admin")
	}
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if err := s.users.UpdateRole(ctx, user.ID, role); err != nil {
		return nil, err
	}
	user.Role = role
	return user, nil
}

// 将 access token 写入 redis，单点登录
func (s *UserService) issue(ctx context.Context, user *model.User) (*pkg.Pair, error) {
	pair, err := s.jwt.GeneratePair(user.ID, string(user.Role))
	if err != nil {
		return nil, pkg.Upstream("jwt.sign", err)
	}
	if err := s.sessions.Save(ctx, user.ID, pair.AccessToken); err != nil {
		return nil, pkg.Upstream("session.save", err)
	}
	return pair, nil
}

func validatePassword(pw string) error {
	if len(pw) < PasswordMinLen {
		return pkg.Invalid("password", "password must be at least 8 characters")
	}
	if len(pw) > PasswordMaxLen {
		return pkg.Invalid("password", "password must be at most 72 bytes")
	}
	return nil
}
