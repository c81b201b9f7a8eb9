package service

import (
	"context"

	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"

	"Idea_Portal/internal/model"
	"Idea_Portal/internal/pkg"
	"Idea_Portal/internal/repository/rdb"
)

// LocalIdentity 基于 credentials 表和 bcrypt 的本地身份服务
type LocalIdentity struct {
	creds *rdb.CredentialRepository
	cost  int
}

func NewLocalIdentity(creds *rdb.CredentialRepository, cost int) *LocalIdentity {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &LocalIdentity{creds: creds, cost: cost}
}

func (i *LocalIdentity) Authenticate(ctx context.Context, email, password string) (string, error) {
	c, err := i.creds.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, pkg.ErrNotFound) {
			return "", pkg.ErrUnauthorized
		}
		return "", err
	}
	if bcrypt.CompareHashAndPassword([]byte(c.PasswordHash), []byte(password)) != nil {
		return "", pkg.ErrUnauthorized
	}
	return c.UserID, nil
}

// CreateAccount 生成用户 ID 并与档案一起落库
func (i *LocalIdentity) CreateAccount(ctx context.Context, email, password string, profile *model.User) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), i.cost)
	if err != nil {
		return errors.Wrap(err, "hash password")
	}
	profile.ID = pkg.NewID()
	c := &model.Credential{
		UserID:       profile.ID,
		Email:        email,
		PasswordHash: string(hash),
	}
	return i.creds.CreateWithProfile(ctx, c, profile)
}

func (i *LocalIdentity) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	c, err := i.creds.FindByUserID(ctx, userID)
	if err != nil {
		return err
	}
	if bcrypt.CompareHashAndPassword([]byte(c.PasswordHash), []byte(oldPassword)) != nil {
		return pkg.Invalid("oldPassword", "old password is incorrect")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), i.cost)
	if err != nil {
		return errors.Wrap(err, "hash password")
	}
	return i.creds.UpdatePassword(ctx, userID, string(hash))
}
