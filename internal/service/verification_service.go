package service

import (
	"context"
	"log/slog"
	"net/mail"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"Idea_Portal/internal/model"
	"Idea_Portal/internal/pkg"
	"Idea_Portal/internal/repository/rdb"
)

const (
	VerificationTTL   = 24 * time.Hour
	verificationScope = "verify-email"
	nameMaxLen        = 64
)

type VerificationService struct {
	repo     *rdb.VerificationRepository
	cooldown Cooldown
	sender   pkg.Sender
	appURL   string
	ttl      time.Duration
	window   time.Duration
	log      *slog.Logger
	now      func() time.Time
}

func NewVerificationService(repo *rdb.VerificationRepository, cooldown Cooldown, sender pkg.Sender, appURL string, window time.Duration, log *slog.Logger) *VerificationService {
	if log == nil {
		log = slog.Default()
	}
	return &VerificationService{
		repo:     repo,
		cooldown: cooldown,
		sender:   sender,
		appURL:   strings.TrimRight(appURL, "/"),
		ttl:      VerificationTTL,
		window:   window,
		log:      log,
		now:      time.Now,
	}
}

type IssueInput struct {
	Email     string
	FirstName string
	LastName  string
}

// VerifiedIdentity 令牌兑换出的注册信息
type VerifiedIdentity struct {
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// Issue 生成令牌并发送验证邮件；邮件发送失败只记录，不影响返回
func (s *VerificationService) Issue(ctx context.Context, in IssueInput) error {
	ctx, span := tracer.Start(ctx, "Verification.Service.Issue")
	defer span.End()

	email, err := normalizeAddress(in.Email)
	if err != nil {
		return err
	}
	first, err := validateName("firstName", in.FirstName)
	if err != nil {
		return err
	}
	last, err := validateName("lastName", in.LastName)
	if err != nil {
		return err
	}

	if s.cooldown != nil && s.window > 0 {
		ok, err := s.cooldown.Try(ctx, verificationScope, email, s.window)
		if err != nil {
			s.log.WarnContext(ctx, "verification cooldown unavailable", "err", err)
		} else if !ok {
			return pkg.Invalid("email", "a verification email was sent recently, please retry later")
		}
	}

	now := s.now()
	v := &model.EmailVerification{
		Token:     pkg.NewToken(),
		Email:     email,
		FirstName: first,
		LastName:  last,
		ExpiresAt: now.Add(s.ttl),
		CreatedAt: now,
	}
	if err := s.repo.Create(ctx, v); err != nil {
		s.resetCooldown(ctx, email)
		return err
	}

	if s.sender == nil {
		return nil
	}
	link := s.appURL + "/verify-email?token=" + url.QueryEscape(v.Token)
	err = s.sender.Send(ctx, pkg.VerificationEmail(email, first, link, s.ttl))
	pkg.EmailTotal.WithLabelValues("verification", pkg.Result(err)).Inc()
	if err != nil {
		s.resetCooldown(ctx, email)
		s.log.ErrorContext(ctx, "verification email failed", "email", email, "err", err)
	}
	return nil
}

// Redeem 只读校验：不存在 -> 已使用 -> 已过期
func (s *VerificationService) Redeem(ctx context.Context, token string) (*VerifiedIdentity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, pkg.Invalid("token", "token is required")
	}
	v, err := s.repo.Find(ctx, token)
	if err != nil {
		return nil, err
	}
	if v.Used {
		return nil, pkg.ErrAlreadyUsed
	}
	if !s.now().Before(v.ExpiresAt) {
		return nil, pkg.ErrExpired
	}
	return &VerifiedIdentity{Email: v.Email, FirstName: v.FirstName, LastName: v.LastName}, nil
}

// Consume 条件更新，只有第一次调用成功
func (s *VerificationService) Consume(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return pkg.Invalid("token", "token is required")
	}
	if _, err := s.repo.Find(ctx, token); err != nil {
		return err
	}
	ok, err := s.repo.MarkUsed(ctx, token)
	if err != nil {
		return err
	}
	if !ok {
		return pkg.ErrAlreadyUsed
	}
	return nil
}

func (s *VerificationService) resetCooldown(ctx context.Context, email string) {
	if s.cooldown == nil {
		return
	}
	if err := s.cooldown.Reset(ctx, verificationScope, email); err != nil {
		s.log.WarnContext(ctx, "verification cooldown reset failed", "err", err)
	}
}

func normalizeAddress(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", pkg.Invalid("email", "email is required")
	}
	addr, err := mail.ParseAddress(raw)
	if err != nil || addr.Address != raw {
		return "", pkg.Invalid("email", "email is not a valid address")
	}
	return strings.ToLower(addr.Address), nil
}

func validateName(field, v string) (string, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return "", pkg.Invalid(field, field+" is required")
	}
	if utf8.RuneCountInString(v) > nameMaxLen {
		return "", pkg.Invalid(field, field+" is too long")
	}
	return v, nil
}
