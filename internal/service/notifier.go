package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"Idea_Portal/internal/model"
	"Idea_Portal/internal/pkg"
)

// Notifier 新想法提交通知；发送失败只记录日志，不影响主流程
type Notifier struct {
	sender     pkg.Sender
	notifyAddr string
	appURL     string
	timeout    time.Duration
	log        *slog.Logger
}

func NewNotifier(sender pkg.Sender, notifyAddr, appURL string, log *slog.Logger) *Notifier {
	if log == nil {
		log = slog.Default()
	}
	return &Notifier{
		sender:     sender,
		notifyAddr: notifyAddr,
		appURL:     strings.TrimRight(appURL, "/"),
		timeout:    10 * time.Second,
		log:        log,
	}
}

func (n *Notifier) IdeaSubmitted(ctx context.Context, idea *model.Idea) {
	if n == nil || n.sender == nil || n.notifyAddr == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), n.timeout)
	defer cancel()

	link := n.appURL + "/ideas/" + idea.ID
	msg := pkg.IdeaSubmittedEmail(n.notifyAddr, idea.Title, idea.AuthorName, link)
	err := n.sender.Send(ctx, msg)
	pkg.EmailTotal.WithLabelValues("idea_submitted", pkg.Result(err)).Inc()
	if err != nil {
		n.log.WarnContext(ctx, "idea notification failed", "idea_id", idea.ID, "err", err)
	}
}
