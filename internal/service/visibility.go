package service

import (
	"sort"
	"strings"
	"unicode/utf8"

	"Idea_Portal/internal/model"
	"Idea_Portal/internal/pkg"
)

const (
	TitleMinLen       = 1
	TitleMaxLen       = 100
	DescriptionMinLen = 10
	DescriptionMaxLen = 2000
	CommentMaxLen     = 2000

	DefaultPageSize = 20
	MaxPageSize     = 100

	dayMillis = int64(86_400_000)
)

type SortKey string

const (
	SortNewest   SortKey = "newest"
	SortOldest   SortKey = "oldest"
	SortPopular  SortKey = "popular"
	SortUpdated  SortKey = "updated"
	SortTrending SortKey = "trending"
)

// CanView 管理员可见全部；普通用户可见公开且未被拒绝的想法，以及自己提交的想法
func CanView(v Viewer, idea *model.Idea) bool {
	if idea == nil || v.Anonymous() {
		return false
	}
	if v.IsAdmin() {
		return true
	}
	if idea.AuthorID == v.UserID {
		return true
	}
	return idea.IsPublic && idea.Status != model.StatusWontImplement
}

func FilterVisible(v Viewer, ideas []model.Idea) []model.Idea {
	out := make([]model.Idea, 0, len(ideas))
	for i := range ideas {
		if CanView(v, &ideas[i]) {
			out = append(out, ideas[i])
		}
	}
	return out
}

func ParseSort(s string) (SortKey, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "newest", "recent":
		return SortNewest, nil
	case "oldest":
		return SortOldest, nil
	case "popular":
		return SortPopular, nil
	case "updated":
		return SortUpdated, nil
	case "trending":
		return SortTrending, nil
	}
	return "", pkg.Invalid("sort", "unknown sort key "+s)
}

// ParseStatusFilter 空值或 all 表示不过滤
func ParseStatusFilter(s string) (model.IdeaStatus, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "all" {
		return "", nil
	}
	status := model.IdeaStatus(s)
	if !status.Valid() {
		return "", pkg.Invalid("status", "unknown status "+s)
	}
	return status, nil
}

// TrendingScore 最近更新时间(毫秒) + 每票一天
func TrendingScore(idea *model.Idea) int64 {
	return idea.UpdatedAt.UnixMilli() + idea.VoteCount*dayMillis
}

// SortIdeas 原地稳定排序；主键相同时按创建时间倒序，再按 id
func SortIdeas(ideas []model.Idea, key SortKey) {
	primary := func(a, b *model.Idea) int {
		switch key {
		case SortOldest:
			return compareTime(b, a)
		case SortPopular:
			return compareInt(a.VoteCount, b.VoteCount)
		case SortUpdated:
			return compareInt(a.UpdatedAt.UnixNano(), b.UpdatedAt.UnixNano())
		case SortTrending:
			return compareInt(TrendingScore(a), TrendingScore(b))
		default:
			return compareTime(a, b)
		}
	}
	sort.SliceStable(ideas, func(i, j int) bool {
		a, b := &ideas[i], &ideas[j]
		if c := primary(a, b); c != 0 {
			return c > 0
		}
		if c := compareTime(a, b); c != 0 {
			return c > 0
		}
		return a.ID < b.ID
	})
}

func compareTime(a, b *model.Idea) int {
	return compareInt(a.CreatedAt.UnixNano(), b.CreatedAt.UnixNano())
}

func compareInt(a, b int64) int {
	switch {
	case a > b:
		return 1
	case a < b:
		return -1
	}
	return 0
}

// NormalizePage limit 默认 20，上限 100
func NormalizePage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func validateTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	n := utf8.RuneCountInString(title)
	if n < TitleMinLen {
		return "", pkg.Invalid("title", "title is required")
	}
	if n > TitleMaxLen {
		return "", pkg.Invalid("title", "title must be at most 100 characters")
	}
	return title, nil
}

func validateDescription(desc string) (string, error) {
	desc = strings.TrimSpace(desc)
	n := utf8.RuneCountInString(desc)
	if n < DescriptionMinLen {
		return "", pkg.Invalid("description", "description must be at least 10 characters")
	}
	if n > DescriptionMaxLen {
		return "", pkg.Invalid("description", "description must be at most 2000 characters")
	}
	return desc, nil
}

func validateComment(content string) (string, error) {
	content = strings.TrimSpace(content)
	n := utf8.RuneCountInString(content)
	if n == 0 {
		return "", pkg.Invalid("content", "comment must not be empty")
	}
	if n > CommentMaxLen {
		return "", pkg.Invalid("content", "comment must be at most 2000 characters")
	}
	return content, nil
}
