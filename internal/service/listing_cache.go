package service

import (
	"strings"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/zeebo/xxh3"

	"Idea_Portal/internal/model"
	"Idea_Portal/internal/pkg"
)

// ListingCache 列表投影的只读缓存：按查询条件缓存排序后的结果，任何写操作后整体清空
type ListingCache struct {
	lru *expirable.LRU[uint64, listingEntry]
	gen atomic.Uint64
}

type listingEntry struct {
	gen   uint64
	ideas []model.Idea
}

func NewListingCache(size int, ttl time.Duration) *ListingCache {
	if size <= 0 {
		size = 512
	}
	return &ListingCache{lru: expirable.NewLRU[uint64, listingEntry](size, nil, ttl)}
}

func listingKey(parts ...string) uint64 {
	return xxh3.HashString(strings.Join(parts, "\x1f"))
}

// Generation 查询前取一次，写回时用于判断期间是否发生过写操作
func (c *ListingCache) Generation() uint64 {
	if c == nil {
		return 0
	}
	return c.gen.Load()
}

func (c *ListingCache) Get(key uint64) ([]model.Idea, bool) {
	if c == nil {
		return nil, false
	}
	e, ok := c.lru.Get(key)
	if !ok || e.gen != c.gen.Load() {
		pkg.ListingCacheTotal.WithLabelValues("miss").Inc()
		return nil, false
	}
	pkg.ListingCacheTotal.WithLabelValues("hit").Inc()
	return e.ideas, true
}

func (c *ListingCache) Put(key, gen uint64, ideas []model.Idea) {
	if c == nil || gen != c.gen.Load() {
		return
	}
	c.lru.Add(key, listingEntry{gen: gen, ideas: ideas})
}

func (c *ListingCache) Purge() {
	if c == nil {
		return
	}
	c.gen.Add(1)
	c.lru.Purge()
}
