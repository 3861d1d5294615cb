package services

import (
	"context"
	"strconv"
	"strings"
	"sync"

	"github.com/ledgerkraft/bookkeeping/internal/model"
	"github.com/ledgerkraft/bookkeeping/pkg/logger"
)

type CategoryRepository interface {
	ListByLevel(ctx context.Context, level int) ([]*model.Category, error)
	NoCategoryID(ctx context.Context) (*int64, error)
}

// CategoryIndex resolves category tokens against the two-level taxonomy.
type CategoryIndex struct {
	byName map[string]int64
	byID   map[int64]*model.Category
}

func categoryKey(parts ...string) string {
	for i, p := range parts {
		parts[i] = strings.ToLower(strings.TrimSpace(p))
	}
	return strings.Join(parts, ":")
}

// LoadCategoryIndex reads the level 1 and level 2 categories.
func LoadCategoryIndex(ctx context.Context, repo CategoryRepository) (*CategoryIndex, error) {
	parents, err := repo.ListByLevel(ctx, model.CategoryLevelParent)
	if err != nil {
		return nil, err
	}
	children, err := repo.ListByLevel(ctx, model.CategoryLevelChild)
	if err != nil {
		return nil, err
	}
	return NewCategoryIndex(parents, children), nil
}

func NewCategoryIndex(parents, children []*model.Category) *CategoryIndex {
	ix := &CategoryIndex{
		byName: make(map[string]int64, len(parents)+len(children)),
		byID:   make(map[int64]*model.Category, len(parents)+len(children)),
	}
	for _, p := range parents {
		ix.byID[p.ID] = p
		ix.byName[categoryKey(p.Name)] = p.ID
	}
	for _, c := range children {
		if c.ParentID == nil {
			logger.Warn("child category without parent skipped", "category_id", c.ID, "name", c.Name)
			continue
		}
		parent, ok := ix.byID[*c.ParentID]
		if !ok {
			logger.Warn("child category with unknown parent skipped", "category_id", c.ID, "parent_id", *c.ParentID)
			continue
		}
		ix.byID[c.ID] = c
		ix.byName[categoryKey(parent.Name, c.Name)] = c.ID
	}
	return ix
}

// Resolve maps a caller token to a category id and never fails: numeric ids
// that round-trip exactly are used as ids (0 means unspecified), other tokens
// are looked up as "parent:child" or "parent" names, and anything unresolved
// or unknown falls back to sentinel.
func (ix *CategoryIndex) Resolve(token *string, sentinel *int64) *int64 {
	var id *int64
	if token != nil {
		t := strings.TrimSpace(*token)
		if n, err := strconv.ParseInt(t, 10, 64); err == nil && strconv.FormatInt(n, 10) == t {
			if n != 0 {
				id = &n
			}
		} else if t != "" {
			if v, ok := ix.byName[categoryKey(strings.SplitN(t, ":", 2)...)]; ok {
				id = &v
			} else {
				logger.Debug("unknown category name", "token", t)
			}
		}
	}

	if id == nil {
		return copyID(sentinel)
	}
	if _, ok := ix.byID[*id]; !ok {
		logger.Warn("category does not exist, using no-category sentinel", "category_id", *id)
		return copyID(sentinel)
	}
	return id
}

func copyID(id *int64) *int64 {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}

// NoCategoryCache holds the "no category" sentinel id for the process
// lifetime. It is filled on the first successful lookup that finds a row.
type NoCategoryCache struct {
	mu sync.Mutex
	id *int64
}

func NewNoCategoryCache() *NoCategoryCache {
	return &NoCategoryCache{}
}

func (c *NoCategoryCache) Get(ctx context.Context, load func(ctx context.Context) (*int64, error)) (*int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.id != nil {
		return copyID(c.id), nil
	}
	id, err := load(ctx)
	if err != nil {
		return nil, err
	}
	if id == nil {
		logger.Warn("no-category sentinel is not configured")
		return nil, nil
	}
	c.id = copyID(id)
	return copyID(id), nil
}
