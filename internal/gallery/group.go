// Package gallery builds the prompt-grouped view of a user's generated media.
package gallery

import (
	"sort"
	"strings"

	"github.com/digkill/visionhub/internal/models"
)

// VideoPlaceholderCover is shown for groups that contain no image.
const VideoPlaceholderCover = "/static/video-placeholder.svg"

type Order string

const (
	Newest Order = "newest"
	Oldest Order = "oldest"
)

// ParseOrder falls back to Newest for anything unrecognised.
func ParseOrder(s string) Order {
	if strings.EqualFold(strings.TrimSpace(s), string(Oldest)) {
		return Oldest
	}
	return Newest
}

// Key returns the grouping key of an item: its prompt id, or the prompt
// text for items written before prompt ids existed.
func Key(item models.MediaItem) string {
	if item.PromptID != "" {
		return item.PromptID
	}
	return item.Prompt
}

// Group merges both collections into prompt groups. The result is unordered.
// Items inside a group are newest first.
func Group(images, videos []models.MediaItem) []models.PromptGroup {
	byKey := make(map[string]*models.PromptGroup)
	var keys []string

	add := func(item models.MediaItem) {
		key := Key(item)
		g, ok := byKey[key]
		if !ok {
			g = &models.PromptGroup{PromptID: key, Prompt: item.Prompt, CreatedAt: item.CreatedAt}
			byKey[key] = g
			keys = append(keys, key)
		}
		g.Items = append(g.Items, item)
		if item.CreatedAt.After(g.CreatedAt) {
			g.CreatedAt = item.CreatedAt
		}
	}
	for _, item := range images {
		add(item)
	}
	for _, item := range videos {
		add(item)
	}

	groups := make([]models.PromptGroup, 0, len(keys))
	for _, key := range keys {
		g := byKey[key]
		sort.SliceStable(g.Items, func(i, j int) bool {
			return g.Items[i].CreatedAt.After(g.Items[j].CreatedAt)
		})
		setCover(g)
		groups = append(groups, *g)
	}
	return groups
}

func setCover(g *models.PromptGroup) {
	// Items are newest first, so the first image is the most recent one.
	for _, item := range g.Items {
		if item.Kind == models.MediaImage {
			g.CoverImage = item.URL
			g.CoverType = models.MediaImage
			return
		}
	}
	g.CoverImage = VideoPlaceholderCover
	g.CoverType = models.MediaVideo
}

// Sort orders groups by createdAt, breaking ties by prompt id so the order is stable across recomputations.
func Sort(groups []models.PromptGroup, order Order) {
	sort.SliceStable(groups, func(i, j int) bool {
		a, b := groups[i], groups[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			if order == Oldest {
				return a.CreatedAt.Before(b.CreatedAt)
			}
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.PromptID < b.PromptID
	})
}

type Page struct {
	Groups     []models.PromptGroup `json:"groups"`
	Page       int                  `json:"page"`
	PageSize   int                  `json:"pageSize"`
	TotalPages int                  `json:"totalPages"`
	Total      int                  `json:"total"`
}

// Paginate slices already sorted groups into 1-based pages of size entries.
func Paginate(groups []models.PromptGroup, page, size int) Page {
	if size <= 0 {
		size = 12
	}
	if page < 1 {
		page = 1
	}
	total := len(groups)
	totalPages := (total + size - 1) / size
	p := Page{Page: page, PageSize: size, TotalPages: totalPages, Total: total, Groups: []models.PromptGroup{}}

	start := (page - 1) * size
	if start >= total {
		return p
	}
	end := start + size
	if end > total {
		end = total
	}
	p.Groups = groups[start:end]
	return p
}
