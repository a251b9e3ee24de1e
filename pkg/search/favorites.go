package search

import (
	"sort"

	"golang.org/x/text/language"

	"github.com/kittclouds/roleforge/internal/store"
)

// FavoriteSort orders the favorites listing.
type FavoriteSort string

const (
	FavRecent     FavoriteSort = "recent"
	FavOldest     FavoriteSort = "oldest"
	FavName       FavoriteSort = "name"
	FavMostActive FavoriteSort = "most_active"
)

// Favorites returns the favorite characters in the requested order.
// The returned pointers alias the snapshot.
func Favorites(snap *store.Snapshot, by FavoriteSort) []*store.Character {
	out := make([]*store.Character, 0)
	for _, c := range snap.Characters {
		if c.IsFavorite {
			out = append(out, c)
		}
	}

	switch by {
	case FavOldest:
		sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt < out[j].CreatedAt })
	case FavName:
		col := newCollator(language.Und)
		sort.SliceStable(out, func(i, j int) bool { return col.CompareString(out[i].Name, out[j].Name) < 0 })
	case FavMostActive:
		sort.SliceStable(out, func(i, j int) bool { return out[i].MessageCount() > out[j].MessageCount() })
	default:
		sort.SliceStable(out, func(i, j int) bool { return out[i].UpdatedAt > out[j].UpdatedAt })
	}
	return out
}
