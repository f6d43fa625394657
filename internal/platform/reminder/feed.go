package reminder

import (
	"sort"
	"sync"
)

// Feed remembers which notifications each owner has already been sent or has
// dismissed, keyed by notification id.
type Feed struct {
	mu        sync.Mutex
	seen      map[string]map[string]Notification
	dismissed map[string]map[string]bool
}

func NewFeed() *Feed {
	return &Feed{
		seen:      make(map[string]map[string]Notification),
		dismissed: make(map[string]map[string]bool),
	}
}

// Record stores the current scan for owner and returns the notifications
// whose ids were not seen before. Ids absent from the scan are forgotten, so
// a reminder that lapses and comes back is delivered again.
func (f *Feed) Record(ownerID string, current []Notification) []Notification {
	f.mu.Lock()
	defer f.mu.Unlock()

	prev := f.seen[ownerID]
	next := make(map[string]Notification, len(current))
	var fresh []Notification
	for _, n := range current {
		n.OwnerID = ownerID
		if _, dup := next[n.ID]; dup {
			continue
		}
		if old, ok := prev[n.ID]; ok {
			n.CreatedAt = old.CreatedAt
		} else if !f.dismissed[ownerID][n.ID] {
			fresh = append(fresh, n)
		}
		next[n.ID] = n
	}
	f.seen[ownerID] = next
	return fresh
}

// Visible filters out what owner has dismissed and keeps first-seen times.
func (f *Feed) Visible(ownerID string, current []Notification) []Notification {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]Notification, 0, len(current))
	ids := make(map[string]bool, len(current))
	for _, n := range current {
		if ids[n.ID] || f.dismissed[ownerID][n.ID] {
			continue
		}
		ids[n.ID] = true
		n.OwnerID = ownerID
		if old, ok := f.seen[ownerID][n.ID]; ok {
			n.CreatedAt = old.CreatedAt
		}
		out = append(out, n)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (f *Feed) Dismiss(ownerID, id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.dismissed[ownerID] == nil {
		f.dismissed[ownerID] = make(map[string]bool)
	}
	f.dismissed[ownerID][id] = true
}
