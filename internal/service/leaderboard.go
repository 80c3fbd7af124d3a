package service

import (
	"sort"
	"sync"
	"time"
)

type LeaderboardEntry struct {
	UserID     int64
	Username   string
	FirstName  string
	Score      int
	Total      int
	Percentage int
	Date       string
}

type Player struct {
	UserID    int64
	Username  string
	FirstName string
}

type LeaderboardService interface {
	// AddEntry records a finished quiz and reports whether it is the
	// player's new best.
	AddEntry(player Player, result Result) bool
	GetTop(limit int) []LeaderboardEntry
	GetUserPosition(userID int64) (int, *LeaderboardEntry)
}

// MemoryLeaderboardService keeps the best result per player for the lifetime
// of the process.
type MemoryLeaderboardService struct {
	mu      sync.RWMutex
	entries []LeaderboardEntry
	now     func() time.Time
}

func NewMemoryLeaderboardService() *MemoryLeaderboardService {
	return &MemoryLeaderboardService{
		entries: make([]LeaderboardEntry, 0),
		now:     time.Now,
	}
}

func (ms *MemoryLeaderboardService) AddEntry(player Player, result Result) bool {
	if result.Total <= 0 {
		return false
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	newEntry := LeaderboardEntry{
		UserID:     player.UserID,
		Username:   player.Username,
		FirstName:  player.FirstName,
		Score:      result.Score,
		Total:      result.Total,
		Percentage: result.Percentage(),
		Date:       ms.now().Format("02.01.2006 15:04"),
	}

	for i, entry := range ms.entries {
		if entry.UserID == player.UserID {
			if better(newEntry, entry) {
				ms.entries[i] = newEntry
				return true
			}
			return false
		}
	}

	ms.entries = append(ms.entries, newEntry)
	return true
}

func better(a, b LeaderboardEntry) bool {
	if a.Percentage == b.Percentage {
		return a.Score > b.Score
	}
	return a.Percentage > b.Percentage
}

func (ms *MemoryLeaderboardService) GetTop(limit int) []LeaderboardEntry {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	return ms.sortedLocked(limit)
}

func (ms *MemoryLeaderboardService) sortedLocked(limit int) []LeaderboardEntry {
	sorted := make([]LeaderboardEntry, len(ms.entries))
	copy(sorted, ms.entries)

	sort.SliceStable(sorted, func(i, j int) bool {
		return better(sorted[i], sorted[j])
	})

	if limit < 0 || limit > len(sorted) {
		limit = len(sorted)
	}
	return sorted[:limit]
}

// GetUserPosition returns the 1-based rank of the player, or -1.
func (ms *MemoryLeaderboardService) GetUserPosition(userID int64) (int, *LeaderboardEntry) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	for i, entry := range ms.sortedLocked(-1) {
		if entry.UserID == userID {
			return i + 1, &entry
		}
	}
	return -1, nil
}
