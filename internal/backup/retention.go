package backup

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// List returns the backups in dir, newest first.
func List(dir string) ([]Info, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read backup directory: %w", err)
	}

	var backups []Info
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".db") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		backups = append(backups, Info{
			Path:      filepath.Join(dir, entry.Name()),
			Timestamp: info.ModTime(),
			Size:      info.Size(),
		})
	}

	sort.Slice(backups, func(i, j int) bool {
		return backups[i].Timestamp.After(backups[j].Timestamp)
	})
	return backups, nil
}

// expired picks the backups the policy drops as of now. backups must be
// sorted newest first.
func expired(backups []Info, policy RetentionPolicy, now time.Time) []string {
	tiers := []struct {
		maxAge time.Duration
		keep   int
	}{
		{24 * time.Hour, policy.Hourly},
		{7 * 24 * time.Hour, policy.Daily},
		{30 * 24 * time.Hour, policy.Weekly},
		{365 * 24 * time.Hour, policy.Monthly},
	}
	kept := make([]int, len(tiers))

	var drop []string
	for _, b := range backups {
		age := now.Sub(b.Timestamp)
		tier := -1
		for i, t := range tiers {
			if age < t.maxAge {
				tier = i
				break
			}
		}
		if tier < 0 || kept[tier] >= tiers[tier].keep {
			drop = append(drop, b.Path)
			continue
		}
		kept[tier]++
	}
	return drop
}

// Prune removes backups in dir that the policy no longer keeps and returns
// their paths. It keeps going past individual removal failures.
func Prune(dir string, policy RetentionPolicy, now time.Time) ([]string, error) {
	backups, err := List(dir)
	if err != nil {
		return nil, err
	}

	var errs []error
	var removed []string
	for _, path := range expired(backups, policy.withDefaults(), now) {
		if err := os.Remove(path); err != nil {
			errs = append(errs, err)
			continue
		}
		removed = append(removed, path)
	}
	if err := errors.Join(errs...); err != nil {
		return removed, fmt.Errorf("remove old backups: %w", err)
	}
	return removed, nil
}
