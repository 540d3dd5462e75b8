package feed

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// SubscriptionLoader reads <name>.yml subscription seed files from a directory.
type SubscriptionLoader struct {
	feedsDir string
	cache    map[string]*Subscription
	failures []error
	mu       sync.RWMutex
}

func NewSubscriptionLoader(feedsDir string) *SubscriptionLoader {
	return &SubscriptionLoader{
		feedsDir: feedsDir,
		cache:    make(map[string]*Subscription),
	}
}

// Run loads every seed file in the directory. A file that cannot be loaded
// is logged and recorded in Failures; only a directory-level problem is
// returned as an error.
func (sl *SubscriptionLoader) Run() error {
	sl.mu.Lock()
	sl.failures = nil
	sl.mu.Unlock()

	if _, err := os.Stat(sl.feedsDir); os.IsNotExist(err) {
		return nil
	}

	files, err := filepath.Glob(filepath.Join(sl.feedsDir, "*.yml"))
	if err != nil {
		return fmt.Errorf("failed to find YML files: %w", err)
	}

	for _, file := range files {
		name := strings.TrimSuffix(filepath.Base(file), ".yml")

		sub, err := sl.Load(name)
		if err != nil {
			slog.Warn("Failed to load subscription", "file", file, "error", err)
			sl.mu.Lock()
			sl.failures = append(sl.failures, fmt.Errorf("error loading %s: %w", file, err))
			sl.mu.Unlock()
			continue
		}

		slog.Debug("Subscription loaded", "name", name, "url", sub.URL, "enabled", sub.IsEnabled())
	}

	return nil
}

func (sl *SubscriptionLoader) Load(name string) (*Subscription, error) {
	file := filepath.Join(sl.feedsDir, name+".yml")

	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var sub Subscription
	if err := yaml.Unmarshal(data, &sub); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	sub.Name = name
	sub.URL = strings.TrimSpace(sub.URL)
	sub.Folder = strings.TrimSpace(sub.Folder)

	if err := validateSubscription(&sub); err != nil {
		return nil, fmt.Errorf("invalid subscription %s: %w", file, err)
	}

	sl.mu.Lock()
	defer sl.mu.Unlock()
	sl.cache[name] = &sub

	return &sub, nil
}

// Subscriptions returns the loaded subscriptions ordered by name.
func (sl *SubscriptionLoader) Subscriptions() []*Subscription {
	sl.mu.RLock()
	defer sl.mu.RUnlock()

	subs := make([]*Subscription, 0, len(sl.cache))
	for _, sub := range sl.cache {
		subs = append(subs, sub)
	}
	sort.Slice(subs, func(i, j int) bool { return subs[i].Name < subs[j].Name })

	return subs
}

// Failures returns the per-file load errors of the last Run, in file order.
func (sl *SubscriptionLoader) Failures() []error {
	sl.mu.RLock()
	defer sl.mu.RUnlock()
	return append([]error(nil), sl.failures...)
}

func (sl *SubscriptionLoader) Count() int {
	sl.mu.RLock()
	defer sl.mu.RUnlock()
	return len(sl.cache)
}

func validateSubscription(sub *Subscription) error {
	if sub.URL == "" {
		return fmt.Errorf("feed URL is required")
	}

	u, err := url.Parse(sub.URL)
	if err != nil {
		return fmt.Errorf("invalid feed URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("feed URL must be http or https, got %q", u.Scheme)
	}

	return nil
}
