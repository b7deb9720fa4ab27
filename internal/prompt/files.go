package prompt

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/hiveagent/hive/pkg/models"
)

// fileLayerCache walks dir recursively and caches the concatenated,
// template-substituted result, invalidating on any fsnotify event under
// dir. If the watcher itself fails to start, every render falls back to a
// fresh walk — slower, but correct.
type fileLayerCache struct {
	dir     string
	watcher *fsnotify.Watcher

	mu    sync.Mutex
	cache string
	valid bool
}

func newFileLayerCache(dir string) *fileLayerCache {
	c := &fileLayerCache{dir: dir}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		slog.Warn("prompt: fsnotify unavailable, re-walking prompt files on every render", "error", err)
		return c
	}
	if err := addRecursive(watcher, dir); err != nil {
		slog.Warn("prompt: failed to watch prompt directory", "dir", dir, "error", err)
		watcher.Close()
		return c
	}
	c.watcher = watcher
	go c.watch()
	return c
}

func addRecursive(watcher *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return watcher.Add(path)
		}
		return nil
	})
}

func (c *fileLayerCache) watch() {
	for {
		select {
		case event, ok := <-c.watcher.Events:
			if !ok {
				return
			}
			c.invalidate()
			if event.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					_ = c.watcher.Add(event.Name)
				}
			}
		case _, ok := <-c.watcher.Errors:
			if !ok {
				return
			}
		}
	}
}

func (c *fileLayerCache) invalidate() {
	c.mu.Lock()
	c.valid = false
	c.mu.Unlock()
}

// Close releases the underlying watcher, if any.
func (c *fileLayerCache) Close() error {
	if c.watcher == nil {
		return nil
	}
	return c.watcher.Close()
}

func (c *fileLayerCache) render(agent models.Agent) (string, error) {
	c.mu.Lock()
	if c.valid && c.watcher != nil {
		cached := c.cache
		c.mu.Unlock()
		return cached, nil
	}
	c.mu.Unlock()

	text, err := walkPromptFiles(c.dir, agent)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	c.cache = text
	c.valid = true
	c.mu.Unlock()
	return text, nil
}

func walkPromptFiles(dir string, agent models.Agent) (string, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if !d.IsDir() {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	if len(paths) == 0 {
		return "", nil
	}
	sort.Strings(paths)

	var sections []string
	for _, p := range paths {
		rel, _ := filepath.Rel(dir, p)
		content, err := os.ReadFile(p)
		if err != nil {
			return "", fmt.Errorf("prompt: reading %s: %w", p, err)
		}
		text := strings.TrimRight(string(content), "\n")
		if text == "" {
			sections = append(sections, fmt.Sprintf("[%s]\n(empty file)", rel))
			continue
		}
		text = substitute(text, agent)
		sections = append(sections, fmt.Sprintf("[%s]\n%s", rel, text))
	}
	return strings.Join(sections, "\n\n"), nil
}

func substitute(text string, agent models.Agent) string {
	text = strings.ReplaceAll(text, "{name}", agent.Name)
	text = strings.ReplaceAll(text, "{agent_name}", agent.AgentName)
	return text
}
