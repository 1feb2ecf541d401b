// Package discovery finds project folders that carry a showcase image.
package discovery

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// AssetsDir is the per-project folder that holds the showcase image.
const AssetsDir = "assets"

// Showcase file names, in resolution preference order.
var showcaseNames = []string{"Showcase.webp", "Showcase.png"}

// Project is a locally tracked folder whose name doubles as the remote
// repository name.
type Project struct {
	Name string
	Dir  string
}

// ShowcasePath resolves the showcase image at call time, preferring WebP
// over PNG when both exist. It returns "" when neither is present.
// Names are matched exactly, so case-insensitive filesystems do not widen
// the match. Symlinks count when they resolve to a regular file.
func (p Project) ShowcasePath() string {
	assets := filepath.Join(p.Dir, AssetsDir)
	entries, err := os.ReadDir(assets)
	if err != nil {
		return ""
	}
	present := make(map[string]bool, len(entries))
	for _, entry := range entries {
		present[entry.Name()] = true
	}
	for _, name := range showcaseNames {
		if !present[name] {
			continue
		}
		candidate := filepath.Join(assets, name)
		if info, err := os.Stat(candidate); err == nil && info.Mode().IsRegular() {
			return candidate
		}
	}
	return ""
}

// Discover lists top-level, non-hidden directories of root that contain
// assets/Showcase.png or assets/Showcase.webp. Order follows os.ReadDir.
func Discover(root string) ([]Project, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("read projects root %s: %w", root, err)
	}

	projects := make([]Project, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		project := Project{Name: entry.Name(), Dir: filepath.Join(root, entry.Name())}
		if project.ShowcasePath() == "" {
			continue
		}
		projects = append(projects, project)
	}
	return projects, nil
}

// Filter keeps only the named projects. An empty names list keeps all.
func Filter(projects []Project, names []string) []Project {
	if len(names) == 0 {
		return projects
	}
	wanted := make(map[string]struct{}, len(names))
	for _, name := range names {
		wanted[name] = struct{}{}
	}
	out := make([]Project, 0, len(names))
	for _, p := range projects {
		if _, ok := wanted[p.Name]; ok {
			out = append(out, p)
		}
	}
	return out
}
