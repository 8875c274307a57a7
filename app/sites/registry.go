package sites

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

type Registry struct {
	sitesDir string
	cache    map[string]*Site
	mu       sync.RWMutex
}

func NewRegistry(sitesDir string) *Registry {
	return &Registry{
		sitesDir: sitesDir,
		cache:    make(map[string]*Site),
	}
}

// Run loads every *.yml file of the directory. A missing or unset directory
// leaves the registry empty.
func (r *Registry) Run() error {
	if r.sitesDir == "" {
		return nil
	}
	if _, err := os.Stat(r.sitesDir); os.IsNotExist(err) {
		return nil
	}

	files, err := filepath.Glob(filepath.Join(r.sitesDir, "*.yml"))
	if err != nil {
		return fmt.Errorf("failed to find YML files: %w", err)
	}

	for _, file := range files {
		name := strings.TrimSuffix(filepath.Base(file), ".yml")

		site, err := r.LoadSite(name)
		if err != nil {
			return fmt.Errorf("error loading %s: %w", file, err)
		}

		slog.Debug("Site loaded", "site", name, "base_url", site.BaseURL, "post_type", site.PostType, "per_page", site.PerPage)
	}

	return nil
}

func (r *Registry) LoadSite(name string) (*Site, error) {
	file := filepath.Join(r.sitesDir, name+".yml")

	site, err := parseSite(file)
	if err != nil {
		return nil, err
	}
	site.Name = name

	if err := validateSite(site); err != nil {
		return nil, fmt.Errorf("invalid site %s: %w", file, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache[name] = site

	return site, nil
}

func (r *Registry) GetSite(name string) (*Site, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	site, ok := r.cache[name]
	if !ok {
		return nil, fmt.Errorf("unknown site '%s'", name)
	}
	return site, nil
}

// Names returns the loaded site names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.cache))
	for name := range r.cache {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.cache)
}

func parseSite(file string) (*Site, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var site Site
	if err := yaml.Unmarshal(data, &site); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if site.PostType == "" {
		site.PostType = DefaultPostType
	}
	if site.PerPage == 0 {
		site.PerPage = DefaultPerPage
	}

	return &site, nil
}

func validateSite(site *Site) error {
	if site.BaseURL == "" {
		return fmt.Errorf("base URL is required")
	}

	u, err := url.Parse(site.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("base URL must be an absolute http(s) URL: %s", site.BaseURL)
	}

	if site.PerPage < 1 || site.PerPage > MaxPerPage {
		return fmt.Errorf("per page must be between 1 and %d, got %d", MaxPerPage, site.PerPage)
	}

	return nil
}
