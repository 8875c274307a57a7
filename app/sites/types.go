package sites

const (
	DefaultPostType = "posts"
	DefaultPerPage  = 100
	MaxPerPage      = 100
)

// Site is a named WordPress source.
type Site struct {
	Name     string // Derived from filename (without .yml extension)
	BaseURL  string `yaml:"base_url"`
	PostType string `yaml:"post_type"`
	PerPage  int    `yaml:"per_page"`
}
