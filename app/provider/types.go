package provider

// FetchedItem is one piece of content returned by a provider, before it is
// given an identity and stored.
type FetchedItem struct {
	Source        string
	Category      string
	Title         string
	URL           string
	ThumbnailURL  string
	ThumbnailData string // data URL with the inlined thumbnail
	Description   string
}

// Provider kinds understood by Build.
const (
	KindReddit     = "reddit"
	KindRSS        = "rss"
	KindDadJoke    = "dadjoke"
	KindHackerNews = "hackernews"
	KindJokeAPI    = "jokeapi"
)

// Configuration types

type Config struct {
	Name       string         // Derived from filename (without .yml extension)
	Kind       string         `yaml:"kind"`
	Category   string         `yaml:"category"`
	Source     string         `yaml:"source"` // display label, defaults to Name
	URL        string         `yaml:"url"`    // feed URL for rss, API base URL otherwise
	Subreddits []string       `yaml:"subreddits"`
	Topics     []string       `yaml:"topics"`
	Settings   ConfigSettings `yaml:"settings"`
	Filters    []ConfigFilter `yaml:"filters"`
}

type ConfigSettings struct {
	Enabled           bool `yaml:"enabled"`
	MaxItems          int  `yaml:"max_items"`
	Timeout           int  `yaml:"timeout"`            // seconds
	DescriptionLength int  `yaml:"description_length"` // characters kept after HTML stripping
	ExtractContent    bool `yaml:"extract_content"`    // fill missing descriptions from the article page
	InlineThumbnails  bool `yaml:"inline_thumbnails"`  // download thumbnails into data URLs
	ImagesOnly        bool `yaml:"images_only"`        // reddit: keep only image posts
	VideosOnly        bool `yaml:"videos_only"`        // reddit: keep only video posts
}

type ConfigFilter struct {
	Field    string   `yaml:"field"`
	Includes []string `yaml:"includes"`
	Excludes []string `yaml:"excludes"`
}

func (c *Config) SourceName() string {
	if c.Source != "" {
		return c.Source
	}
	return c.Name
}
