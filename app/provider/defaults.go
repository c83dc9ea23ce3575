package provider

// DefaultConfigs is the provider set used when no configuration files exist.
func DefaultConfigs() []*Config {
	enabled := ConfigSettings{Enabled: true}

	withSettings := func(s ConfigSettings, apply func(*ConfigSettings)) ConfigSettings {
		apply(&s)
		return s
	}

	return []*Config{
		{
			Name:     "google-news",
			Kind:     KindRSS,
			Category: "news",
			Source:   "Google News",
			URL:      "https://news.google.com/rss?hl=en-US&gl=US&ceid=US:en",
			Settings: enabled,
		},
		{
			Name:     "bbc-news",
			Kind:     KindRSS,
			Category: "news",
			Source:   "BBC News",
			URL:      "https://feeds.bbci.co.uk/news/rss.xml",
			Settings: withSettings(enabled, func(s *ConfigSettings) { s.DescriptionLength = 150 }),
		},
		{
			Name:     "hackernews",
			Kind:     KindHackerNews,
			Category: "news",
			Source:   "Hacker News",
			Settings: enabled,
		},
		{
			Name:       "dadjokes",
			Kind:       KindReddit,
			Category:   "joke",
			Subreddits: []string{"dadjokes", "Jokes", "cleanjokes"},
			Settings:   enabled,
		},
		{
			Name:     "icanhazdadjoke",
			Kind:     KindDadJoke,
			Category: "joke",
			Settings: withSettings(enabled, func(s *ConfigSettings) { s.MaxItems = 5 }),
		},
		{
			Name:     "jokeapi",
			Kind:     KindJokeAPI,
			Category: "joke",
			Settings: enabled,
		},
		{
			Name:       "reddit-memes",
			Kind:       KindReddit,
			Category:   "meme",
			Subreddits: []string{"memes", "dankmemes", "me_irl", "wholesomememes", "ProgrammerHumor"},
			Settings: withSettings(enabled, func(s *ConfigSettings) {
				s.ImagesOnly = true
				s.InlineThumbnails = true
			}),
		},
		{
			Name:       "reddit-videos",
			Kind:       KindReddit,
			Category:   "video",
			Subreddits: []string{"videos", "Unexpected", "ContagiousLaughter", "AnimalsBeingDerps", "aww"},
			Settings: withSettings(enabled, func(s *ConfigSettings) {
				s.MaxItems = 5
				s.VideosOnly = true
				s.InlineThumbnails = true
			}),
		},
		{
			Name:       "gossip",
			Kind:       KindReddit,
			Category:   "gossip",
			Subreddits: []string{"entertainment", "popculturechat"},
			Settings:   withSettings(enabled, func(s *ConfigSettings) { s.MaxItems = 6 }),
		},
	}
}
