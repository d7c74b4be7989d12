package source

import "github.com/nikhilbhutani/newsintel/internal/config"

// FromConfig registers every source the ingestion settings enable. The
// directory source, if any, is also returned so the caller can watch it.
func FromConfig(cfg config.IngestionConfig) (*Registry, *Dir) {
	var (
		list []Source
		dir  *Dir
	)
	if cfg.NewsAPIKey != "" {
		list = append(list, NewNewsAPI(cfg.NewsAPIKey, cfg.Category, cfg.BatchSize, WithCountry(cfg.Country)))
	}
	for _, feed := range cfg.RSSFeeds {
		list = append(list, NewRSS(feed, cfg.Category))
	}
	if cfg.WatchDir != "" {
		dir = NewDir(cfg.WatchDir, cfg.Category)
		list = append(list, dir)
	}
	return NewRegistry(list...), dir
}
