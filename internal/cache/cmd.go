package cache

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/spf13/viper"
)

// InvalidateCacheCmd represents the cache invalidate subcommand
type InvalidateCacheCmd struct {
	Source string `arg:"" help:"Cache source to invalidate: openlibrary, openlibrary_search, openlibrary_work" required:""`
}

func (i *InvalidateCacheCmd) Run() error {
	sources, ok := Sources[i.Source]
	if !ok {
		return fmt.Errorf("invalid cache source '%s'; valid sources are: %s", i.Source, strings.Join(sourceNames(), ", "))
	}

	path := viper.GetString("cache.dbfile")
	slog.Info("Invalidating cache", "source", i.Source, "database", path)

	c, err := Open(path, viper.GetDuration("cache.ttl"))
	if err != nil {
		return err
	}
	defer func() { _ = c.Close() }()

	var total int64
	for _, source := range sources {
		n, err := c.Invalidate(context.Background(), source)
		if err != nil {
			return fmt.Errorf("failed to invalidate cache: %w", err)
		}
		total += n
	}

	slog.Info("Cache invalidated", "source", i.Source, "rows_deleted", total)
	return nil
}

func sourceNames() []string {
	names := make([]string, 0, len(Sources))
	for name := range Sources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
