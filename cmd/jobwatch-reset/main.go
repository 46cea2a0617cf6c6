// jobwatch-reset clears the scraped state of every board document in a
// pages directory: content, last_scraped and next_scrape_at are reset
// so the next scheduler pass starts from a clean slate. Board identity,
// policy and health settings are preserved.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"jobwatch/internal/model"
	"jobwatch/internal/store"
)

func main() {
	pagesDir := flag.String("pages-dir", "pages", "pages directory to reset")
	backup := flag.Bool("backup", false, "write a .bak sibling before rewriting each document")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{}))

	if _, err := os.ReadDir(*pagesDir); err != nil {
		fmt.Fprintf(os.Stderr, "cannot read pages directory %s: %v\n", *pagesDir, err)
		os.Exit(1)
	}

	st := store.New(store.Options{Dir: *pagesDir, Logger: logger})
	boards, err := st.ListBoards()
	if err != nil {
		fmt.Fprintf(os.Stderr, "cannot list boards: %v\n", err)
		os.Exit(1)
	}

	failed := 0
	for _, b := range boards {
		path := st.Path(b.Title)
		if *backup {
			if err := copyFile(path, path+".bak"); err != nil {
				logger.Error("backup failed", "path", path, "error", err)
				failed++
				continue
			}
		}

		b.Content = nil
		b.LastScraped = nil
		b.NextScrapeAt = nil
		if err := st.Save(b); err != nil {
			logger.Error("reset failed", "board", model.Slugify(b.Title), "error", err)
			failed++
			continue
		}
		logger.Info("reset board", "board", model.Slugify(b.Title))
	}

	if failed > 0 {
		fmt.Fprintf(os.Stderr, "failed to reset %d board(s)\n", failed)
		os.Exit(1)
	}
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0o644)
}
