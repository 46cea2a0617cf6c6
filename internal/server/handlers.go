package server

import (
	"errors"
	"io/fs"
	"path/filepath"
	"time"

	"github.com/gofiber/fiber/v2"

	"jobwatch/internal/model"
)

type boardSummary struct {
	Slug         string             `json:"slug"`
	Title        string             `json:"title"`
	WebsiteURL   string             `json:"website_url"`
	ActiveJobs   int                `json:"active_jobs"`
	TotalJobs    int                `json:"total_jobs"`
	Health       model.HealthStatus `json:"health"`
	LastScraped  *time.Time         `json:"last_scraped"`
	NextScrapeAt *time.Time         `json:"next_scrape_at"`
}

func summarize(b *model.JobBoard) boardSummary {
	return boardSummary{
		Slug:         model.Slugify(b.Title),
		Title:        b.Title,
		WebsiteURL:   b.WebsiteURL,
		ActiveJobs:   b.ActiveCount(),
		TotalJobs:    len(b.Content),
		Health:       b.ScrapeHealth.Status,
		LastScraped:  b.LastScraped,
		NextScrapeAt: b.NextScrapeAt,
	}
}

// loadBySlug resolves a path-safe slug to its document.
func (s *Server) loadBySlug(slug string) (*model.JobBoard, error) {
	if slug == "" || slug != model.Slugify(slug) {
		return nil, fs.ErrNotExist
	}
	return s.store.Load(filepath.Join(s.store.Dir(), slug+".json"))
}

func (s *Server) listBoardsHandler(c *fiber.Ctx) error {
	boards, err := s.store.ListBoards()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to list boards"})
	}
	summaries := make([]boardSummary, 0, len(boards))
	for _, b := range boards {
		summaries = append(summaries, summarize(b))
	}
	return c.JSON(fiber.Map{"boards": summaries})
}

func (s *Server) getBoardHandler(c *fiber.Ctx) error {
	b, err := s.loadBySlug(c.Params("slug"))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "board not found"})
	}
	return c.JSON(b)
}

type createBoardRequest struct {
	Title      string `json:"title"`
	IconURL    string `json:"icon_url"`
	WebsiteURL string `json:"website_url"`
}

func (s *Server) createBoardHandler(c *fiber.Ctx) error {
	var req createBoardRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON body"})
	}

	b := model.NewJobBoard(req.Title, req.IconURL, req.WebsiteURL)
	if !b.Validate() {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "title and website_url are required"})
	}

	if _, err := s.loadBySlug(model.Slugify(req.Title)); err == nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "board already exists"})
	}

	if err := s.store.Save(b); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to persist board"})
	}
	return c.Status(fiber.StatusCreated).JSON(summarize(b))
}

// rescrapeHandler clears the cadence markers so the next scheduler
// pass treats the board as due immediately. This is the only scrape
// state the API is allowed to touch.
func (s *Server) rescrapeHandler(c *fiber.Ctx) error {
	slug := c.Params("slug")
	b, err := s.loadBySlug(slug)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "board not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to load board"})
	}

	b.LastScraped = nil
	b.NextScrapeAt = nil
	if err := s.store.Save(b); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to persist board"})
	}

	if s.logger != nil {
		s.logger.Info("re-scrape requested", "board", slug)
	}
	return c.JSON(fiber.Map{"status": "scheduled", "slug": slug})
}
