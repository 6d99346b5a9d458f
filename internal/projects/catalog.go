// Package projects keeps the client-side list of projects and their
// stored chat histories.
package projects

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/strrl/castor/pkg/models"
)

// maxConcurrentListings bounds parallel history listings during Refresh
const maxConcurrentListings = 4

// Source lists and edits projects and histories
type Source interface {
	ListProjects(ctx context.Context) ([]string, error)
	ListHistories(ctx context.Context, project string) ([]string, error)
	CreateProject(ctx context.Context, project string) error
	DeleteProject(ctx context.Context, project string) error
	DeleteHistory(ctx context.Context, project, phase, sessionID string) error
}

// Catalog caches the project list of a Source
type Catalog struct {
	source Source
	logger *zap.Logger

	mu       sync.RWMutex
	projects []models.Project
}

// NewCatalog creates an empty catalog over source
func NewCatalog(source Source, logger *zap.Logger) *Catalog {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Catalog{source: source, logger: logger}
}

// Projects returns the last loaded project list
func (c *Catalog) Projects() []models.Project {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]models.Project, len(c.projects))
	for i, p := range c.projects {
		p.Histories = append([]models.HistoryRef(nil), p.Histories...)
		out[i] = p
	}
	return out
}

// Find returns the project with the given name from the last load
func (c *Catalog) Find(name string) (models.Project, bool) {
	for _, p := range c.Projects() {
		if p.Name == name {
			return p, true
		}
	}
	return models.Project{}, false
}

// Refresh reloads every project together with its histories. On
// failure the previous list is kept.
func (c *Catalog) Refresh(ctx context.Context) ([]models.Project, error) {
	names, err := c.source.ListProjects(ctx)
	if err != nil {
		c.logger.Error("failed to fetch projects", zap.Error(err))
		return nil, fmt.Errorf("failed to fetch projects: %w", err)
	}

	projects := make([]models.Project, len(names))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentListings)
	for i, name := range names {
		g.Go(func() error {
			histories, err := c.Histories(gctx, name)
			if err != nil {
				return err
			}
			projects[i] = models.Project{Name: name, Histories: histories}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		c.logger.Error("failed to fetch histories", zap.Error(err))
		return nil, err
	}

	c.mu.Lock()
	c.projects = projects
	c.mu.Unlock()

	c.logger.Debug("project catalog refreshed", zap.Int("projects", len(projects)))
	return c.Projects(), nil
}

// Histories lists the parsed histories of one project. Filenames that
// do not follow the phase_session.json convention are skipped.
func (c *Catalog) Histories(ctx context.Context, project string) ([]models.HistoryRef, error) {
	files, err := c.source.ListHistories(ctx, project)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch histories for %q: %w", project, err)
	}

	refs := make([]models.HistoryRef, 0, len(files))
	for _, name := range files {
		ref, ok := ParseHistoryRef(project, name)
		if !ok {
			c.logger.Warn("skipping unrecognized history file",
				zap.String("project", project),
				zap.String("file", name))
			continue
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

// Create creates a project and reloads the catalog. Blank names are ignored.
func (c *Catalog) Create(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil
	}
	if err := c.source.CreateProject(ctx, name); err != nil {
		c.logger.Error("failed to create project", zap.String("project", name), zap.Error(err))
		return fmt.Errorf("failed to create project: %w", err)
	}
	_, err := c.Refresh(ctx)
	return err
}

// DeleteProject removes a project and reloads the catalog
func (c *Catalog) DeleteProject(ctx context.Context, name string) error {
	if err := c.source.DeleteProject(ctx, name); err != nil {
		c.logger.Error("failed to delete project", zap.String("project", name), zap.Error(err))
		return fmt.Errorf("failed to delete project: %w", err)
	}
	_, err := c.Refresh(ctx)
	return err
}

// DeleteHistory removes one history and reloads the catalog
func (c *Catalog) DeleteHistory(ctx context.Context, ref models.HistoryRef) error {
	if err := c.source.DeleteHistory(ctx, ref.Project, ref.Phase, ref.SessionID); err != nil {
		c.logger.Error("failed to delete history",
			zap.String("project", ref.Project),
			zap.String("file", ref.Filename),
			zap.Error(err))
		return fmt.Errorf("failed to delete history: %w", err)
	}
	_, err := c.Refresh(ctx)
	return err
}
