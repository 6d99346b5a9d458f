// Package archive reads the backend's chat_sessions directory directly,
// without going through the REST API. The layout is
// <dir>/<project>/<phase>_<sessionID>.json, each file a JSON array of
// {role, parts:[{text}]} messages.
package archive

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/strrl/castor/internal/db"
	"github.com/strrl/castor/internal/projects"
	"github.com/strrl/castor/pkg/models"
)

// ErrReadOnly is returned by every mutating call
var ErrReadOnly = errors.New("history archive is read-only")

// Store reads a chat_sessions directory with DuckDB
type Store struct {
	dir    string
	db     *sql.DB
	logger *zap.Logger
}

// Open opens the archive rooted at dir
func Open(dir string, logger *zap.Logger) (*Store, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("archive path %q is not a directory", dir)
	}

	database, err := db.Archive()
	if err != nil {
		return nil, err
	}
	// Don't close the singleton connection

	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{dir: dir, db: database, logger: logger}, nil
}

// Dir returns the archive root
func (s *Store) Dir() string {
	return s.dir
}

// ListProjects returns the project directory names in lexical order
func (s *Store) ListProjects(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read archive: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

// ListHistories returns the history filenames of a project
func (s *Store) ListHistories(ctx context.Context, project string) ([]string, error) {
	paths, err := filepath.Glob(filepath.Join(s.dir, project, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("failed to list histories: %w", err)
	}

	names := make([]string, 0, len(paths))
	for _, p := range paths {
		names = append(names, filepath.Base(p))
	}
	sort.Strings(names)
	return names, nil
}

// Projects returns every project with its histories and the time of
// its most recently written history
func (s *Store) Projects(ctx context.Context) ([]models.Project, error) {
	names, err := s.ListProjects(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]models.Project, 0, len(names))
	for _, name := range names {
		histories, err := s.Histories(ctx, name)
		if err != nil {
			return nil, err
		}
		result = append(result, models.Project{
			Name:         name,
			Histories:    histories,
			LastActivity: s.lastActivity(name),
		})
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].LastActivity.After(result[j].LastActivity)
	})
	return result, nil
}

func (s *Store) lastActivity(project string) time.Time {
	var latest time.Time
	paths, _ := filepath.Glob(filepath.Join(s.dir, project, "*.json"))
	for _, p := range paths {
		if info, err := os.Stat(p); err == nil && info.ModTime().After(latest) {
			latest = info.ModTime()
		}
	}
	return latest.Local()
}

// Histories returns the parsed histories of a project with their
// message counts
func (s *Store) Histories(ctx context.Context, project string) ([]models.HistoryRef, error) {
	files, err := s.ListHistories(ctx, project)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, nil
	}

	counts, err := FetchMessageCountsAsync(ctx, s.db, s.logger, filepath.Join(s.dir, project, "*.json"))
	if err != nil {
		return nil, err
	}

	refs := make([]models.HistoryRef, 0, len(files))
	for _, name := range files {
		ref, ok := projects.ParseHistoryRef(project, name)
		if !ok {
			s.logger.Warn("skipping unrecognized history file",
				zap.String("project", project),
				zap.String("file", name))
			continue
		}
		ref.MessageCount = counts[name]
		refs = append(refs, ref)
	}
	return refs, nil
}

// LoadHistory reads one stored session in file order
func (s *Store) LoadHistory(ctx context.Context, project, phase, sessionID string) (*models.History, error) {
	path := filepath.Join(s.dir, project, projects.HistoryFilename(phase, sessionID))
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("history not found: %w", err)
	}

	rows, err := FetchMessagesAsync(ctx, s.db, s.logger, path)
	if err != nil {
		return nil, err
	}

	history := &models.History{
		Phase:    phase,
		Messages: make([]models.Message, 0, len(rows)),
	}
	for _, r := range rows {
		history.Messages = append(history.Messages, r.toModel())
	}
	return history, nil
}

// CreateProject is not supported by the archive
func (s *Store) CreateProject(ctx context.Context, project string) error {
	return ErrReadOnly
}

// DeleteProject is not supported by the archive
func (s *Store) DeleteProject(ctx context.Context, project string) error {
	return ErrReadOnly
}

// DeleteHistory is not supported by the archive
func (s *Store) DeleteHistory(ctx context.Context, project, phase, sessionID string) error {
	return ErrReadOnly
}
