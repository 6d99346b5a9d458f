package archive

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/strrl/castor/internal/projects"
)

// DebugInfo is the raw content of one stored history
type DebugInfo struct {
	Path       string
	Phase      string
	SessionID  string
	Rows       []MessageRow
	RoleCounts map[string]int
}

// DebugHistory dumps every stored row of a history file. name may omit
// the .json extension.
func (s *Store) DebugHistory(ctx context.Context, project, name string) (*DebugInfo, error) {
	phase, sessionID, ok := projects.ResolveHistory(name)
	if !ok {
		return nil, fmt.Errorf("%q is not a <phase>_<session>.json history name", name)
	}

	path := filepath.Join(s.dir, project, projects.HistoryFilename(phase, sessionID))
	rows, err := FetchMessagesAsync(ctx, s.db, s.logger, path)
	if err != nil {
		return nil, err
	}

	info := &DebugInfo{
		Path:       path,
		Phase:      phase,
		SessionID:  sessionID,
		Rows:       rows,
		RoleCounts: make(map[string]int),
	}
	for _, r := range rows {
		info.RoleCounts[r.Role]++
	}
	return info, nil
}
