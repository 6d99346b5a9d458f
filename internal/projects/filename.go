package projects

import (
	"strings"

	"github.com/strrl/castor/pkg/models"
)

const historyExt = ".json"

// ParseHistoryFilename splits "<phase>_<sessionID>.json" at the first
// underscore. Phases that themselves contain underscores are split there
// too: "1_Recon_Enumeration_abc.json" yields phase "1".
func ParseHistoryFilename(name string) (phase, sessionID string, ok bool) {
	if !strings.HasSuffix(name, historyExt) {
		return "", "", false
	}
	stem := strings.TrimSuffix(name, historyExt)

	phase, sessionID, found := strings.Cut(stem, "_")
	if !found || phase == "" || sessionID == "" {
		return "", "", false
	}
	return phase, sessionID, true
}

// HistoryFilename builds the stored filename for phase and sessionID
func HistoryFilename(phase, sessionID string) string {
	return phase + "_" + sessionID + historyExt
}

// ParseHistoryRef parses a filename into a reference within project
func ParseHistoryRef(project, name string) (models.HistoryRef, bool) {
	phase, sessionID, ok := ParseHistoryFilename(name)
	if !ok {
		return models.HistoryRef{}, false
	}
	return models.HistoryRef{
		Project:   project,
		Phase:     phase,
		SessionID: sessionID,
		Filename:  name,
	}, true
}

// ResolveHistory accepts a history filename, with or without the .json
// extension, and returns its phase and session ID
func ResolveHistory(arg string) (phase, sessionID string, ok bool) {
	if !strings.HasSuffix(arg, historyExt) {
		arg += historyExt
	}
	return ParseHistoryFilename(arg)
}
