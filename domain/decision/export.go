package decision

import "time"

// AuditExport is the compliance export for a session.
type AuditExport struct {
	ExportedAt        time.Time           `json:"exported_at"`
	SessionID         string              `json:"session_id"`
	TotalDecisions    int                 `json:"total_decisions"`
	Decisions         []*Decision         `json:"decisions"`
	SupersessionChain map[string][]string `json:"supersession_chain"`
}

// BuildSupersessionChain maps each superseded ID to the IDs that supersede it,
// in the order the decisions are given.
func BuildSupersessionChain(decisions []*Decision) map[string][]string {
	chain := make(map[string][]string)
	for _, d := range decisions {
		if d.SupersedesID == "" {
			continue
		}
		chain[d.SupersedesID] = append(chain[d.SupersedesID], d.ID)
	}
	return chain
}
