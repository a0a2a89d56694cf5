// pkg/logproc/items.go - per-item history across recent sessions

package logproc

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/windowsadmins/winmaint/pkg/logging"
)

// recurringThreshold is how many sessions in a row an item must be changed
// before it is flagged as recurring.
const recurringThreshold = 3

// ItemRecord is the history of one module item across sessions.
type ItemRecord struct {
	Module        string `json:"module" yaml:"module"`
	Item          string `json:"item" yaml:"item"`
	LastStatus    string `json:"last_status" yaml:"last_status"`
	LastAction    string `json:"last_action" yaml:"last_action"`
	LastError     string `json:"last_error,omitempty" yaml:"last_error,omitempty"`
	LastSession   string `json:"last_session" yaml:"last_session"`
	Applied       int    `json:"applied" yaml:"applied"`
	Failures      int    `json:"failures" yaml:"failures"`
	Skips         int    `json:"skips" yaml:"skips"`
	TotalSessions int    `json:"total_sessions" yaml:"total_sessions"`
	// Recurring is set when the item was changed in each of the last few
	// sessions, meaning something keeps undoing the change.
	Recurring bool `json:"recurring" yaml:"recurring"`
}

type itemStat struct {
	record   ItemRecord
	sessions []string // sessions that touched the item, oldest first
	applied  map[string]bool
}

// ItemsTable builds item records from the newest maxSessions session
// directories under logsDir. maxSessions <= 0 means all of them. Directories
// without a session.json belong to runs that stopped before starting a
// session and are ignored.
func ItemsTable(logsDir string, maxSessions int) ([]ItemRecord, error) {
	all, err := logging.SessionDirs(logsDir)
	if err != nil {
		return nil, err
	}
	var dirs []string
	for _, dir := range all {
		if _, err := os.Stat(filepath.Join(logsDir, dir, logging.SessionFile)); err == nil {
			dirs = append(dirs, dir)
		}
	}
	if maxSessions > 0 && len(dirs) > maxSessions {
		dirs = dirs[len(dirs)-maxSessions:]
	}

	stats := make(map[string]*itemStat)
	for _, dir := range dirs {
		events, err := logging.ReadEvents(filepath.Join(logsDir, dir, logging.EventsFile))
		if err != nil {
			continue
		}
		for _, ev := range events {
			if ev.EventType != logging.EventItem || ev.Item == "" {
				continue
			}
			key := ev.Module + "\x00" + ev.Item
			st, ok := stats[key]
			if !ok {
				st = &itemStat{
					record:  ItemRecord{Module: ev.Module, Item: ev.Item},
					applied: make(map[string]bool),
				}
				stats[key] = st
			}
			if n := len(st.sessions); n == 0 || st.sessions[n-1] != dir {
				st.sessions = append(st.sessions, dir)
			}

			r := &st.record
			r.LastStatus = ev.Status
			r.LastAction = ev.Action
			r.LastSession = dir
			switch ev.Status {
			case logging.StatusCompleted:
				r.Applied++
				st.applied[dir] = true
			case logging.StatusFailed:
				r.Failures++
				r.LastError = ev.Error
			case logging.StatusSkipped:
				r.Skips++
			}
		}
	}

	out := make([]ItemRecord, 0, len(stats))
	for _, st := range stats {
		st.record.TotalSessions = len(st.sessions)
		st.record.Recurring = recurring(dirs, st.applied)
		out = append(out, st.record)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Module != out[j].Module {
			return out[i].Module < out[j].Module
		}
		return out[i].Item < out[j].Item
	})
	return out, nil
}

// recurring reports whether the item was applied in each of the last
// recurringThreshold sessions.
func recurring(dirs []string, applied map[string]bool) bool {
	if len(dirs) < recurringThreshold {
		return false
	}
	for _, dir := range dirs[len(dirs)-recurringThreshold:] {
		if !applied[dir] {
			return false
		}
	}
	return true
}
