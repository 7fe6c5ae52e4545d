package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const markerExt = ".pid"

// claimTTL bounds how long a claim without a browser pid counts as live.
const claimTTL = 2 * time.Minute

// marker records a session on disk so that other processes and later runs
// can see it. A launch first claims the profile with a marker carrying only
// the launcher's pid in Owner, then fills in the browser PID once started.
type marker struct {
	PID       int       `json:"pid,omitempty"`
	Owner     int       `json:"owner,omitempty"`
	LaunchID  string    `json:"launch"`
	StartedAt time.Time `json:"started_at"`
}

func (l *Launcher) markerPath(id string) string {
	return filepath.Join(l.layout.RunDir, id+markerExt)
}

// writeMarkerTemp writes m to a temporary file in RunDir and returns its name.
func (l *Launcher) writeMarkerTemp(id string, m marker) (string, error) {
	if err := os.MkdirAll(l.layout.RunDir, 0700); err != nil {
		return "", err
	}
	data, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	tmp, err := os.CreateTemp(l.layout.RunDir, "."+id+"-*.tmp")
	if err != nil {
		return "", err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	return tmp.Name(), nil
}

// writeMarker replaces the marker of id atomically.
func (l *Launcher) writeMarker(id string, m marker) error {
	tmp, err := l.writeMarkerTemp(id, m)
	if err != nil {
		return err
	}
	if err := os.Rename(tmp, l.markerPath(id)); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

// claimMarker creates the marker of id only if none exists. Linking the
// finished file into place means readers never see a partial claim.
func (l *Launcher) claimMarker(id string, m marker) error {
	tmp, err := l.writeMarkerTemp(id, m)
	if err != nil {
		return err
	}
	defer os.Remove(tmp)

	if err := os.Link(tmp, l.markerPath(id)); err != nil {
		if errors.Is(err, os.ErrExist) {
			return fmt.Errorf("%w: profile claimed by another launch", ErrSessionRunning)
		}
		return err
	}
	return nil
}

// readMarker returns the marker of id, or false when there is none or it is
// unreadable.
func (l *Launcher) readMarker(id string) (marker, bool) {
	// #nosec G304 - id is a validated profile id
	data, err := os.ReadFile(l.markerPath(id))
	if err != nil {
		return marker{}, false
	}
	var m marker
	if err := json.Unmarshal(data, &m); err != nil {
		return marker{}, false
	}
	return m, true
}

func (l *Launcher) removeMarker(id string) {
	if err := os.Remove(l.markerPath(id)); err != nil && !errors.Is(err, os.ErrNotExist) {
		l.log.WithError(err).WithField("marker", l.markerPath(id)).Warn("Failed to remove session marker")
	}
}

// removeOwnMarker removes the marker of id if it still belongs to launchID.
func (l *Launcher) removeOwnMarker(id, launchID string) {
	if m, ok := l.readMarker(id); ok && m.LaunchID == launchID {
		l.removeMarker(id)
	}
}

// live reports whether m belongs to a session that may still be running: a
// browser that is alive, or a recent claim whose launcher is alive.
func (l *Launcher) live(m marker) bool {
	if m.PID > 0 {
		return l.alive(m.PID)
	}
	return m.Owner > 0 && l.alive(m.Owner) && l.now().Sub(m.StartedAt) < claimTTL
}

// markerLive reports whether id has a marker of a live session. It only
// looks at disk.
func (l *Launcher) markerLive(id string) bool {
	m, ok := l.readMarker(id)
	return ok && l.live(m)
}

// checkMarker fails when another live process owns a session of id and
// clears a stale marker otherwise.
func (l *Launcher) checkMarker(id string) error {
	m, ok := l.readMarker(id)
	if !ok {
		l.removeMarker(id)
		return nil
	}
	if l.live(m) {
		if m.PID > 0 {
			return fmt.Errorf("%w: browser pid %d", ErrSessionRunning, m.PID)
		}
		return fmt.Errorf("%w: launch in progress by pid %d", ErrSessionRunning, m.Owner)
	}
	l.log.WithFields(logrus.Fields{"pid": m.PID, "owner": m.Owner}).Debug("Removing stale session marker")
	l.removeMarker(id)
	return nil
}

// markedIDs lists profile ids that have a marker file.
func (l *Launcher) markedIDs() []string {
	entries, err := os.ReadDir(l.layout.RunDir)
	if err != nil {
		return nil
	}
	var ids []string
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") || !strings.HasSuffix(e.Name(), markerExt) {
			continue
		}
		ids = append(ids, strings.TrimSuffix(e.Name(), markerExt))
	}
	return ids
}
