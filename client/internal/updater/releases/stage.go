package releases

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	log "github.com/sirupsen/logrus"
)

const stagedMarkerFile = "staged.json"

// stagedUpdate is the marker the installer reads on the next restart. It is
// the on-disk mirror of the scheduler's pendingRestart flag.
type stagedUpdate struct {
	Version  string    `json:"version"`
	Path     string    `json:"path"`
	SHA256   string    `json:"sha256"`
	StagedAt time.Time `json:"stagedAt"`
}

func (s *Source) markerPath() string {
	return filepath.Join(s.stagingDir, stagedMarkerFile)
}

// writeMarker records the staged build. Written through a temporary file and
// renamed so the installer never reads a partial marker.
func (s *Source) writeMarker(staged stagedUpdate) error {
	data, err := json.Marshal(staged)
	if err != nil {
		return fmt.Errorf("marshal staged marker: %w", err)
	}

	marker := s.markerPath()
	tmp := marker + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write staged marker: %w", err)
	}

	if err := os.Rename(tmp, marker); err != nil {
		if rmErr := os.Remove(tmp); rmErr != nil {
			log.Warnf("failed to remove temp marker file: %v", rmErr)
		}
		return fmt.Errorf("move staged marker into place: %w", err)
	}

	return nil
}

func (s *Source) readMarker() (*stagedUpdate, error) {
	data, err := os.ReadFile(s.markerPath())
	if err != nil {
		return nil, err
	}

	var staged stagedUpdate
	if err := json.Unmarshal(data, &staged); err != nil {
		return nil, fmt.Errorf("invalid staged marker: %w", err)
	}

	return &staged, nil
}

// IsApplyPending reports whether a build staged by a previous run is still
// waiting on disk for a restart.
func (s *Source) IsApplyPending() bool {
	staged, err := s.readMarker()
	if err != nil {
		return false
	}
	if _, err := os.Stat(staged.Path); err != nil {
		log.Warnf("staged artifact %q is gone: %v", staged.Path, err)
		return false
	}
	return true
}

// ApplyStagedAndExit launches the staged installer. The caller is expected to
// terminate the process right after; the installer replaces the client and,
// when restart is set, relaunches it.
func (s *Source) ApplyStagedAndExit(restart bool) error {
	staged, err := s.readMarker()
	if err != nil {
		return fmt.Errorf("no staged update: %w", err)
	}

	args := []string{"--silent"}
	if restart {
		args = append(args, "--restart")
	}

	if err := s.startProcess(staged.Path, args...); err != nil {
		return fmt.Errorf("launch installer %q: %w", staged.Path, err)
	}

	log.Infof("installer for release %s launched, exiting to apply", staged.Version)
	return nil
}

func startDetached(name string, args ...string) error {
	cmd := exec.Command(name, args...)
	cmd.Stdout = nil
	cmd.Stderr = nil
	if err := cmd.Start(); err != nil {
		return err
	}
	// Detach so the installer survives the client's exit.
	return cmd.Process.Release()
}
