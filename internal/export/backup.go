package export

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// BackupResult reports a completed backup.
type BackupResult struct {
	Dir       string `json:"dir"`
	Files     int    `json:"files"`
	Timestamp string `json:"timestamp"`
}

var stampReplacer = strings.NewReplacer(":", "-", ".", "-")

// BackupStamp formats now for use in a backup directory name.
func BackupStamp(now time.Time) string {
	return stampReplacer.Replace(now.UTC().Format("2006-01-02T15:04:05.000Z07:00"))
}

// Backup copies every palace file in srcDir into a new timestamped directory
// under outDir.
func Backup(srcDir, outDir string, now time.Time) (*BackupResult, error) {
	entries, err := os.ReadDir(srcDir)
	if err != nil {
		return nil, fmt.Errorf("read palace dir: %w", err)
	}

	stamp := BackupStamp(now)
	dir := filepath.Join(outDir, "backup-"+stamp)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create backup dir: %w", err)
	}

	res := &BackupResult{Dir: dir, Timestamp: stamp}
	for _, e := range entries {
		if !e.Type().IsRegular() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		if err := copyFile(filepath.Join(srcDir, e.Name()), filepath.Join(dir, e.Name())); err != nil {
			return res, err
		}
		res.Files++
	}
	return res, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copy %s: %w", src, err)
	}
	return out.Close()
}
