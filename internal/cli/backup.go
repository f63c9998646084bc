package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/lazypower/palace/internal/export"
	"github.com/lazypower/palace/internal/store"
)

var (
	backupSrc string
	backupOut string
)

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Copy every palace file into a timestamped backup directory",
	Args:  cobra.NoArgs,
	RunE:  runBackup,
}

func init() {
	backupCmd.Flags().StringVar(&backupSrc, "src", "", "Palace directory (default from config)")
	backupCmd.Flags().StringVarP(&backupOut, "out", "o", "", "Backup root directory (default from config)")
}

func runBackup(cmd *cobra.Command, args []string) error {
	src := backupSrc
	if src == "" {
		src = cfg.Palaces.Dir
	}
	out := backupOut
	if out == "" {
		out = cfg.Palaces.BackupDir
	}

	res, err := export.Backup(src, out, time.Now())
	if err != nil {
		return err
	}
	fmt.Printf("Backed up %d palace files to %s\n", res.Files, res.Dir)

	if db, _, err := openDB(); err == nil {
		track(db, store.EventCommand, map[string]string{"command": "backup"})
		db.Close()
	}
	return nil
}
