package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/inkleaf/inkleaf/internal/backup"
)

var backupDir string

var rotateCmd = &cobra.Command{
	Use:   "rotate <archive>",
	Short: "Rotate the archive through the daily/weekly/monthly backup tiers",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := backupDir
		if dir == "" {
			dir = cfg.BackupDir()
		}
		rotator, err := backup.NewRotator(dir)
		if err != nil {
			return err
		}
		if err := rotator.Rotate(args[0]); err != nil {
			return err
		}
		fmt.Printf("rotated %s -> %s\n", args[0], dir)
		return nil
	},
}

func init() {
	rotateCmd.Flags().StringVar(&backupDir, "backup-dir", "", "backup root (default: configured backup dir)")
}
