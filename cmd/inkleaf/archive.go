package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/inkleaf/inkleaf/internal/archive"
	"github.com/inkleaf/inkleaf/internal/cryptostream"
	"github.com/inkleaf/inkleaf/internal/models"
)

var detectCmd = &cobra.Command{
	Use:   "detect <file>",
	Short: "Report which archive format a file carries",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := archive.DetectFormat(args[0])
		if err != nil {
			return err
		}
		switch format {
		case archive.FormatArchiveV2:
			fmt.Println("archive (v2)")
		case archive.FormatLegacyV1:
			fmt.Println("legacy (v1)")
		default:
			fmt.Println("new file")
		}
		return nil
	},
}

var migrateDst string

var migrateCmd = &cobra.Command{
	Use:   "migrate <legacy-file>",
	Short: "Convert a legacy flat file into the structured archive format",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requirePassword(); err != nil {
			return err
		}
		src := args[0]
		dst := migrateDst
		if dst == "" {
			dst = src
		}

		salt, err := archive.ReadSalt(src)
		if err != nil {
			return err
		}
		key := cryptostream.DeriveKey(password, salt)
		defer key.Wipe()

		notebooks, assets, err := archive.MigrateNotebooks(src, dst, key, salt, nil)
		if err != nil {
			return err
		}
		total := 0
		for _, ai := range assets {
			total += ai.Len()
		}
		fmt.Printf("migrated %d notebook(s), extracted %d asset(s) -> %s\n",
			len(notebooks), total, dst)
		return nil
	},
}

var (
	exportOut    string
	exportFormat string
)

var exportCmd = &cobra.Command{
	Use:   "export <archive>",
	Short: "Write an archive's first notebook as an unencrypted ZIP or tar.gz",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requirePassword(); err != nil {
			return err
		}
		salt, err := archive.ReadSalt(args[0])
		if err != nil {
			return err
		}
		key := cryptostream.DeriveKey(password, salt)
		defer key.Wipe()

		notebooks, assets, err := archive.LoadAll(args[0], key, nil)
		if err != nil {
			return err
		}
		nb := notebooks[0]
		if err := archive.ExportUnencrypted(nb, assets[nb.ID], exportOut, archive.ExportFormat(exportFormat)); err != nil {
			return err
		}
		fmt.Printf("exported notebook %s -> %s\n", nb.ID, exportOut)
		return nil
	},
}

var importArchive string

var importCmd = &cobra.Command{
	Use:   "import <export-file>",
	Short: "Import an unencrypted export into a new encrypted archive",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requirePassword(); err != nil {
			return err
		}
		nb, assets, err := archive.ImportUnencrypted(args[0])
		if err != nil {
			return err
		}

		salt, err := cryptostream.NewSalt()
		if err != nil {
			return err
		}
		key := cryptostream.DeriveKey(password, salt)
		defer key.Wipe()

		dst := importArchive
		if dst == "" {
			dst = cfg.ArchivePath()
		}
		assetsByNotebook := map[string]*models.AssetIndex{nb.ID: assets}
		if err := archive.SaveAll([]*models.Notebook{nb}, assetsByNotebook, dst, key, salt, nil, nil); err != nil {
			return err
		}
		fmt.Printf("imported %d page(s) -> %s\n", len(nb.Pages), dst)
		return nil
	},
}

func init() {
	migrateCmd.Flags().StringVar(&migrateDst, "dst", "", "destination path (default: overwrite source)")
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "notebook-export.zip", "output path")
	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", "zip", "export format: zip or tar")
	importCmd.Flags().StringVar(&importArchive, "archive", "", "destination archive (default: configured archive path)")
}
