package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
	goarchive "github.com/moby/go-archive"
	"github.com/spf13/cobra"
)

var (
	backupOutput   string
	backupDataDir  string
	restoreInput   string
	restoreDataDir string
	restoreForce   bool
)

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Archive the data directory to a .tar.zst file",
	Long: `Archive the data directory (the run database and the NATS store) into a
zstd-compressed tarball. Stop the hub and the agents first so that the
database is consistent.`,
	Args: cobra.NoArgs,
	RunE: runBackup,
}

var restoreCmd = &cobra.Command{
	Use:   "restore",
	Short: "Restore the data directory from a .tar.zst file",
	Args:  cobra.NoArgs,
	RunE:  runRestore,
}

func init() {
	backupCmd.Flags().StringVarP(&backupOutput, "file", "f", "", "output archive (required)")
	backupCmd.Flags().StringVar(&backupDataDir, "data", "", "data directory (default: the directory of store.path)")
	_ = backupCmd.MarkFlagRequired("file")

	restoreCmd.Flags().StringVarP(&restoreInput, "file", "f", "", "archive to restore (required)")
	restoreCmd.Flags().StringVar(&restoreDataDir, "data", "", "data directory (default: the directory of store.path)")
	restoreCmd.Flags().BoolVar(&restoreForce, "overwrite", false, "restore into a non-empty data directory")
	_ = restoreCmd.MarkFlagRequired("file")
}

func dataDir(flag string) (string, error) {
	if flag != "" {
		return flag, nil
	}
	cfg, err := loadConfig()
	if err != nil {
		return "", err
	}
	return filepath.Dir(cfg.Store.Path), nil
}

func runBackup(cmd *cobra.Command, args []string) error {
	dir, err := dataDir(backupDataDir)
	if err != nil {
		return err
	}
	size, err := backupDir(dir, backupOutput)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Backup complete: %s -> %s, %s\n", dir, backupOutput, formatSize(size))
	return nil
}

func runRestore(cmd *cobra.Command, args []string) error {
	dir, err := dataDir(restoreDataDir)
	if err != nil {
		return err
	}
	if err := restoreDir(restoreInput, dir, restoreForce); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Restore complete: %s -> %s\n", restoreInput, dir)
	return nil
}

// backupDir writes src as a zstd-compressed tarball to outputPath and
// returns the archive size.
func backupDir(src, outputPath string) (int64, error) {
	if _, err := os.Stat(src); err != nil {
		return 0, fmt.Errorf("data directory: %w", err)
	}

	tr, err := goarchive.TarWithOptions(src, &goarchive.TarOptions{})
	if err != nil {
		return 0, fmt.Errorf("archive %s: %w", src, err)
	}
	defer tr.Close()

	f, err := os.Create(outputPath)
	if err != nil {
		return 0, fmt.Errorf("create output file: %w", err)
	}
	defer f.Close()

	zw, err := zstd.NewWriter(f)
	if err != nil {
		return 0, fmt.Errorf("create zstd writer: %w", err)
	}
	defer zw.Close()

	if _, err := io.Copy(zw, tr); err != nil {
		return 0, fmt.Errorf("write archive: %w", err)
	}

	// Close explicitly to catch write errors.
	if err := zw.Close(); err != nil {
		return 0, fmt.Errorf("close zstd: %w", err)
	}
	if err := f.Close(); err != nil {
		return 0, fmt.Errorf("close file: %w", err)
	}

	info, err := os.Stat(outputPath)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// restoreDir unpacks an archive written by backupDir into dest. A non-empty
// dest is refused unless overwrite is set.
func restoreDir(inputPath, dest string, overwrite bool) error {
	if !overwrite {
		empty, err := isEmptyDir(dest)
		if err != nil {
			return err
		}
		if !empty {
			return fmt.Errorf("data directory %s is not empty, add --overwrite to replace files", dest)
		}
	}
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	f, err := os.Open(inputPath)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer f.Close()

	zr, err := zstd.NewReader(f)
	if err != nil {
		return fmt.Errorf("create zstd reader: %w", err)
	}
	defer zr.Close()

	if err := goarchive.Untar(zr, dest, &goarchive.TarOptions{NoLchown: true}); err != nil {
		return fmt.Errorf("extract archive: %w", err)
	}
	return nil
}

func isEmptyDir(dir string) (bool, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return len(entries) == 0, nil
}

func formatSize(bytes int64) string {
	const (
		kb = 1024
		mb = kb * 1024
		gb = mb * 1024
	)
	switch {
	case bytes >= gb:
		return fmt.Sprintf("%.1f GB", float64(bytes)/float64(gb))
	case bytes >= mb:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(mb))
	case bytes >= kb:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(kb))
	default:
		return fmt.Sprintf("%d bytes", bytes)
	}
}
