// Package archive packs a retained debug Work-Dir into a single
// compressed file instead of leaving a loose directory tree behind,
// using github.com/klauspost/compress/zstd the way FouGuai-FUZOJ's
// cache package treats on-disk artifacts it wants to keep compactly.
package archive

import (
	"archive/tar"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
)

// Pack tar+zstd-compresses dir into "dir.tar.zst" alongside it and
// returns the archive's path. The source directory is left untouched;
// the caller (Work-Dir Scope) is responsible for removing it afterward.
func Pack(dir string) (string, error) {
	archivePath := dir + ".tar.zst"
	out, err := os.OpenFile(archivePath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return "", fmt.Errorf("create archive: %w", err)
	}
	defer out.Close()

	zw, err := zstd.NewWriter(out)
	if err != nil {
		return "", fmt.Errorf("create zstd writer: %w", err)
	}
	defer zw.Close()

	tw := tar.NewWriter(zw)
	defer tw.Close()

	walkErr := filepath.Walk(dir, func(path string, info os.FileInfo, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		header, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		header.Name = rel
		if err := tw.WriteHeader(header); err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(tw, f)
		return err
	})
	if walkErr != nil {
		return "", fmt.Errorf("walk workdir: %w", walkErr)
	}
	return archivePath, nil
}
