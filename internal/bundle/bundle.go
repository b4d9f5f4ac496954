// Package bundle zips directory trees for artifact upload.
package bundle

import (
	"archive/zip"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Build writes a zip of root's contents to dst. Entry names are relative to
// root with forward slashes; directories themselves are not recorded, so an
// empty tree yields an empty archive. Dot-prefixed entries are skipped, which
// keeps scratch state out of the bundles.
func Build(dst, root string) error {
	absDst, err := filepath.Abs(dst)
	if err != nil {
		return fmt.Errorf("resolve archive path: %w", err)
	}

	out, err := os.Create(dst) // #nosec G304 -- staged inside the run's work dir
	if err != nil {
		return fmt.Errorf("create archive %s: %w", dst, err)
	}
	zw := zip.NewWriter(out)

	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if strings.HasPrefix(d.Name(), ".") && path != root {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		abs, err := filepath.Abs(path)
		if err != nil {
			return err
		}
		if abs == absDst {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		return addFile(zw, filepath.ToSlash(rel), path)
	})

	zipErr := zw.Close()
	closeErr := out.Close()
	if walkErr != nil {
		return fmt.Errorf("bundle %s: %w", root, walkErr)
	}
	if zipErr != nil {
		return fmt.Errorf("finish archive %s: %w", dst, zipErr)
	}
	if closeErr != nil {
		return fmt.Errorf("close archive %s: %w", dst, closeErr)
	}
	return nil
}

func addFile(zw *zip.Writer, name, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	hdr, err := zip.FileInfoHeader(info)
	if err != nil {
		return fmt.Errorf("archive header %s: %w", name, err)
	}
	hdr.Name = name
	hdr.Method = zip.Deflate

	w, err := zw.CreateHeader(hdr)
	if err != nil {
		return fmt.Errorf("archive entry %s: %w", name, err)
	}
	src, err := os.Open(path) // #nosec G304 -- path produced by the walk above
	if err != nil {
		return err
	}
	_, copyErr := io.Copy(w, src)
	closeErr := src.Close()
	if copyErr != nil {
		return fmt.Errorf("archive copy %s: %w", name, copyErr)
	}
	if closeErr != nil {
		return fmt.Errorf("archive close %s: %w", name, closeErr)
	}
	return nil
}
