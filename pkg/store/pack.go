package store

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"
	"github.com/spf13/afero"

	"github.com/grovetools/wdtp/pkg/tree"
	"github.com/grovetools/wdtp/pkg/wdtperr"
)

// IsPackage reports whether path names a packaged project.
func IsPackage(path string) bool {
	return strings.EqualFold(filepath.Ext(path), tree.PackageExt)
}

func stem(p string) string {
	base := filepath.Base(p)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Unpack extracts a packaged project into a sibling directory named after the
// archive stem and returns the path of the project file inside it,
// <dir>/<stem>.wdtp. Existing files in that directory are overwritten.
func Unpack(fs afero.Fs, archive string) (string, error) {
	data, err := afero.ReadFile(fs, archive)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", wdtperr.ErrAccessDenied, archive, err)
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", wdtperr.ErrInvalidPackage, archive, err)
	}
	if len(zr.File) == 0 {
		return "", fmt.Errorf("%w: %s has no entries", wdtperr.ErrInvalidPackage, archive)
	}

	name := stem(archive)
	dir := filepath.Join(filepath.Dir(archive), name)
	for _, f := range zr.File {
		rel, err := safeEntryPath(f.Name)
		if err != nil {
			return "", fmt.Errorf("%w: %s: %v", wdtperr.ErrInvalidPackage, archive, err)
		}
		target := filepath.Join(dir, filepath.FromSlash(rel))
		if f.FileInfo().IsDir() {
			if err := fs.MkdirAll(target, 0o755); err != nil {
				return "", fmt.Errorf("%w: %s: %v", wdtperr.ErrInvalidPackage, archive, err)
			}
			continue
		}
		if err := extract(fs, f, target); err != nil {
			return "", fmt.Errorf("%w: %s: extract %s: %v", wdtperr.ErrInvalidPackage, archive, f.Name, err)
		}
	}

	projectPath := filepath.Join(dir, name+tree.ProjectExt)
	if ok, _ := afero.Exists(fs, projectPath); !ok {
		return "", fmt.Errorf("%w: %s does not contain %s", wdtperr.ErrInvalidPackage, archive, name+tree.ProjectExt)
	}
	return projectPath, nil
}

// safeEntryPath rejects entries that would land outside the unpack directory.
func safeEntryPath(name string) (string, error) {
	name = strings.ReplaceAll(name, "\\", "/")
	if name == "" || strings.HasPrefix(name, "/") || filepath.IsAbs(name) {
		return "", fmt.Errorf("unsafe entry path %q", name)
	}
	clean := path.Clean(name)
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("unsafe entry path %q", name)
	}
	return clean, nil
}

func extract(fs afero.Fs, f *zip.File, target string) error {
	if err := fs.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	out, err := fs.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// Pack writes the project owning projectPath into archive. The project file,
// docs/, themes/ and site/ are included; the project file entry is named after
// the archive stem so that Unpack finds it.
func Pack(fs afero.Fs, projectPath, archive string) error {
	if err := CheckAccess(fs, projectPath); err != nil {
		return err
	}
	dir := filepath.Dir(projectPath)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	if err := addFile(fs, zw, projectPath, stem(archive)+tree.ProjectExt); err != nil {
		return fmt.Errorf("pack %s: %w", projectPath, err)
	}
	for _, sub := range []string{tree.DocsDir, tree.ThemesDir, tree.SiteDir} {
		root := filepath.Join(dir, sub)
		if ok, _ := afero.DirExists(fs, root); !ok {
			continue
		}
		err := afero.Walk(fs, root, func(p string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			rel, err := filepath.Rel(dir, p)
			if err != nil {
				return err
			}
			rel = filepath.ToSlash(rel)
			if info.IsDir() {
				_, err := zw.Create(rel + "/")
				return err
			}
			if strings.HasSuffix(p, workInProgressSuffix) {
				return nil
			}
			return addFile(fs, zw, p, rel)
		})
		if err != nil {
			return fmt.Errorf("pack %s: %w", projectPath, err)
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("pack %s: %w", projectPath, err)
	}
	if err := fs.MkdirAll(filepath.Dir(archive), 0o755); err != nil {
		return fmt.Errorf("pack %s: %w", projectPath, err)
	}
	return afero.WriteFile(fs, archive, buf.Bytes(), 0o644)
}

func addFile(fs afero.Fs, zw *zip.Writer, src, name string) error {
	data, err := afero.ReadFile(fs, src)
	if err != nil {
		return err
	}
	w, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Deflate})
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}
