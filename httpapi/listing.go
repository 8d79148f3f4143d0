package httpapi

import (
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/knaw-huc/textsurf/apierrors"
)

// walkTexts enumerates every text ID under root. Any path component
// beginning with "." is excluded (the directory is skipped entirely),
// and only files matching ext are reported (or, when ext is empty, any
// regular file that isn't itself a ".index" sidecar).
func walkTexts(root, ext string) ([]string, error) {
	var ids []string
	suffix := ""
	if ext != "" {
		suffix = "." + ext
	}
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == root {
			return nil
		}
		name := d.Name()
		if strings.HasPrefix(name, ".") {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if suffix != "" {
			if !strings.HasSuffix(rel, suffix) {
				return nil
			}
			ids = append(ids, strings.TrimSuffix(rel, suffix))
		} else {
			if strings.HasSuffix(rel, ".index") {
				return nil
			}
			ids = append(ids, rel)
		}
		return nil
	})
	if err != nil {
		return nil, apierrors.Wrap(apierrors.KindInternal, "unable to read base directory", err)
	}
	return ids, nil
}
