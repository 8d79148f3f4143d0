package pool

import (
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/knaw-huc/textsurf/apierrors"
)

// validateTraversal rejects an absolute id or one containing a ".."
// component
func validateTraversal(id string) error {
	if strings.HasPrefix(id, "/") {
		return apierrors.New(apierrors.KindNotFound, "no such text exists (no absolute paths allowed)")
	}
	for _, comp := range strings.Split(id, "/") {
		if comp == ".." {
			return apierrors.New(apierrors.KindNotFound, "no such text exists (no parent directories allowed)")
		}
	}
	return nil
}

// joinSandboxed joins name onto p.opts.BaseDir and verifies the result
// still lies under it, returning NotFound otherwise (e.g. a symlink or an
// id crafted to otherwise escape after cleaning).
func (p *Pool) joinSandboxed(name string) (string, error) {
	full := filepath.Join(p.opts.BaseDir, filepath.FromSlash(name))

	absBase, err := filepath.Abs(p.opts.BaseDir)
	if err != nil {
		return "", apierrors.Wrap(apierrors.KindInternal, "resolving base directory", err)
	}
	absFull, err := filepath.Abs(full)
	if err != nil {
		return "", apierrors.Wrap(apierrors.KindInternal, "resolving path", err)
	}
	if absFull != absBase && !strings.HasPrefix(absFull, absBase+string(filepath.Separator)) {
		return "", apierrors.New(apierrors.KindNotFound, "no such text exists")
	}
	return full, nil
}

// filenameFromID validates id (already translated from any "|" API2 form)
// and resolves it to an absolute path under p.opts.BaseDir, applying the
// extension.
func (p *Pool) filenameFromID(id string) (string, error) {
	if err := validateTraversal(id); err != nil {
		return "", err
	}

	name := id
	if p.opts.Extension != "" {
		if ext := path.Ext(name); ext != "."+p.opts.Extension {
			name = name + "." + p.opts.Extension
		}
	} else if path.Ext(name) == ".index" {
		return "", apierrors.New(apierrors.KindNotFound, "an index is not a valid text")
	}

	if strings.HasPrefix(path.Base(name), ".") {
		return "", apierrors.New(apierrors.KindNotFound, "no such file")
	}

	return p.joinSandboxed(name)
}

// DirPath applies filenameFromID's traversal and sandbox checks to id,
// without appending an extension and without rejecting a dot-prefixed
// basename, and reports whether it names an existing
// directory under BaseDir. Used by the HTTP layer so DELETE on a
// directory recursively deletes every text beneath it.
func (p *Pool) DirPath(id string) (path string, isDir bool, err error) {
	if err := validateTraversal(id); err != nil {
		return "", false, err
	}
	full, err := p.joinSandboxed(id)
	if err != nil {
		return "", false, err
	}
	info, statErr := os.Stat(full)
	return full, statErr == nil && info.IsDir(), nil
}

// indexPathFor derives the sidecar path for a resolved filename by
// replacing its extension with "index".
func indexPathFor(filename string) string {
	ext := filepath.Ext(filename)
	return strings.TrimSuffix(filename, ext) + ".index"
}

// TranslateAPI2ID converts the pipe-delimited ID form used by the api2
// surface into the ordinary slash-delimited form.
func TranslateAPI2ID(id string) string {
	return strings.ReplaceAll(id, "|", "/")
}
