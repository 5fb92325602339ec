package driver

import (
	"context"
	"errors"
	"sort"

	"github.com/distribution/webhdfs/internal/dcontext"
)

// ErrSkipDir is used as a return value from a WalkFn to indicate that
// the directory named in the call is to be skipped. It is not returned
// as an error by any function.
var ErrSkipDir = errors.New("skip this directory")

// WalkFn is called once per file by Walk
type WalkFn func(fileInfo FileInfo) error

// Walk traverses the tree under from in lexical order, calling f on each
// entry. Entries are described by the listing of their parent, so no
// per-entry status request is made. If f returns ErrSkipDir for a
// directory, the directory is not entered and the traversal continues; for
// a file, the traversal stops without error.
func (d *Driver) Walk(ctx context.Context, from string, f WalkFn) error {
	children, err := d.list(ctx, from)
	if err != nil {
		return err
	}
	_, err = d.doWalk(ctx, children, f)
	return err
}

func (d *Driver) doWalk(ctx context.Context, children []FileInfo, f WalkFn) (bool, error) {
	sort.SliceStable(children, func(i, j int) bool {
		return children[i].Path < children[j].Path
	})

	for _, child := range children {
		err := f(child)
		switch {
		case err == nil && child.IsDir:
			grandChildren, err := d.list(ctx, child.Path)
			if err != nil {
				var notFound PathNotFoundError
				if errors.As(err, &notFound) {
					// removed in between listing and enumeration
					dcontext.GetLoggerWithField(ctx, "path", child.Path).Infof("ignoring deleted path")
					continue
				}
				return false, err
			}
			if ok, err := d.doWalk(ctx, grandChildren, f); err != nil || !ok {
				return ok, err
			}
		case errors.Is(err, ErrSkipDir):
			// noop for folders, will just skip
			if !child.IsDir {
				return false, nil // no error but stop iteration
			}
		case err != nil:
			return false, err
		}
	}
	return true, nil
}
