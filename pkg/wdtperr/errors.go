// Package wdtperr defines the error taxonomy shared by the project store,
// tree model, site generator and lifecycle manager.
//
// Callers wrap these sentinels with context using fmt.Errorf("...: %w") and
// test for them with errors.Is.
package wdtperr

import "errors"

var (
	// ErrAccessDenied reports a project path that does not exist or cannot be written.
	ErrAccessDenied = errors.New("access denied")

	// ErrNotAProject reports a file whose root tag is not the project marker.
	ErrNotAProject = errors.New("not a project file")

	// ErrInvalidPackage reports a packaged project that is empty or failed to extract.
	ErrInvalidPackage = errors.New("invalid packaged project")

	// ErrSaveFailed reports a failed project save. The previous file is untouched.
	ErrSaveFailed = errors.New("save failed")

	// ErrSourceMissing reports a document whose Markdown source is gone at generation time.
	ErrSourceMissing = errors.New("source missing")

	// ErrInvalidParent reports a node insertion under a leaf or with a colliding name.
	ErrInvalidParent = errors.New("invalid parent")

	// ErrAlreadyExists reports a project that exists and was not confirmed for overwrite.
	ErrAlreadyExists = errors.New("already exists")
)

// IsStructural reports whether err is a precondition violation that should be
// surfaced without retry, as opposed to an I/O failure.
func IsStructural(err error) bool {
	return errors.Is(err, ErrNotAProject) ||
		errors.Is(err, ErrInvalidPackage) ||
		errors.Is(err, ErrInvalidParent) ||
		errors.Is(err, ErrAlreadyExists)
}
