// Package rustuperr defines the tagged-variant error type shared across the
// toolchain manager core. Every error kind named in the specification's
// error handling design has a matching Kind constant here, built with New
// or Wrap (kinds that carry structured data also have dedicated
// constructors); callers build a context chain with WithContext as an error propagates up
// through layers, the way the teacher's runner/connector packages wrap
// causes with github.com/pkg/errors.
package rustuperr

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Kind is a closed set of semantic error categories, independent of the
// concrete Go type carrying them.
type Kind string

const (
	// User input
	KindInvalidToolchainName       Kind = "invalid-toolchain-name"
	KindInvalidCustomToolchainName Kind = "invalid-custom-toolchain-name"
	KindNoDefaultToolchain         Kind = "no-default-toolchain"
	KindUnknownComponent           Kind = "unknown-component"
	KindAddingRequiredComponent    Kind = "adding-required-component"
	KindRemovingRequiredComponent  Kind = "removing-required-component"

	// Network / protocol
	KindDownloadNotExists        Kind = "download-not-exists"
	KindDownloadTransient        Kind = "download-transient"
	KindChecksumFailed           Kind = "checksum-failed"
	KindManifestParseError       Kind = "manifest-parse-error"
	KindUnsupportedManifestVersn Kind = "unsupported-manifest-version"

	// Planning
	KindRequestedComponentsUnavailable Kind = "requested-components-unavailable"
	KindComponentsUnsupportedByToolch  Kind = "components-unsupported-by-toolchain"
	KindObsoleteDistManifest           Kind = "obsolete-dist-manifest"
	KindUnsupportedHost                Kind = "unsupported-host"

	// Install
	KindCorruptComponent              Kind = "corrupt-component"
	KindBadInstallerType               Kind = "bad-installer-type"
	KindUnsupportedInstaller          Kind = "unsupported-installer"
	KindToolNotFoundInToolchain       Kind = "tool-not-found-in-toolchain"
	KindComponentAvailableNotInstalld Kind = "component-available-but-not-installed"
	KindToolNotApplicable             Kind = "tool-not-applicable-to-this-toolchain"
	KindInfiniteProxyRecursion        Kind = "infinite-proxy-recursion"
	KindCannotSpawn                   Kind = "cannot-spawn"
	KindFileAlreadyScheduled          Kind = "file-already-scheduled"
	KindMissingPackage                Kind = "missing-package"
	KindBufferTooLarge                Kind = "buffer-too-large"

	// I/O and OS
	KindCannotRead         Kind = "cannot-read"
	KindCannotWrite        Kind = "cannot-write"
	KindCannotCreate       Kind = "cannot-create"
	KindCannotRemove       Kind = "cannot-remove"
	KindPermissionDenied   Kind = "permission-denied"
)

// Error is the concrete error type used throughout the core. It carries a
// Kind, a chain of human-readable context frames (innermost first as
// pushed, rendered outermost-first), and an optional wrapped cause.
type Error struct {
	Kind    Kind
	frames  []string
	cause   error
	// Fields holds kind-specific structured data (URL, expected/actual hash,
	// component list, ...) for programmatic inspection by callers/tests.
	Fields map[string]interface{}
}

// New creates a bare Error of the given kind with a top-level message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, frames: []string{message}, Fields: map[string]interface{}{}}
}

// Wrap creates an Error of the given kind wrapping an existing cause.
func Wrap(kind Kind, cause error, message string) *Error {
	return &Error{Kind: kind, frames: []string{message}, cause: cause, Fields: map[string]interface{}{}}
}

// WithContext pushes a new outer context frame onto the error, e.g.
// "while updating 'nightly-2024-01-02'". Returns the same *Error for
// chaining at each layer boundary.
func (e *Error) WithContext(frame string) *Error {
	e.frames = append(e.frames, frame)
	return e
}

// WithField attaches a structured field for programmatic inspection.
func (e *Error) WithField(key string, value interface{}) *Error {
	e.Fields[key] = value
	return e
}

// Error renders the frame chain outermost-first, then the wrapped cause.
func (e *Error) Error() string {
	parts := make([]string, 0, len(e.frames)+1)
	for i := len(e.frames) - 1; i >= 0; i-- {
		parts = append(parts, e.frames[i])
	}
	msg := strings.Join(parts, ": ")
	if e.cause != nil {
		msg = msg + ": " + e.cause.Error()
	}
	return msg
}

// Unwrap exposes the wrapped cause to errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.cause
}

// Is reports whether target is an *Error with the same Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// Convenience constructors for the kinds that carry fixed structured data.

func ChecksumFailed(url, expected, actual string) *Error {
	return New(KindChecksumFailed, fmt.Sprintf("checksum failed for %s", url)).
		WithField("url", url).WithField("expected", expected).WithField("actual", actual)
}

func DownloadNotExists(url string) *Error {
	return New(KindDownloadNotExists, fmt.Sprintf("could not download %s", url)).WithField("url", url)
}

func DownloadTransient(url string, cause error) *Error {
	return Wrap(KindDownloadTransient, cause, fmt.Sprintf("transient error downloading %s", url)).WithField("url", url)
}

func RequestedComponentsUnavailable(components []string) *Error {
	return New(KindRequestedComponentsUnavailable,
		fmt.Sprintf("components unavailable for download: %s", strings.Join(components, ", "))).
		WithField("components", components)
}

func ManifestParseError(offset int, detail string) *Error {
	return New(KindManifestParseError, fmt.Sprintf("malformed manifest at byte %d: %s", offset, detail)).
		WithField("offset", offset)
}

func ComponentAvailableButNotInstalled(tool, toolchain, hint string) *Error {
	return New(KindComponentAvailableNotInstalld,
		fmt.Sprintf("'%s' is not installed for the toolchain '%s'\nTo install, run `%s`", tool, toolchain, hint)).
		WithField("tool", tool).WithField("toolchain", toolchain).WithField("hint", hint)
}

func ToolNotApplicable(tool, toolchain string) *Error {
	return New(KindToolNotApplicable,
		fmt.Sprintf("'%s' is not installed for the toolchain '%s'", tool, toolchain)).
		WithField("tool", tool).WithField("toolchain", toolchain)
}

func CannotSpawn(tool string, cause error) *Error {
	return Wrap(KindCannotSpawn, cause, fmt.Sprintf("could not spawn %s", tool)).WithField("tool", tool)
}

// WrapOSError is used at process boundaries (filesystem syscalls, HTTP
// calls) to attach a Kind to a raw OS/stdlib error while preserving
// errors.Cause()/errors.Unwrap() compatibility, mirroring how the teacher's
// runner package leans on github.com/pkg/errors.Wrap at syscall boundaries.
func WrapOSError(kind Kind, path string, cause error) *Error {
	wrapped := errors.Wrapf(cause, "path %s", path)
	return Wrap(kind, wrapped, string(kind)).WithField("path", path)
}

// IsKind reports whether err is a *rustuperr.Error of the given kind,
// unwrapping through any chain in between.
func IsKind(err error, kind Kind) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			if e.Kind == kind {
				return true
			}
			err = e.cause
			continue
		}
		type causer interface{ Cause() error }
		if c, ok := err.(causer); ok {
			err = c.Cause()
			continue
		}
		break
	}
	return false
}
