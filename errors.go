package main

import (
	"errors"
	"strings"
)

// ErrorKind classifies a build failure. Every kind is fatal to the build.
type ErrorKind string

const (
	MalformedFrontMatter      ErrorKind = "MalformedFrontMatter"
	MalformedContent          ErrorKind = "MalformedContent"
	InvalidFilenameConvention ErrorKind = "InvalidFilenameConvention"
	UnknownLayout             ErrorKind = "UnknownLayout"
	DuplicateSlug             ErrorKind = "DuplicateSlug"
	InvalidConfig             ErrorKind = "InvalidConfig"
)

// Error makes a kind usable as an errors.Is target: errors.Is(err, UnknownLayout).
func (k ErrorKind) Error() string { return string(k) }

// BuildError is a classified failure tied to the source files that caused it.
type BuildError struct {
	Kind  ErrorKind
	Paths []string
	Err   error
}

func newBuildError(kind ErrorKind, err error, paths ...string) *BuildError {
	e := &BuildError{Kind: kind, Err: err}
	for _, p := range paths {
		if p != "" {
			e.Paths = append(e.Paths, p)
		}
	}
	return e
}

func (e *BuildError) Error() string {
	var b strings.Builder
	if len(e.Paths) > 0 {
		b.WriteString(strings.Join(e.Paths, ", "))
		b.WriteString(": ")
	}
	b.WriteString(string(e.Kind))
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *BuildError) Unwrap() error { return e.Err }

func (e *BuildError) Is(target error) bool {
	k, ok := target.(ErrorKind)
	return ok && k == e.Kind
}

// kindOf returns the kind of the first BuildError in err's chain.
func kindOf(err error) (ErrorKind, []string, bool) {
	var be *BuildError
	if errors.As(err, &be) {
		return be.Kind, be.Paths, true
	}
	return "", nil, false
}
