// Package sample provides the Sample domain types.
package sample

import (
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
)

// Errors
var (
	ErrEmptyName   = errors.New("sample name is empty")
	ErrInvalidName = errors.New("invalid sample name")
)

// Ref identifies a sample file: a directory plus the sample name inside it.
type Ref struct {
	Dir  string // Samples directory
	Name string // Sample name (file name, extension optional)
}

// Path returns the joined path of the sample.
func (r Ref) Path() string {
	return filepath.Join(r.Dir, r.Name)
}

// String returns the sample name.
func (r Ref) String() string {
	return r.Name
}

// Params holds the fixed playback parameters applied to every session.
type Params struct {
	Dir         string  // Samples directory
	Start       float64 // Start offset as a fraction of the sample (0..1)
	Finish      float64 // End offset as a fraction of the sample (0..1)
	Amp         float64 // Amplitude while playing
	Rate        float64 // Playback rate
	Attack      float64 // Attack in beats
	Release     float64 // Release in beats
	FadeBeats   float64 // Fade-out length on stop, in beats
	BeatStretch bool    // Stretch the sample to the quantized beat length
	Loop        bool    // Restart the voice when its natural duration elapses
	FreeOnStop  bool    // Release the decoded sample when the session ends
}

// Ref returns the reference of the named sample in the configured directory.
func (p Params) Ref(name string) Ref {
	return Ref{Dir: p.Dir, Name: name}
}

// Span returns the played fraction of the sample.
func (p Params) Span() float64 {
	return p.Finish - p.Start
}

// ValidateName checks that a name received from the network can be used as a
// sample key and safely joined to the samples directory.
func ValidateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return ErrEmptyName
	}
	if name == "." || name == ".." {
		return errors.Wrapf(ErrInvalidName, "%q", name)
	}
	if strings.ContainsAny(name, "/\\\x00") {
		return errors.Wrapf(ErrInvalidName, "%q", name)
	}
	return nil
}
