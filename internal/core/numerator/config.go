// Package numerator implements the pure reference-number core: canonical formatting,
// parsing of stored identifiers, and lowest-gap allocation over a used-set.
//
// Nothing in this package performs I/O or holds state between calls.
package numerator

import (
	"fmt"
	"strings"
)

const (
	// DefaultFlatPrefix is the prefix of the flat shipment reference scheme (A0001, A0002, ...).
	DefaultFlatPrefix = "A"

	// DefaultFlatPadWidth is the minimum digit count of flat references.
	DefaultFlatPadWidth = 4

	// DefaultCompositePadWidth is the minimum digit count of the per-group counter.
	DefaultCompositePadWidth = 3
)

// Format describes the canonical textual rendering of one scheme:
// Prefix + Separator + zero-padded decimal integer.
//
// PadWidth is a minimum width. Integers with more digits are rendered in full.
type Format struct {
	Prefix    string
	Separator string
	PadWidth  int
}

// FlatFormat returns the format of the flat numeric scheme.
func FlatFormat() Format {
	return Format{
		Prefix:   DefaultFlatPrefix,
		PadWidth: DefaultFlatPadWidth,
	}
}

// CompositeFormat returns the format for one composite group.
func CompositeFormat(groupPrefix, separator string, padWidth int) Format {
	if padWidth <= 0 {
		padWidth = DefaultCompositePadWidth
	}
	return Format{
		Prefix:    strings.ToUpper(groupPrefix),
		Separator: separator,
		PadWidth:  padWidth,
	}
}

// Validate checks that the format can render and recognise identifiers.
func (f Format) Validate() error {
	if strings.TrimSpace(f.Prefix) == "" {
		return fmt.Errorf("prefix is required")
	}
	if f.PadWidth <= 0 {
		return fmt.Errorf("pad width must be positive, got %d", f.PadWidth)
	}
	return nil
}

// head is the fixed leading part shared by every identifier of the format.
func (f Format) head() string {
	return strings.ToUpper(f.Prefix + f.Separator)
}
