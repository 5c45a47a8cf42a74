package mealplanner

import (
	"io"

	"github.com/davecgh/go-spew/spew"
)

var dumpConfig = spew.ConfigState{Indent: "  ", SortKeys: true, DisablePointerAddresses: true}

// Fdump pretty-prints requests and plans for the -dump debugging flag.
func Fdump(w io.Writer, v ...any) {
	dumpConfig.Fdump(w, v...)
}

// Sdump is Fdump into a string.
func Sdump(v ...any) string {
	return dumpConfig.Sdump(v...)
}
