package testutil

import (
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/pmezard/go-difflib/difflib"
)

var spewConfig = spew.ConfigState{
	Indent:                  "  ",
	DisableMethods:          true,
	DisableCapacities:       true,
	DisablePointerAddresses: true,
	SortKeys:                true,
}

// AssertEqual compares two values by their full dumps and, on mismatch,
// fails the test with a unified diff.  For values with any depth to them
// this reads much better than testify's one-line mismatch output.
func AssertEqual(t *testing.T, exp, act interface{}) bool {
	t.Helper()
	expStr, actStr := spewConfig.Sdump(exp), spewConfig.Sdump(act)
	if expStr == actStr {
		return true
	}
	diff, _ := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(expStr),
		B:        difflib.SplitLines(actStr),
		FromFile: "Expected",
		ToFile:   "Actual",
		Context:  2,
	})
	t.Errorf("mismatch:\n%s", diff)
	return false
}

// AssertEqualText is AssertEqual for strings that are already printable,
// diffing them line-by-line as-is.
func AssertEqualText(t *testing.T, exp, act string) bool {
	t.Helper()
	if exp == act {
		return true
	}
	diff, _ := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(exp),
		B:        difflib.SplitLines(act),
		FromFile: "Expected",
		ToFile:   "Actual",
		Context:  1,
	})
	t.Errorf("mismatch:\n%s", diff)
	return false
}
