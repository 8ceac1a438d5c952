package build

import (
	"testing"
)

// TestCritical checks that a panic is called once DEBUG is enabled.
func TestCritical(t *testing.T) {
	TestingSetDebug(true)
	defer TestingSetDebug(false)

	k0 := "critical test killstring"
	killstring := "critical test killstring\n"
	defer func() {
		r := recover()
		if r != killstring {
			t.Error("panic did not work:", r, killstring)
		}
	}()
	Critical(k0)
}

// TestCriticalVariadic checks that a panic is called in debug mode with a
// variadic argument list.
func TestCriticalVariadic(t *testing.T) {
	TestingSetDebug(true)
	defer TestingSetDebug(false)

	k0 := "variadic"
	k1 := "critical"
	k2 := "test"
	k3 := "killstring"
	killstring := "variadic critical test killstring\n"
	defer func() {
		r := recover()
		if r != killstring {
			t.Error("panic did not work:", r, killstring)
		}
	}()
	Critical(k0, k1, k2, k3)
}

// TestCriticalNoPanic checks that Critical does not panic outside of debug
// mode.
func TestCriticalNoPanic(t *testing.T) {
	TestingSetDebug(false)
	Critical("this should not panic")
}
