package build

// Release identifies which build configuration the binary was compiled
// with. It gates behavior the same way NebulousLabs/Sia's build.Release
// does: "standard" for production binaries, "dev" for developer builds
// with tighter internal limits, "testing" for the unit test binary.
var Release = "standard"

// DEBUG toggles panic-on-Critical behavior. Test binaries set this to true
// via TestingSetDebug so that invariant violations fail loudly instead of
// merely being logged.
var DEBUG = false

// TestingSetDebug flips the DEBUG flag, for use by test setup code only.
func TestingSetDebug(b bool) {
	DEBUG = b
}
