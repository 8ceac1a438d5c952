package cpuflags

import "testing"

func TestSelectedIsStable(t *testing.T) {
	a := Selected()
	b := Selected()
	if a != b {
		t.Fatalf("selected variant changed between calls: %v -> %v", a, b)
	}
}

func TestHashMatchesScalar(t *testing.T) {
	data := []byte("cpuflags dispatch test")
	got := Hash(data)
	want := implementationFor(VariantScalar)(data)
	if got != want {
		t.Fatal("dispatched hash disagrees with scalar implementation")
	}
}

func TestDetectReturnsKnownVariant(t *testing.T) {
	switch detect() {
	case VariantScalar, VariantSSE2, VariantAVX, VariantAVX2, VariantAVX512F, VariantNEON:
	default:
		t.Fatal("detect returned an unrecognized variant")
	}
}

func TestHashBatchMatchesHashPerLane(t *testing.T) {
	batchFn, lanes := batchImplementationFor(VariantSSE2)
	messages := make([][]byte, lanes)
	for i := range messages {
		msg := make([]byte, 96)
		for j := range msg {
			msg[j] = byte(i*17 + j)
		}
		messages[i] = msg
	}

	digests := batchFn(messages)
	if len(digests) != lanes {
		t.Fatalf("got %d digests, want %d", len(digests), lanes)
	}
	for i, msg := range messages {
		want := implementationFor(VariantScalar)(msg)
		if digests[i] != want {
			t.Fatalf("lane %d: HashBatch disagrees with scalar Hash", i)
		}
	}
}

func TestScalarBatchLaneWidthIsOne(t *testing.T) {
	_, lanes := batchImplementationFor(VariantScalar)
	if lanes != 1 {
		t.Fatalf("scalar lane width = %d, want 1", lanes)
	}
}
