package shabal

import "testing"

func TestSumBatch256MatchesSum256PerLane(t *testing.T) {
	var messages [LaneWidth256][]byte
	for lane := range messages {
		msg := make([]byte, 96)
		for i := range msg {
			msg[i] = byte(lane*37 + i)
		}
		messages[lane] = msg
	}

	batch := SumBatch256(messages)
	for lane := range messages {
		want := Sum256(messages[lane])
		if batch[lane] != want {
			t.Fatalf("lane %d: SumBatch256 = %x, want %x", lane, batch[lane], want)
		}
	}
}

func TestSumBatch256PanicsOnMismatchedLengths(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on mismatched message lengths")
		}
	}()
	var messages [LaneWidth256][]byte
	messages[0] = make([]byte, 96)
	messages[1] = make([]byte, 64)
	messages[2] = make([]byte, 96)
	messages[3] = make([]byte, 96)
	SumBatch256(messages)
}
