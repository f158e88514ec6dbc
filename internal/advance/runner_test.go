package advance

import "testing"

func TestEpochOutputRangeEmpty(t *testing.T) {
	first, last := epochOutputRange(nil)
	if first != 0 || last != 0 {
		t.Errorf("got (%d, %d), want (0, 0)", first, last)
	}
}

func TestEpochOutputRangeSpansMinToMax(t *testing.T) {
	outputs := []pendingOutput{
		{outputIndex: 3},
		{outputIndex: 1},
		{outputIndex: 7},
		{outputIndex: 2},
	}
	first, last := epochOutputRange(outputs)
	if first != 1 || last != 7 {
		t.Errorf("got (%d, %d), want (1, 7)", first, last)
	}
}
