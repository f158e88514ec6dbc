package dispatcher

import "testing"

func TestEpochPolicyShouldFinishBoundary(t *testing.T) {
	p := NewEpochPolicy(100, 1000)

	if p.ShouldFinish(1099) {
		t.Fatalf("expected epoch open just before the boundary")
	}
	if !p.ShouldFinish(1100) {
		t.Fatalf("expected epoch to close exactly at the boundary")
	}
	if !p.ShouldFinish(2000) {
		t.Fatalf("expected epoch to close well past the boundary")
	}
}

func TestEpochPolicyShouldFinishNeverGoesBackward(t *testing.T) {
	p := NewEpochPolicy(100, 1000)
	if p.ShouldFinish(999) {
		t.Fatalf("expected a timestamp before openTimestamp to never close the epoch")
	}
}

func TestEpochPolicyRotateAdvancesIndexAndOpensAtGivenTimestamp(t *testing.T) {
	p := NewEpochPolicy(100, 1000)
	if p.EpochIndex() != 0 {
		t.Fatalf("expected epoch 0 at genesis, got %d", p.EpochIndex())
	}

	p.Rotate(1100)
	if p.EpochIndex() != 1 {
		t.Fatalf("expected epoch 1 after rotate, got %d", p.EpochIndex())
	}
	if p.ShouldFinish(1100) {
		t.Fatalf("expected the freshly rotated epoch to stay open at its own open timestamp")
	}
	if !p.ShouldFinish(1200) {
		t.Fatalf("expected the freshly rotated epoch to close 100s after its new open timestamp")
	}
}

func TestEpochPolicyZeroDurationClosesImmediately(t *testing.T) {
	p := NewEpochPolicy(0, 1000)
	if !p.ShouldFinish(1000) {
		t.Fatalf("expected a zero-duration epoch to close on its own open timestamp")
	}
}
