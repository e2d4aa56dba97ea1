package transfer

import (
	"bytes"
	"testing"
)

func TestPlanRangeSinglePartWithinOneChunk(t *testing.T) {
	// Requesting bytes [10, 19] of a 1MiB-part file: both cuts land in
	// part 0, so FirstPart == LastPart.
	plan := PlanRange(3*1024*1024, 10, 19, 1024*1024)
	if plan.FirstPart != plan.LastPart {
		t.Fatalf("expected a single part, got first=%d last=%d", plan.FirstPart, plan.LastPart)
	}
	if plan.FirstPartCut != 10 {
		t.Errorf("expected first cut 10, got %d", plan.FirstPartCut)
	}
	if plan.LastPartCut != 20 {
		t.Errorf("expected last cut 20, got %d", plan.LastPartCut)
	}
}

func TestPlanSliceSinglePartUsesBothCuts(t *testing.T) {
	plan := PlanRange(3*1024*1024, 10, 19, 1024*1024)
	data := make([]byte, 1024*1024)
	for i := range data {
		data[i] = byte(i)
	}

	got := plan.Slice(plan.FirstPart, data)
	if len(got) != 10 {
		t.Fatalf("expected 10 bytes (cut 10:20), got %d", len(got))
	}
	if got[0] != data[10] {
		t.Errorf("expected slice to start at offset 10 within the part")
	}
}

func TestPlanRangeSpansMultipleParts(t *testing.T) {
	partSize := int64(1024 * 1024)
	plan := PlanRange(3*partSize, partSize-5, partSize+5, partSize)
	if plan.FirstPart == plan.LastPart {
		t.Fatalf("expected the range to straddle two parts")
	}

	full := bytes.Repeat([]byte{0xAA}, int(partSize))

	firstChunk := plan.Slice(plan.FirstPart, full)
	if len(firstChunk) != 5 {
		t.Errorf("expected first chunk to keep the trailing 5 bytes, got %d", len(firstChunk))
	}

	lastChunk := plan.Slice(plan.LastPart, full)
	if len(lastChunk) != int(plan.LastPartCut) {
		t.Errorf("expected last chunk length %d, got %d", plan.LastPartCut, len(lastChunk))
	}

	middlePart := plan.FirstPart + 1
	if middlePart < plan.LastPart {
		middleChunk := plan.Slice(middlePart, full)
		if len(middleChunk) != len(full) {
			t.Errorf("expected an untrimmed middle chunk, got %d bytes", len(middleChunk))
		}
	}
}

func TestCeilDiv(t *testing.T) {
	cases := []struct{ a, b, want int64 }{
		{10, 5, 2},
		{11, 5, 3},
		{0, 5, 0},
		{1, 5, 1},
	}
	for _, tc := range cases {
		if got := ceilDiv(tc.a, tc.b); got != tc.want {
			t.Errorf("ceilDiv(%d, %d) = %d, want %d", tc.a, tc.b, got, tc.want)
		}
	}
}
