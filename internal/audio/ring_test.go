package audio

import "testing"

func TestRing_PopFrameExactOrder(t *testing.T) {
	r := NewRing(1, 16000)
	in := make([]int16, 500)
	for i := range in {
		in[i] = int16(i)
	}
	r.Write(in)

	frame, ok := r.PopFrame(320)
	if !ok {
		t.Fatalf("expected a full frame")
	}
	for i := 0; i < 320; i++ {
		if frame[i] != int16(i) {
			t.Fatalf("sample %d: got %d want %d", i, frame[i], i)
		}
	}
	if r.Len() != 180 {
		t.Fatalf("expected 180 remaining, got %d", r.Len())
	}
	if _, ok := r.PopFrame(320); ok {
		t.Fatalf("expected short read to fail")
	}
}

func TestRing_OverflowDropsOldest(t *testing.T) {
	r := NewRing(1, 1000) // 1000-sample capacity
	first := make([]int16, 800)
	for i := range first {
		first[i] = 1
	}
	second := make([]int16, 400)
	for i := range second {
		second[i] = 2
	}
	r.Write(first)
	r.Write(second)
	if r.Len() != 1000 {
		t.Fatalf("expected capped length 1000, got %d", r.Len())
	}
	// oldest 200 samples of the first write must be gone
	frame, _ := r.PopFrame(600)
	if frame[0] != 1 {
		t.Fatalf("expected surviving tail of first write")
	}
	frame, _ = r.PopFrame(400)
	for _, v := range frame {
		if v != 2 {
			t.Fatalf("expected second write intact, got %d", v)
		}
	}
}

func TestResample_LengthRounding(t *testing.T) {
	cases := []struct {
		n, from, to, want int
	}{
		{160, 16000, 48000, 480},
		{480, 48000, 16000, 160},
		{100, 16000, 48000, 300},
		{101, 48000, 16000, 34}, // round(101/3)
		{320, 16000, 16000, 320},
	}
	for _, tc := range cases {
		in := make([]int16, tc.n)
		got := Resample(in, tc.from, tc.to)
		if len(got) != tc.want {
			t.Fatalf("resample %d %d->%d: got %d want %d", tc.n, tc.from, tc.to, len(got), tc.want)
		}
	}
}

func TestBytesRoundTrip(t *testing.T) {
	s := []int16{0, -1, 32767, -32768, 1234}
	got := BytesToInt16(Int16ToBytes(s))
	if len(got) != len(s) {
		t.Fatalf("length mismatch")
	}
	for i := range s {
		if got[i] != s[i] {
			t.Fatalf("sample %d: got %d want %d", i, got[i], s[i])
		}
	}
}

func TestMeanAbsAndRMS(t *testing.T) {
	if MeanAbs(nil) != 0 || RMS(nil) != 0 {
		t.Fatalf("expected 0 for empty frame")
	}
	frame := []int16{100, -100, 100, -100}
	if MeanAbs(frame) != 100 {
		t.Fatalf("mean abs: got %f", MeanAbs(frame))
	}
	if RMS(frame) != 100 {
		t.Fatalf("rms: got %f", RMS(frame))
	}
}
