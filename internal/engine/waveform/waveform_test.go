package waveform

import "testing"

func TestSummarizeEmptyYieldsNil(t *testing.T) {
	if out := Summarize(nil, 200); out != nil {
		t.Fatalf("expected nil for empty samples, got %v", out)
	}
}

func TestSummarizeReturnsExactBinCount(t *testing.T) {
	samples := make([]float32, 48000)
	for i := range samples {
		samples[i] = 0.5
	}
	out := Summarize(samples, 200)
	if len(out) != 200 {
		t.Fatalf("expected 200 bins, got %d", len(out))
	}
	for _, v := range out {
		if v != 0.5 {
			t.Fatalf("expected each bin to report 0.5, got %v", v)
		}
	}
}

func TestSummarizeCapturesPeak(t *testing.T) {
	samples := make([]float32, 1000)
	samples[500] = -0.9
	out := Summarize(samples, 10)
	if out[5] != float64(float32(0.9)) {
		t.Fatalf("expected bin 5 to capture peak 0.9, got %v", out[5])
	}
}

func TestSummarizeAbsorbsPartialFinalBin(t *testing.T) {
	samples := make([]float32, 205)
	for i := range samples {
		samples[i] = 0.1
	}
	samples[204] = 1.0
	out := Summarize(samples, 200)
	if len(out) != 200 {
		t.Fatalf("expected 200 bins even with remainder samples, got %d", len(out))
	}
	if out[199] != 1.0 {
		t.Fatalf("expected final bin to absorb trailing sample, got %v", out[199])
	}
}
