package svg

import (
	"strings"
	"testing"
)

func TestBarsProducesSVG(t *testing.T) {
	html, err := Bars(420, 220, []string{"LaserJet", "Epson L3210"}, []Series{
		{Label: "B/W", Values: []int64{900, 120}},
		{Label: "Color", Values: []int64{100, 300}},
	}, BarOpts{Title: "Top printers"})
	if err != nil {
		t.Fatalf("bars renderer error: %v", err)
	}
	output := string(html)
	if !strings.HasPrefix(output, "<svg") {
		t.Fatalf("expected svg output, got %s", output)
	}
	if strings.Count(output, "<rect") != 6 {
		t.Fatalf("expected four bars and two legend swatches, got %s", output)
	}
	if !strings.Contains(output, "top-printers-title") {
		t.Fatalf("expected derived title id")
	}
}

func TestBarsRejectsMismatchedSeries(t *testing.T) {
	if _, err := Bars(0, 0, []string{"a", "b"}, []Series{{Label: "x", Values: []int64{1}}}, BarOpts{}); err == nil {
		t.Fatalf("expected length mismatch error")
	}
	if _, err := Bars(0, 0, nil, []Series{{Label: "x"}}, BarOpts{}); err == nil {
		t.Fatalf("expected labels error")
	}
}

func TestBarsAllZero(t *testing.T) {
	html, err := Bars(0, 0, []string{"Laptop"}, []Series{{Label: "Assets", Values: []int64{0}}}, BarOpts{})
	if err != nil {
		t.Fatalf("bars renderer error: %v", err)
	}
	if strings.Contains(string(html), "NaN") {
		t.Fatalf("zero series must not divide by zero: %s", html)
	}
}
