package catalog

import (
	"testing"
	"time"
)

func TestClassifyHTTPStatus(t *testing.T) {
	tests := []struct {
		status int
		want   FetchResult
	}{
		{200, FetchResultOK},
		{304, FetchResultNotModified},
		{401, FetchResultFatal},
		{403, FetchResultFatal},
		{404, FetchResultFatal},
		{410, FetchResultFatal},
		{429, FetchResultBackoff},
		{500, FetchResultBackoff},
		{503, FetchResultBackoff},
		{302, FetchResultUnknown},
		{418, FetchResultUnknown},
	}
	for _, tt := range tests {
		if got := ClassifyHTTPStatus(tt.status); got != tt.want {
			t.Errorf("ClassifyHTTPStatus(%d) = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestBackoffDelay(t *testing.T) {
	b := Backoff{Initial: time.Second, Max: 10 * time.Second}

	tests := []struct {
		errors int
		want   time.Duration
	}{
		{0, time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 10 * time.Second},
		{50, 10 * time.Second},
	}
	for _, tt := range tests {
		if got := b.Delay(tt.errors); got != tt.want {
			t.Errorf("Delay(%d) = %v, want %v", tt.errors, got, tt.want)
		}
	}
}

func TestFetchResultString(t *testing.T) {
	for r, want := range map[FetchResult]string{
		FetchResultOK:      "ok",
		FetchResultBackoff: "backoff",
		FetchResult(42):    "unknown",
	} {
		if got := r.String(); got != want {
			t.Errorf("FetchResult(%d).String() = %q, want %q", int(r), got, want)
		}
	}
}
