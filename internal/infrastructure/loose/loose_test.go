package loose

import (
	"io"
	"net/http"
	"strings"
	"testing"
)

func TestFirstStringUsesPriorityOrder(t *testing.T) {
	obj, err := Decode([]byte(`{"text":"  ","ocr_text":"","result":{"text":"from result"},"full_text":"later"}`))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if got := FirstString(obj, "text", "ocr_text", "result.text", "full_text"); got != "from result" {
		t.Fatalf("FirstString() = %q, want from result", got)
	}
}

func TestScalarStringifiesNumbers(t *testing.T) {
	obj, _ := Decode([]byte(`{"id":12345,"ok":true}`))
	if got := FirstString(obj, "job_id", "id"); got != "12345" {
		t.Fatalf("FirstString() = %q, want 12345", got)
	}
}

func TestStringsReadsFirstNonEmptyList(t *testing.T) {
	obj, _ := Decode([]byte(`{"payment_items":[],"payment":["Online", {"text":"By mail"}, 3, ""]}`))
	got := Strings(obj, "payment_items", "payment")
	if strings.Join(got, "|") != "Online|By mail|3" {
		t.Fatalf("Strings() = %v", got)
	}
}

func TestDecodeNonObject(t *testing.T) {
	obj, err := Decode([]byte(`["a"]`))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if FirstString(obj, "text") != "" {
		t.Fatalf("expected empty result for array payload")
	}
}

func TestReadHTTPErrorPriority(t *testing.T) {
	cases := []struct {
		body string
		want string
	}{
		{body: `{"detail":"bad file","message":"ignored"}`, want: "bad file"},
		{body: `{"message":"quota exceeded"}`, want: "quota exceeded"},
		{body: `{"error":"oops"}`, want: "oops"},
		{body: `upstream exploded`, want: "upstream exploded"},
		{body: ``, want: "OCR start failed with HTTP 502."},
	}
	for _, tc := range cases {
		resp := &http.Response{
			StatusCode: http.StatusBadGateway,
			Status:     "502 Bad Gateway",
			Body:       io.NopCloser(strings.NewReader(tc.body)),
		}
		got := ReadHTTPError("OCR", "start", resp)
		if got.Message != tc.want {
			t.Fatalf("body %q: Message = %q, want %q", tc.body, got.Message, tc.want)
		}
	}
}
