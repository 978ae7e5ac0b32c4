package pagination

import (
	"errors"
	"net/http/httptest"
	"net/url"
	"testing"
)

func TestParseDefaults(t *testing.T) {
	params, err := Parse(url.Values{}, Options{})
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if params.PageSize != DefaultPageSize {
		t.Fatalf("expected default page size %d, got %d", DefaultPageSize, params.PageSize)
	}
	if params.PageToken != "" {
		t.Fatalf("expected empty page token, got %q", params.PageToken)
	}
}

func TestParseRespectsHandlerDefaults(t *testing.T) {
	params, err := Parse(url.Values{}, Options{DefaultPageSize: 20})
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if params.PageSize != 20 {
		t.Fatalf("expected page size 20, got %d", params.PageSize)
	}
}

func TestParseCapsPageSize(t *testing.T) {
	values := url.Values{"pageSize": []string{"500"}}
	params, err := Parse(values, Options{MaxPageSize: 100})
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if params.PageSize != 100 {
		t.Fatalf("expected clamped page size 100, got %d", params.PageSize)
	}
}

func TestParseRejectsBadPageSize(t *testing.T) {
	for _, raw := range []string{"abc", "0", "-5"} {
		if _, err := Parse(url.Values{"pageSize": []string{raw}}, Options{}); !errors.Is(err, ErrInvalidPageSize) {
			t.Fatalf("pageSize %q: expected ErrInvalidPageSize, got %v", raw, err)
		}
	}
}

func TestParseRejectsMalformedToken(t *testing.T) {
	values := url.Values{"pageToken": []string{"!!not-base64!!"}}
	if _, err := Parse(values, Options{}); !errors.Is(err, ErrInvalidPageToken) {
		t.Fatalf("expected ErrInvalidPageToken, got %v", err)
	}
}

func TestParseAcceptsEncodedCursorToken(t *testing.T) {
	type cursor struct {
		ID string `json:"id"`
	}
	token, err := EncodeCursor(cursor{ID: "ord_042"})
	if err != nil {
		t.Fatalf("EncodeCursor returned error: %v", err)
	}

	params, err := Parse(url.Values{"pageToken": []string{token}}, Options{})
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if params.PageToken != token {
		t.Fatalf("expected token passed through, got %q", params.PageToken)
	}
}

func TestCursorRoundTrip(t *testing.T) {
	type cursor struct {
		ID    string `json:"id"`
		Stock int    `json:"stock"`
	}

	token, err := EncodeCursor(cursor{ID: "prod_chair", Stock: 7})
	if err != nil {
		t.Fatalf("EncodeCursor returned error: %v", err)
	}
	decoded, err := DecodeCursor[cursor](token)
	if err != nil {
		t.Fatalf("DecodeCursor returned error: %v", err)
	}
	if decoded.ID != "prod_chair" || decoded.Stock != 7 {
		t.Fatalf("unexpected cursor after round trip: %+v", decoded)
	}
}

func TestDecodeCursorRejectsGarbage(t *testing.T) {
	type cursor struct{ ID string }
	if _, err := DecodeCursor[cursor]("not-base64!"); !errors.Is(err, ErrInvalidPageToken) {
		t.Fatalf("expected ErrInvalidPageToken, got %v", err)
	}
}

func TestFromRequestReadsQuery(t *testing.T) {
	req := httptest.NewRequest("GET", "/orders?pageSize=5", nil)
	params, err := FromRequest(req, Options{})
	if err != nil {
		t.Fatalf("FromRequest returned error: %v", err)
	}
	if params.PageSize != 5 {
		t.Fatalf("expected page size 5, got %d", params.PageSize)
	}
}

func TestMustBackfillsPageSize(t *testing.T) {
	params := Must(Params{})
	if params.PageSize != DefaultPageSize {
		t.Fatalf("expected default page size, got %d", params.PageSize)
	}
}
