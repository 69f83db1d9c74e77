package respond

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestErrMapsTaxonomy(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		body   string
	}{
		{name: "validation", err: Invalid("vin", "VIN is required."), status: http.StatusBadRequest, body: `"vin":"VIN is required."`},
		{name: "wrapped not found", err: fmt.Errorf("checkout: %w", NotFound("parts", "No inventory item with barcode '%s' found", "abc")), status: http.StatusNotFound, body: `"parts":"No inventory item with barcode 'abc' found"`},
		{name: "upstream", err: &UpstreamIOError{Err: errors.New("zip: not a valid zip file")}, status: http.StatusBadRequest, body: `"error":"Failed to process file: zip: not a valid zip file"`},
		{name: "unknown", err: errors.New("disk on fire"), status: http.StatusInternalServerError, body: `"error":"internal server error"`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			Err(rec, httptest.NewRequest(http.MethodPost, "/x", nil), tc.err)
			if rec.Code != tc.status {
				t.Fatalf("expected %d, got %d", tc.status, rec.Code)
			}
			if !strings.Contains(rec.Body.String(), tc.body) {
				t.Fatalf("expected body to contain %s, got %s", tc.body, rec.Body.String())
			}
		})
	}
}

func TestValidationErrorAccumulates(t *testing.T) {
	verr := &ValidationError{}
	if verr.OrNil() != nil {
		t.Fatalf("expected nil for empty validation error")
	}
	verr.Add("name", "required").Add("sku", "required")
	if verr.OrNil() == nil {
		t.Fatalf("expected error")
	}
	if got := verr.Error(); got != "validation failed: name: required; sku: required" {
		t.Fatalf("unexpected message %q", got)
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	var target map[string]any
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"a":1} {"b":2}`))
	var verr *ValidationError
	if err := Decode(req, &target); !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"a":1}`))
	if err := Decode(req, &target); err != nil {
		t.Fatalf("decode: %v", err)
	}
	raw, _ := json.Marshal(target)
	if string(raw) != `{"a":1}` {
		t.Fatalf("unexpected decode result %s", raw)
	}
}

func TestFlexIntAndBool(t *testing.T) {
	var payload struct {
		A FlexInt  `json:"a"`
		B FlexInt  `json:"b"`
		C FlexInt  `json:"c"`
		D FlexBool `json:"d"`
		E FlexBool `json:"e"`
	}
	if err := json.Unmarshal([]byte(`{"a":5,"b":"7","c":null,"d":"on","e":false}`), &payload); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !payload.A.Set || payload.A.Value != 5 || payload.B.Value != 7 || payload.C.Set || !payload.C.Null {
		t.Fatalf("unexpected ints: %+v %+v %+v", payload.A, payload.B, payload.C)
	}
	if !payload.D.Value || payload.E.Value || !payload.E.Set {
		t.Fatalf("unexpected bools: %+v %+v", payload.D, payload.E)
	}
	if err := json.Unmarshal([]byte(`{"a":"five"}`), &payload); err == nil {
		t.Fatalf("expected error for non-numeric string")
	}
}

func TestDecodeFormFlattensURLEncoded(t *testing.T) {
	body := strings.NewReader("quantity=4&name=Towbar&childParts=%5B%5D")
	req := httptest.NewRequest(http.MethodPost, "/inventory", body)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var target struct {
		Name       string          `json:"name"`
		Quantity   FlexInt         `json:"quantity"`
		ChildParts json.RawMessage `json:"childParts"`
	}
	if err := DecodeForm(req, &target, 1<<20); err != nil {
		t.Fatalf("decode form: %v", err)
	}
	if target.Name != "Towbar" || target.Quantity.Value != 4 || string(target.ChildParts) != `"[]"` {
		t.Fatalf("unexpected target: %+v", target)
	}
}
