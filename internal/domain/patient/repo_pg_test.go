package patient

import (
	"encoding/json"
	"testing"
)

func TestDecodeDocument_KeepsExactNumbers(t *testing.T) {
	doc, err := decodeDocument([]byte(`{"bmi": 27.30, "room": 12, "diseases": ["flu"]}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc["room"] != json.Number("12") {
		t.Errorf("expected json.Number 12, got %#v", doc["room"])
	}

	rec := FromDocument(doc, DefaultKeyAttribute)
	if rec.BMI == nil || *rec.BMI != 27.3 {
		t.Errorf("expected bmi 27.3, got %v", rec.BMI)
	}
}

func TestDecodeDocument_Null(t *testing.T) {
	doc, err := decodeDocument([]byte(`null`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc == nil || len(doc) != 0 {
		t.Errorf("expected empty document, got %v", doc)
	}
}

func TestDecodeDocument_Invalid(t *testing.T) {
	if _, err := decodeDocument([]byte(`{`)); err == nil {
		t.Fatal("expected error for truncated JSON")
	}
}
