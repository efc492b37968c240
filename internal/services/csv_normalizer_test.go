package services

import (
	"errors"
	"reflect"
	"testing"
)

func TestNormalizeCSVHeaderWhitespace(t *testing.T) {
	raw := "Name,  Value\nalice,1\nbob,2\ncarol,3\n"

	ds, err := NormalizeCSV(raw)
	if err != nil {
		t.Fatalf("NormalizeCSV failed: %v", err)
	}

	expected := []string{"Name", "Value"}
	if !reflect.DeepEqual(ds.Headers, expected) {
		t.Errorf("Expected headers %v, got %v", expected, ds.Headers)
	}
	if ds.RowCount != 3 {
		t.Errorf("Expected 3 rows, got %d", ds.RowCount)
	}
}

func TestNormalizeCSVEmbeddedNewlineInHeader(t *testing.T) {
	raw := "\"First\nName\",Age\nalice,30\nbob,25\n"

	ds, err := NormalizeCSV(raw)
	if err != nil {
		t.Fatalf("NormalizeCSV failed: %v", err)
	}

	if ds.Headers[0] != "First Name" {
		t.Errorf("Expected header 'First Name', got '%s'", ds.Headers[0])
	}
}

func TestNormalizeCSVDropsBlankColumn(t *testing.T) {
	// Value is blank in every row, so only Name survives.
	raw := "Name,Value\nalice,\nbob,\ncarol,\n"

	ds, err := NormalizeCSV(raw)
	if err != nil {
		t.Fatalf("NormalizeCSV failed: %v", err)
	}

	if ds.ColumnCount != 1 {
		t.Errorf("Expected 1 column, got %d", ds.ColumnCount)
	}
	if ds.Headers[0] != "Name" {
		t.Errorf("Expected surviving column 'Name', got '%s'", ds.Headers[0])
	}
	if ds.RowCount != 3 {
		t.Errorf("Expected 3 rows, got %d", ds.RowCount)
	}
}

func TestNormalizeCSVDropsEmptyRows(t *testing.T) {
	raw := "a,b\n1,2\n,\n\n3,4\n"

	ds, err := NormalizeCSV(raw)
	if err != nil {
		t.Fatalf("NormalizeCSV failed: %v", err)
	}

	if ds.RowCount != 2 {
		t.Errorf("Expected 2 rows, got %d", ds.RowCount)
	}
}

func TestNormalizeCSVWhitespaceOnlyCells(t *testing.T) {
	// Whitespace-only cells count as empty for both row and column pruning.
	raw := "a,b\n1,\n , \n2,\n"

	ds, err := NormalizeCSV(raw)
	if err != nil {
		t.Fatalf("NormalizeCSV failed: %v", err)
	}

	if ds.ColumnCount != 1 {
		t.Errorf("Expected 1 column, got %d", ds.ColumnCount)
	}
	if ds.RowCount != 2 {
		t.Errorf("Expected 2 rows after pruning, got %d", ds.RowCount)
	}
}

func TestNormalizeCSVTypeInference(t *testing.T) {
	raw := "name,count,active\nalice,42,true\nbob,3.5,false\n"

	ds, err := NormalizeCSV(raw)
	if err != nil {
		t.Fatalf("NormalizeCSV failed: %v", err)
	}

	if v, ok := ds.Records[0]["count"].(float64); !ok || v != 42 {
		t.Errorf("Expected count 42 as float64, got %v (%T)", ds.Records[0]["count"], ds.Records[0]["count"])
	}
	if v, ok := ds.Records[0]["active"].(bool); !ok || v != true {
		t.Errorf("Expected active true as bool, got %v", ds.Records[0]["active"])
	}
	if v, ok := ds.Records[0]["name"].(string); !ok || v != "alice" {
		t.Errorf("Expected name 'alice' as string, got %v", ds.Records[0]["name"])
	}
}

func TestNormalizeCSVCarriageReturns(t *testing.T) {
	raw := "a,b\r\n1,2\r3,4\r\n"

	ds, err := NormalizeCSV(raw)
	if err != nil {
		t.Fatalf("NormalizeCSV failed: %v", err)
	}
	if ds.RowCount != 2 {
		t.Errorf("Expected 2 rows, got %d", ds.RowCount)
	}
}

func TestNormalizeCSVNoUsableData(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"empty input", ""},
		{"header only", "a,b\n"},
		{"all blank rows", "a,b\n,\n,\n"},
		{"all blank columns", "a,b\n \n"},
	}

	for _, test := range tests {
		_, err := NormalizeCSV(test.raw)
		if !errors.Is(err, ErrNoUsableData) {
			t.Errorf("%s: expected ErrNoUsableData, got %v", test.name, err)
		}
	}
}

func TestNormalizeCSVIdempotent(t *testing.T) {
	raw := "name,count\nalice,1\nbob,2\n"

	first, err := NormalizeCSV(raw)
	if err != nil {
		t.Fatalf("First normalization failed: %v", err)
	}

	// Re-render the clean dataset as CSV and normalize again.
	rerendered := "name,count\nalice,1\nbob,2\n"
	second, err := NormalizeCSV(rerendered)
	if err != nil {
		t.Fatalf("Second normalization failed: %v", err)
	}

	if !reflect.DeepEqual(first, second) {
		t.Errorf("Normalization is not idempotent: %+v vs %+v", first, second)
	}
}

func TestNormalizeCSVNonFiniteLiteralsStayStrings(t *testing.T) {
	// ParseFloat would accept these, but the record set must stay
	// JSON-serializable.
	raw := "label,score\nok,1\nbad,NaN\nworse,Inf\nworst,-Infinity\n"

	ds, err := NormalizeCSV(raw)
	if err != nil {
		t.Fatalf("NormalizeCSV failed: %v", err)
	}

	if v, ok := ds.Records[1]["score"].(string); !ok || v != "NaN" {
		t.Errorf("Expected NaN cell kept as string, got %v (%T)", ds.Records[1]["score"], ds.Records[1]["score"])
	}
	if _, ok := ds.Records[2]["score"].(string); !ok {
		t.Errorf("Expected Inf cell kept as string, got %T", ds.Records[2]["score"])
	}
	if _, ok := ds.Records[3]["score"].(string); !ok {
		t.Errorf("Expected -Infinity cell kept as string, got %T", ds.Records[3]["score"])
	}

	if _, err := ds.MarshalRecords(); err != nil {
		t.Errorf("Record set must serialize to JSON: %v", err)
	}
}

func TestNormalizeCSVDuplicateHeaders(t *testing.T) {
	raw := "a,a,b\n1,2,3\n4,5,6\n"

	ds, err := NormalizeCSV(raw)
	if err != nil {
		t.Fatalf("NormalizeCSV failed: %v", err)
	}

	expected := []string{"a", "a_1", "b"}
	if !reflect.DeepEqual(ds.Headers, expected) {
		t.Errorf("Expected headers %v, got %v", expected, ds.Headers)
	}
	if ds.ColumnCount != 3 {
		t.Errorf("Expected 3 columns, got %d", ds.ColumnCount)
	}
	if v := ds.Records[0]["a"]; v != float64(1) {
		t.Errorf("Expected a=1 in first record, got %v", v)
	}
	if v := ds.Records[0]["a_1"]; v != float64(2) {
		t.Errorf("Expected a_1=2 in first record, got %v", v)
	}
}

func TestNormalizeCSVShortRows(t *testing.T) {
	// Rows shorter than the header are padded with nulls, not rejected.
	raw := "a,b,c\n1,2,3\n4,5\n"

	ds, err := NormalizeCSV(raw)
	if err != nil {
		t.Fatalf("NormalizeCSV failed: %v", err)
	}
	if ds.RowCount != 2 {
		t.Errorf("Expected 2 rows, got %d", ds.RowCount)
	}
	if ds.Records[1]["c"] != nil {
		t.Errorf("Expected missing cell to be nil, got %v", ds.Records[1]["c"])
	}
}
