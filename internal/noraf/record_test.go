package noraf

import (
	"encoding/json"
	"errors"
	"testing"

	"seiso/internal/authority"
)

const sampleRecordJSON = `{
  "systemControlNumber": "90564209",
  "authorityType": "PERSON",
  "status": "kat2",
  "origin": "hha",
  "deleted": false,
  "replacedBy": "0",
  "createdDate": "2006-09-25 00:00:00.0",
  "lastUpdateDate": "2021-03-12 10:15:00.0",
  "extraMember": {"kept": true},
  "marcdata": [
    {"tag": "100", "ind1": "1", "ind2": " ", "subfields": [
      {"subcode": "a", "value": "Hamsun, Knut"},
      {"subcode": "d", "value": "1859-1952"}
    ]},
    {"tag": "400", "ind1": "1", "ind2": " ", "subfields": [
      {"subcode": "a", "value": "Pedersen, Knut"}
    ]},
    {"tag": "386", "subfields": [
      {"subcode": "a", "value": "n."},
      {"subcode": "2", "value": "bs-nasj"}
    ]}
  ],
  "identifiersMap": {
    "bibbi": ["https://id.bs.no/bibbi/10802"],
    "viaf": ["http://viaf.org/viaf/71390123"]
  }
}`

func mustParseRecord(t *testing.T, data string) *Record {
	t.Helper()
	record, err := ParseRecord([]byte(data))
	if err != nil {
		t.Fatalf("ParseRecord failed: %v", err)
	}
	return record
}

func TestParseRecord(t *testing.T) {
	record := mustParseRecord(t, sampleRecordJSON)

	if record.ID() != "90564209" {
		t.Fatalf("expected id 90564209, got %s", record.ID())
	}
	kind, ok := record.Kind()
	if !ok || kind != authority.KindPerson {
		t.Fatalf("expected person kind, got %v (%v)", kind, ok)
	}
	if record.Name() != "Hamsun, Knut" {
		t.Errorf("unexpected name %q", record.Name())
	}
	if record.Dates() != "1859-1952" {
		t.Errorf("unexpected dates %q", record.Dates())
	}
	if got := record.AltNames(); len(got) != 1 || got[0] != "Pedersen, Knut" {
		t.Errorf("unexpected alt names %v", got)
	}
	if record.Nationality() != "n." {
		t.Errorf("unexpected nationality %q", record.Nationality())
	}
	if record.Deleted() {
		t.Error("record should not be deleted")
	}
	if record.ReplacedBy() != "" {
		t.Errorf("replacedBy %q should be treated as unset", record.ReplacedBy())
	}
	if record.Status() != "kat2" || record.Origin() != "hha" {
		t.Errorf("unexpected status/origin %q/%q", record.Status(), record.Origin())
	}
	if record.Created().Year() != 2006 || record.Modified().Year() != 2021 {
		t.Errorf("unexpected timestamps %v / %v", record.Created(), record.Modified())
	}
	if record.Dirty() {
		t.Error("freshly parsed record should be clean")
	}
	if record.Label() != "Hamsun, Knut (1859-1952)" {
		t.Errorf("unexpected label %q", record.Label())
	}
}

func TestParseRecordNumericControlNumber(t *testing.T) {
	record := mustParseRecord(t, `{"systemControlNumber": 12345, "authorityType": "CORPORATION"}`)
	if record.ID() != "12345" {
		t.Fatalf("expected id 12345, got %s", record.ID())
	}
	if kind, ok := record.Kind(); !ok || kind != authority.KindCorporation {
		t.Fatalf("unexpected kind %v (%v)", kind, ok)
	}
}

func TestParseRecordRejectsMissingControlNumber(t *testing.T) {
	if _, err := ParseRecord([]byte(`{"authorityType": "PERSON"}`)); err == nil {
		t.Fatal("expected error for missing systemControlNumber")
	}
}

func TestReplacedBy(t *testing.T) {
	record := mustParseRecord(t, `{"systemControlNumber": "1", "replacedBy": "99000001"}`)
	if record.ReplacedBy() != "99000001" {
		t.Fatalf("expected replacedBy 99000001, got %q", record.ReplacedBy())
	}
}

func TestLocalIdentifiers(t *testing.T) {
	record := mustParseRecord(t, sampleRecordJSON)

	if got := record.LocalIdentifiers(); len(got) != 1 || got[0] != "10802" {
		t.Fatalf("expected normalized local id [10802], got %v", got)
	}
	if !record.HasLocalIdentifier("10802") {
		t.Error("expected HasLocalIdentifier to match URI-stored id by bare form")
	}
	if !record.HasLocalIdentifier("https://id.bs.no/bibbi/10802") {
		t.Error("expected HasLocalIdentifier to match URI form")
	}

	if record.AddLocalIdentifier("10802") {
		t.Error("adding an already-linked id should be a no-op")
	}
	if record.Dirty() {
		t.Error("no-op add should not mark the record dirty")
	}

	if !record.AddLocalIdentifier("55555") {
		t.Fatal("expected add of new local id to succeed")
	}
	if !record.Dirty() {
		t.Error("add should mark the record dirty")
	}
	if got := record.Identifiers("bibbi"); got[len(got)-1] != "https://id.bs.no/bibbi/55555" {
		t.Errorf("new links should be stored in URI form, got %v", got)
	}

	if !record.RemoveLocalIdentifier("10802") {
		t.Fatal("expected removal of URI-stored id by bare form")
	}
	if got := record.LocalIdentifiers(); len(got) != 1 || got[0] != "55555" {
		t.Errorf("unexpected local ids after removal: %v", got)
	}
}

func TestSetIdentifiers(t *testing.T) {
	record := mustParseRecord(t, sampleRecordJSON)

	if record.SetIdentifiers("viaf", []string{"http://viaf.org/viaf/71390123"}) {
		t.Error("setting identical values should report no change")
	}
	if !record.SetIdentifiers("viaf", nil) {
		t.Fatal("expected clearing the vocabulary to report a change")
	}
	if got := record.Identifiers("viaf"); len(got) != 0 {
		t.Errorf("expected empty viaf identifiers, got %v", got)
	}
}

func TestSetFieldValueMarksDirty(t *testing.T) {
	record := mustParseRecord(t, sampleRecordJSON)

	record.SetFieldValue("100", "d", "1859-1952?")
	if record.Dates() != "1859-1952?" {
		t.Fatalf("unexpected dates after edit: %q", record.Dates())
	}
	if !record.Dirty() {
		t.Error("editing a heading should mark the record dirty")
	}

	fresh := mustParseRecord(t, sampleRecordJSON)
	fresh.SetFieldValue("372", "a", "litteratur")
	field, ok := fresh.Field("372")
	if !ok {
		t.Fatal("expected the field created")
	}
	if value, _ := field.Value("a"); value != "litteratur" {
		t.Errorf("unexpected subfield value %q", value)
	}
	if !fresh.Dirty() {
		t.Error("creating a field should mark the record dirty")
	}
}

func TestAsJSONPreservesUnknownMembers(t *testing.T) {
	record := mustParseRecord(t, sampleRecordJSON)
	record.AddLocalIdentifier("55555")

	data, err := record.AsJSON()
	if err != nil {
		t.Fatalf("AsJSON failed: %v", err)
	}
	var decoded map[string]json.RawMessage
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("serialized record is not valid JSON: %v", err)
	}
	if _, ok := decoded["extraMember"]; !ok {
		t.Error("unmodelled members should survive the round trip")
	}

	reparsed, err := ParseRecord(data)
	if err != nil {
		t.Fatalf("reparse failed: %v", err)
	}
	if !reparsed.HasLocalIdentifier("55555") {
		t.Error("mutated identifiers should survive the round trip")
	}
	if reparsed.Name() != "Hamsun, Knut" {
		t.Errorf("marcdata should survive the round trip, got name %q", reparsed.Name())
	}
}

func TestMarcFieldHelpers(t *testing.T) {
	field := NewMarcField("024")
	field.Set("a", "x90564209")
	field.Set("2", "noraf")
	field.Set("a", "90564209")

	if got := field.Values("a"); len(got) != 1 || got[0] != "90564209" {
		t.Errorf("Set should replace the first occurrence, got %v", got)
	}
	if field.String() != "024 $a 90564209 $2 noraf" {
		t.Errorf("unexpected rendering %q", field.String())
	}
	if field.Ind1 != " " || field.Ind2 != " " {
		t.Errorf("expected blank indicators, got %q/%q", field.Ind1, field.Ind2)
	}
}

func TestErrRecordNotFoundWrapping(t *testing.T) {
	err := &UpdateFailedError{RecordID: "1", StatusCode: 400, Message: "bad record"}
	if err.Error() == "" {
		t.Fatal("expected non-empty message")
	}
	wrapped := errors.Join(ErrRecordNotFound)
	if !errors.Is(wrapped, ErrRecordNotFound) {
		t.Fatal("sentinel should survive wrapping")
	}
}
