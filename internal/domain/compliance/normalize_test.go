package compliance

import (
	"fmt"
	"reflect"
	"testing"
)

func TestIsTimestampKey(t *testing.T) {
	cases := map[string]bool{
		"2025-04-28 08:00:00": true,
		"2025-04-28T08:00:00": true,
		"08:00":               true,
		"garbage:value":       true,
		"status":              false,
		"lastUpdated":         false,
		"2025-04-28":          false,
		"":                    false,
	}
	for key, want := range cases {
		if got := IsTimestampKey(key); got != want {
			t.Fatalf("IsTimestampKey(%q) = %v, want %v", key, got, want)
		}
	}
}

func TestNormalizeScenarioA(t *testing.T) {
	raw := map[string]any{
		"2025-04-28 08:00:00": map[string]any{"ID Number": "E1", "hardhat": 1.0, "vest": 0.0, "gloves": 1.0},
	}
	result := Normalize(raw, 0)
	if len(result.Events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(result.Events))
	}
	e := result.Events[0]
	if !e.Hardhat || e.Vest || !e.Gloves {
		t.Fatalf("unexpected flags: %+v", e)
	}
	if e.EmployeeID != "E1" || !e.ValidTimestamp || e.Timestamp != "2025-04-28 08:00:00" {
		t.Fatalf("unexpected event: %+v", e)
	}
	if rate := ComplianceRate(result.Events); rate != 0 {
		t.Fatalf("expected 0%% compliance, got %v", rate)
	}
	if e.Schema != SchemaV2Lowercase {
		t.Fatalf("expected v2 schema, got %s", e.Schema)
	}
}

func TestNormalizeEmptyAndNil(t *testing.T) {
	for _, raw := range []map[string]any{nil, {}} {
		result := Normalize(raw, 10)
		if result.Events == nil || len(result.Events) != 0 {
			t.Fatalf("expected empty non-nil slice, got %#v", result.Events)
		}
	}
}

func TestNormalizeSkipsMetadataAndScalars(t *testing.T) {
	raw := map[string]any{
		"status":              "online",
		"lastUpdated":         map[string]any{"hardhat": 1},
		"2025-04-28 08:00:00": "1",
		"2025-04-28 09:00:00": nil,
		"2025-04-28 10:00:00": map[string]any{"Hardhat": "1", "Vest": "1", "Gloves": "1", "ID Number": "E2"},
	}
	result := Normalize(raw, 0)
	if len(result.Events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(result.Events))
	}
	if result.Skipped != 4 {
		t.Fatalf("expected 4 skipped keys, got %d", result.Skipped)
	}
	e := result.Events[0]
	if !e.Compliant() || e.Schema != SchemaV1Capitalized {
		t.Fatalf("unexpected event: %+v", e)
	}
}

func TestNormalizeFlagTolerance(t *testing.T) {
	raw := map[string]any{
		"2025-04-28 08:00:00": map[string]any{"hardhat": "1", "vest": 1, "gloves": 2.0},
		"2025-04-28 08:00:01": map[string]any{"hardhat": "yes", "vest": "0"},
	}
	result := Normalize(raw, 0)
	first, second := result.Events[1], result.Events[0]
	if !first.Hardhat || !first.Vest || first.Gloves {
		t.Fatalf("unexpected flags: %+v", first)
	}
	if second.Hardhat || second.Vest || second.Gloves {
		t.Fatalf("unexpected flags: %+v", second)
	}
	if second.EmployeeID != UnknownEmployee {
		t.Fatalf("expected Unknown employee, got %q", second.EmployeeID)
	}
	if second.Direction != DirectionUnknown || second.Door != DoorUnknown {
		t.Fatalf("expected unknown sensors, got %+v", second)
	}
}

func TestNormalizeBooleanPPEFlagsAreNotWorn(t *testing.T) {
	raw := map[string]any{
		"2025-04-28 08:00:00": map[string]any{"hardhat": true, "vest": "true", "gloves": 1, "door": true},
	}
	e := Normalize(raw, 0).Events[0]
	if e.Hardhat || e.Vest || !e.Gloves {
		t.Fatalf("only numeric or string 1 counts as worn, got %+v", e)
	}
	if e.Compliant() {
		t.Fatal("event with boolean flags must not be compliant")
	}
	if e.Door != DoorOpen {
		t.Fatalf("boolean door sensor should still read open, got %q", e.Door)
	}
}

func TestNormalizeOrderingAndTruncation(t *testing.T) {
	raw := map[string]any{
		"2025-04-28 08:00:00":       map[string]any{},
		"2025-04-28T08:00:00":       map[string]any{},
		"2025-04-29 07:00:00":       map[string]any{},
		"bad:key":                   map[string]any{},
		"worse:key":                 map[string]any{},
		"2025-04-27 23:59:59.000":   map[string]any{},
		"2025-04-28T10:00:00+02:00": map[string]any{},
	}
	result := Normalize(raw, 0)
	var ids []string
	for _, e := range result.Events {
		ids = append(ids, e.ID)
	}
	want := []string{
		"2025-04-29 07:00:00",
		"2025-04-28T10:00:00+02:00",
		"2025-04-28T08:00:00",
		"2025-04-28 08:00:00",
		"2025-04-27 23:59:59.000",
		"worse:key",
		"bad:key",
	}
	if !reflect.DeepEqual(ids, want) {
		t.Fatalf("unexpected order:\n got %v\nwant %v", ids, want)
	}
	if result.Malformed != 2 || len(result.Issues) != 2 {
		t.Fatalf("expected 2 malformed entries, got %d", result.Malformed)
	}

	limited := Normalize(raw, 3)
	if len(limited.Events) != 3 || limited.Events[0].ID != want[0] {
		t.Fatalf("unexpected truncated result: %+v", limited.Events)
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	raw := map[string]any{}
	for i := 0; i < 30; i++ {
		raw[fmt.Sprintf("2025-04-28 08:%02d:00", i)] = map[string]any{"hardhat": float64(i % 2), "ID Number": fmt.Sprintf("E%d", i%4)}
	}
	raw["invalid:x"] = map[string]any{}
	a := Normalize(raw, 20)
	b := Normalize(raw, 20)
	if !reflect.DeepEqual(a, b) {
		t.Fatal("expected identical results for identical input")
	}
}

func TestNormalizeDeterministicDescending(t *testing.T) {
	raw := map[string]any{}
	for i := 0; i < 50; i++ {
		raw[fmt.Sprintf("2025-05-%02d %02d:00:00", 1+i%28, i%24)] = map[string]any{}
	}
	events := Normalize(raw, 0).Events
	for i := 1; i < len(events); i++ {
		if !events[i-1].At.After(events[i].At) {
			t.Fatalf("events not strictly descending at %d: %s then %s", i, events[i-1].ID, events[i].ID)
		}
	}
}

func TestNormalizeDirectionAndDoor(t *testing.T) {
	cases := []struct {
		entry map[string]any
		dir   Direction
		door  DoorStatus
	}{
		{map[string]any{"front": 1.0, "back": 0.0, "door": "open"}, DirectionEntry, DoorOpen},
		{map[string]any{"front": 0.0, "back": 1.0, "Door": 0.0}, DirectionExit, DoorClosed},
		{map[string]any{"front": 1.0, "back": 1.0}, DirectionUnknown, DoorUnknown},
		{map[string]any{"direction": "EXIT", "door_status": "closed"}, DirectionExit, DoorClosed},
		{map[string]any{"action": "entry", "front": 0.0, "back": 1.0}, DirectionEntry, DoorUnknown},
		{map[string]any{"direction": "sideways"}, DirectionUnknown, DoorUnknown},
	}
	for i, tc := range cases {
		result := Normalize(map[string]any{"2025-04-28 08:00:00": tc.entry}, 0)
		e := result.Events[0]
		if e.Direction != tc.dir || e.Door != tc.door {
			t.Fatalf("case %d: got %s/%s, want %s/%s", i, e.Direction, e.Door, tc.dir, tc.door)
		}
	}
}

func TestNormalizeEmployeeKeys(t *testing.T) {
	cases := map[string]map[string]any{
		"E1":      {"ID Number": "E1"},
		"E2":      {"id_number": " E2 "},
		"E3":      {"employeeId": "E3"},
		"42":      {"employee_id": 42.0},
		"Unknown": {"ID Number": ""},
	}
	for want, entry := range cases {
		e := Normalize(map[string]any{"2025-04-28 08:00:00": entry}, 0).Events[0]
		if e.EmployeeID != want {
			t.Fatalf("expected %q, got %q", want, e.EmployeeID)
		}
	}
}
