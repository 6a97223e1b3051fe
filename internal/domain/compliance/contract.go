package compliance

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

var ErrInvalidPayload = errors.New("payload must be a JSON object")

const (
	v1SchemaURL = "ppewatch://schemas/entry-v1.json"
	v2SchemaURL = "ppewatch://schemas/entry-v2.json"
)

// First generation producers send capitalized keys with "0"/"1" strings.
const v1SchemaJSON = `{
  "type": "object",
  "required": ["Hardhat", "Vest", "Gloves"],
  "properties": {
    "Hardhat": {"type": "string", "enum": ["0", "1"]},
    "Vest": {"type": "string", "enum": ["0", "1"]},
    "Gloves": {"type": "string", "enum": ["0", "1"]},
    "ID Number": {"type": ["string", "number"]}
  }
}`

// Second generation producers send lowercase keys with numeric 0/1.
const v2SchemaJSON = `{
  "type": "object",
  "required": ["hardhat", "vest", "gloves"],
  "properties": {
    "hardhat": {"type": "number", "enum": [0, 1]},
    "vest": {"type": "number", "enum": [0, 1]},
    "gloves": {"type": "number", "enum": [0, 1]},
    "ID Number": {"type": ["string", "number"]},
    "direction": {"type": "string"},
    "front": {"type": ["number", "string", "boolean"]},
    "back": {"type": ["number", "string", "boolean"]},
    "door": {"type": ["number", "string", "boolean"]}
  }
}`

type compiledSchemas struct {
	v1 *jsonschema.Schema
	v2 *jsonschema.Schema
}

var (
	schemasOnce sync.Once
	schemas     compiledSchemas
	schemasErr  error
)

func loadSchemas() (compiledSchemas, error) {
	schemasOnce.Do(func() {
		schemas.v1, schemasErr = compileSchema(v1SchemaURL, v1SchemaJSON)
		if schemasErr != nil {
			return
		}
		schemas.v2, schemasErr = compileSchema(v2SchemaURL, v2SchemaJSON)
	})
	return schemas, schemasErr
}

func compileSchema(url, source string) (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(url, strings.NewReader(source)); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	schema, err := compiler.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return schema, nil
}

// DetectSchema reports which producer generation an entry conforms to.
func DetectSchema(entry map[string]any) Schema {
	schema, _ := detect(entry)
	return schema
}

func detect(entry map[string]any) (Schema, []string) {
	compiled, err := loadSchemas()
	if err != nil {
		return SchemaUnknown, []string{err.Error()}
	}
	payload, err := asJSONValue(entry)
	if err != nil {
		return SchemaUnknown, []string{err.Error()}
	}
	v2Err := compiled.v2.Validate(payload)
	if v2Err == nil {
		return SchemaV2Lowercase, nil
	}
	v1Err := compiled.v1.Validate(payload)
	if v1Err == nil {
		return SchemaV1Capitalized, nil
	}
	return SchemaUnknown, []string{"v2: " + v2Err.Error(), "v1: " + v1Err.Error()}
}

// asJSONValue round-trips through encoding/json so values built in Go
// (ints, nested structs) validate the same way decoded payloads do.
func asJSONValue(entry map[string]any) (any, error) {
	raw, err := json.Marshal(entry)
	if err != nil {
		return nil, err
	}
	var payload any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, err
	}
	return payload, nil
}

type EntryReport struct {
	Key    string   `json:"key"`
	Schema Schema   `json:"schema"`
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors,omitempty"`
}

type ContractReport struct {
	Valid   bool           `json:"valid"`
	Entries []EntryReport  `json:"entries"`
	Skipped []string       `json:"skipped"`
	Schemas map[Schema]int `json:"schemas"`
}

// ValidateContract checks a producer payload entry by entry. Metadata keys
// are listed as skipped rather than rejected.
func ValidateContract(raw []byte) (ContractReport, error) {
	var snapshot map[string]any
	if err := json.Unmarshal(raw, &snapshot); err != nil || snapshot == nil {
		return ContractReport{}, ErrInvalidPayload
	}

	report := ContractReport{
		Valid:   true,
		Entries: []EntryReport{},
		Skipped: []string{},
		Schemas: map[Schema]int{},
	}
	keys := make([]string, 0, len(snapshot))
	for key := range snapshot {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		entry, ok := snapshot[key].(map[string]any)
		if !IsTimestampKey(key) || !ok {
			report.Skipped = append(report.Skipped, key)
			continue
		}
		schema, problems := detect(entry)
		item := EntryReport{Key: key, Schema: schema, Valid: schema != SchemaUnknown, Errors: problems}
		if _, err := ParseTimestamp(key); err != nil {
			item.Valid = false
			item.Errors = append(item.Errors, err.Error())
		}
		if !item.Valid {
			report.Valid = false
		}
		report.Schemas[schema]++
		report.Entries = append(report.Entries, item)
	}
	return report, nil
}
