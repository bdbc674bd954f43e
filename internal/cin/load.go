package cin

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed cin.schema.json
var schemaJSON string

const schemaURL = "https://threecorner.local/schema/cin-table.json"

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func tableSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(schemaURL, bytes.NewReader([]byte(schemaJSON))); err != nil {
			schemaErr = fmt.Errorf("add schema resource: %w", err)
			return
		}
		schema, schemaErr = compiler.Compile(schemaURL)
	})
	return schema, schemaErr
}

// document is the JSON shape of a table file.
type document struct {
	CName    string              `json:"cname"`
	EName    string              `json:"ename"`
	SelKey   string              `json:"selkey"`
	KeyName  map[string]string   `json:"keyname"`
	CharDefs map[string][]string `json:"chardefs"`
}

// Validate checks raw table JSON against the table schema.
func Validate(data []byte) error {
	s, err := tableSchema()
	if err != nil {
		return err
	}

	var instance any
	if err := json.Unmarshal(data, &instance); err != nil {
		return fmt.Errorf("decode table: %w", err)
	}
	if err := s.Validate(instance); err != nil {
		return fmt.Errorf("invalid table: %w", err)
	}
	return nil
}

// Load reads and validates a table document.
func Load(r io.Reader) (*Table, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read table: %w", err)
	}
	if err := Validate(data); err != nil {
		return nil, err
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode table: %w", err)
	}

	t := NewTable(doc.CName)
	t.EName = doc.EName
	t.SelKeys = doc.SelKey
	for code, name := range doc.KeyName {
		t.SetKeyName(code, name)
	}

	// Insert in code order so that Codes() is deterministic.
	codes := make([]string, 0, len(doc.CharDefs))
	for code := range doc.CharDefs {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	for _, code := range codes {
		t.Add(code, doc.CharDefs[code]...)
	}
	return t, nil
}

// LoadFile loads a table from path. A missing file yields ErrTableMissing.
func LoadFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrTableMissing, path)
		}
		return nil, fmt.Errorf("open table: %w", err)
	}
	defer f.Close()

	t, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}
