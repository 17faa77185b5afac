package workbook

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// yamlDocument is the on-disk layout of a YAML workbook:
//
//	sheets:
//	  - name: Job Details
//	    rows:
//	      - [Jenkins_URL, Job_Name, Build_Type]
//	      - [http://ci.example.com, nightly, build]
type yamlDocument struct {
	Sheets []*yamlSheet `yaml:"sheets"`
}

type yamlSheet struct {
	Name string     `yaml:"name"`
	Rows [][]string `yaml:"rows"`
}

type yamlBackend struct {
	doc yamlDocument
}

func decodeYAML(r io.Reader) (*yamlBackend, error) {
	var doc yamlDocument
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil && err != io.EOF {
		return nil, err
	}
	seen := make(map[string]bool, len(doc.Sheets))
	for _, sheet := range doc.Sheets {
		if sheet.Name == "" {
			return nil, fmt.Errorf("sheet without a name")
		}
		if seen[sheet.Name] {
			return nil, fmt.Errorf("duplicate sheet %q", sheet.Name)
		}
		seen[sheet.Name] = true
	}
	return &yamlBackend{doc: doc}, nil
}

func (b *yamlBackend) sheet(name string) *yamlSheet {
	for _, sheet := range b.doc.Sheets {
		if sheet.Name == name {
			return sheet
		}
	}
	return nil
}

func (b *yamlBackend) SheetNames() []string {
	names := make([]string, 0, len(b.doc.Sheets))
	for _, sheet := range b.doc.Sheets {
		names = append(names, sheet.Name)
	}
	return names
}

func (b *yamlBackend) Rows(name string) ([][]string, error) {
	sheet := b.sheet(name)
	if sheet == nil {
		return nil, fmt.Errorf("sheet %q does not exist", name)
	}
	rows := make([][]string, len(sheet.Rows))
	for i, row := range sheet.Rows {
		rows[i] = append([]string(nil), row...)
	}
	return rows, nil
}

func (b *yamlBackend) SetCell(name string, col, row int, value string) error {
	sheet := b.sheet(name)
	if sheet == nil {
		return fmt.Errorf("sheet %q does not exist", name)
	}
	for len(sheet.Rows) <= row {
		sheet.Rows = append(sheet.Rows, []string{})
	}
	for len(sheet.Rows[row]) <= col {
		sheet.Rows[row] = append(sheet.Rows[row], "")
	}
	sheet.Rows[row][col] = value
	return nil
}

func (b *yamlBackend) ResetSheet(name string) error {
	if sheet := b.sheet(name); sheet != nil {
		sheet.Rows = nil
		return nil
	}
	b.doc.Sheets = append(b.doc.Sheets, &yamlSheet{Name: name})
	return nil
}

func (b *yamlBackend) Encode(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(b.doc); err != nil {
		return err
	}
	return enc.Close()
}

func (b *yamlBackend) Close() error {
	return nil
}
