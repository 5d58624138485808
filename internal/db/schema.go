package db

import (
	"fmt"
	"os"
)

// SchemaLoader produces the schema context handed to the model.
type SchemaLoader interface {
	LoadSchema() (string, error)
}

// FileSchemaLoader reads the DDL and the free-text documentation from disk.
type FileSchemaLoader struct {
	DDLPath string
	DocPath string
}

func NewFileSchemaLoader(ddlPath, docPath string) *FileSchemaLoader {
	return &FileSchemaLoader{DDLPath: ddlPath, DocPath: docPath}
}

func (l *FileSchemaLoader) LoadSchema() (string, error) {
	ddl, err := os.ReadFile(l.DDLPath)
	if err != nil {
		return "", fmt.Errorf("read ddl: %w", err)
	}
	doc, err := os.ReadFile(l.DocPath)
	if err != nil {
		return "", fmt.Errorf("read documentation: %w", err)
	}
	return CombineSchema(string(ddl), string(doc)), nil
}

func CombineSchema(ddl, doc string) string {
	return fmt.Sprintf("### DDL:\n%s\n\n### Documentation:\n%s", ddl, doc)
}
