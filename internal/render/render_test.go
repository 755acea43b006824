package render

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestWriteTable(t *testing.T) {
	var buf bytes.Buffer
	table := Table{Headers: []string{"name", "status"}}
	table.AddRow("alpha", "healthy")
	table.AddRow("a-much-longer-name", "down")

	require.NoError(t, WriteTable(&buf, table))

	want := strings.Join([]string{
		"name                status",
		"------------------  -------",
		"alpha               healthy",
		"a-much-longer-name  down",
		"",
	}, "\n")
	assert.Equal(t, want, buf.String())
}

func TestWriteTableHeadersOnly(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteTable(&buf, Table{Headers: []string{"name", "status"}}))
	assert.Equal(t, "name  status\n----  ------\n", buf.String())
}

func TestWriteTableFlattensTabs(t *testing.T) {
	var buf bytes.Buffer
	table := Table{Headers: []string{"a", "b"}}
	table.AddRow("x\ty", "line\nbreak")

	require.NoError(t, WriteTable(&buf, table))
	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	assert.Len(t, lines, 3)
	assert.Contains(t, lines[2], "x y")
	assert.Contains(t, lines[2], "line break")
}

func TestWriteTableRejectsRaggedRows(t *testing.T) {
	table := Table{Headers: []string{"a", "b"}}
	table.AddRow("only one")
	assert.Error(t, WriteTable(&bytes.Buffer{}, table))
}

type record struct {
	ID   string  `json:"id" yaml:"id"`
	Sort *string `json:"sort" yaml:"sort"`
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, []record{{ID: "t-1"}}))

	assert.Equal(t, "[\n  {\n    \"id\": \"t-1\",\n    \"sort\": null\n  }\n]\n", buf.String())

	var back []record
	require.NoError(t, json.Unmarshal(buf.Bytes(), &back))
	assert.Equal(t, "t-1", back[0].ID)
}

func TestWriteYAML(t *testing.T) {
	var buf bytes.Buffer
	s := "a"
	require.NoError(t, WriteYAML(&buf, []record{{ID: "t-1", Sort: &s}}))

	var back []record
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &back))
	require.Len(t, back, 1)
	assert.Equal(t, "t-1", back[0].ID)
	assert.Equal(t, "a", *back[0].Sort)
}

func TestWrite(t *testing.T) {
	data := []record{{ID: "t-1"}}
	table := func() (Table, error) {
		return Table{Headers: []string{"id"}, Rows: [][]string{{"t-1"}}}, nil
	}

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatTable, data, table))
	assert.Equal(t, "id\n---\nt-1\n", buf.String())

	buf.Reset()
	require.NoError(t, Write(&buf, FormatJSON, data, table))
	assert.True(t, json.Valid(buf.Bytes()))

	buf.Reset()
	failing := func() (Table, error) { return Table{}, errors.New("boom") }
	assert.EqualError(t, Write(&buf, FormatTable, data, failing), "boom")
	assert.Empty(t, buf.String())

	assert.Error(t, Write(&buf, Format("xml"), data, table))
}
