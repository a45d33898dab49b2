package csvutil

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type person struct {
	Name string
	City string
}

func parsePerson(row Row) (person, error) {
	if row.Get("name") == "" {
		return person{}, errors.New("missing name")
	}
	return person{Name: row.Get("name"), City: row.Get("city")}, nil
}

func TestProcessCSV(t *testing.T) {
	input := "\ufeffname,age,city\nAlice,30,NYC\nBob,25,LA\nCharlie,35, Chicago \n"

	people, stats, err := ProcessCSV(strings.NewReader(input), parsePerson, ProcessorOptions{})
	require.NoError(t, err)
	assert.Equal(t, Stats{Parsed: 3}, stats)
	assert.Equal(t, []person{
		{"Alice", "NYC"},
		{"Bob", "LA"},
		{"Charlie", "Chicago"},
	}, people)
}

func TestProcessCSV_ShortRecord(t *testing.T) {
	people, _, err := ProcessCSV(strings.NewReader("name,city\nAlice\n"), parsePerson, ProcessorOptions{})
	require.NoError(t, err)
	assert.Equal(t, []person{{Name: "Alice"}}, people)
}

func TestProcessCSV_SkipInvalid(t *testing.T) {
	input := "name,city\nAlice,NYC\n,LA\n"

	people, stats, err := ProcessCSV(strings.NewReader(input), parsePerson, ProcessorOptions{SkipInvalid: true})
	require.NoError(t, err)
	assert.Len(t, people, 1)
	assert.Equal(t, Stats{Parsed: 1, Skipped: 1}, stats)

	_, _, err = ProcessCSV(strings.NewReader(input), parsePerson, ProcessorOptions{})
	require.Error(t, err)
}

func TestProcessCSV_EmptyInput(t *testing.T) {
	_, _, err := ProcessCSV(strings.NewReader(""), parsePerson, ProcessorOptions{})
	require.Error(t, err)
}

func TestProcessCSV_RequiredColumns(t *testing.T) {
	_, _, err := ProcessCSV(strings.NewReader("name\nAlice\n"), parsePerson, ProcessorOptions{Required: []string{"name", "city"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"city"`)
}
