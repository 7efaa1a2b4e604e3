package parsers

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ersonp/farmlog/internal/domain/entities"
)

func contents(entries []RawEntry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.String("content"))
	}
	return out
}

func TestJSONParser_Parse_Shapes(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		shape    Shape
		expected []string
	}{
		{
			name:     "wrapped list field",
			input:    `{"farming_work_log": [{"date": "2023-09-22", "content": "a"}, {"date": "2023-09-25", "content": "b"}]}`,
			shape:    ShapeWrapped,
			expected: []string{"a", "b"},
		},
		{
			name:     "wrapped single object",
			input:    `{"farming_work_log": {"date": "2023-09-22", "content": "a"}}`,
			shape:    ShapeWrapped,
			expected: []string{"a"},
		},
		{
			name:     "bare record",
			input:    `{"date": "2023-09-22", "time": "08:00", "content": "a"}`,
			shape:    ShapeRecord,
			expected: []string{"a"},
		},
		{
			name:     "other list field of records",
			input:    `{"user": "kim", "logs": [{"date": "2023-09-22", "content": "a"}, 3]}`,
			shape:    ShapeNested,
			expected: []string{"a"},
		},
		{
			name:     "empty list field falls back to other list fields",
			input:    `{"farming_work_log": [], "logs": [{"date": "2023-09-22", "content": "a"}]}`,
			shape:    ShapeNested,
			expected: []string{"a"},
		},
		{
			name:     "list field without objects falls back to other list fields",
			input:    `{"farming_work_log": ["x"], "logs": [{"content": "a"}], "more": [{"content": "b"}]}`,
			shape:    ShapeNested,
			expected: []string{"a", "b"},
		},
		{
			name:     "empty list field alone",
			input:    `{"farming_work_log": [], "user": "kim"}`,
			shape:    ShapeWrapped,
			expected: []string{},
		},
		{
			name:     "list of records",
			input:    `[{"date": "2023-09-22", "content": "a"}, "noise", {"time": "09:00", "content": "b"}]`,
			shape:    ShapeList,
			expected: []string{"a", "b"},
		},
		{
			name:     "list of wrapped objects",
			input:    `[{"farming_work_log": [{"content": "a"}]}, {"farming_work_log": {"content": "b"}}, {"content": "c"}]`,
			shape:    ShapeList,
			expected: []string{"a", "b", "c"},
		},
		{
			name:     "scalar document",
			input:    `42`,
			shape:    ShapeUnknown,
			expected: []string{},
		},
		{
			name:     "object without entries",
			input:    `{"user": {"name": "kim"}}`,
			shape:    ShapeUnknown,
			expected: []string{},
		},
		{
			name:     "empty list",
			input:    `[]`,
			shape:    ShapeList,
			expected: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parser := &JSONParser{}
			result, err := parser.Parse(strings.NewReader(tt.input))
			require.NoError(t, err)
			assert.Equal(t, tt.expected, contents(result))

			doc, err := DecodeDocument([]byte(tt.input))
			require.NoError(t, err)
			assert.Equal(t, tt.shape, Classify(doc, DefaultListField), tt.shape.String())
		})
	}
}

func TestJSONParser_CustomListField(t *testing.T) {
	parser := &JSONParser{ListField: "diary"}
	result, err := parser.Parse(strings.NewReader(`{"diary": [{"content": "a"}]}`))
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, contents(result))
}

func TestJSONParser_Parse_InvalidInput(t *testing.T) {
	parser := &JSONParser{}
	for _, input := range []string{"not json", `{"a": 1} {"b": 2}`, ""} {
		_, err := parser.Parse(strings.NewReader(input))
		require.Error(t, err, input)
	}
}

func TestRawEntry(t *testing.T) {
	doc, err := DecodeDocument([]byte(`{"date": 20230922, "time": null, "content": "물 주기", "flag": true}`))
	require.NoError(t, err)
	raw := RawEntry(doc.(map[string]any))

	assert.Equal(t, "20230922", raw.String("date"))
	assert.Equal(t, "", raw.String("time"))
	assert.Equal(t, "true", raw.String("flag"))
	assert.Equal(t, "", raw.String("missing"))
	assert.True(t, raw.Usable())
	assert.False(t, RawEntry{"time": "08:00"}.Usable())

	e := raw.Entry("1_taeyong")
	assert.Equal(t, entities.MakeEntryID("20230922", "", "물 주기"), e.ID)
	assert.Equal(t, "taeyong", e.EntityName)

	withID := RawEntry{"id": "source-id", "content": "x"}.Entry("1_taeyong")
	assert.Equal(t, entities.MakeEntryID("", "", "x"), withID.ID)
}

func TestCSVParser_Parse(t *testing.T) {
	input := "date,time,content\n2023-09-22,08:00,watered\n2023-09-25,,\"harvest, peppers\"\n"

	parser := &CSVParser{}
	result, err := parser.Parse(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, result, 2)
	assert.Equal(t, "watered", result[0].String("content"))
	assert.Equal(t, "08:00", result[0].String("time"))
	assert.Equal(t, "harvest, peppers", result[1].String("content"))
}

func TestCSVParser_Parse_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty input", ""},
		{"missing content column", "date,time\n2023-09-22,08:00\n"},
		{"ragged row", "date,content\n2023-09-22,a,extra\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := (&CSVParser{}).Parse(strings.NewReader(tt.input))
			require.Error(t, err)
		})
	}
}

func TestForFormat(t *testing.T) {
	assert.IsType(t, &JSONParser{}, ForFormat("json", ""))
	assert.IsType(t, &CSVParser{}, ForFormat(".CSV", ""))
	assert.Nil(t, ForFormat("xml", ""))
}

func TestForFile(t *testing.T) {
	assert.IsType(t, &JSONParser{}, ForFile("/src/1_taeyong/log_2023-09-22.json", ""))
	assert.IsType(t, &CSVParser{}, ForFile("export.csv", ""))
	assert.Nil(t, ForFile("notes.txt", ""))
}

func TestAppendEntry(t *testing.T) {
	entry := map[string]any{"date": "2023-09-25", "content": "new"}

	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{"wrapped list", `{"farming_work_log": [{"content": "old"}], "user": "kim"}`, []string{"old", "new"}},
		{"wrapped object", `{"farming_work_log": {"content": "old"}}`, []string{"old", "new"}},
		{"object without list field", `{"user": "kim"}`, []string{"new"}},
		{"bare record", `{"date": "2023-09-22", "content": "old"}`, []string{"old", "new"}},
		{"empty list field with other list", `{"farming_work_log": [], "logs": [{"content": "old"}]}`, []string{"old", "new"}},
		{"list", `[{"content": "old"}]`, []string{"old", "new"}},
		{"scalar", `"junk"`, []string{"new"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := DecodeDocument([]byte(tt.input))
			require.NoError(t, err)
			doc = AppendEntry(doc, DefaultListField, entry)
			assert.Equal(t, tt.expected, contents(Normalize(doc, DefaultListField)))
		})
	}

	t.Run("nil document", func(t *testing.T) {
		doc := AppendEntry(nil, DefaultListField, entry)
		out, err := EncodeDocument(doc)
		require.NoError(t, err)
		assert.Contains(t, string(out), `"farming_work_log"`)
	})
}

func TestEncodeDocument_KeepsUnicode(t *testing.T) {
	out, err := EncodeDocument(map[string]any{"content": "새 작업 내역 <pepper>"})
	require.NoError(t, err)
	assert.Contains(t, string(out), "새 작업 내역 <pepper>")
}

func TestRemoveDate(t *testing.T) {
	tests := []struct {
		name      string
		filename  string
		input     string
		remaining []string
	}{
		{
			name:      "wrapped list keeps other dates",
			filename:  "log.json",
			input:     `{"farming_work_log": [{"date": "2023-09-22", "content": "a"}, {"date": "2023-09-25", "content": "b"}]}`,
			remaining: []string{"a"},
		},
		{
			name:      "record of the date",
			filename:  "log.json",
			input:     `{"date": "2023-09-25", "content": "b"}`,
			remaining: []string{},
		},
		{
			name:      "record of another date",
			filename:  "log.json",
			input:     `{"date": "2023-09-22", "content": "a"}`,
			remaining: []string{"a"},
		},
		{
			name:      "list of wrapped objects",
			filename:  "log.json",
			input:     `[{"farming_work_log": [{"date": "2023-09-25", "content": "b"}]}, {"date": "2023-09-22", "content": "a"}]`,
			remaining: []string{"a"},
		},
		{
			name:      "nested list",
			filename:  "log.json",
			input:     `{"logs": [{"date": "2023-09-25", "content": "b"}, {"date": "2023-09-22", "content": "a"}]}`,
			remaining: []string{"a"},
		},
		{
			name:      "empty list field beside nested list",
			filename:  "log.json",
			input:     `{"farming_work_log": [], "logs": [{"date": "2023-09-25", "content": "b"}, {"date": "2023-09-22", "content": "a"}]}`,
			remaining: []string{"a"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, n, err := RemoveDate(tt.filename, []byte(tt.input), DefaultListField, "2023-09-25")
			require.NoError(t, err)
			assert.Equal(t, len(tt.remaining), n)

			entries, err := (&JSONParser{}).Parse(strings.NewReader(string(out)))
			require.NoError(t, err)
			assert.Equal(t, tt.remaining, contents(entries))
		})
	}

	t.Run("csv", func(t *testing.T) {
		input := "date,content\n2023-09-22,a\n2023-09-25,b\n"
		out, n, err := RemoveDate("log.csv", []byte(input), DefaultListField, "2023-09-25")
		require.NoError(t, err)
		assert.Equal(t, 1, n)
		assert.Equal(t, "date,content\n2023-09-22,a\n", string(out))
	})

	t.Run("unsupported extension", func(t *testing.T) {
		_, _, err := RemoveDate("log.txt", nil, DefaultListField, "2023-09-25")
		require.Error(t, err)
	})

	t.Run("malformed json", func(t *testing.T) {
		_, _, err := RemoveDate("log.json", []byte("{"), DefaultListField, "2023-09-25")
		require.Error(t, err)
	})
}

func TestNormalizeExtensions(t *testing.T) {
	assert.Empty(t, NormalizeExtensions(nil))
	assert.Equal(t, map[string]bool{".csv": true, ".json": true}, NormalizeExtensions([]string{"CSV", " .json ", "", ".JSON"}))
}
