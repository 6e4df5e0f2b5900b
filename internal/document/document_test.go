package document

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/docrefine/internal/geometry"
)

func sampleDocJSON() []byte {
	return []byte(`{
		"name": "sample",
		"texts": [
			{
				"label": "text",
				"text": "Hello world",
				"prov": [{"page_no": 1, "bbox": {"l": 10, "t": 20, "r": 110, "b": 40, "coord_origin": "TOPLEFT"}}]
			}
		],
		"tables": [
			{
				"prov": [{"page_no": 1, "bbox": {"l": 10, "t": 100, "r": 210, "b": 200, "coord_origin": "TOPLEFT"}}],
				"data": {
					"num_rows": 1,
					"num_cols": 2,
					"table_cells": [
						{"text": "a", "bbox": {"l": 10, "t": 100, "r": 110, "b": 200}, "start_row_offset_idx": 0, "start_col_offset_idx": 0},
						{"text": "b", "bbox": {"l": 110, "t": 100, "r": 210, "b": 200}, "start_row_offset_idx": 0, "start_col_offset_idx": 1}
					]
				}
			}
		],
		"pictures": [
			{"prov": [{"page_no": 1, "bbox": {"l": 0, "t": 300, "r": 50, "b": 350}}]}
		],
		"pages": {
			"1": {"page_no": 1, "size": {"width": 612, "height": 792}}
		}
	}`)
}

func TestParse(t *testing.T) {
	doc, err := Parse(sampleDocJSON())
	require.NoError(t, err)

	assert.Equal(t, "sample", doc.Name)
	require.Len(t, doc.Texts, 1)
	assert.Equal(t, "Hello world", doc.Texts[0].Text)

	prov, ok := FirstProv(doc.Texts[0])
	require.True(t, ok)
	assert.Equal(t, 1, prov.PageNo)
	assert.Equal(t, geometry.TopLeft, prov.BBox.Origin)
	assert.InDelta(t, 10.0, prov.BBox.L, 1e-9)

	require.Len(t, doc.Tables, 1)
	cells := doc.Tables[0].Data.TableCells
	require.Len(t, cells, 2)
	assert.Equal(t, 0, cells[0].StartRow)
	assert.Equal(t, 1, cells[1].StartCol)

	require.Contains(t, doc.Pages, 1)
	assert.InDelta(t, 612.0, doc.Pages[1].Size.Width, 1e-9)
}

func TestParse_Invalid(t *testing.T) {
	_, err := Parse([]byte("{not json"))
	assert.Error(t, err)
}

func TestRoundTrip(t *testing.T) {
	doc, err := Parse(sampleDocJSON())
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "doc.json")
	require.NoError(t, doc.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, doc, loaded)
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	assert.Error(t, err)
}

func TestFirstProv_Empty(t *testing.T) {
	_, ok := FirstProv(&TextItem{Text: "orphan"})
	assert.False(t, ok)
}

func TestNonTextItems(t *testing.T) {
	doc := &Document{
		Texts:         []*TextItem{{Text: "keep out"}},
		Tables:        []*TableItem{{}},
		Pictures:      []*PictureItem{{}, {}},
		FormItems:     []*FormItem{{}},
		KeyValueItems: []*KeyValueItem{{}},
	}

	items := doc.NonTextItems()
	assert.Len(t, items, 5, "pictures, forms, key-values and tables, never texts")
}

func TestPageNumbers_Sorted(t *testing.T) {
	doc := &Document{Pages: map[int]*Page{
		3: {PageNo: 3},
		1: {PageNo: 1},
		2: {PageNo: 2},
	}}
	assert.Equal(t, []int{1, 2, 3}, doc.PageNumbers())
}

func TestTableCellJSONFieldNames(t *testing.T) {
	data, err := json.Marshal(&TableCell{Text: "x", StartRow: 2, StartCol: 3})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"start_row_offset_idx":2`)
	assert.Contains(t, string(data), `"start_col_offset_idx":3`)
}
