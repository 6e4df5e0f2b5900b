// Package document models the layout-analyzed document produced by an
// upstream conversion stage: pages with rendered raster images, plus text,
// table, picture, form and key-value elements, each bound to a page through
// provenance records. The enhancement workflow mutates text and bounding box
// fields of existing elements in place; it never adds or removes elements.
package document

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/MeKo-Tech/docrefine/internal/geometry"
)

// Size is a physical page size in document units.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// ImageRef carries a rendered page image as a self-describing data URI
// (header segment, comma, encoded payload).
type ImageRef struct {
	MimeType string `json:"mimetype,omitempty"`
	URI      string `json:"uri"`
	Size     *Size  `json:"size,omitempty"`
}

// Page is one page of the converted document.
type Page struct {
	PageNo int       `json:"page_no"`
	Size   Size      `json:"size"`
	Image  *ImageRef `json:"image,omitempty"`
}

// Provenance binds an element to one source page and one bounding box.
type Provenance struct {
	PageNo int           `json:"page_no"`
	BBox   geometry.BBox `json:"bbox"`
}

// Item is implemented by every element kind that carries provenance. The
// first record is authoritative for per-page filtering.
type Item interface {
	Provenance() []Provenance
}

// FirstProv returns the authoritative provenance record of an item, or false
// when the item carries none.
func FirstProv(it Item) (Provenance, bool) {
	prov := it.Provenance()
	if len(prov) == 0 {
		return Provenance{}, false
	}
	return prov[0], true
}

// TextItem is a free text span.
type TextItem struct {
	Label string       `json:"label,omitempty"`
	Text  string       `json:"text"`
	Prov  []Provenance `json:"prov,omitempty"`
}

func (t *TextItem) Provenance() []Provenance { return t.Prov }

// TableCell is one cell of a table grid. Cells are matched against external
// structural predictions by their (row, col) start offsets; the pair is only
// unique within one table.
type TableCell struct {
	Text     string        `json:"text"`
	BBox     geometry.BBox `json:"bbox"`
	StartRow int           `json:"start_row_offset_idx"`
	StartCol int           `json:"start_col_offset_idx"`
}

// TableData holds the structured cell grid of a table element.
type TableData struct {
	NumRows    int          `json:"num_rows,omitempty"`
	NumCols    int          `json:"num_cols,omitempty"`
	TableCells []*TableCell `json:"table_cells"`
}

// TableItem is a table element.
type TableItem struct {
	Prov []Provenance `json:"prov,omitempty"`
	Data TableData    `json:"data"`
}

func (t *TableItem) Provenance() []Provenance { return t.Prov }

// PictureItem is an image/figure element.
type PictureItem struct {
	Prov []Provenance `json:"prov,omitempty"`
}

func (p *PictureItem) Provenance() []Provenance { return p.Prov }

// FormItem is a form region element.
type FormItem struct {
	Prov []Provenance `json:"prov,omitempty"`
}

func (f *FormItem) Provenance() []Provenance { return f.Prov }

// KeyValueItem is a key-value region element.
type KeyValueItem struct {
	Prov []Provenance `json:"prov,omitempty"`
}

func (k *KeyValueItem) Provenance() []Provenance { return k.Prov }

// Document is the structured result of the upstream conversion stage.
type Document struct {
	Name          string          `json:"name,omitempty"`
	Texts         []*TextItem     `json:"texts"`
	Tables        []*TableItem    `json:"tables"`
	Pictures      []*PictureItem  `json:"pictures"`
	FormItems     []*FormItem     `json:"form_items,omitempty"`
	KeyValueItems []*KeyValueItem `json:"key_value_items,omitempty"`
	Pages         map[int]*Page   `json:"pages"`
}

// NonTextItems returns the elements whose pixel regions occlude genuine text:
// pictures, form items, key-value items and tables. Text overlapping any of
// them is presumed baked into a figure rather than a real text layer.
func (d *Document) NonTextItems() []Item {
	items := make([]Item, 0, len(d.Pictures)+len(d.FormItems)+len(d.KeyValueItems)+len(d.Tables))
	for _, p := range d.Pictures {
		items = append(items, p)
	}
	for _, f := range d.FormItems {
		items = append(items, f)
	}
	for _, k := range d.KeyValueItems {
		items = append(items, k)
	}
	for _, t := range d.Tables {
		items = append(items, t)
	}
	return items
}

// PageNumbers returns the document's page numbers in ascending order.
func (d *Document) PageNumbers() []int {
	nums := make([]int, 0, len(d.Pages))
	for n := range d.Pages {
		nums = append(nums, n)
	}
	sort.Ints(nums)
	return nums
}

// Parse decodes a document from its JSON representation.
func Parse(data []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse document: %w", err)
	}
	return &doc, nil
}

// Load reads and decodes a document from a JSON file.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: reading user-provided document path is expected
	if err != nil {
		return nil, fmt.Errorf("failed to read document: %w", err)
	}
	return Parse(data)
}

// Save writes the document as indented JSON.
func (d *Document) Save(path string) error {
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode document: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write document: %w", err)
	}
	return nil
}
