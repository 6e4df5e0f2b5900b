package cmd

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/docrefine/internal/document"
)

// genTestDocCmd builds a converted-document skeleton from a PDF so the
// enhancement workflow can be exercised without the upstream conversion
// stage. Page sizes come from the PDF; page images are the PDF's embedded
// images, re-encoded as data URIs.
var genTestDocCmd = &cobra.Command{
	Use:   "gen-testdoc <input.pdf>",
	Short: "Generate a demo document skeleton from a PDF",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		output, _ := cmd.Flags().GetString("output")
		if output == "" {
			output = strings.TrimSuffix(args[0], filepath.Ext(args[0])) + ".json"
		}

		doc, err := buildSkeleton(args[0])
		if err != nil {
			return err
		}
		if err := doc.Save(output); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%d pages)\n", output, len(doc.Pages))
		return nil
	},
}

func buildSkeleton(pdfPath string) (*document.Document, error) {
	dims, err := api.PageDimsFile(pdfPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read page dimensions: %w", err)
	}

	pageImages, err := extractPageImages(pdfPath)
	if err != nil {
		return nil, err
	}

	doc := &document.Document{
		Name:     filepath.Base(pdfPath),
		Texts:    []*document.TextItem{},
		Tables:   []*document.TableItem{},
		Pictures: []*document.PictureItem{},
		Pages:    make(map[int]*document.Page, len(dims)),
	}
	for i, dim := range dims {
		pageNo := i + 1
		page := &document.Page{
			PageNo: pageNo,
			Size:   document.Size{Width: dim.Width, Height: dim.Height},
		}
		if img, ok := pageImages[pageNo]; ok {
			uri, err := document.EncodeDataURI(img)
			if err != nil {
				return nil, err
			}
			page.Image = &document.ImageRef{MimeType: "image/png", URI: uri}
		}
		doc.Pages[pageNo] = page
	}
	return doc, nil
}

// extractPageImages pulls embedded images out of the PDF and keeps the first
// image per page. pdfcpu names extracted files page_<num>_..*.
func extractPageImages(pdfPath string) (map[int]image.Image, error) {
	tempDir, err := os.MkdirTemp("", "docrefine-extract-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}
	defer func() { _ = os.RemoveAll(tempDir) }()

	if err := api.ExtractImagesFile(pdfPath, tempDir, nil, nil); err != nil {
		return nil, fmt.Errorf("failed to extract images from PDF: %w", err)
	}

	entries, err := os.ReadDir(tempDir)
	if err != nil {
		return nil, err
	}

	images := make(map[int]image.Image)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		pageNo, ok := parsePageFromFilename(entry.Name())
		if !ok {
			continue
		}
		if _, exists := images[pageNo]; exists {
			continue
		}
		img, err := loadImageFile(filepath.Join(tempDir, entry.Name()))
		if err != nil {
			continue
		}
		images[pageNo] = img
	}
	return images, nil
}

// parsePageFromFilename extracts the page number from a pdfcpu output name
// like page_3_Im0.png.
func parsePageFromFilename(name string) (int, bool) {
	parts := strings.Split(name, "_")
	if len(parts) < 2 || parts[0] != "page" {
		return 0, false
	}
	n, err := strconv.Atoi(parts[1])
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}

func loadImageFile(path string) (image.Image, error) {
	f, err := os.Open(path) //nolint:gosec // G304: reading files from our own temp dir
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	img, _, err := image.Decode(f)
	return img, err
}

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0o600)
}

func init() {
	genTestDocCmd.Flags().StringP("output", "o", "", "output document path (default: alongside the PDF)")

	rootCmd.AddCommand(genTestDocCmd)
}
