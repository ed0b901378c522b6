package parser

import (
	"archive/zip"
	"fmt"
	"html"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"policy-rag/internal/models"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
	"github.com/rs/zerolog/log"
	"github.com/xuri/excelize/v2"
)

const defaultPageNumber = 1

type parseFunc func(filePath string) ([]models.Document, error)

var parsers = map[string]parseFunc{
	".pdf":  parsePDF,
	".docx": parseDOCX,
	".pptx": parsePPTX,
	".xlsx": parseXLSX,
	".xlsm": parseXLSX,
	".txt":  parseText,
	".md":   parseText,
}

// Supported reports whether filePath has an extension LoadFile understands.
func Supported(filePath string) bool {
	_, ok := parsers[strings.ToLower(filepath.Ext(filePath))]
	return ok
}

// LoadDirectory loads every supported file in dir, in filename order.
// Files that fail to parse are skipped; only an unreadable dir is an error.
func LoadDirectory(dir string) ([]models.Document, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read directory %s: %v", models.ErrLoad, dir, err)
	}

	docs := []models.Document{}
	for _, entry := range entries {
		if entry.IsDir() || !Supported(entry.Name()) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		fileDocs, err := LoadFile(path)
		if err != nil {
			log.Warn().Err(err).Str("file", path).Msg("Skipping unreadable document")
			continue
		}
		docs = append(docs, fileDocs...)
	}

	log.Debug().Str("dir", dir).Int("documents", len(docs)).Msg("Loaded directory")
	return docs, nil
}

// LoadFile parses a single file into one Document per page, slide or sheet.
func LoadFile(filePath string) (docs []models.Document, err error) {
	ext := strings.ToLower(filepath.Ext(filePath))
	parse, ok := parsers[ext]
	if !ok {
		return nil, fmt.Errorf("%w: unsupported file format: %s", models.ErrLoad, ext)
	}

	// the pdf reader panics on some malformed inputs
	defer func() {
		if r := recover(); r != nil {
			docs = nil
			err = fmt.Errorf("%w: parser panic on %s: %v", models.ErrLoad, filePath, r)
		}
	}()

	docs, err = parse(filePath)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse %s: %v", models.ErrLoad, filePath, err)
	}
	return docs, nil
}

// Join concatenates the content of docs page by page.
func Join(docs []models.Document) string {
	parts := make([]string, 0, len(docs))
	for _, d := range docs {
		parts = append(parts, d.Content)
	}
	return strings.Join(parts, "\n")
}

func parsePDF(filePath string) ([]models.Document, error) {
	f, r, err := pdf.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	source := filepath.Base(filePath)
	numPages := r.NumPage()
	docs := make([]models.Document, 0, numPages)
	for i := 1; i <= numPages; i++ {
		page := r.Page(i)
		text := ""
		if !page.V.IsNull() {
			text, err = page.GetPlainText(nil)
			if err != nil {
				return nil, fmt.Errorf("page %d: %w", i, err)
			}
		}
		// blank pages still count as pages
		docs = append(docs, models.Document{Content: text, Source: source, Page: i})
	}
	return docs, nil
}

var (
	paragraphEnd = regexp.MustCompile(`</w:p>`)
	xmlTag       = regexp.MustCompile(`<[^>]+>`)
)

func parseDOCX(filePath string) ([]models.Document, error) {
	r, err := docx.ReadDocxFile(filePath)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	content := r.Editable().GetContent()
	content = paragraphEnd.ReplaceAllString(content, "\n")
	content = html.UnescapeString(xmlTag.ReplaceAllString(content, ""))
	return []models.Document{{
		Content: strings.TrimSpace(content),
		Source:  filepath.Base(filePath),
		Page:    defaultPageNumber, // DOCX has no page numbers
	}}, nil
}

var slideName = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)

func parsePPTX(filePath string) ([]models.Document, error) {
	f, err := zip.OpenReader(filePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	type slide struct {
		num  int
		file *zip.File
	}
	var slides []slide
	for _, file := range f.File {
		m := slideName.FindStringSubmatch(file.Name)
		if m == nil {
			continue
		}
		n, _ := strconv.Atoi(m[1])
		slides = append(slides, slide{num: n, file: file})
	}
	// zip order is arbitrary and slide10 sorts before slide2 lexically
	sort.Slice(slides, func(i, j int) bool { return slides[i].num < slides[j].num })

	source := filepath.Base(filePath)
	docs := make([]models.Document, 0, len(slides))
	for _, s := range slides {
		rc, err := s.file.Open()
		if err != nil {
			return nil, err
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, err
		}
		docs = append(docs, models.Document{
			Content: extractTextFromXML(string(data)),
			Source:  source,
			Page:    s.num,
		})
	}
	return docs, nil
}

func parseXLSX(filePath string) ([]models.Document, error) {
	f, err := excelize.OpenFile(filePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	source := filepath.Base(filePath)
	var docs []models.Document
	for sheetNum, sheetName := range f.GetSheetList() {
		rows, err := f.GetRows(sheetName)
		if err != nil {
			return nil, fmt.Errorf("sheet %s: %w", sheetName, err)
		}
		var text strings.Builder
		fmt.Fprintf(&text, "## Sheet: %s\n", sheetName)
		for _, row := range rows {
			text.WriteString(strings.Join(row, "\t"))
			text.WriteString("\n")
		}
		docs = append(docs, models.Document{
			Content: text.String(),
			Source:  source,
			Page:    sheetNum + 1, // 1-based indexing
		})
	}
	return docs, nil
}

func parseText(filePath string) ([]models.Document, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	return []models.Document{{
		Content: string(data),
		Source:  filepath.Base(filePath),
		Page:    defaultPageNumber,
	}}, nil
}

// extractTextFromXML collects the <a:t> runs of a DrawingML slide.
func extractTextFromXML(xmlContent string) string {
	var text strings.Builder
	parts := strings.Split(xmlContent, "<a:t>")
	for i, part := range parts {
		if i == 0 {
			continue
		}
		endIdx := strings.Index(part, "</a:t>")
		if endIdx >= 0 {
			if text.Len() > 0 {
				text.WriteString(" ")
			}
			text.WriteString(html.UnescapeString(part[:endIdx]))
		}
	}
	return text.String()
}
