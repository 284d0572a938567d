// text_extractor.go - Plain text from uploaded spreadsheets and text files

package processor

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/korean"
)

// ErrUndecodableText is returned when a .txt/.csv file is neither UTF-8 nor CP949.
var ErrUndecodableText = errors.New("file is neither UTF-8 nor CP949 encoded")

// UploadedFile is one multipart part held in memory for the lifetime of a request.
type UploadedFile struct {
	Name string
	Data []byte
}

// Ext returns the lower-cased extension including the dot.
func (f UploadedFile) Ext() string {
	return strings.ToLower(filepath.Ext(f.Name))
}

// IsSpreadsheet reports whether the file is an .xlsx workbook.
func (f UploadedFile) IsSpreadsheet() bool {
	return f.Ext() == ".xlsx"
}

var (
	utf8BOM          = []byte{0xEF, 0xBB, 0xBF}
	unnamedHeader    = regexp.MustCompile(`^Unnamed: \d+$`)
	missingCellMarks = map[string]bool{"nan": true, "NaN": true}
)

// ExtractText renders an uploaded file as plain text, dispatching on extension.
func ExtractText(file UploadedFile) (string, error) {
	switch file.Ext() {
	case ".xlsx":
		text, err := ExtractSpreadsheetText(file.Data)
		if err != nil {
			return "", fmt.Errorf("%s: %w", file.Name, err)
		}
		return text, nil
	case ".txt", ".csv":
		text, err := DecodeText(file.Data)
		if err != nil {
			return "", fmt.Errorf("%s: %w", file.Name, err)
		}
		return text, nil
	default:
		return strings.ToValidUTF8(string(file.Data), "�"), nil
	}
}

// DecodeText decodes UTF-8 (BOM tolerated) and falls back to CP949/EUC-KR.
func DecodeText(data []byte) (string, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	if utf8.Valid(data) {
		return string(data), nil
	}

	decoded, err := korean.EUCKR.NewDecoder().Bytes(data)
	if err != nil || bytes.ContainsRune(decoded, utf8.RuneError) {
		return "", ErrUndecodableText
	}
	return string(decoded), nil
}

// ExtractSpreadsheetText renders every sheet of an .xlsx workbook in order as a
// labelled block of " | "-separated rows.
func ExtractSpreadsheetText(data []byte) (string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	var sb strings.Builder
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return "", fmt.Errorf("read sheet %q: %w", sheet, err)
		}
		sb.WriteString(fmt.Sprintf("--- 시트: %s ---\n", sheet))
		sb.WriteString(renderGrid(rows))
		sb.WriteString("\n\n")
	}
	return sb.String(), nil
}

// renderGrid pads rows to a common width, blanks missing-value markers and
// auto-generated headers, and drops rows with no content.
func renderGrid(rows [][]string) string {
	width := 0
	for _, row := range rows {
		if len(row) > width {
			width = len(row)
		}
	}

	var lines []string
	header := true
	for _, row := range rows {
		cells := make([]string, width)
		blank := true
		for i, cell := range row {
			cell = strings.TrimSpace(cell)
			if missingCellMarks[cell] || (header && unnamedHeader.MatchString(cell)) {
				cell = ""
			}
			if cell != "" {
				blank = false
			}
			cells[i] = cell
		}
		if blank {
			continue
		}
		header = false
		lines = append(lines, strings.Join(cells, " | "))
	}
	return strings.Join(lines, "\n")
}
