// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package contentsync

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Word sheet columns. The first row is a header and is matched by name,
// so column order in the sheet does not matter.
const (
	colID           = "id"
	colTerm         = "term"
	colLevel        = "level"
	colCategory     = "category"
	colFrequency    = "frequency_rank"
	colTags         = "tags"         // comma separated
	colTranslations = "translations" // "lang:text; lang:text", first is primary
	colDefinitions  = "definitions"  // "text | example; text | example"
)

// ImportWordsXLSX reads words from an XLSX workbook. An empty sheet name
// selects the first sheet.
func ImportWordsXLSX(r io.Reader, sheet string) ([]Word, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open workbook: %v", ErrInvalidContent, err)
	}
	defer func() { _ = f.Close() }()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("%w: workbook has no sheets", ErrInvalidContent)
		}
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read sheet %q: %v", ErrInvalidContent, sheet, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: sheet %q is empty", ErrInvalidContent, sheet)
	}

	header := make(map[string]int, len(rows[0]))
	for i, name := range rows[0] {
		header[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range []string{colID, colTerm} {
		if _, ok := header[required]; !ok {
			return nil, fmt.Errorf("%w: sheet %q has no %q column", ErrInvalidContent, sheet, required)
		}
	}

	words := make([]Word, 0, len(rows)-1)
	for n, row := range rows[1:] {
		cell := func(name string) string {
			i, ok := header[name]
			if !ok || i >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[i])
		}

		if cell(colID) == "" && cell(colTerm) == "" {
			continue
		}
		w := Word{
			ID:           cell(colID),
			Term:         cell(colTerm),
			Level:        cell(colLevel),
			Category:     cell(colCategory),
			Tags:         splitList(cell(colTags), ","),
			Translations: parseTranslations(cell(colTranslations)),
			Definitions:  parseDefinitions(cell(colDefinitions)),
		}
		if w.ID == "" {
			return nil, fmt.Errorf("%w: row %d has no id", ErrInvalidContent, n+2)
		}
		if rank := cell(colFrequency); rank != "" {
			v, err := strconv.Atoi(rank)
			if err != nil {
				return nil, fmt.Errorf("%w: row %d: bad frequency_rank %q", ErrInvalidContent, n+2, rank)
			}
			w.FrequencyRank = v
		}
		words = append(words, w)
	}
	return words, nil
}

func splitList(s, sep string) []string {
	out := []string{}
	for _, part := range strings.Split(s, sep) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseTranslations(s string) []Translation {
	out := []Translation{}
	for i, item := range splitList(s, ";") {
		lang, text, ok := strings.Cut(item, ":")
		if !ok {
			continue
		}
		out = append(out, Translation{
			Language: strings.TrimSpace(lang),
			Text:     strings.TrimSpace(text),
			Primary:  i == 0,
		})
	}
	return out
}

func parseDefinitions(s string) []Definition {
	out := []Definition{}
	for _, item := range splitList(s, ";") {
		text, example, _ := strings.Cut(item, "|")
		out = append(out, Definition{Text: strings.TrimSpace(text), Example: strings.TrimSpace(example)})
	}
	return out
}
