package export

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/conorfennell/quizgen/internal/domain"
	"github.com/xuri/excelize/v2"
)

// headerRows mirrors the two records encoded in Header.
var headerRows = [][]string{
	{"Blooket\nImport Template", "", "", "", "", "", "", ""},
	{
		"Question #",
		"Question Text",
		"Answer 1",
		"Answer 2",
		"Answer 3\n(Optional)",
		"Answer 4\n(Optional)",
		"Time Limit (sec)\n(Max: 300 seconds)",
		"Correct Answer(s)\n(Only include Answer #)",
	},
}

// WriteXLSX writes set as a single-sheet workbook laid out like the CSV
// template: two header rows followed by one row per question.
func WriteXLSX(w io.Writer, set domain.QuestionSet) error {
	if len(set.Questions) == 0 {
		return ErrEmptySet
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	sheet := f.GetSheetName(0)

	for r, header := range headerRows {
		for c, h := range header {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+1)
			_ = f.SetCellValue(sheet, cell, h)
		}
	}

	for i, q := range set.Questions {
		row := i + len(headerRows) + 1
		timeLimit := q.TimeLimit
		if timeLimit == 0 {
			timeLimit = domain.DefaultTimeLimit
		}
		values := []any{
			i + 1,
			q.Text,
			q.Choice1,
			q.Choice2,
			q.Choice3,
			q.Choice4,
			timeLimit,
			xlsxCorrect(q.Correct),
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			_ = f.SetCellValue(sheet, cell, v)
		}
	}
	_ = f.SetColWidth(sheet, "B", "F", 28)

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write excel: %w", err)
	}
	return nil
}

// xlsxCorrect is CorrectField without CSV quoting; a single answer stays
// numeric so spreadsheet tools do not flag it as text.
func xlsxCorrect(correct []int) any {
	field := strings.Trim(CorrectField(correct), `"`)
	if n, err := strconv.Atoi(field); err == nil {
		return n
	}
	return field
}
