package spreadsheet

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/invoice-agent/internal/core/domain"
)

type Reader struct {
	maxFileSize int64
}

func NewReader(maxFileSize int64) *Reader {
	if maxFileSize <= 0 {
		maxFileSize = domain.DefaultMaxFileSize
	}
	return &Reader{maxFileSize: maxFileSize}
}

// ReadRows returns the first sheet as header-keyed rows. Missing cells are "".
func (r *Reader) ReadRows(ctx context.Context, path string) ([]map[string]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, domain.WrapError(domain.ErrFileRead, "stat workbook", err)
	}
	if info.Size() > r.maxFileSize {
		return nil, domain.WrapError(domain.ErrFileTooLarge, "stat workbook",
			fmt.Errorf("%d bytes exceeds limit of %d", info.Size(), r.maxFileSize))
	}

	book, err := excelize.OpenFile(path)
	if err != nil {
		return nil, domain.WrapError(domain.ErrFileRead, "open workbook", err)
	}
	defer book.Close()

	sheets := book.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil
	}
	grid, err := book.GetRows(sheets[0])
	if err != nil {
		return nil, domain.WrapError(domain.ErrFileRead, "read sheet "+sheets[0], err)
	}
	if len(grid) == 0 {
		return nil, nil
	}

	header := make([]string, len(grid[0]))
	for i, name := range grid[0] {
		header[i] = strings.TrimSpace(name)
	}

	rows := make([]map[string]string, 0, len(grid)-1)
	for _, cells := range grid[1:] {
		if blank(cells) {
			continue
		}
		row := make(map[string]string, len(header))
		for i, name := range header {
			if name == "" {
				continue
			}
			value := ""
			if i < len(cells) {
				value = cells[i]
			}
			row[name] = value
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func blank(cells []string) bool {
	for _, cell := range cells {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
