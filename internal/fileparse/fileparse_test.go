package fileparse

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestParseCSVNormalizesHeadersAndRows(t *testing.T) {
	data := "\xEF\xBB\xBFStudent Name,Class-Code,T.Shirt Size\n" +
		"Ada Lovelace,MATH-101,M\n" +
		"\n" +
		"Grace Hopper,CS-101\n"

	table, err := Parse("roster.csv", []byte(data))
	require.NoError(t, err)
	require.Equal(t, "csv", table.Kind)
	require.Equal(t, []string{"student_name", "class_code", "t_shirt_size"}, table.Headers)
	require.Equal(t, []string{"Student Name", "Class-Code", "T.Shirt Size"}, table.RawHeaders)

	require.Len(t, table.Rows, 2)
	require.Equal(t, 1, table.Rows[0].Number)
	require.Equal(t, "Ada Lovelace", table.Rows[0].Cells["student_name"])
	// Short rows are padded so every cell is addressable.
	require.Equal(t, "", table.Rows[1].Cells["t_shirt_size"])
}

func TestParseCSVDeduplicatesHeaders(t *testing.T) {
	data := "name,name,\n" +
		"a,b,c\n"

	table, err := Parse("dup.csv", []byte(data))
	require.NoError(t, err)
	require.Equal(t, []string{"name", "name_2", "column_3"}, table.Headers)
	require.Equal(t, "a", table.Rows[0].Cells["name"])
	require.Equal(t, "b", table.Rows[0].Cells["name_2"])
}

func TestParseCSVSkipsEntirelyEmptyRows(t *testing.T) {
	data := "name\n" +
		"Ada\n" +
		",\n" +
		"Grace\n"

	table, err := Parse("gaps.csv", []byte(data))
	require.NoError(t, err)
	require.Len(t, table.Rows, 2)
}

func TestParseRejectsUnsupportedExtension(t *testing.T) {
	_, err := Parse("roster.pdf", []byte("%PDF-1.4"))
	require.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestParseRejectsEmptyPayload(t *testing.T) {
	_, err := Parse("roster.csv", nil)
	require.ErrorIs(t, err, ErrStructural)
}

func TestParseRejectsHeaderlessFile(t *testing.T) {
	_, err := Parse("blank.csv", []byte("\n , ,\n"))
	require.ErrorIs(t, err, ErrStructural)
}

func TestParseXLSXFirstSheet(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]any{"Student Name", "Class Code"}))
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]any{"Ada Lovelace", "MATH-101"}))

	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))

	table, err := Parse("roster.xlsx", buf.Bytes())
	require.NoError(t, err)
	require.Equal(t, "xlsx", table.Kind)
	require.Equal(t, []string{"student_name", "class_code"}, table.Headers)
	require.Len(t, table.Rows, 1)
	require.Equal(t, "MATH-101", table.Rows[0].Cells["class_code"])
}
