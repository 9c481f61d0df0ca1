package export

import (
	"bufio"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/AMEND09/ID-Scanner/internal/records"
)

var tableHeader = []string{"code", "timestamp", "success"}

// writeCSV quotes every field, which encoding/csv only does when a field needs it.
func writeCSV(w io.Writer, recs []records.Record, loc *time.Location) error {
	bw := bufio.NewWriter(w)
	writeCSVLine(bw, tableHeader)
	for _, e := range Entries(recs, DisplayLayout, loc) {
		bw.WriteByte('\n')
		writeCSVLine(bw, []string{e.Label, e.Timestamp, strconv.FormatBool(e.Succeeded)})
	}
	return bw.Flush()
}

func writeCSVLine(bw *bufio.Writer, fields []string) {
	for i, f := range fields {
		if i > 0 {
			bw.WriteByte(',')
		}
		bw.WriteByte('"')
		bw.WriteString(strings.ReplaceAll(f, `"`, `""`))
		bw.WriteByte('"')
	}
}
