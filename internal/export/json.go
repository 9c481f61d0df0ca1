package export

import (
	"encoding/json"
	"io"
	"time"

	"github.com/AMEND09/ID-Scanner/internal/records"
)

func writeJSON(w io.Writer, recs []records.Record, loc *time.Location) error {
	data, err := json.MarshalIndent(Entries(recs, time.RFC3339, loc), "", "  ")
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}
