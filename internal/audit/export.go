package audit

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"
)

// WriteCSV serialises timeline entries, oldest last, as CSV.
func WriteCSV(w io.Writer, entries []Entry) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()
	if err := writer.Write([]string{"ID", "Admin ID", "Admin Email", "Action", "Created At"}); err != nil {
		return err
	}
	for _, e := range entries {
		if err := writer.Write([]string{
			strconv.FormatInt(e.ID, 10),
			strconv.FormatInt(e.AdminID, 10),
			e.AdminEmail,
			e.Action,
			e.CreatedAt.UTC().Format(time.RFC3339),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}
