package export

import (
	"encoding/csv"
	"strconv"
	"strings"

	"github.com/jwtham/folioharvest/internal/types"
)

// attendanceColumns is the column order of attendance CSV exports. Photo
// URLs are left out; they live in the JSON alongside the CSV.
var attendanceColumns = []string{
	"idx",
	"date",
	"button_id",
	"drop_ts",
	"drop_person",
	"drop_comment",
	"pick_ts",
	"pick_person",
	"pick_comment",
}

// AttendanceCSV renders one month's records as CSV, header included.
func AttendanceCSV(days []types.AttendanceDay) (string, error) {
	var sb strings.Builder
	w := csv.NewWriter(&sb)

	if err := w.Write(attendanceColumns); err != nil {
		return "", err
	}
	for _, day := range days {
		row := []string{
			strconv.Itoa(day.Index),
			day.Date,
			day.RecordID,
			day.DropTimestamp,
			day.DropPerson,
			day.DropComment,
			day.PickTimestamp,
			day.PickPerson,
			day.PickComment,
		}
		if err := w.Write(row); err != nil {
			return "", err
		}
	}
	w.Flush()
	return sb.String(), w.Error()
}
