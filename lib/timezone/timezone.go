package timezone

import (
	"time"
	_ "time/tzdata"
)

var Location *time.Location

func init() {
	var err error
	Location, err = time.LoadLocation("Asia/Tokyo")
	if err != nil {
		panic(err)
	}
}

// the portal prints every timestamp in japan time without an offset,
// so all parsing and "now" comparisons must happen in this location.
func Now() time.Time {
	return time.Now().In(Location)
}

// Parse parses a portal timestamp formatted like "2024/01/29 14:35".
func Parse(text string) (time.Time, error) {
	return time.ParseInLocation("2006/01/02 15:04", text, Location)
}
