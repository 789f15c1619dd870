// Package types defines the shared data model for crawled portal content.
package types

// ItemImage is a single image attached to a crawled item.
type ItemImage struct {
	URL            string `json:"url"`
	Caption        string `json:"caption,omitempty"`
	ExportFilename string `json:"export_filename"`
}

// AttendanceDay is one day's sign-in/sign-out record from the attendance
// table. Timestamps are normalized to "YYYY-MM-DD HH:MM:SS" (24-hour) where
// the source provides a time, or "YYYY-MM-DD" where it does not.
type AttendanceDay struct {
	Index            int    `json:"idx"`
	Date             string `json:"date"`
	RecordID         string `json:"record_id"`
	DropTimestamp    string `json:"drop_ts"`
	DropPerson       string `json:"drop_person"`
	DropComment      string `json:"drop_comment"`
	PickTimestamp    string `json:"pick_ts"`
	PickPerson       string `json:"pick_person"`
	PickComment      string `json:"pick_comment"`
	CheckInPhotoURL  string `json:"check_in_photo_url,omitempty"`
	CheckOutPhotoURL string `json:"check_out_photo_url,omitempty"`
}

// ItemDetails is the payload extracted by a detail processor. Which fields
// are populated depends on the content family: portfolio items carry learning
// areas and stickers, activity posts carry a fine-grained publish datetime,
// attendance months carry the per-day records.
type ItemDetails struct {
	Images          []ItemImage     `json:"images"`
	Content         string          `json:"content,omitempty"`
	Teacher         string          `json:"teacher,omitempty"`
	PublishDate     string          `json:"publish_date,omitempty"`
	PublishDatetime string          `json:"publish_datetime,omitempty"`
	LearningAreas   []string        `json:"learning_areas,omitempty"`
	Stickers        []string        `json:"stickers,omitempty"`
	Days            []AttendanceDay `json:"days,omitempty"`
}

// Item is one unit of crawlable content. Link is the unique key within a
// crawl run. PublishDate (YYYY-MM-DD) drives date-range filtering and must be
// populated at collection time for families that filter before visiting.
// Details is nil until the item has been successfully detail-processed.
type Item struct {
	Link        string `json:"link"`
	Title       string `json:"title"`
	PublishDate string `json:"publish_date"`

	// Family discriminators.
	ItemCode string `json:"item_code,omitempty"` // portfolio: wrapper id
	PostID   string `json:"post_id,omitempty"`   // activity: data-rid
	Kind     string `json:"kind,omitempty"`      // activity: "album" or "activity"
	Month    string `json:"month,omitempty"`     // attendance: YYYY-MM

	Details *ItemDetails `json:"details,omitempty"`
}

// HasDetails reports whether the item has been successfully detail-processed.
func (i Item) HasDetails() bool {
	return i.Details != nil
}
