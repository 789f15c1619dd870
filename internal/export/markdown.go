package export

import (
	"strings"

	"github.com/jwtham/folioharvest/internal/types"
)

// ItemMarkdown renders an item as the README that accompanies its images in
// an export archive. Sections are always present so exported folders have a
// uniform shape regardless of which fields the item carries; empty sections
// say "N.A.".
func ItemMarkdown(item types.Item) string {
	var lines []string
	push := func(ss ...string) { lines = append(lines, ss...) }

	title := item.Title
	if title == "" {
		title = "Untitled"
	}
	push("## "+title, "")

	// The portal does not record objectives; the heading keeps the layout
	// aligned with albums exported from other sources.
	push("### Objectives", "", "N.A.", "")

	push("### Description", "")
	if d := item.Details; d != nil && d.Content != "" {
		push(d.Content)
	} else {
		push("N.A.")
	}
	push("")

	push("### Developments", "")
	if d := item.Details; d != nil && len(d.LearningAreas) > 0 {
		for _, area := range d.LearningAreas {
			push("- " + area)
		}
	} else {
		push("N.A.")
	}
	push("")

	push("### Meta", "")
	if d := item.Details; d != nil && d.Teacher != "" {
		push("Teacher: "+d.Teacher, "")
	}
	publishDate := "N.A."
	publishDatetime := ""
	if d := item.Details; d != nil {
		if d.PublishDate != "" {
			publishDate = d.PublishDate
		}
		publishDatetime = d.PublishDatetime
	}
	if publishDatetime == "" {
		publishDatetime = publishDate
	}
	// The portal only records when an item was published, so the publish
	// date stands in for the activity date until edited by hand.
	push("Activity Timestamp: "+publishDatetime, "Publish Timestamp: "+publishDate, "")

	push("### Stickers", "")
	if d := item.Details; d != nil && len(d.Stickers) > 0 {
		for _, sticker := range d.Stickers {
			push("- " + sticker)
		}
	} else {
		push("N.A.")
	}
	push("")

	push("### Captions", "")
	if d := item.Details; d != nil && len(d.Images) > 0 {
		for _, image := range d.Images {
			push("!["+image.Caption+"]("+image.ExportFilename+")", "")
		}
	} else {
		push("N.A.", "")
	}

	return strings.Join(lines, "\n")
}
