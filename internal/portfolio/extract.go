package portfolio

import (
	"html"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/jwtham/folioharvest/internal/daterange"
	"github.com/jwtham/folioharvest/internal/export"
	"github.com/jwtham/folioharvest/internal/types"
)

var brTag = regexp.MustCompile(`(?i)<br\s*/?>`)
var anyTag = regexp.MustCompile(`<[^>]*>`)
var stickerFilePattern = regexp.MustCompile(`(?i)/([^/]+)\.(png|jpg|jpeg|gif)$`)

// sessionLikelyExpired detects the portal's login-expiry signature inside a
// modal: either a login widget mounted in place of the content, or a stuck
// "Loading..." bootbox with an empty body.
func sessionLikelyExpired(modal *goquery.Selection) bool {
	if modal.Find("#login-container").Length() > 0 {
		return true
	}
	title := strings.ToLower(strings.TrimSpace(modal.Find("h4.modal-title").First().Text()))
	body := modal.Find(".modal-body .bootbox-body")
	if body.Length() == 0 {
		return false
	}
	bodyText := strings.TrimSpace(strings.ReplaceAll(body.First().Text(), " ", " "))
	return title == "loading..." && bodyText == ""
}

// extractDetails pulls the structured payload out of an open foliette modal.
func extractDetails(modal *goquery.Selection, origin string) *types.ItemDetails {
	body := modal.Find(".view-foliette-modal-body").First()
	teacher, publishDate := extractTeacherAndDate(body)
	return &types.ItemDetails{
		Images:        extractImages(modal, origin),
		Content:       extractContent(body),
		Teacher:       teacher,
		PublishDate:   publishDate,
		LearningAreas: extractTitledList(body, "learning area"),
		Stickers:      extractStickers(body),
	}
}

// extractImages reads the modal carousel. Image order is preserved; captions
// come from the description span when present.
func extractImages(modal *goquery.Selection, origin string) []types.ItemImage {
	var images []types.ItemImage
	modal.Find("#carouselLinks a.bi-gallery-item").Each(func(i int, a *goquery.Selection) {
		href, ok := a.Attr("href")
		if !ok || strings.TrimSpace(href) == "" {
			return
		}
		u := resolveLink(origin, href)
		images = append(images, types.ItemImage{
			URL:            u,
			Caption:        strings.TrimSpace(a.Find("span.description").First().Text()),
			ExportFilename: export.ImageExportFilename(i, u),
		})
	})
	return images
}

// extractContent returns the text of the modal body's first paragraph with
// <br> tags rendered as newlines.
func extractContent(body *goquery.Selection) string {
	p := body.Find("p").First()
	if p.Length() == 0 {
		return ""
	}
	raw, err := p.Html()
	if err != nil {
		return strings.TrimSpace(p.Text())
	}
	raw = brTag.ReplaceAllString(raw, "\n")
	raw = anyTag.ReplaceAllString(raw, "")
	return strings.TrimSpace(html.UnescapeString(raw))
}

// extractTeacherAndDate reads the info paragraph sitting directly above the
// modal body's <hr>: the teacher name from its link and the publish date from
// its muted span.
func extractTeacherAndDate(body *goquery.Selection) (teacher, publishDate string) {
	hr := body.Find("hr").First()
	if hr.Length() == 0 {
		return "", ""
	}
	info := hr.PrevAll().FilterFunction(func(_ int, s *goquery.Selection) bool {
		return s.Is("p.top-lg") && s.Find("span.text-muted").Length() > 0
	}).First()
	if info.Length() == 0 {
		return "", ""
	}
	teacher = strings.TrimSpace(info.Find("a").First().Text())
	publishDate = daterange.ParseListingDate(info.Find("span.text-muted").First().Text())
	return teacher, publishDate
}

// extractTitledList finds the h5 heading with the given (lowercased) text and
// returns the texts of the next <ul>'s items.
func extractTitledList(body *goquery.Selection, heading string) []string {
	var out []string
	body.Find("h5").EachWithBreak(func(_ int, h *goquery.Selection) bool {
		if strings.ToLower(strings.TrimSpace(h.Text())) != heading {
			return true
		}
		h.NextAllFiltered("ul").First().Find("li").Each(func(_ int, li *goquery.Selection) {
			if text := strings.TrimSpace(li.Text()); text != "" {
				out = append(out, text)
			}
		})
		return false
	})
	return out
}

// extractStickers reads sticker names under the "Stickers" heading, from the
// image title or, failing that, the source filename.
func extractStickers(body *goquery.Selection) []string {
	var out []string
	body.Find("h5").EachWithBreak(func(_ int, h *goquery.Selection) bool {
		if strings.ToLower(strings.TrimSpace(h.Text())) != "stickers" {
			return true
		}
		h.NextAllFiltered("ul").First().Find("img.foliette-sticker").Each(func(_ int, img *goquery.Selection) {
			name := strings.TrimSpace(img.AttrOr("title", ""))
			if name == "" {
				src := img.AttrOr("src", "")
				if m := stickerFilePattern.FindStringSubmatch(src); m != nil {
					name = m[1]
				}
			}
			if name != "" {
				out = append(out, name)
			}
		})
		return false
	})
	return out
}
