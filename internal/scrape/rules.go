package scrape

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/classifieds-cli/internal/dom"
	"github.com/sells-group/classifieds-cli/internal/model"
)

// ErrNoAdID is returned when no listing identifier can be parsed from a URL.
var ErrNoAdID = eris.New("scrape: no ad id in url")

var (
	adIDRe    = regexp.MustCompile(`/(\d+)-`)
	priceRe   = regexp.MustCompile(`\d+(?:\.\d+)?`)
	zipCityRe = regexp.MustCompile(`(\d{5})\s+(.+)`)
	userIDRe  = regexp.MustCompile(`userId=(\d+)`)
	digitsRe  = regexp.MustCompile(`\d+`)
)

const memberFrom = "Aktiv seit"

// ExtractAdID returns the first run of digits that follows a slash and
// precedes a hyphen in the URL path.
func ExtractAdID(rawURL string) (string, error) {
	path := rawURL
	if u, err := url.Parse(rawURL); err == nil && u.Path != "" {
		path = u.Path
	}
	m := adIDRe.FindStringSubmatch(path)
	if m == nil {
		return "", eris.Wrapf(ErrNoAdID, "url %q", rawURL)
	}
	return m[1], nil
}

// ExtractTitle returns the listing title, or nil.
func ExtractTitle(doc dom.Document, sel Selectors) *string {
	if text, ok := dom.FirstText(doc, sel.Detail.Title); ok {
		return model.StringPtr(text)
	}
	return nil
}

// ExtractPrice returns the normalized price, or nil when the price element
// is missing.
func ExtractPrice(doc dom.Document, sel Selectors) *string {
	text, ok := dom.FirstText(doc, sel.Detail.Price)
	if !ok {
		return nil
	}
	return model.StringPtr(NormalizePrice(text))
}

// NormalizePrice returns the first decimal number in text after converting
// comma decimals to dots. Text without a number is returned trimmed.
func NormalizePrice(text string) string {
	text = strings.TrimSpace(text)
	if m := priceRe.FindString(strings.ReplaceAll(text, ",", ".")); m != "" {
		return m
	}
	return text
}

// ExtractDescription returns the description text, or nil.
func ExtractDescription(doc dom.Document, sel Selectors) *string {
	if text, ok := dom.FirstText(doc, sel.Detail.Description); ok {
		return model.StringPtr(text)
	}
	return nil
}

// ExtractDetails pairs each details-list label with its value node. Items
// missing either half are dropped.
func ExtractDetails(doc dom.Document, sel Selectors) map[string]string {
	details := make(map[string]string)
	for _, item := range dom.FirstMatch(doc, sel.Detail.DetailsItems) {
		label := strings.TrimSpace(strings.TrimSuffix(item.OwnText(), ":"))
		if label == "" {
			continue
		}
		valueNode, ok := item.FindOne(sel.Detail.DetailsValue)
		if !ok {
			continue
		}
		value := valueNode.Text()
		if value == "" {
			continue
		}
		details[label] = value
	}
	return details
}

// ExtractLocation returns the locality. Zip code and city are split out
// only when the address starts with a five-digit code.
func ExtractLocation(doc dom.Document, sel Selectors) *model.Location {
	text, ok := dom.FirstText(doc, sel.Detail.Locality)
	if !ok {
		return nil
	}
	loc := &model.Location{Address: collapseSpace(text)}
	if m := zipCityRe.FindStringSubmatch(loc.Address); m != nil {
		loc.ZipCode = m[1]
		loc.City = m[2]
	}
	return loc
}

// ExtractSellerStub reads the shallow seller block of the detail page.
func ExtractSellerStub(doc dom.Document, sel Selectors) model.Seller {
	var seller model.Seller

	if name, ok := dom.FirstText(doc, sel.Detail.SellerName); ok {
		seller.Name = name
	}

	for _, node := range dom.FirstMatch(doc, sel.Detail.SellerDetails) {
		text := collapseSpace(node.Text())
		switch {
		case text == "":
		case strings.Contains(text, memberFrom):
			if seller.MemberSince == "" {
				seller.MemberSince = strings.TrimSpace(strings.Replace(text, memberFrom, "", 1))
			}
		case seller.Type == "":
			seller.Type = text
		}
	}

	seen := make(map[string]bool)
	for _, node := range dom.FirstMatch(doc, sel.Detail.SellerBadges) {
		badge := collapseSpace(node.Text())
		if badge == "" || seen[badge] {
			continue
		}
		seen[badge] = true
		seller.Badges = append(seller.Badges, badge)
	}

	for _, node := range dom.FirstMatch(doc, sel.Detail.ProfileLink) {
		href, ok := node.Attr("href")
		if !ok {
			continue
		}
		m := userIDRe.FindStringSubmatch(href)
		if m == nil {
			continue
		}
		profileURL, err := resolveURL(sel.BaseURL, href)
		if err != nil {
			continue
		}
		seller.UserID = m[1]
		seller.ProfileURL = profileURL
		break
	}

	return seller
}

// firstInt extracts the first run of digits in text.
func firstInt(text string) (int, bool) {
	m := digitsRe.FindString(text)
	if m == "" {
		return 0, false
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return 0, false
	}
	return n, true
}

func resolveURL(base, ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return ref, nil
	}
	b, err := url.Parse(base)
	if err != nil {
		return "", eris.Wrapf(err, "scrape: parse base url %q", base)
	}
	r, err := url.Parse(ref)
	if err != nil {
		return "", eris.Wrapf(err, "scrape: parse url %q", ref)
	}
	return b.ResolveReference(r).String(), nil
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
