package scrape

import (
	"context"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/classifieds-cli/internal/dom"
	"github.com/sells-group/classifieds-cli/internal/model"
)

// PageFetcher retrieves and parses an HTML page.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (dom.Document, error)
}

var (
	adsCountRe = regexp.MustCompile(`(\d+)\s+Anzeigen`)
	ratingRe   = regexp.MustCompile(`(\d+)\s*%`)
)

// Label phrases used on the profile page.
const (
	labelPrivateUser    = "Privater Nutzer"
	labelCommercialUser = "Gewerblicher Nutzer"
	labelResponseTime   = "Antwortet in der Regel innerhalb von"
	labelFollower       = "Follower"
	labelAddress        = "Adresse:"
	labelPhone          = "Telefon:"
)

// ProfileExtractor enriches a seller from the seller's profile page. It is
// optional: failures are logged and yield no profile.
type ProfileExtractor struct {
	pages PageFetcher
	sel   Selectors
}

// NewProfileExtractor creates a ProfileExtractor.
func NewProfileExtractor(pages PageFetcher, sel Selectors) *ProfileExtractor {
	return &ProfileExtractor{pages: pages, sel: sel}
}

// Extract fetches and parses profileURL. It returns nil on any failure.
func (p *ProfileExtractor) Extract(ctx context.Context, profileURL string) *model.SellerProfile {
	if profileURL == "" {
		return nil
	}
	doc, err := p.pages.Fetch(ctx, profileURL)
	if err != nil {
		zap.L().Warn("scrape: seller profile fetch failed, continuing without profile",
			zap.String("url", profileURL),
			zap.Error(err),
		)
		return nil
	}
	return ParseProfile(doc, p.sel)
}

// ParseProfile classifies the profile page's detail blocks by label phrase.
func ParseProfile(doc dom.Document, sel Selectors) *model.SellerProfile {
	profile := &model.SellerProfile{}

	for _, block := range dom.FirstMatch(doc, sel.Profile.DetailsBlocks) {
		node, ok := block.FindOne(sel.Profile.DetailsText)
		if !ok {
			continue
		}
		text := collapseSpace(node.Text())
		switch {
		case text == "":
		case strings.Contains(text, labelPrivateUser) || strings.Contains(text, labelCommercialUser):
			profile.UserType = text
		case strings.Contains(text, memberFrom):
			profile.MemberSince = strings.TrimSpace(strings.Replace(text, memberFrom, "", 1))
		case strings.Contains(text, labelResponseTime):
			profile.ResponseTime = text
		case strings.Contains(text, labelFollower):
			if n, ok := firstInt(text); ok {
				profile.FollowersCount = model.IntPtr(n)
			}
		case strings.Contains(text, labelAddress):
			profile.Address = strings.TrimSpace(strings.Replace(text, labelAddress, "", 1))
		case strings.Contains(text, labelPhone):
			profile.Phone = strings.TrimSpace(strings.Replace(text, labelPhone, "", 1))
		}
	}

	// Sellers with a single listing have no count in the title.
	activeAds := 1
	if title, ok := doc.FindOne("title"); ok {
		if m := adsCountRe.FindStringSubmatch(title.Text()); m != nil {
			if n, ok := firstInt(m[1]); ok {
				activeAds = n
			}
		}
	}
	profile.ActiveAdsCount = model.IntPtr(activeAds)

	if text, ok := dom.FirstText(doc, sel.Profile.Rating); ok {
		if m := ratingRe.FindStringSubmatch(text); m != nil {
			if n, ok := firstInt(m[1]); ok {
				profile.RatingPercentage = model.IntPtr(min(n, 100))
			}
		}
		if countText, ok := dom.FirstText(doc, sel.Profile.RatingCount); ok {
			if n, ok := firstInt(countText); ok {
				profile.ReviewsCount = model.IntPtr(n)
			}
		}
	}

	return profile
}

// MergeSeller attaches profile to the detail-page stub. Profile values win
// for member-since and seller type when present; stub values are kept
// otherwise.
func MergeSeller(stub model.Seller, profile *model.SellerProfile) model.Seller {
	if profile == nil {
		return stub
	}
	merged := stub
	if profile.MemberSince != "" {
		merged.MemberSince = profile.MemberSince
	}
	if profile.UserType != "" {
		merged.Type = profile.UserType
	}
	merged.Profile = profile
	return merged
}
