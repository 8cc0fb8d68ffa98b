package model

import "time"

// AdRecord is the normalized representation of one scraped listing.
// It is rebuilt from scratch on every scrape and replaces any earlier
// record stored under the same ID.
type AdRecord struct {
	ID          string            `json:"id"`
	URL         string            `json:"url"`
	ScrapedAt   time.Time         `json:"scraped_at"`
	Title       *string           `json:"title"`
	Price       *string           `json:"price"`
	Description *string           `json:"description"`
	Details     map[string]string `json:"details"`
	Location    *Location         `json:"location"`
	Seller      Seller            `json:"seller"`
	Images      []ImageAsset      `json:"images"`
}

// Location holds the listing's locality. ZipCode and City are only set when
// the address starts with a five-digit postal code.
type Location struct {
	Address string `json:"address"`
	ZipCode string `json:"zip_code,omitempty"`
	City    string `json:"city,omitempty"`
}

// Seller combines the shallow seller stub from the detail page with the
// optional profile-page enrichment.
type Seller struct {
	Name        string         `json:"name,omitempty"`
	Type        string         `json:"type,omitempty"`
	MemberSince string         `json:"member_since,omitempty"`
	Badges      []string       `json:"badges,omitempty"`
	UserID      string         `json:"user_id,omitempty"`
	ProfileURL  string         `json:"profile_url,omitempty"`
	Profile     *SellerProfile `json:"profile,omitempty"`
}

// HasProfile reports whether profile-page enrichment succeeded.
func (s Seller) HasProfile() bool {
	return s.Profile != nil
}

// SellerProfile is the field set parsed from the seller's profile page.
// Nil numeric pointers mean the value was not found.
type SellerProfile struct {
	UserType         string `json:"user_type,omitempty"`
	MemberSince      string `json:"member_since,omitempty"`
	ResponseTime     string `json:"response_time,omitempty"`
	FollowersCount   *int   `json:"followers_count,omitempty"`
	Address          string `json:"address,omitempty"`
	Phone            string `json:"phone,omitempty"`
	ActiveAdsCount   *int   `json:"active_ads_count,omitempty"`
	RatingPercentage *int   `json:"rating_percentage,omitempty"`
	ReviewsCount     *int   `json:"reviews_count,omitempty"`
}

// ImageAsset is the manifest entry for one downloaded gallery image.
// Filename is {adID}_{seq}{ext} with a 1-based gallery sequence.
type ImageAsset struct {
	Filename    string `json:"filename"`
	OriginalURL string `json:"original_url"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	SizeBytes   int64  `json:"size_bytes"`
}

// ImageFilenames returns the stored filenames in gallery order.
func (a *AdRecord) ImageFilenames() []string {
	names := make([]string, 0, len(a.Images))
	for _, img := range a.Images {
		names = append(names, img.Filename)
	}
	return names
}

// TitleOr returns the title or fallback when the title was not found.
func (a *AdRecord) TitleOr(fallback string) string {
	return deref(a.Title, fallback)
}

// PriceOr returns the price or fallback when the price was not found.
func (a *AdRecord) PriceOr(fallback string) string {
	return deref(a.Price, fallback)
}

// DescriptionOr returns the description or fallback.
func (a *AdRecord) DescriptionOr(fallback string) string {
	return deref(a.Description, fallback)
}

func deref(s *string, fallback string) string {
	if s == nil || *s == "" {
		return fallback
	}
	return *s
}

// StringPtr returns a pointer to s.
func StringPtr(s string) *string {
	return &s
}

// IntPtr returns a pointer to n.
func IntPtr(n int) *int {
	return &n
}
