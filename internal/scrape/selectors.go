// Package scrape turns a classifieds listing page and its seller profile
// page into a normalized AdRecord.
package scrape

import (
	_ "embed"
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

//go:embed selectors.yaml
var defaultSelectorsYAML []byte

// Selectors is the set of structural locators the field rules depend on.
// The source site changes its markup without notice; every field therefore
// carries an ordered list of fallbacks.
type Selectors struct {
	BaseURL string           `yaml:"base_url"`
	Detail  DetailSelectors  `yaml:"detail"`
	Profile ProfileSelectors `yaml:"profile"`
}

// DetailSelectors locate fields on the listing detail page.
type DetailSelectors struct {
	Title           []string `yaml:"title"`
	Price           []string `yaml:"price"`
	Description     []string `yaml:"description"`
	DetailsItems    []string `yaml:"details_items"`
	DetailsValue    string   `yaml:"details_value"`
	Locality        []string `yaml:"locality"`
	SellerName      []string `yaml:"seller_name"`
	SellerDetails   []string `yaml:"seller_details"`
	SellerBadges    []string `yaml:"seller_badges"`
	ProfileLink     []string `yaml:"profile_link"`
	GalleryImages   []string `yaml:"gallery_images"`
	ImageAttributes []string `yaml:"image_attributes"`
}

// ProfileSelectors locate fields on the seller profile page.
type ProfileSelectors struct {
	DetailsBlocks []string `yaml:"details_blocks"`
	DetailsText   string   `yaml:"details_text"`
	Rating        []string `yaml:"rating"`
	RatingCount   []string `yaml:"rating_count"`
}

// DefaultSelectors returns the built-in selector set.
func DefaultSelectors() Selectors {
	sel, err := parseSelectors(defaultSelectorsYAML)
	if err != nil {
		// The embedded file is part of the build.
		panic(err)
	}
	return *sel
}

// LoadSelectors reads a selector file. Sections or fields missing from the
// file keep their built-in values. An empty path returns the defaults.
func LoadSelectors(path string) (Selectors, error) {
	if path == "" {
		return DefaultSelectors(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Selectors{}, eris.Wrapf(err, "scrape: read selectors %s", path)
	}
	override, err := parseSelectors(data)
	if err != nil {
		return Selectors{}, err
	}
	return mergeSelectors(DefaultSelectors(), *override), nil
}

func parseSelectors(data []byte) (*Selectors, error) {
	// The YAML has a top-level "selectors" key
	var wrapper struct {
		Selectors Selectors `yaml:"selectors"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return nil, eris.Wrap(err, "scrape: parse selectors")
	}
	return &wrapper.Selectors, nil
}

func mergeSelectors(base, o Selectors) Selectors {
	pickS := func(b, v string) string {
		if v != "" {
			return v
		}
		return b
	}
	pickL := func(b, v []string) []string {
		if len(v) > 0 {
			return v
		}
		return b
	}

	base.BaseURL = pickS(base.BaseURL, o.BaseURL)

	d, od := &base.Detail, o.Detail
	d.Title = pickL(d.Title, od.Title)
	d.Price = pickL(d.Price, od.Price)
	d.Description = pickL(d.Description, od.Description)
	d.DetailsItems = pickL(d.DetailsItems, od.DetailsItems)
	d.DetailsValue = pickS(d.DetailsValue, od.DetailsValue)
	d.Locality = pickL(d.Locality, od.Locality)
	d.SellerName = pickL(d.SellerName, od.SellerName)
	d.SellerDetails = pickL(d.SellerDetails, od.SellerDetails)
	d.SellerBadges = pickL(d.SellerBadges, od.SellerBadges)
	d.ProfileLink = pickL(d.ProfileLink, od.ProfileLink)
	d.GalleryImages = pickL(d.GalleryImages, od.GalleryImages)
	d.ImageAttributes = pickL(d.ImageAttributes, od.ImageAttributes)

	p, op := &base.Profile, o.Profile
	p.DetailsBlocks = pickL(p.DetailsBlocks, op.DetailsBlocks)
	p.DetailsText = pickS(p.DetailsText, op.DetailsText)
	p.Rating = pickL(p.Rating, op.Rating)
	p.RatingCount = pickL(p.RatingCount, op.RatingCount)

	return base
}
