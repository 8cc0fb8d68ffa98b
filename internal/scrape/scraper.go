package scrape

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/classifieds-cli/internal/dom"
	"github.com/sells-group/classifieds-cli/internal/model"
)

// Fetcher is the network capability the scraper needs.
type Fetcher interface {
	PageFetcher
	Downloader
}

// Store is the persistence capability the scraper needs.
type Store interface {
	ImageWriter
	SaveAd(ctx context.Context, ad *model.AdRecord) error
}

// Fields holds the outputs of the detail-page field rules.
type Fields struct {
	Title       *string
	Price       *string
	Description *string
	Details     map[string]string
	Location    *model.Location
}

// ExtractFields applies every detail-page rule. Rules are independent and
// never fail; a missing node yields an empty value.
func ExtractFields(doc dom.Document, sel Selectors) Fields {
	return Fields{
		Title:       ExtractTitle(doc, sel),
		Price:       ExtractPrice(doc, sel),
		Description: ExtractDescription(doc, sel),
		Details:     ExtractDetails(doc, sel),
		Location:    ExtractLocation(doc, sel),
	}
}

// Scraper runs the sequential listing pipeline: id, detail fetch, field
// rules, profile enrichment, images, assembly, persistence.
type Scraper struct {
	pages    PageFetcher
	sel      Selectors
	profiles *ProfileExtractor
	images   *ImageHarvester
	store    Store
	now      func() time.Time
}

// New creates a Scraper.
func New(f Fetcher, st Store, sel Selectors) *Scraper {
	return &Scraper{
		pages:    f,
		sel:      sel,
		profiles: NewProfileExtractor(f, sel),
		images:   NewImageHarvester(f, st, sel),
		store:    st,
		now:      time.Now,
	}
}

// WithClock overrides the timestamp source.
func (s *Scraper) WithClock(now func() time.Time) *Scraper {
	s.now = now
	return s
}

// Scrape extracts, persists, and returns the record for rawURL. A URL
// without an ad id fails before any network call; a failed detail fetch
// fails without writing anything.
func (s *Scraper) Scrape(ctx context.Context, rawURL string) (*model.AdRecord, error) {
	adID, err := ExtractAdID(rawURL)
	if err != nil {
		return nil, err
	}

	log := zap.L().With(zap.String("ad_id", adID))
	log.Info("scrape: fetching listing", zap.String("url", rawURL))

	doc, err := s.pages.Fetch(ctx, rawURL)
	if err != nil {
		return nil, eris.Wrapf(err, "scrape: fetch listing %s", adID)
	}

	fields := ExtractFields(doc, s.sel)
	if fields.Title == nil {
		log.Warn("scrape: title not found")
	}
	if fields.Price == nil {
		log.Warn("scrape: price not found")
	}

	seller := ExtractSellerStub(doc, s.sel)
	if seller.ProfileURL != "" {
		log.Info("scrape: fetching seller profile", zap.String("url", seller.ProfileURL))
		seller = MergeSeller(seller, s.profiles.Extract(ctx, seller.ProfileURL))
	}

	images := s.images.Harvest(ctx, doc, adID)

	rec := Assemble(adID, rawURL, s.now(), fields, seller, images)
	if err := s.store.SaveAd(ctx, rec); err != nil {
		return nil, eris.Wrapf(err, "scrape: save listing %s", adID)
	}

	log.Info("scrape: listing saved",
		zap.Int("details", len(rec.Details)),
		zap.Int("images", len(rec.Images)),
		zap.Bool("seller_profile", rec.Seller.HasProfile()),
	)
	return rec, nil
}

// Assemble builds the record and cleans detail keys of embedded newlines
// and surrounding whitespace. Keys that end up empty are dropped.
func Assemble(adID, rawURL string, scrapedAt time.Time, f Fields, seller model.Seller, images []model.ImageAsset) *model.AdRecord {
	details := make(map[string]string, len(f.Details))
	for k, v := range f.Details {
		key := strings.TrimSpace(strings.ReplaceAll(k, "\n", ""))
		if key == "" {
			continue
		}
		details[key] = v
	}
	if images == nil {
		images = []model.ImageAsset{}
	}
	return &model.AdRecord{
		ID:          adID,
		URL:         rawURL,
		ScrapedAt:   scrapedAt,
		Title:       f.Title,
		Price:       f.Price,
		Description: f.Description,
		Details:     details,
		Location:    f.Location,
		Seller:      seller,
		Images:      images,
	}
}
