package analysis

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/classifieds-cli/internal/model"
	"github.com/sells-group/classifieds-cli/pkg/anthropic"
)

// mockBackend implements Backend for testing.
type mockBackend struct {
	mock.Mock
}

func (m *mockBackend) Generate(ctx context.Context, req Request) (*Response, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Response), args.Error(1)
}

func (m *mockBackend) Model() string {
	return "test-model"
}

// mockClient implements anthropic.Client for testing.
type mockClient struct {
	mock.Mock
}

func (m *mockClient) CreateMessage(ctx context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*anthropic.MessageResponse), args.Error(1)
}

func testAd() *model.AdRecord {
	return &model.AdRecord{
		ID:          "2954271234",
		URL:         "https://www.kleinanzeigen.de/s-anzeige/akkuschrauber/2954271234-84-3331",
		Title:       model.StringPtr("Akkuschrauber Bosch GSR 18V"),
		Price:       model.StringPtr("80"),
		Description: model.StringPtr("Kaum benutzt."),
		Details:     map[string]string{"Zustand": "Gut", "Marke": "Bosch"},
		Location:    &model.Location{Address: "10115 Berlin - Mitte", ZipCode: "10115", City: "Berlin - Mitte"},
		Seller: model.Seller{
			Name:        "Max",
			Type:        "Privater Nutzer",
			MemberSince: "01.02.2019",
			Badges:      []string{"Freundlich", "Zuverlässig"},
			Profile: &model.SellerProfile{
				RatingPercentage: model.IntPtr(98),
				ReviewsCount:     model.IntPtr(143),
				ResponseTime:     "Antwortet in der Regel innerhalb von 10 Minuten",
			},
		},
		Images: []model.ImageAsset{},
	}
}

func payloads(n int) []ImagePayload {
	out := make([]ImagePayload, n)
	for i := range out {
		out[i] = ImagePayload{MediaType: "image/png", Data: []byte{byte(i)}}
	}
	return out
}
