package analysis

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
)

// MockModel is the model name reported by MockBackend.
const MockModel = "mock"

// MockBackend answers without network access. The text depends only on the
// request, so identical requests produce identical output.
type MockBackend struct{}

// NewMockBackend creates a MockBackend.
func NewMockBackend() *MockBackend {
	return &MockBackend{}
}

func (b *MockBackend) Model() string {
	return MockModel
}

func (b *MockBackend) Generate(_ context.Context, req Request) (*Response, error) {
	sum := requestHash(req)

	if req.Phase == PhaseAnalysis {
		prompt := ""
		if len(req.Messages) > 0 {
			prompt = req.Messages[len(req.Messages)-1].Content
		}
		return &Response{Text: fmt.Sprintf(
			"Mock-Analyse [%08x]\n\n"+
				"1. Zusammenfassung: %s für %s.\n"+
				"2. Preis-Leistung: keine Marktdaten im Testmodus.\n"+
				"3. Seriosität: nicht bewertet.\n"+
				"4. Auffälligkeiten: keine geprüft.\n"+
				"5. Empfehlung: Anzeige selbst prüfen. (%d Bilder)",
			sum,
			promptValue(prompt, "Titel: "),
			promptValue(prompt, "Preis: "),
			len(req.Images),
		)}, nil
	}

	question := ""
	turns := 0
	for _, m := range req.Messages {
		if !m.IsModel() {
			question = m.Content
			turns++
		}
	}
	return &Response{Text: fmt.Sprintf(
		"Mock-Antwort [%08x] zu Frage %d (%s): %q",
		sum, turns, firstLine(req.Preamble), question,
	)}, nil
}

func requestHash(req Request) uint32 {
	h := fnv.New32a()
	h.Write([]byte(req.Phase))    //nolint:errcheck
	h.Write([]byte(req.Preamble)) //nolint:errcheck
	for _, m := range req.Messages {
		h.Write([]byte(m.Role))    //nolint:errcheck
		h.Write([]byte(m.Content)) //nolint:errcheck
	}
	for _, img := range req.Images {
		h.Write([]byte(img.MediaType)) //nolint:errcheck
		h.Write(img.Data)              //nolint:errcheck
	}
	return h.Sum32()
}

// promptValue returns the rest of the first prompt line starting with label.
func promptValue(prompt, label string) string {
	for _, line := range strings.Split(prompt, "\n") {
		if v, ok := strings.CutPrefix(strings.TrimSpace(line), label); ok {
			return v
		}
	}
	return notGiven
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}
