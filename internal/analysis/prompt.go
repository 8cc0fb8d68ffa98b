package analysis

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sells-group/classifieds-cli/internal/model"
)

const notGiven = "Nicht angegeben"

// BuildAnalysisPrompt renders the German analysis prompt for ad. The output
// depends only on the record; details are listed in key order.
func BuildAnalysisPrompt(ad *model.AdRecord) string {
	var b strings.Builder

	b.WriteString("Analysiere diese Kleinanzeige und erstelle einen detaillierten Bericht.\n\n")
	fmt.Fprintf(&b, "Titel: %s\n", ad.TitleOr(notGiven))
	fmt.Fprintf(&b, "Preis: %s €\n", ad.PriceOr(notGiven))
	fmt.Fprintf(&b, "Beschreibung: %s\n", ad.DescriptionOr("Keine Beschreibung vorhanden"))

	b.WriteString("\nDetails:\n")
	if len(ad.Details) == 0 {
		b.WriteString("Keine Details vorhanden.\n")
	} else {
		keys := make([]string, 0, len(ad.Details))
		for k := range ad.Details {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "- %s: %s\n", k, ad.Details[k])
		}
	}

	b.WriteString("\nVerkäuferinformationen:\n")
	writeSeller(&b, ad.Seller)

	b.WriteString("\nStandort:\n")
	if ad.Location != nil && ad.Location.Address != "" {
		fmt.Fprintf(&b, "- Adresse: %s\n", ad.Location.Address)
	} else {
		b.WriteString("Keine Standortinformationen vorhanden.\n")
	}

	b.WriteString(`
Bitte analysiere diese Anzeige und erstelle einen Bericht mit folgenden Punkten:
1. Zusammenfassung des Angebots
2. Bewertung des Preis-Leistungs-Verhältnisses (falls möglich)
3. Einschätzung der Seriosität des Verkäufers
4. Auffälligkeiten oder Warnzeichen
5. Empfehlungen für potenzielle Käufer

Beziehe die Bilder in deine Analyse mit ein und beschreibe, was auf ihnen zu sehen ist und ob sie mit der Beschreibung übereinstimmen.
`)
	return b.String()
}

func writeSeller(b *strings.Builder, s model.Seller) {
	if s.Name == "" && s.Type == "" && s.MemberSince == "" && len(s.Badges) == 0 && s.Profile == nil {
		b.WriteString("Keine Verkäuferinformationen vorhanden.\n")
		return
	}
	fmt.Fprintf(b, "- Name: %s\n", orDefault(s.Name))
	fmt.Fprintf(b, "- Typ: %s\n", orDefault(s.Type))
	fmt.Fprintf(b, "- Mitglied seit: %s\n", orDefault(s.MemberSince))
	if len(s.Badges) > 0 {
		fmt.Fprintf(b, "- Badges: %s\n", strings.Join(s.Badges, ", "))
	}
	if p := s.Profile; p != nil {
		if p.RatingPercentage != nil {
			reviews := 0
			if p.ReviewsCount != nil {
				reviews = *p.ReviewsCount
			}
			fmt.Fprintf(b, "- Bewertung: %d%% (%d Bewertungen)\n", *p.RatingPercentage, reviews)
		}
		if p.ResponseTime != "" {
			fmt.Fprintf(b, "- Antwortzeit: %s\n", p.ResponseTime)
		}
	}
}

func orDefault(s string) string {
	if s == "" {
		return notGiven
	}
	return s
}

// FollowupPreamble tells the backend which ad the questions are about. The
// title is included when the ad record is available.
func FollowupPreamble(adID string, ad *model.AdRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Ich stelle dir Fragen zu einer Kleinanzeige mit der ID %s", adID)
	if ad != nil && ad.Title != nil && *ad.Title != "" {
		fmt.Fprintf(&b, " (Titel: %s)", *ad.Title)
	}
	b.WriteString(". Bitte beantworte meine Fragen basierend auf den Informationen, die du bereits über diese Anzeige hast.")
	return b.String()
}
