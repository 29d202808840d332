package offers

import (
	"golang.org/x/text/language"

	"github.com/tbourn/looks-entitlements/internal/domain"
)

// copyLanguages are the languages offer copy is written in. The first entry
// is the fallback.
var copyLanguages = []language.Tag{
	language.English,
	language.Spanish,
	language.French,
	language.German,
	language.BrazilianPortuguese,
	language.Japanese,
}

var copyMatcher = language.NewMatcher(copyLanguages)

// CopyLanguage picks the copy language for a locale or Accept-Language value.
func CopyLanguage(locale string) string {
	tags, _, err := language.ParseAcceptLanguage(locale)
	if err != nil || len(tags) == 0 {
		return baseOf(copyLanguages[0])
	}
	_, idx, conf := copyMatcher.Match(tags...)
	if conf == language.No {
		return baseOf(copyLanguages[0])
	}
	return baseOf(copyLanguages[idx])
}

func baseOf(t language.Tag) string {
	b, _ := t.Base()
	return b.String()
}

// angle is the copy angle used for a shown reason.
func angle(reason string) string {
	switch reason {
	case domain.ReasonNoPurchases:
		return "trust"
	case domain.ReasonSingleBuyer:
		return "value"
	case domain.ReasonRepeatBuyer:
		return "savings"
	case domain.ReasonEngagedFreeUser:
		return "quality"
	default:
		return "default"
	}
}

// CopyVariant builds the "<offer>.<angle>.<lang>" copy key.
func CopyVariant(c Candidate, locale string) string {
	return c.Offer + "." + angle(c.Reason) + "." + CopyLanguage(locale)
}
