package lead

import (
	"regexp"
	"strings"
)

// Keyword heuristic used on every inbound message. Urgency, visit and call
// vocabulary signals hot; purchase, investment and budget vocabulary signals
// warm; anything else leaves the lead at initial. False positives are
// acceptable: the rating can only ever move the lead forward.
var (
	hotPatterns = []*regexp.Regexp{
		regexp.MustCompile(`quiero\s+visitar`),
		regexp.MustCompile(`me\s+gustar[ií]a\s+visitar`),
		regexp.MustCompile(`quisiera\s+visitar`),
		regexp.MustCompile(`deseo\s+ver`),
		regexp.MustCompile(`puedo\s+agendar`),
		regexp.MustCompile(`agendar\s+(una\s+)?(visita|cita)`),
		regexp.MustCompile(`puede\s+llamarme`),
		regexp.MustCompile(`me\s+puede\s+contactar`),
		regexp.MustCompile(`quisiera\s+que\s+me\s+contacten`),
		regexp.MustCompile(`me\s+gustar[ií]a\s+hablar`),
		regexp.MustCompile(`\burgente\b`),
		regexp.MustCompile(`lo\s+antes\s+posible`),
		regexp.MustCompile(`cuanto\s+antes`),
	}

	warmPatterns = []*regexp.Regexp{
		regexp.MustCompile(`me\s+interesa\s+comprar`),
		regexp.MustCompile(`quisiera\s+comprar`),
		regexp.MustCompile(`estoy\s+interesad[oa]\s+en\s+comprar`),
		regexp.MustCompile(`me\s+gustar[ií]a\s+adquirir`),
		regexp.MustCompile(`\binvertir\b`),
		regexp.MustCompile(`\binversi[oó]n\b`),
		regexp.MustCompile(`\bpresupuesto\b`),
		regexp.MustCompile(`\bfinanciamiento\b`),
	}
)

// RateText classifies one inbound message into a candidate rating.
func RateText(text string) Rating {
	lower := strings.ToLower(text)
	for _, p := range hotPatterns {
		if p.MatchString(lower) {
			return RatingHot
		}
	}
	for _, p := range warmPatterns {
		if p.MatchString(lower) {
			return RatingWarm
		}
	}
	return RatingInitial
}
