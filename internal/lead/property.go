package lead

import "strings"

// projectTable maps project names mentioned by the customer to property keys.
var projectTable = map[string]string{
	"costalegre":         "costalegre",
	"residencias":        "residencias",
	"valle de guadalupe": "valle_de_guadalupe",
	"yucatan":            "yucatan",
	"yucatán":            "yucatan",
}

// cityTable maps city and region mentions to the property covering them.
var cityTable = map[string]string{
	// Yucatán / Riviera Maya
	"yucatan":          "yucatan",
	"yucatán":          "yucatan",
	"merida":           "yucatan",
	"mérida":           "yucatan",
	"riviera maya":     "yucatan",
	"cancun":           "yucatan",
	"cancún":           "yucatan",
	"playa del carmen": "yucatan",
	"tulum":            "yucatan",
	"cozumel":          "yucatan",
	"quintana roo":     "yucatan",
	"caribe":           "yucatan",
	"caribbean":        "yucatan",

	// Costalegre / Jalisco
	"costalegre":      "costalegre",
	"guadalajara":     "costalegre",
	"puerto vallarta": "costalegre",
	"vallarta":        "costalegre",
	"jalisco":         "costalegre",

	// Valle de Guadalupe / Baja California
	"guadalupe":       "valle_de_guadalupe",
	"ensenada":        "valle_de_guadalupe",
	"baja california": "valle_de_guadalupe",
	"valle":           "valle_de_guadalupe",
	"vino":            "valle_de_guadalupe",
	"wine":            "valle_de_guadalupe",
}

// DetermineProperty infers the property key a lead should be routed to:
// project mention first, then city mention, then the configured fallback.
// It is total; it always returns a key so CRM routing never stalls.
func DetermineProperty(l QualifiedLead, fallback string) string {
	if project := strings.ToLower(l.ProjectOfInterest); project != "" {
		for name, key := range projectTable {
			if strings.Contains(project, name) {
				return key
			}
		}
	}
	if city := strings.ToLower(l.CityOfInterest); city != "" {
		for name, key := range cityTable {
			if strings.Contains(city, name) {
				return key
			}
		}
	}
	return fallback
}
