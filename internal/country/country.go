// Package country resolves ISO 3166-1 alpha-2 codes to country names for
// source adapters that only supply a code (free-proxy-list.net's table
// does; GeoNode's country field is kept as received, and ProxyScrape
// records carry no country), and for the validator's connectivity
// check. Names are returned upper-cased to match the
// reference validator's convention, which upper-cases both the resolved
// name and any code it falls back to.
//
// No example repo in the corpus imports an ISO-3166 library, and general
// ecosystem ones pull in far more than this narrow two-letter lookup
// needs, so this is a small hand-written table — the standard-library
// fallback is justified in DESIGN.md.
package country

import "strings"

var names = map[string]string{
	"US": "UNITED STATES", "GB": "UNITED KINGDOM", "CA": "CANADA",
	"DE": "GERMANY", "FR": "FRANCE", "NL": "NETHERLANDS", "RU": "RUSSIA",
	"CN": "CHINA", "JP": "JAPAN", "KR": "SOUTH KOREA", "IN": "INDIA",
	"BR": "BRAZIL", "AU": "AUSTRALIA", "IT": "ITALY", "ES": "SPAIN",
	"SE": "SWEDEN", "CH": "SWITZERLAND", "SG": "SINGAPORE", "HK": "HONG KONG",
	"ID": "INDONESIA", "TH": "THAILAND", "VN": "VIETNAM", "PH": "PHILIPPINES",
	"MY": "MALAYSIA", "UA": "UKRAINE", "PL": "POLAND", "TR": "TURKEY",
	"MX": "MEXICO", "AR": "ARGENTINA", "ZA": "SOUTH AFRICA", "EG": "EGYPT",
	"NG": "NIGERIA", "BD": "BANGLADESH", "PK": "PAKISTAN", "IR": "IRAN",
	"IQ": "IRAQ", "SA": "SAUDI ARABIA", "AE": "UNITED ARAB EMIRATES",
	"IL": "ISRAEL", "GR": "GREECE", "PT": "PORTUGAL", "RO": "ROMANIA",
	"BG": "BULGARIA", "CZ": "CZECHIA", "HU": "HUNGARY", "AT": "AUSTRIA",
	"BE": "BELGIUM", "DK": "DENMARK", "FI": "FINLAND", "NO": "NORWAY",
	"IE": "IRELAND", "NZ": "NEW ZEALAND", "CL": "CHILE", "CO": "COLOMBIA",
	"PE": "PERU", "VE": "VENEZUELA", "EC": "ECUADOR", "BO": "BOLIVIA",
	"UY": "URUGUAY", "PY": "PARAGUAY", "CR": "COSTA RICA", "PA": "PANAMA",
	"CU": "CUBA", "DO": "DOMINICAN REPUBLIC", "GT": "GUATEMALA",
	"HN": "HONDURAS", "SV": "EL SALVADOR", "NI": "NICARAGUA",
	"LT": "LITHUANIA", "LV": "LATVIA", "EE": "ESTONIA", "SK": "SLOVAKIA",
	"SI": "SLOVENIA", "HR": "CROATIA", "RS": "SERBIA", "BA": "BOSNIA AND HERZEGOVINA",
	"MK": "NORTH MACEDONIA", "AL": "ALBANIA", "MD": "MOLDOVA", "BY": "BELARUS",
	"GE": "GEORGIA", "AM": "ARMENIA", "AZ": "AZERBAIJAN", "KZ": "KAZAKHSTAN",
	"UZ": "UZBEKISTAN", "KH": "CAMBODIA", "LA": "LAOS", "MM": "MYANMAR",
	"LK": "SRI LANKA", "NP": "NEPAL", "MN": "MONGOLIA", "TW": "TAIWAN",
	"MA": "MOROCCO", "DZ": "ALGERIA", "TN": "TUNISIA", "KE": "KENYA",
	"GH": "GHANA", "ET": "ETHIOPIA", "TZ": "TANZANIA", "UG": "UGANDA",
	"IS": "ICELAND", "LU": "LUXEMBOURG", "MT": "MALTA", "CY": "CYPRUS",
}

// Name resolves a two-letter code (case-insensitive) to an upper-cased
// country name. Unknown codes return ("", false) so callers can decide
// whether to leave the record's Country field blank or keep a raw code.
func Name(code string) (string, bool) {
	name, ok := names[strings.ToUpper(strings.TrimSpace(code))]
	return name, ok
}

// Resolve returns the upper-cased country name for code, or the
// upper-cased code itself if it is not in the table — source adapters
// that already receive a human-readable name rather than a code can
// call this safely too since an unrecognized string simply passes
// through, upper-cased, unchanged otherwise.
func Resolve(code string) string {
	trimmed := strings.TrimSpace(code)
	if name, ok := Name(trimmed); ok {
		return name
	}
	return strings.ToUpper(trimmed)
}
