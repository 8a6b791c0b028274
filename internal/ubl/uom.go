package ubl

import "strings"

// unitCodes maps host unit-of-measure free text (English and Arabic
// synonyms) to UN/ECE commodity unit codes.
var unitCodes = map[string]string{
	"unit": "PCE", "units": "PCE", "each": "PCE", "pcs": "PCE", "piece": "PCE", "nos": "PCE",
	"قطعة": "PCE", "وحدة": "PCE",
	"box": "BOX", "صندوق": "BOX",
	"kg": "KGM", "kilogram": "KGM", "كيلو": "KGM",
	"g": "GRM", "جرام": "GRM",
	"m": "MTR", "meter": "MTR", "متر": "MTR",
	"cm": "CMT", "سم": "CMT",
	"mm": "MMT",
	"m2": "MTK", "sq m": "MTK", "متر مربع": "MTK",
	"l": "LTR", "liter": "LTR", "لتر": "LTR",
	"hour": "HUR", "ساعة": "HUR",
	"day": "DAY", "يوم": "DAY",
}

// defaultUnitCode is the generic "piece" code used for unrecognized text.
const defaultUnitCode = "PCE"

// UnitCode maps free-text unit of measure to a standard commodity code.
func UnitCode(uom string) string {
	key := strings.ToLower(strings.TrimSpace(uom))
	if code, ok := unitCodes[key]; ok {
		return code
	}
	return defaultUnitCode
}
