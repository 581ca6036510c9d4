package util

import (
	"regexp"
)

var pairingCodeRegex = regexp.MustCompile(`^[A-HJ-NP-Z2-9]{4}-[A-HJ-NP-Z2-9]{4}$`)

// IsValidPairingCodeFormat checks the XXXX-XXXX shape without touching
// storage; the alphabet excludes 0, O, 1 and I.
func IsValidPairingCodeFormat(s string) bool {
	return pairingCodeRegex.MatchString(s)
}

func IsValidLatitude(lat float64) bool {
	return lat >= -90 && lat <= 90
}

func IsValidLongitude(lon float64) bool {
	return lon >= -180 && lon <= 180
}

func IsValidEnum(value string, validValues []string) bool {
	if value == "" {
		return true
	}
	for _, v := range validValues {
		if value == v {
			return true
		}
	}
	return false
}
