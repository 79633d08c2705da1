package camera

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// removeDiacritics removes diacritical marks from a string (e.g., "Kamera Čelní" -> "Kamera Celni").
func removeDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, _ := transform.String(t, s)
	return result
}

// NormalizeLabel normalizes a device label for comparison (lowercase, no
// diacritics, dashes and underscores as spaces, collapsed whitespace).
func NormalizeLabel(label string) string {
	label = removeDiacritics(label)
	label = strings.ToLower(label)
	label = strings.NewReplacer("-", " ", "_", " ").Replace(label)
	return strings.Join(strings.Fields(label), " ")
}

// pickDevice returns the device whose label matches preferred, falling back
// to the first device. An exact normalized match wins over a substring match.
func pickDevice(devices []DeviceInfo, preferred string) DeviceInfo {
	want := NormalizeLabel(preferred)
	if want != "" {
		for _, d := range devices {
			if NormalizeLabel(d.Label) == want {
				return d
			}
		}
		for _, d := range devices {
			if strings.Contains(NormalizeLabel(d.Label), want) {
				return d
			}
		}
	}
	return devices[0]
}
