package models

// Continents is the fixed set of continent labels that temperature records may be keyed by.
var Continents = []string{
	"Africa",
	"Antarctica",
	"Asia",
	"Australia",
	"Europe",
	"North America",
	"South America",
}

// IsContinent reports whether name is one of Continents (exact, case-sensitive match).
func IsContinent(name string) bool {
	for _, c := range Continents {
		if c == name {
			return true
		}
	}
	return false
}
