// Package catalog classifies products by gemstone cut and derives the
// canonical product name used for folders and filenames.
package catalog

import "strings"

// Cut is a gemstone shape category.
type Cut string

// Unclassified is returned when no recognized cut appears in a name.
const Unclassified Cut = "N/A"

// Cuts is the fixed, ordered vocabulary of recognized cut names. Order
// matters: Classify returns the first entry that matches, so "Cushion"
// shadows "Elongated Cushion".
var Cuts = []Cut{
	"Round",
	"Oval",
	"Emerald",
	"Radiant",
	"Pear",
	"Cushion",
	"Elongated Cushion",
	"Marquise",
	"Princess",
	"Asscher",
	"Heart",
}

// Classify returns the first cut in Cuts that is a substring of name,
// or Unclassified. Matching is case-sensitive.
func Classify(name string) Cut {
	for _, c := range Cuts {
		if strings.Contains(name, string(c)) {
			return c
		}
	}
	return Unclassified
}

// ProductName returns the first whitespace-delimited token of a page
// heading, or "" for a blank heading.
func ProductName(heading string) string {
	fields := strings.Fields(heading)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
