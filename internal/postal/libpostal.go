//go:build libpostal

package postal

import (
	"strings"

	postal "github.com/openvenues/gopostal/parser"
)

func init() {
	defaultParser = LibPostal{}
}

// LibPostal parses with the libpostal CRF model.
type LibPostal struct{}

func (LibPostal) Parse(address string) Components {
	c := Components{Method: "gopostal"}
	for _, comp := range postal.ParseAddress(address) {
		value := strings.TrimSpace(comp.Value)
		switch comp.Label {
		case "house_number":
			c.HouseNumber = value
		case "road":
			c.Road = value
		case "unit", "level", "entrance", "staircase":
			c.Unit = strings.TrimSpace(c.Unit + " " + value)
		case "city", "city_district", "suburb":
			if c.City == "" {
				c.City = value
			}
		case "state":
			c.State = value
		case "postcode":
			c.Postcode = value
		}
	}
	return c
}
