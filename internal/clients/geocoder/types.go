package geocoder

import "turnnav/internal/lib/geo"

// Hit is one geocoding match returned by the service.
type Hit struct {
	Point       geo.Coordinate `json:"point"`
	OSMID       string         `json:"osm_id"`
	OSMType     string         `json:"osm_type"`
	OSMKey      string         `json:"osm_key"`
	OSMValue    string         `json:"osm_value"`
	Name        string         `json:"name"`
	Country     string         `json:"country"`
	City        string         `json:"city"`
	State       string         `json:"state"`
	Street      string         `json:"street"`
	HouseNumber string         `json:"housenumber"`
	PostCode    string         `json:"postcode"`
	Extent      []float64      `json:"extent"`
}

// Result is the geocoding response body.
type Result struct {
	Hits []Hit `json:"hits"`
	Took int64 `json:"took"`
}
