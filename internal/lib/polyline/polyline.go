// Package polyline decodes the routing service's encoded path geometry.
// The encoding is the Google signed-delta scheme with 1e-5 precision for
// latitude/longitude; the 3D variant appends elevation deltas at 1/100 m.
package polyline

import (
	"fmt"

	gopolyline "github.com/twpayne/go-polyline"
)

// Decode converts an encoded 2D polyline into [lng,lat] pairs, matching
// the coordinate order of the routing API's GeoJSON responses.
func Decode(encoded string) ([][]float64, error) {
	coords, remaining, err := gopolyline.DecodeCoords([]byte(encoded))
	if err != nil {
		return nil, fmt.Errorf("failed to decode polyline: %w", err)
	}
	if len(remaining) > 0 {
		return nil, fmt.Errorf("failed to decode polyline: %d trailing bytes", len(remaining))
	}

	result := make([][]float64, len(coords))
	for i, c := range coords {
		result[i] = []float64{c[1], c[0]}
	}
	return result, nil
}

// Decode3D converts an encoded 3D polyline into [lng,lat,elevation]
// triples. The elevation dimension uses a different scale (1/100 m) than
// latitude/longitude (1e-5 degrees), so this variant decodes the deltas
// directly instead of going through the uniform-scale library codec.
func Decode3D(encoded string) ([][]float64, error) {
	var result [][]float64
	var lat, lng, ele int64

	index := 0
	for index < len(encoded) {
		deltaLat, next, err := decodeDelta(encoded, index)
		if err != nil {
			return nil, err
		}
		lat += deltaLat

		deltaLng, next, err := decodeDelta(encoded, next)
		if err != nil {
			return nil, err
		}
		lng += deltaLng

		deltaEle, next, err := decodeDelta(encoded, next)
		if err != nil {
			return nil, err
		}
		ele += deltaEle

		index = next
		result = append(result, []float64{
			float64(lng) * 1e-5,
			float64(lat) * 1e-5,
			float64(ele) / 100,
		})
	}
	return result, nil
}

// decodeDelta reads one varint-encoded signed delta starting at index.
func decodeDelta(encoded string, index int) (int64, int, error) {
	var result int64
	var shift uint
	for {
		if index >= len(encoded) {
			return 0, 0, fmt.Errorf("failed to decode polyline: truncated at byte %d", index)
		}
		b := int64(encoded[index]) - 63
		index++
		result |= (b & 0x1f) << shift
		shift += 5
		if b < 0x20 {
			break
		}
	}
	if result&1 != 0 {
		return ^(result >> 1), index, nil
	}
	return result >> 1, index, nil
}
