package geo

import "github.com/twpayne/go-polyline"

// PolylineFromCoords encodes coords with the google polyline algorithm (precision 5).
func PolylineFromCoords(coords []Coordinate) string {
	if len(coords) == 0 {
		return ""
	}
	flat := make([][]float64, 0, len(coords))
	for _, c := range coords {
		flat = append(flat, []float64{c.Lat, c.Lon})
	}
	return string(polyline.EncodeCoords(flat))
}
