package osmparser

import (
	"strconv"
	"strings"

	"github.com/paulmach/osm"
)

var (
	// https://wiki.openstreetmap.org/wiki/OSM_tags_for_routing/Telenav
	acceptedHighway = map[string]struct{}{
		"motorway":         {},
		"motorway_link":    {},
		"trunk":            {},
		"trunk_link":       {},
		"primary":          {},
		"primary_link":     {},
		"secondary":        {},
		"secondary_link":   {},
		"residential":      {},
		"residential_link": {},
		"service":          {},
		"tertiary":         {},
		"tertiary_link":    {},
		"road":             {},
		"track":            {},
		"unclassified":     {},
		"living_street":    {},
		"motorroad":        {},
	}

	// unit suffix -> factor to km/h
	speedUnits = []struct {
		suffix string
		factor float64
	}{
		{"mph", 1.60934},
		{"knots", 1.852},
		{"km/h", 1},
		{"kmh", 1},
	}
)

type direction uint8

const (
	bothWays direction = iota
	forwardOnly
	backwardOnly
)

func acceptOsmWay(way *osm.Way) bool {
	if len(way.Nodes) < 2 {
		return false
	}
	_, ok := acceptedHighway[way.Tags.Find("highway")]
	return ok
}

func isRestricted(value string) bool {
	return value == "no" || value == "restricted"
}

// wayDirection. oneway=yes|true|1 -> forward only, oneway=-1|reverse -> backward only.
// vehicle:forward=no style access tags count as a oneway in the other direction.
func wayDirection(way *osm.Way) direction {
	switch way.Tags.Find("oneway") {
	case "yes", "true", "1":
		return forwardOnly
	case "-1", "reverse":
		return backwardOnly
	}
	if isRestricted(way.Tags.Find("vehicle:forward")) || isRestricted(way.Tags.Find("motor_vehicle:forward")) {
		return backwardOnly
	}
	if isRestricted(way.Tags.Find("vehicle:backward")) || isRestricted(way.Tags.Find("motor_vehicle:backward")) {
		return forwardOnly
	}
	return bothWays
}

// parseMaxSpeed returns the maxspeed tag in km/h. plain numbers are km/h. ok is false for
// missing, symbolic ("walk", "none", "RU:urban") or non-positive values.
func parseMaxSpeed(value string) (float64, bool) {
	value = strings.TrimSpace(strings.ToLower(value))
	if value == "" {
		return 0, false
	}
	factor := 1.0
	for _, u := range speedUnits {
		if strings.HasSuffix(value, u.suffix) {
			value = strings.TrimSpace(strings.TrimSuffix(value, u.suffix))
			factor = u.factor
			break
		}
	}
	speed, err := strconv.ParseFloat(value, 64)
	if err != nil || speed <= 0 {
		return 0, false
	}
	return speed * factor, true
}
