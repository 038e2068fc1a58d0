package pkg

const (
	INF_WEIGHT float64 = 1e15

	// per-edge normalization maxima of the composite cost
	MAX_EDGE_DISTANCE_KM = 5.0
	MAX_EDGE_TIME_MIN    = 30.0
	MAX_EDGE_CO2_KG      = 2.0

	DEFAULT_SPEED_KPH = 30.0
)

type RoadClass uint8

// enum buat osm highway buat routing: https://wiki.openstreetmap.org/wiki/OSM_tags_for_routing/Telenav
const (
	MOTORWAY       RoadClass = 0
	TRUNK          RoadClass = 1
	PRIMARY        RoadClass = 2
	SECONDARY      RoadClass = 3
	TERTIARY       RoadClass = 4
	RESIDENTIAL    RoadClass = 5
	SERVICE        RoadClass = 6
	UNCLASSIFIED   RoadClass = 7
	MOTORWAY_LINK  RoadClass = 8
	TRUNK_LINK     RoadClass = 9
	PRIMARY_LINK   RoadClass = 10
	SECONDARY_LINK RoadClass = 11
	TERTIARY_LINK  RoadClass = 12
	LIVING_STREET  RoadClass = 13
	ROAD           RoadClass = 14
	TRACK          RoadClass = 15
	MOTORROAD      RoadClass = 16
	UNKNOWN        RoadClass = 17
)

func GetRoadClass(roadType string) RoadClass {
	switch roadType {
	case "motorway":
		return MOTORWAY
	case "trunk":
		return TRUNK
	case "primary":
		return PRIMARY
	case "secondary":
		return SECONDARY
	case "tertiary":
		return TERTIARY
	case "unclassified":
		return UNCLASSIFIED
	case "residential":
		return RESIDENTIAL
	case "service":
		return SERVICE
	case "motorway_link":
		return MOTORWAY_LINK
	case "trunk_link":
		return TRUNK_LINK
	case "primary_link":
		return PRIMARY_LINK
	case "secondary_link":
		return SECONDARY_LINK
	case "tertiary_link":
		return TERTIARY_LINK
	case "living_street":
		return LIVING_STREET
	case "road":
		return ROAD
	case "track":
		return TRACK
	case "motorroad":
		return MOTORROAD
	default:
		return UNKNOWN
	}
}

func (rc RoadClass) String() string {
	switch rc {
	case MOTORWAY:
		return "motorway"
	case TRUNK:
		return "trunk"
	case PRIMARY:
		return "primary"
	case SECONDARY:
		return "secondary"
	case TERTIARY:
		return "tertiary"
	case UNCLASSIFIED:
		return "unclassified"
	case RESIDENTIAL:
		return "residential"
	case SERVICE:
		return "service"
	case MOTORWAY_LINK:
		return "motorway_link"
	case TRUNK_LINK:
		return "trunk_link"
	case PRIMARY_LINK:
		return "primary_link"
	case SECONDARY_LINK:
		return "secondary_link"
	case TERTIARY_LINK:
		return "tertiary_link"
	case LIVING_STREET:
		return "living_street"
	case ROAD:
		return "road"
	case TRACK:
		return "track"
	case MOTORROAD:
		return "motorroad"
	default:
		return "unknown"
	}
}

// DefaultSpeedKph. free-flow speed estimate for ways without a usable maxspeed tag (km/h)
func (rc RoadClass) DefaultSpeedKph() float64 {
	switch rc {
	case MOTORWAY, MOTORROAD:
		return 80
	case TRUNK, TRUNK_LINK, MOTORWAY_LINK:
		return 60
	case PRIMARY, PRIMARY_LINK:
		return 50
	case SECONDARY, SECONDARY_LINK:
		return 40
	case TERTIARY, TERTIARY_LINK:
		return 35
	default:
		return DEFAULT_SPEED_KPH
	}
}
