// Command mockfeed serves deterministic fixture data shaped like the
// external sources parkingd ingests: open data portal datasets, the
// places-search API, and the community geodata service. Point the service
// at it for local end-to-end runs without credentials or rate ceilings:
//
//	mockfeed -addr :8091
//
//	PARKD_SOURCES_OPENDATA_BASE_URL=http://localhost:8091 \
//	PARKD_SOURCES_PLACES_BASE_URL=http://localhost:8091 \
//	PARKD_SOURCES_PLACES_API_KEY=mock \
//	PARKD_SOURCES_COMMUNITY_BASE_URL=http://localhost:8091 \
//	parkingd
//
// The same seed always produces the same records, so test assertions
// against a mockfeed-backed store stay stable across runs.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand/v2"
	"net/http"
	"strconv"
	"strings"

	"github.com/curbdata/parking-aggregator/internal/geo"
)

// Generated records spread around downtown San Francisco.
const (
	centerLat = 37.7879
	centerLon = -122.4074
	spreadDeg = 0.02
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	addr := flag.String("addr", ":8091", "listen address")
	seed := flag.Uint64("seed", 1, "random seed for record generation")
	meters := flag.Int("meters", 120, "meter inventory records")
	census := flag.Int("census", 60, "parking census records")
	clusters := flag.Int("citation-clusters", 15, "citation clusters (3-6 citations each)")
	places := flag.Int("places", 25, "garage and lot listings")
	community := flag.Int("community", 40, "crowd-mapped elements")
	metersDS := flag.String("meters-dataset", "8vzz-qzz9", "dataset id served as meter inventory")
	censusDS := flag.String("census-dataset", "9ivs-nf5y", "dataset id served as the parking census")
	citationsDS := flag.String("citations-dataset", "ab4h-6ztd", "dataset id served as citations")
	flag.Parse()

	f := newFeed(*seed, *meters, *census, *clusters, *places, *community)
	f.metersDS = *metersDS
	f.censusDS = *censusDS
	f.citationsDS = *citationsDS

	mux := http.NewServeMux()
	mux.HandleFunc("GET /resource/{dataset}.json", f.handleDataset)
	mux.HandleFunc("GET /v1/search", f.handlePlacesSearch)
	mux.HandleFunc("GET /v1/nearby", f.handlePlacesNearby)
	mux.HandleFunc("GET /elements", f.handleCommunity)

	log.Printf("mockfeed listening on %s (seed %d)", *addr, *seed)
	log.Printf("records: %d meters, %d census, %d citations, %d places, %d community",
		len(f.meters), len(f.census), len(f.citations), len(f.places), len(f.community))
	return http.ListenAndServe(*addr, mux)
}

// feed holds the generated records and serves paginated views of them.
type feed struct {
	rng *rand.Rand

	metersDS    string
	censusDS    string
	citationsDS string

	meters    []meterRecord
	census    []censusRecord
	citations []citationRecord
	places    []placeRecord
	community []communityElement
}

func newFeed(seed uint64, meters, census, clusters, places, community int) *feed {
	f := &feed{rng: rand.New(rand.NewPCG(seed, 0))}
	f.genMeters(meters)
	f.genCensus(census)
	f.genCitations(clusters)
	f.genPlaces(places)
	f.genCommunity(community)
	return f
}

var streets = []string{
	"Market St", "Mission St", "Valencia St", "Howard St",
	"Folsom St", "Bryant St", "Geary Blvd", "Van Ness Ave",
}

func (f *feed) jitter() float64 {
	return (f.rng.Float64()*2 - 1) * spreadDeg
}

func (f *feed) street() string {
	return streets[f.rng.IntN(len(streets))]
}

func (f *feed) genMeters(n int) {
	f.meters = make([]meterRecord, 0, n)
	for i := 0; i < n; i++ {
		rec := meterRecord{
			PostID:           fmt.Sprintf("M-%04d", i+1),
			StreetAddress:    fmt.Sprintf("%d %s", 100+f.rng.IntN(2000), f.street()),
			Latitude:         coord(centerLat + f.jitter()),
			Longitude:        coord(centerLon + f.jitter()),
			MeterType:        "SS",
			CapColor:         "Grey",
			TimeLimit:        "120",
			HourlyRate:       "3.50",
			HoursOfOperation: "Mon-Sat 9am-6pm",
		}
		switch {
		case i%17 == 3:
			rec.CapColor = "Blue" // accessible space
		case i%17 == 9:
			rec.CapColor = "Black" // motorcycle space
		case i%11 == 5:
			rec.MeterType = "MS"
			rec.Spaces = strconv.Itoa(2 + f.rng.IntN(6))
		}
		// A few records with no coordinates, as the real portal serves.
		if i%25 == 24 {
			rec.Latitude = ""
			rec.Longitude = ""
		}
		f.meters = append(f.meters, rec)
	}
}

func (f *feed) genCensus(n int) {
	sides := []string{"N", "S", "E", "W"}
	f.census = make([]censusRecord, 0, n)
	for i := 0; i < n; i++ {
		f.census = append(f.census, censusRecord{
			ObjectID:      strconv.Itoa(10000 + i),
			StreetName:    f.street(),
			Side:          sides[f.rng.IntN(len(sides))],
			ParkingSupply: strconv.Itoa(2 + f.rng.IntN(18)),
			Latitude:      coord(centerLat + f.jitter()),
			Longitude:     coord(centerLon + f.jitter()),
		})
	}
}

func (f *feed) genCitations(clusters int) {
	legal := []string{"MTR OUT DT", "OVERTIME", "EXP PERMIT", "ST CLEAN"}
	illegal := []string{"FIRE HYD", "RED ZONE", "DBL PARK"}
	num := 1
	for c := 0; c < clusters; c++ {
		clusterLat := centerLat + f.jitter()
		clusterLon := centerLon + f.jitter()
		// 3-6 citations inside one ~15 m cell so the cluster survives the
		// adapter's minimum size.
		for i := 0; i < 3+f.rng.IntN(4); i++ {
			f.citations = append(f.citations, citationRecord{
				CitationNumber: fmt.Sprintf("C%07d", num),
				ViolationDesc:  legal[f.rng.IntN(len(legal))],
				Latitude:       coord(clusterLat + (f.rng.Float64()-0.5)*0.00005),
				Longitude:      coord(clusterLon + (f.rng.Float64()-0.5)*0.00005),
			})
			num++
		}
		// One illegal-violation citation nearby that the adapter must drop.
		f.citations = append(f.citations, citationRecord{
			CitationNumber: fmt.Sprintf("C%07d", num),
			ViolationDesc:  illegal[f.rng.IntN(len(illegal))],
			Latitude:       coord(clusterLat),
			Longitude:      coord(clusterLon),
		})
		num++
	}
	// Lone citations that never reach the cluster minimum.
	for i := 0; i < clusters; i++ {
		f.citations = append(f.citations, citationRecord{
			CitationNumber: fmt.Sprintf("C%07d", num),
			ViolationDesc:  legal[f.rng.IntN(len(legal))],
			Latitude:       coord(centerLat + f.jitter()),
			Longitude:      coord(centerLon + f.jitter()),
		})
		num++
	}
}

func (f *feed) genPlaces(n int) {
	f.places = make([]placeRecord, 0, n)
	for i := 0; i < n; i++ {
		category := "parking_garage"
		if i%3 == 0 {
			category = "parking_lot"
		}
		street := f.street()
		f.places = append(f.places, placeRecord{
			PlaceID:  fmt.Sprintf("pl-%03d", i+1),
			Name:     fmt.Sprintf("%s Garage", strings.TrimSuffix(street, " St")),
			Category: category,
			Address:  fmt.Sprintf("%d %s", 100+f.rng.IntN(2000), street),
			Location: placeLocation{
				Lat: centerLat + f.jitter(),
				Lng: centerLon + f.jitter(),
			},
			Capacity: 50 + f.rng.IntN(450),
		})
	}
}

func (f *feed) genCommunity(n int) {
	kinds := []string{"multi-storey", "surface", "street_side", "underground"}
	f.community = make([]communityElement, 0, n)
	for i := 0; i < n; i++ {
		elem := communityElement{
			ID:  int64(500000 + i),
			Lat: centerLat + f.jitter(),
			Lon: centerLon + f.jitter(),
			Tags: map[string]string{
				"parking":  kinds[f.rng.IntN(len(kinds))],
				"name":     fmt.Sprintf("%s parking", f.street()),
				"capacity": strconv.Itoa(5 + f.rng.IntN(95)),
			},
			Completeness: 20 + f.rng.IntN(81),
		}
		// Occasional unmappable element the adapter must drop.
		if i%30 == 29 {
			elem.Lat = 0
			elem.Lon = 0
		}
		f.community = append(f.community, elem)
	}
}

// --- handlers ---

func (f *feed) handleDataset(w http.ResponseWriter, r *http.Request) {
	limit, offset := pageParams(r, "$limit", "$offset")
	var page any
	var n int
	switch r.PathValue("dataset") {
	case f.metersDS:
		p := paginate(f.meters, limit, offset)
		page, n = p, len(p)
	case f.censusDS:
		p := paginate(f.census, limit, offset)
		page, n = p, len(p)
	case f.citationsDS:
		p := paginate(f.citations, limit, offset)
		page, n = p, len(p)
	default:
		http.NotFound(w, r)
		return
	}
	log.Printf("%s %s offset=%d -> %d records", r.Method, r.URL.Path, offset, n)
	writeJSON(w, page)
}

func (f *feed) handlePlacesSearch(w http.ResponseWriter, r *http.Request) {
	if !bearerAuth(w, r) {
		return
	}
	limit, offset := pageParams(r, "limit", "offset")
	page := paginate(f.places, limit, offset)
	log.Printf("%s %s offset=%d -> %d results", r.Method, r.URL.Path, offset, len(page))
	writeJSON(w, placesResponse{Results: page})
}

func (f *feed) handlePlacesNearby(w http.ResponseWriter, r *http.Request) {
	if !bearerAuth(w, r) {
		return
	}
	lat, _ := strconv.ParseFloat(r.URL.Query().Get("lat"), 64)
	lng, _ := strconv.ParseFloat(r.URL.Query().Get("lng"), 64)
	radius, _ := strconv.ParseFloat(r.URL.Query().Get("radius"), 64)
	if radius <= 0 {
		radius = 500
	}

	origin := geo.Point{Latitude: lat, Longitude: lng}
	var results []placeRecord
	for _, p := range f.places {
		d := geo.Distance(origin, geo.Point{Latitude: p.Location.Lat, Longitude: p.Location.Lng})
		if d <= radius {
			results = append(results, p)
		}
	}
	log.Printf("%s %s -> %d results within %.0f m", r.Method, r.URL.Path, len(results), radius)
	writeJSON(w, placesResponse{Results: results})
}

func (f *feed) handleCommunity(w http.ResponseWriter, r *http.Request) {
	limit, offset := pageParams(r, "limit", "offset")
	page := paginate(f.community, limit, offset)
	log.Printf("%s %s offset=%d -> %d elements", r.Method, r.URL.Path, offset, len(page))
	writeJSON(w, communityResponse{Elements: page})
}

func bearerAuth(w http.ResponseWriter, r *http.Request) bool {
	if !strings.HasPrefix(r.Header.Get("Authorization"), "Bearer ") {
		w.WriteHeader(http.StatusUnauthorized)
		writeJSON(w, map[string]string{"error": "missing bearer token"})
		return false
	}
	return true
}

func pageParams(r *http.Request, limitKey, offsetKey string) (limit, offset int) {
	q := r.URL.Query()
	limit, _ = strconv.Atoi(q.Get(limitKey))
	if limit <= 0 {
		limit = 1000
	}
	offset, _ = strconv.Atoi(q.Get(offsetKey))
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func paginate[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return []T{}
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v) //nolint:errcheck // fixture server
}

func coord(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}

// --- wire records, shaped like the real feeds ---

type meterRecord struct {
	PostID           string `json:"post_id"`
	StreetAddress    string `json:"street_address"`
	Latitude         string `json:"latitude"`
	Longitude        string `json:"longitude"`
	MeterType        string `json:"meter_type"`
	Spaces           string `json:"spaces,omitempty"`
	CapColor         string `json:"cap_color"`
	TimeLimit        string `json:"time_limit"`
	HourlyRate       string `json:"hourly_rate"`
	HoursOfOperation string `json:"hours_of_operation"`
}

type censusRecord struct {
	ObjectID      string `json:"objectid"`
	StreetName    string `json:"street_name"`
	Side          string `json:"side"`
	ParkingSupply string `json:"prkg_sply"`
	Latitude      string `json:"lat"`
	Longitude     string `json:"lon"`
}

type citationRecord struct {
	CitationNumber string `json:"citation_number"`
	ViolationDesc  string `json:"violation_desc"`
	Latitude       string `json:"latitude"`
	Longitude      string `json:"longitude"`
}

type placeRecord struct {
	PlaceID  string        `json:"place_id"`
	Name     string        `json:"name"`
	Category string        `json:"category"`
	Address  string        `json:"address"`
	Location placeLocation `json:"location"`
	Capacity int           `json:"capacity"`
}

type placeLocation struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type placesResponse struct {
	Results []placeRecord `json:"results"`
}

type communityElement struct {
	ID           int64             `json:"id"`
	Lat          float64           `json:"lat"`
	Lon          float64           `json:"lon"`
	Tags         map[string]string `json:"tags"`
	Completeness int               `json:"completeness"`
}

type communityResponse struct {
	Elements []communityElement `json:"elements"`
}
