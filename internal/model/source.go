// Package model defines the request, result, and payload types shared by
// the scraping adapters and the fan-out orchestrator.
package model

// Kind identifies one data source.
type Kind string

const (
	KindZillow  Kind = "zillow"
	KindRegrid  Kind = "regrid"
	KindASCE716 Kind = "asce7-16"
	KindASCE722 Kind = "asce7-22"
	KindWeather Kind = "weather"
	KindAHJ     Kind = "ahj"
	KindUtility Kind = "utility"
)

// Kinds lists every source the orchestrator fans out to.
func Kinds() []Kind {
	return []Kind{KindZillow, KindRegrid, KindASCE716, KindASCE722, KindWeather, KindAHJ, KindUtility}
}

// SourceResult is the outcome of one adapter invocation. Exactly one of
// Data or Err is meaningful depending on Success. Ephemeral: returned to
// the caller, never stored server-side.
type SourceResult struct {
	Source  Kind   `json:"source"`
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Err     string `json:"error,omitempty"`
}

// OK builds a successful result for kind.
func OK(kind Kind, data any) SourceResult {
	return SourceResult{Source: kind, Success: true, Data: data}
}

// Fail builds a failed result for kind.
func Fail(kind Kind, err string) SourceResult {
	return SourceResult{Source: kind, Success: false, Err: err}
}

// ZillowData holds fields extracted from a Zillow listing page. Fields the
// extraction heuristics could not locate are left empty; partial
// extraction is still a success.
type ZillowData struct {
	ParcelNumber    string `json:"parcel_number,omitempty"`
	LotSize         string `json:"lot_size,omitempty"`
	InteriorArea    string `json:"interior_area,omitempty"`
	StructureArea   string `json:"structure_area,omitempty"`
	NewConstruction bool   `json:"new_construction"`
	YearBuilt       string `json:"year_built,omitempty"`
}

// RegridData holds fields extracted from the Regrid parcel sidebar.
type RegridData struct {
	ParcelNumber string `json:"parcel_number,omitempty"`
	Owner        string `json:"owner,omitempty"`
	LotSize      string `json:"lot_size,omitempty"`
	LandUse      string `json:"land_use,omitempty"`
}

// HazardData holds wind and snow values from the ASCE hazard tool.
type HazardData struct {
	WindSpeed string `json:"windSpeed,omitempty"`
	SnowLoad  string `json:"snowLoad,omitempty"`
}

// AHJData identifies the authority having jurisdiction for a point.
// Jurisdiction is the most specific layer found (place, else county
// subdivision, else county, else "Unknown").
type AHJData struct {
	Jurisdiction      string `json:"jurisdiction"`
	Place             string `json:"place,omitempty"`
	CountySubdivision string `json:"countySubdivision,omitempty"`
	County            string `json:"county,omitempty"`
}

// UtilityData holds the serving utility and its rates.
type UtilityData struct {
	UtilityName     string  `json:"utilityName,omitempty"`
	ResidentialRate float64 `json:"residentialRate,omitempty"`
	CommercialRate  float64 `json:"commercialRate,omitempty"`
	CompanyID       string  `json:"companyId,omitempty"`
}

// WeatherStation is one observation station near a point. The list an
// adapter returns preserves provider proximity order and is capped at a
// fixed count.
type WeatherStation struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	DistanceMeters float64 `json:"distance"`
	TimeZone       string  `json:"timeZone"`
}
