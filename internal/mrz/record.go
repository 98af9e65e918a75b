package mrz

import (
	"fmt"
	"strings"
	"time"
)

// Layout identifies an ICAO 9303 machine readable zone layout
type Layout int

const (
	// Auto tries TD1 first and falls back to TD3.
	Auto Layout = iota
	// TD1 is the 3 line, 30 character card layout.
	TD1
	// TD3 is the 2 line, 44 character passport layout.
	TD3
)

func (l Layout) String() string {
	switch l {
	case Auto:
		return "auto"
	case TD1:
		return "td1"
	case TD3:
		return "td3"
	default:
		return fmt.Sprintf("layout(%d)", int(l))
	}
}

// MarshalText implements encoding.TextMarshaler
func (l Layout) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (l *Layout) UnmarshalText(text []byte) error {
	parsed, err := ParseLayout(string(text))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// ParseLayout converts "auto", "td1" or "td3" into a Layout
func ParseLayout(s string) (Layout, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "auto", "":
		return Auto, nil
	case "td1":
		return TD1, nil
	case "td3":
		return TD3, nil
	default:
		return Auto, fmt.Errorf("unknown layout %q", s)
	}
}

// Record is a document parsed from recognized MRZ text.
// Score is the fraction of check digits that matched.
type Record struct {
	Layout         Layout   `json:"layout"`
	DocumentCode   string   `json:"document_code"`
	IssuingCountry string   `json:"issuing_country"`
	DocumentNumber string   `json:"document_number"`
	Nationality    string   `json:"nationality"`
	BirthDate      string   `json:"birth_date"`  // YYMMDD
	Sex            string   `json:"sex"`
	ExpiryDate     string   `json:"expiry_date"` // YYMMDD
	Surname        string   `json:"surname"`
	GivenNames     string   `json:"given_names"`
	PersonalNumber string   `json:"personal_number,omitempty"`
	OptionalData   string   `json:"optional_data,omitempty"`
	Lines          []string `json:"lines"`
	ChecksPassed   int      `json:"checks_passed"`
	ChecksTotal    int      `json:"checks_total"`
	Score          float64  `json:"score"`
}

// Birth returns the date of birth. Two digit years later than the current
// year are placed in the previous century.
func (r *Record) Birth() (time.Time, error) {
	return parseDate(r.BirthDate, false)
}

// Expiry returns the expiry date, always in the current century
func (r *Record) Expiry() (time.Time, error) {
	return parseDate(r.ExpiryDate, true)
}

func parseDate(yymmdd string, future bool) (time.Time, error) {
	t, err := time.Parse("060102", yymmdd)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing date %q: %w", yymmdd, err)
	}
	year := 2000 + t.Year()%100
	if !future && year > time.Now().Year() {
		year -= 100
	}
	return time.Date(year, t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
}

func (r *Record) score(checks ...bool) {
	r.ChecksTotal = len(checks)
	r.ChecksPassed = 0
	for _, ok := range checks {
		if ok {
			r.ChecksPassed++
		}
	}
	if r.ChecksTotal > 0 {
		r.Score = float64(r.ChecksPassed) / float64(r.ChecksTotal)
	}
}
