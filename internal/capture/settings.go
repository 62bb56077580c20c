package capture

import (
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"
)

// Settings keys as stored by the attendance server.
const (
	KeySchoolLatitude   = "school_latitude"
	KeySchoolLongitude  = "school_longitude"
	KeyAllowedRadius    = "allowed_radius_meters"
	KeyEntryTime        = "entry_time"
	KeyExitTime         = "exit_time"
	KeyEntryDeadline    = "entry_deadline"
	KeyEarlyOpenMinutes = "early_open_minutes"
	KeyTimezone         = "timezone"
)

// SettingKeys lists every key ParseSettings understands.
var SettingKeys = []string{
	KeySchoolLatitude, KeySchoolLongitude, KeyAllowedRadius,
	KeyEntryTime, KeyExitTime, KeyEntryDeadline, KeyEarlyOpenMinutes, KeyTimezone,
}

// Settings is the configuration an attempt is judged against.
type Settings struct {
	Geofence GeofenceConfig
	Window   WindowPolicy
}

// SettingsError lists invalid keys with a reason each.
type SettingsError struct {
	Fields map[string]string
}

func (e *SettingsError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "invalid settings: " + strings.Join(parts, "; ")
}

// ParseSettings builds Settings from the server's key/value configuration.
// Missing coordinates disable the geofence. A missing or non-positive
// radius falls back to DefaultRadiusMeters; one above MaxRadiusMeters is
// invalid. Missing times leave that edge
// of the window unrestricted.
func ParseSettings(kv map[string]string) (Settings, error) {
	get := func(k string) string { return strings.TrimSpace(kv[k]) }
	bad := map[string]string{}

	var s Settings

	latRaw, lonRaw := get(KeySchoolLatitude), get(KeySchoolLongitude)
	if latRaw != "" && lonRaw != "" {
		lat, err := strconv.ParseFloat(latRaw, 64)
		if err != nil || !finite(lat) || lat < -90 || lat > 90 {
			bad[KeySchoolLatitude] = "must be a latitude between -90 and 90"
		}
		lon, err := strconv.ParseFloat(lonRaw, 64)
		if err != nil || !finite(lon) || lon < -180 || lon > 180 {
			bad[KeySchoolLongitude] = "must be a longitude between -180 and 180"
		}
		s.Geofence.Reference = &Point{Latitude: lat, Longitude: lon}
	}

	if raw := get(KeyAllowedRadius); raw != "" {
		f, err := strconv.ParseFloat(raw, 64)
		switch {
		case err == nil && (!finite(f) || f > MaxRadiusMeters):
			bad[KeyAllowedRadius] = "must be a radius of at most " + strconv.Itoa(MaxRadiusMeters) + " meters"
		case err == nil && f > 0:
			s.Geofence.RadiusMeters = int(f)
		}
	}
	s.Geofence.RadiusMeters = s.Geofence.Radius()

	parseTime := func(key string) *TimeOfDay {
		raw := get(key)
		if raw == "" {
			return nil
		}
		t, err := ParseTimeOfDay(raw)
		if err != nil {
			bad[key] = "must be a time of day (HH:MM or HH:MM:SS)"
			return nil
		}
		return &t
	}
	s.Window.Entry = parseTime(KeyEntryTime)
	s.Window.Exit = parseTime(KeyExitTime)
	s.Window.Deadline = parseTime(KeyEntryDeadline)

	s.Window.EarlyOpenOffset = DefaultEarlyOpenOffset
	if raw := get(KeyEarlyOpenMinutes); raw != "" {
		m, err := strconv.Atoi(raw)
		if err != nil || m < 0 {
			bad[KeyEarlyOpenMinutes] = "must be a non-negative number of minutes"
		} else {
			s.Window.EarlyOpenOffset = time.Duration(m) * time.Minute
		}
	}

	if raw := get(KeyTimezone); raw != "" {
		loc, err := time.LoadLocation(raw)
		if err != nil {
			bad[KeyTimezone] = "must be an IANA time zone name"
		} else {
			s.Window.Location = loc
		}
	}

	if len(bad) > 0 {
		return Settings{}, &SettingsError{Fields: bad}
	}
	return s, nil
}

func finite(f float64) bool { return !math.IsNaN(f) && !math.IsInf(f, 0) }
