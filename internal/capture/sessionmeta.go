package capture

import (
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/banshee-data/telemetry-core/internal/errs"
)

// sessionDoc mirrors the nested sections of the real telemetry session
// metadata document closely enough to extract the fields the core needs;
// unknown sections are ignored by yaml.v3's default unmarshalling.
type sessionDoc struct {
	WeekendInfo struct {
		TrackID          string `yaml:"TrackID"`
		TrackDisplayName string `yaml:"TrackDisplayName"`
		TrackLength      string `yaml:"TrackLength"` // e.g. "6.21 km"
	} `yaml:"WeekendInfo"`
	DriverInfo struct {
		DriverCarIdx int `yaml:"DriverCarIdx"`
		Drivers      []struct {
			CarIdx      int    `yaml:"CarIdx"`
			UserID      int    `yaml:"UserID"`
			UserName    string `yaml:"UserName"`
			CarID       int    `yaml:"CarID"`
			CarScreenName string `yaml:"CarScreenName"`
		} `yaml:"Drivers"`
	} `yaml:"DriverInfo"`
}

// parseSessionMeta decodes the YAML-ish session metadata document,
// extracting track/car/driver identity. The tick
// rate (sample frequency) comes from the fixed header, not this document,
// so it is set by the caller after the struct is built.
func parseSessionMeta(doc []byte) (SessionMeta, error) {
	var d sessionDoc
	if err := yaml.Unmarshal(doc, &d); err != nil {
		return SessionMeta{}, errs.Wrap(errs.MalformedCapture, err, "session metadata document is not valid")
	}

	lengthM, err := parseTrackLength(d.WeekendInfo.TrackLength)
	if err != nil {
		return SessionMeta{}, errs.Wrap(errs.MalformedCapture, err, "track length %q", d.WeekendInfo.TrackLength)
	}

	meta := SessionMeta{
		TrackID:      d.WeekendInfo.TrackID,
		TrackName:    d.WeekendInfo.TrackDisplayName,
		TrackLengthM: lengthM,
	}

	for _, drv := range d.DriverInfo.Drivers {
		if drv.CarIdx == d.DriverInfo.DriverCarIdx {
			meta.DriverID = strconv.Itoa(drv.UserID)
			meta.DriverName = drv.UserName
			meta.CarID = strconv.Itoa(drv.CarID)
			meta.CarName = drv.CarScreenName
			break
		}
	}
	return meta, nil
}

// parseTrackLength converts a "N.NN km" field to metres.
func parseTrackLength(s string) (float64, error) {
	s = strings.TrimSpace(s)
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return 0, errs.Sentinel(errs.MalformedCapture)
	}
	val, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0, err
	}
	unit := "km"
	if len(fields) > 1 {
		unit = strings.ToLower(fields[1])
	}
	switch unit {
	case "km":
		return val * 1000, nil
	case "m":
		return val, nil
	default:
		return val * 1000, nil
	}
}
