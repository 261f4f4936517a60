// Package canary holds the value types returned by the Canary cloud API
// and the parsers that build them from response bodies.
package canary

// LocationMode is the security mode of a location.
type LocationMode string

const (
	LocationAway  LocationMode = "away"
	LocationHome  LocationMode = "home"
	LocationNight LocationMode = "night"
)

var locationModes = map[string]LocationMode{
	"away":  LocationAway,
	"home":  LocationHome,
	"night": LocationNight,
}

// ParseLocationMode maps a wire string to a LocationMode.
func ParseLocationMode(s string) (LocationMode, error) {
	if m, ok := locationModes[s]; ok {
		return m, nil
	}
	return "", &ParseError{Entity: "LocationMode", Value: s, Reason: ReasonUnknownValue}
}

func (m LocationMode) String() string { return string(m) }

// DeviceMode is the arming state of a device.
type DeviceMode string

const (
	DeviceDisarmed DeviceMode = "disarmed"
	DeviceArmed    DeviceMode = "armed"
	DevicePrivacy  DeviceMode = "privacy"
)

var deviceModes = map[string]DeviceMode{
	"disarmed": DeviceDisarmed,
	"armed":    DeviceArmed,
	"privacy":  DevicePrivacy,
}

// ParseDeviceMode maps a wire string to a DeviceMode.
func ParseDeviceMode(s string) (DeviceMode, error) {
	if m, ok := deviceModes[s]; ok {
		return m, nil
	}
	return "", &ParseError{Entity: "DeviceMode", Value: s, Reason: ReasonUnknownValue}
}

func (m DeviceMode) String() string { return string(m) }

// SensorType identifies what a reading measures.
type SensorType string

const (
	SensorAirQuality  SensorType = "air_quality"
	SensorHumidity    SensorType = "humidity"
	SensorTemperature SensorType = "temperature"
)

var sensorTypes = map[string]SensorType{
	"air_quality": SensorAirQuality,
	"humidity":    SensorHumidity,
	"temperature": SensorTemperature,
}

// ParseSensorType maps a wire string to a SensorType.
func ParseSensorType(s string) (SensorType, error) {
	if t, ok := sensorTypes[s]; ok {
		return t, nil
	}
	return "", &ParseError{Entity: "SensorType", Value: s, Reason: ReasonUnknownValue}
}

func (t SensorType) String() string { return string(t) }

// Customer is the account holder.
type Customer struct {
	id          int64
	firstName   string
	lastName    string
	usesCelsius bool
}

func (c Customer) ID() int64 { return c.id }
func (c Customer) FirstName() string { return c.firstName }
func (c Customer) LastName() string { return c.lastName }

// UsesCelsius reports whether the account displays temperatures in Celsius.
func (c Customer) UsesCelsius() bool { return c.usesCelsius }

// Location is a monitored site and the devices installed there.
type Location struct {
	id          int64
	name        string
	resourceURI string
	mode        LocationMode
	isPrivate   bool
	devices     []Device
}

func (l Location) ID() int64 { return l.id }
func (l Location) Name() string { return l.name }
func (l Location) ResourceURI() string { return l.resourceURI }
func (l Location) Mode() LocationMode { return l.mode }
func (l Location) IsPrivate() bool { return l.isPrivate }

// Devices returns the location's devices in the order the server listed them.
// The returned slice is a copy.
func (l Location) Devices() []Device {
	out := make([]Device, len(l.devices))
	copy(out, l.devices)
	return out
}

// Device is a single Canary unit. ID and DeviceType together select its readings.
type Device struct {
	id         int64
	name       string
	mode       DeviceMode
	isOnline   bool
	deviceType string
}

func (d Device) ID() int64 { return d.id }
func (d Device) Name() string { return d.name }
func (d Device) Mode() DeviceMode { return d.mode }
func (d Device) IsOnline() bool { return d.isOnline }
func (d Device) DeviceType() string { return d.deviceType }

// Reading is one sensor sample reported for a device.
type Reading struct {
	sensorType SensorType
	status     string
	value      float64
}

func (r Reading) SensorType() SensorType { return r.sensorType }
func (r Reading) Status() string { return r.status }
func (r Reading) Value() float64 { return r.value }
