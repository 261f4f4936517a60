package canary

import (
	"strings"

	"github.com/tidwall/gjson"
)

// object reads typed fields out of one JSON object, reporting failures
// against the entity being built.
type object struct {
	entity string
	res    gjson.Result
}

func (o object) lookup(field string) (gjson.Result, error) {
	v := o.res.Get(field)
	if !v.Exists() || v.Type == gjson.Null {
		return v, &ParseError{Entity: o.entity, Field: field, Reason: ReasonMissing}
	}
	return v, nil
}

func (o object) wrongType(field string) error {
	return &ParseError{Entity: o.entity, Field: field, Reason: ReasonWrongType}
}

func (o object) integer(field string) (int64, error) {
	v, err := o.lookup(field)
	if err != nil {
		return 0, err
	}
	if v.Type != gjson.Number {
		return 0, o.wrongType(field)
	}
	// Int truncates 1.5 to 1; ids must be written as plain integers.
	if strings.ContainsAny(v.Raw, ".eE") {
		return 0, &ParseError{Entity: o.entity, Field: field, Value: v.Raw, Reason: ReasonWrongType}
	}
	return v.Int(), nil
}

func (o object) number(field string) (float64, error) {
	v, err := o.lookup(field)
	if err != nil {
		return 0, err
	}
	if v.Type != gjson.Number {
		return 0, o.wrongType(field)
	}
	return v.Float(), nil
}

func (o object) text(field string) (string, error) {
	v, err := o.lookup(field)
	if err != nil {
		return "", err
	}
	if v.Type != gjson.String {
		return "", o.wrongType(field)
	}
	return v.Str, nil
}

func (o object) flag(field string) (bool, error) {
	v, err := o.lookup(field)
	if err != nil {
		return false, err
	}
	if v.Type != gjson.True && v.Type != gjson.False {
		return false, o.wrongType(field)
	}
	return v.Bool(), nil
}

func (o object) list(field string) ([]gjson.Result, error) {
	v, err := o.lookup(field)
	if err != nil {
		return nil, err
	}
	if !v.IsArray() {
		return nil, o.wrongType(field)
	}
	return v.Array(), nil
}

// enum resolves a string field through a closed lookup table.
func enum[T any](o object, field string, table map[string]T) (T, error) {
	var zero T
	s, err := o.text(field)
	if err != nil {
		return zero, err
	}
	v, ok := table[s]
	if !ok {
		return zero, &ParseError{Entity: o.entity, Field: field, Value: s, Reason: ReasonUnknownValue}
	}
	return v, nil
}

func asObject(entity string, res gjson.Result) (object, error) {
	if !res.IsObject() {
		return object{}, &ParseError{Entity: entity, Reason: ReasonNotObject}
	}
	return object{entity: entity, res: res}, nil
}

func parseBody(entity string, data []byte) (gjson.Result, error) {
	if !gjson.ValidBytes(data) {
		return gjson.Result{}, &ParseError{Entity: entity, Reason: ReasonInvalidJSON}
	}
	return gjson.ParseBytes(data), nil
}

func parseArray(entity string, data []byte) ([]gjson.Result, error) {
	res, err := parseBody(entity, data)
	if err != nil {
		return nil, err
	}
	if !res.IsArray() {
		return nil, &ParseError{Entity: entity, Reason: ReasonNotArray}
	}
	return res.Array(), nil
}

// ParseCustomer builds a Customer from the profile endpoint's body.
func ParseCustomer(data []byte) (Customer, error) {
	res, err := parseBody("Customer", data)
	if err != nil {
		return Customer{}, err
	}
	return customerFromJSON(res)
}

func customerFromJSON(res gjson.Result) (Customer, error) {
	o, err := asObject("Customer", res)
	if err != nil {
		return Customer{}, err
	}

	var c Customer
	if c.id, err = o.integer("id"); err != nil {
		return Customer{}, err
	}
	if c.firstName, err = o.text("first_name"); err != nil {
		return Customer{}, err
	}
	if c.lastName, err = o.text("last_name"); err != nil {
		return Customer{}, err
	}
	if c.usesCelsius, err = o.flag("celsius"); err != nil {
		return Customer{}, err
	}
	return c, nil
}

// ParseLocations builds the location list, devices included, from the
// locations endpoint's body. Server order is kept at both levels.
func ParseLocations(data []byte) ([]Location, error) {
	items, err := parseArray("Location", data)
	if err != nil {
		return nil, err
	}

	locations := make([]Location, 0, len(items))
	for _, item := range items {
		loc, err := locationFromJSON(item)
		if err != nil {
			return nil, err
		}
		locations = append(locations, loc)
	}
	return locations, nil
}

func locationFromJSON(res gjson.Result) (Location, error) {
	o, err := asObject("Location", res)
	if err != nil {
		return Location{}, err
	}

	// Devices are built before the location that owns them.
	rawDevices, err := o.list("devices")
	if err != nil {
		return Location{}, err
	}
	devices := make([]Device, 0, len(rawDevices))
	for _, raw := range rawDevices {
		d, err := deviceFromJSON(raw)
		if err != nil {
			return Location{}, err
		}
		devices = append(devices, d)
	}

	l := Location{devices: devices}
	if l.id, err = o.integer("id"); err != nil {
		return Location{}, err
	}
	if l.name, err = o.text("name"); err != nil {
		return Location{}, err
	}
	if l.resourceURI, err = o.text("resource_uri"); err != nil {
		return Location{}, err
	}
	if l.mode, err = enum(o, "mode", locationModes); err != nil {
		return Location{}, err
	}
	if l.isPrivate, err = o.flag("is_private"); err != nil {
		return Location{}, err
	}
	return l, nil
}

func deviceFromJSON(res gjson.Result) (Device, error) {
	o, err := asObject("Device", res)
	if err != nil {
		return Device{}, err
	}

	var d Device
	if d.id, err = o.integer("id"); err != nil {
		return Device{}, err
	}
	if d.name, err = o.text("name"); err != nil {
		return Device{}, err
	}
	if d.mode, err = enum(o, "device_mode", deviceModes); err != nil {
		return Device{}, err
	}
	if d.isOnline, err = o.flag("online"); err != nil {
		return Device{}, err
	}
	if d.deviceType, err = o.text("device_type"); err != nil {
		return Device{}, err
	}
	return d, nil
}

// ParseReadings builds readings from the readings endpoint's body.
func ParseReadings(data []byte) ([]Reading, error) {
	items, err := parseArray("Reading", data)
	if err != nil {
		return nil, err
	}

	readings := make([]Reading, 0, len(items))
	for _, item := range items {
		r, err := readingFromJSON(item)
		if err != nil {
			return nil, err
		}
		readings = append(readings, r)
	}
	return readings, nil
}

func readingFromJSON(res gjson.Result) (Reading, error) {
	o, err := asObject("Reading", res)
	if err != nil {
		return Reading{}, err
	}

	var r Reading
	if r.sensorType, err = enum(o, "sensor_type", sensorTypes); err != nil {
		return Reading{}, err
	}
	if r.status, err = o.text("status"); err != nil {
		return Reading{}, err
	}
	if r.value, err = o.number("value"); err != nil {
		return Reading{}, err
	}
	return r, nil
}

// NewDevice builds a Device outside of a locations response, for callers that
// already know a device's id and type and only want its readings.
func NewDevice(id int64, name string, mode DeviceMode, online bool, deviceType string) Device {
	return Device{id: id, name: name, mode: mode, isOnline: online, deviceType: deviceType}
}
