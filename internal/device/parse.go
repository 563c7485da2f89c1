package device

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Logger defines the logging interface used by the device package.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Wire shapes of the cloud listing. Only the fields the bridge reads are declared.
type rawRecord struct {
	ID           string   `json:"id"`
	DeviceID     string   `json:"deviceId"`
	TypeID       string   `json:"typeId"`
	FriendlyName string   `json:"friendlyName"`
	RoomName     string   `json:"roomName"`
	Children     []string `json:"children"`
	Description  struct {
		Device struct {
			DeviceClass      string `json:"deviceClass"`
			Model            string `json:"model"`
			ManufacturerName string `json:"manufacturerName"`
			DefaultName      string `json:"defaultName"`
		} `json:"device"`
		Functions []json.RawMessage `json:"functions"`
	} `json:"description"`
	State *struct {
		Values []json.RawMessage `json:"values"`
	} `json:"state"`
}

type rawFunction struct {
	FunctionClass    string     `json:"functionClass"`
	FunctionInstance *string    `json:"functionInstance"`
	Type             string     `json:"type"`
	Values           []rawValue `json:"values"`
}

type rawValue struct {
	Name  string    `json:"name"`
	Range *rawRange `json:"range"`
}

type rawRange struct {
	Min  *float64 `json:"min"`
	Max  *float64 `json:"max"`
	Step *float64 `json:"step"`
}

type rawState struct {
	FunctionClass    string  `json:"functionClass"`
	FunctionInstance *string `json:"functionInstance"`
	Value            any     `json:"value"`
	LastUpdateTime   int64   `json:"lastUpdateTime"`
}

// Parser converts raw cloud payloads into typed descriptors.
type Parser struct {
	logger Logger
}

// NewParser creates a Parser that discards its diagnostics.
func NewParser() *Parser {
	return &Parser{logger: noopLogger{}}
}

// SetLogger sets the logger used to report skipped records.
func (p *Parser) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	p.logger = logger
}

// Parse converts a raw metadevice listing using a silent Parser.
func Parse(raw []byte) (Listing, error) {
	return NewParser().Parse(raw)
}

// Parse converts a raw metadevice listing into typed devices and rooms.
//
// The listing must be a JSON array of records that each carry a string id;
// anything else fails with ErrInvalidListing. Records and functions whose
// remaining fields are malformed are logged and skipped without affecting
// the rest of the listing.
//
// Parameters:
//   - raw: Response body of the metadevices endpoint
//
// Returns:
//   - Listing: Devices in listing order plus room records
//   - error: ErrInvalidListing (wrapped) on a shape mismatch
func (p *Parser) Parse(raw []byte) (Listing, error) {
	var records []json.RawMessage
	if err := json.Unmarshal(raw, &records); err != nil {
		return Listing{}, fmt.Errorf("%w: expected array of records: %w", ErrInvalidListing, err)
	}

	var listing Listing
	for i, rec := range records {
		id, err := recordID(rec)
		if err != nil {
			return Listing{}, fmt.Errorf("%w: record %d: %w", ErrInvalidListing, i, err)
		}

		var r rawRecord
		if err := json.Unmarshal(rec, &r); err != nil {
			p.logger.Warn("skipping malformed device record", "id", id, "error", err)
			listing.Skipped++
			continue
		}

		switch r.TypeID {
		case TypeIDRoom:
			listing.Rooms = append(listing.Rooms, Room{ID: r.ID, Name: r.FriendlyName, Children: r.Children})
			continue
		case TypeIDDevice, "":
		default:
			p.logger.Debug("ignoring non-device record", "id", id, "type_id", r.TypeID)
			continue
		}

		dev, skipped := p.buildDevice(r)
		listing.Skipped += skipped
		listing.Devices = append(listing.Devices, dev)
	}

	resolveRooms(&listing)
	return listing, nil
}

// recordID extracts the mandatory id of a listing record.
func recordID(rec json.RawMessage) (string, error) {
	var head map[string]json.RawMessage
	if err := json.Unmarshal(rec, &head); err != nil {
		return "", fmt.Errorf("expected object: %w", err)
	}
	rawID, ok := head["id"]
	if !ok {
		return "", fmt.Errorf("missing id")
	}
	var id string
	if err := json.Unmarshal(rawID, &id); err != nil || id == "" {
		return "", fmt.Errorf("id must be a non-empty string")
	}
	return id, nil
}

func (p *Parser) buildDevice(r rawRecord) (Device, int) {
	name := r.FriendlyName
	if name == "" {
		name = r.Description.Device.DefaultName
	}
	dev := Device{
		ID:           r.ID,
		DeviceID:     r.DeviceID,
		FriendlyName: name,
		RoomName:     r.RoomName,
		DeviceClass:  r.Description.Device.DeviceClass,
		Model:        r.Description.Device.Model,
		Manufacturer: r.Description.Device.ManufacturerName,
		TypeID:       r.TypeID,
		Functions:    make([]Function, 0, len(r.Description.Functions)),
	}

	skipped := 0
	for _, rawFn := range r.Description.Functions {
		fn, err := parseFunction(rawFn)
		if err != nil {
			p.logger.Debug("skipping malformed function", "device", r.ID, "error", err)
			skipped++
			continue
		}
		dev.Functions = append(dev.Functions, fn)
	}

	if r.State != nil {
		states, n := p.parseStateValues(r.ID, r.State.Values)
		dev.States = states
		skipped += n
	}

	return dev, skipped
}

func parseFunction(raw json.RawMessage) (Function, error) {
	var rf rawFunction
	if err := json.Unmarshal(raw, &rf); err != nil {
		return Function{}, err
	}
	if rf.FunctionClass == "" {
		return Function{}, fmt.Errorf("missing functionClass")
	}

	fn := Function{
		Class:  rf.FunctionClass,
		Type:   rf.Type,
		Values: make([]FunctionValue, 0, len(rf.Values)),
	}
	if rf.FunctionInstance != nil {
		fn.Instance = *rf.FunctionInstance
	}
	for _, v := range rf.Values {
		fn.Values = append(fn.Values, FunctionValue{Name: v.Name, Range: v.Range.toRange()})
	}
	return fn, nil
}

// toRange returns nil for absent or empty ranges such as {}.
func (r *rawRange) toRange() *Range {
	if r == nil || r.Min == nil || r.Max == nil {
		return nil
	}
	out := &Range{Min: *r.Min, Max: *r.Max, Step: 1}
	if r.Step != nil {
		out.Step = *r.Step
	}
	return out
}

// ParseStates decodes a device state snapshot. Both the envelope form
// {"metadeviceId": ..., "values": [...]} and a bare array are accepted.
func (p *Parser) ParseStates(id string, raw []byte) ([]State, error) {
	trimmed := bytes.TrimSpace(raw)
	var values []json.RawMessage
	if len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &values); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidState, err)
		}
	} else {
		var env struct {
			Values []json.RawMessage `json:"values"`
		}
		if err := json.Unmarshal(trimmed, &env); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidState, err)
		}
		values = env.Values
	}

	states, _ := p.parseStateValues(id, values)
	return states, nil
}

// ParseStates decodes a device state snapshot using a silent Parser.
func ParseStates(id string, raw []byte) ([]State, error) {
	return NewParser().ParseStates(id, raw)
}

func (p *Parser) parseStateValues(id string, values []json.RawMessage) ([]State, int) {
	states := make([]State, 0, len(values))
	skipped := 0
	for _, v := range values {
		var rs rawState
		if err := json.Unmarshal(v, &rs); err != nil || rs.FunctionClass == "" {
			p.logger.Debug("skipping malformed state", "device", id, "error", err)
			skipped++
			continue
		}
		st := State{Class: rs.FunctionClass, Value: rs.Value, LastUpdate: rs.LastUpdateTime}
		if rs.FunctionInstance != nil {
			st.Instance = *rs.FunctionInstance
		}
		states = append(states, st)
	}
	return states, skipped
}

// resolveRooms assigns room names from room records. A room lists either
// child ids or parent device ids. An explicit roomName on the device wins.
func resolveRooms(l *Listing) {
	if len(l.Rooms) == 0 {
		return
	}
	byChild := make(map[string]string)
	for _, room := range l.Rooms {
		for _, child := range room.Children {
			if _, seen := byChild[child]; !seen {
				byChild[child] = room.Name
			}
		}
	}
	for i := range l.Devices {
		d := &l.Devices[i]
		if d.RoomName != "" {
			continue
		}
		if name, ok := byChild[d.ID]; ok {
			d.RoomName = name
		} else if name, ok := byChild[d.DeviceID]; ok {
			d.RoomName = name
		}
	}
}
