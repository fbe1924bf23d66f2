package deviceinfo

import "github.com/OpenTraceLab/OpenTraceADI/pkg/idcode"

// key is used for device database lookups
type key struct {
	Manufacturer uint16 // packed JEP106 code
	Part         uint16
}

// db is the in-memory device database
var db = make(map[key]DeviceInfo)

// register adds a device entry to the database
func register(code idcode.JEP106Code, part uint16, info DeviceInfo) {
	db[key{Manufacturer: code.Packed(), Part: part}] = info
}

// Lookup returns device information for a ROM table identity.
// Falls back to generic info if device is not in database
func Lookup(code idcode.JEP106Code, part uint16) DeviceInfo {
	m, _ := idcode.LookupManufacturer(code)

	if info, ok := db[key{Manufacturer: code.Packed(), Part: part}]; ok {
		info.Manufacturer = m
		info.Part = part
		info.Known = true
		return info
	}

	// Unknown device – return minimal info
	return DeviceInfo{
		Manufacturer: m,
		Part:         part,
		Name:         "Unknown device",
		Description:  "No entry in device database",
	}
}
