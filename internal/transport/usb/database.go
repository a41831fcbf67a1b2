// internal/transport/usb/database.go
package usb

import "github.com/google/gousb"

// DeviceDatabase maps known vendor/product IDs of receipt printers to
// human-readable names for discovery results.
type DeviceDatabase struct {
	vendors map[gousb.ID]*vendorInfo
}

type vendorInfo struct {
	name     string
	products map[gousb.ID]string
}

// NewDeviceDatabase creates and initializes the device database
func NewDeviceDatabase() *DeviceDatabase {
	db := &DeviceDatabase{
		vendors: make(map[gousb.ID]*vendorInfo),
	}
	db.initialize()
	return db
}

func (db *DeviceDatabase) initialize() {
	db.vendors[0x04B8] = &vendorInfo{
		name: "Seiko Epson Corporation",
		products: map[gousb.ID]string{
			0x0202: "Epson TM-T88IV",
			0x0203: "Epson TM-T88V",
			0x0214: "Epson TM-T88VI",
			0x0215: "Epson TM-T20III",
			0x0216: "Epson TM-T82III",
			0x0217: "Epson TM-M30",
		},
	}

	db.vendors[0x0519] = &vendorInfo{
		name: "Star Micronics Co., Ltd.",
		products: map[gousb.ID]string{
			0x0001: "Star TSP143III",
			0x0002: "Star TSP143IIIU",
			0x0003: "Star TSP654II",
		},
	}

	db.vendors[0x1CBE] = &vendorInfo{
		name: "Citizen Systems Japan Co., Ltd.",
		products: map[gousb.ID]string{
			0x0001: "Citizen CT-S310II",
			0x0002: "Citizen CT-S4000",
		},
	}

	db.vendors[0x1504] = &vendorInfo{
		name: "BIXOLON Co., Ltd.",
		products: map[gousb.ID]string{
			0x0006: "Bixolon SRP-330II",
			0x0007: "Bixolon SRP-350III",
		},
	}
}

// IsKnownVendor checks if a vendor ID is in the database
func (db *DeviceDatabase) IsKnownVendor(vendorID gousb.ID) bool {
	_, exists := db.vendors[vendorID]
	return exists
}

// ProductName returns the known name for a vendor/product pair, the vendor
// name for unknown products of known vendors, and "" otherwise.
func (db *DeviceDatabase) ProductName(vendorID, productID gousb.ID) string {
	vendor, exists := db.vendors[vendorID]
	if !exists {
		return ""
	}
	if name, ok := vendor.products[productID]; ok {
		return name
	}
	return vendor.name
}
