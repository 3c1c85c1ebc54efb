package gatt

import "github.com/google/uuid"

// Well-known identifiers of the smart lock GATT profile.
var (
	PairingService   = uuid.MustParse("a92ee100-5501-11e4-916c-0800200c9a66")
	PairingGDIO      = uuid.MustParse("a92ee101-5501-11e4-916c-0800200c9a66")
	KeyturnerService = uuid.MustParse("a92ee200-5501-11e4-916c-0800200c9a66")
	KeyturnerGDIO    = uuid.MustParse("a92ee201-5501-11e4-916c-0800200c9a66")
	KeyturnerUSDIO   = uuid.MustParse("a92ee202-5501-11e4-916c-0800200c9a66")

	// ClientCharacteristicConfig is the standard CCC descriptor.
	ClientCharacteristicConfig = uuid.MustParse("00002902-0000-1000-8000-00805f9b34fb")
)

// EnableIndicationValue is written to a CCC descriptor to enable indications.
var EnableIndicationValue = []byte{0x02, 0x00}
