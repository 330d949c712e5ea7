package models

// Party holds the display information for a party ID.
// The netting engine never sees this; it only handles the opaque ID.
type Party struct {
	// ID is the stable party handle used in settlements.
	ID string

	// DisplayName is the name shown next to settlements.
	DisplayName string
}
