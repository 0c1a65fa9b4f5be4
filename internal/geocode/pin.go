package geocode

// Pin is the map marker of a wizard session. Geocoded comes from the last
// successful lookup; Override is set when the user drags the marker and wins
// over Geocoded until the address is geocoded again.
type Pin struct {
	Geocoded  *Coordinates `json:"geocoded,omitempty"`
	Override  *Coordinates `json:"override,omitempty"`
	Resolved  bool         `json:"resolved"`
	LastError string       `json:"lastError,omitempty"`
}

// Position is where the marker is drawn.
func (p Pin) Position() Coordinates {
	switch {
	case p.Override != nil:
		return *p.Override
	case p.Geocoded != nil:
		return *p.Geocoded
	default:
		return Dhaka
	}
}

// Resolve records a successful lookup and drops any manual override.
func (p *Pin) Resolve(c Coordinates) {
	p.Geocoded = &c
	p.Override = nil
	p.Resolved = true
	p.LastError = ""
}

// Fail keeps the previous position and records the error for the client.
func (p *Pin) Fail(err error) {
	p.Resolved = false
	p.LastError = err.Error()
}

func (p *Pin) Move(c Coordinates) {
	p.Override = &c
}
