// Package wizard holds the property document wizard: the collected state,
// the six steps and the rules for moving between them. It does no I/O.
package wizard

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	FirstStep = 1
	LastStep  = 6
	StepCount = LastStep - FirstStep + 1
)

// Wizard owns one session's State and current step. It is not safe for
// concurrent use.
type Wizard struct {
	state   State
	current int
	closed  bool
}

func New() *Wizard {
	return &Wizard{state: NewState(), current: FirstStep}
}

// Restore rebuilds a wizard from a saved snapshot.
func Restore(state State, current int) (*Wizard, error) {
	if current < FirstStep || current > LastStep {
		return nil, fmt.Errorf("%w: %d", ErrStepOutOfBounds, current)
	}
	st := state.Clone()
	if len(st.PropertyDetails.Sellers) == 0 {
		st.PropertyDetails.Sellers = []Seller{{}}
	}
	if st.PropertyDetails.Size.Unit == "" {
		st.PropertyDetails.Size.Unit = UnitKatha
	}
	for _, s := range allSlots {
		if ds := st.Documents.slot(s); ds.Files == nil {
			ds.Files = []File{}
		}
	}
	return &Wizard{state: st, current: current}, nil
}

func (w *Wizard) State() State {
	return w.state.Clone()
}

func (w *Wizard) CurrentStep() int {
	return w.current
}

func (w *Wizard) Closed() bool {
	return w.closed
}

func (w *Wizard) SetPropertyType(value PropertyType) error {
	if err := w.open(); err != nil {
		return err
	}
	if _, err := ParsePropertyType(string(value)); err != nil {
		return err
	}
	w.state.PropertyType = value
	return nil
}

func (w *Wizard) SetOwnershipType(value OwnershipType) error {
	if err := w.open(); err != nil {
		return err
	}
	if _, err := ParseOwnershipType(string(value)); err != nil {
		return err
	}
	w.state.OwnershipType = value
	return nil
}

// UploadFiles appends files to a slot. There is no deduplication and no
// type or size check here; callers filter uploads before they get this far.
func (w *Wizard) UploadFiles(slot Slot, files []File) error {
	if err := w.open(); err != nil {
		return err
	}
	ds := w.state.Documents.slot(slot)
	if ds == nil {
		return ErrInvalidSlot
	}
	ds.Files = append(ds.Files, files...)
	return nil
}

func (w *Wizard) UpdateDocumentMeta(slot Slot, field DocumentField, value string) error {
	if err := w.open(); err != nil {
		return err
	}
	ds := w.state.Documents.slot(slot)
	if ds == nil {
		return ErrInvalidSlot
	}
	switch field {
	case FieldTitle:
		ds.Title = value
	case FieldDescription:
		ds.Description = value
	case FieldNotes:
		ds.Notes = value
	case FieldCategory:
		if value == "" {
			ds.Category = ""
			return nil
		}
		category, err := ParseDocumentCategory(value)
		if err != nil {
			return err
		}
		ds.Category = category
	default:
		return fmt.Errorf("%w: %q", ErrInvalidField, field)
	}
	return nil
}

// SetPossessionFlag only toggles visibility of the possession photos.
func (w *Wizard) SetPossessionFlag(has bool) error {
	if err := w.open(); err != nil {
		return err
	}
	w.state.Documents.Possession.HasPossession = has
	return nil
}

func (w *Wizard) AddSeller() error {
	if err := w.open(); err != nil {
		return err
	}
	w.state.PropertyDetails.Sellers = append(w.state.PropertyDetails.Sellers, Seller{})
	return nil
}

func (w *Wizard) UpdateSeller(index int, field SellerField, value string) error {
	if err := w.open(); err != nil {
		return err
	}
	sellers := w.state.PropertyDetails.Sellers
	if index < 0 || index >= len(sellers) {
		return fmt.Errorf("%w: %d", ErrSellerIndex, index)
	}
	switch field {
	case SellerName:
		sellers[index].Name = value
	case SellerPhone:
		sellers[index].Phone = value
	case SellerEmail:
		sellers[index].Email = value
	default:
		return fmt.Errorf("%w: %q", ErrInvalidField, field)
	}
	return nil
}

func (w *Wizard) SetSize(value string, unit SizeUnit) error {
	if err := w.open(); err != nil {
		return err
	}
	if err := checkAmount(value); err != nil {
		return fmt.Errorf("size: %w", err)
	}
	if _, err := ParseSizeUnit(string(unit)); err != nil {
		return err
	}
	w.state.PropertyDetails.Size = Size{Value: strings.TrimSpace(value), Unit: unit}
	return nil
}

func (w *Wizard) SetValuation(value string) error {
	if err := w.open(); err != nil {
		return err
	}
	if err := checkAmount(value); err != nil {
		return fmt.Errorf("valuation: %w", err)
	}
	w.state.PropertyDetails.Valuation = strings.TrimSpace(value)
	return nil
}

func (w *Wizard) SetPurchaseDate(value string) error {
	if err := w.open(); err != nil {
		return err
	}
	value = strings.TrimSpace(value)
	if value != "" {
		if _, err := time.Parse("2006-01-02", value); err != nil {
			return fmt.Errorf("%w: purchase date %q", ErrInvalidValue, value)
		}
	}
	w.state.PropertyDetails.PurchaseDate = value
	return nil
}

// SetAddress stores the free-text address. Geocoding happens outside the
// wizard.
func (w *Wizard) SetAddress(value string) error {
	if err := w.open(); err != nil {
		return err
	}
	w.state.PropertyDetails.Address = value
	return nil
}

// GoNext advances one step when the current step's gate passes.
func (w *Wizard) GoNext() error {
	if err := w.open(); err != nil {
		return err
	}
	if w.current >= LastStep {
		return ErrTerminalStep
	}
	if err := w.gate(w.current); err != nil {
		return err
	}
	w.current++
	return nil
}

// GoPrevious steps back, never below the first step.
func (w *Wizard) GoPrevious() error {
	if err := w.open(); err != nil {
		return err
	}
	if w.current > FirstStep {
		w.current--
	}
	return nil
}

// Submit closes the session and returns the final state for persistence.
func (w *Wizard) Submit() (State, error) {
	if err := w.open(); err != nil {
		return State{}, err
	}
	if w.current != LastStep {
		return State{}, ErrNotAtFinalStep
	}
	if err := w.gate(FirstStep); err != nil {
		return State{}, err
	}
	w.closed = true
	return w.state.Clone(), nil
}

// gate reports whether the user may leave step. Only the first step has
// required fields; steps 2-5 always pass.
func (w *Wizard) gate(step int) error {
	if step != FirstStep {
		return nil
	}
	var missing []string
	if w.state.PropertyType == "" {
		missing = append(missing, "propertyType")
	}
	if w.state.OwnershipType == "" {
		missing = append(missing, "ownershipType")
	}
	if len(missing) > 0 {
		return &GateError{Step: step, Missing: missing}
	}
	return nil
}

func (w *Wizard) open() error {
	if w.closed {
		return ErrSessionClosed
	}
	return nil
}

func checkAmount(value string) error {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil || f < 0 {
		return fmt.Errorf("%w: %q is not a non-negative number", ErrInvalidValue, value)
	}
	return nil
}
