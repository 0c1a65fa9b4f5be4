package wizard

import "fmt"

type slotKind uint8

const (
	slotInvalid slotKind = iota
	slotDolilAgreements
	slotDCR
	slotKhatian
	slotKhajna
	slotPossessionPhotos
	slotBayaDeed
	slotMoujaMap
)

// Slot addresses one document slot of the wizard. The zero value addresses
// nothing; valid slots are only obtainable from the values below or ParseSlot.
type Slot struct {
	kind   slotKind
	survey SurveyType
}

var (
	DolilAgreements  = Slot{kind: slotDolilAgreements}
	DCR              = Slot{kind: slotDCR}
	Khajna           = Slot{kind: slotKhajna}
	PossessionPhotos = Slot{kind: slotPossessionPhotos}
	BayaDeed         = Slot{kind: slotBayaDeed}
	MoujaMap         = Slot{kind: slotMoujaMap}

	KhatianCS  = Slot{kind: slotKhatian, survey: SurveyCS}
	KhatianSA  = Slot{kind: slotKhatian, survey: SurveySA}
	KhatianRS  = Slot{kind: slotKhatian, survey: SurveyRS}
	KhatianBRS = Slot{kind: slotKhatian, survey: SurveyBRS}
	KhatianBS  = Slot{kind: slotKhatian, survey: SurveyBS}
)

var allSlots = []Slot{
	DolilAgreements,
	DCR,
	KhatianCS, KhatianSA, KhatianRS, KhatianBRS, KhatianBS,
	Khajna,
	PossessionPhotos,
	BayaDeed,
	MoujaMap,
}

// KhatianSlot returns the khatian slot of a survey regime.
func KhatianSlot(survey SurveyType) (Slot, bool) {
	for _, s := range surveyTypes {
		if s == survey {
			return Slot{kind: slotKhatian, survey: s}, true
		}
	}
	return Slot{}, false
}

// AllSlots lists every addressable slot in wizard order.
func AllSlots() []Slot {
	out := make([]Slot, len(allSlots))
	copy(out, allSlots)
	return out
}

// ParseSlot turns a wire path ("dolilAgreements", "khatian.cs",
// "possession.photos") into a Slot.
func ParseSlot(path string) (Slot, error) {
	for _, s := range allSlots {
		if s.String() == path {
			return s, nil
		}
	}
	return Slot{}, fmt.Errorf("%w: %q", ErrInvalidSlot, path)
}

func (s Slot) Valid() bool {
	return s.kind != slotInvalid
}

// Survey returns the survey regime of a khatian slot.
func (s Slot) Survey() (SurveyType, bool) {
	return s.survey, s.kind == slotKhatian
}

func (s Slot) String() string {
	switch s.kind {
	case slotDolilAgreements:
		return "dolilAgreements"
	case slotDCR:
		return "dcr"
	case slotKhatian:
		return "khatian." + string(s.survey)
	case slotKhajna:
		return "khajna"
	case slotPossessionPhotos:
		return "possession.photos"
	case slotBayaDeed:
		return "bayaDeed"
	case slotMoujaMap:
		return "moujaMap"
	default:
		return ""
	}
}

func (s Slot) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, ErrInvalidSlot
	}
	return []byte(s.String()), nil
}

func (s *Slot) UnmarshalText(text []byte) error {
	parsed, err := ParseSlot(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
