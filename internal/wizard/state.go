package wizard

import "time"

// File is one uploaded document. The binary content lives in the blob store
// under ObjectKey.
type File struct {
	ID          string    `json:"id" bson:"id"`
	Name        string    `json:"name" bson:"name"`
	Size        int64     `json:"size" bson:"size"`
	ContentType string    `json:"contentType" bson:"contentType"`
	ObjectKey   string    `json:"objectKey" bson:"objectKey"`
	UploadedAt  time.Time `json:"uploadedAt" bson:"uploadedAt"`
}

type DocumentSlot struct {
	Files       []File           `json:"files" bson:"files"`
	Title       string           `json:"title" bson:"title"`
	Description string           `json:"description" bson:"description"`
	Category    DocumentCategory `json:"category" bson:"category"`
	Notes       string           `json:"notes" bson:"notes"`
}

type KhatianRecords struct {
	CS  DocumentSlot `json:"cs" bson:"cs"`
	SA  DocumentSlot `json:"sa" bson:"sa"`
	RS  DocumentSlot `json:"rs" bson:"rs"`
	BRS DocumentSlot `json:"brs" bson:"brs"`
	BS  DocumentSlot `json:"bs" bson:"bs"`
}

// Possession keeps its photos when HasPossession is switched off; the flag
// only controls whether the photo section is shown.
type Possession struct {
	HasPossession bool         `json:"hasPossession" bson:"hasPossession"`
	Photos        DocumentSlot `json:"photos" bson:"photos"`
}

type Documents struct {
	DolilAgreements DocumentSlot   `json:"dolilAgreements" bson:"dolilAgreements"`
	DCR             DocumentSlot   `json:"dcr" bson:"dcr"`
	Khatian         KhatianRecords `json:"khatian" bson:"khatian"`
	Khajna          DocumentSlot   `json:"khajna" bson:"khajna"`
	Possession      Possession     `json:"possession" bson:"possession"`
	BayaDeed        DocumentSlot   `json:"bayaDeed" bson:"bayaDeed"`
	MoujaMap        DocumentSlot   `json:"moujaMap" bson:"moujaMap"`
}

type Size struct {
	Value string   `json:"value" bson:"value"`
	Unit  SizeUnit `json:"unit" bson:"unit"`
}

type Seller struct {
	Name  string `json:"name" bson:"name"`
	Phone string `json:"phone" bson:"phone"`
	Email string `json:"email" bson:"email"`
}

type PropertyDetails struct {
	Size         Size     `json:"size" bson:"size"`
	Valuation    string   `json:"valuation" bson:"valuation"`
	PurchaseDate string   `json:"purchaseDate" bson:"purchaseDate"`
	Address      string   `json:"address" bson:"address"`
	Sellers      []Seller `json:"sellers" bson:"sellers"`
}

// State is everything one "add property" session collects.
type State struct {
	PropertyType    PropertyType    `json:"propertyType" bson:"propertyType"`
	OwnershipType   OwnershipType   `json:"ownershipType" bson:"ownershipType"`
	Documents       Documents       `json:"documents" bson:"documents"`
	PropertyDetails PropertyDetails `json:"propertyDetails" bson:"propertyDetails"`
}

func NewState() State {
	st := State{
		PropertyDetails: PropertyDetails{
			Size:    Size{Unit: UnitKatha},
			Sellers: []Seller{{}},
		},
	}
	for _, s := range allSlots {
		st.Documents.slot(s).Files = []File{}
	}
	return st
}

// Slot returns a copy of the addressed slot.
func (st State) Slot(s Slot) (DocumentSlot, bool) {
	ds := st.Documents.slot(s)
	if ds == nil {
		return DocumentSlot{}, false
	}
	return ds.clone(), true
}

// FileCount is the number of files across all slots.
func (st State) FileCount() int {
	n := 0
	for _, s := range allSlots {
		n += len(st.Documents.slot(s).Files)
	}
	return n
}

// ObjectKeys lists the blob keys of every file in the state.
func (st State) ObjectKeys() []string {
	keys := make([]string, 0, st.FileCount())
	for _, s := range allSlots {
		for _, f := range st.Documents.slot(s).Files {
			if f.ObjectKey != "" {
				keys = append(keys, f.ObjectKey)
			}
		}
	}
	return keys
}

func (st State) Clone() State {
	out := st
	for _, s := range allSlots {
		*out.Documents.slot(s) = st.Documents.slot(s).clone()
	}
	out.PropertyDetails.Sellers = append([]Seller(nil), st.PropertyDetails.Sellers...)
	return out
}

func (d *Documents) slot(s Slot) *DocumentSlot {
	switch s.kind {
	case slotDolilAgreements:
		return &d.DolilAgreements
	case slotDCR:
		return &d.DCR
	case slotKhatian:
		switch s.survey {
		case SurveyCS:
			return &d.Khatian.CS
		case SurveySA:
			return &d.Khatian.SA
		case SurveyRS:
			return &d.Khatian.RS
		case SurveyBRS:
			return &d.Khatian.BRS
		case SurveyBS:
			return &d.Khatian.BS
		}
	case slotKhajna:
		return &d.Khajna
	case slotPossessionPhotos:
		return &d.Possession.Photos
	case slotBayaDeed:
		return &d.BayaDeed
	case slotMoujaMap:
		return &d.MoujaMap
	}
	return nil
}

func (ds DocumentSlot) clone() DocumentSlot {
	out := ds
	out.Files = append([]File{}, ds.Files...)
	return out
}
