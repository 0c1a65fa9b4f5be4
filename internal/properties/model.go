package properties

import (
	"time"

	"wisebox-backend/internal/wizard"
)

const (
	StatusSubmitted = "submitted"
	StatusVerified  = "verified"
	StatusArchived  = "archived"

	ComplianceCompliant = "compliant"
	ComplianceWarning   = "warning"
	ComplianceCritical  = "critical"
)

var validStatuses = map[string]struct{}{
	StatusSubmitted: {},
	StatusVerified:  {},
	StatusArchived:  {},
}

func IsValidStatus(value string) bool {
	_, ok := validStatuses[value]
	return ok
}

// Record is a submitted property. State is the wizard snapshot at submit
// time; the map pin is not part of it.
type Record struct {
	ID      string       `bson:"_id,omitempty" json:"id"`
	OwnerID string       `bson:"ownerId" json:"ownerId"`
	Status  string       `bson:"status" json:"status"`
	State   wizard.State `bson:"state" json:"state"`
	// ObjectKeys flattens the blob keys of State so blob cleanup can ask
	// whether a record still points at an object.
	ObjectKeys []string  `bson:"objectKeys" json:"-"`
	CreatedAt  time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt  time.Time `bson:"updatedAt" json:"updatedAt"`
}

type Summary struct {
	ID               string               `json:"id"`
	PropertyType     wizard.PropertyType  `json:"propertyType"`
	OwnershipType    wizard.OwnershipType `json:"ownershipType"`
	Address          string               `json:"address,omitempty"`
	Size             wizard.Size          `json:"size"`
	Valuation        string               `json:"valuation,omitempty"`
	DocumentCount    int                  `json:"documentCount"`
	MissingDocuments []string             `json:"missingDocuments"`
	Compliance       string               `json:"compliance"`
	Status           string               `json:"status"`
	CreatedAt        time.Time            `json:"createdAt"`
}

type Dashboard struct {
	Total      int       `json:"total"`
	Compliant  int       `json:"compliant"`
	Warning    int       `json:"warning"`
	Critical   int       `json:"critical"`
	Documents  int       `json:"documents"`
	Properties []Summary `json:"properties"`
}

type FileLink struct {
	wizard.File
	URL string `json:"url,omitempty"`
}

type DocumentStatus struct {
	Slot        string                  `json:"slot"`
	Label       string                  `json:"label"`
	Uploaded    bool                    `json:"uploaded"`
	Title       string                  `json:"title,omitempty"`
	Category    wizard.DocumentCategory `json:"category,omitempty"`
	Notes       string                  `json:"notes,omitempty"`
	Files       []FileLink              `json:"files"`
}

type Details struct {
	Summary   Summary          `json:"summary"`
	Record    Record           `json:"record"`
	Documents []DocumentStatus `json:"documents"`
}

type ListFilter struct {
	OwnerID      string
	Status       string
	PropertyType string
}

type AdminStatusUpdateRequest struct {
	Status string `json:"status" validate:"required,oneof=submitted verified archived"`
}

type coreDocument struct {
	name     string
	critical bool
	present  func(st wizard.State) bool
}

// coreDocuments drive the compliance badge: a missing critical document
// makes the property critical, any other missing one a warning.
var coreDocuments = []coreDocument{
	{name: "dolilAgreements", critical: true, present: func(st wizard.State) bool {
		return len(st.Documents.DolilAgreements.Files) > 0
	}},
	{name: "khatian", present: func(st wizard.State) bool {
		for _, survey := range wizard.SurveyTypes() {
			slot, _ := wizard.KhatianSlot(survey)
			if ds, ok := st.Slot(slot); ok && len(ds.Files) > 0 {
				return true
			}
		}
		return false
	}},
	{name: "dcr", present: func(st wizard.State) bool {
		return len(st.Documents.DCR.Files) > 0
	}},
	{name: "khajna", present: func(st wizard.State) bool {
		return len(st.Documents.Khajna.Files) > 0
	}},
}

func Summarize(rec Record) Summary {
	missing := make([]string, 0)
	compliance := ComplianceCompliant
	for _, doc := range coreDocuments {
		if doc.present(rec.State) {
			continue
		}
		missing = append(missing, doc.name)
		if doc.critical {
			compliance = ComplianceCritical
		} else if compliance != ComplianceCritical {
			compliance = ComplianceWarning
		}
	}

	return Summary{
		ID:               rec.ID,
		PropertyType:     rec.State.PropertyType,
		OwnershipType:    rec.State.OwnershipType,
		Address:          rec.State.PropertyDetails.Address,
		Size:             rec.State.PropertyDetails.Size,
		Valuation:        rec.State.PropertyDetails.Valuation,
		DocumentCount:    rec.State.FileCount(),
		MissingDocuments: missing,
		Compliance:       compliance,
		Status:           rec.Status,
		CreatedAt:        rec.CreatedAt,
	}
}

var slotLabels = map[string]string{
	"dolilAgreements":   "Dolil / Agreements",
	"dcr":               "DCR",
	"khatian.cs":        "Khatian (CS)",
	"khatian.sa":        "Khatian (SA)",
	"khatian.rs":        "Khatian (RS)",
	"khatian.brs":       "Khatian (BRS)",
	"khatian.bs":        "Khatian (BS)",
	"khajna":            "Khajna Receipts",
	"possession.photos": "Possession Photos",
	"bayaDeed":          "Baya Deed",
	"moujaMap":          "Mouja Map",
}

// DocumentLabel names a slot or core document for people.
func DocumentLabel(name string) string {
	if name == "khatian" {
		return "Khatian (any survey)"
	}
	if label, ok := slotLabels[name]; ok {
		return label
	}
	return name
}

func slotLabel(slot wizard.Slot) string {
	if label, ok := slotLabels[slot.String()]; ok {
		return label
	}
	return slot.String()
}
