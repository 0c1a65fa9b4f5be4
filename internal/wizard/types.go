package wizard

import (
	"fmt"
	"slices"
)

type PropertyType string

const (
	PropertyLand       PropertyType = "land"
	PropertyApartment  PropertyType = "apartment"
	PropertyHouse      PropertyType = "house"
	PropertyCommercial PropertyType = "commercial"
)

var propertyTypes = []PropertyType{PropertyLand, PropertyApartment, PropertyHouse, PropertyCommercial}

func PropertyTypes() []PropertyType { return slices.Clone(propertyTypes) }

func ParsePropertyType(value string) (PropertyType, error) {
	for _, t := range propertyTypes {
		if string(t) == value {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: property type %q", ErrInvalidValue, value)
}

type OwnershipType string

const (
	OwnershipPersonal OwnershipType = "personal"
	OwnershipShared   OwnershipType = "shared"
)

var ownershipTypes = []OwnershipType{OwnershipPersonal, OwnershipShared}

func OwnershipTypes() []OwnershipType { return slices.Clone(ownershipTypes) }

func ParseOwnershipType(value string) (OwnershipType, error) {
	for _, t := range ownershipTypes {
		if string(t) == value {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: ownership type %q", ErrInvalidValue, value)
}

type SizeUnit string

const (
	UnitKatha   SizeUnit = "Katha"
	UnitBigha   SizeUnit = "Bigha"
	UnitDecimal SizeUnit = "Decimal"
	UnitSqFt    SizeUnit = "Sq Ft"
	UnitAcres   SizeUnit = "Acres"
)

var sizeUnits = []SizeUnit{UnitKatha, UnitBigha, UnitDecimal, UnitSqFt, UnitAcres}

func SizeUnits() []SizeUnit { return slices.Clone(sizeUnits) }

func ParseSizeUnit(value string) (SizeUnit, error) {
	for _, u := range sizeUnits {
		if string(u) == value {
			return u, nil
		}
	}
	return "", fmt.Errorf("%w: size unit %q", ErrInvalidValue, value)
}

// DocumentCategory describes the physical form of an uploaded document.
type DocumentCategory string

const (
	CategoryOriginal      DocumentCategory = "original"
	CategoryCertifiedCopy DocumentCategory = "certified-copy"
	CategoryPhotocopy     DocumentCategory = "photocopy"
	CategoryDigitalScan   DocumentCategory = "digital-scan"
)

var documentCategories = []DocumentCategory{CategoryOriginal, CategoryCertifiedCopy, CategoryPhotocopy, CategoryDigitalScan}

func DocumentCategories() []DocumentCategory { return slices.Clone(documentCategories) }

func ParseDocumentCategory(value string) (DocumentCategory, error) {
	for _, c := range documentCategories {
		if string(c) == value {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: document category %q", ErrInvalidValue, value)
}

// SurveyType is the survey regime a khatian record was filed under.
type SurveyType string

const (
	SurveyCS  SurveyType = "cs"
	SurveySA  SurveyType = "sa"
	SurveyRS  SurveyType = "rs"
	SurveyBRS SurveyType = "brs"
	SurveyBS  SurveyType = "bs"
)

var surveyTypes = []SurveyType{SurveyCS, SurveySA, SurveyRS, SurveyBRS, SurveyBS}

func ParseSurveyType(value string) (SurveyType, error) {
	for _, s := range surveyTypes {
		if string(s) == value {
			return s, nil
		}
	}
	return "", fmt.Errorf("%w: survey type %q", ErrInvalidValue, value)
}

// SurveyTypes returns the survey regimes in display order.
func SurveyTypes() []SurveyType { return slices.Clone(surveyTypes) }

type DocumentField string

const (
	FieldTitle       DocumentField = "title"
	FieldDescription DocumentField = "description"
	FieldCategory    DocumentField = "category"
	FieldNotes       DocumentField = "notes"
)

type SellerField string

const (
	SellerName  SellerField = "name"
	SellerPhone SellerField = "phone"
	SellerEmail SellerField = "email"
)
