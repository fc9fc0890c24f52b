package patient

import (
	"fmt"
	"strconv"
	"strings"
)

// DefaultKeyAttribute is the primary key attribute of the patients table.
const DefaultKeyAttribute = "patient_id"

// Attribute names of the modelled record fields.
const (
	AttrName        = "name"
	AttrSex         = "sex"
	AttrDateOfBirth = "date_of_birth"
	AttrBMI         = "bmi"
	AttrMedications = "medications"
	AttrDiseases    = "diseases"
	AttrStatus      = "status"
	AttrDiagnosis   = "diagnosis"
	AttrUpdatedAt   = "updatedAt"
)

// Record is one patient row. Fields the service reasons about are typed;
// every other stored attribute is kept verbatim in Attributes, with store
// numbers left as exact decimals until the response is written.
type Record struct {
	PatientID   string
	Name        string
	Sex         string
	DateOfBirth string
	BMI         *float64
	Medications []string
	Diseases    []string
	Status      string
	Diagnosis   string
	UpdatedAt   string
	Attributes  map[string]any
}

// BMIOrZero returns the body mass index, treating an absent value as 0.
func (r *Record) BMIOrZero() float64 {
	if r.BMI == nil {
		return 0
	}
	return *r.BMI
}

// Document returns the record as a flat attribute map keyed the way it is
// stored, with the primary key under keyAttr.
func (r *Record) Document(keyAttr string) map[string]any {
	doc := make(map[string]any, len(r.Attributes)+10)
	for k, v := range r.Attributes {
		doc[k] = v
	}
	if keyAttr == "" {
		keyAttr = DefaultKeyAttribute
	}
	if r.PatientID != "" {
		doc[keyAttr] = r.PatientID
	}

	setString := func(attr, v string) {
		if v != "" {
			doc[attr] = v
		}
	}
	setString(AttrName, r.Name)
	setString(AttrSex, r.Sex)
	setString(AttrDateOfBirth, r.DateOfBirth)
	setString(AttrStatus, r.Status)
	setString(AttrDiagnosis, r.Diagnosis)
	setString(AttrUpdatedAt, r.UpdatedAt)

	if r.BMI != nil {
		doc[AttrBMI] = *r.BMI
	}
	if r.Medications != nil {
		doc[AttrMedications] = r.Medications
	}
	if r.Diseases != nil {
		doc[AttrDiseases] = r.Diseases
	}
	return doc
}

// FromDocument builds a Record from a decoded store item. Values that do not
// fit their typed field are left in Attributes untouched.
func FromDocument(doc map[string]any, keyAttr string) *Record {
	if keyAttr == "" {
		keyAttr = DefaultKeyAttribute
	}
	r := &Record{Attributes: make(map[string]any)}

	for k, v := range doc {
		var ok bool
		switch k {
		case keyAttr:
			r.PatientID, ok = asString(v)
		case AttrName:
			r.Name, ok = asString(v)
		case AttrSex:
			r.Sex, ok = asString(v)
		case AttrDateOfBirth:
			r.DateOfBirth, ok = asString(v)
		case AttrStatus:
			r.Status, ok = asString(v)
		case AttrDiagnosis:
			r.Diagnosis, ok = asString(v)
		case AttrUpdatedAt:
			r.UpdatedAt, ok = asString(v)
		case AttrBMI:
			var f float64
			if f, ok = asFloat(v); ok {
				r.BMI = &f
			}
		case AttrMedications:
			r.Medications, ok = asStrings(v)
		case AttrDiseases:
			r.Diseases, ok = asStrings(v)
		}
		if !ok {
			r.Attributes[k] = v
		}
	}
	return r
}

type floater interface {
	Float64() (float64, error)
}

func asString(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case fmt.Stringer:
		return t.String(), true
	}
	return "", false
}

func asFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case floater:
		f, err := t.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	}
	return 0, false
}

func asStrings(v any) ([]string, bool) {
	switch t := v.(type) {
	case []string:
		return t, true
	case []any:
		out := make([]string, 0, len(t))
		for _, el := range t {
			s, ok := el.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	}
	return nil, false
}
