package lead

// MergePolicy decides whether an incoming value may replace an existing one.
type MergePolicy int

const (
	// FillIfEmpty writes the incoming value only when the field is unset.
	// Used by passive enrichment (capture_customer_info, inference).
	FillIfEmpty MergePolicy = iota
	// AlwaysOverwrite replaces the field whenever the incoming value is
	// non-empty. Used by explicit qualification events.
	AlwaysOverwrite
)

// Fields is the untrusted, partially-filled signal coming out of a tool call.
// Empty values mean "not provided" and never erase stored data.
type Fields struct {
	Name              string `json:"nombre"`
	Email             string `json:"email"`
	Phone             string `json:"telefono"`
	Source            string `json:"fuente"`
	CityOfInterest    string `json:"ciudad_interes"`
	ProjectOfInterest string `json:"proyecto_interes"`
	PropertyType      string `json:"tipo_propiedad"`
	BudgetText        string `json:"presupuesto"`
	BudgetMin         int64  `json:"presupuesto_min"`
	BudgetMax         int64  `json:"presupuesto_max"`
	Motive            string `json:"motivo"`
	InterestReason    string `json:"motivo_interes"`
	PurchaseUrgency   string `json:"urgencia_compra"`
	PreferredContact  string `json:"metodo_contacto_preferido"`
	WantsVisit        bool   `json:"desea_visita"`
	WantsCall         bool   `json:"desea_llamada"`
	WantsInfo         bool   `json:"desea_informacion"`
}

// Identity resolves the natural key carried by the fields.
func (f Fields) Identity() Identity {
	return Identity{Phone: f.Phone, Name: f.Name}
}

func mergeStr(dst *string, v string, p MergePolicy) bool {
	if v == "" || *dst == v {
		return false
	}
	if p == FillIfEmpty && *dst != "" {
		return false
	}
	*dst = v
	return true
}

func mergeInt64(dst *int64, v int64, p MergePolicy) bool {
	if v == 0 || *dst == v {
		return false
	}
	if p == FillIfEmpty && *dst != 0 {
		return false
	}
	*dst = v
	return true
}

// mergeFlag is sticky: a want, once expressed, is never retracted by a later
// signal that simply omits it.
func mergeFlag(dst *bool, v bool) bool {
	if v && !*dst {
		*dst = true
		return true
	}
	return false
}

// MergeCustomer applies fields to a customer under one policy. Reports
// whether anything changed.
func MergeCustomer(c *Customer, f Fields, p MergePolicy) bool {
	changed := false
	changed = mergeStr(&c.Name, f.Name, p) || changed
	changed = mergeStr(&c.Email, f.Email, p) || changed
	changed = mergeStr(&c.Phone, f.Phone, p) || changed
	changed = mergeStr(&c.CityOfInterest, f.CityOfInterest, p) || changed
	changed = mergeStr(&c.PropertyType, f.PropertyType, p) || changed
	changed = mergeInt64(&c.BudgetMin, f.BudgetMin, p) || changed
	changed = mergeInt64(&c.BudgetMax, f.BudgetMax, p) || changed
	return changed
}

// MergeLead applies fields to a lead under one policy. The rating is not
// touched here: rating moves only through BumpRating to keep it monotonic.
func MergeLead(l *QualifiedLead, f Fields, p MergePolicy) bool {
	changed := false
	changed = mergeStr(&l.Name, f.Name, p) || changed
	changed = mergeStr(&l.Email, f.Email, p) || changed
	changed = mergeStr(&l.Phone, f.Phone, p) || changed
	changed = mergeStr(&l.CityOfInterest, f.CityOfInterest, p) || changed
	changed = mergeStr(&l.ProjectOfInterest, f.ProjectOfInterest, p) || changed
	changed = mergeStr(&l.PropertyType, f.PropertyType, p) || changed
	changed = mergeInt64(&l.BudgetMin, f.BudgetMin, p) || changed
	changed = mergeInt64(&l.BudgetMax, f.BudgetMax, p) || changed
	changed = mergeStr(&l.InterestReason, f.InterestReason, p) || changed
	changed = mergeStr(&l.PurchaseUrgency, f.PurchaseUrgency, p) || changed
	changed = mergeStr(&l.PreferredContact, f.PreferredContact, p) || changed
	changed = mergeFlag(&l.WantsVisit, f.WantsVisit) || changed
	changed = mergeFlag(&l.WantsCall, f.WantsCall) || changed
	changed = mergeFlag(&l.WantsInfo, f.WantsInfo) || changed
	return changed
}

// BumpRating raises the lead's rating when the candidate is strictly higher.
func BumpRating(l *QualifiedLead, candidate Rating) bool {
	if candidate > l.Rating {
		l.Rating = candidate
		return true
	}
	return false
}
