// Package lead owns Customer and QualifiedLead entities: merging new signals
// into existing records, computing a monotonic rating, and inferring the
// property of interest used for CRM routing.
package lead

import "time"

// Rating is a monotonic qualification tier. It only ever moves forward along
// cold < initial < warm < hot; a weaker signal never downgrades a lead.
type Rating int

const (
	RatingCold Rating = iota
	RatingInitial
	RatingWarm
	RatingHot
)

func (r Rating) String() string {
	switch r {
	case RatingInitial:
		return "initial"
	case RatingWarm:
		return "warm"
	case RatingHot:
		return "hot"
	default:
		return "cold"
	}
}

// ParseRating maps a stored rating string back to its tier. Unknown values
// parse as cold so a corrupt row can only ever be re-qualified upward.
func ParseRating(s string) Rating {
	switch s {
	case "initial":
		return RatingInitial
	case "warm":
		return RatingWarm
	case "hot":
		return RatingHot
	default:
		return RatingCold
	}
}

// Motive values emitted by the AI orchestrator's qualify action.
const (
	MotiveVisit = "visita"
	MotiveCall  = "llamada"
	MotiveInfo  = "informacion"
	MotiveOther = "otro"
)

// Customer is the raw contact record captured during a conversation.
type Customer struct {
	ID               string    `json:"id"`
	Phone            string    `json:"phone,omitempty"`
	Name             string    `json:"name,omitempty"`
	Email            string    `json:"email,omitempty"`
	Source           string    `json:"source"`
	CityOfInterest   string    `json:"city_of_interest,omitempty"`
	PropertyType     string    `json:"property_type,omitempty"`
	BudgetMin        int64     `json:"budget_min,omitempty"`
	BudgetMax        int64     `json:"budget_max,omitempty"`
	PurchaseInterest string    `json:"purchase_interest,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// QualifiedLead is the progressively-enriched sales lead. At most one exists
// per phone (or per name for web visitors without a phone).
type QualifiedLead struct {
	ID                  string    `json:"id"`
	CustomerID          string    `json:"customer_id"`
	Phone               string    `json:"phone,omitempty"`
	Name                string    `json:"name,omitempty"`
	Email               string    `json:"email,omitempty"`
	Source              string    `json:"source"`
	CityOfInterest      string    `json:"city_of_interest,omitempty"`
	ProjectOfInterest   string    `json:"project_of_interest,omitempty"`
	PropertyType        string    `json:"property_type,omitempty"`
	BudgetMin           int64     `json:"budget_min,omitempty"`
	BudgetMax           int64     `json:"budget_max,omitempty"`
	InterestReason      string    `json:"interest_reason,omitempty"`
	PurchaseUrgency     string    `json:"purchase_urgency,omitempty"`
	PreferredContact    string    `json:"preferred_contact_method,omitempty"`
	WantsVisit          bool      `json:"wants_visit"`
	WantsCall           bool      `json:"wants_call"`
	WantsInfo           bool      `json:"wants_info"`
	Rating              Rating    `json:"-"`
	ConversationSummary string    `json:"conversation_summary,omitempty"`
	CRMInjected         bool      `json:"crm_injected"`
	CRMLeadID           string    `json:"crm_lead_id,omitempty"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// Identity is the natural key used to resolve a customer or lead: the phone
// when present, otherwise (name, source="web") for widget visitors.
type Identity struct {
	Phone string
	Name  string
}

// Valid reports whether the identity can resolve a record at all.
func (id Identity) Valid() bool {
	return id.Phone != "" || id.Name != ""
}

// SourceWeb marks leads captured through the web widget, which has no stable
// phone identifier.
const SourceWeb = "web"
