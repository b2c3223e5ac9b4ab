package lead

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ninalabs/ninabot/internal/db"
)

// PgStore is the PostgreSQL-backed Store.
type PgStore struct {
	pool *pgxpool.Pool
}

// NewPgStore creates a PgStore over the given pool.
func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

const customerColumns = `id, phone, name, email, source, city_of_interest,
	property_type, budget_min, budget_max, purchase_interest, created_at, updated_at`

func scanCustomer(row pgx.Row) (Customer, error) {
	var c Customer
	err := row.Scan(&c.ID, &c.Phone, &c.Name, &c.Email, &c.Source,
		&c.CityOfInterest, &c.PropertyType, &c.BudgetMin, &c.BudgetMax,
		&c.PurchaseInterest, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

func (st *PgStore) FindCustomer(ctx context.Context, id Identity) (Customer, error) {
	var row pgx.Row
	switch {
	case id.Phone != "":
		row = st.pool.QueryRow(ctx,
			`SELECT `+customerColumns+` FROM customers WHERE phone = $1`, id.Phone)
	case id.Name != "":
		row = st.pool.QueryRow(ctx,
			`SELECT `+customerColumns+` FROM customers WHERE name = $1 AND source = $2`,
			id.Name, SourceWeb)
	default:
		return Customer{}, ErrNotFound
	}
	c, err := scanCustomer(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Customer{}, ErrNotFound
	}
	if err != nil {
		return Customer{}, fmt.Errorf("find customer: %w", err)
	}
	return c, nil
}

func (st *PgStore) CreateCustomer(ctx context.Context, c Customer) (Customer, error) {
	row := st.pool.QueryRow(ctx,
		`INSERT INTO customers (phone, name, email, source, city_of_interest,
			property_type, budget_min, budget_max, purchase_interest)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING `+customerColumns,
		c.Phone, c.Name, c.Email, c.Source, c.CityOfInterest,
		c.PropertyType, c.BudgetMin, c.BudgetMax, c.PurchaseInterest)
	created, err := scanCustomer(row)
	if err != nil {
		// A concurrent capture for the same phone may have won the insert.
		if db.IsUniqueViolation(err) {
			return st.FindCustomer(ctx, Identity{Phone: c.Phone, Name: c.Name})
		}
		return Customer{}, fmt.Errorf("create customer: %w", err)
	}
	return created, nil
}

func (st *PgStore) UpdateCustomer(ctx context.Context, c Customer) error {
	_, err := st.pool.Exec(ctx,
		`UPDATE customers SET phone=$2, name=$3, email=$4, city_of_interest=$5,
			property_type=$6, budget_min=$7, budget_max=$8, purchase_interest=$9,
			updated_at=now()
		WHERE id = $1`,
		c.ID, c.Phone, c.Name, c.Email, c.CityOfInterest,
		c.PropertyType, c.BudgetMin, c.BudgetMax, c.PurchaseInterest)
	if err != nil {
		return fmt.Errorf("update customer: %w", err)
	}
	return nil
}

const leadColumns = `id, customer_id, phone, name, email, source,
	city_of_interest, project_of_interest, property_type, budget_min, budget_max,
	interest_reason, purchase_urgency, preferred_contact_method,
	wants_visit, wants_call, wants_info, rating, conversation_summary,
	crm_injected, crm_lead_id, created_at, updated_at`

func scanLead(row pgx.Row) (QualifiedLead, error) {
	var l QualifiedLead
	var rating string
	err := row.Scan(&l.ID, &l.CustomerID, &l.Phone, &l.Name, &l.Email, &l.Source,
		&l.CityOfInterest, &l.ProjectOfInterest, &l.PropertyType, &l.BudgetMin, &l.BudgetMax,
		&l.InterestReason, &l.PurchaseUrgency, &l.PreferredContact,
		&l.WantsVisit, &l.WantsCall, &l.WantsInfo, &rating, &l.ConversationSummary,
		&l.CRMInjected, &l.CRMLeadID, &l.CreatedAt, &l.UpdatedAt)
	l.Rating = ParseRating(rating)
	return l, err
}

func (st *PgStore) FindLead(ctx context.Context, id Identity) (QualifiedLead, error) {
	var row pgx.Row
	switch {
	case id.Phone != "":
		row = st.pool.QueryRow(ctx,
			`SELECT `+leadColumns+` FROM qualified_leads WHERE phone = $1`, id.Phone)
	case id.Name != "":
		row = st.pool.QueryRow(ctx,
			`SELECT `+leadColumns+` FROM qualified_leads WHERE name = $1 AND source = $2`,
			id.Name, SourceWeb)
	default:
		return QualifiedLead{}, ErrNotFound
	}
	l, err := scanLead(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return QualifiedLead{}, ErrNotFound
	}
	if err != nil {
		return QualifiedLead{}, fmt.Errorf("find lead: %w", err)
	}
	return l, nil
}

func (st *PgStore) CreateLead(ctx context.Context, l QualifiedLead) (QualifiedLead, error) {
	row := st.pool.QueryRow(ctx,
		`INSERT INTO qualified_leads (customer_id, phone, name, email, source,
			city_of_interest, project_of_interest, property_type, budget_min, budget_max,
			interest_reason, purchase_urgency, preferred_contact_method,
			wants_visit, wants_call, wants_info, rating, conversation_summary)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)
		RETURNING `+leadColumns,
		l.CustomerID, l.Phone, l.Name, l.Email, l.Source,
		l.CityOfInterest, l.ProjectOfInterest, l.PropertyType, l.BudgetMin, l.BudgetMax,
		l.InterestReason, l.PurchaseUrgency, l.PreferredContact,
		l.WantsVisit, l.WantsCall, l.WantsInfo, l.Rating.String(), l.ConversationSummary)
	created, err := scanLead(row)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return st.FindLead(ctx, Identity{Phone: l.Phone, Name: l.Name})
		}
		return QualifiedLead{}, fmt.Errorf("create lead: %w", err)
	}
	return created, nil
}

func (st *PgStore) UpdateLead(ctx context.Context, l QualifiedLead) error {
	_, err := st.pool.Exec(ctx,
		`UPDATE qualified_leads SET phone=$2, name=$3, email=$4,
			city_of_interest=$5, project_of_interest=$6, property_type=$7,
			budget_min=$8, budget_max=$9, interest_reason=$10, purchase_urgency=$11,
			preferred_contact_method=$12, wants_visit=$13, wants_call=$14, wants_info=$15,
			rating=$16, conversation_summary=$17, updated_at=now()
		WHERE id = $1`,
		l.ID, l.Phone, l.Name, l.Email,
		l.CityOfInterest, l.ProjectOfInterest, l.PropertyType,
		l.BudgetMin, l.BudgetMax, l.InterestReason, l.PurchaseUrgency,
		l.PreferredContact, l.WantsVisit, l.WantsCall, l.WantsInfo,
		l.Rating.String(), l.ConversationSummary)
	if err != nil {
		return fmt.Errorf("update lead: %w", err)
	}
	return nil
}

func (st *PgStore) ListLeads(ctx context.Context, f Filter) ([]QualifiedLead, error) {
	query := `SELECT ` + leadColumns + ` FROM qualified_leads`
	args := []any{}
	if f.Source != "" {
		query += ` WHERE source = $1`
		args = append(args, f.Source)
	}
	query += ` ORDER BY updated_at DESC`

	rows, err := st.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list leads: %w", err)
	}
	defer rows.Close()

	var leads []QualifiedLead
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, fmt.Errorf("scan lead: %w", err)
		}
		if l.Rating >= f.MinRating {
			leads = append(leads, l)
		}
	}
	return leads, rows.Err()
}

func (st *PgStore) MarkInjected(ctx context.Context, leadID, crmLeadID string) error {
	_, err := st.pool.Exec(ctx,
		`UPDATE qualified_leads SET crm_injected = TRUE, crm_lead_id = $2, updated_at = now()
		WHERE id = $1`, leadID, crmLeadID)
	if err != nil {
		return fmt.Errorf("mark injected: %w", err)
	}
	return nil
}
