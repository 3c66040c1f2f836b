package domain

// TitleStrategy selects the column a type's display title comes from.
type TitleStrategy int

const (
	TitleFromName TitleStrategy = iota
	TitleFromTitle
)

// TableSpec describes how one entity type is stored. Empty column names mean
// the entity has no such attribute.
type TableSpec struct {
	Table      string
	TextFields []string
	Title      TitleStrategy

	CreatedAtColumn  string
	StatusColumn     string
	PriorityColumn   string
	AssignedToColumn string
	TagsColumn       string
	ValueColumn      string
	CompanyColumn    string
}

// TitleColumn returns the column backing the display title.
func (s TableSpec) TitleColumn() string {
	if s.Title == TitleFromTitle {
		return "title"
	}
	return "name"
}

// TenantColumn is the column every table uses for organization scoping.
const TenantColumn = "organization_id"

var registry = map[EntityType]TableSpec{
	EntityLead: {
		Table:            "leads",
		TextFields:       []string{"name", "email", "company", "phone"},
		Title:            TitleFromName,
		CreatedAtColumn:  "created_at",
		StatusColumn:     "status",
		PriorityColumn:   "priority",
		AssignedToColumn: "assigned_to",
		TagsColumn:       "tags",
		ValueColumn:      "value",
		CompanyColumn:    "company",
	},
	EntityCustomer: {
		Table:            "customers",
		TextFields:       []string{"name", "email", "company", "phone"},
		Title:            TitleFromName,
		CreatedAtColumn:  "created_at",
		StatusColumn:     "status",
		PriorityColumn:   "priority",
		AssignedToColumn: "assigned_to",
		TagsColumn:       "tags",
		ValueColumn:      "value",
		CompanyColumn:    "company",
	},
	EntityDeal: {
		Table:            "deals",
		TextFields:       []string{"title", "description", "customer_name"},
		Title:            TitleFromTitle,
		CreatedAtColumn:  "created_at",
		StatusColumn:     "status",
		PriorityColumn:   "priority",
		AssignedToColumn: "assigned_to",
		TagsColumn:       "tags",
		ValueColumn:      "value",
	},
	EntityTask: {
		Table:            "tasks",
		TextFields:       []string{"title", "description"},
		Title:            TitleFromTitle,
		CreatedAtColumn:  "created_at",
		StatusColumn:     "status",
		PriorityColumn:   "priority",
		AssignedToColumn: "assigned_to",
		TagsColumn:       "tags",
	},
	EntityProposal: {
		Table:            "proposals",
		TextFields:       []string{"title", "description", "customer_name"},
		Title:            TitleFromTitle,
		CreatedAtColumn:  "created_at",
		StatusColumn:     "status",
		PriorityColumn:   "priority",
		AssignedToColumn: "assigned_to",
		TagsColumn:       "tags",
		ValueColumn:      "total_amount",
	},
	EntityWorkflow: {
		Table:           "workflows",
		TextFields:      []string{"name", "description"},
		Title:           TitleFromName,
		CreatedAtColumn: "created_at",
		StatusColumn:    "status",
		TagsColumn:      "tags",
	},
}

// TableFor returns the storage layout of t. The second result is false for
// unknown types.
func TableFor(t EntityType) (TableSpec, bool) {
	spec, ok := registry[t]
	if !ok {
		return TableSpec{}, false
	}
	spec.TextFields = append([]string(nil), spec.TextFields...)
	return spec, true
}
