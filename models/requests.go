package models

// Request types

type RegisterRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	FullName    string `json:"full_name"`
	Institution string `json:"institution"`
	Experience  int    `json:"experience"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

type CreateUserRequest struct {
	RegisterRequest
	Role string `json:"role"`
}

type UpdateRoleRequest struct {
	Role string `json:"role"`
}

type CommitteeRequest struct {
	Name         string `json:"name"`
	Abbreviation string `json:"abbreviation"`
	Topic        string `json:"topic"`
	Description  string `json:"description"`
	Capacity     int    `json:"capacity"`
}

type AssignChairRequest struct {
	UserID *string `json:"user_id"`
}

type CountryRequest struct {
	Name       string `json:"name"`
	Code       string `json:"code"`
	Importance int    `json:"importance"`
}

type AddCommitteeCountriesRequest struct {
	CountryIDs []string `json:"country_ids"`
}

type CreateDelegateRequest struct {
	UserID string `json:"user_id"`
}

type AssignCommitteeRequest struct {
	CommitteeID string `json:"committee_id"`
}

type AssignCountryRequest struct {
	CountryID string `json:"country_id"`
}

type AllocateDelegateRequest struct {
	CountryID *string `json:"country_id"`
}

type CreateBlockRequest struct {
	Name string `json:"name"`
}

type AddBlockMemberRequest struct {
	DelegateID string `json:"delegate_id"`
}

type SubmitDocumentRequest struct {
	Kind     string  `json:"kind"`
	Title    string  `json:"title"`
	Body     string  `json:"body"`
	BlockID  *string `json:"block_id"`
	ParentID *string `json:"parent_id"`
}

type ReviewDocumentRequest struct {
	Decision string `json:"decision"` // approve | reject
	Note     string `json:"note"`
}

type CastVoteRequest struct {
	Position string `json:"position"`
}

type CreateScoreRequest struct {
	DelegateID string  `json:"delegate_id"`
	Category   string  `json:"category"`
	Session    int     `json:"session"`
	Points     float64 `json:"points"`
	Comment    string  `json:"comment"`
}

type AttendanceEntry struct {
	DelegateID string `json:"delegate_id"`
	Status     string `json:"status"`
}

type RecordAttendanceRequest struct {
	Session int               `json:"session"`
	Records []AttendanceEntry `json:"records"`
}

type EventRequest struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Location    string  `json:"location"`
	CommitteeID *string `json:"committee_id"`
	StartsAt    string  `json:"starts_at"` // RFC 3339
	EndsAt      string  `json:"ends_at"`   // RFC 3339
}

// Response types

type AuthResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

type CreatedResponse struct {
	ID string `json:"id"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type CommitteeWithCountries struct {
	Committee Committee          `json:"committee"`
	Countries []CommitteeCountry `json:"countries"`
}

type AllocationAssignment struct {
	DelegateID  string `json:"delegate_id"`
	FullName    string `json:"full_name"`
	Experience  int    `json:"experience"`
	CountryID   string `json:"country_id"`
	CountryName string `json:"country_name"`
	Importance  int    `json:"importance"`
}

type AllocationResponse struct {
	CommitteeID string                 `json:"committee_id"`
	Assignments []AllocationAssignment `json:"assignments"`
	Unassigned  []string               `json:"unassigned"` // delegate IDs
	Remaining   []string               `json:"remaining"`  // country IDs
}

type DocumentVotesResponse struct {
	DocumentID string `json:"document_id"`
	Status     string `json:"status"`
	Tally      Tally  `json:"tally"`
	Votes      []Vote `json:"votes"`
}

type PublishResponse struct {
	DocumentID string `json:"document_id"`
	Status     string `json:"status"`
	Tally      Tally  `json:"tally"`
}

type AwardsResponse struct {
	CommitteeID string          `json:"committee_id"`
	Standings   []AwardStanding `json:"standings"`
}

type RollCallResponse struct {
	CommitteeID string             `json:"committee_id"`
	Session     int                `json:"session"`
	Records     []AttendanceRecord `json:"records"`
	Present     int                `json:"present"`
	Total       int                `json:"total"`
	HasQuorum   bool               `json:"has_quorum"`
}

type StatsResponse struct {
	UsersByRole         map[string]int `json:"users_by_role"`
	Committees          int            `json:"committees"`
	Countries           int            `json:"countries"`
	DelegatesAssigned   int            `json:"delegates_assigned"`
	DelegatesUnassigned int            `json:"delegates_unassigned"`
	DocumentsByStatus   map[string]int `json:"documents_by_status"`
	Votes               int            `json:"votes"`
}
