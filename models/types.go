package models

import "time"

// User roles
const (
	RoleAdmin    = "admin"
	RoleChair    = "chair"
	RoleDelegate = "delegate"
)

// Document kinds
const (
	KindPositionPaper   = "position_paper"
	KindDraftResolution = "draft_resolution"
	KindAmendment       = "amendment"
)

// Document status constants
const (
	DocSubmitted = "submitted"
	DocApproved  = "approved"
	DocRejected  = "rejected"
	DocPublished = "published"
	DocFailed    = "failed"
)

// Vote positions
const (
	VoteFor     = "for"
	VoteAgainst = "against"
	VoteAbstain = "abstain"
)

// Score categories
const (
	CategorySpeech        = "speech"
	CategoryPositionPaper = "position_paper"
	CategoryDiplomacy     = "diplomacy"
	CategoryResolution    = "resolution"
)

// Attendance status constants
const (
	AttendancePresent          = "present"
	AttendancePresentAndVoting = "present_and_voting"
	AttendanceLate             = "late"
	AttendanceAbsent           = "absent"
)

// ValidCountryCode reports whether code is 2 or 3 upper-case ASCII letters
func ValidCountryCode(code string) bool {
	if len(code) < 2 || len(code) > 3 {
		return false
	}
	for _, r := range code {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}

// Domain types

type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // Never expose in JSON
	FullName     string    `json:"full_name"`
	Institution  string    `json:"institution"`
	Role         string    `json:"role"`
	Experience   int       `json:"experience"`
	CreatedAt    time.Time `json:"created_at"`
}

type Committee struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Abbreviation  string    `json:"abbreviation"`
	Topic         string    `json:"topic"`
	Description   string    `json:"description"`
	Capacity      int       `json:"capacity"`
	ChairID       *string   `json:"chair_id,omitempty"`
	ChairName     *string   `json:"chair_name,omitempty"`
	DelegateCount int       `json:"delegate_count"`
	CreatedAt     time.Time `json:"created_at"`
}

type Country struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Code       string    `json:"code"`
	Importance int       `json:"importance"`
	CreatedAt  time.Time `json:"created_at"`
}

// CommitteeCountry is a country seat in a committee's matrix
type CommitteeCountry struct {
	Country
	Taken      bool    `json:"taken"`
	DelegateID *string `json:"delegate_id,omitempty"`
}

type Delegate struct {
	ID          string     `json:"id"`
	UserID      string     `json:"user_id"`
	FullName    string     `json:"full_name"`
	Email       string     `json:"email"`
	Institution string     `json:"institution"`
	Experience  int        `json:"experience"`
	CommitteeID *string    `json:"committee_id,omitempty"`
	CountryID   *string    `json:"country_id,omitempty"`
	CountryName *string    `json:"country_name,omitempty"`
	AssignedAt  *time.Time `json:"assigned_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

type Block struct {
	ID          string        `json:"id"`
	CommitteeID string        `json:"committee_id"`
	Name        string        `json:"name"`
	CreatedBy   *string       `json:"created_by,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	Members     []BlockMember `json:"members"`
}

type BlockMember struct {
	DelegateID  string    `json:"delegate_id"`
	FullName    string    `json:"full_name"`
	CountryName *string   `json:"country_name,omitempty"`
	JoinedAt    time.Time `json:"joined_at"`
}

type Document struct {
	ID          string     `json:"id"`
	CommitteeID string     `json:"committee_id"`
	AuthorID    string     `json:"author_id"`
	BlockID     *string    `json:"block_id,omitempty"`
	ParentID    *string    `json:"parent_id,omitempty"`
	Kind        string     `json:"kind"`
	Title       string     `json:"title"`
	Body        string     `json:"body"`
	SizeHuman   string     `json:"size_human"`
	Status      string     `json:"status"`
	ReviewNote  *string    `json:"review_note,omitempty"`
	ReviewedBy  *string    `json:"reviewed_by,omitempty"`
	ReviewedAt  *time.Time `json:"reviewed_at,omitempty"`
	SubmittedAt time.Time  `json:"submitted_at"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
}

type Vote struct {
	DocumentID  string    `json:"document_id"`
	DelegateID  string    `json:"delegate_id"`
	CountryName *string   `json:"country_name,omitempty"`
	Position    string    `json:"position"`
	CastAt      time.Time `json:"cast_at"`
}

// Tally summarises the votes cast on a document
type Tally struct {
	For        int  `json:"for"`
	Against    int  `json:"against"`
	Abstain    int  `json:"abstain"`
	Total      int  `json:"total"`
	Passed     bool `json:"passed"`
	CanPublish bool `json:"can_publish"`
}

type Score struct {
	ID          string    `json:"id"`
	CommitteeID string    `json:"committee_id"`
	DelegateID  string    `json:"delegate_id"`
	ChairID     string    `json:"chair_id"`
	Category    string    `json:"category"`
	Session     int       `json:"session"`
	Points      float64   `json:"points"`
	Comment     string    `json:"comment"`
	CreatedAt   time.Time `json:"created_at"`
}

// AwardStanding is one delegate's line in a committee's award table
type AwardStanding struct {
	DelegateID  string  `json:"delegate_id"`
	FullName    string  `json:"full_name"`
	CountryName *string `json:"country_name,omitempty"`
	TotalPoints float64 `json:"total_points"`
	ScoreCount  int     `json:"score_count"`
	Average     float64 `json:"average"`
	Rank        int     `json:"rank"` // 1-indexed, 0 when unscored
	Award       string  `json:"award,omitempty"`
}

type AttendanceRecord struct {
	CommitteeID string    `json:"committee_id"`
	DelegateID  string    `json:"delegate_id"`
	FullName    string    `json:"full_name"`
	CountryName *string   `json:"country_name,omitempty"`
	Session     int       `json:"session"`
	Status      string    `json:"status"`
	RecordedBy  string    `json:"recorded_by"`
	RecordedAt  time.Time `json:"recorded_at"`
}

type AttendanceSummary struct {
	DelegateID  string  `json:"delegate_id"`
	FullName    string  `json:"full_name"`
	CountryName *string `json:"country_name,omitempty"`
	Present     int     `json:"present"`
	Late        int     `json:"late"`
	Absent      int     `json:"absent"`
	Sessions    int     `json:"sessions"`
	Rate        float64 `json:"rate"`
}

type Event struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Location    string    `json:"location"`
	CommitteeID *string   `json:"committee_id,omitempty"`
	StartsAt    time.Time `json:"starts_at"`
	EndsAt      time.Time `json:"ends_at"`
	StartsHuman string    `json:"starts_human"`
	CreatedAt   time.Time `json:"created_at"`
}

// Error response

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
