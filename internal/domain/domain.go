package domain

// Roles an account can hold. Role is fixed for the lifetime of a session.
const (
	RoleSingle           = "single"
	RoleCommitteeMember  = "committee_member"
	RoleCentralCommittee = "central_committee"
	RoleOverseer         = "overseer"
)

type User struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	Username     string `json:"username"`
	PasswordHash string `json:"-"`
	FullName     string `json:"full_name"`
	Phone        string `json:"phone,omitempty"`
	Role         string `json:"role" enum:"single,committee_member,central_committee,overseer"`
	Region       string `json:"region,omitempty"`
	Division     string `json:"division,omitempty"`
	LocalChurch  string `json:"local_church,omitempty"`
	Gender       string `json:"gender,omitempty" enum:"male,female"`
	IsActive     bool   `json:"is_active"`
	CreatedAt    string `json:"created_at" format:"date-time"`
	UpdatedAt    string `json:"updated_at" format:"date-time"`
}

type Application struct {
	ID                string  `json:"id"`
	ApplicationNumber string  `json:"application_number"`
	ApplicantID       string  `json:"applicant_id"`
	ApplicantType     string  `json:"applicant_type" enum:"brother,sister"`
	PartnerID         *string `json:"partner_id,omitempty"`
	PartnerName       string  `json:"partner_name"`
	PartnerLocation   string  `json:"partner_location,omitempty"`
	PartnerRegion     string  `json:"partner_region,omitempty"`
	PartnerDivision   string  `json:"partner_division,omitempty"`
	PartnerInformed   bool    `json:"partner_informed"`

	Age        int    `json:"age"`
	Occupation string `json:"occupation"`
	ChurchRole string `json:"church_role,omitempty"`

	IsBornAgain         bool   `json:"is_born_again"`
	SalvationDate       string `json:"salvation_date,omitempty" format:"date"`
	SalvationExperience string `json:"salvation_experience,omitempty"`

	PreviouslyMarried       bool   `json:"previously_married"`
	NumberOfChildren        int    `json:"number_of_children"`
	PreviousMarriageDetails string `json:"previous_marriage_details,omitempty"`

	KnowsPartner            bool   `json:"knows_partner"`
	RelationshipDescription string `json:"relationship_description,omitempty"`

	CurrentStage string `json:"current_stage"`
	Status       string `json:"status" enum:"pending,approved,rejected,on_hold"`

	AssignedCommitteeMemberID *string `json:"assigned_committee_member_id,omitempty"`
	AdminNotes                string  `json:"admin_notes,omitempty"`

	CreatedAt   string  `json:"created_at" format:"date-time"`
	UpdatedAt   string  `json:"updated_at" format:"date-time"`
	SubmittedAt string  `json:"submitted_at,omitempty" format:"date-time"`
	ApprovedAt  *string `json:"approved_at,omitempty" format:"date-time"`
}

// StageRecord is one entry in an application's append-only stage history.
type StageRecord struct {
	ID            string  `json:"id"`
	ApplicationID string  `json:"application_id"`
	StageName     string  `json:"stage_name"`
	StageOrder    int     `json:"stage_order"`
	Status        string  `json:"status" enum:"pending,in_progress,completed,rejected"`
	ActionedByID  *string `json:"actioned_by_id,omitempty"`
	Notes         string  `json:"notes,omitempty"`
	StartedAt     string  `json:"started_at" format:"date-time"`
	CompletedAt   *string `json:"completed_at,omitempty" format:"date-time"`
}

// CourtshipWeek is one of the 25 curriculum units tracked per application.
type CourtshipWeek struct {
	ApplicationID  string  `json:"application_id"`
	Week           int     `json:"week" minimum:"1" maximum:"25"`
	Status         string  `json:"status" enum:"not_started,in_progress,completed"`
	CoupleNotes    string  `json:"couple_notes,omitempty"`
	CounselorNotes string  `json:"counselor_notes,omitempty"`
	StartedAt      *string `json:"started_at,omitempty" format:"date-time"`
	CompletedAt    *string `json:"completed_at,omitempty" format:"date-time"`
	LastUpdatedBy  *string `json:"last_updated_by,omitempty"`
}

// CheckIn is one of the periodic counseling sessions scheduled over
// the courtship period. The couple writes feedback; a counselor closes
// the session with notes, issues and action items.
type CheckIn struct {
	ID             string  `json:"id"`
	ApplicationID  string  `json:"application_id"`
	ScheduledDate  string  `json:"scheduled_date" format:"date-time"`
	CompletedDate  *string `json:"completed_date,omitempty" format:"date-time"`
	Status         string  `json:"status" enum:"scheduled,completed,cancelled"`
	MeetingFormat  string  `json:"meeting_format,omitempty" enum:"in_person,phone,video,"`
	CoupleFeedback string  `json:"couple_feedback,omitempty"`
	CounselorNotes string  `json:"counselor_notes,omitempty"`
	IssuesRaised   string  `json:"issues_raised,omitempty"`
	ActionItems    string  `json:"action_items,omitempty"`
	ConductedByID  *string `json:"conducted_by_id,omitempty"`
	CreatedAt      string  `json:"created_at" format:"date-time"`
	UpdatedAt      string  `json:"updated_at" format:"date-time"`
}

type Meeting struct {
	ID              string  `json:"id"`
	ApplicationID   string  `json:"application_id"`
	Title           string  `json:"title"`
	Description     string  `json:"description,omitempty"`
	ScheduledDate   string  `json:"scheduled_date" format:"date-time"`
	DurationMinutes int     `json:"duration_minutes"`
	Location        string  `json:"location,omitempty"`
	MeetingType     string  `json:"meeting_type" enum:"interview,review,introduction,check_in,final_approval"`
	MeetingFormat   string  `json:"meeting_format" enum:"in_person,phone,video"`
	Status          string  `json:"status" enum:"scheduled,completed,cancelled"`
	Attendees       string  `json:"attendees,omitempty"`
	Notes           string  `json:"notes,omitempty"`
	Outcome         string  `json:"outcome,omitempty"`
	OrganizedByID   *string `json:"organized_by_id,omitempty"`
	CreatedAt       string  `json:"created_at" format:"date-time"`
	UpdatedAt       string  `json:"updated_at" format:"date-time"`
}

type MedicalTest struct {
	ID                  string `json:"id"`
	ApplicationID       string `json:"application_id"`
	PersonType          string `json:"person_type" enum:"brother,sister"`
	HIVTest             string `json:"hiv_test,omitempty" enum:"positive,negative,pending"`
	HepatitisTest       string `json:"hepatitis_test,omitempty"`
	SickleCellTest      string `json:"sickle_cell_test,omitempty"`
	TestDate            string `json:"test_date,omitempty" format:"date"`
	HospitalName        string `json:"hospital_name,omitempty"`
	HospitalLocation    string `json:"hospital_location,omitempty"`
	ResultsReceived     bool   `json:"results_received"`
	ResultsReceivedAt   *string `json:"results_received_at,omitempty" format:"date-time"`
	CompatibilityStatus string `json:"compatibility_status,omitempty" enum:"compatible,incompatible,pending"`
	Notes               string `json:"notes,omitempty"`
	CreatedAt           string `json:"created_at" format:"date-time"`
	UpdatedAt           string `json:"updated_at" format:"date-time"`
}

type Notification struct {
	ID            string  `json:"id"`
	UserID        string  `json:"user_id"`
	ApplicationID *string `json:"application_id,omitempty"`
	Title         string  `json:"title"`
	Message       string  `json:"message"`
	Type          string  `json:"notification_type,omitempty"`
	Read          bool    `json:"read"`
	ReadAt        *string `json:"read_at,omitempty" format:"date-time"`
	CreatedAt     string  `json:"created_at" format:"date-time"`
}

type Discussion struct {
	ID         string `json:"id"`
	AuthorID   string `json:"author_id"`
	Title      string `json:"title"`
	Content    string `json:"content"`
	Category   string `json:"category,omitempty"`
	Visibility string `json:"visibility" enum:"region,division,all"`
	Region     string `json:"region,omitempty"`
	Division   string `json:"division,omitempty"`
	CreatedAt  string `json:"created_at" format:"date-time"`
	UpdatedAt  string `json:"updated_at" format:"date-time"`
}

type Reply struct {
	ID           string `json:"id"`
	DiscussionID string `json:"discussion_id"`
	AuthorID     string `json:"author_id"`
	Content      string `json:"content"`
	CreatedAt    string `json:"created_at" format:"date-time"`
}

type Complaint struct {
	ID          string  `json:"id"`
	AuthorID    string  `json:"author_id"`
	Subject     string  `json:"subject"`
	Description string  `json:"description"`
	Category    string  `json:"category,omitempty"`
	Status      string  `json:"status" enum:"open,under_review,resolved,dismissed"`
	Resolution  string  `json:"resolution,omitempty"`
	HandledByID *string `json:"handled_by_id,omitempty"`
	CreatedAt   string  `json:"created_at" format:"date-time"`
	UpdatedAt   string  `json:"updated_at" format:"date-time"`
}

// Session is a server-side login session. LastActivity drives the
// inactivity monitor; the raw token is never stored, only its hash.
type Session struct {
	ID           string `json:"id"`
	UserID       string `json:"user_id"`
	TokenHash    string `json:"-"`
	CreatedAt    string `json:"created_at" format:"date-time"`
	LastActivity string `json:"last_activity" format:"date-time"`
}

// LoginMarker remembers where a user was and why they were logged out,
// so the next login can resume the pre-logout location.
type LoginMarker struct {
	UserID       string `json:"user_id"`
	ReturnPath   string `json:"return_path,omitempty"`
	LogoutReason string `json:"logout_reason,omitempty" enum:"voluntary,inactivity"`
	CreatedAt    string `json:"created_at" format:"date-time"`
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}
