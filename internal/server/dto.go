package server

import (
	"courtline/internal/domain"
)

type RegisterRequest struct {
	Email       string `json:"email" format:"email"`
	Username    string `json:"username" minLength:"3"`
	Password    string `json:"password" minLength:"8"`
	FullName    string `json:"full_name"`
	Phone       string `json:"phone,omitempty"`
	Gender      string `json:"gender,omitempty" enum:"male,female"`
	Region      string `json:"region,omitempty"`
	Division    string `json:"division,omitempty"`
	LocalChurch string `json:"local_church,omitempty"`
}

type LoginRequest struct {
	Identifier string `json:"identifier" doc:"Username or email"`
	Password   string `json:"password"`
}

type LoginResponse struct {
	Token        string      `json:"token"`
	User         domain.User `json:"user"`
	ReturnPath   string      `json:"return_path,omitempty"`
	LogoutReason string      `json:"logout_reason,omitempty" enum:"voluntary,inactivity"`
}

type LogoutRequest struct {
	ReturnPath string `json:"return_path,omitempty"`
}

type PageMeta struct {
	Page    int `json:"page"`
	PerPage int `json:"per_page"`
	Total   int `json:"total"`
}

type ApplicationPage struct {
	Items []domain.Application `json:"items"`
	Meta  PageMeta             `json:"meta"`
}

type StageAdvanceRequest struct {
	Stage   string `json:"stage,omitempty" doc:"Target stage; must be the immediate successor"`
	Outcome string `json:"outcome,omitempty" enum:"completed,rejected,in_progress"`
	Notes   string `json:"notes,omitempty"`
}

type ApplicationDetail struct {
	Application domain.Application   `json:"application"`
	History     []domain.StageRecord `json:"history"`
}

type WeekNotesRequest struct {
	CoupleNotes    *string `json:"couple_notes,omitempty"`
	CounselorNotes *string `json:"counselor_notes,omitempty"`
}

type CheckInUpdateRequest struct {
	Status         *string `json:"status,omitempty" enum:"scheduled,completed,cancelled"`
	MeetingFormat  *string `json:"meeting_format,omitempty" enum:"in_person,phone,video"`
	CoupleFeedback *string `json:"couple_feedback,omitempty"`
	CounselorNotes *string `json:"counselor_notes,omitempty"`
	IssuesRaised   *string `json:"issues_raised,omitempty"`
	ActionItems    *string `json:"action_items,omitempty"`
}

type DashboardResponse struct {
	ByStage  map[string]int `json:"applications_by_stage"`
	ByStatus map[string]int `json:"applications_by_status"`
	ByRole   map[string]int `json:"users_by_role"`
	Sessions int            `json:"active_sessions"`
}
