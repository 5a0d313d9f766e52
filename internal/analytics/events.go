package analytics

import "time"

type EventType string

const (
	EventPlan        EventType = "plan"
	EventRecordSaved EventType = "record_saved"
)

// PlanEvent describes one completed plan computation.
type PlanEvent struct {
	Type         EventType `json:"type"`
	StudentID    string    `json:"student_id,omitempty"`
	TargetSGPA   float64   `json:"target_sgpa"`
	TargetCGPA   float64   `json:"target_cgpa"`
	DraftCourses int       `json:"draft_courses"`
	AlphabetSize int       `json:"alphabet_size"`
	Accepted     int       `json:"accepted"`
	Evaluated    int64     `json:"evaluated"`
	Capped       bool      `json:"capped"`
	LatencyMs    int64     `json:"latency_ms"`
	CacheHit     bool      `json:"cache_hit"`
	RequestID    string    `json:"request_id,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// RecordEvent describes a saved history or draft.
type RecordEvent struct {
	Type      EventType `json:"type"`
	StudentID string    `json:"student_id"`
	Kind      string    `json:"kind"`
	Semesters int       `json:"semesters"`
	Courses   int       `json:"courses"`
	Timestamp time.Time `json:"timestamp"`
}

// envelope peeks at the discriminator before the full decode.
type envelope struct {
	Type EventType `json:"type"`
}
