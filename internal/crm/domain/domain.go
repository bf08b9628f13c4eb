// Package domain provides core entity enums and pure status rules for the
// CRM bounded context. No I/O lives here.
package domain

// LeadStatus is the lead funnel position.
type LeadStatus string

const (
	LeadStatusNew          LeadStatus = "new"
	LeadStatusContacted    LeadStatus = "contacted"
	LeadStatusQualified    LeadStatus = "qualified"
	LeadStatusConverted    LeadStatus = "converted"
	LeadStatusDisqualified LeadStatus = "disqualified"
	LeadStatusLost         LeadStatus = "lost"
)

// ActiveLeadStatuses are statuses where automation (scoring, nurturing,
// assignment) still applies.
var ActiveLeadStatuses = []LeadStatus{LeadStatusNew, LeadStatusContacted, LeadStatusQualified}

// IsActiveLeadStatus reports whether automation should still touch the lead.
func IsActiveLeadStatus(s LeadStatus) bool {
	switch s {
	case LeadStatusNew, LeadStatusContacted, LeadStatusQualified:
		return true
	}
	return false
}

// ConvertibleLeadStatuses are statuses from which conversion is allowed.
func IsConvertibleLeadStatus(s LeadStatus) bool {
	return s == LeadStatusContacted || s == LeadStatusQualified
}

// HealthScore is the categorical account engagement rating.
type HealthScore string

const (
	HealthGreen  HealthScore = "green"
	HealthYellow HealthScore = "yellow"
	HealthRed    HealthScore = "red"
	HealthBlack  HealthScore = "black"
)

// LifecycleStage is the account's position in the funnel.
type LifecycleStage string

const (
	StageMQA      LifecycleStage = "mqa"
	StageSQA      LifecycleStage = "sqa"
	StageCustomer LifecycleStage = "customer"
	StageChurned  LifecycleStage = "churned"
)

// DealStage is the pipeline stage of a deal.
type DealStage string

const (
	DealStageProspecting DealStage = "prospecting"
	DealStageQualified   DealStage = "qualified"
	DealStageProposal    DealStage = "proposal"
	DealStageNegotiation DealStage = "negotiation"
	DealStageClosed      DealStage = "closed"
)

// DealStatus is the outcome state of a deal.
type DealStatus string

const (
	DealStatusOpen DealStatus = "open"
	DealStatusWon  DealStatus = "won"
	DealStatusLost DealStatus = "lost"
)

// AdvancedDealStages are open stages that indicate active sales engagement
// beyond prospecting.
func IsAdvancedDealStage(s DealStage) bool {
	switch s {
	case DealStageQualified, DealStageProposal, DealStageNegotiation:
		return true
	}
	return false
}

// TaskStatus is the completion state of a task.
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusCancelled  TaskStatus = "cancelled"
)

// IsOpenTaskStatus reports whether the task still demands work.
func IsOpenTaskStatus(s TaskStatus) bool {
	return s == TaskStatusPending || s == TaskStatusInProgress
}

// TaskPriority orders tasks for follow-up.
type TaskPriority string

const (
	PriorityLow    TaskPriority = "low"
	PriorityMedium TaskPriority = "medium"
	PriorityHigh   TaskPriority = "high"
	PriorityUrgent TaskPriority = "urgent"
)

// ActivityType classifies immutable activity log rows.
type ActivityType string

const (
	ActivityCall         ActivityType = "call"
	ActivityEmail        ActivityType = "email"
	ActivityMeeting      ActivityType = "meeting"
	ActivityNote         ActivityType = "note"
	ActivityWhatsApp     ActivityType = "whatsapp"
	ActivityEmailOpen    ActivityType = "email_open"
	ActivityEmailClick   ActivityType = "email_click"
	ActivityStatusChange ActivityType = "status_change"
	ActivityScoreChange  ActivityType = "score_change"
	ActivityConversion   ActivityType = "conversion"
)

// Outcome values recorded on interaction activities.
const (
	OutcomePositive = "positive"
	OutcomeNeutral  = "neutral"
	OutcomeNegative = "negative"
)

// UserRole is the coarse permission role of a user.
type UserRole string

const (
	RoleAdmin    UserRole = "admin"
	RoleManager  UserRole = "manager"
	RoleSalesRep UserRole = "sales_rep"
	RoleSupport  UserRole = "support"
)

// AssignmentRule selects the owner-picking strategy for unassigned leads.
type AssignmentRule string

const (
	AssignRoundRobin   AssignmentRule = "round_robin"
	AssignLoadBalanced AssignmentRule = "load_balanced"
	AssignTerritory    AssignmentRule = "territory"
	AssignManual       AssignmentRule = "manual"
)

// ValidAssignmentRule reports whether the rule name is known.
func ValidAssignmentRule(r AssignmentRule) bool {
	switch r {
	case AssignRoundRobin, AssignLoadBalanced, AssignTerritory, AssignManual:
		return true
	}
	return false
}

// RiskLevel flags leads for deprioritization, independent of lead score.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)
