package shared

// Permission codes form an immutable catalog administered outside the engine.
// The groupings below mirror the modules of the academy platform and feed the
// authorization policy table.

// User management module.
const (
	PermUserView     = "USER_VIEW"
	PermUserCreate   = "USER_CREATE"
	PermUserEdit     = "USER_EDIT"
	PermUserDelete   = "USER_DELETE"
	PermUserActivate = "USER_ACTIVATE"
)

// Academic management module.
const (
	PermClassView           = "CLASS_VIEW"
	PermClassCreate         = "CLASS_CREATE"
	PermClassEdit           = "CLASS_EDIT"
	PermClassDelete         = "CLASS_DELETE"
	PermClassScheduleManage = "CLASS_SCHEDULE_MANAGE"

	PermEnrollmentView    = "ENROLLMENT_VIEW"
	PermEnrollmentCreate  = "ENROLLMENT_CREATE"
	PermEnrollmentEdit    = "ENROLLMENT_EDIT"
	PermEnrollmentApprove = "ENROLLMENT_APPROVE"
	PermEnrollmentCancel  = "ENROLLMENT_CANCEL"

	PermAttendanceView   = "ATTENDANCE_VIEW"
	PermAttendanceMark   = "ATTENDANCE_MARK"
	PermAttendanceEdit   = "ATTENDANCE_EDIT"
	PermAttendanceReport = "ATTENDANCE_REPORT"

	PermAssessmentView   = "ASSESSMENT_VIEW"
	PermAssessmentCreate = "ASSESSMENT_CREATE"
	PermAssessmentEdit   = "ASSESSMENT_EDIT"
	PermAssessmentGrade  = "ASSESSMENT_GRADE"

	PermReportCardView     = "REPORT_CARD_VIEW"
	PermReportCardGenerate = "REPORT_CARD_GENERATE"
)

// Finance management module.
const (
	PermBillingView   = "BILLING_VIEW"
	PermBillingCreate = "BILLING_CREATE"
	PermBillingEdit   = "BILLING_EDIT"

	PermPaymentView   = "PAYMENT_VIEW"
	PermPaymentVerify = "PAYMENT_VERIFY"
	PermPaymentRecord = "PAYMENT_RECORD"

	PermSalaryView      = "SALARY_VIEW"
	PermSalaryCalculate = "SALARY_CALCULATE"
	PermSalaryApprove   = "SALARY_APPROVE"
)

// Event management module.
const (
	PermEventView               = "EVENT_VIEW"
	PermEventCreate             = "EVENT_CREATE"
	PermEventEdit               = "EVENT_EDIT"
	PermEventDelete             = "EVENT_DELETE"
	PermEventRegister           = "EVENT_REGISTER"
	PermEventManageRegistration = "EVENT_MANAGE_REGISTRATION"
)

// System and reporting module.
const (
	PermReportOperational = "REPORT_OPERATIONAL"
	PermReportFinancial   = "REPORT_FINANCIAL"
	PermReportAcademic    = "REPORT_ACADEMIC"
	PermReportExport      = "REPORT_EXPORT"
	PermDashboardView     = "DASHBOARD_VIEW"

	PermSystemConfig  = "SYSTEM_CONFIG"
	PermBackupRestore = "BACKUP_RESTORE"
	PermAuditLogView  = "AUDIT_LOG_VIEW"
)

// UserScopes lists permissions guarding the user management module.
func UserScopes() []string {
	return []string{PermUserView, PermUserCreate, PermUserEdit, PermUserDelete, PermUserActivate}
}

// ClassScopes lists permissions guarding class administration.
func ClassScopes() []string {
	return []string{PermClassView, PermClassCreate, PermClassEdit, PermClassDelete, PermClassScheduleManage}
}

// EnrollmentScopes lists permissions guarding enrollment workflows.
func EnrollmentScopes() []string {
	return []string{PermEnrollmentView, PermEnrollmentCreate, PermEnrollmentEdit, PermEnrollmentApprove, PermEnrollmentCancel}
}

// AttendanceScopes lists permissions guarding attendance workflows.
func AttendanceScopes() []string {
	return []string{PermAttendanceView, PermAttendanceMark, PermAttendanceEdit, PermAttendanceReport}
}

// AssessmentScopes lists permissions guarding assessments.
func AssessmentScopes() []string {
	return []string{PermAssessmentView, PermAssessmentCreate, PermAssessmentEdit, PermAssessmentGrade}
}

// ReportCardScopes lists permissions guarding report cards.
func ReportCardScopes() []string {
	return []string{PermReportCardView, PermReportCardGenerate}
}

// BillingScopes lists permissions guarding billing.
func BillingScopes() []string {
	return []string{PermBillingView, PermBillingCreate, PermBillingEdit}
}

// PaymentScopes lists permissions guarding payments.
func PaymentScopes() []string {
	return []string{PermPaymentView, PermPaymentVerify, PermPaymentRecord}
}

// PayrollScopes lists permissions guarding payroll.
func PayrollScopes() []string {
	return []string{PermSalaryView, PermSalaryCalculate, PermSalaryApprove}
}

// EventScopes lists permissions guarding events.
func EventScopes() []string {
	return []string{PermEventView, PermEventCreate, PermEventEdit, PermEventDelete, PermEventRegister, PermEventManageRegistration}
}

// ReportScopes lists permissions guarding reporting and dashboards.
func ReportScopes() []string {
	return []string{PermReportOperational, PermReportFinancial, PermReportAcademic, PermReportExport, PermDashboardView}
}

// SystemScopes lists permissions guarding system administration.
func SystemScopes() []string {
	return []string{PermSystemConfig, PermBackupRestore, PermAuditLogView}
}
