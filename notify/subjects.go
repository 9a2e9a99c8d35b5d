package notify

const (
	subjectReminderSchedule      = "Next step: book your consultation"
	subjectReminderQuestionnaire = "Before we meet: a few quick questions"
	subjectReminderGeneric       = "Following up on your inquiry"
	subjectThankYou              = "Thank you for your answers"
	subjectOperatorResponseFmt   = "Lead update: %s (%s)"
	subjectOperatorAlertFmt      = "Send failed: %s email to %s"
)
